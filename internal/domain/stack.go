package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stack — именованный набор сервисов, разворачиваемых вместе.
//
// Stack — это "шаблон" развёртывания: mysql, redis, rabbitmq,
// миграция БД, приложение и его воркеры. Один stack может иметь
// множество версий (StackVersion). Каждое развёртывание (Deployment)
// выполняет конкретную версию stack.
type Stack struct {
	// ID — уникальный идентификатор stack.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя stack (например, "incident-platform").
	Name string `json:"name"`

	// IsActive — флаг активности. Неактивные stacks не разворачиваются по расписанию.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания stack.
	CreatedAt time.Time `json:"created_at"`
}

// StackVersion — версия stack с конкретным дескриптором.
//
// Версионирование позволяет откатываться к предыдущим топологиям
// и сравнивать изменения между ними.
type StackVersion struct {
	// StackID — ссылка на родительский stack.
	StackID uuid.UUID `json:"stack_id"`

	// Version — номер версии (1, 2, 3, ...). Автоинкремент.
	Version int `json:"version"`

	// Spec — дескриптор stack (хранится как JSONB).
	Spec StackSpec `json:"spec"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at"`
}

// StackSpec — декларативный дескриптор набора сервисов.
//
// Это "программа" для Convoy: какие сервисы запустить, в каком
// порядке (через depends_on c условиями), какие тома создать
// и как проверять здоровье.
//
// Дескриптор пишется в YAML и хранится в БД как JSON, поэтому
// у полей два набора тегов.
type StackSpec struct {
	// Version — версия формата дескриптора (для обратной совместимости).
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Name — имя stack (дублирует Stack.Name для удобства).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description — описание назначения stack.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Services — сервисы для запуска.
	Services []ServiceDef `json:"services" yaml:"services"`

	// Volumes — именованные тома, на которые ссылаются сервисы.
	Volumes []VolumeDef `json:"volumes,omitempty" yaml:"volumes,omitempty"`
}

// ServiceDef — определение одного сервиса в stack.
type ServiceDef struct {
	// Name — уникальное имя сервиса в рамках stack.
	// Используется в depends_on и как имя контейнера.
	Name string `json:"name" yaml:"name"`

	// Image — образ контейнера (например, "mysql:8.0").
	Image string `json:"image" yaml:"image"`

	// Command — команда запуска (переопределяет CMD образа).
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`

	// Environment — переменные окружения контейнера.
	// Значения поддерживают подстановку ${VAR} и ${VAR:-default}.
	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// Ports — публикуемые порты.
	Ports []PortDef `json:"ports,omitempty" yaml:"ports,omitempty"`

	// Mounts — монтирования томов и файлов конфигурации.
	Mounts []MountDef `json:"mounts,omitempty" yaml:"mounts,omitempty"`

	// DependsOn — зависимости от других сервисов с условием готовности.
	// Сервис не запустится, пока все условия не выполнены.
	DependsOn []DependencyDef `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Healthcheck — проверка здоровья сервиса.
	// Обязателен, если кто-то зависит от сервиса с условием service_healthy.
	Healthcheck *HealthcheckDef `json:"healthcheck,omitempty" yaml:"healthcheck,omitempty"`

	// Restart — политика перезапуска: "no", "on-failure", "always".
	// По умолчанию: "no".
	Restart RestartPolicy `json:"restart,omitempty" yaml:"restart,omitempty"`

	// Oneshot — сервис-задача, выполняющийся до завершения ровно один раз
	// (например, миграция БД). На oneshot можно ссылаться через
	// service_completed_successfully.
	Oneshot bool `json:"oneshot,omitempty" yaml:"oneshot,omitempty"`

	// Resources — лимиты ресурсов контейнера.
	Resources *ResourceLimits `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// DependencyDef — ребро зависимости между сервисами.
type DependencyDef struct {
	// Service — имя сервиса, от которого зависим.
	Service string `json:"service" yaml:"service"`

	// Condition — условие готовности зависимости.
	// По умолчанию: service_started.
	Condition GateCondition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// GateCondition — условие на ребре зависимости, определяющее
// когда зависимый сервис может стартовать.
type GateCondition string

const (
	// ConditionStarted — зависимость запущена (контейнер работает).
	ConditionStarted GateCondition = "service_started"

	// ConditionHealthy — зависимость прошла health-check.
	ConditionHealthy GateCondition = "service_healthy"

	// ConditionCompleted — oneshot-зависимость завершилась с кодом 0.
	ConditionCompleted GateCondition = "service_completed_successfully"
)

// IsValid проверяет, что условие известно.
func (c GateCondition) IsValid() bool {
	switch c {
	case ConditionStarted, ConditionHealthy, ConditionCompleted:
		return true
	default:
		return false
	}
}

// RestartPolicy — политика перезапуска сервиса после падения.
type RestartPolicy string

const (
	// RestartNever — не перезапускать.
	RestartNever RestartPolicy = "no"

	// RestartOnFailure — перезапускать только при ненулевом коде выхода.
	RestartOnFailure RestartPolicy = "on-failure"

	// RestartAlways — перезапускать при любом завершении без вмешательства оператора.
	RestartAlways RestartPolicy = "always"
)

// IsValid проверяет, что политика известна. Пустая строка допустима
// и трактуется как RestartNever.
func (p RestartPolicy) IsValid() bool {
	switch p {
	case "", RestartNever, RestartOnFailure, RestartAlways:
		return true
	default:
		return false
	}
}

// PortDef — публикация порта контейнера на хост.
type PortDef struct {
	// HostIP — адрес хоста для привязки (по умолчанию 0.0.0.0).
	HostIP string `json:"host_ip,omitempty" yaml:"host_ip,omitempty"`

	// HostPort — порт на хосте. 0 — не публиковать наружу.
	HostPort int `json:"host_port,omitempty" yaml:"host_port,omitempty"`

	// ContainerPort — порт внутри контейнера.
	ContainerPort int `json:"container_port" yaml:"container_port"`

	// Protocol — "tcp" (по умолчанию) или "udp".
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

// MountDef — монтирование в файловую систему контейнера.
//
// Либо Volume (именованный том из StackSpec.Volumes), либо Source
// (путь на хосте, например файл конфигурации) — но не оба сразу.
type MountDef struct {
	// Volume — имя тома из секции volumes.
	Volume string `json:"volume,omitempty" yaml:"volume,omitempty"`

	// Source — путь на хосте для bind-монтирования.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Target — путь внутри контейнера.
	Target string `json:"target" yaml:"target"`

	// ReadOnly — монтировать только для чтения.
	ReadOnly bool `json:"read_only,omitempty" yaml:"read_only,omitempty"`
}

// VolumeDef — именованный том с персистентными данными.
type VolumeDef struct {
	// Name — имя тома (например, "dbdata").
	Name string `json:"name" yaml:"name"`
}

// HealthcheckDef — определение проверки здоровья.
//
// Проверка выполняется с фиксированным интервалом и бюджетом попыток.
// Исчерпание бюджета фатально для зависимой цепочки сервисов.
type HealthcheckDef struct {
	// Type — тип проверки: "tcp", "http", "container".
	Type string `json:"type" yaml:"type"`

	// Target — цель проверки.
	// Для tcp: "host:port". Для http: URL. Для container: игнорируется
	// (используется health-статус контейнера из движка).
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// IntervalSec — интервал между попытками в секундах.
	IntervalSec int `json:"interval_sec,omitempty" yaml:"interval_sec,omitempty"`

	// TimeoutSec — таймаут одной попытки в секундах.
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`

	// Retries — бюджет попыток.
	Retries int `json:"retries,omitempty" yaml:"retries,omitempty"`

	// StartPeriodSec — пауза перед первой попыткой (время на прогрев).
	StartPeriodSec int `json:"start_period_sec,omitempty" yaml:"start_period_sec,omitempty"`
}

// Значения по умолчанию для healthcheck.
// Бюджет рассчитан на медленный старт базы данных.
const (
	DefaultProbeIntervalSec    = 10
	DefaultProbeTimeoutSec     = 20
	DefaultProbeRetries        = 10
	DefaultProbeStartPeriodSec = 0
)

// Interval возвращает интервал с учётом значения по умолчанию.
func (h *HealthcheckDef) Interval() time.Duration {
	if h.IntervalSec > 0 {
		return time.Duration(h.IntervalSec) * time.Second
	}
	return DefaultProbeIntervalSec * time.Second
}

// Timeout возвращает таймаут попытки с учётом значения по умолчанию.
func (h *HealthcheckDef) Timeout() time.Duration {
	if h.TimeoutSec > 0 {
		return time.Duration(h.TimeoutSec) * time.Second
	}
	return DefaultProbeTimeoutSec * time.Second
}

// RetryBudget возвращает бюджет попыток с учётом значения по умолчанию.
func (h *HealthcheckDef) RetryBudget() int {
	if h.Retries > 0 {
		return h.Retries
	}
	return DefaultProbeRetries
}

// StartPeriod возвращает паузу перед первой попыткой.
func (h *HealthcheckDef) StartPeriod() time.Duration {
	if h.StartPeriodSec > 0 {
		return time.Duration(h.StartPeriodSec) * time.Second
	}
	return DefaultProbeStartPeriodSec
}

// FindService ищет определение сервиса по имени.
func (s *StackSpec) FindService(name string) *ServiceDef {
	for i := range s.Services {
		if s.Services[i].Name == name {
			return &s.Services[i]
		}
	}
	return nil
}

// HasVolume проверяет, объявлен ли том с данным именем.
func (s *StackSpec) HasVolume(name string) bool {
	for _, v := range s.Volumes {
		if v.Name == name {
			return true
		}
	}
	return false
}

// IsLongRunning возвращает true для сервисов, которые должны работать
// постоянно (не oneshot).
func (d *ServiceDef) IsLongRunning() bool {
	return !d.Oneshot
}

// RestartPolicyOrDefault возвращает политику перезапуска с учётом default.
func (d *ServiceDef) RestartPolicyOrDefault() RestartPolicy {
	if d.Restart == "" {
		return RestartNever
	}
	return d.Restart
}

// ResourceLimits — лимиты ресурсов контейнера.
type ResourceLimits struct {
	// CPUs — доли CPU (1.5 = полтора ядра).
	CPUs float64 `json:"cpus,omitempty" yaml:"cpus,omitempty"`

	// MemoryMB — лимит памяти в мегабайтах.
	MemoryMB int64 `json:"memory_mb,omitempty" yaml:"memory_mb,omitempty"`
}
