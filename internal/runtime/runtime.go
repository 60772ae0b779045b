package runtime

import (
	"context"
	"errors"
)

// Ошибки рантайма контейнеров.
var (
	// ErrContainerNotFound — контейнер не существует.
	ErrContainerNotFound = errors.New("container not found")

	// ErrVolumeNotFound — том не существует.
	ErrVolumeNotFound = errors.New("volume not found")
)

// ContainerSpec — описание контейнера для создания.
//
// Все значения уже разрешены: переменные подставлены, имена томов
// и сетей привязаны к конкретному развёртыванию.
type ContainerSpec struct {
	// Name — имя контейнера.
	Name string

	// Image — образ контейнера.
	Image string

	// Command — команда запуска (пустая — CMD образа).
	Command []string

	// Env — переменные окружения.
	Env map[string]string

	// Labels — метки для поиска ресурсов развёртывания.
	Labels map[string]string

	// Ports — публикуемые порты.
	Ports []PortBinding

	// Mounts — монтирования томов и host-путей.
	Mounts []MountSpec

	// Networks — сети, к которым подключается контейнер
	// (имя сети → сетевые алиасы).
	Networks map[string][]string

	// CPUs — лимит CPU в долях ядра (0 — без лимита).
	CPUs float64

	// MemoryBytes — лимит памяти в байтах (0 — без лимита).
	MemoryBytes int64
}

// PortBinding — публикация порта контейнера на хост.
type PortBinding struct {
	// HostIP — адрес хоста (пустой — 0.0.0.0).
	HostIP string

	// HostPort — порт на хосте (0 — только expose, без публикации).
	HostPort int

	// ContainerPort — порт внутри контейнера.
	ContainerPort int

	// Protocol — "tcp" (по умолчанию) или "udp".
	Protocol string
}

// MountSpec — монтирование в контейнер.
type MountSpec struct {
	// Volume — имя тома (пустое для bind-монтирования).
	Volume string

	// Source — путь на хосте для bind-монтирования.
	Source string

	// Target — путь внутри контейнера.
	Target string

	// ReadOnly — монтировать только для чтения.
	ReadOnly bool
}

// ContainerStatus — наблюдаемое состояние контейнера.
type ContainerStatus struct {
	// ID — идентификатор контейнера.
	ID string

	// Running — контейнер работает.
	Running bool

	// ExitCode — код выхода (имеет смысл для остановленных).
	ExitCode int

	// Healthy — health-статус из встроенного HEALTHCHECK образа.
	// nil, если у образа нет HEALTHCHECK.
	Healthy *bool
}

// Runtime — абстракция над движком контейнеров.
//
// Агент работает только через этот интерфейс; политика перезапуска
// движка всегда отключена — перезапусками управляет агент.
type Runtime interface {
	// EnsureVolume создаёт именованный том, если его нет.
	EnsureVolume(ctx context.Context, name string, labels map[string]string) error

	// EnsureNetwork создаёт сеть, если её нет.
	EnsureNetwork(ctx context.Context, name string, labels map[string]string) error

	// CreateContainer создаёт контейнер и возвращает его ID.
	// Существующий контейнер с тем же именем удаляется.
	CreateContainer(ctx context.Context, spec *ContainerSpec) (string, error)

	// StartContainer запускает созданный контейнер.
	StartContainer(ctx context.Context, containerID string) error

	// StopContainer останавливает контейнер (SIGTERM, затем SIGKILL).
	StopContainer(ctx context.Context, containerID string) error

	// RemoveContainer удаляет контейнер.
	RemoveContainer(ctx context.Context, containerID string) error

	// InspectContainer возвращает наблюдаемое состояние контейнера.
	InspectContainer(ctx context.Context, containerID string) (*ContainerStatus, error)

	// WaitContainer блокируется до завершения контейнера и возвращает
	// код выхода.
	WaitContainer(ctx context.Context, containerID string) (int, error)

	// ContainerHealthy возвращает true, если health-статус контейнера
	// из движка — healthy.
	ContainerHealthy(ctx context.Context, containerID string) (bool, error)

	// RemoveByLabel останавливает и удаляет все контейнеры, тома и
	// сети с данной меткой. Используется при остановке развёртывания.
	RemoveByLabel(ctx context.Context, label, value string) error
}
