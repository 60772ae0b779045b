package domain

// DeploymentStatus — статус развёртывания stack.
//
// Жизненный цикл:
//
//	PENDING → STARTING → RUNNING ⇄ DEGRADED
//	                   ↘ FAILED
//	          (или) → STOPPING → STOPPED
type DeploymentStatus string

const (
	// DeploymentStatusPending — развёртывание создано, но ещё не началось.
	DeploymentStatusPending DeploymentStatus = "PENDING"

	// DeploymentStatusStarting — сервисы запускаются в порядке зависимостей.
	DeploymentStatusStarting DeploymentStatus = "STARTING"

	// DeploymentStatusRunning — все сервисы достигли устойчивого состояния.
	DeploymentStatusRunning DeploymentStatus = "RUNNING"

	// DeploymentStatusDegraded — часть сервисов упала после успешного старта.
	DeploymentStatusDegraded DeploymentStatus = "DEGRADED"

	// DeploymentStatusFailed — запуск невозможен: сервис не стартовал
	// или health-check исчерпал бюджет попыток.
	DeploymentStatusFailed DeploymentStatus = "FAILED"

	// DeploymentStatusStopping — получен запрос на остановку.
	DeploymentStatusStopping DeploymentStatus = "STOPPING"

	// DeploymentStatusStopped — все контейнеры остановлены.
	DeploymentStatusStopped DeploymentStatus = "STOPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s DeploymentStatus) IsTerminal() bool {
	switch s {
	case DeploymentStatusFailed, DeploymentStatusStopped:
		return true
	default:
		return false
	}
}

// IsSteady возвращает true для устойчивых (не переходных) статусов,
// в которых развёртывание живёт продолжительное время.
func (s DeploymentStatus) IsSteady() bool {
	switch s {
	case DeploymentStatusRunning, DeploymentStatusDegraded:
		return true
	default:
		return false
	}
}

// ServiceStatus — статус одного сервиса внутри развёртывания.
//
// Жизненный цикл:
//
//	PENDING → QUEUED → STARTING → RUNNING → HEALTHY
//	                            ↘ COMPLETED (oneshot, код 0)
//	                            ↘ FAILED
//	          (или) → STOPPED
//
// PENDING — сервис ждёт выполнения условий на входящих рёбрах.
// QUEUED — условия выполнены, команда запуска отправлена агенту.
type ServiceStatus string

const (
	// ServiceStatusPending — сервис ждёт удовлетворения зависимостей.
	ServiceStatusPending ServiceStatus = "PENDING"

	// ServiceStatusQueued — команда запуска отправлена, агент ещё не взял её.
	ServiceStatusQueued ServiceStatus = "QUEUED"

	// ServiceStatusStarting — агент создаёт и запускает контейнер.
	ServiceStatusStarting ServiceStatus = "STARTING"

	// ServiceStatusRunning — контейнер работает (health ещё не подтверждён).
	ServiceStatusRunning ServiceStatus = "RUNNING"

	// ServiceStatusHealthy — контейнер работает и health-check прошёл.
	ServiceStatusHealthy ServiceStatus = "HEALTHY"

	// ServiceStatusCompleted — oneshot-сервис завершился с кодом 0.
	ServiceStatusCompleted ServiceStatus = "COMPLETED"

	// ServiceStatusFailed — сервис не стартовал, упал без перезапуска
	// или исчерпал бюджет health-check.
	ServiceStatusFailed ServiceStatus = "FAILED"

	// ServiceStatusStopped — контейнер остановлен по запросу.
	ServiceStatusStopped ServiceStatus = "STOPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s ServiceStatus) IsTerminal() bool {
	switch s {
	case ServiceStatusCompleted, ServiceStatusFailed, ServiceStatusStopped:
		return true
	default:
		return false
	}
}

// IsSettled возвращает true, если сервис достиг состояния, в котором
// запуск развёртывания можно считать законченным для этого сервиса.
// Для long-running это RUNNING/HEALTHY, для oneshot — COMPLETED.
func (s ServiceStatus) IsSettled() bool {
	switch s {
	case ServiceStatusRunning, ServiceStatusHealthy,
		ServiceStatusCompleted, ServiceStatusFailed, ServiceStatusStopped:
		return true
	default:
		return false
	}
}

// Satisfies проверяет, выполняет ли текущий статус условие на ребре
// зависимости. Это центральный предикат health-gating:
//
//   - service_started: контейнер запущен (RUNNING и выше, либо COMPLETED)
//   - service_healthy: health-check прошёл (только HEALTHY)
//   - service_completed_successfully: oneshot завершился с кодом 0
func (s ServiceStatus) Satisfies(cond GateCondition) bool {
	switch cond {
	case ConditionStarted:
		return s == ServiceStatusRunning || s == ServiceStatusHealthy || s == ServiceStatusCompleted
	case ConditionHealthy:
		return s == ServiceStatusHealthy
	case ConditionCompleted:
		return s == ServiceStatusCompleted
	default:
		return false
	}
}

// CanEverSatisfy проверяет, может ли условие ещё быть выполнено.
// FAILED и STOPPED — тупиковые: зависимая цепочка блокируется навсегда.
// COMPLETED не может удовлетворить service_healthy.
func (s ServiceStatus) CanEverSatisfy(cond GateCondition) bool {
	if s.Satisfies(cond) {
		return true
	}
	switch s {
	case ServiceStatusFailed, ServiceStatusStopped:
		return false
	case ServiceStatusCompleted:
		// COMPLETED финален: started уже покрыт Satisfies, healthy недостижим.
		return false
	default:
		return true
	}
}
