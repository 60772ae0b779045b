package agent

import "errors"

// Ошибки агента.
var (
	// ErrServiceNotFound — запись service_state не найдена в БД.
	ErrServiceNotFound = errors.New("service state not found")

	// ErrServiceNotQueued — сервис не в статусе QUEUED.
	ErrServiceNotQueued = errors.New("service is not in QUEUED status")

	// ErrUnknownAction — неизвестное действие в команде.
	ErrUnknownAction = errors.New("unknown apply action")

	// ErrServiceDefNotFound — сервис отсутствует в дескрипторе stack.
	ErrServiceDefNotFound = errors.New("service definition not found in stack spec")

	// ErrAgentStopped — агент остановлен.
	ErrAgentStopped = errors.New("agent stopped")
)
