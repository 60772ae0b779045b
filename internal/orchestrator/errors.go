package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrDeploymentNotFound — развёртывание не найдено в БД.
	ErrDeploymentNotFound = errors.New("deployment not found")

	// ErrStackNotFound — stack не найден.
	ErrStackNotFound = errors.New("stack not found")

	// ErrVersionNotFound — версия stack не найдена.
	ErrVersionNotFound = errors.New("stack version not found")

	// ErrInvalidStackSpec — дескриптор не прошёл валидацию.
	ErrInvalidStackSpec = errors.New("invalid stack spec")

	// ErrDeploymentAlreadyActive — развёртывание уже обрабатывается.
	ErrDeploymentAlreadyActive = errors.New("deployment already being processed")

	// ErrDeploymentNotPending — развёртывание не в статусе PENDING.
	ErrDeploymentNotPending = errors.New("deployment is not in PENDING status")

	// ErrServiceNotFound — сервис не найден в DAG или в БД.
	ErrServiceNotFound = errors.New("service not found")

	// ErrDeploymentFinished — развёртывание уже в терминальном статусе.
	ErrDeploymentFinished = errors.New("deployment already finished")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
