package engine

import "errors"

// Ошибки валидации StackSpec.
var (
	// ErrNoServices — stack не содержит сервисов.
	ErrNoServices = errors.New("stack spec has no services")

	// ErrEmptyServiceName — сервис не имеет имени.
	ErrEmptyServiceName = errors.New("service has empty name")

	// ErrDuplicateService — несколько сервисов с одинаковым именем.
	ErrDuplicateService = errors.New("duplicate service name")

	// ErrEmptyImage — сервис не имеет образа.
	ErrEmptyImage = errors.New("service has empty image")

	// ErrUnknownCondition — неизвестное условие на ребре зависимости.
	ErrUnknownCondition = errors.New("unknown dependency condition")

	// ErrUnknownRestartPolicy — неизвестная политика перезапуска.
	ErrUnknownRestartPolicy = errors.New("unknown restart policy")

	// ErrMissingDependency — сервис зависит от несуществующего сервиса.
	ErrMissingDependency = errors.New("service depends on unknown service")

	// ErrSelfDependency — сервис зависит от самого себя.
	ErrSelfDependency = errors.New("service depends on itself")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrMissingHealthcheck — на сервис ссылаются через service_healthy,
	// но healthcheck у него не объявлен.
	ErrMissingHealthcheck = errors.New("service_healthy dependency on service without healthcheck")

	// ErrUnknownProbeType — неизвестный тип healthcheck.
	ErrUnknownProbeType = errors.New("unknown healthcheck type")

	// ErrUnknownVolume — сервис монтирует необъявленный том.
	ErrUnknownVolume = errors.New("mount references unknown volume")

	// ErrAmbiguousMount — в монтировании заданы и том, и host-путь.
	ErrAmbiguousMount = errors.New("mount specifies both volume and source")

	// ErrEmptyMountTarget — монтирование без пути внутри контейнера.
	ErrEmptyMountTarget = errors.New("mount has empty target")

	// ErrOneshotRestart — oneshot-сервис с политикой перезапуска always.
	ErrOneshotRestart = errors.New("oneshot service cannot have restart policy always")

	// ErrCompletedOnLongRunning — условие service_completed_successfully
	// указывает на long-running сервис.
	ErrCompletedOnLongRunning = errors.New("service_completed_successfully dependency on long-running service")
)

// Ошибки подстановки переменных.
var (
	// ErrUndefinedVariable — переменная не задана и не имеет значения по умолчанию.
	ErrUndefinedVariable = errors.New("undefined variable")

	// ErrBadInterpolation — некорректный синтаксис подстановки.
	ErrBadInterpolation = errors.New("malformed variable reference")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Service string // имя сервиса, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Service != "" {
		return "service " + e.Service + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(service, field, message string, err error) *ValidationError {
	return &ValidationError{
		Service: service,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
