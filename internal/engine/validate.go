package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Convoy/internal/domain"
)

// Допустимые типы healthcheck.
var validProbeTypes = map[string]bool{
	"tcp":       true,
	"http":      true,
	"container": true,
}

// Validate выполняет полную валидацию StackSpec.
//
// Проверяет:
// - Наличие сервисов
// - Уникальность имён сервисов
// - Наличие образа у каждого сервиса
// - Валидность зависимостей (depends_on) и условий на рёбрах
// - Совместимость условий с целевыми сервисами (healthy требует
//   healthcheck, completed требует oneshot)
// - Валидность healthcheck, монтирований и политик перезапуска
// - Отсутствие циклов (делегируется DAG)
func Validate(spec *domain.StackSpec) error {
	if spec == nil {
		return ErrNoServices
	}

	if len(spec.Services) == 0 {
		return ErrNoServices
	}

	// Собираем имена сервисов
	names := make(map[string]bool)

	// Валидируем каждый сервис
	for i := range spec.Services {
		svc := &spec.Services[i]

		if err := validateService(svc, spec, names); err != nil {
			return err
		}
	}

	// Валидируем зависимости с учётом свойств целевых сервисов
	if err := validateDependencies(spec, names); err != nil {
		return err
	}

	// Проверка на циклы выполняется при построении DAG
	if _, err := BuildDAG(spec); err != nil {
		return err
	}

	return nil
}

// validateService валидирует один сервис.
// names — уже встреченные имена сервисов (для проверки уникальности).
func validateService(svc *domain.ServiceDef, spec *domain.StackSpec, names map[string]bool) error {
	// Проверка имени
	if svc.Name == "" {
		return NewValidationError("", "name", "service has empty name", ErrEmptyServiceName)
	}

	// Проверка уникальности имени
	if names[svc.Name] {
		return NewValidationError(svc.Name, "name",
			fmt.Sprintf("duplicate service name: %s", svc.Name), ErrDuplicateService)
	}
	names[svc.Name] = true

	// Проверка образа
	if svc.Image == "" {
		return NewValidationError(svc.Name, "image",
			"service has empty image", ErrEmptyImage)
	}

	// Проверка self-dependency
	for _, dep := range svc.DependsOn {
		if dep.Service == svc.Name {
			return NewValidationError(svc.Name, "depends_on",
				"service depends on itself", ErrSelfDependency)
		}
	}

	// Проверка политики перезапуска
	if !svc.Restart.IsValid() {
		return NewValidationError(svc.Name, "restart",
			fmt.Sprintf("unknown restart policy: %s", svc.Restart), ErrUnknownRestartPolicy)
	}

	// Oneshot выполняется до завершения: always означал бы бесконечный цикл
	if svc.Oneshot && svc.Restart == domain.RestartAlways {
		return NewValidationError(svc.Name, "restart",
			"oneshot service cannot have restart policy always", ErrOneshotRestart)
	}

	// Проверка healthcheck
	if svc.Healthcheck != nil {
		if err := validateHealthcheck(svc.Name, svc.Healthcheck); err != nil {
			return err
		}
	}

	// Проверка монтирований
	for i := range svc.Mounts {
		if err := validateMount(svc.Name, &svc.Mounts[i], spec); err != nil {
			return err
		}
	}

	return nil
}

// validateHealthcheck проверяет определение проверки здоровья.
func validateHealthcheck(service string, hc *domain.HealthcheckDef) error {
	if hc.Type == "" {
		return NewValidationError(service, "healthcheck",
			"healthcheck has empty type", ErrUnknownProbeType)
	}

	if !IsValidProbeType(hc.Type) {
		return NewValidationError(service, "healthcheck",
			fmt.Sprintf("unknown healthcheck type: %s", hc.Type), ErrUnknownProbeType)
	}

	// tcp и http требуют цель; container читает статус из движка
	if hc.Type != "container" && hc.Target == "" {
		return NewValidationError(service, "healthcheck",
			fmt.Sprintf("healthcheck type %s requires a target", hc.Type), ErrUnknownProbeType)
	}

	return nil
}

// validateMount проверяет монтирование сервиса.
func validateMount(service string, m *domain.MountDef, spec *domain.StackSpec) error {
	if m.Target == "" {
		return NewValidationError(service, "mounts",
			"mount has empty target", ErrEmptyMountTarget)
	}

	if m.Volume != "" && m.Source != "" {
		return NewValidationError(service, "mounts",
			fmt.Sprintf("mount %s specifies both volume and source", m.Target), ErrAmbiguousMount)
	}

	if m.Volume != "" && !spec.HasVolume(m.Volume) {
		return NewValidationError(service, "mounts",
			fmt.Sprintf("mount references unknown volume: %s", m.Volume), ErrUnknownVolume)
	}

	return nil
}

// validateDependencies проверяет рёбра зависимостей.
//
// Помимо существования целевого сервиса проверяется совместимость
// условия с его свойствами:
//   - service_healthy требует объявленного healthcheck у цели
//   - service_completed_successfully требует oneshot-цель
func validateDependencies(spec *domain.StackSpec, names map[string]bool) error {
	for i := range spec.Services {
		svc := &spec.Services[i]

		for _, dep := range svc.DependsOn {
			if !names[dep.Service] {
				return NewValidationError(svc.Name, "depends_on",
					fmt.Sprintf("depends on unknown service: %s", dep.Service), ErrMissingDependency)
			}

			cond := dep.Condition
			if cond == "" {
				cond = domain.ConditionStarted
			}
			if !cond.IsValid() {
				return NewValidationError(svc.Name, "depends_on",
					fmt.Sprintf("unknown condition: %s", dep.Condition), ErrUnknownCondition)
			}

			target := spec.FindService(dep.Service)

			if cond == domain.ConditionHealthy && target.Healthcheck == nil {
				return NewValidationError(svc.Name, "depends_on",
					fmt.Sprintf("service %s has no healthcheck", dep.Service), ErrMissingHealthcheck)
			}

			if cond == domain.ConditionCompleted && !target.Oneshot {
				return NewValidationError(svc.Name, "depends_on",
					fmt.Sprintf("service %s is not oneshot", dep.Service), ErrCompletedOnLongRunning)
			}
		}
	}

	return nil
}

// IsValidProbeType проверяет, является ли тип healthcheck допустимым.
func IsValidProbeType(probeType string) bool {
	return validProbeTypes[probeType]
}

// GetValidProbeTypes возвращает список допустимых типов healthcheck.
func GetValidProbeTypes() []string {
	types := make([]string, 0, len(validProbeTypes))
	for t := range validProbeTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
