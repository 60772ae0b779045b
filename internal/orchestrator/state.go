package orchestrator

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/engine"
)

// DeploymentState — состояние выполнения одного развёртывания в памяти.
//
// DeploymentState создаётся когда Orchestrator начинает обработку
// развёртывания и удаляется когда оно переходит в терминальный статус
// (FAILED/STOPPED). Для устойчивых развёртываний (RUNNING/DEGRADED)
// state остаётся в памяти, чтобы обрабатывать события деградации
// и перезапусков от агента.
//
// Содержит:
//   - Кэш данных из БД (Deployment, StackVersion)
//   - Интерполированный дескриптор и построенный по нему DAG
//   - Текущий статус каждого сервиса
//   - Записи ServiceState для связи с БД
type DeploymentState struct {
	// Deployment — данные развёртывания из БД.
	Deployment *domain.Deployment

	// StackVersion — версия stack с дескриптором.
	StackVersion *domain.StackVersion

	// Spec — дескриптор после подстановки переменных.
	Spec *domain.StackSpec

	// DAG — граф зависимостей сервисов.
	DAG *engine.DAG

	// statuses — текущий статус каждого сервиса (имя → статус).
	statuses map[string]domain.ServiceStatus

	// states — записи service_states (имя → ServiceState).
	states map[string]*domain.ServiceState

	// stopping — развёртывание останавливается; новые сервисы
	// не диспатчатся.
	stopping bool

	mu sync.RWMutex
}

// NewDeploymentState создаёт новый DeploymentState.
func NewDeploymentState(deployment *domain.Deployment, version *domain.StackVersion) *DeploymentState {
	return &DeploymentState{
		Deployment:   deployment,
		StackVersion: version,
		statuses:     make(map[string]domain.ServiceStatus),
		states:       make(map[string]*domain.ServiceState),
	}
}

// Initialize инициализирует DeploymentState: валидирует дескриптор,
// подставляет переменные и строит DAG.
//
// env — переменные окружения оркестратора, доступные для подстановки
// (значения из Deployment.Inputs имеют приоритет).
func (s *DeploymentState) Initialize(env map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec := &s.StackVersion.Spec

	// 1. Валидация дескриптора
	if err := engine.Validate(spec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStackSpec, err)
	}

	// 2. Подстановка переменных ${VAR}
	vars := engine.NewVars(s.Deployment.Inputs)
	for k, v := range env {
		vars.SetEnv(k, v)
	}
	interpolated, err := engine.InterpolateSpec(spec, vars)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStackSpec, err)
	}
	s.Spec = interpolated

	// 3. Построение DAG по интерполированному дескриптору
	dag, err := engine.BuildDAG(interpolated)
	if err != nil {
		return fmt.Errorf("build DAG: %w", err)
	}
	s.DAG = dag

	// 4. Все сервисы начинают с PENDING
	for name := range dag.Nodes {
		s.statuses[name] = domain.ServiceStatusPending
	}

	return nil
}

// GetReadyServices возвращает сервисы, у которых выполнены условия
// на всех входящих рёбрах.
func (s *DeploymentState) GetReadyServices() []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopping {
		return nil
	}
	return s.DAG.GetReadyNodes(s.statuses)
}

// GetBlockedServices возвращает сервисы, которые уже никогда не смогут
// стартовать из-за тупикового статуса зависимости.
func (s *DeploymentState) GetBlockedServices() []*engine.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.DAG.GetBlockedNodes(s.statuses)
}

// SetServiceStatus обновляет статус сервиса.
func (s *DeploymentState) SetServiceStatus(name string, status domain.ServiceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[name] = status
}

// ServiceStatus возвращает текущий статус сервиса.
func (s *DeploymentState) ServiceStatus(name string) domain.ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.statuses[name]
}

// SetServiceState сохраняет запись ServiceState для сервиса.
func (s *DeploymentState) SetServiceState(name string, state *domain.ServiceState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[name] = state
	s.statuses[name] = state.Status
}

// GetServiceState возвращает запись ServiceState сервиса.
func (s *DeploymentState) GetServiceState(name string) *domain.ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.states[name]
}

// MarkStopping переводит state в режим остановки: готовые сервисы
// больше не диспатчатся.
func (s *DeploymentState) MarkStopping() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopping = true
}

// IsStopping возвращает true, если развёртывание останавливается.
func (s *DeploymentState) IsStopping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stopping
}

// IsSettled проверяет, достигли ли все сервисы устойчивого или
// терминального состояния (запуск можно финализировать).
func (s *DeploymentState) IsSettled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.DAG.IsSettled(s.statuses)
}

// HasFailed проверяет, есть ли упавшие сервисы.
func (s *DeploymentState) HasFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, status := range s.statuses {
		if status == domain.ServiceStatusFailed {
			return true
		}
	}
	return false
}

// FailedServices возвращает имена упавших сервисов.
func (s *DeploymentState) FailedServices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failed := make([]string, 0)
	for name, status := range s.statuses {
		if status == domain.ServiceStatusFailed {
			failed = append(failed, name)
		}
	}
	return failed
}

// DownServices возвращает сервисы, выпавшие из устойчивого состояния:
// упавшие окончательно (FAILED) либо перезапускаемые агентом
// (STARTING после устойчивой фазы).
func (s *DeploymentState) DownServices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	down := make([]string, 0)
	for name, status := range s.statuses {
		if status == domain.ServiceStatusFailed || status == domain.ServiceStatusStarting {
			down = append(down, name)
		}
	}
	return down
}

// AllStopped проверяет, что все сервисы в терминальном статусе
// (используется при остановке развёртывания).
func (s *DeploymentState) AllStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for name := range s.DAG.Nodes {
		status := s.statuses[name]
		// PENDING-сервисы ещё не запускались — им нечего останавливать.
		if status == domain.ServiceStatusPending {
			continue
		}
		if !status.IsTerminal() {
			return false
		}
	}
	return true
}

// Statuses возвращает снимок текущих статусов.
func (s *DeploymentState) Statuses() map[string]domain.ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]domain.ServiceStatus, len(s.statuses))
	for name, status := range s.statuses {
		snapshot[name] = status
	}
	return snapshot
}

// RestoreFromStates восстанавливает статусы из записей БД
// (после рестарта оркестратора).
func (s *DeploymentState) RestoreFromStates(states []domain.ServiceState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range states {
		state := &states[i]
		s.states[state.ServiceName] = state
		s.statuses[state.ServiceName] = state.Status
	}
}

// DeploymentID возвращает ID развёртывания.
func (s *DeploymentState) DeploymentID() uuid.UUID {
	return s.Deployment.ID
}

// StackID возвращает ID stack.
func (s *DeploymentState) StackID() uuid.UUID {
	return s.Deployment.StackID
}

// Stats возвращает статистику выполнения.
func (s *DeploymentState) Stats() DeploymentStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := DeploymentStats{TotalServices: s.DAG.Size()}
	for _, status := range s.statuses {
		switch status {
		case domain.ServiceStatusPending:
			stats.PendingServices++
		case domain.ServiceStatusQueued, domain.ServiceStatusStarting:
			stats.StartingServices++
		case domain.ServiceStatusRunning, domain.ServiceStatusHealthy:
			stats.RunningServices++
		case domain.ServiceStatusCompleted:
			stats.CompletedServices++
		case domain.ServiceStatusFailed:
			stats.FailedServices++
		case domain.ServiceStatusStopped:
			stats.StoppedServices++
		}
	}
	return stats
}

// DeploymentStats — статистика выполнения развёртывания.
type DeploymentStats struct {
	TotalServices     int
	PendingServices   int
	StartingServices  int
	RunningServices   int
	CompletedServices int
	FailedServices    int
	StoppedServices   int
}
