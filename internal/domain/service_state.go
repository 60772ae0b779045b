package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceState — состояние одного сервиса внутри развёртывания.
//
// Оркестратор создаёт по одной записи на каждый сервис дескриптора
// при запуске развёртывания. Агент обновляет состояние по мере
// работы с контейнером.
type ServiceState struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// DeploymentID — ссылка на развёртывание.
	DeploymentID uuid.UUID `json:"deployment_id"`

	// ServiceName — имя сервиса из дескриптора.
	ServiceName string `json:"service_name"`

	// Status — текущий статус сервиса.
	Status ServiceStatus `json:"status"`

	// ContainerID — идентификатор контейнера в Docker.
	// Пустой, пока контейнер не создан.
	ContainerID string `json:"container_id,omitempty"`

	// ExitCode — код выхода контейнера (для oneshot и упавших сервисов).
	ExitCode *int `json:"exit_code,omitempty"`

	// Attempt — номер попытки запуска (растёт при перезапусках агентом).
	Attempt int `json:"attempt"`

	// Error — текст ошибки при статусе FAILED.
	Error string `json:"error,omitempty"`

	// QueuedAt — время отправки команды запуска агенту.
	QueuedAt *time.Time `json:"queued_at,omitempty"`

	// StartedAt — время запуска контейнера.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время перехода в терминальный статус.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// NewServiceState создаёт состояние сервиса в статусе PENDING.
func NewServiceState(deploymentID uuid.UUID, serviceName string) *ServiceState {
	return &ServiceState{
		ID:           uuid.New(),
		DeploymentID: deploymentID,
		ServiceName:  serviceName,
		Status:       ServiceStatusPending,
		Attempt:      0,
		CreatedAt:    time.Now(),
	}
}

// MarkQueued переводит сервис в статус QUEUED.
func (s *ServiceState) MarkQueued() {
	now := time.Now()
	s.Status = ServiceStatusQueued
	s.QueuedAt = &now
}

// MarkStarting переводит сервис в статус STARTING и увеличивает
// счётчик попыток.
func (s *ServiceState) MarkStarting() {
	s.Status = ServiceStatusStarting
	s.Attempt++
}

// MarkRunning фиксирует запущенный контейнер.
func (s *ServiceState) MarkRunning(containerID string) {
	now := time.Now()
	s.Status = ServiceStatusRunning
	s.ContainerID = containerID
	s.StartedAt = &now
	s.Error = ""
}

// MarkHealthy фиксирует успешный health-check.
func (s *ServiceState) MarkHealthy() {
	s.Status = ServiceStatusHealthy
	s.Error = ""
}

// MarkCompleted фиксирует успешное завершение oneshot-сервиса.
func (s *ServiceState) MarkCompleted(exitCode int) {
	now := time.Now()
	s.Status = ServiceStatusCompleted
	s.ExitCode = &exitCode
	s.FinishedAt = &now
}

// MarkRestarting фиксирует падение контейнера, за которым последует
// перезапуск по политике restart. Статус остаётся нетерминальным:
// FAILED выставляется только когда агент прекращает наблюдение,
// поэтому зависимые сервисы продолжают ждать.
func (s *ServiceState) MarkRestarting(err string, exitCode *int) {
	s.Status = ServiceStatusStarting
	s.Error = err
	s.ExitCode = exitCode
}

// MarkFailed фиксирует отказ сервиса.
func (s *ServiceState) MarkFailed(err string, exitCode *int) {
	now := time.Now()
	s.Status = ServiceStatusFailed
	s.Error = err
	s.ExitCode = exitCode
	s.FinishedAt = &now
}

// MarkStopped фиксирует остановку сервиса по запросу.
func (s *ServiceState) MarkStopped() {
	now := time.Now()
	s.Status = ServiceStatusStopped
	s.FinishedAt = &now
}
