package domain

import (
	"time"

	"github.com/google/uuid"
)

// Deployment — экземпляр развёртывания stack.
//
// Deployment создаётся когда:
// - Пользователь разворачивает stack вручную (через API/CLI)
// - Scheduler создаёт развёртывание по расписанию
//
// Каждое развёртывание выполняет конкретную версию stack и имеет
// свой набор ServiceState.
type Deployment struct {
	// ID — уникальный идентификатор развёртывания.
	ID uuid.UUID `json:"id"`

	// StackID — ссылка на разворачиваемый stack.
	StackID uuid.UUID `json:"stack_id"`

	// Version — версия stack, которая разворачивается.
	Version int `json:"version"`

	// Status — текущий статус развёртывания.
	Status DeploymentStatus `json:"status"`

	// Inputs — значения переменных для подстановки ${VAR} в дескрипторе
	// (DOMAIN, SECRET_KEY, MYSQL_PASSWORD и т.д.).
	Inputs map[string]string `json:"inputs,omitempty"`

	// StartedAt — время начала запуска (когда статус стал STARTING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время перехода в терминальный статус.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если развёртывание FAILED.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Для scheduled deployments: "{schedule_id}_{next_due_at}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// CreatedAt — время создания развёртывания.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает время от старта до финализации.
func (d *Deployment) Duration() time.Duration {
	if d.StartedAt == nil || d.FinishedAt == nil {
		return 0
	}
	return d.FinishedAt.Sub(*d.StartedAt)
}

// IsFinished возвращает true, если развёртывание в терминальном статусе.
func (d *Deployment) IsFinished() bool {
	return d.Status.IsTerminal()
}

// MarkStarting переводит развёртывание в статус STARTING.
func (d *Deployment) MarkStarting() {
	now := time.Now()
	d.Status = DeploymentStatusStarting
	d.StartedAt = &now
}

// MarkRunning переводит развёртывание в статус RUNNING.
func (d *Deployment) MarkRunning() {
	d.Status = DeploymentStatusRunning
	d.Error = ""
}

// MarkDegraded переводит развёртывание в статус DEGRADED.
func (d *Deployment) MarkDegraded(reason string) {
	d.Status = DeploymentStatusDegraded
	d.Error = reason
}

// MarkFailed переводит развёртывание в статус FAILED.
func (d *Deployment) MarkFailed(err string) {
	now := time.Now()
	d.Status = DeploymentStatusFailed
	d.FinishedAt = &now
	d.Error = err
}

// MarkStopping переводит развёртывание в статус STOPPING.
func (d *Deployment) MarkStopping() {
	d.Status = DeploymentStatusStopping
}

// MarkStopped переводит развёртывание в статус STOPPED.
func (d *Deployment) MarkStopped() {
	now := time.Now()
	d.Status = DeploymentStatusStopped
	d.FinishedAt = &now
}
