package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Convoy/internal/domain"
)

// Stack DTOs

// CreateStackRequest — запрос на создание stack.
type CreateStackRequest struct {
	Name string `json:"name"`
}

// UpdateStackRequest — запрос на обновление stack.
type UpdateStackRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// StackResponse — ответ со stack.
type StackResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// StackFromDomain конвертирует domain.Stack в StackResponse.
func StackFromDomain(s domain.Stack) StackResponse {
	return StackResponse{
		ID:        s.ID,
		Name:      s.Name,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
	}
}

// StackVersion DTOs

// CreateStackVersionRequest — запрос на создание версии stack (JSON-вариант).
// YAML-дескриптор передаётся телом запроса с Content-Type: application/yaml.
type CreateStackVersionRequest struct {
	Spec domain.StackSpec `json:"spec"`
}

// StackVersionResponse — ответ с версией stack.
type StackVersionResponse struct {
	StackID   uuid.UUID        `json:"stack_id"`
	Version   int              `json:"version"`
	Spec      domain.StackSpec `json:"spec"`
	CreatedAt time.Time        `json:"created_at"`
}

// StackVersionFromDomain конвертирует domain.StackVersion в StackVersionResponse.
func StackVersionFromDomain(v domain.StackVersion) StackVersionResponse {
	return StackVersionResponse{
		StackID:   v.StackID,
		Version:   v.Version,
		Spec:      v.Spec,
		CreatedAt: v.CreatedAt,
	}
}

// Deployment DTOs

// CreateDeploymentRequest — запрос на создание развёртывания.
type CreateDeploymentRequest struct {
	Inputs         map[string]string `json:"inputs,omitempty"`
	Version        *int              `json:"version,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// DeploymentResponse — ответ с развёртыванием.
type DeploymentResponse struct {
	ID             uuid.UUID         `json:"id"`
	StackID        uuid.UUID         `json:"stack_id"`
	Version        int               `json:"version"`
	Status         string            `json:"status"`
	Inputs         map[string]string `json:"inputs,omitempty"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	Error          string            `json:"error,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// DeploymentFromDomain конвертирует domain.Deployment в DeploymentResponse.
func DeploymentFromDomain(d domain.Deployment) DeploymentResponse {
	return DeploymentResponse{
		ID:             d.ID,
		StackID:        d.StackID,
		Version:        d.Version,
		Status:         string(d.Status),
		Inputs:         d.Inputs,
		StartedAt:      d.StartedAt,
		FinishedAt:     d.FinishedAt,
		Error:          d.Error,
		IdempotencyKey: d.IdempotencyKey,
		CreatedAt:      d.CreatedAt,
	}
}

// ServiceState DTOs

// ServiceStateResponse — ответ с состоянием сервиса развёртывания.
type ServiceStateResponse struct {
	ID           uuid.UUID  `json:"id"`
	DeploymentID uuid.UUID  `json:"deployment_id"`
	ServiceName  string     `json:"service_name"`
	Status       string     `json:"status"`
	ContainerID  string     `json:"container_id,omitempty"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	Attempt      int        `json:"attempt"`
	Error        string     `json:"error,omitempty"`
	QueuedAt     *time.Time `json:"queued_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ServiceStateFromDomain конвертирует domain.ServiceState в ServiceStateResponse.
func ServiceStateFromDomain(s domain.ServiceState) ServiceStateResponse {
	return ServiceStateResponse{
		ID:           s.ID,
		DeploymentID: s.DeploymentID,
		ServiceName:  s.ServiceName,
		Status:       string(s.Status),
		ContainerID:  s.ContainerID,
		ExitCode:     s.ExitCode,
		Attempt:      s.Attempt,
		Error:        s.Error,
		QueuedAt:     s.QueuedAt,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		CreatedAt:    s.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string            `json:"name"`
	CronExpr    string            `json:"cron_expr,omitempty"`
	IntervalSec int               `json:"interval_sec,omitempty"`
	Timezone    string            `json:"timezone,omitempty"`
	Enabled     bool              `json:"enabled"`
	Inputs      map[string]string `json:"inputs,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string            `json:"name,omitempty"`
	CronExpr    *string            `json:"cron_expr,omitempty"`
	IntervalSec *int               `json:"interval_sec,omitempty"`
	Timezone    *string            `json:"timezone,omitempty"`
	Inputs      *map[string]string `json:"inputs,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ со schedule.
type ScheduleResponse struct {
	ID               uuid.UUID         `json:"id"`
	StackID          uuid.UUID         `json:"stack_id"`
	Name             string            `json:"name"`
	CronExpr         string            `json:"cron_expr,omitempty"`
	IntervalSec      int               `json:"interval_sec,omitempty"`
	Timezone         string            `json:"timezone"`
	Enabled          bool              `json:"enabled"`
	NextDueAt        *time.Time        `json:"next_due_at,omitempty"`
	LastRunAt        *time.Time        `json:"last_run_at,omitempty"`
	LastDeploymentID *uuid.UUID        `json:"last_deployment_id,omitempty"`
	Inputs           map[string]string `json:"inputs,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:               s.ID,
		StackID:          s.StackID,
		Name:             s.Name,
		CronExpr:         s.CronExpr,
		IntervalSec:      s.IntervalSec,
		Timezone:         s.Timezone,
		Enabled:          s.Enabled,
		NextDueAt:        s.NextDueAt,
		LastRunAt:        s.LastRunAt,
		LastDeploymentID: s.LastDeploymentID,
		Inputs:           s.Inputs,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}
