package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического развёртывания stack.
//
// Поддерживаются два типа расписаний:
// - Cron-выражение (например, "0 3 * * *" — каждый день в 3:00)
// - Интервал в секундах (например, каждые 3600 секунд)
//
// Должно быть задано ровно одно из двух.
type Schedule struct {
	// ID — уникальный идентификатор расписания.
	ID uuid.UUID `json:"id"`

	// StackID — stack, который нужно разворачивать.
	StackID uuid.UUID `json:"stack_id"`

	// Name — человекочитаемое имя расписания.
	Name string `json:"name,omitempty"`

	// CronExpr — cron-выражение (пустое, если задан интервал).
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал между развёртываниями в секундах
	// (0, если задано cron-выражение).
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс для cron-выражений (IANA, например
	// "Europe/Moscow"). По умолчанию UTC.
	Timezone string `json:"timezone,omitempty"`

	// Inputs — значения переменных, передаваемые в каждое развёртывание.
	Inputs map[string]string `json:"inputs,omitempty"`

	// Enabled — флаг активности расписания.
	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего срабатывания.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего срабатывания.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastDeploymentID — последнее созданное расписанием развёртывание.
	LastDeploymentID *uuid.UUID `json:"last_deployment_id,omitempty"`

	// CreatedAt — время создания расписания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true для cron-расписаний.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true для интервальных расписаний.
func (s *Schedule) IsInterval() bool {
	return s.IntervalSec > 0
}

// Interval возвращает интервал как time.Duration.
func (s *Schedule) Interval() time.Duration {
	return time.Duration(s.IntervalSec) * time.Second
}

// RecordRun фиксирует срабатывание расписания: созданное развёртывание
// и следующее время выполнения.
func (s *Schedule) RecordRun(deploymentID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastDeploymentID = &deploymentID
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}

// Location возвращает часовой пояс расписания.
// При ошибке парсинга возвращает UTC.
func (s *Schedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
