package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Convoy/internal/domain"
)

// ServiceRepo — репозиторий для работы с service_states.
type ServiceRepo struct {
	pool *pgxpool.Pool
}

// NewServiceRepo создаёт новый ServiceRepo.
func NewServiceRepo(pool *pgxpool.Pool) *ServiceRepo {
	return &ServiceRepo{pool: pool}
}

// Create создаёт новое состояние сервиса.
func (r *ServiceRepo) Create(ctx context.Context, s *domain.ServiceState) error {
	query := `
		INSERT INTO service_states (id, deployment_id, service_name, status, attempt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.DeploymentID,
		s.ServiceName,
		s.Status,
		s.Attempt,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert service state: %w", err)
	}
	return nil
}

// GetByID возвращает состояние сервиса по ID.
func (r *ServiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceState, error) {
	query := `
		SELECT id, deployment_id, service_name, status, container_id, exit_code,
		       attempt, error, queued_at, started_at, finished_at, created_at
		FROM service_states
		WHERE id = $1
	`
	return r.scanState(r.pool.QueryRow(ctx, query, id))
}

// ListByDeployment возвращает все состояния сервисов развёртывания.
func (r *ServiceRepo) ListByDeployment(ctx context.Context, deploymentID uuid.UUID) ([]domain.ServiceState, error) {
	query := `
		SELECT id, deployment_id, service_name, status, container_id, exit_code,
		       attempt, error, queued_at, started_at, finished_at, created_at
		FROM service_states
		WHERE deployment_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("list service states by deployment: %w", err)
	}
	defer rows.Close()

	var states []domain.ServiceState
	for rows.Next() {
		s, err := r.scanStateFromRows(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *s)
	}
	return states, rows.Err()
}

// Update обновляет состояние сервиса.
func (r *ServiceRepo) Update(ctx context.Context, s *domain.ServiceState) error {
	query := `
		UPDATE service_states
		SET status = $2, container_id = $3, exit_code = $4, attempt = $5,
		    error = $6, queued_at = $7, started_at = $8, finished_at = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Status,
		nullString(s.ContainerID),
		s.ExitCode,
		s.Attempt,
		nullString(s.Error),
		s.QueuedAt,
		s.StartedAt,
		s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update service state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQueued возвращает сервисы в статусе QUEUED.
// Используется агентом как fallback, если команда из очереди потерялась.
func (r *ServiceRepo) ListQueued(ctx context.Context, limit int) ([]domain.ServiceState, error) {
	query := `
		SELECT id, deployment_id, service_name, status, container_id, exit_code,
		       attempt, error, queued_at, started_at, finished_at, created_at
		FROM service_states
		WHERE status = 'QUEUED'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued service states: %w", err)
	}
	defer rows.Close()

	var states []domain.ServiceState
	for rows.Next() {
		s, err := r.scanStateFromRows(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *s)
	}
	return states, rows.Err()
}

// --- Helpers ---

func (r *ServiceRepo) scanState(row pgx.Row) (*domain.ServiceState, error) {
	var s domain.ServiceState
	var containerID, stateError *string

	err := row.Scan(
		&s.ID,
		&s.DeploymentID,
		&s.ServiceName,
		&s.Status,
		&containerID,
		&s.ExitCode,
		&s.Attempt,
		&stateError,
		&s.QueuedAt,
		&s.StartedAt,
		&s.FinishedAt,
		&s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan service state: %w", err)
	}

	if containerID != nil {
		s.ContainerID = *containerID
	}
	if stateError != nil {
		s.Error = *stateError
	}

	return &s, nil
}

func (r *ServiceRepo) scanStateFromRows(rows pgx.Rows) (*domain.ServiceState, error) {
	var s domain.ServiceState
	var containerID, stateError *string

	err := rows.Scan(
		&s.ID,
		&s.DeploymentID,
		&s.ServiceName,
		&s.Status,
		&containerID,
		&s.ExitCode,
		&s.Attempt,
		&stateError,
		&s.QueuedAt,
		&s.StartedAt,
		&s.FinishedAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan service state: %w", err)
	}

	if containerID != nil {
		s.ContainerID = *containerID
	}
	if stateError != nil {
		s.Error = *stateError
	}

	return &s, nil
}
