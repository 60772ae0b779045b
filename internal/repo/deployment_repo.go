package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Convoy/internal/domain"
)

// DeploymentRepo — репозиторий для работы с deployments.
type DeploymentRepo struct {
	pool *pgxpool.Pool
}

// NewDeploymentRepo создаёт новый DeploymentRepo.
func NewDeploymentRepo(pool *pgxpool.Pool) *DeploymentRepo {
	return &DeploymentRepo{pool: pool}
}

// Create создаёт новое развёртывание.
func (r *DeploymentRepo) Create(ctx context.Context, d *domain.Deployment) error {
	inputsJSON, err := json.Marshal(d.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}

	query := `
		INSERT INTO deployments (id, stack_id, version, status, inputs, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		d.ID,
		d.StackID,
		d.Version,
		d.Status,
		inputsJSON,
		nullString(d.IdempotencyKey),
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

// GetByID возвращает развёртывание по ID.
func (r *DeploymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deployment, error) {
	query := `
		SELECT id, stack_id, version, status, inputs, started_at, finished_at,
		       error, idempotency_key, created_at
		FROM deployments
		WHERE id = $1
	`
	return r.scanDeployment(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает развёртывание по ключу идемпотентности.
func (r *DeploymentRepo) GetByIdempotencyKey(ctx context.Context, stackID uuid.UUID, key string) (*domain.Deployment, error) {
	query := `
		SELECT id, stack_id, version, status, inputs, started_at, finished_at,
		       error, idempotency_key, created_at
		FROM deployments
		WHERE stack_id = $1 AND idempotency_key = $2
	`
	return r.scanDeployment(r.pool.QueryRow(ctx, query, stackID, key))
}

// List возвращает список развёртываний с фильтрацией.
func (r *DeploymentRepo) List(ctx context.Context, filter DeploymentFilter) ([]domain.Deployment, error) {
	query := `
		SELECT id, stack_id, version, status, inputs, started_at, finished_at,
		       error, idempotency_key, created_at
		FROM deployments
		WHERE ($1::uuid IS NULL OR stack_id = $1)
		  AND ($2::text IS NULL OR status = $2::deployment_status)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.StackID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []domain.Deployment
	for rows.Next() {
		d, err := r.scanDeploymentFromRows(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

// Update обновляет развёртывание.
func (r *DeploymentRepo) Update(ctx context.Context, d *domain.Deployment) error {
	query := `
		UPDATE deployments
		SET status = $2, started_at = $3, finished_at = $4, error = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Status,
		d.StartedAt,
		d.FinishedAt,
		nullString(d.Error),
	)
	if err != nil {
		return fmt.Errorf("update deployment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending возвращает развёртывания в статусе PENDING.
// Используется оркестратором как fallback, если сообщение из
// очереди потерялось.
func (r *DeploymentRepo) ListPending(ctx context.Context, limit int) ([]domain.Deployment, error) {
	query := `
		SELECT id, stack_id, version, status, inputs, started_at, finished_at,
		       error, idempotency_key, created_at
		FROM deployments
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending deployments: %w", err)
	}
	defer rows.Close()

	var deployments []domain.Deployment
	for rows.Next() {
		d, err := r.scanDeploymentFromRows(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

// ListActive возвращает незавершённые развёртывания (STARTING, RUNNING,
// DEGRADED, STOPPING). Используется для восстановления состояния
// оркестратора после рестарта.
func (r *DeploymentRepo) ListActive(ctx context.Context) ([]domain.Deployment, error) {
	query := `
		SELECT id, stack_id, version, status, inputs, started_at, finished_at,
		       error, idempotency_key, created_at
		FROM deployments
		WHERE status IN ('STARTING', 'RUNNING', 'DEGRADED', 'STOPPING')
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active deployments: %w", err)
	}
	defer rows.Close()

	var deployments []domain.Deployment
	for rows.Next() {
		d, err := r.scanDeploymentFromRows(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

// --- Helpers ---

// DeploymentFilter — параметры фильтрации развёртываний.
type DeploymentFilter struct {
	StackID *uuid.UUID
	Status  domain.DeploymentStatus
	Limit   int
	Offset  int
}

// scanDeployment сканирует одну строку в Deployment.
func (r *DeploymentRepo) scanDeployment(row pgx.Row) (*domain.Deployment, error) {
	var d domain.Deployment
	var inputsJSON []byte
	var idempotencyKey *string
	var deployError *string

	err := row.Scan(
		&d.ID,
		&d.StackID,
		&d.Version,
		&d.Status,
		&inputsJSON,
		&d.StartedAt,
		&d.FinishedAt,
		&deployError,
		&idempotencyKey,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan deployment: %w", err)
	}

	if inputsJSON != nil {
		if err := json.Unmarshal(inputsJSON, &d.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}

	if idempotencyKey != nil {
		d.IdempotencyKey = *idempotencyKey
	}
	if deployError != nil {
		d.Error = *deployError
	}

	return &d, nil
}

// scanDeploymentFromRows сканирует строку из rows в Deployment.
func (r *DeploymentRepo) scanDeploymentFromRows(rows pgx.Rows) (*domain.Deployment, error) {
	var d domain.Deployment
	var inputsJSON []byte
	var idempotencyKey *string
	var deployError *string

	err := rows.Scan(
		&d.ID,
		&d.StackID,
		&d.Version,
		&d.Status,
		&inputsJSON,
		&d.StartedAt,
		&d.FinishedAt,
		&deployError,
		&idempotencyKey,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan deployment: %w", err)
	}

	if inputsJSON != nil {
		if err := json.Unmarshal(inputsJSON, &d.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}

	if idempotencyKey != nil {
		d.IdempotencyKey = *idempotencyKey
	}
	if deployError != nil {
		d.Error = *deployError
	}

	return &d, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
