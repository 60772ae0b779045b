package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Convoy/internal/domain"
)

// StackRepo — репозиторий для работы со stacks и stack_versions.
type StackRepo struct {
	pool *pgxpool.Pool
}

// NewStackRepo создаёт новый StackRepo.
func NewStackRepo(pool *pgxpool.Pool) *StackRepo {
	return &StackRepo{pool: pool}
}

// --- Stack CRUD ---

// Create создаёт новый stack.
func (r *StackRepo) Create(ctx context.Context, stack *domain.Stack) error {
	query := `
		INSERT INTO stacks (id, name, is_active, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query,
		stack.ID,
		stack.Name,
		stack.IsActive,
		stack.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// Имя стека уникально
		return fmt.Errorf("insert stack %q: %w", stack.Name, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert stack: %w", err)
	}
	return nil
}

// GetByID возвращает stack по ID.
func (r *StackRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Stack, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM stacks
		WHERE id = $1
	`
	var stack domain.Stack
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&stack.ID,
		&stack.Name,
		&stack.IsActive,
		&stack.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stack by id: %w", err)
	}
	return &stack, nil
}

// GetByName возвращает stack по имени.
func (r *StackRepo) GetByName(ctx context.Context, name string) (*domain.Stack, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM stacks
		WHERE name = $1
	`
	var stack domain.Stack
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&stack.ID,
		&stack.Name,
		&stack.IsActive,
		&stack.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stack by name: %w", err)
	}
	return &stack, nil
}

// List возвращает список всех stacks.
func (r *StackRepo) List(ctx context.Context) ([]domain.Stack, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM stacks
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	defer rows.Close()

	var stacks []domain.Stack
	for rows.Next() {
		var stack domain.Stack
		if err := rows.Scan(
			&stack.ID,
			&stack.Name,
			&stack.IsActive,
			&stack.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stack: %w", err)
		}
		stacks = append(stacks, stack)
	}
	return stacks, rows.Err()
}

// Update обновляет stack.
func (r *StackRepo) Update(ctx context.Context, stack *domain.Stack) error {
	query := `
		UPDATE stacks
		SET name = $2, is_active = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, stack.ID, stack.Name, stack.IsActive)
	if err != nil {
		return fmt.Errorf("update stack: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет stack (каскадно удалит versions, deployments, schedules).
func (r *StackRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM stacks WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete stack: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- StackVersion CRUD ---

// CreateVersion создаёт новую версию stack.
// Версия автоматически инкрементируется.
func (r *StackRepo) CreateVersion(ctx context.Context, stackID uuid.UUID, spec domain.StackSpec) (*domain.StackVersion, error) {
	// Сериализуем spec в JSON
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal spec: %w", err)
	}

	// Получаем следующий номер версии
	var nextVersion int
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM stack_versions
		WHERE stack_id = $1
	`, stackID).Scan(&nextVersion)
	if err != nil {
		return nil, fmt.Errorf("get next version: %w", err)
	}

	// Создаём версию
	var version domain.StackVersion
	err = r.pool.QueryRow(ctx, `
		INSERT INTO stack_versions (stack_id, version, spec, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING stack_id, version, spec, created_at
	`, stackID, nextVersion, specJSON).Scan(
		&version.StackID,
		&version.Version,
		&specJSON,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert stack version: %w", err)
	}

	// Десериализуем spec обратно
	if err := json.Unmarshal(specJSON, &version.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}

	return &version, nil
}

// GetVersion возвращает конкретную версию stack.
func (r *StackRepo) GetVersion(ctx context.Context, stackID uuid.UUID, version int) (*domain.StackVersion, error) {
	query := `
		SELECT stack_id, version, spec, created_at
		FROM stack_versions
		WHERE stack_id = $1 AND version = $2
	`
	var sv domain.StackVersion
	var specJSON []byte
	err := r.pool.QueryRow(ctx, query, stackID, version).Scan(
		&sv.StackID,
		&sv.Version,
		&specJSON,
		&sv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stack version: %w", err)
	}

	if err := json.Unmarshal(specJSON, &sv.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}

	return &sv, nil
}

// GetLatestVersion возвращает последнюю версию stack.
func (r *StackRepo) GetLatestVersion(ctx context.Context, stackID uuid.UUID) (*domain.StackVersion, error) {
	query := `
		SELECT stack_id, version, spec, created_at
		FROM stack_versions
		WHERE stack_id = $1
		ORDER BY version DESC
		LIMIT 1
	`
	var sv domain.StackVersion
	var specJSON []byte
	err := r.pool.QueryRow(ctx, query, stackID).Scan(
		&sv.StackID,
		&sv.Version,
		&specJSON,
		&sv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest stack version: %w", err)
	}

	if err := json.Unmarshal(specJSON, &sv.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}

	return &sv, nil
}

// ListVersions возвращает все версии stack.
func (r *StackRepo) ListVersions(ctx context.Context, stackID uuid.UUID) ([]domain.StackVersion, error) {
	query := `
		SELECT stack_id, version, spec, created_at
		FROM stack_versions
		WHERE stack_id = $1
		ORDER BY version DESC
	`
	rows, err := r.pool.Query(ctx, query, stackID)
	if err != nil {
		return nil, fmt.Errorf("list stack versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.StackVersion
	for rows.Next() {
		var sv domain.StackVersion
		var specJSON []byte
		if err := rows.Scan(
			&sv.StackID,
			&sv.Version,
			&specJSON,
			&sv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stack version: %w", err)
		}

		if err := json.Unmarshal(specJSON, &sv.Spec); err != nil {
			return nil, fmt.Errorf("unmarshal spec: %w", err)
		}

		versions = append(versions, sv)
	}
	return versions, rows.Err()
}
