package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/mq"
	"github.com/shaiso/Convoy/internal/repo"
)

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	scheduleRepo *repo.ScheduleRepo
	deployRepo   *repo.DeploymentRepo
	stackRepo    *repo.StackRepo
	publisher    *mq.Publisher
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Scheduler.
type Config struct {
	ScheduleRepo *repo.ScheduleRepo
	DeployRepo   *repo.DeploymentRepo
	StackRepo    *repo.StackRepo
	Publisher    *mq.Publisher
	Logger       *slog.Logger
	BatchSize    int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		scheduleRepo: cfg.ScheduleRepo,
		deployRepo:   cfg.DeployRepo,
		stackRepo:    cfg.StackRepo,
		publisher:    cfg.Publisher,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule создаёт развёртывание последней версии stack
// 3. Обновляет next_due_at
// 4. Публикует deployment.requested в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	// 1. Находим due schedules
	schedules, err := s.scheduleRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	// 2. Обрабатываем каждый schedule
	var processed, created int
	for i := range schedules {
		sched := &schedules[i]

		deploymentCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}

		processed++
		if deploymentCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"deployments_created", created,
	)

	return nil
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если развёртывание было создано (не было дубликатом).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	// 1. Проверяем, что stack существует, активен и имеет версии
	stack, err := s.stackRepo.GetByID(ctx, sched.StackID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("stack not found for schedule, skipping",
				"schedule_id", sched.ID,
				"stack_id", sched.StackID,
			)
			return false, nil
		}
		return false, fmt.Errorf("get stack: %w", err)
	}

	if !stack.IsActive {
		s.logger.Debug("stack inactive, skipping schedule",
			"schedule_id", sched.ID,
			"stack_id", sched.StackID,
		)
		return false, nil
	}

	version, err := s.stackRepo.GetLatestVersion(ctx, sched.StackID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("stack has no versions, skipping schedule",
				"schedule_id", sched.ID,
				"stack_id", sched.StackID,
			)
			return false, nil
		}
		return false, fmt.Errorf("get latest stack version: %w", err)
	}

	// 2. Формируем idempotency key: "{schedule_id}_{next_due_at_unix}".
	// Это гарантирует, что для одного schedule и конкретного времени
	// будет создано только одно развёртывание
	idempKey := fmt.Sprintf("%s_%d", sched.ID, sched.NextDueAt.Unix())

	// 3. Проверяем, не создано ли уже развёртывание (idempotency)
	existing, err := s.deployRepo.GetByIdempotencyKey(ctx, sched.StackID, idempKey)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Errorf("check idempotency: %w", err)
	}

	var deploymentCreated bool
	var deploymentID uuid.UUID

	if existing != nil {
		// Развёртывание уже существует — просто обновляем next_due_at
		s.logger.Debug("deployment already exists (idempotency)",
			"schedule_id", sched.ID,
			"deployment_id", existing.ID,
			"idempotency_key", idempKey,
		)
		deploymentID = existing.ID
		deploymentCreated = false
	} else {
		// 4. Создаём новое развёртывание
		deployment := &domain.Deployment{
			ID:             uuid.New(),
			StackID:        sched.StackID,
			Version:        version.Version,
			Status:         domain.DeploymentStatusPending,
			Inputs:         sched.Inputs,
			IdempotencyKey: idempKey,
			CreatedAt:      now,
		}

		if err := s.deployRepo.Create(ctx, deployment); err != nil {
			return false, fmt.Errorf("create deployment: %w", err)
		}

		s.logger.Info("created deployment from schedule",
			"deployment_id", deployment.ID,
			"schedule_id", sched.ID,
			"schedule_name", sched.Name,
			"stack_id", sched.StackID,
			"version", version.Version,
		)

		deploymentID = deployment.ID
		deploymentCreated = true
	}

	// 5. Вычисляем следующее время срабатывания
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.Error("failed to calculate next due",
			"schedule_id", sched.ID,
			"error", err,
		)
		// Расписание некорректное — лучше не трогать next_due_at
		return deploymentCreated, nil
	}

	// 6. Обновляем schedule
	sched.RecordRun(deploymentID, nextDue)
	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return deploymentCreated, fmt.Errorf("update schedule: %w", err)
	}

	// 7. Публикуем событие в RabbitMQ (если publisher настроен
	// и развёртывание создано)
	if s.publisher != nil && deploymentCreated {
		if err := s.publisher.PublishDeploymentRequested(ctx, deploymentID); err != nil {
			// Не фатальная ошибка — развёртывание уже создано в БД,
			// оркестратор заберёт его через polling
			s.logger.Warn("failed to publish deployment.requested",
				"deployment_id", deploymentID,
				"error", err,
			)
		}
	}

	return deploymentCreated, nil
}
