package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/mq"
	"github.com/shaiso/Convoy/internal/repo"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// Orchestrator управляет развёртываниями stacks.
//
// Orchestrator — центральный компонент системы, который:
//   - Получает запросы на развёртывание из RabbitMQ (event-driven)
//   - Периодически проверяет PENDING и STOPPING развёртывания в БД
//     (polling fallback)
//   - Строит DAG сервисов для каждого развёртывания
//   - Диспатчит команды запуска агенту, соблюдая условия на рёбрах
//   - Отслеживает статусы сервисов и каскадные отказы
//   - Финализирует развёртывания (RUNNING/FAILED/STOPPED)
type Orchestrator struct {
	// Repositories
	deployRepo  *repo.DeploymentRepo
	stackRepo   *repo.StackRepo
	serviceRepo *repo.ServiceRepo

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Active deployments — развёртывания в обработке (ID → state)
	activeDeployments map[uuid.UUID]*DeploymentState
	mu                sync.RWMutex

	// Consumers
	requestConsumer *mq.Consumer
	statusConsumer  *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int
	env          map[string]string

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Repositories
	DeployRepo  *repo.DeploymentRepo
	StackRepo   *repo.StackRepo
	ServiceRepo *repo.ServiceRepo

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество развёртываний за один poll (default: 100)

	// Env — переменные окружения для подстановки ${VAR} в дескрипторах.
	// По умолчанию — окружение процесса.
	Env map[string]string

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	env := cfg.Env
	if env == nil {
		env = environMap()
	}

	return &Orchestrator{
		deployRepo:        cfg.DeployRepo,
		stackRepo:         cfg.StackRepo,
		serviceRepo:       cfg.ServiceRepo,
		publisher:         cfg.Publisher,
		conn:              cfg.Conn,
		activeDeployments: make(map[uuid.UUID]*DeploymentState),
		pollInterval:      pollInterval,
		batchSize:         batchSize,
		env:               env,
		logger:            logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для deployments.requested
//   - Consumer для services.status
//   - Polling горутину для fallback
//
// Перед стартом восстанавливает незавершённые развёртывания из БД.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
	)

	// Восстанавливаем активные развёртывания после рестарта
	if err := o.recoverActive(ctx); err != nil {
		o.logger.Error("failed to recover active deployments", "error", err)
	}

	// Создаём consumers
	o.requestConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueDeploymentsRequested),
		Handler:  o.handleDeploymentRequested,
		Prefetch: 10,
	})

	o.statusConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueServicesStatus),
		Handler:  o.handleServiceStatus,
		Prefetch: 10,
	})

	// Запускаем request consumer
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.requestConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("request consumer error", "error", err)
		}
	}()

	// Запускаем status consumer
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.statusConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("status consumer error", "error", err)
		}
	}()

	// Запускаем polling
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	// Останавливаем consumers
	if o.requestConsumer != nil {
		o.requestConsumer.Stop()
	}
	if o.statusConsumer != nil {
		o.statusConsumer.Stop()
	}

	// Ждём завершения горутин
	o.wg.Wait()

	o.logger.Info("orchestrator stopped",
		"active_deployments", len(o.activeDeployments),
	)
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// recoverActive восстанавливает незавершённые развёртывания после рестарта.
// Для STARTING развёртываний дополнительно диспатчит сервисы, которые
// могли стать готовыми пока оркестратор был выключен.
func (o *Orchestrator) recoverActive(ctx context.Context) error {
	deployments, err := o.deployRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	for i := range deployments {
		d := &deployments[i]

		state, err := o.restoreDeploymentState(ctx, d.ID)
		if err != nil {
			o.logger.Error("failed to restore deployment",
				"deployment_id", d.ID,
				"error", err,
			)
			continue
		}
		if state == nil {
			continue
		}

		if d.Status == domain.DeploymentStatusStarting {
			if err := o.dispatchReadyServices(ctx, state); err != nil {
				o.logger.Error("failed to dispatch after recovery",
					"deployment_id", d.ID,
					"error", err,
				)
			}
		}
	}

	if len(deployments) > 0 {
		o.logger.Info("recovered active deployments", "count", len(deployments))
	}

	return nil
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем развёртывания,
	// созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling: подхватывает PENDING развёртывания
// и инициирует остановку для STOPPING.
func (o *Orchestrator) poll(ctx context.Context) {
	pending, err := o.deployRepo.ListPending(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list pending deployments", "error", err)
		return
	}

	for i := range pending {
		d := &pending[i]

		if o.isDeploymentActive(d.ID) {
			continue
		}

		if err := o.processDeployment(ctx, d.ID); err != nil {
			o.logger.Error("failed to process deployment from poll",
				"deployment_id", d.ID,
				"error", err,
			)
		}
	}

	// STOPPING развёртывания: API переводит статус в БД, оркестратор
	// разгоняет остановку
	stopping, err := o.deployRepo.List(ctx, repo.DeploymentFilter{
		Status: domain.DeploymentStatusStopping,
		Limit:  o.batchSize,
	})
	if err != nil {
		o.logger.Error("failed to list stopping deployments", "error", err)
		return
	}

	for i := range stopping {
		d := &stopping[i]

		if err := o.processStop(ctx, d.ID); err != nil {
			o.logger.Error("failed to process stop from poll",
				"deployment_id", d.ID,
				"error", err,
			)
		}
	}
}

// isDeploymentActive проверяет, находится ли развёртывание в обработке.
func (o *Orchestrator) isDeploymentActive(id uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.activeDeployments[id]
	return exists
}

// getActiveDeployment возвращает активный DeploymentState.
func (o *Orchestrator) getActiveDeployment(id uuid.UUID) *DeploymentState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.activeDeployments[id]
}

// addActiveDeployment добавляет развёртывание в активные.
func (o *Orchestrator) addActiveDeployment(state *DeploymentState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeDeployments[state.DeploymentID()]; exists {
		return ErrDeploymentAlreadyActive
	}

	o.activeDeployments[state.DeploymentID()] = state
	return nil
}

// removeActiveDeployment удаляет развёртывание из активных.
func (o *Orchestrator) removeActiveDeployment(id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeDeployments, id)
}

// ActiveDeploymentsCount возвращает количество активных развёртываний.
func (o *Orchestrator) ActiveDeploymentsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeDeployments)
}

// GetActiveDeploymentStats возвращает статистику по активному развёртыванию.
func (o *Orchestrator) GetActiveDeploymentStats(id uuid.UUID) (DeploymentStats, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, exists := o.activeDeployments[id]
	if !exists {
		return DeploymentStats{}, false
	}

	return state.Stats(), true
}

// environMap возвращает окружение процесса в виде map.
func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
