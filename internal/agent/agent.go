package agent

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
	"github.com/shaiso/Convoy/internal/health"
	"github.com/shaiso/Convoy/internal/mq"
	"github.com/shaiso/Convoy/internal/repo"
	"github.com/shaiso/Convoy/internal/runtime"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 5
)

// ServiceStateStore — хранилище состояний сервисов, используемое
// агентом. Реализуется repo.ServiceRepo.
type ServiceStateStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceState, error)
	Update(ctx context.Context, s *domain.ServiceState) error
	ListQueued(ctx context.Context, limit int) ([]domain.ServiceState, error)
}

// Agent выполняет команды запуска и остановки сервисов.
type Agent struct {
	// Repositories
	serviceRepo ServiceStateStore
	deployRepo  *repo.DeploymentRepo
	stackRepo   *repo.StackRepo

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Container runtime
	runtime runtime.Runtime

	// Health probing
	prober *health.Prober

	// Consumer
	consumer *mq.Consumer

	// Supervisors — горутины наблюдения за контейнерами
	// (service_state_id → cancel)
	supervisors map[uuid.UUID]context.CancelFunc
	supMu       sync.Mutex

	// Configuration
	pollInterval time.Duration
	batchSize    int
	env          map[string]string

	// Lifecycle
	logger     *slog.Logger
	rootCtx    context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Agent.
type Config struct {
	// Repositories
	ServiceRepo ServiceStateStore
	DeployRepo  *repo.DeploymentRepo
	StackRepo   *repo.StackRepo

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Runtime — движок контейнеров.
	Runtime runtime.Runtime

	// Prober — цикл ожидания здоровья (опционально; если nil —
	// используется реестр по умолчанию с tcp/http/container проверками).
	Prober *health.Prober

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество сервисов за один poll (default: 50)

	// Env — переменные окружения для подстановки ${VAR} в дескрипторах.
	// По умолчанию — окружение процесса.
	Env map[string]string

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Agent.
func New(cfg Config) *Agent {
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

	prober := cfg.Prober
	if prober == nil {
		prober = health.NewProber(health.DefaultRegistry(cfg.Runtime))
	}

	env := cfg.Env
	if env == nil {
		env = environMap()
	}

	return &Agent{
		serviceRepo:  cfg.ServiceRepo,
		deployRepo:   cfg.DeployRepo,
		stackRepo:    cfg.StackRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		runtime:      cfg.Runtime,
		prober:       prober,
		supervisors:  make(map[uuid.UUID]context.CancelFunc),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		env:          env,
		logger:       logger,
	}
}

// Start запускает Agent.
//
// Запускает:
//   - Consumer для services.apply
//   - Polling горутину для fallback
func (a *Agent) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.rootCtx = ctx
	a.cancelFunc = cancel

	a.logger.Info("starting agent",
		"poll_interval", a.pollInterval,
		"batch_size", a.batchSize,
	)

	// Создаём consumer
	a.consumer = mq.NewConsumer(a.conn, a.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueServicesApply),
		Handler:  a.handleServiceApply,
		Prefetch: defaultPrefetch,
	})

	// Запускаем consumer
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("apply consumer error", "error", err)
		}
	}()

	// Запускаем polling
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pollLoop(ctx)
	}()

	a.logger.Info("agent started")
	return nil
}

// Stop останавливает Agent.
func (a *Agent) Stop() {
	a.stoppedMu.Lock()
	a.stopped = true
	a.stoppedMu.Unlock()

	a.logger.Info("stopping agent...")

	if a.cancelFunc != nil {
		a.cancelFunc()
	}

	if a.consumer != nil {
		a.consumer.Stop()
	}

	// Ждём завершения горутин (включая supervisors)
	a.wg.Wait()

	a.logger.Info("agent stopped")
}

// IsStopped проверяет, остановлен ли Agent.
func (a *Agent) IsStopped() bool {
	a.stoppedMu.RLock()
	defer a.stoppedMu.RUnlock()
	return a.stopped
}

// pollLoop — цикл polling для fallback.
func (a *Agent) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем команды,
	// потерянные пока были выключены)
	a.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling: подхватывает QUEUED сервисы,
// для которых команда из очереди потерялась.
func (a *Agent) poll(ctx context.Context) {
	states, err := a.serviceRepo.ListQueued(ctx, a.batchSize)
	if err != nil {
		a.logger.Error("failed to list queued services", "error", err)
		return
	}

	if len(states) == 0 {
		return
	}

	a.logger.Debug("poll found queued services", "count", len(states))

	for i := range states {
		state := &states[i]

		if err := a.processStart(ctx, state.ID); err != nil {
			if errors.Is(err, ErrServiceNotQueued) {
				continue
			}
			a.logger.Error("failed to process service from poll",
				"service_state_id", state.ID,
				"error", err,
			)
		}
	}
}

// registerSupervisor запоминает cancel наблюдателя за сервисом.
func (a *Agent) registerSupervisor(id uuid.UUID, cancel context.CancelFunc) {
	a.supMu.Lock()
	defer a.supMu.Unlock()

	// Старый наблюдатель (например, от предыдущей попытки) отменяется
	if prev, exists := a.supervisors[id]; exists {
		prev()
	}
	a.supervisors[id] = cancel
}

// cancelSupervisor отменяет наблюдателя за сервисом.
func (a *Agent) cancelSupervisor(id uuid.UUID) {
	a.supMu.Lock()
	defer a.supMu.Unlock()

	if cancel, exists := a.supervisors[id]; exists {
		cancel()
		delete(a.supervisors, id)
	}
}

// removeSupervisor удаляет наблюдателя из реестра.
func (a *Agent) removeSupervisor(id uuid.UUID) {
	a.supMu.Lock()
	defer a.supMu.Unlock()
	delete(a.supervisors, id)
}

// SupervisedCount возвращает количество наблюдаемых сервисов.
func (a *Agent) SupervisedCount() int {
	a.supMu.Lock()
	defer a.supMu.Unlock()
	return len(a.supervisors)
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
