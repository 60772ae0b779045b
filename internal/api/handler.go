package api

import (
	"log/slog"

	"github.com/shaiso/Convoy/internal/mq"
	"github.com/shaiso/Convoy/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	stackRepo    *repo.StackRepo
	deployRepo   *repo.DeploymentRepo
	serviceRepo  *repo.ServiceRepo
	scheduleRepo *repo.ScheduleRepo
	publisher    *mq.Publisher
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	StackRepo    *repo.StackRepo
	DeployRepo   *repo.DeploymentRepo
	ServiceRepo  *repo.ServiceRepo
	ScheduleRepo *repo.ScheduleRepo
	Publisher    *mq.Publisher
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		stackRepo:    cfg.StackRepo,
		deployRepo:   cfg.DeployRepo,
		serviceRepo:  cfg.ServiceRepo,
		scheduleRepo: cfg.ScheduleRepo,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
	}
}
