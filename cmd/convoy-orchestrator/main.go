// Convoy Orchestrator — управляет жизненным циклом развёртываний.
//
// Orchestrator:
//   - Получает новые развёртывания из RabbitMQ
//   - Парсит дескриптор stack и строит DAG зависимостей
//   - Отправляет команды запуска агентам в топологическом порядке
//   - Отслеживает статусы сервисов и финализирует развёртывания
//   - Останавливает развёртывания в обратном порядке
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Convoy/internal/mq"
	"github.com/shaiso/Convoy/internal/orchestrator"
	"github.com/shaiso/Convoy/internal/repo"
	"github.com/shaiso/Convoy/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting convoy-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	deployRepo := repo.NewDeploymentRepo(pool)
	stackRepo := repo.NewStackRepo(pool)
	serviceRepo := repo.NewServiceRepo(pool)

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection

	mqConn, err = mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Создаём orchestrator
	orch := orchestrator.New(orchestrator.Config{
		DeployRepo:  deployRepo,
		StackRepo:   stackRepo,
		ServiceRepo: serviceRepo,
		Publisher:   publisher,
		Conn:        mqConn,
		Logger:      logger,
	})

	// Запускаем orchestrator
	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ORCH_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем orchestrator
	orch.Stop()
	logger.Info("convoy-orchestrator stopped")
}
