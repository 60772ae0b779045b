// Convoy Agent — выполняет команды над контейнерами на узле.
//
// Agent:
//   - Получает команды запуска/остановки сервисов из RabbitMQ
//   - Создаёт сети, тома и контейнеры через Docker Engine API
//   - Выполняет health-check с бюджетом попыток
//   - Перезапускает упавшие сервисы согласно политике restart
//   - Публикует статусы сервисов обратно оркестратору
//
// Agents масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Convoy/internal/agent"
	"github.com/shaiso/Convoy/internal/mq"
	"github.com/shaiso/Convoy/internal/repo"
	"github.com/shaiso/Convoy/internal/runtime/docker"
	"github.com/shaiso/Convoy/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting convoy-agent")

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
	serviceRepo := repo.NewServiceRepo(pool)
	deployRepo := repo.NewDeploymentRepo(pool)
	stackRepo := repo.NewStackRepo(pool)

	// Docker Engine
	rt, err := docker.New()
	if err != nil {
		logger.Error("failed to connect to docker", "error", err)
		os.Exit(1)
	}
	logger.Info("docker connected")

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

	// Создаём agent
	a := agent.New(agent.Config{
		ServiceRepo: serviceRepo,
		DeployRepo:  deployRepo,
		StackRepo:   stackRepo,
		Publisher:   publisher,
		Conn:        mqConn,
		Runtime:     rt,
		Logger:      logger,
	})

	// Запускаем agent
	if err := a.Start(ctx); err != nil {
		logger.Error("failed to start agent", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("AGENT_PORT"); v != "" {
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

	// Останавливаем agent
	a.Stop()
	logger.Info("convoy-agent stopped")
}
