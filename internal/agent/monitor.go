package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/health"
)

// Параметры backoff между перезапусками сервиса.
const (
	restartInitialDelay = time.Second
	restartMaxDelay     = 30 * time.Second
)

// runService выполняет полный жизненный цикл сервиса: создание
// контейнера, health-check и наблюдение с перезапусками.
//
// Каждая попытка (включая перезапуск) проходит полный цикл: новый
// контейнер, health-check, публикация статусов. Цикл завершается,
// когда сервис дошёл до терминального состояния без права на
// перезапуск, либо когда получена команда stop (отмена supervisor).
func (a *Agent) runService(ctx context.Context, state *domain.ServiceState, rs *resolvedService) {
	superviseCtx, cancel := context.WithCancel(ctx)
	a.registerSupervisor(state.ID, cancel)
	defer a.removeSupervisor(state.ID)
	defer cancel()

	for {
		state.MarkStarting()
		if err := a.serviceRepo.Update(superviseCtx, state); err != nil {
			a.logger.Error("failed to update service to starting",
				"service_state_id", state.ID, "error", err)
			return
		}
		a.publishStatus(superviseCtx, state)

		a.logger.Info("starting service",
			"service_state_id", state.ID,
			"service", state.ServiceName,
			"attempt", state.Attempt,
		)

		if err := a.ensureResources(superviseCtx, rs); err != nil {
			_ = a.failService(superviseCtx, state, err.Error(), nil)
			return
		}

		containerID, err := a.runtime.CreateContainer(superviseCtx, a.buildContainerSpec(rs, state))
		if err != nil {
			_ = a.failService(superviseCtx, state, fmt.Sprintf("create container: %v", err), nil)
			return
		}

		if err := a.runtime.StartContainer(superviseCtx, containerID); err != nil {
			_ = a.failService(superviseCtx, state, fmt.Sprintf("start container: %v", err), nil)
			return
		}

		if rs.Def.Oneshot {
			a.runOneshot(superviseCtx, state, containerID)
			return
		}

		state.MarkRunning(containerID)
		if err := a.serviceRepo.Update(superviseCtx, state); err != nil {
			a.logger.Error("failed to update service to running",
				"service_state_id", state.ID, "error", err)
			return
		}
		a.publishStatus(superviseCtx, state)

		// Health-check с бюджетом попыток
		if hc := rs.Def.Healthcheck; hc != nil {
			req := &health.Request{
				Service:     state.ServiceName,
				Target:      hc.Target,
				ContainerID: containerID,
			}

			err := a.prober.WaitHealthy(superviseCtx, req, hc)
			switch {
			case errors.Is(err, health.ErrProbeCancelled):
				return

			case err != nil:
				// Бюджет исчерпан — сервис фатально нездоров
				_ = a.runtime.StopContainer(superviseCtx, containerID)
				_ = a.failService(superviseCtx, state, fmt.Sprintf("health check: %v", err), nil)
				return
			}

			state.MarkHealthy()
			if err := a.serviceRepo.Update(superviseCtx, state); err != nil {
				a.logger.Error("failed to update service to healthy",
					"service_state_id", state.ID, "error", err)
				return
			}
			a.publishStatus(superviseCtx, state)
		}

		// Наблюдаем за контейнером до завершения
		exitCode, err := a.runtime.WaitContainer(superviseCtx, containerID)
		if superviseCtx.Err() != nil {
			// Команда stop — остановку выполняет processStop
			return
		}
		if err != nil {
			_ = a.failService(superviseCtx, state, fmt.Sprintf("wait container: %v", err), nil)
			return
		}

		// Контейнер завершился сам — для long-running это отказ
		msg := fmt.Sprintf("container exited with code %d", exitCode)
		if !shouldRestart(rs.Def.RestartPolicyOrDefault(), exitCode) {
			_ = a.failService(superviseCtx, state, msg, &exitCode)
			return
		}

		// Политика позволяет перезапуск: FAILED не публикуется,
		// зависимые сервисы продолжают ждать восстановления
		state.MarkRestarting(msg, &exitCode)
		if err := a.serviceRepo.Update(superviseCtx, state); err != nil {
			a.logger.Error("failed to record service exit",
				"service_state_id", state.ID, "error", err)
			return
		}
		a.publishStatus(superviseCtx, state)

		serviceRestarts.Inc()
		delay := restartBackoff(state.Attempt)
		a.logger.Info("restarting service",
			"service_state_id", state.ID,
			"service", state.ServiceName,
			"attempt", state.Attempt,
			"delay", delay,
		)

		select {
		case <-superviseCtx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runOneshot дожидается завершения oneshot-сервиса.
//
// Код выхода 0 — COMPLETED, контейнер убирается. Ненулевой код
// фатален: перезапуск oneshot означал бы повторное выполнение
// задачи с неизвестными побочными эффектами.
func (a *Agent) runOneshot(ctx context.Context, state *domain.ServiceState, containerID string) {
	state.MarkRunning(containerID)
	if err := a.serviceRepo.Update(ctx, state); err != nil {
		a.logger.Error("failed to update oneshot to running",
			"service_state_id", state.ID, "error", err)
		return
	}
	a.publishStatus(ctx, state)

	exitCode, err := a.runtime.WaitContainer(ctx, containerID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		_ = a.failService(ctx, state, fmt.Sprintf("wait container: %v", err), nil)
		return
	}

	if exitCode != 0 {
		_ = a.failService(ctx, state, fmt.Sprintf("oneshot exited with code %d", exitCode), &exitCode)
		return
	}

	state.MarkCompleted(0)
	if err := a.serviceRepo.Update(ctx, state); err != nil {
		a.logger.Error("failed to update oneshot to completed",
			"service_state_id", state.ID, "error", err)
		return
	}

	a.logger.Info("oneshot completed",
		"service_state_id", state.ID,
		"service", state.ServiceName,
	)

	a.publishStatus(ctx, state)

	if err := a.runtime.RemoveContainer(ctx, containerID); err != nil {
		a.logger.Warn("failed to remove oneshot container",
			"container_id", containerID, "error", err)
	}
}

// shouldRestart определяет, нужно ли перезапускать сервис после выхода.
func shouldRestart(policy domain.RestartPolicy, exitCode int) bool {
	switch policy {
	case domain.RestartAlways:
		return true
	case domain.RestartOnFailure:
		return exitCode != 0
	default:
		return false
	}
}

// restartBackoff вычисляет задержку перед перезапуском.
// Exponential: 1s, 2s, 4s, ... с потолком 30s.
func restartBackoff(attempt int) time.Duration {
	delay := restartInitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= restartMaxDelay {
			return restartMaxDelay
		}
	}
	return delay
}
