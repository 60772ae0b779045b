package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/telemetry"
)

// Prober — цикл ожидания здоровья сервиса.
//
// Выполняет попытки проверки с фиксированным интервалом, пока
// сервис не станет здоров или не исчерпается бюджет попыток.
type Prober struct {
	registry *Registry
}

// NewProber создаёт Prober с данным реестром проверок.
func NewProber(registry *Registry) *Prober {
	return &Prober{registry: registry}
}

// WaitHealthy ждёт, пока сервис не пройдёт проверку здоровья.
//
// Порядок работы:
//  1. Пауза start_period (время на прогрев сервиса)
//  2. Попытка проверки с таймаутом timeout
//  3. При неудаче — пауза interval и следующая попытка
//  4. После retries неудачных попыток — ErrBudgetExhausted
//
// Исчерпание бюджета фатально: вызывающая сторона помечает сервис
// FAILED, и зависимая цепочка блокируется.
func (p *Prober) WaitHealthy(ctx context.Context, req *Request, hc *domain.HealthcheckDef) error {
	probe, err := p.registry.Get(hc.Type)
	if err != nil {
		return err
	}

	logger := telemetry.FromContext(ctx).With(
		slog.String("service", req.Service),
		slog.String("probe", hc.Type),
		slog.String("target", req.Target),
	)

	// Пауза на прогрев
	if start := hc.StartPeriod(); start > 0 {
		logger.Debug("waiting start period", slog.Duration("start_period", start))
		if err := sleep(ctx, start); err != nil {
			return err
		}
	}

	budget := hc.RetryBudget()
	interval := hc.Interval()
	timeout := hc.Timeout()

	var lastErr error
	for attempt := 1; attempt <= budget; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = probe.Check(attemptCtx, req)
		cancel()

		if lastErr == nil {
			logger.Info("health check passed", slog.Int("attempt", attempt))
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrProbeCancelled, ctx.Err())
		}

		logger.Debug("health check attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("budget", budget),
			slog.String("error", lastErr.Error()))

		if attempt < budget {
			if err := sleep(ctx, interval); err != nil {
				return err
			}
		}
	}

	logger.Warn("health check budget exhausted",
		slog.Int("budget", budget),
		slog.String("last_error", lastErr.Error()))

	return fmt.Errorf("%w: %d attempts for service %s: %v",
		ErrBudgetExhausted, budget, req.Service, lastErr)
}

// sleep ждёт duration с учётом отмены контекста.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrProbeCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
