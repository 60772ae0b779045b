package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/engine"
	"github.com/shaiso/Convoy/internal/mq"
	"github.com/shaiso/Convoy/internal/repo"
)

// handleDeploymentRequested обрабатывает запрос на новое развёртывание.
func (o *Orchestrator) handleDeploymentRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.DeploymentRequestedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse deployment.requested payload", "error", err)
		return err
	}

	o.logger.Debug("received deployment.requested event", "deployment_id", payload.DeploymentID)

	if o.isDeploymentActive(payload.DeploymentID) {
		o.logger.Debug("deployment already active, skipping", "deployment_id", payload.DeploymentID)
		return nil
	}

	if err := o.processDeployment(ctx, payload.DeploymentID); err != nil {
		if errors.Is(err, ErrDeploymentNotPending) || errors.Is(err, ErrDeploymentAlreadyActive) {
			o.logger.Debug("deployment not processed", "deployment_id", payload.DeploymentID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process deployment", "deployment_id", payload.DeploymentID, "error", err)
		return err
	}

	return nil
}

// handleServiceStatus обрабатывает событие о смене статуса сервиса.
func (o *Orchestrator) handleServiceStatus(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.ServiceStatusPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse service.status payload", "error", err)
		return err
	}

	o.logger.Debug("received service.status event",
		"deployment_id", payload.DeploymentID,
		"service", payload.ServiceName,
		"status", payload.Status,
		"attempt", payload.Attempt,
	)

	if err := o.processServiceStatus(ctx, payload); err != nil {
		o.logger.Error("failed to process service status",
			"deployment_id", payload.DeploymentID,
			"service", payload.ServiceName,
			"error", err,
		)
		return err
	}

	return nil
}

// processDeployment обрабатывает новое развёртывание.
func (o *Orchestrator) processDeployment(ctx context.Context, deploymentID uuid.UUID) error {
	// 1. Загружаем развёртывание из БД
	deployment, err := o.deployRepo.GetByID(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrDeploymentNotFound, deploymentID)
		}
		return fmt.Errorf("get deployment: %w", err)
	}

	// 2. Проверяем статус
	if deployment.Status != domain.DeploymentStatusPending {
		return ErrDeploymentNotPending
	}

	// 3. Загружаем версию stack с дескриптором
	version, err := o.stackRepo.GetVersion(ctx, deployment.StackID, deployment.Version)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return o.failDeployment(ctx, deployment,
				fmt.Sprintf("stack version not found: %s v%d", deployment.StackID, deployment.Version))
		}
		return fmt.Errorf("get stack version: %w", err)
	}

	// 4. Создаём DeploymentState и инициализируем
	// (валидация, интерполяция, DAG)
	state := NewDeploymentState(deployment, version)
	if err := state.Initialize(o.env); err != nil {
		return o.failDeployment(ctx, deployment, fmt.Sprintf("initialization failed: %v", err))
	}

	// 5. Добавляем в активные
	if err := o.addActiveDeployment(state); err != nil {
		return err
	}

	// 6. Переводим развёртывание в STARTING
	deployment.MarkStarting()
	if err := o.deployRepo.Update(ctx, deployment); err != nil {
		o.removeActiveDeployment(deploymentID)
		return fmt.Errorf("update deployment to starting: %w", err)
	}

	// 7. Создаём записи service_states для всех сервисов
	for _, name := range state.DAG.StartOrder() {
		svcState := domain.NewServiceState(deploymentID, name)
		if err := o.serviceRepo.Create(ctx, svcState); err != nil {
			return fmt.Errorf("create service state for %s: %w", name, err)
		}
		state.SetServiceState(name, svcState)
	}

	deploymentsStarted.Inc()
	o.logger.Info("deployment started",
		"deployment_id", deploymentID,
		"stack_id", deployment.StackID,
		"version", deployment.Version,
		"services", state.DAG.Size(),
	)

	// 8. Диспатчим сервисы без зависимостей
	if err := o.dispatchReadyServices(ctx, state); err != nil {
		o.logger.Error("failed to dispatch initial services", "deployment_id", deploymentID, "error", err)
		// Не удаляем из активных — polling повторит попытку
	}

	return nil
}

// processServiceStatus обрабатывает смену статуса сервиса.
func (o *Orchestrator) processServiceStatus(ctx context.Context, payload mq.ServiceStatusPayload) error {
	// 1. Получаем активный DeploymentState, при необходимости
	// восстанавливаем из БД
	state := o.getActiveDeployment(payload.DeploymentID)
	if state == nil {
		var err error
		state, err = o.restoreDeploymentState(ctx, payload.DeploymentID)
		if err != nil {
			return fmt.Errorf("restore deployment state: %w", err)
		}
		if state == nil {
			// Развёртывание завершено или не существует
			o.logger.Debug("deployment not active and cannot restore", "deployment_id", payload.DeploymentID)
			return nil
		}
	}

	if state.DAG.GetNode(payload.ServiceName) == nil {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, payload.ServiceName)
	}

	// 2. Обновляем статус в памяти
	status := domain.ServiceStatus(payload.Status)
	state.SetServiceStatus(payload.ServiceName, status)

	if status == domain.ServiceStatusFailed {
		o.logger.Warn("service failed",
			"deployment_id", payload.DeploymentID,
			"service", payload.ServiceName,
			"error", payload.Error,
			"exit_code", payload.ExitCode,
		)
	}

	// 3. Остановка: ждём, пока все сервисы дойдут до терминала
	if state.IsStopping() {
		if state.AllStopped() {
			return o.finalizeStopped(ctx, state)
		}
		return nil
	}

	// 4. Каскадный отказ: сервисы, у которых зависимость в тупике,
	// уже никогда не стартуют
	if err := o.cascadeFailBlocked(ctx, state); err != nil {
		return err
	}

	// 5. Развёртывание уже в устойчивом статусе — пересчитываем
	// RUNNING ⇄ DEGRADED
	if state.Deployment.Status.IsSteady() {
		return o.recomputeSteadyStatus(ctx, state)
	}

	// 6. Фаза запуска: финализируем, если все сервисы устоялись
	if state.IsSettled() {
		return o.finalizeStartup(ctx, state)
	}

	// 7. Диспатчим сервисы, открытые этим событием
	return o.dispatchReadyServices(ctx, state)
}

// dispatchReadyServices отправляет агенту команды запуска для готовых сервисов.
func (o *Orchestrator) dispatchReadyServices(ctx context.Context, state *DeploymentState) error {
	ready := state.GetReadyServices()
	if len(ready) == 0 {
		return nil
	}

	o.logger.Debug("dispatching ready services",
		"deployment_id", state.DeploymentID(),
		"count", len(ready),
	)

	for _, node := range ready {
		if err := o.dispatchService(ctx, state, node); err != nil {
			o.logger.Error("failed to dispatch service",
				"deployment_id", state.DeploymentID(),
				"service", node.Name,
				"error", err,
			)
			// Продолжаем с остальными
		}
	}

	return nil
}

// dispatchService переводит сервис в QUEUED и публикует команду агенту.
func (o *Orchestrator) dispatchService(ctx context.Context, state *DeploymentState, node *engine.Node) error {
	svcState := state.GetServiceState(node.Name)
	if svcState == nil {
		return fmt.Errorf("%w: no state record for %s", ErrServiceNotFound, node.Name)
	}

	svcState.MarkQueued()
	if err := o.serviceRepo.Update(ctx, svcState); err != nil {
		return fmt.Errorf("update service state: %w", err)
	}
	state.SetServiceStatus(node.Name, domain.ServiceStatusQueued)

	err := o.publisher.PublishServiceApply(ctx, mq.ServiceApplyPayload{
		ServiceStateID: svcState.ID,
		DeploymentID:   state.DeploymentID(),
		ServiceName:    node.Name,
		Action:         mq.ActionStart,
	})
	if err != nil {
		o.logger.Warn("failed to publish service.apply",
			"deployment_id", state.DeploymentID(),
			"service", node.Name,
			"error", err,
		)
		// Запись QUEUED есть в БД — агент подберёт через polling
	}

	servicesDispatched.Inc()
	o.logger.Debug("service dispatched",
		"deployment_id", state.DeploymentID(),
		"service", node.Name,
		"service_state_id", svcState.ID,
	)

	return nil
}

// cascadeFailBlocked помечает FAILED сервисы, которые уже никогда не
// смогут стартовать. Повторяет проход, пока каскад не затухнет:
// отказ блокированного сервиса может заблокировать следующие.
func (o *Orchestrator) cascadeFailBlocked(ctx context.Context, state *DeploymentState) error {
	for {
		blocked := state.GetBlockedServices()
		if len(blocked) == 0 {
			return nil
		}

		for _, node := range blocked {
			reason := o.blockReason(state, node)
			o.logger.Warn("service blocked by failed dependency",
				"deployment_id", state.DeploymentID(),
				"service", node.Name,
				"reason", reason,
			)

			state.SetServiceStatus(node.Name, domain.ServiceStatusFailed)

			svcState := state.GetServiceState(node.Name)
			if svcState == nil {
				continue
			}
			svcState.MarkFailed(reason, nil)
			if err := o.serviceRepo.Update(ctx, svcState); err != nil {
				return fmt.Errorf("update blocked service %s: %w", node.Name, err)
			}
		}
	}
}

// blockReason формирует текст ошибки для заблокированного сервиса.
func (o *Orchestrator) blockReason(state *DeploymentState, node *engine.Node) string {
	for _, edge := range node.DependsOn {
		depStatus := state.ServiceStatus(edge.From.Name)
		if !depStatus.CanEverSatisfy(edge.Condition) {
			return fmt.Sprintf("dependency %s is %s, condition %s unreachable",
				edge.From.Name, depStatus, edge.Condition)
		}
	}
	return "dependency condition unreachable"
}

// finalizeStartup завершает фазу запуска развёртывания.
//
// Если хотя бы один сервис FAILED — развёртывание FAILED и
// удаляется из активных. Иначе — RUNNING; state остаётся в памяти
// для отслеживания деградации.
func (o *Orchestrator) finalizeStartup(ctx context.Context, state *DeploymentState) error {
	deployment := state.Deployment

	if state.HasFailed() {
		failed := state.FailedServices()
		deployment.MarkFailed(fmt.Sprintf("services failed: %s", strings.Join(failed, ", ")))
		if err := o.deployRepo.Update(ctx, deployment); err != nil {
			return fmt.Errorf("update deployment to failed: %w", err)
		}

		deploymentsFailed.Inc()
		o.logger.Warn("deployment failed",
			"deployment_id", deployment.ID,
			"failed_services", failed,
			"duration", deployment.Duration(),
		)

		o.removeActiveDeployment(deployment.ID)
		return nil
	}

	deployment.MarkRunning()
	if err := o.deployRepo.Update(ctx, deployment); err != nil {
		return fmt.Errorf("update deployment to running: %w", err)
	}

	o.logger.Info("deployment running",
		"deployment_id", deployment.ID,
		"stats", state.Stats(),
	)

	return nil
}

// recomputeSteadyStatus пересчитывает статус устойчивого развёртывания
// после события от агента: падение или перезапуск сервиса деградирует
// развёртывание, восстановление возвращает его в RUNNING.
func (o *Orchestrator) recomputeSteadyStatus(ctx context.Context, state *DeploymentState) error {
	deployment := state.Deployment

	if down := state.DownServices(); len(down) > 0 {
		if deployment.Status == domain.DeploymentStatusDegraded {
			return nil
		}
		deployment.MarkDegraded(fmt.Sprintf("services down: %s", strings.Join(down, ", ")))
		if err := o.deployRepo.Update(ctx, deployment); err != nil {
			return fmt.Errorf("update deployment to degraded: %w", err)
		}

		o.logger.Warn("deployment degraded",
			"deployment_id", deployment.ID,
			"down_services", down,
		)
		return nil
	}

	if deployment.Status == domain.DeploymentStatusRunning {
		return nil
	}

	deployment.MarkRunning()
	if err := o.deployRepo.Update(ctx, deployment); err != nil {
		return fmt.Errorf("update deployment to running: %w", err)
	}

	o.logger.Info("deployment recovered", "deployment_id", deployment.ID)
	return nil
}

// processStop запускает остановку развёртывания.
//
// Сервисам, которые ещё не стартовали (PENDING), сразу проставляется
// STOPPED. Остальным команды stop публикуются в обратном
// топологическом порядке; агенты обрабатывают их конкурентно, поэтому
// порядок фактической остановки — best-effort.
func (o *Orchestrator) processStop(ctx context.Context, deploymentID uuid.UUID) error {
	state := o.getActiveDeployment(deploymentID)
	if state == nil {
		var err error
		state, err = o.restoreDeploymentState(ctx, deploymentID)
		if err != nil {
			return fmt.Errorf("restore deployment state: %w", err)
		}
		if state == nil {
			return nil
		}
	}

	if state.IsStopping() {
		return nil
	}
	state.MarkStopping()

	o.logger.Info("stopping deployment",
		"deployment_id", deploymentID,
		"stats", state.Stats(),
	)

	for _, name := range state.DAG.StopOrder() {
		status := state.ServiceStatus(name)
		svcState := state.GetServiceState(name)

		switch {
		case status == domain.ServiceStatusPending:
			// Ещё не запускался — нечего останавливать
			state.SetServiceStatus(name, domain.ServiceStatusStopped)
			if svcState != nil {
				svcState.MarkStopped()
				if err := o.serviceRepo.Update(ctx, svcState); err != nil {
					return fmt.Errorf("update pending service %s: %w", name, err)
				}
			}

		case status.IsTerminal():
			// Уже в терминале — ничего не делаем

		default:
			if svcState == nil {
				continue
			}
			err := o.publisher.PublishServiceApply(ctx, mq.ServiceApplyPayload{
				ServiceStateID: svcState.ID,
				DeploymentID:   deploymentID,
				ServiceName:    name,
				Action:         mq.ActionStop,
			})
			if err != nil {
				o.logger.Error("failed to publish stop command",
					"deployment_id", deploymentID,
					"service", name,
					"error", err,
				)
			}
		}
	}

	if state.AllStopped() {
		return o.finalizeStopped(ctx, state)
	}
	return nil
}

// finalizeStopped переводит развёртывание в STOPPED.
func (o *Orchestrator) finalizeStopped(ctx context.Context, state *DeploymentState) error {
	deployment := state.Deployment

	deployment.MarkStopped()
	if err := o.deployRepo.Update(ctx, deployment); err != nil {
		return fmt.Errorf("update deployment to stopped: %w", err)
	}

	deploymentsStopped.Inc()
	o.logger.Info("deployment stopped",
		"deployment_id", deployment.ID,
		"duration", deployment.Duration(),
	)

	// Все сервисы остановлены — агент может снести оставшиеся
	// ресурсы (сеть, тома) по метке развёртывания.
	err := o.publisher.PublishServiceApply(ctx, mq.ServiceApplyPayload{
		DeploymentID: deployment.ID,
		Action:       mq.ActionTeardown,
	})
	if err != nil {
		o.logger.Warn("failed to publish teardown command",
			"deployment_id", deployment.ID,
			"error", err,
		)
	}

	o.removeActiveDeployment(deployment.ID)
	return nil
}

// failDeployment переводит развёртывание в FAILED на раннем этапе.
func (o *Orchestrator) failDeployment(ctx context.Context, deployment *domain.Deployment, errMsg string) error {
	deployment.MarkFailed(errMsg)

	if err := o.deployRepo.Update(ctx, deployment); err != nil {
		return fmt.Errorf("update deployment to failed: %w", err)
	}

	deploymentsFailed.Inc()
	o.logger.Warn("deployment failed early",
		"deployment_id", deployment.ID,
		"error", errMsg,
	)

	return fmt.Errorf("deployment failed: %s", errMsg)
}

// restoreDeploymentState восстанавливает DeploymentState из БД.
// Используется когда событие приходит для развёртывания, которого нет
// в памяти (после рестарта Orchestrator).
func (o *Orchestrator) restoreDeploymentState(ctx context.Context, deploymentID uuid.UUID) (*DeploymentState, error) {
	deployment, err := o.deployRepo.GetByID(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil // развёртывание не существует
		}
		return nil, fmt.Errorf("get deployment: %w", err)
	}

	// Терминальные развёртывания не восстанавливаем
	if deployment.IsFinished() {
		return nil, nil
	}

	version, err := o.stackRepo.GetVersion(ctx, deployment.StackID, deployment.Version)
	if err != nil {
		return nil, fmt.Errorf("get stack version: %w", err)
	}

	state := NewDeploymentState(deployment, version)
	if err := state.Initialize(o.env); err != nil {
		return nil, fmt.Errorf("initialize state: %w", err)
	}

	states, err := o.serviceRepo.ListByDeployment(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("list service states: %w", err)
	}
	state.RestoreFromStates(states)

	if deployment.Status == domain.DeploymentStatusStopping {
		state.MarkStopping()
	}

	if err := o.addActiveDeployment(state); err != nil {
		if errors.Is(err, ErrDeploymentAlreadyActive) {
			// Кто-то уже восстановил — возвращаем его
			return o.getActiveDeployment(deploymentID), nil
		}
		return nil, err
	}

	o.logger.Info("deployment state restored",
		"deployment_id", deploymentID,
		"status", deployment.Status,
		"stats", state.Stats(),
	)

	return state, nil
}
