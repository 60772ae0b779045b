package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/engine"
	"github.com/shaiso/Convoy/internal/mq"
	"github.com/shaiso/Convoy/internal/repo"
	"github.com/shaiso/Convoy/internal/runtime"
)

// resolvedService — сервис с разрешённым контекстом развёртывания:
// дескриптор интерполирован, определение найдено.
type resolvedService struct {
	Deployment *domain.Deployment
	Spec       *domain.StackSpec
	Def        *domain.ServiceDef
}

// handleServiceApply обрабатывает команду из очереди services.apply.
func (a *Agent) handleServiceApply(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.ServiceApplyPayload](&delivery.Message)
	if err != nil {
		a.logger.Error("failed to parse service.apply payload", "error", err)
		return err
	}

	a.logger.Debug("received service.apply command",
		"service_state_id", payload.ServiceStateID,
		"deployment_id", payload.DeploymentID,
		"service", payload.ServiceName,
		"action", payload.Action,
	)

	switch payload.Action {
	case mq.ActionStart:
		err = a.processStart(ctx, payload.ServiceStateID)
	case mq.ActionStop:
		err = a.processStop(ctx, payload.ServiceStateID)
	case mq.ActionTeardown:
		err = a.processTeardown(ctx, payload.DeploymentID)
	default:
		a.logger.Error("unknown apply action", "action", payload.Action)
		return fmt.Errorf("%w: %s", ErrUnknownAction, payload.Action)
	}

	if err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrServiceNotFound) || errors.Is(err, ErrServiceNotQueued) {
			a.logger.Debug("command not processed",
				"service_state_id", payload.ServiceStateID,
				"reason", err,
			)
			return nil
		}
		a.logger.Error("failed to process apply command",
			"service_state_id", payload.ServiceStateID,
			"error", err,
		)
		return err
	}

	return nil
}

// processStart запускает сервис.
//
// Долгая работа (health-check, наблюдение за контейнером) выполняется
// в отдельной горутине, чтобы не блокировать consumer.
func (a *Agent) processStart(ctx context.Context, serviceStateID uuid.UUID) error {
	// 1. Загружаем состояние сервиса из БД
	state, err := a.serviceRepo.GetByID(ctx, serviceStateID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrServiceNotFound, serviceStateID)
		}
		return fmt.Errorf("get service state: %w", err)
	}

	// 2. Проверяем статус
	if state.Status != domain.ServiceStatusQueued {
		return ErrServiceNotQueued
	}

	// 3. Разрешаем дескриптор развёртывания
	rs, err := a.resolveService(ctx, state)
	if err != nil {
		return a.failService(ctx, state, fmt.Sprintf("resolve service: %v", err), nil)
	}

	servicesStarted.Inc()
	a.logger.Info("service start accepted",
		"service_state_id", state.ID,
		"deployment_id", state.DeploymentID,
		"service", state.ServiceName,
		"image", rs.Def.Image,
	)

	// 4. Запускаем жизненный цикл сервиса в горутине.
	// Наблюдение привязано к корневому контексту агента, а не к
	// контексту доставки сообщения.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runService(a.rootCtx, state, rs)
	}()

	return nil
}

// processStop останавливает сервис.
func (a *Agent) processStop(ctx context.Context, serviceStateID uuid.UUID) error {
	state, err := a.serviceRepo.GetByID(ctx, serviceStateID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrServiceNotFound, serviceStateID)
		}
		return fmt.Errorf("get service state: %w", err)
	}

	if state.Status.IsTerminal() {
		a.logger.Debug("service already terminal, skipping stop",
			"service_state_id", state.ID,
			"status", state.Status,
		)
		return nil
	}

	// Сначала снимаем наблюдателя, чтобы остановка не была принята
	// за падение
	a.cancelSupervisor(state.ID)

	if state.ContainerID != "" {
		if err := a.runtime.StopContainer(ctx, state.ContainerID); err != nil &&
			!errors.Is(err, runtime.ErrContainerNotFound) {
			return fmt.Errorf("stop container: %w", err)
		}
		if err := a.runtime.RemoveContainer(ctx, state.ContainerID); err != nil &&
			!errors.Is(err, runtime.ErrContainerNotFound) {
			a.logger.Warn("failed to remove container",
				"container_id", state.ContainerID,
				"error", err,
			)
		}
	}

	state.MarkStopped()
	if err := a.serviceRepo.Update(ctx, state); err != nil {
		return fmt.Errorf("update service state: %w", err)
	}

	a.logger.Info("service stopped",
		"service_state_id", state.ID,
		"service", state.ServiceName,
	)

	a.publishStatus(ctx, state)
	return nil
}

// processTeardown удаляет оставшиеся ресурсы развёртывания: сеть,
// тома и контейнеры, помеченные меткой развёртывания. Вызывается
// после остановки всех сервисов.
func (a *Agent) processTeardown(ctx context.Context, deploymentID uuid.UUID) error {
	if err := a.runtime.RemoveByLabel(ctx, LabelDeployment, deploymentID.String()); err != nil {
		return fmt.Errorf("remove deployment resources: %w", err)
	}

	a.logger.Info("deployment resources removed",
		"deployment_id", deploymentID,
	)
	return nil
}

// resolveService загружает развёртывание и дескриптор, подставляет
// переменные и находит определение сервиса.
func (a *Agent) resolveService(ctx context.Context, state *domain.ServiceState) (*resolvedService, error) {
	deployment, err := a.deployRepo.GetByID(ctx, state.DeploymentID)
	if err != nil {
		return nil, fmt.Errorf("get deployment: %w", err)
	}

	version, err := a.stackRepo.GetVersion(ctx, deployment.StackID, deployment.Version)
	if err != nil {
		return nil, fmt.Errorf("get stack version: %w", err)
	}

	vars := engine.NewVars(deployment.Inputs)
	for k, v := range a.env {
		vars.SetEnv(k, v)
	}
	spec, err := engine.InterpolateSpec(&version.Spec, vars)
	if err != nil {
		return nil, fmt.Errorf("interpolate spec: %w", err)
	}

	def := spec.FindService(state.ServiceName)
	if def == nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceDefNotFound, state.ServiceName)
	}

	return &resolvedService{
		Deployment: deployment,
		Spec:       spec,
		Def:        def,
	}, nil
}

// ensureResources создаёт сеть развёртывания и тома сервиса.
func (a *Agent) ensureResources(ctx context.Context, rs *resolvedService) error {
	deploymentID := rs.Deployment.ID
	labels := resourceLabels(deploymentID, rs.Deployment.StackID, "")

	if err := a.runtime.EnsureNetwork(ctx, NetworkName(deploymentID), labels); err != nil {
		return fmt.Errorf("ensure network: %w", err)
	}

	for _, mount := range rs.Def.Mounts {
		if mount.Volume == "" {
			continue
		}
		if err := a.runtime.EnsureVolume(ctx, VolumeName(deploymentID, mount.Volume), labels); err != nil {
			return fmt.Errorf("ensure volume %s: %w", mount.Volume, err)
		}
	}

	return nil
}

// buildContainerSpec строит описание контейнера из определения сервиса.
func (a *Agent) buildContainerSpec(rs *resolvedService, state *domain.ServiceState) *runtime.ContainerSpec {
	deploymentID := rs.Deployment.ID
	def := rs.Def

	spec := &runtime.ContainerSpec{
		Name:    ContainerName(deploymentID, def.Name),
		Image:   def.Image,
		Command: def.Command,
		Env:     def.Environment,
		Labels:  resourceLabels(deploymentID, rs.Deployment.StackID, def.Name),
		Networks: map[string][]string{
			// Алиас — имя сервиса: соседи обращаются по нему
			NetworkName(deploymentID): {def.Name},
		},
	}

	for _, p := range def.Ports {
		spec.Ports = append(spec.Ports, runtime.PortBinding{
			HostIP:        p.HostIP,
			HostPort:      p.HostPort,
			ContainerPort: p.ContainerPort,
			Protocol:      p.Protocol,
		})
	}

	for _, m := range def.Mounts {
		mount := runtime.MountSpec{
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		}
		if m.Volume != "" {
			mount.Volume = VolumeName(deploymentID, m.Volume)
		}
		spec.Mounts = append(spec.Mounts, mount)
	}

	if def.Resources != nil {
		spec.CPUs = def.Resources.CPUs
		spec.MemoryBytes = def.Resources.MemoryMB * 1024 * 1024
	}

	return spec
}

// failService помечает сервис FAILED и публикует событие.
func (a *Agent) failService(ctx context.Context, state *domain.ServiceState, errMsg string, exitCode *int) error {
	state.MarkFailed(errMsg, exitCode)
	if err := a.serviceRepo.Update(ctx, state); err != nil {
		return fmt.Errorf("update service state to failed: %w", err)
	}

	servicesFailed.Inc()
	a.logger.Warn("service failed",
		"service_state_id", state.ID,
		"service", state.ServiceName,
		"attempt", state.Attempt,
		"error", errMsg,
	)

	a.publishStatus(ctx, state)
	return nil
}

// publishStatus публикует событие о текущем статусе сервиса.
func (a *Agent) publishStatus(ctx context.Context, state *domain.ServiceState) {
	if a.publisher == nil {
		a.logger.Warn("publisher not available, skipping service.status publish",
			"service_state_id", state.ID,
		)
		return
	}

	payload := mq.ServiceStatusPayload{
		ServiceStateID: state.ID,
		DeploymentID:   state.DeploymentID,
		ServiceName:    state.ServiceName,
		Status:         string(state.Status),
		ContainerID:    state.ContainerID,
		ExitCode:       state.ExitCode,
		Error:          state.Error,
		Attempt:        state.Attempt,
	}

	if err := a.publisher.PublishServiceStatus(ctx, payload); err != nil {
		a.logger.Warn("failed to publish service.status",
			"service_state_id", state.ID,
			"error", err,
		)
		// Не возвращаем ошибку — состояние обновлено в БД,
		// оркестратор подхватит через polling
	}
}
