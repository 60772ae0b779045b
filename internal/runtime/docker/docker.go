// Package docker реализует runtime.Runtime поверх Docker Engine API.
package docker

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"

	"github.com/shaiso/Convoy/internal/runtime"
)

// Runtime — реализация runtime.Runtime для Docker.
type Runtime struct {
	client *client.Client
}

// New создаёт Runtime, подключаясь к Docker через переменные окружения
// (DOCKER_HOST и т.д.).
func New() (*Runtime, error) {
	c, err := client.New(
		client.FromEnv,
	)
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}

	return &Runtime{client: c}, nil
}

// EnsureVolume создаёт именованный том, если его нет.
func (r *Runtime) EnsureVolume(ctx context.Context, name string, labels map[string]string) error {
	// Если том уже существует — успех
	_, err := r.client.VolumeInspect(ctx, name, client.VolumeInspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect volume %q: %w", name, err)
	}

	_, err = r.client.VolumeCreate(ctx, client.VolumeCreateOptions{
		Name:   name,
		Labels: labels,
	})
	if err != nil {
		// Гонка с параллельным созданием: вместо разбора текста ошибки
		// перепроверяем inspect
		if _, ie := r.client.VolumeInspect(ctx, name, client.VolumeInspectOptions{}); ie == nil {
			return nil
		}
		return fmt.Errorf("create volume %q: %w", name, err)
	}

	return nil
}

// EnsureNetwork создаёт сеть, если её нет.
func (r *Runtime) EnsureNetwork(ctx context.Context, name string, labels map[string]string) error {
	_, err := r.client.NetworkInspect(ctx, name, client.NetworkInspectOptions{})
	if err == nil {
		return nil
	}

	_, err = r.client.NetworkCreate(ctx, name, client.NetworkCreateOptions{
		Labels: labels,
	})
	if err != nil {
		// Гонка с параллельным созданием: перепроверяем inspect
		if _, ie := r.client.NetworkInspect(ctx, name, client.NetworkInspectOptions{}); ie == nil {
			return nil
		}
		return fmt.Errorf("create network %q: %w", name, err)
	}

	return nil
}

// CreateContainer создаёт контейнер и возвращает его ID.
//
// Политика перезапуска движка всегда отключена: перезапусками
// управляет агент по политике из дескриптора.
func (r *Runtime) CreateContainer(ctx context.Context, spec *runtime.ContainerSpec) (string, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	exposed, portMap, err := buildPorts(spec.Ports)
	if err != nil {
		return "", err
	}

	mounts := make([]mount.Mount, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		dm := mount.Mount{
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		}
		if m.Volume != "" {
			dm.Type = mount.TypeVolume
			dm.Source = m.Volume
		} else {
			dm.Type = mount.TypeBind
			dm.Source = m.Source
		}
		mounts = append(mounts, dm)
	}

	cCfg := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Command,
		Env:          env,
		Labels:       spec.Labels,
		ExposedPorts: exposed,
	}

	hCfg := &container.HostConfig{
		Mounts:       mounts,
		PortBindings: portMap,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyDisabled,
		},
	}

	if spec.CPUs > 0 {
		hCfg.NanoCPUs = int64(spec.CPUs * 1e9)
	}
	if spec.MemoryBytes > 0 {
		hCfg.Memory = spec.MemoryBytes
	}

	endpointConfigs := make(map[string]*network.EndpointSettings)
	for net, aliases := range spec.Networks {
		es := &network.EndpointSettings{}
		if len(aliases) > 0 {
			es.Aliases = aliases
		}
		endpointConfigs[net] = es
	}

	nCfg := &network.NetworkingConfig{
		EndpointsConfig: endpointConfigs,
	}

	// Удаляем существующий контейнер с тем же именем
	if inspect, err := r.client.ContainerInspect(ctx, spec.Name, client.ContainerInspectOptions{}); err == nil {
		_, _ = r.client.ContainerStop(ctx, inspect.Container.ID, client.ContainerStopOptions{})
		if _, err := r.client.ContainerRemove(ctx, inspect.Container.ID, client.ContainerRemoveOptions{
			Force:         true,
			RemoveVolumes: false,
		}); err != nil && !errdefs.IsNotFound(err) {
			return "", fmt.Errorf("remove existing container %q: %w", spec.Name, err)
		}
	}

	created, err := r.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:           cCfg,
		HostConfig:       hCfg,
		NetworkingConfig: nCfg,
		Name:             spec.Name,
		Image:            spec.Image,
	})
	if err != nil {
		// Гонка с параллельным созданием: перепроверяем inspect
		inspected, ie := r.client.ContainerInspect(ctx, spec.Name, client.ContainerInspectOptions{})
		if ie != nil {
			return "", fmt.Errorf("create container %q: %w", spec.Name, err)
		}
		return inspected.Container.ID, nil
	}

	return created.ID, nil
}

// buildPorts собирает ExposedPorts и PortBindings из описания портов.
func buildPorts(ports []runtime.PortBinding) (network.PortSet, network.PortMap, error) {
	exposed := network.PortSet{}
	portMap := network.PortMap{}

	for _, b := range ports {
		proto := network.IPProtocol(b.Protocol)
		if proto == "" {
			proto = "tcp"
		}

		port, _ := network.PortFrom(uint16(b.ContainerPort), proto)
		exposed[port] = struct{}{}

		if b.HostPort == 0 {
			continue
		}

		hostIP := b.HostIP
		if hostIP == "" {
			hostIP = "0.0.0.0"
		}
		addr, err := netip.ParseAddr(hostIP)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid host_ip %q: %w", hostIP, err)
		}

		portMap[port] = append(portMap[port], network.PortBinding{
			HostIP:   addr,
			HostPort: strconv.Itoa(b.HostPort),
		})
	}

	return exposed, portMap, nil
}

// StartContainer запускает созданный контейнер.
func (r *Runtime) StartContainer(ctx context.Context, containerID string) error {
	if _, err := r.client.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", containerID, err)
	}
	return nil
}

// StopContainer останавливает контейнер.
func (r *Runtime) StopContainer(ctx context.Context, containerID string) error {
	if _, err := r.client.ContainerStop(ctx, containerID, client.ContainerStopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return runtime.ErrContainerNotFound
		}
		return fmt.Errorf("stop container %q: %w", containerID, err)
	}
	return nil
}

// RemoveContainer удаляет контейнер.
func (r *Runtime) RemoveContainer(ctx context.Context, containerID string) error {
	_, err := r.client.ContainerRemove(ctx, containerID, client.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: false,
	})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %q: %w", containerID, err)
	}
	return nil
}

// InspectContainer возвращает наблюдаемое состояние контейнера.
func (r *Runtime) InspectContainer(ctx context.Context, containerID string) (*runtime.ContainerStatus, error) {
	inspect, err := r.client.ContainerInspect(ctx, containerID, client.ContainerInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, runtime.ErrContainerNotFound
		}
		return nil, fmt.Errorf("inspect container %q: %w", containerID, err)
	}

	status := &runtime.ContainerStatus{
		ID: inspect.Container.ID,
	}

	if state := inspect.Container.State; state != nil {
		status.Running = state.Running
		status.ExitCode = state.ExitCode

		if state.Health != nil {
			healthy := state.Health.Status == container.Healthy
			status.Healthy = &healthy
		}
	}

	return status, nil
}

// WaitContainer блокируется до завершения контейнера.
func (r *Runtime) WaitContainer(ctx context.Context, containerID string) (int, error) {
	waitC := r.client.ContainerWait(ctx, containerID, client.ContainerWaitOptions{})

	select {
	case err := <-waitC.Error:
		if err != nil {
			return 0, fmt.Errorf("wait container %q: %w", containerID, err)
		}
		return 0, nil
	case res := <-waitC.Result:
		return int(res.StatusCode), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ContainerHealthy возвращает true, если health-статус контейнера —
// healthy. Ошибка, если у образа нет встроенного HEALTHCHECK.
func (r *Runtime) ContainerHealthy(ctx context.Context, containerID string) (bool, error) {
	status, err := r.InspectContainer(ctx, containerID)
	if err != nil {
		return false, err
	}
	if status.Healthy == nil {
		return false, fmt.Errorf("container %q has no built-in healthcheck", containerID)
	}
	return *status.Healthy, nil
}

// RemoveByLabel останавливает и удаляет все контейнеры, тома и сети
// с данной меткой.
func (r *Runtime) RemoveByLabel(ctx context.Context, label, value string) error {
	f := make(client.Filters).
		Add("label", label+"="+value)

	containers, err := r.client.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return fmt.Errorf("list containers (%s=%s): %w", label, value, err)
	}

	for _, c := range containers.Items {
		_, _ = r.client.ContainerStop(ctx, c.ID, client.ContainerStopOptions{})
		if _, err := r.client.ContainerRemove(ctx, c.ID, client.ContainerRemoveOptions{
			Force:         true,
			RemoveVolumes: false,
		}); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("remove container %q: %w", c.ID, err)
		}
	}

	vols, err := r.client.VolumeList(ctx, client.VolumeListOptions{Filters: f})
	if err != nil {
		return fmt.Errorf("list volumes (%s=%s): %w", label, value, err)
	}

	for _, v := range vols.Items {
		if v.Name == "" {
			continue
		}
		if _, err := r.client.VolumeRemove(ctx, v.Name, client.VolumeRemoveOptions{}); err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("remove volume %q: %w", v.Name, err)
		}
	}

	nets, err := r.client.NetworkList(ctx, client.NetworkListOptions{Filters: f})
	if err != nil {
		return fmt.Errorf("list networks (%s=%s): %w", label, value, err)
	}

	for _, n := range nets.Items {
		if n.ID == "" {
			continue
		}
		if _, err := r.client.NetworkRemove(ctx, n.ID, client.NetworkRemoveOptions{}); err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("remove network %q (%s): %w", n.Name, n.ID, err)
		}
	}

	return nil
}
