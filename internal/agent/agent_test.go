package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/repo"
	"github.com/shaiso/Convoy/internal/runtime"
)

// fakeRuntime — рантайм для тестов, записывающий вызовы.
//
// exitCodes задаёт коды выхода для последовательных вызовов
// WaitContainer; когда список исчерпан, WaitContainer блокируется
// до отмены контекста (контейнер продолжает работать).
type fakeRuntime struct {
	mu         sync.Mutex
	networks   []string
	volumes    []string
	containers []string
	removed    []string
	exitCodes  []int
}

func (f *fakeRuntime) EnsureVolume(_ context.Context, name string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, name)
	return nil
}

func (f *fakeRuntime) EnsureNetwork(_ context.Context, name string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks = append(f.networks, name)
	return nil
}

func (f *fakeRuntime) CreateContainer(_ context.Context, spec *runtime.ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers = append(f.containers, spec.Name)
	return "container-" + spec.Name, nil
}

func (f *fakeRuntime) StartContainer(context.Context, string) error { return nil }
func (f *fakeRuntime) StopContainer(context.Context, string) error  { return nil }

func (f *fakeRuntime) RemoveContainer(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, containerID)
	return nil
}

func (f *fakeRuntime) InspectContainer(context.Context, string) (*runtime.ContainerStatus, error) {
	return &runtime.ContainerStatus{Running: true}, nil
}

func (f *fakeRuntime) WaitContainer(ctx context.Context, _ string) (int, error) {
	f.mu.Lock()
	if len(f.exitCodes) > 0 {
		code := f.exitCodes[0]
		f.exitCodes = f.exitCodes[1:]
		f.mu.Unlock()
		return code, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return 0, ctx.Err()
}

func (f *fakeRuntime) ContainerHealthy(context.Context, string) (bool, error) {
	return true, nil
}

func (f *fakeRuntime) RemoveByLabel(context.Context, string, string) error { return nil }

func (f *fakeRuntime) containerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.containers)
}

// fakeServiceStore — хранилище состояний для тестов, записывающее
// последовательность статусов.
type fakeServiceStore struct {
	mu       sync.Mutex
	statuses []domain.ServiceStatus
}

func (f *fakeServiceStore) GetByID(context.Context, uuid.UUID) (*domain.ServiceState, error) {
	return nil, repo.ErrNotFound
}

func (f *fakeServiceStore) Update(_ context.Context, s *domain.ServiceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, s.Status)
	return nil
}

func (f *fakeServiceStore) ListQueued(context.Context, int) ([]domain.ServiceState, error) {
	return nil, nil
}

func (f *fakeServiceStore) recorded() []domain.ServiceStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ServiceStatus, len(f.statuses))
	copy(out, f.statuses)
	return out
}

// --- Names ---

func TestResourceNames(t *testing.T) {
	id := uuid.MustParse("a1b2c3d4-0000-0000-0000-000000000000")

	if got := ContainerName(id, "mysql"); got != "convoy-a1b2c3d4-mysql" {
		t.Errorf("unexpected container name: %s", got)
	}
	if got := NetworkName(id); got != "convoy-a1b2c3d4" {
		t.Errorf("unexpected network name: %s", got)
	}
	if got := VolumeName(id, "dbdata"); got != "convoy-a1b2c3d4-dbdata" {
		t.Errorf("unexpected volume name: %s", got)
	}
}

func TestResourceLabels(t *testing.T) {
	deploymentID := uuid.New()
	stackID := uuid.New()

	labels := resourceLabels(deploymentID, stackID, "mysql")
	if labels[LabelDeployment] != deploymentID.String() {
		t.Error("deployment label should be set")
	}
	if labels[LabelStack] != stackID.String() {
		t.Error("stack label should be set")
	}
	if labels[LabelService] != "mysql" {
		t.Error("service label should be set")
	}

	labels = resourceLabels(deploymentID, stackID, "")
	if _, exists := labels[LabelService]; exists {
		t.Error("empty service should not produce a label")
	}
}

// --- Restart policy ---

func TestShouldRestart(t *testing.T) {
	tests := []struct {
		name     string
		policy   domain.RestartPolicy
		exitCode int
		want     bool
	}{
		{"no restart on clean exit", domain.RestartNever, 0, false},
		{"no restart on failure", domain.RestartNever, 1, false},
		{"on-failure skips clean exit", domain.RestartOnFailure, 0, false},
		{"on-failure restarts crash", domain.RestartOnFailure, 137, true},
		{"always restarts clean exit", domain.RestartAlways, 0, true},
		{"always restarts crash", domain.RestartAlways, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRestart(tt.policy, tt.exitCode); got != tt.want {
				t.Errorf("shouldRestart(%s, %d) = %v, want %v", tt.policy, tt.exitCode, got, tt.want)
			}
		})
	}
}

func TestRestartBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second}, // потолок
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := restartBackoff(tt.attempt); got != tt.want {
			t.Errorf("restartBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// --- Container spec ---

func testResolvedService() *resolvedService {
	deployment := &domain.Deployment{ID: uuid.New(), StackID: uuid.New()}
	def := &domain.ServiceDef{
		Name:        "mysql",
		Image:       "mysql:8.0",
		Command:     []string{"mysqld", "--default-authentication-plugin=mysql_native_password"},
		Environment: map[string]string{"MYSQL_DATABASE": "app"},
		Ports: []domain.PortDef{
			{HostPort: 3306, ContainerPort: 3306},
		},
		Mounts: []domain.MountDef{
			{Volume: "dbdata", Target: "/var/lib/mysql"},
			{Source: "/etc/app/my.cnf", Target: "/etc/mysql/conf.d/my.cnf", ReadOnly: true},
		},
		Resources: &domain.ResourceLimits{CPUs: 1.5, MemoryMB: 512},
	}
	return &resolvedService{
		Deployment: deployment,
		Spec:       &domain.StackSpec{Services: []domain.ServiceDef{*def}},
		Def:        def,
	}
}

func TestBuildContainerSpec(t *testing.T) {
	a := New(Config{Runtime: &fakeRuntime{}})
	rs := testResolvedService()
	state := domain.NewServiceState(rs.Deployment.ID, "mysql")

	spec := a.buildContainerSpec(rs, state)

	if spec.Name != ContainerName(rs.Deployment.ID, "mysql") {
		t.Errorf("unexpected container name: %s", spec.Name)
	}
	if spec.Image != "mysql:8.0" {
		t.Errorf("unexpected image: %s", spec.Image)
	}
	if spec.Env["MYSQL_DATABASE"] != "app" {
		t.Error("environment should be propagated")
	}
	if len(spec.Ports) != 1 || spec.Ports[0].ContainerPort != 3306 {
		t.Error("ports should be propagated")
	}
	if len(spec.Mounts) != 2 {
		t.Fatalf("expected 2 mounts, got %d", len(spec.Mounts))
	}
	if spec.Mounts[0].Volume != VolumeName(rs.Deployment.ID, "dbdata") {
		t.Errorf("volume mount should use deployment-scoped name, got %s", spec.Mounts[0].Volume)
	}
	if spec.Mounts[1].Source != "/etc/app/my.cnf" || !spec.Mounts[1].ReadOnly {
		t.Error("bind mount should be propagated")
	}
	if spec.CPUs != 1.5 {
		t.Errorf("unexpected CPU limit: %f", spec.CPUs)
	}
	if spec.MemoryBytes != 512*1024*1024 {
		t.Errorf("unexpected memory limit: %d", spec.MemoryBytes)
	}

	aliases := spec.Networks[NetworkName(rs.Deployment.ID)]
	if len(aliases) != 1 || aliases[0] != "mysql" {
		t.Error("service should join the deployment network with its name as alias")
	}
	if spec.Labels[LabelService] != "mysql" {
		t.Error("service label should be set")
	}
}

func TestEnsureResources(t *testing.T) {
	rt := &fakeRuntime{}
	a := New(Config{Runtime: rt})
	rs := testResolvedService()

	if err := a.ensureResources(context.Background(), rs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rt.networks) != 1 || rt.networks[0] != NetworkName(rs.Deployment.ID) {
		t.Errorf("expected deployment network, got %v", rt.networks)
	}
	// Создаётся только именованный том; bind-монтирование тома не требует
	if len(rt.volumes) != 1 || rt.volumes[0] != VolumeName(rs.Deployment.ID, "dbdata") {
		t.Errorf("expected dbdata volume, got %v", rt.volumes)
	}
}

// --- Service lifecycle ---

func TestRunService_OneshotCompleted(t *testing.T) {
	rt := &fakeRuntime{exitCodes: []int{0}}
	store := &fakeServiceStore{}
	a := New(Config{Runtime: rt, ServiceRepo: store})

	rs := testResolvedService()
	rs.Def.Oneshot = true
	state := domain.NewServiceState(rs.Deployment.ID, rs.Def.Name)

	a.runService(context.Background(), state, rs)

	if state.Status != domain.ServiceStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", state.Status)
	}
	if state.ExitCode == nil || *state.ExitCode != 0 {
		t.Error("exit code 0 should be recorded")
	}
	if rt.containerCount() != 1 {
		t.Errorf("oneshot should run exactly one container, got %d", rt.containerCount())
	}
	// Завершившийся oneshot-контейнер убирается
	if len(rt.removed) != 1 {
		t.Errorf("completed oneshot container should be removed, got %v", rt.removed)
	}
}

func TestRunService_OneshotFailed(t *testing.T) {
	rt := &fakeRuntime{exitCodes: []int{2}}
	store := &fakeServiceStore{}
	a := New(Config{Runtime: rt, ServiceRepo: store})

	rs := testResolvedService()
	rs.Def.Oneshot = true
	rs.Def.Restart = domain.RestartAlways
	state := domain.NewServiceState(rs.Deployment.ID, rs.Def.Name)

	a.runService(context.Background(), state, rs)

	if state.Status != domain.ServiceStatusFailed {
		t.Errorf("expected FAILED, got %s", state.Status)
	}
	if state.ExitCode == nil || *state.ExitCode != 2 {
		t.Error("exit code 2 should be recorded")
	}
	// Ненулевой выход oneshot фатален: повторный запуск означал бы
	// повторное выполнение задачи
	if rt.containerCount() != 1 {
		t.Errorf("failed oneshot must not be restarted, got %d containers", rt.containerCount())
	}
}

func TestRunService_ExitWithoutRestartPolicy(t *testing.T) {
	rt := &fakeRuntime{exitCodes: []int{0}}
	store := &fakeServiceStore{}
	a := New(Config{Runtime: rt, ServiceRepo: store})

	rs := testResolvedService()
	state := domain.NewServiceState(rs.Deployment.ID, rs.Def.Name)

	a.runService(context.Background(), state, rs)

	// Long-running сервис завершился сам, политика по умолчанию
	// перезапуск не разрешает — это терминальный отказ
	if state.Status != domain.ServiceStatusFailed {
		t.Errorf("expected FAILED, got %s", state.Status)
	}
	if rt.containerCount() != 1 {
		t.Errorf("expected no restart, got %d containers", rt.containerCount())
	}
}

func TestRunService_RestartOnCrash(t *testing.T) {
	rt := &fakeRuntime{exitCodes: []int{1}}
	store := &fakeServiceStore{}
	a := New(Config{Runtime: rt, ServiceRepo: store})

	rs := testResolvedService()
	rs.Def.Restart = domain.RestartAlways
	state := domain.NewServiceState(rs.Deployment.ID, rs.Def.Name)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.runService(ctx, state, rs)
		close(done)
	}()

	// Первая попытка падает с кодом 1; после backoff агент создаёт
	// новый контейнер для второй попытки
	deadline := time.After(5 * time.Second)
	for rt.containerCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("crashed service was not restarted")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	if state.Attempt != 2 {
		t.Errorf("expected attempt 2, got %d", state.Attempt)
	}

	// Падение с правом на перезапуск не публикуется как терминальный
	// отказ: зависимые сервисы должны продолжать ждать
	for _, st := range store.recorded() {
		if st == domain.ServiceStatusFailed {
			t.Error("transient crash under restart policy must not be reported as FAILED")
		}
	}
}

// --- Agent ---

func TestNew(t *testing.T) {
	a := New(Config{Runtime: &fakeRuntime{}})

	if a.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, a.pollInterval)
	}
	if a.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, a.batchSize)
	}
	if a.prober == nil {
		t.Error("prober should default to the standard registry")
	}
	if a.supervisors == nil {
		t.Error("supervisors map should be initialized")
	}
}

func TestNew_CustomConfig(t *testing.T) {
	a := New(Config{
		Runtime:      &fakeRuntime{},
		PollInterval: 3 * time.Second,
		BatchSize:    10,
		Env:          map[string]string{"DOMAIN": "example.com"},
	})

	if a.pollInterval != 3*time.Second {
		t.Errorf("expected poll interval 3s, got %v", a.pollInterval)
	}
	if a.batchSize != 10 {
		t.Errorf("expected batch size 10, got %d", a.batchSize)
	}
	if a.env["DOMAIN"] != "example.com" {
		t.Error("custom env should be kept")
	}
}

func TestAgent_Supervisors(t *testing.T) {
	a := New(Config{Runtime: &fakeRuntime{}})

	id := uuid.New()
	cancelled := false

	a.registerSupervisor(id, func() { cancelled = true })
	if a.SupervisedCount() != 1 {
		t.Error("should have 1 supervised service")
	}

	a.cancelSupervisor(id)
	if !cancelled {
		t.Error("cancel should invoke the supervisor cancel func")
	}
	if a.SupervisedCount() != 0 {
		t.Error("cancelled supervisor should be removed")
	}

	// Повторная регистрация отменяет предыдущего наблюдателя
	first := false
	a.registerSupervisor(id, func() { first = true })
	a.registerSupervisor(id, func() {})
	if !first {
		t.Error("re-registration should cancel the previous supervisor")
	}
	if a.SupervisedCount() != 1 {
		t.Error("should have 1 supervised service after re-registration")
	}
}

func TestAgent_IsStopped(t *testing.T) {
	a := New(Config{Runtime: &fakeRuntime{}})

	if a.IsStopped() {
		t.Error("should not be stopped initially")
	}

	a.stoppedMu.Lock()
	a.stopped = true
	a.stoppedMu.Unlock()

	if !a.IsStopped() {
		t.Error("should be stopped")
	}
}
