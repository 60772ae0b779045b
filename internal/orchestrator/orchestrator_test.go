package orchestrator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/engine"
)

// testSpec возвращает типовой дескриптор: база с health-check,
// oneshot-миграция и приложение.
func testSpec() domain.StackSpec {
	return domain.StackSpec{
		Name: "test-stack",
		Services: []domain.ServiceDef{
			{
				Name:  "db",
				Image: "mysql:8.0",
				Healthcheck: &domain.HealthcheckDef{
					Type:   "tcp",
					Target: "localhost:3306",
				},
			},
			{
				Name:    "migrate",
				Image:   "app:latest",
				Oneshot: true,
				DependsOn: []domain.DependencyDef{
					{Service: "db", Condition: domain.ConditionHealthy},
				},
			},
			{
				Name:  "app",
				Image: "app:latest",
				DependsOn: []domain.DependencyDef{
					{Service: "migrate", Condition: domain.ConditionCompleted},
				},
			},
		},
	}
}

func newTestState(spec domain.StackSpec) *DeploymentState {
	deployment := &domain.Deployment{ID: uuid.New(), StackID: uuid.New(), Version: 1}
	version := &domain.StackVersion{StackID: deployment.StackID, Version: 1, Spec: spec}
	return NewDeploymentState(deployment, version)
}

// --- DeploymentState Tests ---

func TestNewDeploymentState(t *testing.T) {
	deployment := &domain.Deployment{ID: uuid.New()}
	version := &domain.StackVersion{}

	state := NewDeploymentState(deployment, version)

	if state.Deployment != deployment {
		t.Error("Deployment should be set")
	}
	if state.StackVersion != version {
		t.Error("StackVersion should be set")
	}
	if state.statuses == nil {
		t.Error("statuses map should be initialized")
	}
	if state.states == nil {
		t.Error("states map should be initialized")
	}
}

func TestDeploymentState_Initialize_EmptySpec(t *testing.T) {
	state := newTestState(domain.StackSpec{})

	if err := state.Initialize(nil); err == nil {
		t.Error("expected error for empty spec")
	}
}

func TestDeploymentState_Initialize_ValidSpec(t *testing.T) {
	state := newTestState(testSpec())

	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.DAG == nil {
		t.Fatal("DAG should be built")
	}
	if state.DAG.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", state.DAG.Size())
	}
	if state.Spec == nil {
		t.Fatal("interpolated spec should be set")
	}

	for _, name := range []string{"db", "migrate", "app"} {
		if state.ServiceStatus(name) != domain.ServiceStatusPending {
			t.Errorf("%s should start as PENDING, got %s", name, state.ServiceStatus(name))
		}
	}
}

func TestDeploymentState_Initialize_Interpolation(t *testing.T) {
	spec := testSpec()
	spec.Services[0].Environment = map[string]string{
		"MYSQL_PASSWORD": "${MYSQL_PASSWORD}",
		"MYSQL_HOST":     "${MYSQL_HOST:-localhost}",
	}

	deployment := &domain.Deployment{
		ID:      uuid.New(),
		StackID: uuid.New(),
		Version: 1,
		Inputs:  map[string]string{"MYSQL_PASSWORD": "from-inputs"},
	}
	version := &domain.StackVersion{Spec: spec}
	state := NewDeploymentState(deployment, version)

	if err := state.Initialize(map[string]string{"MYSQL_PASSWORD": "from-env"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env := state.Spec.FindService("db").Environment
	if env["MYSQL_PASSWORD"] != "from-inputs" {
		t.Errorf("inputs should take precedence, got %q", env["MYSQL_PASSWORD"])
	}
	if env["MYSQL_HOST"] != "localhost" {
		t.Errorf("default should apply, got %q", env["MYSQL_HOST"])
	}
}

func TestDeploymentState_Initialize_UndefinedVariable(t *testing.T) {
	spec := testSpec()
	spec.Services[0].Environment = map[string]string{"SECRET": "${SECRET_KEY}"}

	state := newTestState(spec)

	if err := state.Initialize(nil); err == nil {
		t.Error("expected error for undefined variable")
	}
}

func TestDeploymentState_GetReadyServices_Gating(t *testing.T) {
	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Сначала готова только база
	ready := state.GetReadyServices()
	if len(ready) != 1 || ready[0].Name != "db" {
		t.Fatalf("expected only db ready, got %v", readyNames(ready))
	}

	// RUNNING не открывает service_healthy
	state.SetServiceStatus("db", domain.ServiceStatusRunning)
	if len(state.GetReadyServices()) != 0 {
		t.Error("migrate should wait for HEALTHY, not RUNNING")
	}

	// HEALTHY открывает миграцию
	state.SetServiceStatus("db", domain.ServiceStatusHealthy)
	ready = state.GetReadyServices()
	if len(ready) != 1 || ready[0].Name != "migrate" {
		t.Fatalf("expected migrate ready, got %v", readyNames(ready))
	}

	// COMPLETED открывает приложение
	state.SetServiceStatus("migrate", domain.ServiceStatusCompleted)
	ready = state.GetReadyServices()
	if len(ready) != 1 || ready[0].Name != "app" {
		t.Fatalf("expected app ready, got %v", readyNames(ready))
	}
}

func TestDeploymentState_GetBlockedServices(t *testing.T) {
	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state.SetServiceStatus("db", domain.ServiceStatusFailed)

	blocked := state.GetBlockedServices()
	if len(blocked) != 1 || blocked[0].Name != "migrate" {
		t.Fatalf("expected migrate blocked, got %v", readyNames(blocked))
	}
}

func TestDeploymentState_RestartingDependencyDoesNotBlock(t *testing.T) {
	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Упавший контейнер с правом на перезапуск агент сообщает как
	// STARTING, а не FAILED: зависимые сервисы продолжают ждать
	crashed := domain.NewServiceState(state.DeploymentID(), "db")
	exitCode := 1
	crashed.MarkRestarting("container exited with code 1", &exitCode)
	state.SetServiceStatus("db", crashed.Status)

	if blocked := state.GetBlockedServices(); len(blocked) != 0 {
		t.Fatalf("restarting dependency should not block dependents, got %v", readyNames(blocked))
	}
	if state.IsSettled() {
		t.Error("deployment should keep waiting for the restarting service")
	}

	// Восстановление открывает зависимые сервисы
	state.SetServiceStatus("db", domain.ServiceStatusHealthy)
	ready := state.GetReadyServices()
	if len(ready) != 1 || ready[0].Name != "migrate" {
		t.Errorf("expected migrate ready after recovery, got %v", readyNames(ready))
	}
}

func TestDeploymentState_DownServices(t *testing.T) {
	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state.SetServiceStatus("db", domain.ServiceStatusHealthy)
	state.SetServiceStatus("migrate", domain.ServiceStatusCompleted)
	state.SetServiceStatus("app", domain.ServiceStatusRunning)
	if down := state.DownServices(); len(down) != 0 {
		t.Errorf("steady deployment should have no down services, got %v", down)
	}

	// Перезапускаемый сервис деградирует развёртывание
	state.SetServiceStatus("app", domain.ServiceStatusStarting)
	if down := state.DownServices(); len(down) != 1 || down[0] != "app" {
		t.Errorf("expected [app], got %v", down)
	}

	state.SetServiceStatus("app", domain.ServiceStatusFailed)
	if down := state.DownServices(); len(down) != 1 || down[0] != "app" {
		t.Errorf("expected [app], got %v", down)
	}
}

func TestDeploymentState_Stopping(t *testing.T) {
	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.IsStopping() {
		t.Error("should not be stopping initially")
	}

	state.MarkStopping()

	if !state.IsStopping() {
		t.Error("should be stopping")
	}
	if len(state.GetReadyServices()) != 0 {
		t.Error("stopping state should not dispatch services")
	}
}

func TestDeploymentState_IsSettled(t *testing.T) {
	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.IsSettled() {
		t.Error("should not be settled initially")
	}

	state.SetServiceStatus("db", domain.ServiceStatusHealthy)
	state.SetServiceStatus("migrate", domain.ServiceStatusCompleted)
	if state.IsSettled() {
		t.Error("should not be settled while app is pending")
	}

	state.SetServiceStatus("app", domain.ServiceStatusRunning)
	if !state.IsSettled() {
		t.Error("should be settled with all services in steady state")
	}
}

func TestDeploymentState_HasFailed(t *testing.T) {
	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.HasFailed() {
		t.Error("should not have failed services initially")
	}

	state.SetServiceStatus("db", domain.ServiceStatusFailed)

	if !state.HasFailed() {
		t.Error("should have failed services")
	}
	failed := state.FailedServices()
	if len(failed) != 1 || failed[0] != "db" {
		t.Errorf("expected [db], got %v", failed)
	}
}

func TestDeploymentState_AllStopped(t *testing.T) {
	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// PENDING-сервисы не мешают остановке
	if !state.AllStopped() {
		t.Error("all-pending deployment counts as stopped")
	}

	state.SetServiceStatus("db", domain.ServiceStatusRunning)
	if state.AllStopped() {
		t.Error("running service should block AllStopped")
	}

	state.SetServiceStatus("db", domain.ServiceStatusStopped)
	if !state.AllStopped() {
		t.Error("stopped service should not block AllStopped")
	}
}

func TestDeploymentState_RestoreFromStates(t *testing.T) {
	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deploymentID := state.DeploymentID()
	states := []domain.ServiceState{
		{ID: uuid.New(), DeploymentID: deploymentID, ServiceName: "db", Status: domain.ServiceStatusHealthy},
		{ID: uuid.New(), DeploymentID: deploymentID, ServiceName: "migrate", Status: domain.ServiceStatusCompleted},
		{ID: uuid.New(), DeploymentID: deploymentID, ServiceName: "app", Status: domain.ServiceStatusQueued},
	}

	state.RestoreFromStates(states)

	if state.ServiceStatus("db") != domain.ServiceStatusHealthy {
		t.Error("db should be HEALTHY after restore")
	}
	if state.ServiceStatus("migrate") != domain.ServiceStatusCompleted {
		t.Error("migrate should be COMPLETED after restore")
	}
	if state.ServiceStatus("app") != domain.ServiceStatusQueued {
		t.Error("app should be QUEUED after restore")
	}
	if state.GetServiceState("db") == nil {
		t.Error("service state record should be stored")
	}
}

func TestDeploymentState_Stats(t *testing.T) {
	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := state.Stats()
	if stats.TotalServices != 3 {
		t.Errorf("expected 3 total services, got %d", stats.TotalServices)
	}
	if stats.PendingServices != 3 {
		t.Errorf("expected 3 pending services, got %d", stats.PendingServices)
	}

	state.SetServiceStatus("db", domain.ServiceStatusHealthy)
	state.SetServiceStatus("migrate", domain.ServiceStatusCompleted)
	state.SetServiceStatus("app", domain.ServiceStatusFailed)

	stats = state.Stats()
	if stats.RunningServices != 1 {
		t.Errorf("expected 1 running service, got %d", stats.RunningServices)
	}
	if stats.CompletedServices != 1 {
		t.Errorf("expected 1 completed service, got %d", stats.CompletedServices)
	}
	if stats.FailedServices != 1 {
		t.Errorf("expected 1 failed service, got %d", stats.FailedServices)
	}
	if stats.PendingServices != 0 {
		t.Errorf("expected 0 pending services, got %d", stats.PendingServices)
	}
}

// --- Orchestrator Tests ---

func TestNew(t *testing.T) {
	orch := New(Config{})

	if orch.activeDeployments == nil {
		t.Error("activeDeployments should be initialized")
	}
	if orch.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, orch.pollInterval)
	}
	if orch.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, orch.batchSize)
	}
	if orch.env == nil {
		t.Error("env should default to process environment")
	}
}

func TestNew_CustomConfig(t *testing.T) {
	orch := New(Config{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
		Env:          map[string]string{"DOMAIN": "example.com"},
	})

	if orch.pollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", orch.pollInterval)
	}
	if orch.batchSize != 50 {
		t.Errorf("expected batch size 50, got %d", orch.batchSize)
	}
	if orch.env["DOMAIN"] != "example.com" {
		t.Error("custom env should be kept")
	}
}

func TestOrchestrator_ActiveDeployments(t *testing.T) {
	orch := New(Config{})

	deploymentID := uuid.New()
	state := &DeploymentState{
		Deployment: &domain.Deployment{ID: deploymentID},
	}

	if orch.ActiveDeploymentsCount() != 0 {
		t.Error("should have no active deployments initially")
	}
	if orch.isDeploymentActive(deploymentID) {
		t.Error("deployment should not be active initially")
	}

	if err := orch.addActiveDeployment(state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if orch.ActiveDeploymentsCount() != 1 {
		t.Error("should have 1 active deployment")
	}
	if !orch.isDeploymentActive(deploymentID) {
		t.Error("deployment should be active")
	}
	if orch.getActiveDeployment(deploymentID) != state {
		t.Error("getActiveDeployment should return the state")
	}

	if err := orch.addActiveDeployment(state); err != ErrDeploymentAlreadyActive {
		t.Errorf("expected ErrDeploymentAlreadyActive, got %v", err)
	}

	orch.removeActiveDeployment(deploymentID)

	if orch.ActiveDeploymentsCount() != 0 {
		t.Error("should have no active deployments after removal")
	}
}

func TestOrchestrator_GetActiveDeploymentStats(t *testing.T) {
	orch := New(Config{})

	state := newTestState(testSpec())
	if err := state.Initialize(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, ok := orch.GetActiveDeploymentStats(state.DeploymentID())
	if ok {
		t.Error("should not find stats for non-active deployment")
	}

	_ = orch.addActiveDeployment(state)
	stats, ok := orch.GetActiveDeploymentStats(state.DeploymentID())
	if !ok {
		t.Fatal("should find stats for active deployment")
	}
	if stats.TotalServices != 3 {
		t.Errorf("expected 3 total services, got %d", stats.TotalServices)
	}
}

func TestOrchestrator_IsStopped(t *testing.T) {
	orch := New(Config{})

	if orch.IsStopped() {
		t.Error("should not be stopped initially")
	}

	orch.stoppedMu.Lock()
	orch.stopped = true
	orch.stoppedMu.Unlock()

	if !orch.IsStopped() {
		t.Error("should be stopped")
	}
}

func readyNames(nodes []*engine.Node) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}
