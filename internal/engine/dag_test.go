package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Convoy/internal/domain"
)

func TestBuildDAG_SimpleChain(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "db", Image: "mysql:8.0"},
			{Name: "migrate", Image: "app:latest", Oneshot: true,
				DependsOn: []domain.DependencyDef{{Service: "db", Condition: domain.ConditionStarted}}},
			{Name: "app", Image: "app:latest",
				DependsOn: []domain.DependencyDef{{Service: "migrate", Condition: domain.ConditionCompleted}}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Проверяем количество узлов
	if dag.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", dag.Size())
	}

	// Проверяем корневые узлы
	if len(dag.RootNodes) != 1 {
		t.Errorf("expected 1 root node, got %d", len(dag.RootNodes))
	}
	if dag.RootNodes[0].Name != "db" {
		t.Errorf("expected root node db, got %s", dag.RootNodes[0].Name)
	}

	// Проверяем зависимости и условия на рёбрах
	migrate := dag.GetNode("migrate")
	if len(migrate.DependsOn) != 1 || migrate.DependsOn[0].From.Name != "db" {
		t.Error("migrate should depend on db")
	}
	if migrate.DependsOn[0].Condition != domain.ConditionStarted {
		t.Errorf("expected service_started edge, got %s", migrate.DependsOn[0].Condition)
	}

	app := dag.GetNode("app")
	if len(app.DependsOn) != 1 || app.DependsOn[0].From.Name != "migrate" {
		t.Error("app should depend on migrate")
	}
	if app.DependsOn[0].Condition != domain.ConditionCompleted {
		t.Errorf("expected service_completed_successfully edge, got %s", app.DependsOn[0].Condition)
	}
}

func TestBuildDAG_Diamond(t *testing.T) {
	// db → migrate → app
	// db → cache  → app
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "db", Image: "mysql:8.0"},
			{Name: "migrate", Image: "app:latest", Oneshot: true,
				DependsOn: []domain.DependencyDef{{Service: "db"}}},
			{Name: "cache", Image: "redis:7",
				DependsOn: []domain.DependencyDef{{Service: "db"}}},
			{Name: "app", Image: "app:latest",
				DependsOn: []domain.DependencyDef{{Service: "migrate"}, {Service: "cache"}}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.Size() != 4 {
		t.Errorf("expected 4 nodes, got %d", dag.Size())
	}

	app := dag.GetNode("app")
	if len(app.DependsOn) != 2 {
		t.Errorf("app should have 2 dependencies, got %d", len(app.DependsOn))
	}

	// Пустое условие трактуется как service_started
	for _, edge := range app.DependsOn {
		if edge.Condition != domain.ConditionStarted {
			t.Errorf("expected default service_started edge, got %s", edge.Condition)
		}
	}

	// Проверяем inDegree
	if dag.GetNode("db").InDegree != 0 {
		t.Error("db should have inDegree 0")
	}
	if dag.GetNode("migrate").InDegree != 1 {
		t.Error("migrate should have inDegree 1")
	}
	if dag.GetNode("app").InDegree != 2 {
		t.Error("app should have inDegree 2")
	}
}

func TestBuildDAG_CyclicDependency(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "a", Image: "img",
				DependsOn: []domain.DependencyDef{{Service: "c"}}},
			{Name: "b", Image: "img",
				DependsOn: []domain.DependencyDef{{Service: "a"}}},
			{Name: "c", Image: "img",
				DependsOn: []domain.DependencyDef{{Service: "b"}}},
		},
	}

	_, err := BuildDAG(spec)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestBuildDAG_MissingDependency(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "app", Image: "img",
				DependsOn: []domain.DependencyDef{{Service: "ghost"}}},
		},
	}

	_, err := BuildDAG(spec)
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("expected ErrMissingDependency, got %v", err)
	}

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if valErr.Service != "app" {
		t.Errorf("expected error for service app, got %s", valErr.Service)
	}
}

func TestGetReadyNodes_GateConditions(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "db", Image: "mysql:8.0",
				Healthcheck: &domain.HealthcheckDef{Type: "tcp", Target: "localhost:3306"}},
			{Name: "migrate", Image: "app:latest", Oneshot: true,
				DependsOn: []domain.DependencyDef{{Service: "db", Condition: domain.ConditionHealthy}}},
			{Name: "app", Image: "app:latest",
				DependsOn: []domain.DependencyDef{{Service: "migrate", Condition: domain.ConditionCompleted}}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// В начале готов только корень
	statuses := map[string]domain.ServiceStatus{
		"db":      domain.ServiceStatusPending,
		"migrate": domain.ServiceStatusPending,
		"app":     domain.ServiceStatusPending,
	}
	ready := dag.GetReadyNodes(statuses)
	if len(ready) != 1 || ready[0].Name != "db" {
		t.Fatalf("expected [db] ready, got %v", names(ready))
	}

	// RUNNING не удовлетворяет service_healthy
	statuses["db"] = domain.ServiceStatusRunning
	ready = dag.GetReadyNodes(statuses)
	if len(ready) != 0 {
		t.Errorf("migrate must wait for HEALTHY, got ready %v", names(ready))
	}

	// HEALTHY открывает migrate
	statuses["db"] = domain.ServiceStatusHealthy
	ready = dag.GetReadyNodes(statuses)
	if len(ready) != 1 || ready[0].Name != "migrate" {
		t.Fatalf("expected [migrate] ready, got %v", names(ready))
	}

	// RUNNING oneshot ещё не удовлетворяет service_completed_successfully
	statuses["migrate"] = domain.ServiceStatusRunning
	ready = dag.GetReadyNodes(statuses)
	if len(ready) != 0 {
		t.Errorf("app must wait for COMPLETED, got ready %v", names(ready))
	}

	// COMPLETED открывает app
	statuses["migrate"] = domain.ServiceStatusCompleted
	ready = dag.GetReadyNodes(statuses)
	if len(ready) != 1 || ready[0].Name != "app" {
		t.Fatalf("expected [app] ready, got %v", names(ready))
	}
}

func TestGetReadyNodes_SkipsNonPending(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "db", Image: "mysql:8.0"},
			{Name: "app", Image: "app:latest",
				DependsOn: []domain.DependencyDef{{Service: "db"}}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Уже отправленный агенту сервис не должен вернуться повторно
	statuses := map[string]domain.ServiceStatus{
		"db":  domain.ServiceStatusRunning,
		"app": domain.ServiceStatusQueued,
	}
	ready := dag.GetReadyNodes(statuses)
	if len(ready) != 0 {
		t.Errorf("expected no ready nodes, got %v", names(ready))
	}
}

func TestGetBlockedNodes(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "db", Image: "mysql:8.0",
				Healthcheck: &domain.HealthcheckDef{Type: "tcp", Target: "localhost:3306"}},
			{Name: "app", Image: "app:latest",
				DependsOn: []domain.DependencyDef{{Service: "db", Condition: domain.ConditionHealthy}}},
			{Name: "worker", Image: "app:latest",
				DependsOn: []domain.DependencyDef{{Service: "app"}}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Отказ db блокирует app; worker пока PENDING, но его зависимость
	// (app) ещё не в тупике — каскад обрабатывает оркестратор.
	statuses := map[string]domain.ServiceStatus{
		"db":     domain.ServiceStatusFailed,
		"app":    domain.ServiceStatusPending,
		"worker": domain.ServiceStatusPending,
	}
	blocked := dag.GetBlockedNodes(statuses)
	if len(blocked) != 1 || blocked[0].Name != "app" {
		t.Fatalf("expected [app] blocked, got %v", names(blocked))
	}
}

func TestGetTransitiveDependents(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "db", Image: "mysql:8.0"},
			{Name: "migrate", Image: "app:latest", Oneshot: true,
				DependsOn: []domain.DependencyDef{{Service: "db"}}},
			{Name: "app", Image: "app:latest",
				DependsOn: []domain.DependencyDef{{Service: "migrate"}}},
			{Name: "standalone", Image: "redis:7"},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := dag.GetTransitiveDependents("db")
	got := make(map[string]bool)
	for _, n := range deps {
		got[n.Name] = true
	}

	if len(deps) != 2 || !got["migrate"] || !got["app"] {
		t.Errorf("expected dependents [migrate app], got %v", names(deps))
	}
	if got["standalone"] {
		t.Error("standalone must not be a dependent of db")
	}
}

func TestStartStopOrder(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "db", Image: "mysql:8.0"},
			{Name: "app", Image: "app:latest",
				DependsOn: []domain.DependencyDef{{Service: "db"}}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := dag.StartOrder()
	if start[0] != "db" || start[1] != "app" {
		t.Errorf("unexpected start order: %v", start)
	}

	stop := dag.StopOrder()
	if stop[0] != "app" || stop[1] != "db" {
		t.Errorf("unexpected stop order: %v", stop)
	}
}

func TestIsSettled(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "db", Image: "mysql:8.0"},
			{Name: "app", Image: "app:latest",
				DependsOn: []domain.DependencyDef{{Service: "db"}}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := map[string]domain.ServiceStatus{
		"db":  domain.ServiceStatusHealthy,
		"app": domain.ServiceStatusStarting,
	}
	if dag.IsSettled(statuses) {
		t.Error("STARTING service must not count as settled")
	}

	statuses["app"] = domain.ServiceStatusRunning
	if !dag.IsSettled(statuses) {
		t.Error("all services settled, expected true")
	}
}

func names(nodes []*Node) []string {
	result := make([]string, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, n.Name)
	}
	return result
}
