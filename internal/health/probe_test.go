package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shaiso/Convoy/internal/domain"
)

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(nil)

	for _, typ := range []string{"tcp", "http", "container"} {
		if !r.Has(typ) {
			t.Errorf("default registry must contain %s probe", typ)
		}
	}

	if _, err := r.Get("grpc"); !errors.Is(err, ErrProbeNotFound) {
		t.Errorf("expected ErrProbeNotFound, got %v", err)
	}

	types := r.Types()
	if len(types) != 3 {
		t.Errorf("expected 3 probe types, got %v", types)
	}
}

func TestTCPProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	probe := NewTCPProbe()
	ctx := context.Background()

	// Живой порт
	err = probe.Check(ctx, &Request{Service: "db", Target: ln.Addr().String()})
	if err != nil {
		t.Errorf("unexpected error for live port: %v", err)
	}

	// Закрытый порт
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := closed.Addr().String()
	closed.Close()

	err = probe.Check(ctx, &Request{Service: "db", Target: addr})
	if !errors.Is(err, ErrProbeFailed) {
		t.Errorf("expected ErrProbeFailed for closed port, got %v", err)
	}
}

func TestHTTPProbe(t *testing.T) {
	var healthy atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	probe := NewHTTPProbe()
	ctx := context.Background()
	req := &Request{Service: "engine", Target: srv.URL + "/health"}

	// Нездоровый эндпоинт
	if err := probe.Check(ctx, req); !errors.Is(err, ErrProbeFailed) {
		t.Errorf("expected ErrProbeFailed for 503, got %v", err)
	}

	// Здоровый эндпоинт
	healthy.Store(true)
	if err := probe.Check(ctx, req); err != nil {
		t.Errorf("unexpected error for 200: %v", err)
	}

	// Недоступный хост
	req.Target = "http://127.0.0.1:1/health"
	if err := probe.Check(ctx, req); !errors.Is(err, ErrProbeFailed) {
		t.Errorf("expected ErrProbeFailed for refused connection, got %v", err)
	}
}

// fakeHealthSource — источник health-статусов для тестов.
type fakeHealthSource struct {
	healthy bool
	err     error
}

func (f *fakeHealthSource) ContainerHealthy(ctx context.Context, containerID string) (bool, error) {
	return f.healthy, f.err
}

func TestContainerProbe(t *testing.T) {
	ctx := context.Background()
	req := &Request{Service: "grafana", ContainerID: "abc123"}

	probe := NewContainerProbe(&fakeHealthSource{healthy: false})
	if err := probe.Check(ctx, req); !errors.Is(err, ErrProbeFailed) {
		t.Errorf("expected ErrProbeFailed for unhealthy container, got %v", err)
	}

	probe = NewContainerProbe(&fakeHealthSource{healthy: true})
	if err := probe.Check(ctx, req); err != nil {
		t.Errorf("unexpected error for healthy container: %v", err)
	}

	probe = NewContainerProbe(&fakeHealthSource{err: errors.New("no such container")})
	if err := probe.Check(ctx, req); !errors.Is(err, ErrProbeFailed) {
		t.Errorf("expected ErrProbeFailed for inspect error, got %v", err)
	}

	// Без контейнера проверка невозможна
	if err := probe.Check(ctx, &Request{Service: "grafana"}); !errors.Is(err, ErrProbeFailed) {
		t.Errorf("expected ErrProbeFailed for missing container ID, got %v", err)
	}
}

// flakyProbe — проверка, которая проходит после заданного числа неудач.
type flakyProbe struct {
	failures int32
	calls    atomic.Int32
}

func (p *flakyProbe) Type() string { return "flaky" }

func (p *flakyProbe) Check(ctx context.Context, req *Request) error {
	if p.calls.Add(1) <= p.failures {
		return fmt.Errorf("%w: not ready", ErrProbeFailed)
	}
	return nil
}

func fastHealthcheck(retries int) *domain.HealthcheckDef {
	// IntervalSec/TimeoutSec не могут быть нулевыми (подставятся
	// значения по умолчанию), поэтому берём минимальную секунду —
	// но для скорости тестов проверка должна пройти раньше.
	return &domain.HealthcheckDef{
		Type:        "flaky",
		IntervalSec: 1,
		TimeoutSec:  1,
		Retries:     retries,
	}
}

func TestProber_PassesWithinBudget(t *testing.T) {
	probe := &flakyProbe{failures: 2}
	registry := NewRegistry()
	registry.Register(probe)

	prober := NewProber(registry)
	hc := fastHealthcheck(5)

	err := prober.WaitHealthy(context.Background(), &Request{Service: "db"}, hc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probe.calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", probe.calls.Load())
	}
}

func TestProber_BudgetExhausted(t *testing.T) {
	probe := &flakyProbe{failures: 100}
	registry := NewRegistry()
	registry.Register(probe)

	prober := NewProber(registry)
	hc := fastHealthcheck(2)

	err := prober.WaitHealthy(context.Background(), &Request{Service: "db"}, hc)
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	if probe.calls.Load() != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", probe.calls.Load())
	}
}

func TestProber_Cancelled(t *testing.T) {
	probe := &flakyProbe{failures: 100}
	registry := NewRegistry()
	registry.Register(probe)

	prober := NewProber(registry)
	hc := fastHealthcheck(10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := prober.WaitHealthy(ctx, &Request{Service: "db"}, hc)
	if !errors.Is(err, ErrProbeCancelled) {
		t.Fatalf("expected ErrProbeCancelled, got %v", err)
	}
}

func TestProber_UnknownType(t *testing.T) {
	prober := NewProber(NewRegistry())
	hc := &domain.HealthcheckDef{Type: "tcp", Target: "localhost:1"}

	err := prober.WaitHealthy(context.Background(), &Request{Service: "db"}, hc)
	if !errors.Is(err, ErrProbeNotFound) {
		t.Fatalf("expected ErrProbeNotFound, got %v", err)
	}
}
