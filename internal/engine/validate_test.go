package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Convoy/internal/domain"
)

func validSpec() *domain.StackSpec {
	return &domain.StackSpec{
		Name: "test-stack",
		Services: []domain.ServiceDef{
			{
				Name:        "db",
				Image:       "mysql:8.0",
				Healthcheck: &domain.HealthcheckDef{Type: "tcp", Target: "localhost:3306"},
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

func TestValidate_OK(t *testing.T) {
	if err := Validate(validSpec()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_NoServices(t *testing.T) {
	if err := Validate(&domain.StackSpec{}); !errors.Is(err, ErrNoServices) {
		t.Errorf("expected ErrNoServices, got %v", err)
	}
	if err := Validate(nil); !errors.Is(err, ErrNoServices) {
		t.Errorf("expected ErrNoServices for nil spec, got %v", err)
	}
}

func TestValidate_EmptyName(t *testing.T) {
	spec := validSpec()
	spec.Services[0].Name = ""

	err := Validate(spec)
	if !errors.Is(err, ErrEmptyServiceName) {
		t.Errorf("expected ErrEmptyServiceName, got %v", err)
	}
}

func TestValidate_DuplicateName(t *testing.T) {
	spec := validSpec()
	spec.Services[1].Name = "db"
	spec.Services[1].DependsOn = nil

	err := Validate(spec)
	if !errors.Is(err, ErrDuplicateService) {
		t.Errorf("expected ErrDuplicateService, got %v", err)
	}
}

func TestValidate_EmptyImage(t *testing.T) {
	spec := validSpec()
	spec.Services[2].Image = ""

	err := Validate(spec)
	if !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}

	var valErr *ValidationError
	if !errors.As(err, &valErr) || valErr.Service != "app" {
		t.Errorf("expected ValidationError for app, got %v", err)
	}
}

func TestValidate_SelfDependency(t *testing.T) {
	spec := validSpec()
	spec.Services[0].DependsOn = []domain.DependencyDef{{Service: "db"}}

	err := Validate(spec)
	if !errors.Is(err, ErrSelfDependency) {
		t.Errorf("expected ErrSelfDependency, got %v", err)
	}
}

func TestValidate_UnknownCondition(t *testing.T) {
	spec := validSpec()
	spec.Services[1].DependsOn[0].Condition = "service_ready"

	err := Validate(spec)
	if !errors.Is(err, ErrUnknownCondition) {
		t.Errorf("expected ErrUnknownCondition, got %v", err)
	}
}

func TestValidate_HealthyWithoutHealthcheck(t *testing.T) {
	spec := validSpec()
	spec.Services[0].Healthcheck = nil

	err := Validate(spec)
	if !errors.Is(err, ErrMissingHealthcheck) {
		t.Errorf("expected ErrMissingHealthcheck, got %v", err)
	}
}

func TestValidate_CompletedOnLongRunning(t *testing.T) {
	spec := validSpec()
	spec.Services[1].Oneshot = false

	err := Validate(spec)
	if !errors.Is(err, ErrCompletedOnLongRunning) {
		t.Errorf("expected ErrCompletedOnLongRunning, got %v", err)
	}
}

func TestValidate_OneshotRestartAlways(t *testing.T) {
	spec := validSpec()
	spec.Services[1].Restart = domain.RestartAlways

	err := Validate(spec)
	if !errors.Is(err, ErrOneshotRestart) {
		t.Errorf("expected ErrOneshotRestart, got %v", err)
	}
}

func TestValidate_UnknownRestartPolicy(t *testing.T) {
	spec := validSpec()
	spec.Services[0].Restart = "unless-stopped"

	err := Validate(spec)
	if !errors.Is(err, ErrUnknownRestartPolicy) {
		t.Errorf("expected ErrUnknownRestartPolicy, got %v", err)
	}
}

func TestValidate_UnknownProbeType(t *testing.T) {
	spec := validSpec()
	spec.Services[0].Healthcheck.Type = "grpc"

	err := Validate(spec)
	if !errors.Is(err, ErrUnknownProbeType) {
		t.Errorf("expected ErrUnknownProbeType, got %v", err)
	}
}

func TestValidate_ProbeWithoutTarget(t *testing.T) {
	spec := validSpec()
	spec.Services[0].Healthcheck.Target = ""

	err := Validate(spec)
	if !errors.Is(err, ErrUnknownProbeType) {
		t.Errorf("expected target error, got %v", err)
	}

	// container-проба цели не требует
	spec.Services[0].Healthcheck.Type = "container"
	if err := Validate(spec); err != nil {
		t.Errorf("container probe without target must be valid, got %v", err)
	}
}

func TestValidate_UnknownVolume(t *testing.T) {
	spec := validSpec()
	spec.Services[0].Mounts = []domain.MountDef{
		{Volume: "dbdata", Target: "/var/lib/mysql"},
	}

	err := Validate(spec)
	if !errors.Is(err, ErrUnknownVolume) {
		t.Errorf("expected ErrUnknownVolume, got %v", err)
	}

	spec.Volumes = []domain.VolumeDef{{Name: "dbdata"}}
	if err := Validate(spec); err != nil {
		t.Errorf("unexpected error after declaring volume: %v", err)
	}
}

func TestValidate_AmbiguousMount(t *testing.T) {
	spec := validSpec()
	spec.Volumes = []domain.VolumeDef{{Name: "dbdata"}}
	spec.Services[0].Mounts = []domain.MountDef{
		{Volume: "dbdata", Source: "/etc/mysql.cnf", Target: "/var/lib/mysql"},
	}

	err := Validate(spec)
	if !errors.Is(err, ErrAmbiguousMount) {
		t.Errorf("expected ErrAmbiguousMount, got %v", err)
	}
}

func TestValidate_Cycle(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{Name: "a", Image: "img",
				DependsOn: []domain.DependencyDef{{Service: "b"}}},
			{Name: "b", Image: "img",
				DependsOn: []domain.DependencyDef{{Service: "a"}}},
		},
	}

	err := Validate(spec)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestParseAndValidate(t *testing.T) {
	data := []byte(`
name: incident-platform
services:
  - name: db
    image: mysql:8.0
    healthcheck:
      type: tcp
      target: "localhost:3306"
      retries: 10
      timeout_sec: 20
  - name: app
    image: app:latest
    depends_on:
      - service: db
        condition: service_healthy
`)

	spec, err := ParseAndValidate(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(spec.Services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(spec.Services))
	}
	if spec.Services[0].Healthcheck.RetryBudget() != 10 {
		t.Errorf("expected retry budget 10, got %d", spec.Services[0].Healthcheck.RetryBudget())
	}
	if spec.Services[1].DependsOn[0].Condition != domain.ConditionHealthy {
		t.Errorf("unexpected condition: %s", spec.Services[1].DependsOn[0].Condition)
	}
}

func TestParseSpec_UnknownField(t *testing.T) {
	data := []byte(`
services:
  - name: db
    image: mysql:8.0
    helthcheck:
      type: tcp
`)

	if _, err := ParseSpec(data); err == nil {
		t.Error("expected error for unknown field")
	}
}
