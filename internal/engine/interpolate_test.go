package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Convoy/internal/domain"
)

func TestInterpolate_Simple(t *testing.T) {
	vars := NewVars(map[string]string{"DOMAIN": "example.com"})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no variables", "plain string", "plain string"},
		{"single variable", "http://${DOMAIN}", "http://example.com"},
		{"variable only", "${DOMAIN}", "example.com"},
		{"default used", "${MISSING:-fallback}", "fallback"},
		{"default ignored", "${DOMAIN:-fallback}", "example.com"},
		{"empty default", "${MISSING:-}", ""},
		{"escaped dollar", "cost: $$5", "cost: $5"},
		{"mixed", "${DOMAIN}:${PORT:-8080}", "example.com:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Interpolate(tt.input, vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestInterpolate_Errors(t *testing.T) {
	vars := NewVars(nil)

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"undefined variable", "${MISSING}", ErrUndefinedVariable},
		{"unterminated", "${DOMAIN", ErrBadInterpolation},
		{"dangling dollar", "price: $", ErrBadInterpolation},
		{"bare dollar", "$DOMAIN", ErrBadInterpolation},
		{"empty name", "${:-x}", ErrBadInterpolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Interpolate(tt.input, vars)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestInterpolate_InputsOverrideEnv(t *testing.T) {
	vars := NewVars(map[string]string{"SECRET_KEY": "from-inputs"})
	vars.SetEnv("SECRET_KEY", "from-env")

	got, err := Interpolate("${SECRET_KEY}", vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-inputs" {
		t.Errorf("inputs must take precedence, got %q", got)
	}
}

func TestInterpolateSpec(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{
				Name:  "engine",
				Image: "oncall:latest",
				Environment: map[string]string{
					"BASE_URL":       "http://${DOMAIN}:8080",
					"MYSQL_PASSWORD": "${MYSQL_PASSWORD:-empty}",
				},
				Command: []string{"serve", "--domain", "${DOMAIN}"},
				Healthcheck: &domain.HealthcheckDef{
					Type:   "http",
					Target: "http://${DOMAIN}:8080/health",
				},
			},
		},
	}

	vars := NewVars(map[string]string{"DOMAIN": "localhost"})

	result, err := InterpolateSpec(spec, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := result.Services[0]
	if svc.Environment["BASE_URL"] != "http://localhost:8080" {
		t.Errorf("unexpected BASE_URL: %q", svc.Environment["BASE_URL"])
	}
	if svc.Environment["MYSQL_PASSWORD"] != "empty" {
		t.Errorf("unexpected MYSQL_PASSWORD: %q", svc.Environment["MYSQL_PASSWORD"])
	}
	if svc.Command[2] != "localhost" {
		t.Errorf("unexpected command arg: %q", svc.Command[2])
	}
	if svc.Healthcheck.Target != "http://localhost:8080/health" {
		t.Errorf("unexpected healthcheck target: %q", svc.Healthcheck.Target)
	}

	// Исходный дескриптор не должен измениться
	if spec.Services[0].Environment["BASE_URL"] != "http://${DOMAIN}:8080" {
		t.Error("original spec was modified")
	}
}

func TestInterpolateSpec_UndefinedVariable(t *testing.T) {
	spec := &domain.StackSpec{
		Services: []domain.ServiceDef{
			{
				Name:        "engine",
				Image:       "oncall:latest",
				Environment: map[string]string{"SECRET_KEY": "${SECRET_KEY}"},
			},
		},
	}

	_, err := InterpolateSpec(spec, NewVars(nil))
	if !errors.Is(err, ErrUndefinedVariable) {
		t.Errorf("expected ErrUndefinedVariable, got %v", err)
	}

	var valErr *ValidationError
	if !errors.As(err, &valErr) || valErr.Service != "engine" {
		t.Errorf("expected ValidationError for engine, got %v", err)
	}
}
