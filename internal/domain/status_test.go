package domain

import "testing"

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name   string
		status ServiceStatus
		cond   GateCondition
		want   bool
	}{
		{"running satisfies started", ServiceStatusRunning, ConditionStarted, true},
		{"healthy satisfies started", ServiceStatusHealthy, ConditionStarted, true},
		{"completed satisfies started", ServiceStatusCompleted, ConditionStarted, true},
		{"starting does not satisfy started", ServiceStatusStarting, ConditionStarted, false},
		{"pending does not satisfy started", ServiceStatusPending, ConditionStarted, false},

		{"healthy satisfies healthy", ServiceStatusHealthy, ConditionHealthy, true},
		{"running does not satisfy healthy", ServiceStatusRunning, ConditionHealthy, false},
		{"completed does not satisfy healthy", ServiceStatusCompleted, ConditionHealthy, false},

		{"completed satisfies completed", ServiceStatusCompleted, ConditionCompleted, true},
		{"healthy does not satisfy completed", ServiceStatusHealthy, ConditionCompleted, false},
		{"failed does not satisfy completed", ServiceStatusFailed, ConditionCompleted, false},

		{"unknown condition never satisfied", ServiceStatusHealthy, GateCondition("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Satisfies(tt.cond); got != tt.want {
				t.Errorf("%s.Satisfies(%s) = %v, want %v", tt.status, tt.cond, got, tt.want)
			}
		})
	}
}

func TestCanEverSatisfy(t *testing.T) {
	tests := []struct {
		name   string
		status ServiceStatus
		cond   GateCondition
		want   bool
	}{
		{"pending can become healthy", ServiceStatusPending, ConditionHealthy, true},
		{"running can become healthy", ServiceStatusRunning, ConditionHealthy, true},
		{"starting can complete", ServiceStatusStarting, ConditionCompleted, true},

		{"failed is a dead end for started", ServiceStatusFailed, ConditionStarted, false},
		{"failed is a dead end for healthy", ServiceStatusFailed, ConditionHealthy, false},
		{"stopped is a dead end for completed", ServiceStatusStopped, ConditionCompleted, false},

		{"completed still satisfies started", ServiceStatusCompleted, ConditionStarted, true},
		{"completed will never be healthy", ServiceStatusCompleted, ConditionHealthy, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.CanEverSatisfy(tt.cond); got != tt.want {
				t.Errorf("%s.CanEverSatisfy(%s) = %v, want %v", tt.status, tt.cond, got, tt.want)
			}
		})
	}
}
