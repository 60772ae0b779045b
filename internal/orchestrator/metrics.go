package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики оркестратора. Экспортируются через /metrics процесса.
var (
	deploymentsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoy_orchestrator_deployments_started_total",
		Help: "Total number of deployments the orchestrator began processing",
	})

	deploymentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoy_orchestrator_deployments_failed_total",
		Help: "Total number of deployments that ended in FAILED",
	})

	deploymentsStopped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoy_orchestrator_deployments_stopped_total",
		Help: "Total number of deployments stopped on request",
	})

	servicesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoy_orchestrator_services_dispatched_total",
		Help: "Total number of service start commands sent to agents",
	})
)
