package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики агента. Экспортируются через /metrics процесса.
var (
	servicesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoy_agent_services_started_total",
		Help: "Total number of service start commands accepted",
	})

	servicesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoy_agent_services_failed_total",
		Help: "Total number of services that ended in FAILED",
	})

	serviceRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "convoy_agent_service_restarts_total",
		Help: "Total number of supervised container restarts",
	})
)
