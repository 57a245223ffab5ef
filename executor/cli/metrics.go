package cli

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// execDuration - длительность запуска внешней команды вместе с передачей stdin
	execDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exec_command_duration_seconds",
			Help:    "Длительность выполнения внешних команд",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"command", "status"},
	)

	execTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exec_command_total",
			Help: "Количество запусков внешних команд",
		},
		[]string{"command", "status"},
	)
)

func init() {
	prometheus.MustRegister(execDuration, execTotal)
}

func recordExecution(command, status string, duration time.Duration) {
	execDuration.WithLabelValues(command, status).Observe(duration.Seconds())
	execTotal.WithLabelValues(command, status).Inc()
}
