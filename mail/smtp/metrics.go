package smtp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

var (
	// sendDuration - гистограмма длительности отправки писем
	sendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smtp_send_duration_seconds",
			Help:    "Длительность отправки писем через SMTP",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"security", "status"},
	)

	// sendTotal - счётчик отправленных писем
	sendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smtp_send_total",
			Help: "Общее количество отправок писем через SMTP",
		},
		[]string{"security", "status"},
	)
)

func init() {
	// Регистрация метрик в Prometheus
	prometheus.MustRegister(sendDuration)
	prometheus.MustRegister(sendTotal)
}

// recordSend записывает метрики отправки письма
func recordSend(security Security, err error, duration time.Duration) {
	status := statusOK
	if err != nil {
		status = statusError
	}
	sendDuration.WithLabelValues(security.String(), status).Observe(duration.Seconds())
	sendTotal.WithLabelValues(security.String(), status).Inc()
}
