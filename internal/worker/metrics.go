package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	tasksTotal        *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	activeTasks       prometheus.Gauge
	archivedBytes     prometheus.Counter
	webhookDeliveries *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stylizer_worker_archive_tasks_total",
			Help: "Archive tasks handled, by conversion status and task result.",
		}, []string{"conversion_status", "result"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stylizer_worker_archive_task_duration_seconds",
			Help:    "Time spent archiving one conversion.",
			Buckets: prometheus.DefBuckets,
		}, []string{"conversion_status", "result"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stylizer_worker_active_tasks",
			Help: "Archive tasks currently in progress.",
		}),
		archivedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stylizer_worker_archived_bytes_total",
			Help: "PNG bytes written to object storage.",
		}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stylizer_worker_webhook_deliveries_total",
			Help: "Webhook deliveries by event and result.",
		}, []string{"event", "result"}),
	}

	registry.MustRegister(
		m.tasksTotal,
		m.taskDuration,
		m.activeTasks,
		m.archivedBytes,
		m.webhookDeliveries,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
