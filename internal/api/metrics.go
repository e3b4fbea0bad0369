package api

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AaronLay10/AssemblyEngine/internal/events"
	"github.com/AaronLay10/AssemblyEngine/internal/version"
)

// newMetrics builds a registry whose collectors read live state at scrape
// time. op may be nil, in which case no session gauges are registered.
func newMetrics(name string, op Operator, ready *Readiness) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	labels := prometheus.Labels{"session": name, "instance": hostname}
	started := time.Now()

	gauge := func(metric, help string, fn func() float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, fn))
	}
	boolGauge := func(metric, help string, fn func() bool) {
		gauge(metric, help, func() float64 {
			if fn() {
				return 1
			}
			return 0
		})
	}

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "assembly_build_info",
		Help:        "Build information, always 1",
		ConstLabels: prometheus.Labels{"version": version.Version},
	}, func() float64 { return 1 }))

	gauge("assembly_uptime_seconds", "Seconds since the process started",
		func() float64 { return time.Since(started).Seconds() })
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name:        "assembly_events_total",
		Help:        "Total number of events emitted since startup",
		ConstLabels: labels,
	}, func() float64 { return float64(events.TotalCount()) }))
	gauge("assembly_ws_clients", "Number of active WebSocket client connections",
		func() float64 { return float64(events.SubscriberCount()) })
	boolGauge("assembly_mqtt_connected", "Whether the MQTT broker is connected (1) or not (0)",
		ready.MQTTConnected)
	boolGauge("assembly_postgres_connected", "Whether PostgreSQL is connected (1) or not (0)",
		ready.PostgresConnected)

	if op == nil {
		return reg
	}
	gauge("assembly_task_index", "Index of the active task, -1 when paused",
		func() float64 { return float64(op.Status().TaskIndex) })
	gauge("assembly_task_count", "Number of tasks in the session",
		func() float64 { return float64(op.Status().TaskCount) })
	gauge("assembly_owned_nodes", "Nodes owned by this participant",
		func() float64 { return float64(op.Status().Owned) })
	gauge("assembly_selected_nodes", "Nodes currently selected on this participant",
		func() float64 { return float64(op.Status().Selected) })
	boolGauge("assembly_session_completed", "Whether every task is finished (1) or not (0)",
		func() bool { return op.Status().Completed })
	return reg
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
