package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stratus-faas/stratus/internal/config"
)

var Enabled bool
var registry = prometheus.NewRegistry()

var (
	completedInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stratus_invocations_total",
		Help: "Completed invocations by function and outcome.",
	}, []string{"function", "outcome"})

	startedInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stratus_starts_total",
		Help: "Dispatched invocations by function and start kind (warm/cold).",
	}, []string{"function", "kind"})

	queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stratus_queue_depth",
		Help: "Pending invocations per function.",
	}, []string{"function"})

	contextCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stratus_contexts",
		Help: "Execution contexts per function and state.",
	}, []string{"function", "state"})
)

// Init registers the collectors and exposes the metrics endpoint, if enabled.
func Init() {
	if config.GetBool(config.METRICS_ENABLED, false) {
		log.Println("Metrics enabled.")
		Enabled = true
	} else {
		log.Println("Metrics disabled.")
		Enabled = false
		return
	}

	registry.MustRegister(completedInvocations, startedInvocations, queueDepth, contextCount)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true})
	http.Handle("/metrics", handler)
	port := config.GetInt(config.METRICS_PORT, 2112)
	http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
}

func RecordCompletion(funcName string, outcome string) {
	if !Enabled {
		return
	}
	completedInvocations.WithLabelValues(funcName, outcome).Inc()
}

func RecordStart(funcName string, warm bool) {
	if !Enabled {
		return
	}
	kind := "cold"
	if warm {
		kind = "warm"
	}
	startedInvocations.WithLabelValues(funcName, kind).Inc()
}

func SetQueueDepth(funcName string, depth int) {
	if !Enabled {
		return
	}
	queueDepth.WithLabelValues(funcName).Set(float64(depth))
}

func SetContextCounts(funcName string, busy int, idle int) {
	if !Enabled {
		return
	}
	contextCount.WithLabelValues(funcName, "busy").Set(float64(busy))
	contextCount.WithLabelValues(funcName, "warm-idle").Set(float64(idle))
}
