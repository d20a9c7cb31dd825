package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector метрики конвейера расчета площадей. Методы безопасны для nil.
type Collector struct {
	registry *prometheus.Registry

	RoundsStarted      prometheus.Counter
	RoundsCommitted    prometheus.Counter
	RoundsSuperseded   prometheus.Counter
	TriggersSuppressed prometheus.Counter
	IntegratorCalls    *prometheus.CounterVec
	IntegratorDuration prometheus.Histogram
	IntegratorUp       prometheus.Gauge
}

// NewCollector создает метрики в собственном реестре, чтобы тесты не конфликтовали
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_started_total",
			Help:      "Total number of calculation rounds started",
		}),
		RoundsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_committed_total",
			Help:      "Total number of calculation rounds committed to view state",
		}),
		RoundsSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_superseded_total",
			Help:      "Total number of rounds discarded because a newer round had started",
		}),
		TriggersSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_suppressed_total",
			Help:      "Total number of debounced triggers dropped because the state fingerprint was unchanged",
		}),
		IntegratorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrator_calls_total",
			Help:      "Remote integrator calls by outcome",
		}, []string{"outcome"}),
		IntegratorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "integrator_call_duration_seconds",
			Help:      "Remote integrator call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		IntegratorUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "integrator_available",
			Help:      "1 while the integrator circuit breaker is not open",
		}),
	}
	c.IntegratorUp.Set(1)

	registry.MustRegister(
		c.RoundsStarted,
		c.RoundsCommitted,
		c.RoundsSuperseded,
		c.TriggersSuppressed,
		c.IntegratorCalls,
		c.IntegratorDuration,
		c.IntegratorUp,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RoundStarted() {
	if c != nil {
		c.RoundsStarted.Inc()
	}
}

func (c *Collector) RoundCommitted() {
	if c != nil {
		c.RoundsCommitted.Inc()
	}
}

func (c *Collector) RoundSuperseded() {
	if c != nil {
		c.RoundsSuperseded.Inc()
	}
}

func (c *Collector) TriggerSuppressed() {
	if c != nil {
		c.TriggersSuppressed.Inc()
	}
}

func (c *Collector) IntegratorCall(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.IntegratorCalls.WithLabelValues(outcome).Inc()
	c.IntegratorDuration.Observe(elapsed.Seconds())
}

func (c *Collector) SetIntegratorAvailable(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.IntegratorUp.Set(1)
	} else {
		c.IntegratorUp.Set(0)
	}
}
