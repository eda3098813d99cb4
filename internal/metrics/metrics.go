// Package metrics exports scheduler and module events as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"richard/internal/bot"
)

// Recorder implements bot.Observer on its own registry.
type Recorder struct {
	reg *prometheus.Registry

	variationRuns     *prometheus.CounterVec
	variationPanics   *prometheus.CounterVec
	variationDuration *prometheus.HistogramVec
	triggerDispatch   *prometheus.CounterVec
	broadcastBatches  prometheus.Counter
	mailboxDepth      prometheus.Gauge
	workersActive     prometheus.Gauge
	targetAlive       *prometheus.GaugeVec
	targetErrorRate   *prometheus.GaugeVec
}

var _ bot.Observer = (*Recorder)(nil)

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		variationRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "richard_variation_runs_total",
			Help: "Completed variation runs.",
		}, []string{"module", "variation"}),
		variationPanics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "richard_variation_panics_total",
			Help: "Variation workers that ended with a panic.",
		}, []string{"module"}),
		variationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "richard_variation_duration_seconds",
			Help:    "Variation run duration, including time waiting for the module.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 120, 600},
		}, []string{"module"}),
		triggerDispatch: f.NewCounterVec(prometheus.CounterOpts{
			Name: "richard_trigger_dispatch_total",
			Help: "Messages dispatched to modules by tier.",
		}, []string{"module", "tier"}),
		broadcastBatches: f.NewCounter(prometheus.CounterOpts{
			Name: "richard_broadcast_batches_total",
			Help: "Message batches delivered to sender modules.",
		}),
		mailboxDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "richard_mailbox_depth",
			Help: "Batches waiting in the broadcast mailbox.",
		}),
		workersActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "richard_workers_active",
			Help: "Variation workers currently running.",
		}),
		targetAlive: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "richard_target_alive",
			Help: "1 when a watched target is considered alive.",
		}, []string{"module", "target"}),
		targetErrorRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "richard_target_error_rate",
			Help: "Smoothed probe failure rate of a watched target, once valid.",
		}, []string{"module", "target"}),
	}
}

// Registry is the registry served on /metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) VariationRan(module, variation string, took time.Duration) {
	r.variationRuns.WithLabelValues(module, variation).Inc()
	r.variationDuration.WithLabelValues(module).Observe(took.Seconds())
}

func (r *Recorder) VariationPanicked(module string) {
	r.variationPanics.WithLabelValues(module).Inc()
}

func (r *Recorder) MailboxDepth(n int)  { r.mailboxDepth.Set(float64(n)) }
func (r *Recorder) BatchBroadcast(int)  { r.broadcastBatches.Inc() }
func (r *Recorder) WorkersActive(n int) { r.workersActive.Set(float64(n)) }

func (r *Recorder) TriggerDispatched(module, tier string) {
	r.triggerDispatch.WithLabelValues(module, tier).Inc()
}

func (r *Recorder) TargetState(module, target string, alive bool, rate float64, rateValid bool) {
	v := 0.0
	if alive {
		v = 1
	}
	r.targetAlive.WithLabelValues(module, target).Set(v)
	if rateValid {
		r.targetErrorRate.WithLabelValues(module, target).Set(rate)
	}
}
