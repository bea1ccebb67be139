package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder wraps the prometheus instruments used across the scanner.
// All methods are safe on a nil receiver so callers never guard.
type Recorder struct {
	scanCycles    *prometheus.CounterVec
	cyclesSkipped *prometheus.CounterVec
	opportunities *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	notifications *prometheus.CounterVec

	openOpportunities prometheus.Gauge
	lastScanSeconds   *prometheus.GaugeVec

	chainFetchSeconds prometheus.Histogram
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		scanCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "optionscan_scan_cycles_total",
			Help: "Completed scan cycles per detector family.",
		}, []string{"detector"}),
		cyclesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "optionscan_scan_cycles_skipped_total",
			Help: "Ticks dropped because the previous cycle was still running.",
		}, []string{"detector"}),
		opportunities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "optionscan_opportunities_total",
			Help: "Opportunities dispatched, by alert type.",
		}, []string{"alert_type"}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "optionscan_fetch_errors_total",
			Help: "Market data fetch failures, by error kind.",
		}, []string{"kind"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "optionscan_notifications_total",
			Help: "Notification attempts, by outcome.",
		}, []string{"status"}),
		openOpportunities: factory.NewGauge(prometheus.GaugeOpts{
			Name: "optionscan_open_opportunities",
			Help: "Opportunities currently tracked and not closed.",
		}),
		lastScanSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optionscan_last_scan_duration_seconds",
			Help: "Wall time of the most recent scan cycle per detector family.",
		}, []string{"detector"}),
		chainFetchSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "optionscan_chain_fetch_duration_seconds",
			Help:    "Option chain fetch latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Recorder) RecordScanCycle(detector string, took time.Duration) {
	if r == nil {
		return
	}
	r.scanCycles.WithLabelValues(detector).Inc()
	r.lastScanSeconds.WithLabelValues(detector).Set(took.Seconds())
}

func (r *Recorder) RecordCycleSkipped(detector string) {
	if r == nil {
		return
	}
	r.cyclesSkipped.WithLabelValues(detector).Inc()
}

func (r *Recorder) RecordOpportunity(alertType string) {
	if r == nil {
		return
	}
	r.opportunities.WithLabelValues(alertType).Inc()
}

func (r *Recorder) RecordFetchError(kind string) {
	if r == nil {
		return
	}
	r.fetchErrors.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordNotification(status string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(status).Inc()
}

func (r *Recorder) SetOpenOpportunities(n int64) {
	if r == nil {
		return
	}
	r.openOpportunities.Set(float64(n))
}

func (r *Recorder) ObserveChainFetch(took time.Duration) {
	if r == nil {
		return
	}
	r.chainFetchSeconds.Observe(took.Seconds())
}
