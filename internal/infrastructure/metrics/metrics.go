package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cotscan/internal/domain/model"
)

// Stage names used for the latency histogram.
const (
	StageFetch   = "fetch"
	StageCompute = "compute"
	StageDetect  = "detect"
	StageExport  = "export"
)

// Run holds the counters of one analysis run on a private registry.
// A nil *Run is valid and records nothing.
type Run struct {
	reg *prometheus.Registry

	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	events    *prometheus.CounterVec
	rows      prometheus.Counter
	latency   *prometheus.HistogramVec
	lastRun   prometheus.Gauge
}

func New() *Run {
	r := &Run{
		reg: prometheus.NewRegistry(),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cotscan",
			Name:      "markets_processed_total",
			Help:      "Markets analysed successfully",
		}, []string{"report"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cotscan",
			Name:      "markets_failed_total",
			Help:      "Markets that ended in a failure outcome",
		}, []string{"report"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cotscan",
			Name:      "events_total",
			Help:      "Extreme and crossing events by kind",
		}, []string{"kind"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cotscan",
			Name:      "metric_rows_total",
			Help:      "Metric rows computed",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cotscan",
			Name:      "stage_latency_seconds",
			Help:      "Per-market latency of pipeline stages",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cotscan",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
	r.reg.MustRegister(r.processed, r.failed, r.events, r.rows, r.latency, r.lastRun)
	for _, k := range model.EventKinds() {
		r.events.WithLabelValues(string(k))
	}
	return r
}

func (r *Run) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Run) MarketProcessed(rt model.ReportType, res *model.MarketResult) {
	if r == nil {
		return
	}
	r.processed.WithLabelValues(string(rt)).Inc()
	r.rows.Add(float64(len(res.Rows)))
	for _, ev := range res.Events {
		r.events.WithLabelValues(string(ev.Kind)).Inc()
	}
}

func (r *Run) MarketFailed(rt model.ReportType) {
	if r == nil {
		return
	}
	r.failed.WithLabelValues(string(rt)).Inc()
}

// Observe records how long a stage took, measured from start.
func (r *Run) Observe(stage string, start time.Time) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (r *Run) Finished(at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (r *Run) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
