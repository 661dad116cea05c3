// Package metrics exposes service counters and gauges to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ytget/yt-fetchd/internal/model"
)

const namespace = "ytfetchd"

// State reports the job registry figures sampled at scrape time
type State interface {
	ActiveCount() int
	Len() int
}

// CacheState reports the artifact cache figures sampled at scrape time
type CacheState interface {
	Len() int
	TotalSize() int64
}

// PrometheusRecorder records admission, fetch, sweep and delivery outcomes
type PrometheusRecorder struct {
	admissionTotal *prometheus.CounterVec
	fetchTotal     *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	retryTotal     prometheus.Counter
	sweepTotal     *prometheus.CounterVec
	sweepEvicted   *prometheus.CounterVec
	sweepRemoved   *prometheus.CounterVec
	deliveryTotal  *prometheus.CounterVec
}

// NewPrometheusRecorder creates the recorder and registers its collectors with reg.
// jobs and cache may be nil, in which case the live gauges are not registered.
func NewPrometheusRecorder(reg prometheus.Registerer, jobs State, cache CacheState) *PrometheusRecorder {
	recorder := &PrometheusRecorder{
		admissionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admissions_total",
				Help:      "Fetch requests by admission result",
			},
			[]string{"result"},
		),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_finished_total",
				Help:      "Fetch jobs that reached a terminal state",
			},
			[]string{"type", "outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Time from job start to terminal state",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 900},
			},
			[]string{"type", "outcome"},
		),
		retryTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "Collaborator retries after a failed attempt",
			},
		),
		sweepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Retention sweeps by trigger",
			},
			[]string{"trigger"},
		),
		sweepEvicted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_artifacts_evicted_total",
				Help:      "Artifacts evicted by retention sweeps",
			},
			[]string{"trigger"},
		),
		sweepRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_jobs_removed_total",
				Help:      "Jobs removed by retention sweeps",
			},
			[]string{"trigger"},
		),
		deliveryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Artifact retrieval attempts by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		recorder.admissionTotal,
		recorder.fetchTotal,
		recorder.fetchDuration,
		recorder.retryTotal,
		recorder.sweepTotal,
		recorder.sweepEvicted,
		recorder.sweepRemoved,
		recorder.deliveryTotal,
	)

	if jobs != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_jobs",
				Help:      "Jobs currently holding a concurrency slot",
			}, func() float64 { return float64(jobs.ActiveCount()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracked_jobs",
				Help:      "Jobs currently held in the registry",
			}, func() float64 { return float64(jobs.Len()) }),
		)
	}
	if cache != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cached_artifacts",
				Help:      "Artifacts waiting for retrieval",
			}, func() float64 { return float64(cache.Len()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_size_bytes",
				Help:      "Total size of cached artifacts",
			}, func() float64 { return float64(cache.TotalSize()) }),
		)
	}
	return recorder
}

// ObserveAdmission counts a fetch request by admission result
func (r *PrometheusRecorder) ObserveAdmission(result string) {
	r.admissionTotal.WithLabelValues(result).Inc()
}

// ObserveFetch records a finished job
func (r *PrometheusRecorder) ObserveFetch(mediaType model.MediaType, outcome string, duration time.Duration) {
	r.fetchTotal.WithLabelValues(string(mediaType), outcome).Inc()
	r.fetchDuration.WithLabelValues(string(mediaType), outcome).Observe(duration.Seconds())
}

// ObserveRetry counts a collaborator retry
func (r *PrometheusRecorder) ObserveRetry() {
	r.retryTotal.Inc()
}

// ObserveSweep records one retention pass
func (r *PrometheusRecorder) ObserveSweep(trigger string, evicted, removed int) {
	r.sweepTotal.WithLabelValues(trigger).Inc()
	r.sweepEvicted.WithLabelValues(trigger).Add(float64(evicted))
	r.sweepRemoved.WithLabelValues(trigger).Add(float64(removed))
}

// ObserveDelivery counts an artifact retrieval attempt
func (r *PrometheusRecorder) ObserveDelivery(result string) {
	r.deliveryTotal.WithLabelValues(result).Inc()
}
