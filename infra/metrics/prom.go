package metrics

import (
	"errors"

	"github.com/kilianp07/recsizing/core/events"
	coremetrics "github.com/kilianp07/recsizing/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records sizing job metrics in Prometheus collectors.
type PromSink struct {
	submitted *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	stages    *prometheus.HistogramVec
	inflight  prometheus.Gauge
}

// NewPromSink registers job metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sizing_orders_submitted_total",
			Help: "Total number of admitted sizing requests",
		}, []string{"variant"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sizing_jobs_completed_total",
			Help: "Total number of sizing jobs by terminal state",
		}, []string{"state", "milp_status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sizing_job_duration_seconds",
			Help:    "Wall time from job start to terminal transition",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"state"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sizing_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage", "failed"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sizing_jobs_inflight",
			Help: "Number of sizing jobs currently running",
		}),
	}
	var err error
	if s.submitted, err = register(reg, s.submitted); err != nil {
		return nil, err
	}
	if s.completed, err = register(reg, s.completed); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.stages, err = register(reg, s.stages); err != nil {
		return nil, err
	}
	if s.inflight, err = register(reg, s.inflight); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordJobOutcome counts the terminal state and observes the job duration.
func (s *PromSink) RecordJobOutcome(ev events.JobEvent) error {
	s.completed.WithLabelValues(string(ev.State), ev.MILPStatus).Inc()
	s.duration.WithLabelValues(string(ev.State)).Observe(ev.Duration.Seconds())
	return nil
}

// RecordSubmission counts an admitted request.
func (s *PromSink) RecordSubmission(ev coremetrics.SubmissionEvent) error {
	s.submitted.WithLabelValues(string(ev.Variant)).Inc()
	return nil
}

// RecordStage observes the duration of a pipeline stage.
func (s *PromSink) RecordStage(st coremetrics.StageTiming) error {
	failed := "false"
	if st.Failed {
		failed = "true"
	}
	s.stages.WithLabelValues(st.Stage, failed).Observe(st.Duration.Seconds())
	return nil
}

// RecordInflight sets the running jobs gauge.
func (s *PromSink) RecordInflight(n int) error {
	s.inflight.Set(float64(n))
	return nil
}
