package metrics

import (
	"errors"

	"github.com/kilianp07/recsizing/core/events"
)

// MultiSink fans records out to several sinks. Every sink is called even when
// an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordJobOutcome(ev events.JobEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordJobOutcome(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordSubmission(ev SubmissionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(SubmissionRecorder); ok {
			errs = append(errs, rec.RecordSubmission(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordStage(st StageTiming) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(StageRecorder); ok {
			errs = append(errs, rec.RecordStage(st))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordInflight(n int) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(InflightRecorder); ok {
			errs = append(errs, rec.RecordInflight(n))
		}
	}
	return errors.Join(errs...)
}
