package metrics

import (
	"time"

	"github.com/kilianp07/recsizing/core/events"
	"github.com/kilianp07/recsizing/core/model"
)

// MetricsSink records terminal job outcomes.
type MetricsSink interface {
	RecordJobOutcome(ev events.JobEvent) error
}

// SubmissionEvent describes an admitted request.
type SubmissionEvent struct {
	OrderID string
	Variant model.Variant
	Meters  int
	Time    time.Time
}

// SubmissionRecorder records admitted requests.
type SubmissionRecorder interface {
	RecordSubmission(ev SubmissionEvent) error
}

// Pipeline stages timed by the job runner.
const (
	StageFetch    = "fetch"
	StageBuild    = "build"
	StageSolve    = "solve"
	StageAllocate = "allocate"
	StagePersist  = "persist"
)

// StageTiming is the duration of one pipeline stage of a job.
type StageTiming struct {
	OrderID  string
	Stage    string
	Duration time.Duration
	Failed   bool
}

// StageRecorder records per-stage durations.
type StageRecorder interface {
	RecordStage(st StageTiming) error
}

// InflightRecorder records the number of jobs currently running.
type InflightRecorder interface {
	RecordInflight(n int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordJobOutcome(events.JobEvent) error { return nil }
func (NopSink) RecordSubmission(SubmissionEvent) error { return nil }
func (NopSink) RecordStage(StageTiming) error          { return nil }
func (NopSink) RecordInflight(int) error               { return nil }
