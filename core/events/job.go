package events

import (
	"time"

	"github.com/kilianp07/recsizing/core/model"
)

// JobEvent reports a terminal transition of a sizing job.
type JobEvent struct {
	OrderID    string          `json:"order_id"`
	RunID      string          `json:"run_id"`
	Variant    model.Variant   `json:"variant"`
	State      model.State     `json:"state"`
	ErrorCode  model.ErrorCode `json:"error,omitempty"`
	Message    string          `json:"message,omitempty"`
	MILPStatus string          `json:"milp_status,omitempty"`
	Meters     int             `json:"meters"`
	Steps      int             `json:"steps"`
	Duration   time.Duration   `json:"duration_ns"`
	SolveTime  time.Duration   `json:"solve_time_ns"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Succeeded reports whether the job persisted results.
func (e JobEvent) Succeeded() bool { return e.State == model.StateComplete }
