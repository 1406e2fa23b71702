package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilianp07/recsizing/core/allocation"
	"github.com/kilianp07/recsizing/core/datasource"
	"github.com/kilianp07/recsizing/core/events"
	"github.com/kilianp07/recsizing/core/inputs"
	"github.com/kilianp07/recsizing/core/logger"
	"github.com/kilianp07/recsizing/core/metrics"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/solver"
	"github.com/kilianp07/recsizing/core/store"
)

// MissingEntitiesPrefix starts the message of MISSING_ENTITIES orders.
const MissingEntitiesPrefix = "One or more meter IDs not found on registry system: "

// failure is a terminal error outcome of a job.
type failure struct {
	code    model.ErrorCode
	message string
	err     error
	stage   string
	// reported marks failures already sent to the monitor.
	reported bool
}

func (f *failure) Error() string { return f.message }

func (f *failure) Unwrap() error { return f.err }

// job carries the state of one run through the pipeline.
type job struct {
	id        string
	runID     string
	req       model.Request
	log       logger.Logger
	grid      []time.Time
	dataset   datasource.Dataset
	input     solver.Input
	output    solver.Output
	results   model.Results
	solveTime time.Duration
}

// Process runs the pipeline of order id and performs its terminal
// transition. Panics are recovered into INTERNAL_ERROR. The returned error
// is non-nil when the job failed for an internal reason or the transition
// could not be persisted.
func (r *Runner) Process(ctx context.Context, id string, req model.Request) (ev events.JobEvent, err error) {
	j := &job{id: id, runID: uuid.NewString(), req: req}
	j.log = r.Logger.With(map[string]any{"order_id": id, "run_id": j.runID})
	start := r.now()

	ctx, span := r.Tracer.Start(ctx, "sizing.job", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.variant", string(req.Variant())),
		attribute.Int("order.meters", len(req.AllMeterIDs())),
		attribute.Bool("order.clustered", req.Clustered()),
	))
	defer span.End()

	var f *failure
	func() {
		defer func() {
			if v := recover(); v != nil {
				r.Monitor.CapturePanic(v, map[string]string{"order_id": id, "run_id": j.runID})
				f = &failure{
					code:     model.CodeInternal,
					message:  fmt.Sprintf("internal error: %v", v),
					err:      fmt.Errorf("panic: %v", v),
					reported: true,
				}
			}
		}()
		f = r.pipeline(ctx, j)
	}()

	if f != nil {
		err = r.fail(ctx, j, f)
		span.SetStatus(codes.Error, f.message)
	} else {
		j.log.Infof("order completed with status %s", j.output.Status)
	}
	if err != nil {
		span.RecordError(err)
	}

	ev = r.event(j, f, start)
	if r.Bus != nil {
		r.Bus.Publish(ev)
	} else if rerr := r.Metrics.RecordJobOutcome(ev); rerr != nil {
		j.log.Warnf("record job outcome: %v", rerr)
	}
	return ev, err
}

func (r *Runner) pipeline(ctx context.Context, j *job) *failure {
	if f := r.stage(ctx, j, metrics.StageFetch, r.fetch); f != nil {
		return f
	}
	if f := r.stage(ctx, j, metrics.StageBuild, r.build); f != nil {
		return f
	}
	if f := r.stage(ctx, j, metrics.StageSolve, r.solve); f != nil {
		return f
	}
	if f := r.stage(ctx, j, metrics.StageAllocate, r.allocate); f != nil {
		return f
	}
	return r.stage(ctx, j, metrics.StagePersist, r.persist)
}

// stage runs one step of the pipeline in its own span and records its
// duration.
func (r *Runner) stage(ctx context.Context, j *job, name string, fn func(context.Context, *job) *failure) *failure {
	ctx, span := r.Tracer.Start(ctx, "sizing."+name)
	defer span.End()

	began := r.now()
	f := fn(ctx, j)
	elapsed := r.now().Sub(began)
	if f != nil {
		f.stage = name
		span.SetStatus(codes.Error, f.message)
	}
	if rec, ok := r.Metrics.(metrics.StageRecorder); ok {
		if err := rec.RecordStage(metrics.StageTiming{OrderID: j.id, Stage: name, Duration: elapsed, Failed: f != nil}); err != nil {
			j.log.Warnf("record stage %s: %v", name, err)
		}
	}
	j.log.Debugw("stage finished", map[string]any{"stage": name, "duration_ms": elapsed.Milliseconds(), "failed": f != nil})
	return f
}

// fetch loads the dataset and enforces completeness: missing meters win
// over missing data points.
func (r *Runner) fetch(ctx context.Context, j *job) *failure {
	ids := j.req.AllMeterIDs()
	j.grid = datasource.Grid(j.req.Start, j.req.End)
	ds, err := r.Source.Fetch(ctx, datasource.Query{
		Origin:   j.req.Origin,
		MeterIDs: ids,
		Start:    j.req.Start,
		End:      j.req.End,
	})
	if err != nil {
		return internal(fmt.Errorf("fetch dataset: %w", err))
	}
	j.dataset = ds

	report := datasource.Check(ids, j.grid, ds)
	if len(report.MissingIDs) > 0 {
		return &failure{code: model.CodeMissingEntities, message: MissingEntitiesPrefix + report.MissingIDsJSON()}
	}
	if len(report.MissingPoints) > 0 {
		return &failure{code: model.CodeMissingDataPoints, message: report.MissingPointsJSON()}
	}
	return nil
}

func (r *Runner) build(_ context.Context, j *job) *failure {
	in, err := r.Builder.Build(j.req, j.grid, j.dataset)
	if err != nil {
		if errors.Is(err, inputs.ErrPrecondition) {
			return &failure{code: model.CodeInvalidInput, message: err.Error(), err: err}
		}
		return internal(fmt.Errorf("build engine input: %w", err))
	}
	j.input = in
	return nil
}

func (r *Runner) solve(ctx context.Context, j *job) *failure {
	solveCtx := ctx
	if d := r.cfg.SolveTimeout(); d > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	began := r.now()
	out, err := r.Engine.Solve(solveCtx, j.input)
	j.solveTime = r.now().Sub(began)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && errors.Is(solveCtx.Err(), context.DeadlineExceeded) {
			return &failure{
				code:    model.CodeSolverTimeout,
				message: fmt.Sprintf("solver did not finish within %s", r.cfg.SolveTimeout()),
				err:     err,
			}
		}
		return internal(fmt.Errorf("solve: %w", err))
	}
	j.output = out
	if r.cfg.NonOptimalAsError && out.Status != model.StatusOptimal {
		return &failure{code: model.CodeSolverNotOptimal, message: fmt.Sprintf("solver finished with status %s", out.Status)}
	}
	return nil
}

func (r *Runner) allocate(_ context.Context, j *job) *failure {
	res, err := allocation.Allocate(j.req, j.input, j.output)
	if err != nil {
		return internal(fmt.Errorf("allocate results: %w", err))
	}
	j.results = res
	return nil
}

func (r *Runner) persist(ctx context.Context, j *job) *failure {
	if err := r.Store.Complete(ctx, j.id, j.results); err != nil {
		if errors.Is(err, store.ErrAlreadyProcessed) {
			return &failure{code: model.CodeNone, message: err.Error(), err: err}
		}
		return internal(fmt.Errorf("persist results: %w", err))
	}
	return nil
}

func internal(err error) *failure {
	return &failure{code: model.CodeInternal, message: "internal error: " + err.Error(), err: err}
}

// fail performs the error transition of a job. An order that was already
// processed is left untouched.
func (r *Runner) fail(ctx context.Context, j *job, f *failure) error {
	if errors.Is(f.err, store.ErrAlreadyProcessed) {
		j.log.Warnf("order already reached a terminal state")
		return f.err
	}
	if f.code == model.CodeInternal {
		j.log.Errorf("order failed in %s: %v", f.stage, f.err)
		if !f.reported {
			r.Monitor.CaptureException(f.err, map[string]string{"order_id": j.id, "run_id": j.runID, "stage": f.stage})
		}
	} else {
		j.log.Warnf("order rejected (%s): %s", f.code, f.message)
	}
	if err := r.Store.MarkError(ctx, j.id, f.code, f.message); err != nil {
		return fmt.Errorf("mark order %s as failed: %w", j.id, err)
	}
	if f.code == model.CodeInternal {
		return f
	}
	return nil
}

func (r *Runner) event(j *job, f *failure, start time.Time) events.JobEvent {
	ev := events.JobEvent{
		OrderID:    j.id,
		RunID:      j.runID,
		Variant:    j.req.Variant(),
		State:      model.StateComplete,
		MILPStatus: j.output.Status,
		Meters:     len(j.req.AllMeterIDs()),
		Steps:      len(j.grid),
		SolveTime:  j.solveTime,
		FinishedAt: r.now(),
	}
	ev.Duration = ev.FinishedAt.Sub(start)
	if f != nil && !errors.Is(f.err, store.ErrAlreadyProcessed) {
		ev.State = f.code.State()
		ev.ErrorCode = f.code
		ev.Message = f.message
	}
	return ev
}
