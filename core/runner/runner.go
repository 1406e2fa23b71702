// Package runner drives sizing jobs from admission to their single terminal
// transition. Each admitted request is processed by its own goroutine;
// completion is only observable through the order store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kilianp07/recsizing/config"
	"github.com/kilianp07/recsizing/core/datasource"
	"github.com/kilianp07/recsizing/core/events"
	"github.com/kilianp07/recsizing/core/inputs"
	"github.com/kilianp07/recsizing/core/logger"
	"github.com/kilianp07/recsizing/core/metrics"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/monitoring"
	"github.com/kilianp07/recsizing/core/orderid"
	"github.com/kilianp07/recsizing/core/solver"
	"github.com/kilianp07/recsizing/core/store"
	"github.com/kilianp07/recsizing/internal/eventbus"
)

// Deps are the collaborators of a Runner. Bus, Metrics, Monitor and Tracer
// are optional.
type Deps struct {
	Store   store.Store
	Source  datasource.Source
	Builder *inputs.Builder
	Engine  solver.Engine
	Bus     *eventbus.TypedBus[events.JobEvent]
	Metrics metrics.MetricsSink
	Monitor monitoring.Monitor
	Logger  logger.Logger
	Tracer  trace.Tracer
}

// Runner admits sizing requests and processes them in the background.
type Runner struct {
	Deps
	cfg      config.JobsConfig
	sem      chan struct{}
	wg       sync.WaitGroup
	inflight atomic.Int64
	now      func() time.Time
	newID    func() (string, error)
}

// New returns a runner. Store, Source, Builder, Engine and Logger are required.
func New(cfg config.JobsConfig, d Deps) (*Runner, error) {
	if d.Store == nil || d.Source == nil || d.Builder == nil || d.Engine == nil || d.Logger == nil {
		return nil, fmt.Errorf("runner: nil dependency provided to New")
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NopSink{}
	}
	if d.Monitor == nil {
		d.Monitor = monitoring.NopMonitor{}
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer("")
	}
	r := &Runner{Deps: d, cfg: cfg, now: time.Now, newID: orderid.New}
	if cfg.MaxConcurrent > 0 {
		r.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return r, nil
}

// Submit validates and admits req, then processes it in the background. The
// returned id can be polled immediately; the order stays PENDING until the
// job reaches its terminal state.
func (r *Runner) Submit(ctx context.Context, req model.Request) (string, error) {
	id, err := r.admit(ctx, req)
	if err != nil {
		return "", err
	}
	jobCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.acquire()
		defer r.release()
		_, _ = r.Process(jobCtx, id, req)
	}()
	return id, nil
}

// Execute admits req and processes it synchronously.
func (r *Runner) Execute(ctx context.Context, req model.Request) (string, events.JobEvent, error) {
	id, err := r.admit(ctx, req)
	if err != nil {
		return "", events.JobEvent{}, err
	}
	ev, err := r.Process(ctx, id, req)
	return id, ev, err
}

// Wait blocks until every job started by Submit has returned.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) admit(ctx context.Context, req model.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	var id string
	for attempt := 0; attempt < 2; attempt++ {
		var err error
		if id, err = r.newID(); err != nil {
			return "", fmt.Errorf("generate order id: %w", err)
		}
		err = r.Store.CreateOrder(ctx, id, req.Clustered())
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateOrder) || attempt == 1 {
			return "", fmt.Errorf("create order: %w", err)
		}
	}
	if rec, ok := r.Metrics.(metrics.SubmissionRecorder); ok {
		if err := rec.RecordSubmission(metrics.SubmissionEvent{
			OrderID: id,
			Variant: req.Variant(),
			Meters:  len(req.AllMeterIDs()),
			Time:    r.now(),
		}); err != nil {
			r.Logger.Warnf("record submission %s: %v", id, err)
		}
	}
	r.Logger.Infof("order %s admitted (%s, %d meters)", id, req.Variant(), len(req.AllMeterIDs()))
	return id, nil
}

func (r *Runner) acquire() {
	if r.sem != nil {
		r.sem <- struct{}{}
	}
	r.recordInflight(r.inflight.Add(1))
}

func (r *Runner) release() {
	r.recordInflight(r.inflight.Add(-1))
	if r.sem != nil {
		<-r.sem
	}
}

func (r *Runner) recordInflight(n int64) {
	if rec, ok := r.Metrics.(metrics.InflightRecorder); ok {
		_ = rec.RecordInflight(int(n))
	}
}
