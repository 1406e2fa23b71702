// Package app wires the sizing service together.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/recsizing/api/sizing"
	_ "github.com/kilianp07/recsizing/app/plugins"
	"github.com/kilianp07/recsizing/config"
	"github.com/kilianp07/recsizing/core/assembler"
	corecache "github.com/kilianp07/recsizing/core/cache"
	"github.com/kilianp07/recsizing/core/datasource"
	"github.com/kilianp07/recsizing/core/events"
	"github.com/kilianp07/recsizing/core/inputs"
	coremetrics "github.com/kilianp07/recsizing/core/metrics"
	coremon "github.com/kilianp07/recsizing/core/monitoring"
	"github.com/kilianp07/recsizing/core/reference"
	"github.com/kilianp07/recsizing/core/runner"
	"github.com/kilianp07/recsizing/core/solver"
	"github.com/kilianp07/recsizing/core/store"
	infracache "github.com/kilianp07/recsizing/infra/cache"
	"github.com/kilianp07/recsizing/infra/journal"
	"github.com/kilianp07/recsizing/infra/logger"
	"github.com/kilianp07/recsizing/infra/metrics"
	"github.com/kilianp07/recsizing/infra/monitoring"
	"github.com/kilianp07/recsizing/infra/notify"
	"github.com/kilianp07/recsizing/infra/sqlstore"
	"github.com/kilianp07/recsizing/infra/tracing"
	"github.com/kilianp07/recsizing/internal/eventbus"
)

// Option overrides a component built from configuration.
type Option func(*options)

type options struct {
	store  store.Store
	source datasource.Source
	engine solver.Engine
}

// WithStore uses s instead of opening the configured database.
func WithStore(s store.Store) Option { return func(o *options) { o.store = s } }

// WithSource uses s instead of the configured data source.
func WithSource(s datasource.Source) Option { return func(o *options) { o.source = s } }

// WithEngine uses e instead of the configured engine.
func WithEngine(e solver.Engine) Option { return func(o *options) { o.engine = e } }

// Service owns every component of the sizing service.
type Service struct {
	Runner    *runner.Runner
	Assembler *assembler.Assembler
	Store     store.Store
	// Journal is nil unless journal.path is configured.
	Journal *journal.Journal

	cfg     *config.Config
	bus     *eventbus.TypedBus[events.JobEvent]
	sink    coremetrics.MetricsSink
	monitor coremon.Monitor
	relay   *notify.MQTTRelay
	router  *gin.Engine
	log     logger.Logger
	closers []func() error
}

// New builds a Service from cfg. Components that fail to build release
// those already opened.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (svc *Service, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s := &Service{cfg: cfg, log: logger.New("service")}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	tracer, shutdown, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	s.closers = append(s.closers, func() error {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(c)
	})

	if s.monitor, err = monitoring.NewSentryMonitor(cfg.Sentry); err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	s.Store = o.store
	if s.Store == nil {
		sqlStore, err := sqlstore.Open(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		s.Store = sqlStore
	}
	s.closers = append(s.closers, s.Store.Close)

	source := o.source
	if source == nil {
		if source, err = datasource.NewSource(cfg.Source); err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
	}
	engine := o.engine
	if engine == nil {
		if engine, err = solver.NewEngine(cfg.Solver); err != nil {
			return nil, fmt.Errorf("solver: %w", err)
		}
	}

	tables, err := referenceTables(cfg.Reference)
	if err != nil {
		return nil, err
	}

	var cache corecache.ResultCache
	if cache, err = infracache.New(ctx, cfg.Cache); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if c, ok := cache.(interface{ Close() error }); ok {
		s.closers = append(s.closers, c.Close)
	}

	s.bus = eventbus.NewTyped[events.JobEvent]()
	s.closers = append(s.closers, func() error { s.bus.Close(); return nil })

	if cfg.Notify.MQTT.Enabled {
		if s.relay, err = notify.NewMQTTRelay(cfg.Notify.MQTT, logger.New("notify"), s.monitor); err != nil {
			return nil, fmt.Errorf("mqtt relay: %w", err)
		}
		s.closers = append(s.closers, func() error { s.relay.Close(); return nil })
	}
	if cfg.Journal.Enabled() {
		if s.Journal, err = journal.Open(cfg.Journal); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		s.closers = append(s.closers, s.Journal.Close)
	}

	s.Runner, err = runner.New(cfg.Jobs, runner.Deps{
		Store:   s.Store,
		Source:  source,
		Builder: inputs.NewBuilder(tables),
		Engine:  engine,
		Bus:     s.bus,
		Metrics: s.sink,
		Monitor: s.monitor,
		Logger:  logger.New("runner"),
		Tracer:  tracer,
	})
	if err != nil {
		return nil, err
	}
	s.Assembler = assembler.New(s.Store, cache, logger.New("assembler"))

	gin.SetMode(gin.ReleaseMode)
	s.router = sizing.NewRouter(sizing.NewHandler(s.Runner, s.Assembler, logger.New("api")), logger.New("http"))
	return s, nil
}

func referenceTables(cfg config.ReferenceConfig) (*reference.Tables, error) {
	if cfg.Path == "" {
		return reference.Default()
	}
	t, err := reference.Load(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("reference tables: %w", err)
	}
	return t, nil
}

// Start launches the event consumers. The returned channel is closed once
// all of them have stopped.
func (s *Service) Start(ctx context.Context) <-chan struct{} {
	consumers := []<-chan struct{}{
		metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("collector")),
	}
	if s.relay != nil {
		consumers = append(consumers, s.relay.Start(ctx, s.bus))
	}
	if s.Journal != nil {
		consumers = append(consumers, s.Journal.Start(ctx, s.bus, logger.New("journal")))
	}
	done := make(chan struct{})
	go func() {
		for _, c := range consumers {
			<-c
		}
		close(done)
	}()
	return done
}

// Run serves the HTTP API until ctx is canceled, then waits for running jobs.
// Event consumers outlive ctx so the outcomes of draining jobs are still
// recorded; closing the bus stops them.
func (s *Service) Run(ctx context.Context) error {
	consumers := s.Start(context.WithoutCancel(ctx))
	err := sizing.Serve(ctx, s.cfg.Server, s.router, s.log)
	s.log.Infof("waiting for running jobs")
	s.Runner.Wait()
	s.bus.Close()
	<-consumers
	return err
}

// Close releases resources held by the service in reverse order of
// acquisition.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
