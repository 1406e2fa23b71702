package metrics

import (
	"context"

	"github.com/kilianp07/recsizing/core/events"
	coremetrics "github.com/kilianp07/recsizing/core/metrics"
	"github.com/kilianp07/recsizing/infra/logger"
	"github.com/kilianp07/recsizing/internal/eventbus"
)

// StartEventCollector subscribes to the job event bus and records every
// terminal transition on the sink. It stops when the context is canceled or
// the bus is closed; the returned channel is closed once it has stopped.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.JobEvent], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := sink.RecordJobOutcome(ev); err != nil {
					log.Warnf("record job outcome %s: %v", ev.OrderID, err)
				}
			}
		}
	}()
	return done
}
