package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/recsizing/core/events"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/internal/eventbus"
)

type countingSink struct {
	mu   sync.Mutex
	seen []string
}

func (c *countingSink) RecordJobOutcome(ev events.JobEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, ev.OrderID)
	return nil
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.NewTyped[events.JobEvent]()
	sink := &countingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, sink, nil)

	bus.Publish(events.JobEvent{OrderID: "a", State: model.StateComplete})
	bus.Publish(events.JobEvent{OrderID: "b", State: model.StateInternalError})

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sink.count() != 2 {
		t.Fatalf("expected 2 recorded events, got %d", sink.count())
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
