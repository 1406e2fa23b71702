package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/recsizing/config"
	"github.com/kilianp07/recsizing/core/events"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/infra/logger"
	"github.com/kilianp07/recsizing/internal/eventbus"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu          sync.Mutex
	opts        *paho.ClientOptions
	published   []published
	publishErrs []error
	connectErr  error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{topic, qos, retained, payload.([]byte)})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

func (m *mockClient) messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.published...)
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type recordMonitor struct {
	mu   sync.Mutex
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(any, map[string]string) {}
func (r *recordMonitor) Flush(time.Duration)                 {}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{Enabled: true, Broker: "tcp://localhost:1883", QoS: 1, BackoffMS: 1}
}

func TestPublishTopicAndPayload(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	r, err := NewMQTTRelay(testConfig(), logger.NopLogger{}, nil)
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	if mc.opts.ClientID != "recsizing" {
		t.Fatalf("default client id not applied: %q", mc.opts.ClientID)
	}
	ev := events.JobEvent{OrderID: "abc", State: model.StateMissingEntities, ErrorCode: model.CodeMissingEntities}
	if err := r.Publish(ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msgs := mc.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].topic != "recsizing/orders/abc/status" || msgs[0].qos != 1 || msgs[0].retained {
		t.Fatalf("unexpected publish %+v", msgs[0])
	}
	var got events.JobEvent
	if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.OrderID != "abc" || got.ErrorCode != model.CodeMissingEntities {
		t.Fatalf("payload mismatch: %+v", got)
	}
}

func TestPublishRetriesThenCaptures(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMock(t, mc)
	cfg := testConfig()
	cfg.MaxRetries = 1
	r, err := NewMQTTRelay(cfg, logger.NopLogger{}, nil)
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	if err := r.Publish(events.JobEvent{OrderID: "o1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.messages()) != 2 {
		t.Fatalf("expected a retry, got %d publishes", len(mc.messages()))
	}

	mc.publishErrs = []error{fmt.Errorf("down"), fmt.Errorf("down")}
	mon := &recordMonitor{}
	r.mon = mon
	if err := r.Publish(events.JobEvent{OrderID: "o2"}); err == nil {
		t.Fatalf("expected error")
	}
	if mon.err == nil || mon.tags["order_id"] != "o2" || mon.tags["module"] != "notify" {
		t.Fatalf("error not captured: %+v", mon.tags)
	}
}

func TestConnectError(t *testing.T) {
	withMock(t, &mockClient{connectErr: fmt.Errorf("refused")})
	if _, err := NewMQTTRelay(testConfig(), nil, nil); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Broker = ""
	if _, err := NewMQTTRelay(cfg, nil, nil); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestStartRelaysBusEvents(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	r, err := NewMQTTRelay(testConfig(), logger.NopLogger{}, nil)
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	bus := eventbus.NewTyped[events.JobEvent]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := r.Start(ctx, bus)

	// Subscribe happens synchronously in Start.
	bus.Publish(events.JobEvent{OrderID: "a", State: model.StateComplete})
	bus.Publish(events.JobEvent{OrderID: "b", State: model.StateInternalError})

	deadline := time.Now().Add(2 * time.Second)
	for len(mc.messages()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	msgs := mc.messages()
	if len(msgs) != 2 || msgs[0].topic != "recsizing/orders/a/status" || msgs[1].topic != "recsizing/orders/b/status" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("relay did not stop")
	}
}
