package tracing

import (
	"context"
	"testing"

	"github.com/kilianp07/recsizing/config"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	tr, shutdown, err := Init(config.TracingConfig{})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if tr == nil {
		t.Fatalf("nil tracer")
	}
	_, span := tr.Start(context.Background(), "probe")
	if span.SpanContext().IsValid() {
		t.Fatalf("expected a non-recording span")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
