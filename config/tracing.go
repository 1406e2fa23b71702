package config

// TracingConfig configures OpenTelemetry trace export. An empty endpoint
// falls back to OTEL_EXPORTER_OTLP_ENDPOINT; when both are empty tracing stays
// a no-op.
type TracingConfig struct {
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
}

func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "recsizing"
	}
}
