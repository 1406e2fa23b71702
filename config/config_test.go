package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `server:
  address: ":9000"
jobs:
  max_concurrent: 4
  solve_timeout_seconds: 30
  non_optimal_as_error: true
store:
  driver: "postgres"
  dsn: "postgres://rec@localhost/rec"
source:
  type: "influx"
  conf:
    url: "http://localhost:8086"
    bucket: "meters"
solver:
  type: "remote"
  conf:
    url: "http://solver:8080/solve"
metrics:
  sinks:
    - type: "prometheus"
cache:
  backend: "redis"
  addr: "localhost:6379"
notify:
  mqtt:
    enabled: true
    broker: "tcp://localhost:1883"
    qos: 1
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"server.address", cfg.Server.Address, ":9000"},
		{"server.read_timeout default", cfg.Server.ReadTimeout(), 15 * time.Second},
		{"jobs.max_concurrent", cfg.Jobs.MaxConcurrent, 4},
		{"jobs.solve_timeout", cfg.Jobs.SolveTimeout(), 30 * time.Second},
		{"jobs.non_optimal_as_error", cfg.Jobs.NonOptimalAsError, true},
		{"store.driver", cfg.Store.Driver, "postgres"},
		{"source.type", cfg.Source.Type, "influx"},
		{"source.conf.bucket", cfg.Source.Conf["bucket"], "meters"},
		{"solver.type", cfg.Solver.Type, "remote"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "prometheus", true},
		{"cache.backend", cfg.Cache.Backend, "redis"},
		{"cache.ttl default", cfg.Cache.TTL(), time.Hour},
		{"mqtt.qos", cfg.Notify.MQTT.QoS, byte(1)},
		{"mqtt.topic_prefix default", cfg.Notify.MQTT.TopicPrefix, "recsizing/orders"},
		{"tracing.service_name default", cfg.Tracing.ServiceName, "recsizing"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"store":{"dsn":"a.db"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("K_STORE__DSN", "b.db")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Store.DSN != "b.db" {
		t.Fatalf("expected env override, got %s", cfg.Store.DSN)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Source.Type != "file" || cfg.Solver.Type != "reference" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadEnvOverrideNested(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("notify:\n  mqtt:\n    topic_prefix: a\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("K_NOTIFY__MQTT__TOPIC_PREFIX", "rec/jobs")
	t.Setenv("K_NOTIFY__MQTT__MAX_RETRIES", "7")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Notify.MQTT.TopicPrefix != "rec/jobs" || cfg.Notify.MQTT.MaxRetries != 7 {
		t.Fatalf("nested env override not applied: %+v", cfg.Notify.MQTT)
	}
}

func TestValidateErrors(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "oracle"
	cfg.Jobs.MaxConcurrent = -1
	cfg.Cache.Backend = "redis"
	cfg.Notify.MQTT.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
