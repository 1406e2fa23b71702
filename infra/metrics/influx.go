package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/recsizing/core/events"
	coremetrics "github.com/kilianp07/recsizing/core/metrics"
	"github.com/kilianp07/recsizing/infra/logger"
)

// InfluxSink writes job events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordJobOutcome writes one sizing_job point per terminal transition.
func (s *InfluxSink) RecordJobOutcome(ev events.JobEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("sizing_job").
		AddTag("state", string(ev.State)).
		AddTag("variant", string(ev.Variant)).
		AddTag("order_id", ev.OrderID)
	if ev.MILPStatus != "" {
		p = p.AddTag("milp_status", ev.MILPStatus)
	}
	p = p.AddField("meters", ev.Meters).
		AddField("steps", ev.Steps).
		AddField("duration_s", round3(ev.Duration.Seconds())).
		AddField("solve_s", round3(ev.SolveTime.Seconds())).
		SetTime(ev.FinishedAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStage writes the duration of a pipeline stage.
func (s *InfluxSink) RecordStage(st coremetrics.StageTiming) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("sizing_stage").
		AddTag("stage", st.Stage).
		AddTag("order_id", st.OrderID).
		AddField("duration_ms", round3(float64(st.Duration)/float64(time.Millisecond))).
		AddField("failed", st.Failed).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
