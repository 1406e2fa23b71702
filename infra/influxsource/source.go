// Package influxsource reads historical meter data from InfluxDB 2.x.
//
// Readings are stored in one measurement tagged with meter_id and origin and
// carrying the fields e_c, e_g, buy_tariff and sell_tariff. The pool
// self-consumption tariff lives in its own measurement with a single value
// field.
package influxsource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/recsizing/core/datasource"
	"github.com/kilianp07/recsizing/core/factory"
	"github.com/kilianp07/recsizing/infra/logger"
)

// Config locates the bucket holding meter data.
type Config struct {
	URL               string `json:"url"`
	Token             string `json:"token"`
	Org               string `json:"org"`
	Bucket            string `json:"bucket"`
	Measurement       string `json:"measurement"`
	TariffMeasurement string `json:"tariff_measurement"`
	// MaxParallel caps concurrent per-meter queries.
	MaxParallel int `json:"max_parallel"`
}

func (c *Config) SetDefaults() {
	if c.Measurement == "" {
		c.Measurement = "meter_readings"
	}
	if c.TariffMeasurement == "" {
		c.TariffMeasurement = "self_consumption_tariff"
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 8
	}
}

func (c Config) Validate() error {
	if c.URL == "" || c.Org == "" || c.Bucket == "" {
		return fmt.Errorf("influx source requires url, org and bucket")
	}
	return nil
}

// Source implements datasource.Source over the InfluxDB query API.
type Source struct {
	cfg    Config
	client influxdb2.Client
	query  api.QueryAPI
	log    logger.Logger
}

func init() {
	_ = datasource.RegisterSource("influx", func(conf map[string]any) (datasource.Source, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(c)
	})
}

// New returns a source querying cfg.Bucket.
func New(cfg Config) (*Source, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Source{cfg: cfg, client: c, query: c.QueryAPI(cfg.Org), log: logger.New("influx_source")}, nil
}

// Close releases the underlying HTTP client.
func (s *Source) Close() { s.client.Close() }

// Fetch runs one query per meter plus one for the tariff series.
func (s *Source) Fetch(ctx context.Context, q datasource.Query) (datasource.Dataset, error) {
	out := datasource.Dataset{Meters: make(map[string][]datasource.Reading, len(q.MeterIDs))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for _, id := range q.MeterIDs {
		g.Go(func() error {
			rs, err := s.readings(gctx, id, q)
			if err != nil {
				return fmt.Errorf("query meter %s: %w", id, err)
			}
			if len(rs) == 0 {
				return nil
			}
			mu.Lock()
			out.Meters[id] = rs
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		ts, err := s.tariffs(gctx, q)
		if err != nil {
			return fmt.Errorf("query self-consumption tariff: %w", err)
		}
		out.SelfConsumptionTariffs = ts
		return nil
	})
	if err := g.Wait(); err != nil {
		return datasource.Dataset{}, err
	}
	s.log.Debugf("fetched %d/%d meters between %s and %s", len(out.Meters), len(q.MeterIDs),
		q.Start.Format(time.RFC3339), q.End.Format(time.RFC3339))
	return out, nil
}

func (s *Source) readings(ctx context.Context, meterID string, q datasource.Query) ([]datasource.Reading, error) {
	flux := fmt.Sprintf(`from(bucket: %s)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %s and r.meter_id == %s and r.origin == %s)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"])`,
		quote(s.cfg.Bucket), rfc3339(q.Start), rfc3339(stop(q.End)),
		quote(s.cfg.Measurement), quote(meterID), quote(string(q.Origin)))

	res, err := s.query.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var out []datasource.Reading
	for res.Next() {
		rec := res.Record()
		out = append(out, datasource.Reading{
			Datetime:   rec.Time().UTC(),
			EC:         number(rec.ValueByKey("e_c")),
			EG:         number(rec.ValueByKey("e_g")),
			BuyTariff:  number(rec.ValueByKey("buy_tariff")),
			SellTariff: number(rec.ValueByKey("sell_tariff")),
		})
	}
	return out, res.Err()
}

func (s *Source) tariffs(ctx context.Context, q datasource.Query) ([]datasource.TariffPoint, error) {
	flux := fmt.Sprintf(`from(bucket: %s)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %s and r._field == "value")
  |> sort(columns: ["_time"])`,
		quote(s.cfg.Bucket), rfc3339(q.Start), rfc3339(stop(q.End)), quote(s.cfg.TariffMeasurement))

	res, err := s.query.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var out []datasource.TariffPoint
	for res.Next() {
		rec := res.Record()
		out = append(out, datasource.TariffPoint{Datetime: rec.Time().UTC(), Value: number(rec.Value())})
	}
	return out, res.Err()
}

// stop makes the inclusive horizon end exclusive for range().
func stop(end time.Time) time.Time { return end.Add(time.Second) }

func rfc3339(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return 0
	}
}
