// Package datasource defines how historical meter data is fetched for a
// sizing job and how its completeness is checked against the horizon grid.
package datasource

import (
	"context"
	"time"

	"github.com/kilianp07/recsizing/core/model"
)

// Step is the resolution of every series.
const Step = 15 * time.Minute

// PointsPerDay is the number of steps in one day.
const PointsPerDay = int(24 * time.Hour / Step)

// Reading is one 15-minute record of a meter.
type Reading struct {
	Datetime   time.Time `json:"datetime"`
	EC         float64   `json:"e_c"`
	EG         float64   `json:"e_g"`
	BuyTariff  float64   `json:"buy_tariff"`
	SellTariff float64   `json:"sell_tariff"`
}

// TariffPoint is one step of the pool self-consumption tariff.
type TariffPoint struct {
	Datetime time.Time `json:"datetime"`
	Value    float64   `json:"value"`
}

// Query selects the data of a job.
type Query struct {
	Origin   model.DatasetOrigin
	MeterIDs []string
	Start    time.Time
	End      time.Time
}

// Dataset is the raw data returned by a Source. Meters without data are
// simply absent from the map.
type Dataset struct {
	Meters                 map[string][]Reading `json:"meters"`
	SelfConsumptionTariffs []TariffPoint        `json:"self_consumption_tariffs"`
}

// Source fetches historical data for the meters of a query.
type Source interface {
	Fetch(ctx context.Context, q Query) (Dataset, error)
}

// Grid returns every step from start to end inclusive.
func Grid(start, end time.Time) []time.Time {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return nil
	}
	n := int(end.Sub(start)/Step) + 1
	out := make([]time.Time, 0, n)
	for t := start; !t.After(end); t = t.Add(Step) {
		out = append(out, t)
	}
	return out
}
