// Package fixture generates synthetic community datasets for tests and demos.
package fixture

import (
	"math"
	"time"

	"github.com/kilianp07/recsizing/core/datasource"
	"github.com/kilianp07/recsizing/core/model"
)

// Start is the first step of every generated horizon.
var Start = time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC)

// End returns the last step of a horizon of days whole days.
func End(days int) time.Time {
	return Start.Add(time.Duration(days*datasource.PointsPerDay-1) * datasource.Step)
}

// Reading returns the synthetic record of step i. Consumption peaks in the
// evening and generation follows a midday bell; odd meters produce more.
func Reading(meter, i int) datasource.Reading {
	t := Start.Add(time.Duration(i) * datasource.Step)
	h := float64(t.Hour()) + float64(t.Minute())/60
	day := float64(i / datasource.PointsPerDay)
	ec := 0.15 + 0.1*math.Exp(-math.Pow(h-19, 2)/4) + 0.01*day
	eg := 0.0
	if h > 6 && h < 20 {
		eg = 0.2 * math.Sin(math.Pi*(h-6)/14)
	}
	if meter%2 == 1 {
		eg *= 1.5
		ec *= 0.6
	}
	buy := 0.12
	if h >= 8 && h < 22 {
		buy = 0.18
	}
	return datasource.Reading{Datetime: t, EC: ec, EG: eg, BuyTariff: buy, SellTariff: 0.04}
}

// Dataset returns days of data for every id.
func Dataset(days int, ids ...string) datasource.Dataset {
	n := days * datasource.PointsPerDay
	ds := datasource.Dataset{Meters: make(map[string][]datasource.Reading, len(ids))}
	for m, id := range ids {
		rs := make([]datasource.Reading, n)
		for i := range rs {
			rs[i] = Reading(m, i)
		}
		ds.Meters[id] = rs
	}
	ds.SelfConsumptionTariffs = make([]datasource.TariffPoint, n)
	for i := range ds.SelfConsumptionTariffs {
		ds.SelfConsumptionTariffs[i] = datasource.TariffPoint{Datetime: Start.Add(time.Duration(i) * datasource.Step), Value: 0.01}
	}
	return ds
}

// Params returns sizing params for id allowing up to 5 kW of PV and 5 kWh
// of storage.
func Params(id string) model.SizingParams {
	return model.SizingParams{
		MeterID:       id,
		MaxNewPVPower: 5,
		MaxNewStorage: 5,
		LGIC:          0.3,
		LBIC:          0.4,
		SOCMin:        10,
		SOCMax:        90,
		EffBC:         95,
		EffBD:         95,
		DegCost:       0.01,
	}
}

// Plain returns a plain request over days for ids.
func Plain(days, repDays int, ids ...string) model.Request {
	b := model.Base{
		Start:                Start,
		End:                  End(days),
		Origin:               model.OriginSEL,
		NrRepresentativeDays: repDays,
		MeterIDs:             ids,
	}
	for _, id := range ids {
		b.Params = append(b.Params, Params(id))
	}
	return model.Plain(b)
}

// Shared returns a request where shared is owned by the first two members,
// 60/40.
func Shared(days int, shared string, ids ...string) model.Request {
	plain := Plain(days, 0, ids...)
	return model.WithShared(plain.Base, model.SharedAssets{
		MeterIDs: []string{shared},
		Ownerships: []model.Ownership{
			{SharedMeterID: shared, MeterID: ids[0], Percentage: 60},
			{SharedMeterID: shared, MeterID: ids[1], Percentage: 40},
		},
		Params: []model.SizingParams{Params(shared)},
	})
}
