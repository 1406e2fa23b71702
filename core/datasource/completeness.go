package datasource

import (
	"encoding/json"
	"sort"
	"time"
)

// TariffSeriesKey reports missing self-consumption tariff steps in a Report.
const TariffSeriesKey = "self_consumption_tariff"

// Report lists the completeness problems of a dataset.
type Report struct {
	MissingIDs    []string
	MissingPoints map[string][]time.Time
}

// Complete reports whether nothing is missing.
func (r Report) Complete() bool { return len(r.MissingIDs) == 0 && len(r.MissingPoints) == 0 }

// MissingIDsJSON renders the missing ids as a JSON array.
func (r Report) MissingIDsJSON() string {
	b, _ := json.Marshal(r.MissingIDs)
	return string(b)
}

// MissingPointsJSON renders the missing timestamps per series as a JSON
// object with RFC 3339 timestamps.
func (r Report) MissingPointsJSON() string {
	out := make(map[string][]string, len(r.MissingPoints))
	for id, ts := range r.MissingPoints {
		s := make([]string, len(ts))
		for i, t := range ts {
			s[i] = t.UTC().Format(time.RFC3339)
		}
		out[id] = s
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// Check compares a dataset with the grid. Meters with no reading at all are
// missing entities; meters (or the tariff series) lacking some grid steps
// have missing points. Readings outside the grid are ignored.
func Check(ids []string, grid []time.Time, ds Dataset) Report {
	r := Report{}
	for _, id := range ids {
		if len(ds.Meters[id]) == 0 {
			r.MissingIDs = append(r.MissingIDs, id)
		}
	}
	sort.Strings(r.MissingIDs)

	missing := make(map[string][]time.Time)
	for _, id := range ids {
		readings := ds.Meters[id]
		if len(readings) == 0 {
			continue
		}
		have := make(map[int64]struct{}, len(readings))
		for _, rd := range readings {
			have[rd.Datetime.Unix()] = struct{}{}
		}
		if gaps := gapsIn(grid, have); len(gaps) > 0 {
			missing[id] = gaps
		}
	}
	have := make(map[int64]struct{}, len(ds.SelfConsumptionTariffs))
	for _, p := range ds.SelfConsumptionTariffs {
		have[p.Datetime.Unix()] = struct{}{}
	}
	if gaps := gapsIn(grid, have); len(gaps) > 0 {
		missing[TariffSeriesKey] = gaps
	}
	if len(missing) > 0 {
		r.MissingPoints = missing
	}
	return r
}

func gapsIn(grid []time.Time, have map[int64]struct{}) []time.Time {
	var gaps []time.Time
	for _, t := range grid {
		if _, ok := have[t.Unix()]; !ok {
			gaps = append(gaps, t)
		}
	}
	return gaps
}
