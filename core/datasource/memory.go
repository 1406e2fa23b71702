package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// MemorySource serves a fixed dataset, filtered by meter and horizon.
type MemorySource struct {
	data Dataset
}

// NewMemorySource wraps ds.
func NewMemorySource(ds Dataset) *MemorySource {
	if ds.Meters == nil {
		ds.Meters = map[string][]Reading{}
	}
	return &MemorySource{data: ds}
}

// LoadFile reads a JSON encoded Dataset.
func LoadFile(path string) (*MemorySource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return NewMemorySource(ds), nil
}

func (m *MemorySource) Fetch(ctx context.Context, q Query) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}
	out := Dataset{Meters: make(map[string][]Reading, len(q.MeterIDs))}
	for _, id := range q.MeterIDs {
		var rs []Reading
		for _, r := range m.data.Meters[id] {
			if inRange(r.Datetime, q.Start, q.End) {
				rs = append(rs, r)
			}
		}
		if len(rs) > 0 {
			sort.Slice(rs, func(i, j int) bool { return rs[i].Datetime.Before(rs[j].Datetime) })
			out.Meters[id] = rs
		}
	}
	for _, p := range m.data.SelfConsumptionTariffs {
		if inRange(p.Datetime, q.Start, q.End) {
			out.SelfConsumptionTariffs = append(out.SelfConsumptionTariffs, p)
		}
	}
	return out, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
