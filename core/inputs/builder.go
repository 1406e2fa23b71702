// Package inputs turns a validated request and its fetched dataset into the
// engine input of a sizing job.
package inputs

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/recsizing/core/datasource"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/reference"
	"github.com/kilianp07/recsizing/core/solver"
)

// ErrPrecondition reports an input the engine cannot be run on.
var ErrPrecondition = errors.New("input precondition failed")

const (
	// DeltaT is the duration of one step in hours.
	DeltaT = 0.25
	// StorageRatio bounds storage capacity against PV power.
	StorageRatio = 1.0
	// ContractedPowerTariff is the daily price of one contracted kVA.
	ContractedPowerTariff = 0.0462
)

// Builder builds engine inputs.
type Builder struct {
	tables *reference.Tables
	lCont  float64
}

// NewBuilder returns a builder reading reference values from tables.
func NewBuilder(tables *reference.Tables) *Builder {
	return &Builder{tables: tables, lCont: ContractedPowerTariff}
}

// Days returns the number of whole days covered by grid.
func Days(grid []time.Time) (int, error) {
	if len(grid) == 0 || len(grid)%datasource.PointsPerDay != 0 {
		return 0, fmt.Errorf("%w: horizon does not contain whole days (%d points)", ErrPrecondition, len(grid))
	}
	return len(grid) / datasource.PointsPerDay, nil
}

// Clusters resolves the number of representative days of a run.
func Clusters(requested, nrDays int) int {
	if requested <= 0 || requested > nrDays {
		return nrDays
	}
	return requested
}

// Build produces the engine input for req. The dataset must already be
// complete on grid.
func (b *Builder) Build(req model.Request, grid []time.Time, ds datasource.Dataset) (solver.Input, error) {
	nrDays, err := Days(grid)
	if err != nil {
		return solver.Input{}, err
	}
	params, err := paramsByMeter(req)
	if err != nil {
		return solver.Input{}, err
	}

	ids := req.AllMeterIDs()
	in := solver.Input{
		NrDays:           nrDays,
		NrClusters:       Clusters(req.NrRepresentativeDays, nrDays),
		Clustered:        req.Clustered(),
		DeltaT:           DeltaT,
		StorageRatio:     StorageRatio,
		StrictPosCoeffs:  true,
		TotalShareCoeffs: true,
		Datetimes:        append([]time.Time(nil), grid...),
		MeterIDs:         ids,
		Meters:           make(map[string]solver.MeterInput, len(ids)),
	}

	tariffs := make(map[int64]float64, len(ds.SelfConsumptionTariffs))
	for _, p := range ds.SelfConsumptionTariffs {
		tariffs[p.Datetime.Unix()] = p.Value
	}
	in.LGrid = make([]float64, len(grid))
	for i, t := range grid {
		v, ok := tariffs[t.Unix()]
		if !ok {
			return solver.Input{}, fmt.Errorf("%w: self-consumption tariff missing at %s", ErrPrecondition, t.Format(time.RFC3339))
		}
		in.LGrid[i] = v
	}

	for _, id := range ids {
		p, ok := params[id]
		if !ok {
			return solver.Input{}, fmt.Errorf("%w: no sizing params for meter %s", ErrPrecondition, id)
		}
		mi, err := b.meter(req.Origin, id, p, grid, ds.Meters[id])
		if err != nil {
			return solver.Input{}, err
		}
		in.Meters[id] = mi
	}
	return in, nil
}

func (b *Builder) meter(origin model.DatasetOrigin, id string, p model.SizingParams, grid []time.Time, readings []datasource.Reading) (solver.MeterInput, error) {
	if len(readings) == 0 {
		return solver.MeterInput{}, fmt.Errorf("%w: empty series for meter %s", ErrPrecondition, id)
	}
	sorted := append([]datasource.Reading(nil), readings...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Datetime.Before(sorted[j].Datetime) })
	byTime := make(map[int64]datasource.Reading, len(sorted))
	for _, r := range sorted {
		byTime[r.Datetime.Unix()] = r
	}

	n := len(grid)
	mi := solver.MeterInput{
		LBuy:      make([]float64, n),
		LSell:     make([]float64, n),
		EC:        make([]float64, n),
		EGFactor:  make([]float64, n),
		LCont:     b.lCont,
		LGIC:      p.LGIC,
		LBIC:      p.LBIC,
		PMeterMax: b.tables.ContractedPower(origin, id),
		PGNInit:   b.tables.InstalledPV(origin, id),
		PGNMin:    p.MinNewPVPower,
		PGNMax:    p.MaxNewPVPower,
		EBNInit:   0,
		EBNMin:    p.MinNewStorage,
		EBNMax:    p.MaxNewStorage,
		SOCMin:    p.SOCMin,
		SOCMax:    p.SOCMax,
		EffBC:     p.EffBC,
		EffBD:     p.EffBD,
		DegCost:   p.DegCost,
	}
	for i, t := range grid {
		r, ok := byTime[t.Unix()]
		if !ok {
			return solver.MeterInput{}, fmt.Errorf("%w: meter %s has no reading at %s", ErrPrecondition, id, t.Format(time.RFC3339))
		}
		mi.LBuy[i] = r.BuyTariff
		mi.LSell[i] = r.SellTariff
		mi.EC[i] = r.EC
		mi.EGFactor[i] = r.EG
	}
	return mi, nil
}

// paramsByMeter merges plain and shared sizing params and requires exactly
// one entry per requested meter.
func paramsByMeter(req model.Request) (map[string]model.SizingParams, error) {
	known := make(map[string]bool)
	for _, id := range req.AllMeterIDs() {
		known[id] = true
	}
	out := make(map[string]model.SizingParams)
	for _, p := range req.AllParams() {
		if !known[p.MeterID] {
			return nil, fmt.Errorf("%w: sizing params given for unknown meter %s", ErrPrecondition, p.MeterID)
		}
		if _, dup := out[p.MeterID]; dup {
			return nil, fmt.Errorf("%w: duplicated sizing params for meter %s", ErrPrecondition, p.MeterID)
		}
		out[p.MeterID] = p
	}
	return out, nil
}
