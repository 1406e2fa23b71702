// Package lpengine is the built-in optimisation engine. It clusters days
// into representative days, sizes new PV and storage with a linear program
// and dispatches batteries and the community pool step by step.
package lpengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/solver"
)

const perDay = 96

// Config tunes the engine.
type Config struct {
	Tolerance     float64 `json:"tolerance"`
	MaxIterations int     `json:"max_iterations"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-7
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 50
	}
}

// Engine implements solver.Engine.
type Engine struct {
	cfg Config
}

// New returns an engine using cfg.
func New(cfg Config) *Engine {
	cfg.SetDefaults()
	return &Engine{cfg: cfg}
}

// horizon is the representative view of an input.
type horizon struct {
	index   []solver.Step
	weights []float64
	lGrid   []float64
	meters  map[string]series
	days    clustering
}

func (e *Engine) Solve(ctx context.Context, in solver.Input) (solver.Output, error) {
	if err := validate(in); err != nil {
		return solver.Output{}, err
	}
	h := e.represent(in)
	if err := ctx.Err(); err != nil {
		return solver.Output{}, err
	}

	prob := e.problem(in, h)
	status := model.StatusOptimal
	var pNew, eNew []float64
	var err error
	if !prob.feasible() {
		status = model.StatusInfeasible
		pNew, eNew = append([]float64(nil), prob.pMin...), append([]float64(nil), prob.eMin...)
	} else if pNew, eNew, err = prob.solve(e.cfg.Tolerance); err != nil {
		return solver.Output{}, fmt.Errorf("size community: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return solver.Output{}, err
	}

	ops, prices := e.dispatch(in, h, pNew, eNew)
	baseOps, basePrices := e.dispatch(in, h, make([]float64, len(pNew)), make([]float64, len(eNew)))

	out := solver.Output{
		Status:     status,
		Clustered:  in.Clustered,
		Index:      h.index,
		LGrid:      h.lGrid,
		DualPrices: prices,
		Meters:     make(map[string]solver.MeterOutput, len(in.MeterIDs)),
	}
	for i, id := range in.MeterIDs {
		mi, s, op := in.Meters[id], h.meters[id], ops[id]
		c := costOf(op, s, mi, h.weights, h.lGrid, prices, in.DeltaT, in.NrDays)
		out.ObjectiveValue += c.operation + c.degradation + c.contracted + mi.LGIC*pNew[i] + mi.LBIC*eNew[i]

		bc := costOf(baseOps[id], s, mi, h.weights, h.lGrid, basePrices, in.DeltaT, in.NrDays)
		baseline := bc.operation + bc.contracted

		out.Meters[id] = solver.MeterOutput{
			EC:           s.ec,
			EGFactor:     s.eg,
			LBuy:         s.lBuy,
			LSell:        s.lSell,
			ESup:         op.sup,
			ESur:         op.sur,
			EPurPool:     op.pur,
			ESalePool:    op.sale,
			ECMet:        op.cmet,
			EBC:          op.bc,
			EBD:          op.bd,
			EBat:         op.bat,
			PGNNew:       pNew[i],
			EBNNew:       eNew[i],
			PCont:        c.pCont,
			BaselineCost: &baseline,
		}
	}
	return out, nil
}

func validate(in solver.Input) error {
	if in.NrDays <= 0 || in.Steps() != in.NrDays*perDay {
		return fmt.Errorf("%w: %d steps for %d days", solver.ErrInvalidInput, in.Steps(), in.NrDays)
	}
	if in.DeltaT <= 0 {
		return fmt.Errorf("%w: delta_t must be positive", solver.ErrInvalidInput)
	}
	if len(in.LGrid) != in.Steps() {
		return fmt.Errorf("%w: l_grid has %d steps", solver.ErrInvalidInput, len(in.LGrid))
	}
	if len(in.MeterIDs) == 0 {
		return fmt.Errorf("%w: no meter", solver.ErrInvalidInput)
	}
	for _, id := range in.MeterIDs {
		m, ok := in.Meters[id]
		if !ok {
			return fmt.Errorf("%w: meter %s has no input", solver.ErrInvalidInput, id)
		}
		for _, s := range [][]float64{m.EC, m.EGFactor, m.LBuy, m.LSell} {
			if len(s) != in.Steps() {
				return fmt.Errorf("%w: meter %s series has %d steps", solver.ErrInvalidInput, id, len(s))
			}
		}
	}
	return nil
}

// represent clusters the horizon when requested and averages every series
// onto the representative days.
func (e *Engine) represent(in solver.Input) horizon {
	days := identity(in.NrDays)
	if in.Clustered && in.NrClusters < in.NrDays {
		days = kmeans(dayFeatures(in), in.NrClusters, e.cfg.MaxIterations)
	}

	h := horizon{
		days:   days,
		lGrid:  days.representative(in.LGrid, perDay),
		meters: make(map[string]series, len(in.MeterIDs)),
	}
	for _, id := range in.MeterIDs {
		m := in.Meters[id]
		h.meters[id] = series{
			ec:    days.representative(m.EC, perDay),
			eg:    days.representative(m.EGFactor, perDay),
			lBuy:  days.representative(m.LBuy, perDay),
			lSell: days.representative(m.LSell, perDay),
		}
	}

	n := days.k() * perDay
	h.index = make([]solver.Step, n)
	h.weights = make([]float64, n)
	for t := 0; t < n; t++ {
		c := t / perDay
		h.weights[t] = float64(days.weights[c])
		if in.Clustered {
			offset := time.Duration(t%perDay) * time.Duration(in.DeltaT*float64(time.Hour))
			h.index[t] = solver.Step{
				Time:    time.Time{}.Add(offset).Format(model.ClockLayout),
				Cluster: c + 1,
				Weight:  days.weights[c],
			}
			continue
		}
		h.index[t] = solver.Step{Datetime: in.Datetimes[t], Weight: 1}
	}
	return h
}

// dayFeatures concatenates the consumption and generation of every meter
// for each day.
func dayFeatures(in solver.Input) [][]float64 {
	out := make([][]float64, in.NrDays)
	for d := range out {
		f := make([]float64, 0, 2*perDay*len(in.MeterIDs))
		for _, id := range in.MeterIDs {
			m := in.Meters[id]
			f = append(f, m.EC[d*perDay:(d+1)*perDay]...)
			f = append(f, m.EGFactor[d*perDay:(d+1)*perDay]...)
		}
		out[d] = f
	}
	return out
}

// problem prices new capacity against the energy it is expected to save.
func (e *Engine) problem(in solver.Input, h horizon) sizingProblem {
	m := len(in.MeterIDs)
	n := len(h.weights)
	p := sizingProblem{
		cp:   make([]float64, m),
		ce:   make([]float64, m),
		pMin: make([]float64, m),
		pMax: make([]float64, m),
		eMin: make([]float64, m),
		eMax: make([]float64, m),
		gen:  make([]float64, m),
	}

	value := make([]float64, n)
	var demand float64
	for t := 0; t < n; t++ {
		var buy, sell float64
		for _, id := range in.MeterIDs {
			s := h.meters[id]
			buy += s.lBuy[t]
			sell += s.lSell[t]
			demand += h.weights[t] * s.ec[t]
		}
		buy /= float64(m)
		sell /= float64(m)
		value[t] = math.Max(sell, buy-h.lGrid[t])
	}

	var existing float64
	for i, id := range in.MeterIDs {
		mi, s := in.Meters[id], h.meters[id]
		var pvValue float64
		for t, w := range h.weights {
			p.gen[i] += w * s.eg[t]
			pvValue += w * s.eg[t] * value[t]
		}
		existing += mi.PGNInit * p.gen[i]
		p.cp[i] = mi.LGIC - pvValue
		p.ce[i] = mi.LBIC - storageValue(mi, s, h, p.gen[i] > 0 && mi.PGNInit+mi.PGNMax > 0)
		p.pMin[i], p.pMax[i] = mi.PGNMin, math.Max(mi.PGNMin, mi.PGNMax)
		p.eMin[i], p.eMax[i] = mi.EBNMin, math.Max(mi.EBNMin, mi.EBNMax)
	}
	p.headroom = math.Max(0, demand-existing)
	return p
}

// storageValue is the weighted value of one kWh of storage cycled once a
// day between the cheapest sell and the dearest buy tariff.
func storageValue(mi solver.MeterInput, s series, h horizon, canCharge bool) float64 {
	etaC, etaD := mi.EffBC/100, mi.EffBD/100
	usable := (mi.SOCMax - mi.SOCMin) / 100
	if !canCharge || etaC <= 0 || etaD <= 0 || usable <= 0 {
		return 0
	}
	var v float64
	for c, w := range h.days.weights {
		day := c * perDay
		maxBuy, minSell := math.Inf(-1), math.Inf(1)
		for t := day; t < day+perDay; t++ {
			maxBuy = math.Max(maxBuy, s.lBuy[t])
			minSell = math.Min(minSell, s.lSell[t])
		}
		spread := etaD*maxBuy - minSell/etaC - 2*mi.DegCost
		v += float64(w) * usable * math.Max(0, spread)
	}
	return v
}

// dispatch runs the batteries then clears the pool for the given new
// capacities.
func (e *Engine) dispatch(in solver.Input, h horizon, pNew, eNew []float64) (map[string]*operation, []float64) {
	n := len(h.weights)
	ops := make(map[string]*operation, len(in.MeterIDs))
	for i, id := range in.MeterIDs {
		mi := in.Meters[id]
		op := newOperation(n)
		battery(&op, h.meters[id], mi, mi.PGNInit+pNew[i], mi.EBNInit+eNew[i], perDay)
		ops[id] = &op
	}
	return ops, clearPool(in.MeterIDs, ops, h.meters, n)
}
