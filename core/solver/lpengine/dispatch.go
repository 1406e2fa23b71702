package lpengine

import (
	"math"

	"github.com/kilianp07/recsizing/core/solver"
)

// series is the representative view of one meter's inputs.
type series struct {
	ec, eg, lBuy, lSell []float64
}

// operation is the dispatch of one meter over the representative index.
type operation struct {
	sup, sur, pur, sale []float64
	cmet                []float64
	bc, bd, bat         []float64
}

func newOperation(n int) operation {
	return operation{
		sup:  make([]float64, n),
		sur:  make([]float64, n),
		pur:  make([]float64, n),
		sale: make([]float64, n),
		cmet: make([]float64, n),
		bc:   make([]float64, n),
		bd:   make([]float64, n),
		bat:  make([]float64, n),
	}
}

// battery runs a greedy policy: charge from local surplus, discharge into
// local deficit. The content resets to its lower bound at each day start.
func battery(op *operation, s series, in solver.MeterInput, pTotal, eTotal float64, perDay int) {
	etaC, etaD := in.EffBC/100, in.EffBD/100
	lo, hi := eTotal*in.SOCMin/100, eTotal*in.SOCMax/100
	usable := eTotal > 0 && etaC > 0 && etaD > 0 && hi > lo

	content := lo
	for t := range s.ec {
		if t%perDay == 0 {
			content = lo
		}
		net := s.ec[t] - s.eg[t]*pTotal
		if usable {
			switch {
			case net < 0:
				op.bc[t] = math.Min(-net, (hi-content)/etaC)
				content += op.bc[t] * etaC
			case net > 0:
				op.bd[t] = math.Min(net, (content-lo)*etaD)
				content -= op.bd[t] / etaD
			}
		}
		op.bat[t] = content
		op.cmet[t] = net + op.bc[t] - op.bd[t]
	}
}

// clearPool matches community surplus against community deficit per step.
// Volumes are shared proportionally. The price is the lowest buy tariff of
// the buyers under deficit, the highest sell tariff of the sellers under
// surplus, and the mid-price otherwise.
func clearPool(ids []string, ops map[string]*operation, in map[string]series, n int) []float64 {
	prices := make([]float64, n)
	for t := 0; t < n; t++ {
		var demand, supply float64
		minBuy, maxSell := math.Inf(1), math.Inf(-1)
		var sumBuy, sumSell float64
		for _, id := range ids {
			v := ops[id].cmet[t]
			s := in[id]
			sumBuy += s.lBuy[t]
			sumSell += s.lSell[t]
			switch {
			case v > 0:
				demand += v
				minBuy = math.Min(minBuy, s.lBuy[t])
			case v < 0:
				supply -= v
				maxSell = math.Max(maxSell, s.lSell[t])
			}
		}
		matched := math.Min(demand, supply)
		for _, id := range ids {
			op := ops[id]
			v := op.cmet[t]
			switch {
			case v > 0:
				op.pur[t] = v * matched / demand
				op.sup[t] = v - op.pur[t]
			case v < 0:
				op.sale[t] = -v * matched / supply
				op.sur[t] = -v - op.sale[t]
			}
		}
		switch {
		case demand > supply:
			prices[t] = minBuy
		case supply > demand:
			prices[t] = maxSell
		default:
			k := float64(len(ids))
			prices[t] = (sumBuy/k + sumSell/k) / 2
		}
	}
	return prices
}

// meterCost is the operating cost of one meter over the weighted index.
type meterCost struct {
	operation   float64
	degradation float64
	contracted  float64
	pCont       float64
}

func costOf(op *operation, s series, in solver.MeterInput, weights, lGrid, prices []float64, deltaT float64, nrDays int) meterCost {
	var c meterCost
	peak := 0.0
	for t, w := range weights {
		c.operation += w * (op.sup[t]*s.lBuy[t] - op.sur[t]*s.lSell[t] +
			(op.pur[t]-op.sale[t])*prices[t] + op.pur[t]*lGrid[t])
		c.degradation += w * in.DegCost * (op.bc[t] + op.bd[t])
		peak = math.Max(peak, op.cmet[t])
	}
	c.pCont = math.Max(in.PMeterMax, peak/deltaT)
	c.contracted = in.LCont * c.pCont * float64(nrDays)
	return c
}
