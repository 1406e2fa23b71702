// Package allocation turns an engine output into the persisted result rows
// of an order. Costs of shared meters are allocated to their owners.
package allocation

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/solver"
)

// ErrOutput reports an engine output that cannot be turned into results.
var ErrOutput = errors.New("malformed engine output")

// Decimal places of persisted values.
const (
	CostPlaces  = 2
	ValuePlaces = 3
)

// meterCosts is the cost breakdown of one meter over the horizon.
type meterCosts struct {
	retail     float64
	lem        float64
	sc         float64
	pv         float64
	storage    float64
	contracted float64
	baseline   *float64
}

func (c meterCosts) installation() float64 { return c.pv + c.storage }

func (c meterCosts) operating() float64 { return c.retail + c.lem + c.sc + c.contracted }

func (c meterCosts) total() float64 { return c.operating() + c.installation() }

// Allocate builds every result row of req from the engine input and output.
func Allocate(req model.Request, in solver.Input, out solver.Output) (model.Results, error) {
	shares, err := SharesFor(req)
	if err != nil {
		return model.Results{}, err
	}
	index, err := timeIndex(req.Clustered(), out)
	if err != nil {
		return model.Results{}, err
	}
	if err := checkSeries(in.MeterIDs, out, len(index)); err != nil {
		return model.Results{}, err
	}

	costs := make(map[string]meterCosts, len(in.MeterIDs))
	withBaseline := true
	var total float64
	for _, id := range in.MeterIDs {
		mo := out.Meters[id]
		c := costsOf(in.Meters[id], mo, out, in.NrDays)
		costs[id] = c
		total += c.total()
		if mo.BaselineCost == nil {
			withBaseline = false
		}
	}

	res := model.Results{
		Clustered: req.Clustered(),
		General: model.GeneralOutcome{
			ObjectiveValue: round(out.ObjectiveValue, CostPlaces),
			MILPStatus:     out.Status,
			TotalRECCost:   round(total, CostPlaces),
		},
	}

	for _, k := range req.MeterIDs {
		var cost, savings float64
		for _, m := range in.MeterIDs {
			share := shares[m][k]
			if share == 0 {
				continue
			}
			cost += share * costs[m].total()
			if withBaseline {
				savings += share * (*costs[m].baseline - costs[m].total())
			}
		}
		res.MemberCosts = append(res.MemberCosts, model.MemberCost{
			MeterID:                k,
			MemberCost:             round(cost, CostPlaces),
			MemberCostCompensation: round(cost-costs[k].total(), CostPlaces),
			MemberSavings:          round(savings, CostPlaces),
		})
	}

	for _, m := range in.MeterIDs {
		c, mi, mo := costs[m], in.Meters[m], out.Meters[m]
		var allocated float64
		for _, owned := range in.MeterIDs {
			allocated += shares[owned][m] * costs[owned].installation()
		}
		var instSavings float64
		if c.baseline != nil {
			instSavings = *c.baseline - c.operating()
		}
		res.MeterInvestments = append(res.MeterInvestments, model.MeterInvestment{
			MeterID:                      m,
			InstallationCost:             round(c.installation(), CostPlaces),
			InstallationCostCompensation: round(allocated-c.installation(), CostPlaces),
			InstallationSavings:          round(instSavings, CostPlaces),
			InstalledPV:                  round(mo.PGNNew, ValuePlaces),
			PVInvestmentCost:             round(c.pv, CostPlaces),
			InstalledStorage:             round(mo.EBNNew, ValuePlaces),
			StorageInvestmentCost:        round(c.storage, CostPlaces),
			TotalPV:                      round(mi.PGNInit+mo.PGNNew, ValuePlaces),
			TotalStorage:                 round(mi.EBNInit+mo.EBNNew, ValuePlaces),
			ContractedPower:              round(mo.PCont, ValuePlaces),
			ContractedPowerCost:          round(c.contracted, CostPlaces),
			RetailerExchangeCosts:        round(c.retail, CostPlaces),
			SCTariffsCosts:               round(c.sc, CostPlaces),
		})
	}

	for t, idx := range index {
		res.LemPrices = append(res.LemPrices, model.LemPrice{Index: idx, Value: round(out.DualPrices[t], ValuePlaces)})
		res.SelfConsumptionTariffs = append(res.SelfConsumptionTariffs, model.SelfConsumptionTariff{Index: idx, Tariff: round(out.LGrid[t], ValuePlaces)})
	}
	for _, m := range in.MeterIDs {
		mo := out.Meters[m]
		for t, idx := range index {
			res.MeterInputs = append(res.MeterInputs, model.MeterOperationInput{
				MeterID:         m,
				Index:           idx,
				EnergyGenerated: round(mo.EGFactor[t], ValuePlaces),
				EnergyConsumed:  round(mo.EC[t], ValuePlaces),
				BuyTariff:       round(mo.LBuy[t], ValuePlaces),
				SellTariff:      round(mo.LSell[t], ValuePlaces),
			})
			res.MeterOutputs = append(res.MeterOutputs, model.MeterOperationOutput{
				MeterID:              m,
				Index:                idx,
				EnergySurplus:        round(mo.ESur[t], ValuePlaces),
				EnergySupplied:       round(mo.ESup[t], ValuePlaces),
				EnergyPurchasedLEM:   round(mo.EPurPool[t], ValuePlaces),
				EnergySoldLEM:        round(mo.ESalePool[t], ValuePlaces),
				NetLoad:              round(mo.ECMet[t], ValuePlaces),
				BESSEnergyCharged:    round(mo.EBC[t], ValuePlaces),
				BESSEnergyDischarged: round(mo.EBD[t], ValuePlaces),
				BESSEnergyContent:    round(mo.EBat[t], ValuePlaces),
			})
		}
	}
	return res, nil
}

func costsOf(mi solver.MeterInput, mo solver.MeterOutput, out solver.Output, nrDays int) meterCosts {
	c := meterCosts{
		pv:         mi.LGIC * mo.PGNNew,
		storage:    mi.LBIC * mo.EBNNew,
		contracted: mi.LCont * mo.PCont * float64(nrDays),
		baseline:   mo.BaselineCost,
	}
	for t, step := range out.Index {
		w := float64(step.Weight)
		c.retail += w * (mo.ESup[t]*mo.LBuy[t] - mo.ESur[t]*mo.LSell[t])
		c.lem += w * (mo.EPurPool[t] - mo.ESalePool[t]) * out.DualPrices[t]
		c.sc += w * mo.EPurPool[t] * out.LGrid[t]
	}
	return c
}

// timeIndex converts the engine index to the family chosen at admission.
func timeIndex(clustered bool, out solver.Output) ([]model.TimeIndex, error) {
	if len(out.Index) == 0 {
		return nil, fmt.Errorf("%w: empty time index", ErrOutput)
	}
	idx := make([]model.TimeIndex, len(out.Index))
	for t, s := range out.Index {
		if s.Weight <= 0 {
			return nil, fmt.Errorf("%w: step %d has weight %d", ErrOutput, t, s.Weight)
		}
		if clustered {
			if s.Time == "" || s.Cluster <= 0 {
				return nil, fmt.Errorf("%w: step %d is not a cluster triple", ErrOutput, t)
			}
			idx[t] = model.TimeIndex{Time: s.Time, ClusterNr: s.Cluster, ClusterWeight: s.Weight}
			continue
		}
		if s.Datetime.IsZero() {
			return nil, fmt.Errorf("%w: step %d has no datetime", ErrOutput, t)
		}
		idx[t] = model.TimeIndex{Datetime: s.Datetime.UTC()}
	}
	return idx, nil
}

func checkSeries(ids []string, out solver.Output, n int) error {
	if len(out.DualPrices) != n || len(out.LGrid) != n {
		return fmt.Errorf("%w: community series do not match %d steps", ErrOutput, n)
	}
	scalars := []float64{out.ObjectiveValue}
	for _, id := range ids {
		mo, ok := out.Meters[id]
		if !ok {
			return fmt.Errorf("%w: meter %s missing", ErrOutput, id)
		}
		all := [][]float64{mo.EC, mo.EGFactor, mo.LBuy, mo.LSell, mo.ESup, mo.ESur,
			mo.EPurPool, mo.ESalePool, mo.ECMet, mo.EBC, mo.EBD, mo.EBat}
		for _, s := range all {
			if len(s) != n {
				return fmt.Errorf("%w: meter %s series has %d steps, want %d", ErrOutput, id, len(s), n)
			}
			if !finite(s...) {
				return fmt.Errorf("%w: meter %s series is not finite", ErrOutput, id)
			}
		}
		scalars = append(scalars, mo.PGNNew, mo.EBNNew, mo.PCont)
		if mo.BaselineCost != nil {
			scalars = append(scalars, *mo.BaselineCost)
		}
	}
	if !finite(scalars...) || !finite(out.DualPrices...) || !finite(out.LGrid...) {
		return fmt.Errorf("%w: non-finite value", ErrOutput)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
