// Package assembler reads the stored rows of a completed order back and
// reshapes them into the documented response.
package assembler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kilianp07/recsizing/core/cache"
	"github.com/kilianp07/recsizing/core/logger"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/store"
)

// Assemble reshapes the results of order id.
func Assemble(id string, res model.Results) Response {
	r := Response{
		OrderID:                id,
		ObjectiveValue:         res.General.ObjectiveValue,
		MILPStatus:             res.General.MILPStatus,
		TotalRECCost:           res.General.TotalRECCost,
		MemberCosts:            make([]MemberCost, 0, len(res.MemberCosts)),
		MeterInvestmentOutputs: make([]MeterInvestment, 0, len(res.MeterInvestments)),
		MeterOperationInputs:   make([]MeterOperationInput, 0, len(res.MeterInputs)),
		MeterOperationOutputs:  make([]MeterOperationOutput, 0, len(res.MeterOutputs)),
		SelfConsumptionTariffs: make([]SelfConsumptionTariff, 0, len(res.SelfConsumptionTariffs)),
		LemPrices:              make([]LemPrice, 0, len(res.LemPrices)),
	}
	for _, c := range res.MemberCosts {
		r.MemberCosts = append(r.MemberCosts, MemberCost(c))
	}
	for _, m := range res.MeterInvestments {
		r.MeterInvestmentOutputs = append(r.MeterInvestmentOutputs, MeterInvestment(m))
	}
	for _, in := range res.MeterInputs {
		r.MeterOperationInputs = append(r.MeterOperationInputs, MeterOperationInput{
			MeterID:         in.MeterID,
			Index:           indexOf(res.Clustered, in.Index),
			EnergyGenerated: in.EnergyGenerated,
			EnergyConsumed:  in.EnergyConsumed,
			BuyTariff:       in.BuyTariff,
			SellTariff:      in.SellTariff,
		})
	}
	for _, o := range res.MeterOutputs {
		r.MeterOperationOutputs = append(r.MeterOperationOutputs, MeterOperationOutput{
			MeterID:              o.MeterID,
			Index:                indexOf(res.Clustered, o.Index),
			EnergySurplus:        o.EnergySurplus,
			EnergySupplied:       o.EnergySupplied,
			EnergyPurchasedLEM:   o.EnergyPurchasedLEM,
			EnergySoldLEM:        o.EnergySoldLEM,
			NetLoad:              o.NetLoad,
			BESSEnergyCharged:    o.BESSEnergyCharged,
			BESSEnergyDischarged: o.BESSEnergyDischarged,
			BESSEnergyContent:    o.BESSEnergyContent,
		})
	}
	for _, s := range res.SelfConsumptionTariffs {
		r.SelfConsumptionTariffs = append(r.SelfConsumptionTariffs, SelfConsumptionTariff{
			Index:                 indexOf(res.Clustered, s.Index),
			SelfConsumptionTariff: s.Tariff,
		})
	}
	for _, l := range res.LemPrices {
		r.LemPrices = append(r.LemPrices, LemPrice{Index: indexOf(res.Clustered, l.Index), Value: l.Value})
	}
	return r
}

// Lookup is the view of an order served by the poll endpoint. Response is
// set only for COMPLETE orders.
type Lookup struct {
	Order    model.Order
	Response *Response
}

// Assembler serves orders from the store, caching completed responses.
type Assembler struct {
	store store.Store
	cache cache.ResultCache
	log   logger.Logger
}

// New returns an assembler. A nil cache disables caching.
func New(s store.Store, c cache.ResultCache, log logger.Logger) *Assembler {
	if c == nil {
		c = cache.Nop{}
	}
	return &Assembler{store: s, cache: c, log: log}
}

// Lookup reads order id. It returns store.ErrOrderNotFound for unknown ids.
func (a *Assembler) Lookup(ctx context.Context, id string) (Lookup, error) {
	o, err := a.store.GetOrder(ctx, id)
	if err != nil {
		return Lookup{}, err
	}
	if o.State() != model.StateComplete {
		return Lookup{Order: o}, nil
	}
	resp, err := a.response(ctx, o)
	if err != nil {
		return Lookup{}, err
	}
	return Lookup{Order: o, Response: resp}, nil
}

func (a *Assembler) response(ctx context.Context, o model.Order) (*Response, error) {
	if raw, ok, err := a.cache.Get(ctx, o.ID); err != nil {
		a.log.Warnf("result cache get %s: %v", o.ID, err)
	} else if ok {
		var r Response
		if err := json.Unmarshal(raw, &r); err == nil {
			return &r, nil
		}
		a.log.Warnf("result cache holds an unreadable entry for %s", o.ID)
	}

	res, err := a.store.LoadResults(ctx, o.ID, o.Clustered)
	if err != nil {
		return nil, fmt.Errorf("load results of %s: %w", o.ID, err)
	}
	r := Assemble(o.ID, res)
	if raw, err := json.Marshal(r); err == nil {
		if err := a.cache.Set(ctx, o.ID, raw); err != nil {
			a.log.Warnf("result cache set %s: %v", o.ID, err)
		}
	}
	return &r, nil
}
