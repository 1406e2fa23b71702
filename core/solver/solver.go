// Package solver defines the contract between the job runner and the
// optimisation engine that sizes PV and storage for a community.
package solver

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidInput is returned by engines for structurally invalid inputs.
var ErrInvalidInput = errors.New("invalid engine input")

// MeterInput holds the per-meter series and parameters of an engine run.
// Every series has NrDays*96 entries aligned with Input.Datetimes.
type MeterInput struct {
	LBuy      []float64 `json:"l_buy"`
	LSell     []float64 `json:"l_sell"`
	LCont     float64   `json:"l_cont"`
	LGIC      float64   `json:"l_gic"`
	LBIC      float64   `json:"l_bic"`
	EC        []float64 `json:"e_c"`
	PMeterMax float64   `json:"p_meter_max"`
	PGNInit   float64   `json:"p_gn_init"`
	EGFactor  []float64 `json:"e_g_factor"`
	PGNMin    float64   `json:"p_gn_min"`
	PGNMax    float64   `json:"p_gn_max"`
	EBNInit   float64   `json:"e_bn_init"`
	EBNMin    float64   `json:"e_bn_min"`
	EBNMax    float64   `json:"e_bn_max"`
	SOCMin    float64   `json:"soc_min"`
	SOCMax    float64   `json:"soc_max"`
	EffBC     float64   `json:"eff_bc"`
	EffBD     float64   `json:"eff_bd"`
	DegCost   float64   `json:"deg_cost"`
}

// Input is the full description of one engine run.
type Input struct {
	NrDays           int                   `json:"nr_days"`
	NrClusters       int                   `json:"nr_clusters"`
	Clustered        bool                  `json:"clustered"`
	DeltaT           float64               `json:"delta_t"`
	StorageRatio     float64               `json:"storage_ratio"`
	StrictPosCoeffs  bool                  `json:"strict_pos_coeffs"`
	TotalShareCoeffs bool                  `json:"total_share_coeffs"`
	Datetimes        []time.Time           `json:"datetimes"`
	LGrid            []float64             `json:"l_grid"`
	MeterIDs         []string              `json:"meter_ids"`
	Meters           map[string]MeterInput `json:"meters"`
}

// Steps returns the number of time steps of the horizon.
func (in Input) Steps() int { return len(in.Datetimes) }

// Step is one entry of the output time index. Full-resolution outputs set
// Datetime with a weight of 1; clustered outputs set Time, Cluster (from 1)
// and Weight, the number of days the cluster represents.
type Step struct {
	Datetime time.Time `json:"datetime"`
	Time     string    `json:"time,omitempty"`
	Cluster  int       `json:"cluster_nr"`
	Weight   int       `json:"cluster_weight"`
}

// MeterOutput holds the sizing and dispatch of one meter over Output.Index.
// Representative inputs (EC, EGFactor, LBuy, LSell) are echoed on the same
// index so clustered runs can be reported consistently.
type MeterOutput struct {
	EC        []float64 `json:"e_c"`
	EGFactor  []float64 `json:"e_g_factor"`
	LBuy      []float64 `json:"l_buy"`
	LSell     []float64 `json:"l_sell"`
	ESup      []float64 `json:"e_sup"`
	ESur      []float64 `json:"e_sur"`
	EPurPool  []float64 `json:"e_pur_pool"`
	ESalePool []float64 `json:"e_sale_pool"`
	ECMet     []float64 `json:"e_cmet"`
	EBC       []float64 `json:"e_bc"`
	EBD       []float64 `json:"e_bd"`
	EBat      []float64 `json:"e_bat"`
	PGNNew    float64   `json:"p_gn_new"`
	EBNNew    float64   `json:"e_bn_new"`
	PCont     float64   `json:"p_cont"`
	// BaselineCost is the cost the meter would bear without new investment.
	BaselineCost *float64 `json:"baseline_cost,omitempty"`
}

// Output is the result of an engine run.
type Output struct {
	Status         string                 `json:"milp_status"`
	ObjectiveValue float64                `json:"obj_value"`
	Clustered      bool                   `json:"clustered"`
	Index          []Step                 `json:"index"`
	LGrid          []float64              `json:"l_grid"`
	DualPrices     []float64              `json:"dual_prices"`
	Meters         map[string]MeterOutput `json:"meters"`
}

// Engine sizes a community.
type Engine interface {
	Solve(ctx context.Context, in Input) (Output, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, in Input) (Output, error)

func (f EngineFunc) Solve(ctx context.Context, in Input) (Output, error) { return f(ctx, in) }
