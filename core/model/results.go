package model

import "time"

// MILP statuses reported by the optimisation engine.
const (
	StatusOptimal    = "Optimal"
	StatusInfeasible = "Infeasible"
	StatusUnbounded  = "Unbounded"
)

// ClockLayout formats the time-of-day of a clustered time index.
const ClockLayout = "15:04:05"

// TimeIndex locates a row in time. Datetime is set for full-resolution
// results; Time, ClusterNr and ClusterWeight for clustered ones.
type TimeIndex struct {
	Datetime      time.Time
	Time          string
	ClusterNr     int
	ClusterWeight int
}

// Before orders indices within one table family.
func (t TimeIndex) Before(o TimeIndex) bool {
	if !t.Datetime.Equal(o.Datetime) {
		return t.Datetime.Before(o.Datetime)
	}
	if t.ClusterNr != o.ClusterNr {
		return t.ClusterNr < o.ClusterNr
	}
	return t.Time < o.Time
}

// GeneralOutcome is the order-level summary of a completed job.
type GeneralOutcome struct {
	ObjectiveValue float64
	MILPStatus     string
	TotalRECCost   float64
}

// MemberCost is the cost allocated to one member meter.
type MemberCost struct {
	MeterID                string
	MemberCost             float64
	MemberCostCompensation float64
	MemberSavings          float64
}

// MeterInvestment holds the sizing and cost breakdown of one meter.
type MeterInvestment struct {
	MeterID                      string
	InstallationCost             float64
	InstallationCostCompensation float64
	InstallationSavings          float64
	InstalledPV                  float64
	PVInvestmentCost             float64
	InstalledStorage             float64
	StorageInvestmentCost        float64
	TotalPV                      float64
	TotalStorage                 float64
	ContractedPower              float64
	ContractedPowerCost          float64
	RetailerExchangeCosts        float64
	SCTariffsCosts               float64
}

// LemPrice is the local energy market price of one time step.
type LemPrice struct {
	Index TimeIndex
	Value float64
}

// SelfConsumptionTariff is the pool tariff of one time step.
type SelfConsumptionTariff struct {
	Index  TimeIndex
	Tariff float64
}

// MeterOperationInput echoes the engine inputs of one meter and step.
type MeterOperationInput struct {
	MeterID         string
	Index           TimeIndex
	EnergyGenerated float64
	EnergyConsumed  float64
	BuyTariff       float64
	SellTariff      float64
}

// MeterOperationOutput holds the dispatch of one meter and step.
type MeterOperationOutput struct {
	MeterID              string
	Index                TimeIndex
	EnergySurplus        float64
	EnergySupplied       float64
	EnergyPurchasedLEM   float64
	EnergySoldLEM        float64
	NetLoad              float64
	BESSEnergyCharged    float64
	BESSEnergyDischarged float64
	BESSEnergyContent    float64
}

// Results is every row produced for one completed order. Clustered selects
// the table family the time-series rows belong to.
type Results struct {
	Clustered              bool
	General                GeneralOutcome
	MemberCosts            []MemberCost
	MeterInvestments       []MeterInvestment
	LemPrices              []LemPrice
	SelfConsumptionTariffs []SelfConsumptionTariff
	MeterInputs            []MeterOperationInput
	MeterOutputs           []MeterOperationOutput
}
