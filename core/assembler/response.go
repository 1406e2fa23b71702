package assembler

import (
	"time"

	"github.com/kilianp07/recsizing/core/model"
)

// Instant indexes a full-resolution row.
type Instant struct {
	Datetime time.Time `json:"datetime"`
}

// Cluster indexes a representative-day row.
type Cluster struct {
	Time          string `json:"time"`
	ClusterNr     int    `json:"cluster_nr"`
	ClusterWeight int    `json:"cluster_weight"`
}

// Index is embedded in every time-series row; exactly one of its pointers
// is set, so the row carries either datetime or the cluster triple.
type Index struct {
	*Instant
	*Cluster
}

func indexOf(clustered bool, t model.TimeIndex) Index {
	if clustered {
		return Index{Cluster: &Cluster{Time: t.Time, ClusterNr: t.ClusterNr, ClusterWeight: t.ClusterWeight}}
	}
	return Index{Instant: &Instant{Datetime: t.Datetime.UTC()}}
}

type MemberCost struct {
	MeterID                string  `json:"meter_id"`
	MemberCost             float64 `json:"member_cost"`
	MemberCostCompensation float64 `json:"member_cost_compensation"`
	MemberSavings          float64 `json:"member_savings"`
}

type MeterInvestment struct {
	MeterID                      string  `json:"meter_id"`
	InstallationCost             float64 `json:"installation_cost"`
	InstallationCostCompensation float64 `json:"installation_cost_compensation"`
	InstallationSavings          float64 `json:"installation_savings"`
	InstalledPV                  float64 `json:"installed_pv"`
	PVInvestmentCost             float64 `json:"pv_investment_cost"`
	InstalledStorage             float64 `json:"installed_storage"`
	StorageInvestmentCost        float64 `json:"storage_investment_cost"`
	TotalPV                      float64 `json:"total_pv"`
	TotalStorage                 float64 `json:"total_storage"`
	ContractedPower              float64 `json:"contracted_power"`
	ContractedPowerCost          float64 `json:"contracted_power_cost"`
	RetailerExchangeCosts        float64 `json:"retailer_exchange_costs"`
	SCTariffsCosts               float64 `json:"sc_tariffs_costs"`
}

type MeterOperationInput struct {
	MeterID string `json:"meter_id"`
	Index
	EnergyGenerated float64 `json:"energy_generated"`
	EnergyConsumed  float64 `json:"energy_consumed"`
	BuyTariff       float64 `json:"buy_tariff"`
	SellTariff      float64 `json:"sell_tariff"`
}

type MeterOperationOutput struct {
	MeterID string `json:"meter_id"`
	Index
	EnergySurplus        float64 `json:"energy_surplus"`
	EnergySupplied       float64 `json:"energy_supplied"`
	EnergyPurchasedLEM   float64 `json:"energy_purchased_lem"`
	EnergySoldLEM        float64 `json:"energy_sold_lem"`
	NetLoad              float64 `json:"net_load"`
	BESSEnergyCharged    float64 `json:"bess_energy_charged"`
	BESSEnergyDischarged float64 `json:"bess_energy_discharged"`
	BESSEnergyContent    float64 `json:"bess_energy_content"`
}

type SelfConsumptionTariff struct {
	Index
	SelfConsumptionTariff float64 `json:"self_consumption_tariff"`
}

type LemPrice struct {
	Index
	Value float64 `json:"value"`
}

// Response is the body served for a completed order.
type Response struct {
	OrderID                string                  `json:"order_id"`
	ObjectiveValue         float64                 `json:"objective_value"`
	MILPStatus             string                  `json:"milp_status"`
	TotalRECCost           float64                 `json:"total_rec_cost"`
	MemberCosts            []MemberCost            `json:"member_costs"`
	MeterInvestmentOutputs []MeterInvestment       `json:"meter_investment_outputs"`
	MeterOperationInputs   []MeterOperationInput   `json:"meter_operation_inputs"`
	MeterOperationOutputs  []MeterOperationOutput  `json:"meter_operation_outputs"`
	SelfConsumptionTariffs []SelfConsumptionTariff `json:"self_consumption_tariffs"`
	LemPrices              []LemPrice              `json:"lem_prices"`
}
