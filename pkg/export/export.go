// Package export renders an assembled sizing result as JSON, CSV or XLSX.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kilianp07/recsizing/core/assembler"
)

// Table is one list of the result flattened to rows of cells.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// WriteJSON writes the result to w in JSON format.
func WriteJSON(w io.Writer, r assembler.Response) error {
	return json.NewEncoder(w).Encode(r)
}

// WriteCSV writes the meter operation outputs of r to w.
func WriteCSV(w io.Writer, r assembler.Response) error {
	t := operationOutputs(r)
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = text(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with one sheet per result list to w.
func WriteXLSX(w io.Writer, r assembler.Response) error {
	f := excelize.NewFile()
	defer f.Close()

	tables := Tables(r)
	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), t.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return err
		}
		if err := writeSheet(f, t); err != nil {
			return fmt.Errorf("sheet %s: %w", t.Name, err)
		}
	}
	f.SetActiveSheet(0)
	_, err := f.WriteTo(w)
	return err
}

func writeSheet(f *excelize.File, t Table) error {
	sw, err := f.NewStreamWriter(t.Name)
	if err != nil {
		return err
	}
	header := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// Tables flattens every list of r. Time-series tables start with datetime
// or with the cluster triple, matching the index of their rows.
func Tables(r assembler.Response) []Table {
	summary := Table{
		Name:    "summary",
		Headers: []string{"order_id", "objective_value", "milp_status", "total_rec_cost"},
		Rows:    [][]any{{r.OrderID, r.ObjectiveValue, r.MILPStatus, r.TotalRECCost}},
	}

	members := Table{
		Name:    "member_costs",
		Headers: []string{"meter_id", "member_cost", "member_cost_compensation", "member_savings"},
	}
	for _, m := range r.MemberCosts {
		members.Rows = append(members.Rows, []any{m.MeterID, m.MemberCost, m.MemberCostCompensation, m.MemberSavings})
	}

	investments := Table{
		Name: "meter_investment_outputs",
		Headers: []string{
			"meter_id", "installation_cost", "installation_cost_compensation", "installation_savings",
			"installed_pv", "pv_investment_cost", "installed_storage", "storage_investment_cost",
			"total_pv", "total_storage", "contracted_power", "contracted_power_cost",
			"retailer_exchange_costs", "sc_tariffs_costs",
		},
	}
	for _, m := range r.MeterInvestmentOutputs {
		investments.Rows = append(investments.Rows, []any{
			m.MeterID, m.InstallationCost, m.InstallationCostCompensation, m.InstallationSavings,
			m.InstalledPV, m.PVInvestmentCost, m.InstalledStorage, m.StorageInvestmentCost,
			m.TotalPV, m.TotalStorage, m.ContractedPower, m.ContractedPowerCost,
			m.RetailerExchangeCosts, m.SCTariffsCosts,
		})
	}

	clustered := isClustered(r)
	inputs := Table{
		Name:    "meter_operation_inputs",
		Headers: withIndex(clustered, []string{"meter_id"}, "energy_generated", "energy_consumed", "buy_tariff", "sell_tariff"),
	}
	for _, m := range r.MeterOperationInputs {
		inputs.Rows = append(inputs.Rows, withCells(m.Index, []any{m.MeterID},
			m.EnergyGenerated, m.EnergyConsumed, m.BuyTariff, m.SellTariff))
	}

	tariffs := Table{
		Name:    "self_consumption_tariffs",
		Headers: withIndex(clustered, nil, "self_consumption_tariff"),
	}
	for _, s := range r.SelfConsumptionTariffs {
		tariffs.Rows = append(tariffs.Rows, withCells(s.Index, nil, s.SelfConsumptionTariff))
	}

	prices := Table{
		Name:    "lem_prices",
		Headers: withIndex(clustered, nil, "value"),
	}
	for _, l := range r.LemPrices {
		prices.Rows = append(prices.Rows, withCells(l.Index, nil, l.Value))
	}

	return []Table{summary, members, investments, inputs, operationOutputs(r), tariffs, prices}
}

func operationOutputs(r assembler.Response) Table {
	t := Table{
		Name: "meter_operation_outputs",
		Headers: withIndex(isClustered(r), []string{"meter_id"},
			"energy_surplus", "energy_supplied", "energy_purchased_lem", "energy_sold_lem", "net_load",
			"bess_energy_charged", "bess_energy_discharged", "bess_energy_content"),
	}
	for _, m := range r.MeterOperationOutputs {
		t.Rows = append(t.Rows, withCells(m.Index, []any{m.MeterID},
			m.EnergySurplus, m.EnergySupplied, m.EnergyPurchasedLEM, m.EnergySoldLEM, m.NetLoad,
			m.BESSEnergyCharged, m.BESSEnergyDischarged, m.BESSEnergyContent))
	}
	return t
}

// isClustered inspects the first indexed row; a result without rows is
// treated as full resolution.
func isClustered(r assembler.Response) bool {
	switch {
	case len(r.MeterOperationOutputs) > 0:
		return r.MeterOperationOutputs[0].Cluster != nil
	case len(r.MeterOperationInputs) > 0:
		return r.MeterOperationInputs[0].Cluster != nil
	case len(r.LemPrices) > 0:
		return r.LemPrices[0].Cluster != nil
	}
	return false
}

func withIndex(clustered bool, lead []string, cols ...string) []string {
	out := append([]string{}, lead...)
	if clustered {
		out = append(out, "time", "cluster_nr", "cluster_weight")
	} else {
		out = append(out, "datetime")
	}
	return append(out, cols...)
}

func withCells(idx assembler.Index, lead []any, vals ...float64) []any {
	out := append([]any{}, lead...)
	switch {
	case idx.Cluster != nil:
		out = append(out, idx.Cluster.Time, idx.ClusterNr, idx.ClusterWeight)
	case idx.Instant != nil:
		out = append(out, idx.Datetime.UTC().Format(time.RFC3339))
	default:
		out = append(out, "")
	}
	for _, v := range vals {
		out = append(out, v)
	}
	return out
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
