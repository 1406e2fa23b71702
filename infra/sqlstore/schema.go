package sqlstore

import (
	"fmt"
	"strings"
)

type column struct {
	name string
	kind string
}

// tableDef describes a result table. Every result table also carries a
// surrogate id and the owning order_id.
type tableDef struct {
	name     string
	cols     []column
	meter    bool
	series   bool
	clusters bool
}

func realCols(names ...string) []column {
	out := make([]column, len(names))
	for i, n := range names {
		out[i] = column{name: n, kind: "real"}
	}
	return out
}

func seriesTable(name string, meter, clustered bool, values ...string) tableDef {
	var cols []column
	if meter {
		cols = append(cols, column{"meter_id", "text"})
	}
	if clustered {
		name = "Clustered_" + name
		cols = append(cols, column{"time", "text"}, column{"cluster_nr", "int"}, column{"cluster_weight", "int"})
	} else {
		cols = append(cols, column{"datetime", "text"})
	}
	return tableDef{name: name, cols: append(cols, realCols(values...)...), meter: meter, series: true, clusters: clustered}
}

// family groups the time-series tables of one index shape.
type family struct {
	lem     tableDef
	tariffs tableDef
	inputs  tableDef
	outputs tableDef
}

func newFamily(clustered bool) family {
	return family{
		lem:     seriesTable("Lem_Prices", false, clustered, "value"),
		tariffs: seriesTable("Pool_Self_Consumption_Tariffs", false, clustered, "self_consumption_tariff"),
		inputs: seriesTable("Meter_Operation_Inputs", true, clustered,
			"energy_generated", "energy_consumed", "buy_tariff", "sell_tariff"),
		outputs: seriesTable("Meter_Operation_Outputs", true, clustered,
			"energy_surplus", "energy_supplied", "energy_purchased_lem", "energy_sold_lem",
			"net_load", "bess_energy_charged", "bess_energy_discharged", "bess_energy_content"),
	}
}

var (
	generalTable = tableDef{name: "General_MILP_Outputs", cols: []column{
		{"objective_value", "real"}, {"milp_status", "text"}, {"total_rec_cost", "real"},
	}}
	memberCostsTable = tableDef{name: "Member_Costs", meter: true, cols: append([]column{{"meter_id", "text"}},
		realCols("member_cost", "member_cost_compensation", "member_savings")...)}
	investmentsTable = tableDef{name: "Meter_Investment_Outputs", meter: true, cols: append([]column{{"meter_id", "text"}},
		realCols("installation_cost", "installation_cost_compensation", "installation_savings",
			"installed_pv", "pv_investment_cost", "installed_storage", "storage_investment_cost",
			"total_pv", "total_storage", "contracted_power", "contracted_power_cost",
			"retailer_exchange_costs", "sc_tariffs_costs")...)}

	fullFamily      = newFamily(false)
	clusteredFamily = newFamily(true)
)

func familyFor(clustered bool) family {
	if clustered {
		return clusteredFamily
	}
	return fullFamily
}

func resultTables() []tableDef {
	return []tableDef{
		generalTable, memberCostsTable, investmentsTable,
		fullFamily.lem, fullFamily.tariffs, fullFamily.inputs, fullFamily.outputs,
		clusteredFamily.lem, clusteredFamily.tariffs, clusteredFamily.inputs, clusteredFamily.outputs,
	}
}

func (d dialect) ordersDDL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS Orders (
	order_id TEXT PRIMARY KEY,
	processed %[1]s NOT NULL DEFAULT FALSE,
	error TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	clustered %[1]s NOT NULL DEFAULT FALSE
)`, d.types["bool"])
}

func (d dialect) tableDDL(t tableDef) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\tid %s,\n\torder_id TEXT NOT NULL REFERENCES Orders(order_id)", t.name, d.serial)
	for _, c := range t.cols {
		fmt.Fprintf(&b, ",\n\t%s %s", c.name, d.types[c.kind])
	}
	b.WriteString("\n)")
	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_order ON %s (order_id)", strings.ToLower(t.name), t.name)
	return []string{b.String(), index}
}

func (d dialect) schema() []string {
	stmts := []string{d.ordersDDL()}
	for _, t := range resultTables() {
		stmts = append(stmts, d.tableDDL(t)...)
	}
	return stmts
}

func (t tableDef) columnList() string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

func (t tableDef) insertSQL() string {
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(t.cols)+1), ", ")
	return fmt.Sprintf("INSERT INTO %s (order_id, %s) VALUES (%s)", t.name, t.columnList(), ph)
}

func (t tableDef) selectSQL() string {
	var order []string
	if t.meter {
		order = append(order, "meter_id")
	}
	if t.series {
		if t.clusters {
			order = append(order, "cluster_nr", "time")
		} else {
			order = append(order, "datetime")
		}
	}
	order = append(order, "id")
	return fmt.Sprintf("SELECT %s FROM %s WHERE order_id = ? ORDER BY %s", t.columnList(), t.name, strings.Join(order, ", "))
}
