package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kilianp07/recsizing/core/assembler"
	"github.com/kilianp07/recsizing/core/model"
)

func response(clustered bool) assembler.Response {
	idx := model.TimeIndex{Datetime: time.Date(2024, 5, 16, 0, 15, 0, 0, time.UTC)}
	if clustered {
		idx = model.TimeIndex{Time: "00:15:00", ClusterNr: 2, ClusterWeight: 5}
	}
	return assembler.Assemble("o1", model.Results{
		Clustered:    clustered,
		General:      model.GeneralOutcome{ObjectiveValue: 3.5, MILPStatus: model.StatusOptimal, TotalRECCost: 3.25},
		MemberCosts:  []model.MemberCost{{MeterID: "A", MemberCost: 3.25}},
		LemPrices:    []model.LemPrice{{Index: idx, Value: 0.1}},
		MeterOutputs: []model.MeterOperationOutput{{MeterID: "A", Index: idx, NetLoad: 1.125, BESSEnergyContent: 0.5}},
	})
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, response(false)))
	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"meter_id", "datetime", "energy_surplus"}, recs[0][:3])
	assert.Equal(t, "A", recs[1][0])
	assert.Equal(t, "2024-05-16T00:15:00Z", recs[1][1])
	assert.Equal(t, "1.125", recs[1][6])
	assert.Equal(t, "0.5", recs[1][9])
}

func TestWriteCSVClustered(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, response(true)))
	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"meter_id", "time", "cluster_nr", "cluster_weight"}, recs[0][:4])
	assert.Equal(t, []string{"A", "00:15:00", "2", "5"}, recs[1][:4])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, response(false)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		"summary", "member_costs", "meter_investment_outputs", "meter_operation_inputs",
		"meter_operation_outputs", "self_consumption_tariffs", "lem_prices",
	}, f.GetSheetList())

	v, err := f.GetCellValue("summary", "C2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOptimal, v)

	rows, err := f.GetRows("lem_prices")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"datetime", "value"}, rows[0])
	assert.Equal(t, "2024-05-16T00:15:00Z", rows[1][0])
}

func TestTablesEmptyResult(t *testing.T) {
	tables := Tables(assembler.Assemble("o1", model.Results{}))
	require.Len(t, tables, 7)
	assert.Len(t, tables[0].Rows, 1)
	for _, tb := range tables[1:] {
		assert.Empty(t, tb.Rows, tb.Name)
	}
}
