package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/recsizing/core/assembler"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/internal/fixture"
)

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func plainPayload(ids ...string) model.PlainPayload {
	p := model.PlainPayload{
		StartDatetime: fixture.Start,
		EndDatetime:   fixture.End(1),
		DatasetOrigin: model.OriginSEL,
		MeterIDs:      ids,
	}
	for _, id := range ids {
		p.SizingParamsByMeter = append(p.SizingParamsByMeter, fixture.Params(id))
	}
	return p
}

func TestReadRequestVariants(t *testing.T) {
	dir := t.TempDir()
	req, err := readRequest(writeJSON(t, dir, "plain.json", plainPayload("A")))
	require.NoError(t, err)
	assert.Equal(t, model.VariantPlain, req.Variant())

	shared := model.SharedPayload{
		PlainPayload:   plainPayload("A", "B"),
		SharedMeterIDs: []string{"S"},
		Ownerships: []model.Ownership{
			{SharedMeterID: "S", MeterID: "A", Percentage: 100},
		},
	}
	req, err = readRequest(writeJSON(t, dir, "shared.json", shared))
	require.NoError(t, err)
	assert.Equal(t, model.VariantShared, req.Variant())
	assert.True(t, req.IsShared("S"))

	_, err = readRequest(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestSolveCommand(t *testing.T) {
	dir := t.TempDir()
	reqPath := writeJSON(t, dir, "req.json", plainPayload("A", "B"))
	dataPath := writeJSON(t, dir, "data.json", fixture.Dataset(1, "A", "B"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"solve", "--request", reqPath, "--data", dataPath})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		solveOpts.request, solveOpts.data, solveOpts.format, solveOpts.out = "", "", "json", ""
	})
	require.NoError(t, rootCmd.Execute())

	var res assembler.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, model.StatusOptimal, res.MILPStatus)
	assert.Len(t, res.OrderID, 45)
	assert.Len(t, res.MemberCosts, 2)
}

func TestSolveCommandFailedOrder(t *testing.T) {
	dir := t.TempDir()
	reqPath := writeJSON(t, dir, "req.json", plainPayload("A", "M1"))
	dataPath := writeJSON(t, dir, "data.json", fixture.Dataset(1, "A"))

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"solve", "--request", reqPath, "--data", dataPath})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		solveOpts.request, solveOpts.data, solveOpts.format, solveOpts.out = "", "", "json", ""
	})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(model.StateMissingEntities))
}
