package lpengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/recsizing/core/datasource"
	"github.com/kilianp07/recsizing/core/inputs"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/reference"
	"github.com/kilianp07/recsizing/core/solver"
	"github.com/kilianp07/recsizing/internal/fixture"
)

func buildInput(t *testing.T, req model.Request, days int) solver.Input {
	t.Helper()
	tbl, err := reference.Default()
	require.NoError(t, err)
	in, err := inputs.NewBuilder(tbl).Build(req, datasource.Grid(req.Start, req.End), fixture.Dataset(days, req.AllMeterIDs()...))
	require.NoError(t, err)
	return in
}

func TestSolve_OneDayOptimal(t *testing.T) {
	in := buildInput(t, fixture.Plain(1, 0, "A", "B"), 1)
	out, err := New(Config{}).Solve(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, model.StatusOptimal, out.Status)
	assert.False(t, out.Clustered)
	require.Len(t, out.Index, 96)
	assert.Equal(t, fixture.Start, out.Index[0].Datetime)
	assert.Equal(t, 1, out.Index[95].Weight)
	assert.Len(t, out.DualPrices, 96)
	assert.Len(t, out.LGrid, 96)

	for _, id := range []string{"A", "B"} {
		m := out.Meters[id]
		require.Len(t, m.ECMet, 96, id)
		require.NotNil(t, m.BaselineCost)
		assert.GreaterOrEqual(t, m.PGNNew, 0.0)
		assert.LessOrEqual(t, m.PGNNew, 5.0+1e-9)
		assert.GreaterOrEqual(t, m.PCont, in.Meters[id].PMeterMax)
		for k, v := range m.ECMet {
			assert.InDelta(t, v, m.ESup[k]+m.EPurPool[k]-m.ESur[k]-m.ESalePool[k], 1e-9)
		}
	}
	for k := range out.Index {
		pur := out.Meters["A"].EPurPool[k] + out.Meters["B"].EPurPool[k]
		sale := out.Meters["A"].ESalePool[k] + out.Meters["B"].ESalePool[k]
		assert.InDelta(t, pur, sale, 1e-9)
	}
}

func TestSolve_BatteryWithinBounds(t *testing.T) {
	in := buildInput(t, fixture.Plain(1, 0, "A", "B"), 1)
	out, err := New(Config{}).Solve(context.Background(), in)
	require.NoError(t, err)
	for _, id := range []string{"A", "B"} {
		m := out.Meters[id]
		capacity := in.Meters[id].EBNInit + m.EBNNew
		for _, v := range m.EBat {
			assert.GreaterOrEqual(t, v, capacity*in.Meters[id].SOCMin/100-1e-9)
			assert.LessOrEqual(t, v, capacity*in.Meters[id].SOCMax/100+1e-9)
		}
	}
}

func TestSolve_Clustered(t *testing.T) {
	in := buildInput(t, fixture.Plain(4, 2, "A", "B"), 4)
	require.True(t, in.Clustered)
	require.Equal(t, 2, in.NrClusters)

	out, err := New(Config{}).Solve(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.Clustered)
	require.Len(t, out.Index, 2*96)
	assert.Equal(t, "00:00:00", out.Index[0].Time)
	assert.Equal(t, "23:45:00", out.Index[95].Time)
	assert.Equal(t, 1, out.Index[0].Cluster)
	assert.Equal(t, 2, out.Index[96].Cluster)
	assert.Equal(t, 4, out.Index[0].Weight+out.Index[96].Weight)
	assert.Len(t, out.Meters["A"].EC, 2*96)
}

func TestSolve_ClusteringSkippedIsFullResolution(t *testing.T) {
	in := buildInput(t, fixture.Plain(2, 5, "A"), 2)
	require.Equal(t, 2, in.NrClusters)
	require.False(t, in.Clustered)

	out, err := New(Config{}).Solve(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Clustered)
	require.Len(t, out.Index, 2*96)
	assert.Equal(t, fixture.Start.Add(24*time.Hour), out.Index[96].Datetime)
	assert.Zero(t, out.Index[96].Cluster)
	assert.Equal(t, 1, out.Index[96].Weight)
}

func TestSolve_InfeasibleMinimums(t *testing.T) {
	in := buildInput(t, fixture.Plain(1, 0, "A"), 1)
	m := in.Meters["A"]
	m.PGNMin, m.PGNMax = 10000, 10000
	in.Meters["A"] = m

	out, err := New(Config{}).Solve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInfeasible, out.Status)
	assert.Equal(t, 10000.0, out.Meters["A"].PGNNew)
}

func TestSolve_RejectsMalformedInput(t *testing.T) {
	in := buildInput(t, fixture.Plain(1, 0, "A"), 1)
	in.LGrid = in.LGrid[:10]
	_, err := New(Config{}).Solve(context.Background(), in)
	assert.ErrorIs(t, err, solver.ErrInvalidInput)
}

func TestSolve_Cancelled(t *testing.T) {
	in := buildInput(t, fixture.Plain(1, 0, "A"), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).Solve(ctx, in)
	assert.ErrorIs(t, err, context.Canceled)
}
