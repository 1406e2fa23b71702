package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/recsizing/config"
	"github.com/kilianp07/recsizing/core/model"
	"github.com/kilianp07/recsizing/core/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fullResults(meters []string, steps int) model.Results {
	t0 := time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC)
	res := model.Results{General: model.GeneralOutcome{ObjectiveValue: 12.34, MILPStatus: model.StatusOptimal, TotalRECCost: 12.34}}
	for i := 0; i < steps; i++ {
		ix := model.TimeIndex{Datetime: t0.Add(time.Duration(i) * 15 * time.Minute)}
		res.LemPrices = append(res.LemPrices, model.LemPrice{Index: ix, Value: 0.123})
		res.SelfConsumptionTariffs = append(res.SelfConsumptionTariffs, model.SelfConsumptionTariff{Index: ix, Tariff: 0.01})
	}
	for _, m := range meters {
		res.MemberCosts = append(res.MemberCosts, model.MemberCost{MeterID: m, MemberCost: 1.25})
		res.MeterInvestments = append(res.MeterInvestments, model.MeterInvestment{MeterID: m, InstalledPV: 2.5, SCTariffsCosts: 0.5})
		for i := steps - 1; i >= 0; i-- {
			ix := model.TimeIndex{Datetime: t0.Add(time.Duration(i) * 15 * time.Minute)}
			res.MeterInputs = append(res.MeterInputs, model.MeterOperationInput{MeterID: m, Index: ix, EnergyConsumed: 0.321})
			res.MeterOutputs = append(res.MeterOutputs, model.MeterOperationOutput{MeterID: m, Index: ix, NetLoad: 0.321})
		}
	}
	return res
}

func TestStore_OrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.GetOrder(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrOrderNotFound)
	assert.ErrorIs(t, s.MarkSuccess(ctx, "nope"), store.ErrOrderNotFound)

	require.NoError(t, s.CreateOrder(ctx, "o1", true))
	assert.ErrorIs(t, s.CreateOrder(ctx, "o1", false), store.ErrDuplicateOrder)

	o, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, o.Processed)
	assert.True(t, o.Clustered)
	assert.Equal(t, model.StatePending, o.State())

	require.NoError(t, s.MarkError(ctx, "o1", model.CodeMissingDataPoints, "missing"))
	o, err = s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.StateMissingDataPoints, o.State())
	assert.Equal(t, "missing", o.Message)

	assert.ErrorIs(t, s.MarkSuccess(ctx, "o1"), store.ErrAlreadyProcessed)
}

func TestStore_CompleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateOrder(ctx, "o2", false))

	require.NoError(t, s.Complete(ctx, "o2", fullResults([]string{"M2", "M1"}, 96)))

	o, err := s.GetOrder(ctx, "o2")
	require.NoError(t, err)
	assert.Equal(t, model.StateComplete, o.State())

	res, err := s.LoadResults(ctx, "o2", false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOptimal, res.General.MILPStatus)
	assert.InDelta(t, 12.34, res.General.ObjectiveValue, 1e-12)
	require.Len(t, res.MemberCosts, 2)
	assert.Equal(t, "M1", res.MemberCosts[0].MeterID)
	require.Len(t, res.MeterInvestments, 2)
	assert.Equal(t, 2.5, res.MeterInvestments[1].InstalledPV)
	require.Len(t, res.MeterInputs, 192)
	require.Len(t, res.MeterOutputs, 192)
	assert.Len(t, res.LemPrices, 96)
	assert.Len(t, res.SelfConsumptionTariffs, 96)
	assert.Equal(t, "M1", res.MeterOutputs[0].MeterID)
	assert.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), res.MeterOutputs[0].Index.Datetime)
	assert.Equal(t, 0.321, res.MeterOutputs[95].NetLoad)
	assert.Equal(t, "M2", res.MeterOutputs[96].MeterID)

	clustered, err := s.LoadResults(ctx, "o2", true)
	require.NoError(t, err)
	assert.Empty(t, clustered.MeterOutputs)
}

func TestStore_CompleteClustered(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateOrder(ctx, "o3", true))
	res := model.Results{
		Clustered: true,
		General:   model.GeneralOutcome{MILPStatus: model.StatusOptimal},
		LemPrices: []model.LemPrice{
			{Index: model.TimeIndex{Time: "00:15:00", ClusterNr: 2, ClusterWeight: 3}, Value: 2},
			{Index: model.TimeIndex{Time: "00:00:00", ClusterNr: 1, ClusterWeight: 4}, Value: 1},
		},
	}
	require.NoError(t, s.Complete(ctx, "o3", res))
	got, err := s.LoadResults(ctx, "o3", true)
	require.NoError(t, err)
	require.Len(t, got.LemPrices, 2)
	assert.Equal(t, model.TimeIndex{Time: "00:00:00", ClusterNr: 1, ClusterWeight: 4}, got.LemPrices[0].Index)
	assert.Equal(t, 2.0, got.LemPrices[1].Value)
}

func TestStore_CompleteRollsBackWhenAlreadyProcessed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateOrder(ctx, "o4", false))
	require.NoError(t, s.MarkError(ctx, "o4", model.CodeInternal, "boom"))

	err := s.Complete(ctx, "o4", fullResults([]string{"M1"}, 4))
	assert.ErrorIs(t, err, store.ErrAlreadyProcessed)

	res, err := s.LoadResults(ctx, "o4", false)
	require.NoError(t, err)
	assert.Empty(t, res.MemberCosts)
	assert.Empty(t, res.MeterOutputs)
}

func TestStore_ConcurrentJobs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("job-%d", i)
		require.NoError(t, s.CreateOrder(ctx, id, false))
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Complete(ctx, id, fullResults([]string{"M1"}, 8)))
		}()
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		res, err := s.LoadResults(ctx, fmt.Sprintf("job-%d", i), false)
		require.NoError(t, err)
		assert.Len(t, res.MeterOutputs, 8)
	}
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", postgresDialect.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = ?", sqliteDialect.rebind("a = ?"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "oracle"})
	assert.Error(t, err)
}
