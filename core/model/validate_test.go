package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRequest() Base {
	start := time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC)
	return Base{
		Start:    start,
		End:      start.Add(23*time.Hour + 45*time.Minute),
		Origin:   OriginSEL,
		MeterIDs: []string{"A", "B", "C"},
	}
}

func sharedWith(own ...Ownership) Request {
	return WithShared(baseRequest(), SharedAssets{MeterIDs: []string{"S"}, Ownerships: own})
}

func TestValidate_Plain(t *testing.T) {
	require.NoError(t, Plain(baseRequest()).Validate())

	b := baseRequest()
	b.End = b.Start
	err := Plain(b).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.Contains(t, err.Error(), "end_datetime <= start_datetime")

	b = baseRequest()
	b.NrRepresentativeDays = -1
	b.Origin = "CEVE"
	err = Plain(b).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nr_representative_days")
	assert.Contains(t, err.Error(), "dataset_origin")
}

func TestValidate_OwnershipSums(t *testing.T) {
	cases := []struct {
		name string
		pcts []float64
		ok   bool
	}{
		{"exact", []float64{60, 40}, true},
		{"thirds", []float64{33.3, 33.3, 33.4}, true},
		{"short", []float64{60, 39.9}, false},
		{"over", []float64{60, 40.1}, false},
	}
	owners := []string{"A", "B", "C"}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var own []Ownership
			for i, p := range tc.pcts {
				own = append(own, Ownership{SharedMeterID: "S", MeterID: owners[i], Percentage: p})
			}
			err := sharedWith(own...).Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "must equal 100%")
		})
	}
}

func TestValidate_SharedRules(t *testing.T) {
	err := sharedWith(
		Ownership{SharedMeterID: "S", MeterID: "A", Percentage: 50},
		Ownership{SharedMeterID: "S", MeterID: "A", Percentage: 50},
	).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated meter ID A")

	err = sharedWith(
		Ownership{SharedMeterID: "S", MeterID: "Z", Percentage: 100},
	).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a member meter")

	err = sharedWith(
		Ownership{SharedMeterID: "S", MeterID: "A", Percentage: 150},
		Ownership{SharedMeterID: "S", MeterID: "B", Percentage: -50},
	).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "within [0, 100]")

	err = WithShared(baseRequest(), SharedAssets{MeterIDs: []string{"S", "T"}, Ownerships: []Ownership{
		{SharedMeterID: "S", MeterID: "A", Percentage: 100},
		{SharedMeterID: "U", MeterID: "A", Percentage: 100},
	}}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared meter T has no ownerships")
	assert.Contains(t, err.Error(), "undeclared shared meter U")
}

func TestRequestVariants(t *testing.T) {
	p := Plain(baseRequest())
	_, ok := p.Shared()
	assert.False(t, ok)
	assert.Equal(t, VariantPlain, p.Variant())
	assert.Equal(t, []string{"A", "B", "C"}, p.AllMeterIDs())

	b := baseRequest()
	b.MeterIDs = []string{"A", "B", "A"}
	b.NrRepresentativeDays = 1
	s := WithShared(b, SharedAssets{MeterIDs: []string{"S"}, Params: []SizingParams{{MeterID: "S"}}})
	assert.Equal(t, VariantShared, s.Variant())
	assert.Equal(t, []string{"A", "B", "S"}, s.AllMeterIDs())
	assert.True(t, s.IsShared("S"))
	assert.False(t, s.IsShared("A"))
	assert.True(t, s.Clustered())
	assert.Len(t, s.AllParams(), 1)
}

func TestClusteredNeedsEnoughDays(t *testing.T) {
	b := baseRequest()
	b.End = b.Start.Add(2*24*time.Hour - 15*time.Minute)
	cases := []struct {
		rep  int
		want bool
	}{
		{0, false},
		{1, true},
		{2, true},
		{5, false},
	}
	for _, tc := range cases {
		b.NrRepresentativeDays = tc.rep
		assert.Equal(t, 2, Plain(b).HorizonDays())
		assert.Equal(t, tc.want, Plain(b).Clustered(), "nr_representative_days=%d", tc.rep)
	}
}

func TestOrderState(t *testing.T) {
	assert.Equal(t, StatePending, Order{}.State())
	assert.Equal(t, StateComplete, Order{Processed: true}.State())
	assert.Equal(t, StateMissingEntities, Order{Processed: true, Error: CodeMissingEntities}.State())
	assert.Equal(t, StateMissingDataPoints, Order{Processed: true, Error: CodeMissingDataPoints}.State())
	assert.Equal(t, StateInternalError, Order{Processed: true, Error: "999"}.State())
}
