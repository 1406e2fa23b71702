package allocation

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/recsizing/core/model"
)

// ErrShares reports ownership shares that do not add up to one.
var ErrShares = errors.New("invalid ownership shares")

const shareTolerance = 1e-9

// Shares maps each meter to the members bearing its costs.
type Shares map[string]map[string]float64

// SharesFor derives the shares of a request: a member meter belongs fully
// to itself and a shared meter to its owners in proportion to their
// percentage.
func SharesFor(req model.Request) (Shares, error) {
	s := make(Shares)
	for _, id := range req.MeterIDs {
		s[id] = map[string]float64{id: 1}
	}
	shared, ok := req.Shared()
	if !ok {
		return s, nil
	}
	hundred := decimal.NewFromInt(100)
	for _, o := range shared.Ownerships {
		if s[o.SharedMeterID] == nil {
			s[o.SharedMeterID] = make(map[string]float64)
		}
		share, _ := decimal.NewFromFloat(o.Percentage).Div(hundred).Float64()
		s[o.SharedMeterID][o.MeterID] += share
	}
	for _, id := range shared.MeterIDs {
		if err := s.check(id); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s Shares) check(meter string) error {
	owners, ok := s[meter]
	if !ok || len(owners) == 0 {
		return fmt.Errorf("%w: meter %s has no owner", ErrShares, meter)
	}
	var total float64
	for _, v := range owners {
		total += v
	}
	if math.Abs(total-1) > shareTolerance {
		return fmt.Errorf("%w: shares of meter %s sum to %v", ErrShares, meter, total)
	}
	return nil
}
