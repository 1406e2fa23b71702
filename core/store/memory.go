package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/recsizing/core/model"
)

// MemoryStore keeps orders and results in process memory. It backs the
// offline solve command and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	orders  map[string]model.Order
	results map[string]model.Results
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:  make(map[string]model.Order),
		results: make(map[string]model.Results),
	}
}

func (s *MemoryStore) CreateOrder(_ context.Context, id string, clustered bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; ok {
		return ErrDuplicateOrder
	}
	s.orders[id] = model.Order{ID: id, Clustered: clustered}
	return nil
}

func (s *MemoryStore) MarkError(_ context.Context, id string, code model.ErrorCode, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.pendingLocked(id)
	if err != nil {
		return err
	}
	o.Processed, o.Error, o.Message = true, code, message
	s.orders[id] = o
	return nil
}

func (s *MemoryStore) MarkSuccess(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markSuccessLocked(id)
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *MemoryStore) Complete(_ context.Context, id string, res model.Results) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.markSuccessLocked(id); err != nil {
		return err
	}
	s.results[id] = cloneResults(res)
	return nil
}

func (s *MemoryStore) LoadResults(_ context.Context, id string, clustered bool) (model.Results, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.orders[id]; !ok {
		return model.Results{}, ErrOrderNotFound
	}
	res, ok := s.results[id]
	if !ok || res.Clustered != clustered {
		return model.Results{Clustered: clustered}, nil
	}
	out := cloneResults(res)
	SortResults(&out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) pendingLocked(id string) (model.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, ErrOrderNotFound
	}
	if o.Processed {
		return model.Order{}, ErrAlreadyProcessed
	}
	return o, nil
}

func (s *MemoryStore) markSuccessLocked(id string) error {
	o, err := s.pendingLocked(id)
	if err != nil {
		return err
	}
	o.Processed, o.Error, o.Message = true, model.CodeNone, ""
	s.orders[id] = o
	return nil
}

func cloneResults(r model.Results) model.Results {
	r.MemberCosts = append([]model.MemberCost(nil), r.MemberCosts...)
	r.MeterInvestments = append([]model.MeterInvestment(nil), r.MeterInvestments...)
	r.LemPrices = append([]model.LemPrice(nil), r.LemPrices...)
	r.SelfConsumptionTariffs = append([]model.SelfConsumptionTariff(nil), r.SelfConsumptionTariffs...)
	r.MeterInputs = append([]model.MeterOperationInput(nil), r.MeterInputs...)
	r.MeterOutputs = append([]model.MeterOperationOutput(nil), r.MeterOutputs...)
	return r
}

// SortResults orders rows by meter id then time index, the order readers
// expect from every store implementation.
func SortResults(r *model.Results) {
	sort.SliceStable(r.MemberCosts, func(i, j int) bool { return r.MemberCosts[i].MeterID < r.MemberCosts[j].MeterID })
	sort.SliceStable(r.MeterInvestments, func(i, j int) bool {
		return r.MeterInvestments[i].MeterID < r.MeterInvestments[j].MeterID
	})
	sort.SliceStable(r.LemPrices, func(i, j int) bool { return r.LemPrices[i].Index.Before(r.LemPrices[j].Index) })
	sort.SliceStable(r.SelfConsumptionTariffs, func(i, j int) bool {
		return r.SelfConsumptionTariffs[i].Index.Before(r.SelfConsumptionTariffs[j].Index)
	})
	sort.SliceStable(r.MeterInputs, func(i, j int) bool {
		a, b := r.MeterInputs[i], r.MeterInputs[j]
		if a.MeterID != b.MeterID {
			return a.MeterID < b.MeterID
		}
		return a.Index.Before(b.Index)
	})
	sort.SliceStable(r.MeterOutputs, func(i, j int) bool {
		a, b := r.MeterOutputs[i], r.MeterOutputs[j]
		if a.MeterID != b.MeterID {
			return a.MeterID < b.MeterID
		}
		return a.Index.Before(b.Index)
	})
}
