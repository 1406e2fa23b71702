package model

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrInvalidRequest wraps every admission validation failure.
var ErrInvalidRequest = errors.New("invalid sizing request")

var hundred = decimal.NewFromInt(100)

// Validate checks the admission rules of a request. All violations are
// reported together, each wrapped in ErrInvalidRequest.
func (r Request) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...)))
	}

	if !r.End.After(r.Start) {
		add("end_datetime <= start_datetime")
	}
	if !r.Origin.Valid() {
		add("unknown dataset_origin %q", r.Origin)
	}
	if r.NrRepresentativeDays < 0 {
		add("nr_representative_days must be >= 0")
	}
	if len(r.MeterIDs) == 0 {
		add("meter_ids must not be empty")
	}
	for _, id := range r.MeterIDs {
		if id == "" {
			add("meter_ids contains an empty id")
		}
	}

	if s, ok := r.Shared(); ok {
		errs = append(errs, validateShared(r.MeterIDs, s)...)
	}
	return errors.Join(errs...)
}

func validateShared(members []string, s SharedAssets) []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...)))
	}

	isMember := make(map[string]bool, len(members))
	for _, m := range members {
		isMember[m] = true
	}
	isShared := make(map[string]bool, len(s.MeterIDs))
	for _, id := range s.MeterIDs {
		if id == "" {
			add("shared_meter_ids contains an empty id")
			continue
		}
		if isMember[id] {
			add("meter %s is listed both as member and as shared meter", id)
		}
		isShared[id] = true
	}

	groups := make(map[string][]Ownership)
	for _, o := range s.Ownerships {
		groups[o.SharedMeterID] = append(groups[o.SharedMeterID], o)
	}
	for _, id := range s.MeterIDs {
		if _, ok := groups[id]; !ok && id != "" {
			add("shared meter %s has no ownerships", id)
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, shared := range ids {
		group := groups[shared]
		if !isShared[shared] {
			add("ownerships reference undeclared shared meter %s", shared)
		}
		seen := make(map[string]bool, len(group))
		total := decimal.Zero
		for _, o := range group {
			if seen[o.MeterID] {
				add("found duplicated meter ID %s for shared_meter_id %s", o.MeterID, shared)
			}
			seen[o.MeterID] = true
			if !isMember[o.MeterID] {
				add("owner %s of shared meter %s is not a member meter", o.MeterID, shared)
			}
			if o.Percentage < 0 || o.Percentage > 100 {
				add("ownership of %s over %s must be within [0, 100], got %v", o.MeterID, shared, o.Percentage)
			}
			total = total.Add(decimal.NewFromFloat(o.Percentage))
		}
		if !total.Equal(hundred) {
			add("the sum of all ownerships for shared_meter_id %s must equal 100%%, got %s", shared, total.String())
		}
	}
	return errs
}
