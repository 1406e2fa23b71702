package model

import "time"

// DatasetOrigin names the registry that holds a meter's historical data and
// reference values.
type DatasetOrigin string

const (
	OriginSEL    DatasetOrigin = "SEL"
	OriginINDATA DatasetOrigin = "INDATA"
)

// Valid reports whether the origin is one of the known registries.
func (o DatasetOrigin) Valid() bool {
	return o == OriginSEL || o == OriginINDATA
}

// SizingParams bounds and prices the new PV and storage capacity behind one
// meter. Percentages (state of charge, efficiencies) are expressed in %.
type SizingParams struct {
	MeterID       string  `json:"meter_id" binding:"required"`
	MinNewPVPower float64 `json:"minimum_new_pv_power" binding:"gte=0"`
	MaxNewPVPower float64 `json:"maximum_new_pv_power" binding:"gte=0"`
	MinNewStorage float64 `json:"minimum_new_storage_capacity" binding:"gte=0"`
	MaxNewStorage float64 `json:"maximum_new_storage_capacity" binding:"gte=0"`
	LGIC          float64 `json:"l_gic" binding:"gte=0"`
	LBIC          float64 `json:"l_bic" binding:"gte=0"`
	SOCMin        float64 `json:"soc_min" binding:"gte=0,lte=100"`
	SOCMax        float64 `json:"soc_max" binding:"gte=0,lte=100"`
	EffBC         float64 `json:"eff_bc" binding:"gte=0,lte=100"`
	EffBD         float64 `json:"eff_bd" binding:"gte=0,lte=100"`
	DegCost       float64 `json:"deg_cost" binding:"gte=0"`
}

// Ownership is the share a member meter holds over a shared meter.
type Ownership struct {
	SharedMeterID string  `json:"shared_meter_id" binding:"required"`
	MeterID       string  `json:"meter_id" binding:"required"`
	Percentage    float64 `json:"percentage" binding:"gte=0,lte=100"`
}

// Base holds the fields common to every sizing request.
type Base struct {
	Start                time.Time
	End                  time.Time
	Origin               DatasetOrigin
	NrRepresentativeDays int
	MeterIDs             []string
	Params               []SizingParams
}

// SharedAssets describes the jointly owned meters of a request.
type SharedAssets struct {
	MeterIDs   []string
	Ownerships []Ownership
	Params     []SizingParams
}

// Variant tags the two request shapes.
type Variant string

const (
	VariantPlain  Variant = "plain"
	VariantShared Variant = "shared"
)

// Request is a sizing request. Build it with Plain or WithShared.
type Request struct {
	Base
	variant Variant
	shared  SharedAssets
}

// Plain returns a request without shared meters.
func Plain(b Base) Request {
	return Request{Base: normalizeBase(b), variant: VariantPlain}
}

// WithShared returns a request whose shared meters are jointly owned by
// members according to s.Ownerships.
func WithShared(b Base, s SharedAssets) Request {
	s.MeterIDs = dedupe(s.MeterIDs)
	return Request{Base: normalizeBase(b), variant: VariantShared, shared: s}
}

// Variant returns the request shape.
func (r Request) Variant() Variant {
	if r.variant == "" {
		return VariantPlain
	}
	return r.variant
}

// Shared returns the shared assets and whether the request carries them.
func (r Request) Shared() (SharedAssets, bool) {
	if r.variant != VariantShared {
		return SharedAssets{}, false
	}
	return r.shared, true
}

// stepsPerDay is the number of 15-minute steps in a day.
const stepsPerDay = 96

// HorizonDays is the number of whole days on the 15-minute grid from Start to
// End inclusive.
func (r Request) HorizonDays() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return (int(r.End.Sub(r.Start)/(15*time.Minute)) + 1) / stepsPerDay
}

// Clustered reports whether the run uses representative days. A request for
// more representative days than the horizon holds runs at full resolution.
func (r Request) Clustered() bool {
	return r.NrRepresentativeDays > 0 && r.NrRepresentativeDays <= r.HorizonDays()
}

// SharedMeterIDs returns the shared meters, nil for plain requests.
func (r Request) SharedMeterIDs() []string {
	if s, ok := r.Shared(); ok {
		return s.MeterIDs
	}
	return nil
}

// AllMeterIDs lists member meters followed by shared meters.
func (r Request) AllMeterIDs() []string {
	out := make([]string, 0, len(r.MeterIDs)+len(r.SharedMeterIDs()))
	out = append(out, r.MeterIDs...)
	return dedupe(append(out, r.SharedMeterIDs()...))
}

// AllParams merges member and shared sizing parameters.
func (r Request) AllParams() []SizingParams {
	out := make([]SizingParams, 0, len(r.Params)+len(r.shared.Params))
	out = append(out, r.Params...)
	if s, ok := r.Shared(); ok {
		out = append(out, s.Params...)
	}
	return out
}

// IsShared reports whether id is one of the request's shared meters.
func (r Request) IsShared(id string) bool {
	for _, s := range r.SharedMeterIDs() {
		if s == id {
			return true
		}
	}
	return false
}

func normalizeBase(b Base) Base {
	b.Start = b.Start.UTC()
	b.End = b.End.UTC()
	b.MeterIDs = dedupe(b.MeterIDs)
	return b
}

// dedupe removes repeated ids and keeps the first occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
