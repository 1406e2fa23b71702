package model

import "time"

// PlainPayload is the wire form of a request without shared meters.
type PlainPayload struct {
	StartDatetime        time.Time      `json:"start_datetime" binding:"required"`
	EndDatetime          time.Time      `json:"end_datetime" binding:"required"`
	DatasetOrigin        DatasetOrigin  `json:"dataset_origin" binding:"required,oneof=SEL INDATA"`
	NrRepresentativeDays int            `json:"nr_representative_days" binding:"gte=0"`
	MeterIDs             []string       `json:"meter_ids" binding:"required,min=1,dive,required"`
	SizingParamsByMeter  []SizingParams `json:"sizing_params_by_meter" binding:"dive"`
}

// SharedPayload extends PlainPayload with jointly owned meters.
type SharedPayload struct {
	PlainPayload
	SharedMeterIDs             []string       `json:"shared_meter_ids" binding:"required,min=1,dive,required"`
	Ownerships                 []Ownership    `json:"ownerships" binding:"required,min=1,dive"`
	SizingParamsForSharedMeter []SizingParams `json:"sizing_params_for_shared_meter" binding:"dive"`
}

func (p PlainPayload) base() Base {
	return Base{
		Start:                p.StartDatetime,
		End:                  p.EndDatetime,
		Origin:               p.DatasetOrigin,
		NrRepresentativeDays: p.NrRepresentativeDays,
		MeterIDs:             p.MeterIDs,
		Params:               p.SizingParamsByMeter,
	}
}

// Request converts the payload into a plain request.
func (p PlainPayload) Request() Request { return Plain(p.base()) }

// Request converts the payload into a shared request.
func (p SharedPayload) Request() Request {
	return WithShared(p.base(), SharedAssets{
		MeterIDs:   p.SharedMeterIDs,
		Ownerships: p.Ownerships,
		Params:     p.SizingParamsForSharedMeter,
	})
}
