package metrics

import "github.com/kilianp07/recsizing/core/factory"

// Config lists the metrics sinks to instantiate.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}
