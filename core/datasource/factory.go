package datasource

import "github.com/kilianp07/recsizing/core/factory"

var sourceRegistry = factory.NewRegistry[Source]("source")

// RegisterSource adds a source factory identified by name.
func RegisterSource(name string, f factory.Factory[Source]) error {
	return sourceRegistry.Register(name, f)
}

// NewSource creates the configured source.
func NewSource(cfg factory.ModuleConfig) (Source, error) {
	return sourceRegistry.Create(cfg)
}
