package solver

import "github.com/kilianp07/recsizing/core/factory"

var engineRegistry = factory.NewRegistry[Engine]("solver")

// RegisterEngine adds an engine factory identified by name.
func RegisterEngine(name string, f factory.Factory[Engine]) error {
	return engineRegistry.Register(name, f)
}

// NewEngine creates the configured engine.
func NewEngine(cfg factory.ModuleConfig) (Engine, error) {
	return engineRegistry.Create(cfg)
}
