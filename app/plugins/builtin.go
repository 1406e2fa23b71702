// Package plugins registers the built-in data sources and optimisation
// engines. Importing it makes them selectable from configuration.
package plugins

import (
	"github.com/kilianp07/recsizing/core/datasource"
	"github.com/kilianp07/recsizing/core/factory"
	"github.com/kilianp07/recsizing/core/solver"
	"github.com/kilianp07/recsizing/core/solver/lpengine"
	_ "github.com/kilianp07/recsizing/infra/influxsource"
	"github.com/kilianp07/recsizing/infra/remotesolver"
)

func init() {
	_ = datasource.RegisterSource("memory", func(map[string]any) (datasource.Source, error) {
		return datasource.NewMemorySource(datasource.Dataset{}), nil
	})
	_ = datasource.RegisterSource("file", func(conf map[string]any) (datasource.Source, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return datasource.LoadFile(c.Path)
	})

	_ = solver.RegisterEngine("reference", func(conf map[string]any) (solver.Engine, error) {
		var c lpengine.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return lpengine.New(c), nil
	})
	_ = solver.RegisterEngine("remote", func(conf map[string]any) (solver.Engine, error) {
		var c remotesolver.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return remotesolver.New(c)
	})
}
