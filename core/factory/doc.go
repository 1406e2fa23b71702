// Package factory provides the generic registry used to instantiate pluggable
// modules (data sources, engines, metric sinks) from configuration. A module
// is selected by a type string and configured by a map of raw settings that
// the factory decodes into its own typed struct.
//
//	reg := factory.NewRegistry[datasource.Source]("source")
//	reg.MustRegister("file", func(conf map[string]any) (datasource.Source, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return datasource.LoadFile(c.Path)
//	})
package factory
