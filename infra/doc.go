// Package infra contains technical adapters such as the SQL store, data
// sources, the MQTT relay and metrics exporters. These packages should depend
// only on the interfaces defined in the core packages.
package infra
