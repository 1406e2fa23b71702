// Package metrics defines the sinks that observe sizing jobs. A sink records
// terminal job outcomes; optional recorder interfaces cover submissions, stage
// timings and the number of running jobs. Sinks are created from
// configuration through the registry, several configured sinks are combined
// in a MultiSink.
package metrics
