// Package reference holds the static per-meter reference values (contracted
// power, PV already installed) used when building engine inputs.
package reference

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/recsizing/core/model"
)

//go:embed tables.yaml
var embedded []byte

// OriginTable holds the reference values of one dataset origin.
type OriginTable struct {
	SharedContractedPower float64            `yaml:"shared_contracted_power"`
	ContractedPower       map[string]float64 `yaml:"contracted_power"`
	InstalledPV           map[string]float64 `yaml:"installed_pv"`
}

// Tables maps each dataset origin to its reference values.
type Tables struct {
	Origins map[model.DatasetOrigin]OriginTable `yaml:"origins"`
}

// Default returns the tables shipped with the binary.
func Default() (*Tables, error) {
	return Parse(embedded)
}

// Load reads tables from path, or returns the shipped tables when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference tables: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML reference tables.
func Parse(raw []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode reference tables: %w", err)
	}
	if len(t.Origins) == 0 {
		return nil, fmt.Errorf("reference tables define no origin")
	}
	return &t, nil
}

// InstalledPV returns the PV capacity already behind a meter, 0 when unknown.
func (t *Tables) InstalledPV(origin model.DatasetOrigin, meterID string) float64 {
	return t.Origins[origin].InstalledPV[meterID]
}

// ContractedPower returns the contracted power of a meter. Meters missing
// from the table (new shared meters) get the origin's shared default.
func (t *Tables) ContractedPower(origin model.DatasetOrigin, meterID string) float64 {
	o := t.Origins[origin]
	if p, ok := o.ContractedPower[meterID]; ok {
		return p
	}
	return o.SharedContractedPower
}
