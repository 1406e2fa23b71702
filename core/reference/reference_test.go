package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/recsizing/core/model"
)

func TestDefaultTables(t *testing.T) {
	tb, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 3.45, tb.ContractedPower(model.OriginSEL, "00e61ee19628"))
	assert.Equal(t, 27.6, tb.ContractedPower(model.OriginSEL, "61fc5293fd52"))
	assert.Equal(t, 17.25, tb.ContractedPower(model.OriginINDATA, "0cb815fd534c"))
	assert.Equal(t, 20.7, tb.ContractedPower(model.OriginINDATA, "new-shared"))
	assert.Zero(t, tb.InstalledPV(model.OriginSEL, "00e61ee19628"))
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	data := `origins:
  SEL:
    shared_contracted_power: 6.9
    contracted_power:
      M1: 10.35
    installed_pv:
      M1: 3.5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	tb, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3.5, tb.InstalledPV(model.OriginSEL, "M1"))
	assert.Equal(t, 6.9, tb.ContractedPower(model.OriginSEL, "M2"))
	assert.Zero(t, tb.ContractedPower(model.OriginINDATA, "M1"))

	_, err = Parse([]byte("origins: {}"))
	assert.Error(t, err)
}
