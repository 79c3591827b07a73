package weighting

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/pkg/logger"
)

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg, logger.NewNop())
	require.NoError(t, err)
	return e
}

func TestWeightsDefaultToOne(t *testing.T) {
	ds := &contracts.Dataset{
		Observations: []contracts.Observation{
			{Pollster: "A", SampleSize: contracts.Int(500)},
			{Pollster: "B"},
		},
	}

	weights := newEngine(t, DefaultConfig()).Weights(ds)
	assert.Equal(t, []float64{1, 1}, weights)
}

func TestWeightsExplicitColumn(t *testing.T) {
	ds := &contracts.Dataset{
		HasWeight: true,
		Observations: []contracts.Observation{
			{Weight: contracts.Float(0.25)},
			{Weight: nil},
		},
	}

	weights := newEngine(t, DefaultConfig()).Weights(ds)
	assert.Equal(t, []float64{0.25, 1}, weights)
}

func TestWeightsCategoricalFactors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tables.Pollster = map[string]float64{"Trusted Polls": 1.2}

	ds := &contracts.Dataset{
		HasModality:   true,
		HasPopulation: true,
		Observations: []contracts.Observation{
			{Pollster: "Trusted Polls", Modality: "online", Population: "Registered Voters"},
			{Pollster: "Other", Modality: "Carrier pigeon", Population: "Likely Voters"},
			{Pollster: "Other", Modality: "IVR", Population: "Adults"},
			{Pollster: "Other"},
		},
	}

	weights := newEngine(t, cfg).Weights(ds)
	require.Len(t, weights, 4)
	assert.InDelta(t, 1.2*0.9*0.95, weights[0], 1e-12)
	assert.InDelta(t, 1.0, weights[1], 1e-12) // unknown category
	assert.InDelta(t, 0.95*0.9, weights[2], 1e-12)
	assert.InDelta(t, 1.0, weights[3], 1e-12)
}

func TestWeightsIgnoreAbsentColumns(t *testing.T) {
	// metadata present on the struct but the dataset has no such column
	ds := &contracts.Dataset{
		Observations: []contracts.Observation{{Modality: "Online"}},
	}

	weights := newEngine(t, DefaultConfig()).Weights(ds)
	assert.Equal(t, []float64{1}, weights)
}

func TestWeightsSampleSizeFactor(t *testing.T) {
	ds := &contracts.Dataset{
		Observations: []contracts.Observation{
			{SampleSize: contracts.Int(400)},
			{SampleSize: contracts.Int(1600)},
			{SampleSize: nil},
		},
	}

	std := newEngine(t, DefaultConfig()).Weights(ds)
	assert.Equal(t, []float64{1, 1, 1}, std)

	cfg := DefaultConfig()
	cfg.Variant = VariantPollster538
	weights := newEngine(t, cfg).Weights(ds)

	// mean n = 1000
	assert.InDelta(t, math.Sqrt(0.4), weights[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.6), weights[1], 1e-12)
	assert.InDelta(t, 1.0, weights[2], 1e-12)
}

func TestWeightsFactorsCommute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Variant = VariantPollster538
	cfg.Tables.Pollster = map[string]float64{"P": 0.8}

	obs := contracts.Observation{
		Pollster:   "P",
		Weight:     contracts.Float(2),
		Modality:   "Online",
		Population: "Adults",
		SampleSize: contracts.Int(250),
	}
	ds := &contracts.Dataset{
		HasWeight: true, HasModality: true, HasPopulation: true,
		Observations: []contracts.Observation{obs, {SampleSize: contracts.Int(750)}},
	}

	weights := newEngine(t, cfg).Weights(ds)
	want := 2 * math.Sqrt(250.0/500.0) * 0.9 * 0.9 * 0.8
	assert.InDelta(t, want, weights[0], 1e-12)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Variant: "fivethirtyeight"}, logger.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfig))

	cfg := DefaultConfig()
	cfg.Tables.Pollster = map[string]float64{"Bad": -1}
	_, err = New(cfg, logger.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfig))
}

func TestParseTables(t *testing.T) {
	tables, err := ParseTables([]byte(`
modality:
  online: 0.8
pollster:
  Policy Voice: 1.1
`))
	require.NoError(t, err)

	assert.Equal(t, 0.8, tables.Modality["online"])
	_, stale := tables.Modality["Online"]
	assert.False(t, stale)
	assert.Equal(t, 0.95, tables.Modality["IVR"])
	assert.Equal(t, 1.1, tables.Pollster["Policy Voice"])
	assert.Equal(t, 0.9, tables.Population["Adults"])
}

func TestParseTablesUnknownField(t *testing.T) {
	_, err := ParseTables([]byte("sponsors:\n  Gazette: 2\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrConfig))
}

func TestLoadTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("population:\n  Adults: 0.5\n"), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, tables.Population["Adults"])

	_, err = LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	empty, err := ParseTables(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTables(), empty)
}
