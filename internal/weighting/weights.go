// Package weighting computes the per-observation weight used when polls are
// averaged onto the trend grid.
package weighting

import (
	"fmt"
	"math"
	"strings"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/pkg/logger"
)

// Variant selects which factors are compounded into the weight
type Variant string

const (
	VariantStandard    Variant = "standard"
	VariantPollster538 Variant = "pollster-538-style" // adds the sample-size factor
)

// Tables are the categorical weight modifiers. Keys match case-insensitively;
// unknown categories get factor 1.0.
type Tables struct {
	Modality   map[string]float64 `yaml:"modality" json:"modality"`
	Population map[string]float64 `yaml:"population" json:"population"`
	Pollster   map[string]float64 `yaml:"pollster" json:"pollster"`
}

// DefaultTables returns the built-in modality and population factors and an
// empty pollster reputation table
func DefaultTables() Tables {
	return Tables{
		Modality: map[string]float64{
			"Online":      0.9,
			"IVR":         0.95,
			"Live caller": 1.0,
		},
		Population: map[string]float64{
			"Adults":            0.9,
			"Registered Voters": 0.95,
			"Likely Voters":     1.0,
		},
		Pollster: map[string]float64{},
	}
}

// Config holds weighting engine settings
type Config struct {
	Variant Variant
	Tables  Tables
}

// DefaultConfig returns the standard variant with default tables
func DefaultConfig() Config {
	return Config{Variant: VariantStandard, Tables: DefaultTables()}
}

// Engine produces per-observation weights
// ⭐ SSOT: Weighting Engine
type Engine struct {
	variant    Variant
	modality   map[string]float64
	population map[string]float64
	pollster   map[string]float64
	log        *logger.Logger
}

// New creates a weighting engine. An unknown variant or a negative factor is a ConfigError.
func New(config Config, log *logger.Logger) (*Engine, error) {
	switch config.Variant {
	case "":
		config.Variant = VariantStandard
	case VariantStandard, VariantPollster538:
	default:
		return nil, &contracts.ConfigError{
			Field:   "weighting.variant",
			Message: fmt.Sprintf("unknown variant %q (valid: %s, %s)", config.Variant, VariantStandard, VariantPollster538),
		}
	}

	modality, err := foldTable("weighting.modality", config.Tables.Modality)
	if err != nil {
		return nil, err
	}
	population, err := foldTable("weighting.population", config.Tables.Population)
	if err != nil {
		return nil, err
	}
	pollster, err := foldTable("weighting.pollster", config.Tables.Pollster)
	if err != nil {
		return nil, err
	}

	return &Engine{
		variant:    config.Variant,
		modality:   modality,
		population: population,
		pollster:   pollster,
		log:        log.WithField("component", "weighting"),
	}, nil
}

// Variant returns the configured variant
func (e *Engine) Variant() Variant {
	return e.variant
}

// Weights returns one weight per observation, aligned with ds.Observations.
// All factors are plain multipliers, so their order does not matter.
func (e *Engine) Weights(ds *contracts.Dataset) []float64 {
	weights := make([]float64, len(ds.Observations))

	meanN := 0.0
	if e.variant == VariantPollster538 {
		meanN = meanSampleSize(ds)
	}

	for i := range ds.Observations {
		obs := &ds.Observations[i]

		w := 1.0
		if ds.HasWeight && obs.Weight != nil {
			w = *obs.Weight
		}

		if ds.HasModality && obs.Modality != "" {
			w *= lookup(e.modality, obs.Modality)
		}
		if ds.HasPopulation && obs.Population != "" {
			w *= lookup(e.population, obs.Population)
		}
		if obs.Pollster != "" {
			w *= lookup(e.pollster, obs.Pollster)
		}

		if e.variant == VariantPollster538 && meanN > 0 && obs.SampleSize != nil && *obs.SampleSize > 0 {
			w *= math.Sqrt(float64(*obs.SampleSize) / meanN)
		}

		weights[i] = w
	}

	e.log.WithFields(map[string]interface{}{
		"variant":      string(e.variant),
		"observations": len(weights),
		"mean_n":       meanN,
	}).Debug("Weights computed")

	return weights
}

// meanSampleSize averages the positive, non-null sample sizes
func meanSampleSize(ds *contracts.Dataset) float64 {
	sum, count := 0.0, 0
	for _, o := range ds.Observations {
		if o.SampleSize != nil && *o.SampleSize > 0 {
			sum += float64(*o.SampleSize)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func foldTable(field string, table map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(table))
	for k, v := range table {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &contracts.ConfigError{
				Field:   field,
				Message: fmt.Sprintf("factor for %q must be a finite value >= 0, got %v", k, v),
			}
		}
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, nil
}

func lookup(table map[string]float64, key string) float64 {
	if f, ok := table[strings.ToLower(strings.TrimSpace(key))]; ok {
		return f
	}
	return 1.0
}
