package cleaning

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/internal/table"
	"github.com/wonny/polltrend/pkg/logger"
)

// DefaultDateLayout is month/day/2-digit-year, e.g. 10/11/23
const DefaultDateLayout = "1/2/06"

// missingTokens are cell values that mean "no data"
var missingTokens = map[string]bool{
	"n/a": true,
	"na":  true,
	"--":  true,
	"**":  true,
	"":    true,
	"NaN": true,
	"*":   true,
}

// Config holds cleaner settings
type Config struct {
	// DateLayouts are tried in order; the first is the expected layout
	DateLayouts []string
}

// DefaultConfig returns the cleaner defaults
func DefaultConfig() Config {
	return Config{DateLayouts: []string{DefaultDateLayout}}
}

// Cleaner normalizes raw string cells into typed observations and validates
// semantic invariants without dropping rows
// ⭐ SSOT: Data Cleaner
type Cleaner struct {
	config Config
	log    *logger.Logger
}

// New creates a new Cleaner
func New(config Config, log *logger.Logger) *Cleaner {
	if len(config.DateLayouts) == 0 {
		config.DateLayouts = DefaultConfig().DateLayouts
	}
	return &Cleaner{
		config: config,
		log:    log.WithField("component", "cleaning"),
	}
}

// Clean converts a normalized table into a typed Dataset.
// Fatal: FormatError (missing reserved columns), DateParseError (no date in the
// column can be read). Everything else is a warning in the returned Diagnostics.
func (c *Cleaner) Clean(t *table.Table) (*contracts.Dataset, *contracts.Diagnostics, error) {
	schema, err := InferSchema(t)
	if err != nil {
		return nil, nil, err
	}

	diag := contracts.NewDiagnostics()
	candidates := schema.CandidateNames()

	ds := &contracts.Dataset{
		Candidates:    candidates,
		Observations:  make([]contracts.Observation, 0, t.Len()),
		HasWeight:     schema.Weight >= 0,
		HasModality:   schema.Modality >= 0,
		HasPopulation: schema.Population >= 0,
		HasSponsor:    schema.Sponsor >= 0,
	}

	var invalidDates, smallSamples []int
	validDates := 0

	for r, row := range t.Rows {
		obs := contracts.Observation{
			Row:    r,
			Shares: make(map[string]*float64, len(candidates)),
		}

		obs.Date = c.parseDate(row[schema.Date])
		if obs.Date == nil {
			invalidDates = append(invalidDates, r)
		} else {
			validDates++
		}

		if p := NormalizeCell(row[schema.Pollster]); p != nil {
			obs.Pollster = *p
		}

		obs.SampleSize = ParseSampleSize(row[schema.Sample])
		if obs.SampleSize != nil && *obs.SampleSize < contracts.SmallSampleThreshold {
			smallSamples = append(smallSamples, r)
		}

		for _, cand := range schema.Candidates {
			obs.Shares[cand.Name] = ParseShare(row[cand.Index])
		}

		if schema.Weight >= 0 {
			obs.Weight = parseFloat(row[schema.Weight])
		}
		obs.Modality = optionalText(row, schema.Modality)
		obs.Population = optionalText(row, schema.Population)
		obs.Sponsor = optionalText(row, schema.Sponsor)

		ds.Observations = append(ds.Observations, obs)
	}

	if validDates == 0 {
		return nil, nil, &contracts.DateParseError{
			Column: t.Header[schema.Date],
			Layout: c.config.DateLayouts[0],
			Reason: fmt.Sprintf("none of %d cells could be parsed", t.Len()),
		}
	}

	if len(invalidDates) > 0 {
		c.log.WithField("rows", invalidDates).Warnf("Invalid dates detected: %d row(s)", len(invalidDates))
		diag.Add(contracts.Warning{
			Code:    contracts.WarnInvalidDate,
			Message: fmt.Sprintf("%d row(s) with an invalid or missing date", len(invalidDates)),
			Rows:    invalidDates,
			Count:   len(invalidDates),
		})
	}

	if len(smallSamples) > 0 {
		c.log.WithField("rows", smallSamples).Warnf("Small sample sizes detected: %d row(s)", len(smallSamples))
		diag.Add(contracts.Warning{
			Code:    contracts.WarnSmallSample,
			Message: fmt.Sprintf("%d row(s) with sample size below %d", len(smallSamples), contracts.SmallSampleThreshold),
			Rows:    smallSamples,
			Count:   len(smallSamples),
		})
	}

	if unbalanced := UnbalancedRows(ds); len(unbalanced) > 0 {
		c.log.WithField("rows", unbalanced).Warnf("%d Row(s) with unbalanced vote-share", len(unbalanced))
		diag.Add(contracts.Warning{
			Code:    contracts.WarnUnbalancedShares,
			Message: fmt.Sprintf("%d row(s) with unbalanced vote-share", len(unbalanced)),
			Rows:    unbalanced,
			Count:   len(unbalanced),
		})
	}

	SortNewestFirst(ds.Observations)
	ds.DatesTyped = true

	c.log.WithFields(map[string]interface{}{
		"rows":       ds.Len(),
		"candidates": len(candidates),
		"warnings":   len(diag.Warnings),
	}).Debug("Dataset cleaned")

	return ds, diag, nil
}

// UnbalancedRows returns the raw rows whose shares do not sum to 1.0 within
// tolerance. A row with any null share has a null sum and is counted.
func UnbalancedRows(ds *contracts.Dataset) []int {
	var rows []int
	for i := range ds.Observations {
		if !ds.Observations[i].IsBalanced(ds.Candidates) {
			rows = append(rows, ds.Observations[i].Row)
		}
	}
	sort.Ints(rows)
	return rows
}

// SortNewestFirst orders observations by date descending, null dates last.
// Ties keep source order.
func SortNewestFirst(obs []contracts.Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		a, b := obs[i].Date, obs[j].Date
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// NormalizeCell maps missing tokens to nil and strips trailing asterisks
func NormalizeCell(raw string) *string {
	s := strings.TrimSpace(raw)
	if missingTokens[s] {
		return nil
	}
	s = strings.TrimSpace(strings.TrimRight(s, "*"))
	if s == "" {
		return nil
	}
	return &s
}

// parseDate tries each configured layout; nil when the cell is missing or unreadable
func (c *Cleaner) parseDate(raw string) *time.Time {
	s := NormalizeCell(raw)
	if s == nil {
		return nil
	}
	for _, layout := range c.config.DateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// ParseSampleSize coerces a sample-size cell to a positive integer; failures
// and values <= 0 are nil. Thousands separators are accepted.
func ParseSampleSize(raw string) *int {
	s := NormalizeCell(raw)
	if s == nil {
		return nil
	}
	clean := strings.ReplaceAll(*s, ",", "")
	if n, err := strconv.Atoi(clean); err == nil {
		if n <= 0 {
			return nil
		}
		return &n
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f <= 0 {
		return nil
	}
	n := int(f)
	return &n
}

// ParseShare strips a trailing % and converts a percentage to a fraction
func ParseShare(raw string) *float64 {
	s := NormalizeCell(raw)
	if s == nil {
		return nil
	}
	v := parseFloat(strings.TrimRight(*s, "%"))
	if v == nil {
		return nil
	}
	frac := *v / 100
	return &frac
}

func parseFloat(raw string) *float64 {
	s := NormalizeCell(raw)
	if s == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func optionalText(row []string, idx int) string {
	if idx < 0 {
		return ""
	}
	if s := NormalizeCell(row[idx]); s != nil {
		return *s
	}
	return ""
}
