package cleaning

import (
	"sort"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/internal/table"
)

// Header aliases accepted for each reserved column (matched case-insensitively)
var (
	dateAliases       = []string{"date", "dates", "fieldwork date"}
	pollsterAliases   = []string{"pollster", "firm"}
	sampleAliases     = []string{"sample", "n", "sample_size", "sample size"}
	weightAliases     = []string{"weight"}
	modalityAliases   = []string{"mode", "modality"}
	populationAliases = []string{"population", "population_type", "population type"}
	sponsorAliases    = []string{"sponsor", "sponsors"}
)

// Schema is the column layout inferred once from the raw header and passed
// explicitly to every later step. Optional columns are -1 when absent.
type Schema struct {
	Date       int
	Pollster   int
	Sample     int
	Weight     int
	Modality   int
	Population int
	Sponsor    int

	// Candidates are every non-reserved column, sorted by name
	Candidates []CandidateColumn
}

// CandidateColumn maps a candidate name to its raw column index
type CandidateColumn struct {
	Name  string
	Index int
}

// InferSchema partitions the header into reserved and candidate columns.
// Missing date, pollster or sample columns are a FormatError.
func InferSchema(t *table.Table) (*Schema, error) {
	s := &Schema{
		Date:       t.Index(dateAliases...),
		Pollster:   t.Index(pollsterAliases...),
		Sample:     t.Index(sampleAliases...),
		Weight:     t.Index(weightAliases...),
		Modality:   t.Index(modalityAliases...),
		Population: t.Index(populationAliases...),
		Sponsor:    t.Index(sponsorAliases...),
	}

	if s.Date < 0 {
		return nil, contracts.NewFormatError("no date column in header %v", t.Header)
	}
	if s.Pollster < 0 {
		return nil, contracts.NewFormatError("no pollster column in header %v", t.Header)
	}
	if s.Sample < 0 {
		return nil, contracts.NewFormatError("no sample size column in header %v", t.Header)
	}

	reserved := map[int]bool{}
	for _, idx := range []int{s.Date, s.Pollster, s.Sample, s.Weight, s.Modality, s.Population, s.Sponsor} {
		if idx >= 0 {
			reserved[idx] = true
		}
	}

	for i, name := range t.Header {
		if !reserved[i] {
			s.Candidates = append(s.Candidates, CandidateColumn{Name: name, Index: i})
		}
	}
	sort.SliceStable(s.Candidates, func(i, j int) bool {
		return s.Candidates[i].Name < s.Candidates[j].Name
	})

	return s, nil
}

// CandidateNames returns the sorted candidate list
func (s *Schema) CandidateNames() []string {
	names := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		names[i] = c.Name
	}
	return names
}
