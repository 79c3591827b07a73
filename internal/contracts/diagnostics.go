package contracts

// WarningCode identifies a class of non-fatal data-quality findings
type WarningCode string

const (
	WarnInvalidDate       WarningCode = "invalid_date"
	WarnSmallSample       WarningCode = "small_sample"
	WarnUnbalancedShares  WarningCode = "unbalanced_shares"
	WarnReweightImbalance WarningCode = "imbalance_after_reweighting"
	WarnAverageOutliers   WarningCode = "average_outliers"
	WarnPollOutliers      WarningCode = "observation_outliers"
	WarnMultipleTables    WarningCode = "multiple_tables"
)

// Warning is one aggregate data-quality finding
type Warning struct {
	Code      WarningCode `json:"code"`
	Message   string      `json:"message"`
	Candidate string      `json:"candidate,omitempty"`
	Rows      []int       `json:"rows,omitempty"` // raw-table rows involved, when row-level
	Count     int         `json:"count"`
}

// Diagnostics collects warnings produced during one pipeline run.
// Not safe for concurrent use; parallel stages keep their own and Merge.
type Diagnostics struct {
	Warnings []Warning `json:"warnings"`
}

// NewDiagnostics returns an empty collector
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{Warnings: []Warning{}}
}

// Add records a warning
func (d *Diagnostics) Add(w Warning) {
	d.Warnings = append(d.Warnings, w)
}

// Merge appends all warnings of other
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil {
		return
	}
	d.Warnings = append(d.Warnings, other.Warnings...)
}

// ByCode returns the warnings with the given code
func (d *Diagnostics) ByCode(code WarningCode) []Warning {
	var out []Warning
	for _, w := range d.Warnings {
		if w.Code == code {
			out = append(out, w)
		}
	}
	return out
}

// Count sums the counts of all warnings with the given code
func (d *Diagnostics) Count(code WarningCode) int {
	total := 0
	for _, w := range d.Warnings {
		if w.Code == code {
			total += w.Count
		}
	}
	return total
}

// Rows returns the raw-table rows flagged under code
func (d *Diagnostics) Rows(code WarningCode) []int {
	var rows []int
	for _, w := range d.Warnings {
		if w.Code == code {
			rows = append(rows, w.Rows...)
		}
	}
	return rows
}

// Empty reports whether nothing was recorded
func (d *Diagnostics) Empty() bool {
	return len(d.Warnings) == 0
}
