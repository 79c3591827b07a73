package trends

import (
	"sort"

	"github.com/wonny/polltrend/internal/contracts"
)

// orderColumns sorts candidates by their latest non-null trend value,
// descending. Candidates arrive alphabetically and the sort is stable, so ties
// stay alphabetical. Candidates with no value at all go last.
func orderColumns(table *contracts.TrendTable) {
	latest := make(map[string]*float64, len(table.Candidates))
	for _, c := range table.Candidates {
		latest[c] = table.Latest(c)
	}

	sort.SliceStable(table.Candidates, func(i, j int) bool {
		a, b := latest[table.Candidates[i]], latest[table.Candidates[j]]
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
}
