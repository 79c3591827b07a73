package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/pkg/config"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header
func PrintHeader(title string, fields [][2]string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for _, f := range fields {
		fmt.Printf("  %-10s: %s\n", f[0], f[1])
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// FormatShare renders a share as a percentage, "n/a" for null
func FormatShare(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v*100, 'f', 1, 64) + "%"
}

// FormatDate renders a calendar date
func FormatDate(t time.Time) string {
	return t.Format(config.DateLayout)
}

// PrintDiagnostics lists warnings, or a success line when there are none
func PrintDiagnostics(diag *contracts.Diagnostics) {
	if diag == nil || diag.Empty() {
		PrintSuccess("No data-quality warnings")
		return
	}

	items := make([]string, 0, len(diag.Warnings))
	for _, w := range diag.Warnings {
		item := fmt.Sprintf("[%s] %s", w.Code, w.Message)
		if w.Candidate != "" {
			item += " (" + w.Candidate + ")"
		}
		if len(w.Rows) > 0 {
			item += " rows " + formatRows(w.Rows, 8)
		}
		items = append(items, item)
	}
	PrintWarning(fmt.Sprintf("%d data-quality warning(s):", len(items)))
	PrintList(items)
}

func formatRows(rows []int, max int) string {
	sorted := append([]int(nil), rows...)
	sort.Ints(sorted)

	parts := make([]string, 0, max+1)
	for i, r := range sorted {
		if i == max {
			parts = append(parts, fmt.Sprintf("… +%d", len(sorted)-max))
			break
		}
		parts = append(parts, strconv.Itoa(r))
	}
	return strings.Join(parts, ",")
}

// PrintTrendSummary prints the latest estimate and outlier counts per candidate
func PrintTrendSummary(r *contracts.TrendResult) {
	t := r.Trends
	if t.Len() == 0 {
		PrintWarning("Trend table is empty")
		return
	}

	avg := make(map[string]int)
	for _, o := range r.AverageOutliers {
		avg[o.Candidate]++
	}

	fmt.Printf("\nLatest estimates (%s):\n\n", FormatDate(t.Dates[0]))
	widths := []int{20, 10, 12, 12}
	PrintTableHeader([]string{"Candidate", "Latest", "Avg flags", "Poll flags"}, widths)
	for _, c := range t.Candidates {
		PrintTableRow([]string{
			c,
			FormatShare(t.Latest(c)),
			strconv.Itoa(avg[c]),
			strconv.Itoa(len(r.ObservationOutliers[c])),
		}, widths)
	}
	fmt.Println()
}
