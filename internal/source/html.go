package source

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/polltrend/internal/contracts"
)

// ParseHTML extracts the rows of the first <table> in the document.
// Each <tr> becomes a row of its th/td texts; rows without cells are skipped.
// Returns the number of tables seen so the caller can warn about extras.
func ParseHTML(body []byte) ([][]string, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, contracts.NewFormatError("parse html: %v", err)
	}

	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil, 0, contracts.NewFormatError("no tables found")
	}

	var rows [][]string
	tables.First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// nested tables belong to their own table
		if tr.Closest("table").Get(0) != tables.Get(0) {
			return
		}
		var row []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.TrimSpace(cell.Text()))
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})

	return rows, tables.Length(), nil
}
