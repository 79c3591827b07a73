package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"

	"github.com/wonny/polltrend/internal/contracts"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads every record. Width checks are left to the normalizer so a
// ragged file produces the same FormatError as any other source.
func ParseCSV(body []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, contracts.NewFormatError("parse csv: %v", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
