package source

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/wonny/polltrend/internal/contracts"
)

// ParseXML flattens a record-oriented document: every child of the root
// element is a row, its attributes and child elements are columns. The header
// is the union of column names in first-seen order; absent cells are empty.
//
//	<polls>
//	  <poll id="1"><Date>10/11/23</Date><Pollster>Fair Polls</Pollster></poll>
//	</polls>
func ParseXML(body []byte) ([][]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		header  []string
		index   = map[string]int{}
		records []map[string]string
		current map[string]string
		field   string
		text    strings.Builder
		depth   int
	)

	column := func(name string) {
		if _, ok := index[name]; !ok {
			index[name] = len(header)
			header = append(header, name)
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, contracts.NewFormatError("parse xml: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 2: // record
				current = map[string]string{}
				for _, attr := range t.Attr {
					column(attr.Name.Local)
					current[attr.Name.Local] = strings.TrimSpace(attr.Value)
				}
			case 3: // field
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth >= 3 {
				text.Write(t)
			}
		case xml.EndElement:
			switch depth {
			case 3:
				column(field)
				current[field] = strings.TrimSpace(text.String())
			case 2:
				records = append(records, current)
				current = nil
			}
			depth--
		}
	}

	if len(records) == 0 {
		return nil, contracts.NewFormatError("no records found in xml document")
	}

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, header)
	for _, rec := range records {
		row := make([]string, len(header))
		for name, v := range rec {
			row[index[name]] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
