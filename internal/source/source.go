// Package source fetches a raw poll table from a URL or local file and hands
// it to the normalizer as header+rows.
package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/internal/table"
	"github.com/wonny/polltrend/pkg/httputil"
	"github.com/wonny/polltrend/pkg/logger"
)

// Format is the raw table encoding, picked from the location suffix
type Format string

const (
	FormatHTML Format = "html"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
)

// Result is one fetched raw table
type Result struct {
	Location    string
	Format      Format
	Input       table.Input
	Diagnostics *contracts.Diagnostics
	FetchedAt   time.Time
	Bytes       int
}

// Ingester reads raw poll tables
// ⭐ SSOT: 외부 여론조사 소스 호출은 이 Ingester에서만
type Ingester struct {
	httpClient *httputil.Client
	logger     *logger.Logger
}

// New creates an ingester. httpClient may be nil when only local files are read.
func New(httpClient *httputil.Client, log *logger.Logger) *Ingester {
	return &Ingester{
		httpClient: httpClient,
		logger:     log.WithField("component", "source"),
	}
}

// DetectFormat maps a location suffix to a Format.
// Unknown suffixes are a FormatError.
func DetectFormat(location string) (Format, error) {
	p := location
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		p = u.Path
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm":
		return FormatHTML, nil
	case ".csv":
		return FormatCSV, nil
	case ".xml":
		return FormatXML, nil
	default:
		return "", contracts.NewFormatError("undefined table format for %q (expected .html, .csv or .xml)", location)
	}
}

// Fetch reads location and parses its first table.
// http(s) URLs go through the retrying HTTP client, anything else is read from disk.
func (i *Ingester) Fetch(ctx context.Context, location string) (*Result, error) {
	format, err := DetectFormat(location)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := i.read(ctx, location)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Location:    location,
		Format:      format,
		Diagnostics: contracts.NewDiagnostics(),
		FetchedAt:   time.Now().UTC(),
		Bytes:       len(body),
	}

	var rows [][]string
	switch format {
	case FormatHTML:
		var tables int
		rows, tables, err = ParseHTML(body)
		if err == nil && tables > 1 {
			i.logger.Warnf("Unexpected page layout - %d tables found. Only processing the first table.", tables)
			res.Diagnostics.Add(contracts.Warning{
				Code:    contracts.WarnMultipleTables,
				Message: fmt.Sprintf("%d tables found, only the first was used", tables),
				Count:   tables,
			})
		}
	case FormatCSV:
		rows, err = ParseCSV(body)
	case FormatXML:
		rows, err = ParseXML(body)
	}
	if err != nil {
		return nil, err
	}
	res.Input = table.FromRows(rows)

	i.logger.WithFields(map[string]interface{}{
		"location": location,
		"format":   string(format),
		"rows":     len(rows),
		"bytes":    len(body),
		"duration": time.Since(start).String(),
	}).Debug("Fetched raw table")

	return res, nil
}

func (i *Ingester) read(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if i.httpClient == nil {
			return nil, fmt.Errorf("no HTTP client configured for %s", location)
		}
		body, err := i.httpClient.GetBody(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", location, err)
		}
		return body, nil
	}

	p := location
	if err == nil && u.Scheme == "file" {
		p = u.Path
	}
	body, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return body, nil
}
