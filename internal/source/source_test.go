package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/polltrend/internal/contracts"
	"github.com/wonny/polltrend/internal/table"
	"github.com/wonny/polltrend/pkg/config"
	"github.com/wonny/polltrend/pkg/httputil"
	"github.com/wonny/polltrend/pkg/logger"
)

const pollsHTML = `<html><body>
<h1>Polls</h1>
<table id="polls">
  <thead><tr><th>Date</th><th>Pollster</th><th>Sample</th><th>Bulstrode</th><th>Lydgate</th></tr></thead>
  <tbody>
    <tr><td>10/12/23</td><td> Policy Voice </td><td>1,200</td><td>46%</td><td>54%</td></tr>
    <tr></tr>
    <tr><td>10/11/23</td><td>Fair Polls*</td><td>800</td><td>45%</td><td>55%</td></tr>
  </tbody>
</table>
<table><tr><td>footer</td></tr></table>
</body></html>`

func testClient() *httputil.Client {
	cfg := &config.Config{Source: config.SourceConfig{
		ConnectTimeout: time.Second,
		ReadTimeout:    2 * time.Second,
		MaxRetries:     2,
	}}
	return httputil.New(cfg, logger.NewNop()).WithRetry(2, time.Millisecond)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		location string
		want     Format
		wantErr  bool
	}{
		{"https://example.com/polls.html", FormatHTML, false},
		{"https://example.com/polls.HTM?x=1", FormatHTML, false},
		{"https://example.com/data/polls.csv", FormatCSV, false},
		{"file:///tmp/polls.xml", FormatXML, false},
		{"testdata/polls.csv", FormatCSV, false},
		{"https://example.com/polls", "", true},
		{"https://example.com/polls.json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, err := DetectFormat(tt.location)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, contracts.ErrFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHTML(t *testing.T) {
	rows, tables, err := ParseHTML([]byte(pollsHTML))
	require.NoError(t, err)

	assert.Equal(t, 2, tables)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Date", "Pollster", "Sample", "Bulstrode", "Lydgate"}, rows[0])
	assert.Equal(t, []string{"10/12/23", "Policy Voice", "1,200", "46%", "54%"}, rows[1])
	assert.Equal(t, "Fair Polls*", rows[2][1])
}

func TestParseHTMLNoTable(t *testing.T) {
	_, _, err := ParseHTML([]byte("<html><body><p>nothing here</p></body></html>"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrFormat))
}

func TestParseCSV(t *testing.T) {
	body := "\xEF\xBB\xBFDate,Pollster,Sample,A,B\n10/11/23,\"Polls, Inc\",500,40%,60%\n"
	rows, err := ParseCSV([]byte(body))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "Polls, Inc", rows[1][1])

	_, err = ParseCSV([]byte("a,\"b\n"))
	assert.True(t, errors.Is(err, contracts.ErrFormat))
}

func TestParseXML(t *testing.T) {
	body := `<?xml version="1.0"?>
<polls>
  <poll id="1"><Date>10/11/23</Date><Pollster>Fair Polls</Pollster><Sample>800</Sample><A>40%</A></poll>
  <poll id="2"><Date>10/12/23</Date><Pollster>Policy Voice</Pollster><Sample>900</Sample><B>55%</B></poll>
</polls>`

	rows, err := ParseXML([]byte(body))
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "Date", "Pollster", "Sample", "A", "B"}, rows[0])
	assert.Equal(t, []string{"1", "10/11/23", "Fair Polls", "800", "40%", ""}, rows[1])
	assert.Equal(t, []string{"2", "10/12/23", "Policy Voice", "900", "", "55%"}, rows[2])

	_, err = ParseXML([]byte("<polls></polls>"))
	assert.True(t, errors.Is(err, contracts.ErrFormat))
}

func TestFetchHTTP(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "identity", r.Header.Get("Accept-Encoding"))
		w.Write([]byte(pollsHTML))
	}))
	defer srv.Close()

	ing := New(testClient(), logger.NewNop())
	res, err := ing.Fetch(context.Background(), srv.URL+"/polls.html")
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "5xx should be retried")
	assert.Equal(t, FormatHTML, res.Format)
	assert.Len(t, res.Diagnostics.ByCode(contracts.WarnMultipleTables), 1)

	tbl, err := table.Normalize(res.Input)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}

func TestFetchHTTPClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(testClient(), logger.NewNop()).Fetch(context.Background(), srv.URL+"/polls.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchLocalFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "polls.csv")
	require.NoError(t, os.WriteFile(p, []byte("Date,Pollster,Sample,A\n10/11/23,P,500,100%\n"), 0o644))

	ing := New(nil, logger.NewNop())

	for _, loc := range []string{p, "file://" + p} {
		res, err := ing.Fetch(context.Background(), loc)
		require.NoError(t, err, loc)
		assert.Equal(t, FormatCSV, res.Format)
		assert.Len(t, res.Input.Rows, 2)
		assert.True(t, res.Diagnostics.Empty())
	}

	_, err := ing.Fetch(context.Background(), "https://example.com/polls.csv")
	assert.Error(t, err, "no http client")

	_, err = ing.Fetch(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
