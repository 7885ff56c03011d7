package enrich

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/proposal-cli/internal/config"
	"github.com/sells-group/proposal-cli/internal/model"
)

// newTestFetcher wires a Fetcher to an httptest TLS server, allowlisting the
// server's host.
func newTestFetcher(t *testing.T, handler http.Handler, mutate func(*config.EnrichConfig)) (*Fetcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cfg := config.EnrichConfig{
		Enabled:          true,
		AllowedHosts:     []string{u.Hostname()},
		MaxDocumentBytes: 1 << 20,
		MaxConcurrent:    3,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewFetcher(cfg, srv.Client()), srv
}

func TestFetchReturnsText(t *testing.T) {
	f, srv := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("SOLICITATION SF-1449\nSupplies and services."))
	}), nil)

	fetched, err := f.Fetch(context.Background(), model.RFQDocument{
		ID: "doc-1", URL: srv.URL + "/sf1449.txt", Filename: "sf1449.txt", Type: "txt",
	})
	require.NoError(t, err)
	assert.Contains(t, fetched.Text, "SOLICITATION SF-1449")
}

func TestFetchRejectsNonHTTPS(t *testing.T) {
	f := NewFetcher(config.EnrichConfig{AllowedHosts: []string{"sam.gov"}}, nil)

	_, err := f.Fetch(context.Background(), model.RFQDocument{
		ID: "doc-1", URL: "http://sam.gov/form.pdf",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-https")
}

func TestFetchRejectsUnlistedHost(t *testing.T) {
	f := NewFetcher(config.EnrichConfig{AllowedHosts: []string{"sam.gov"}}, nil)

	_, err := f.Fetch(context.Background(), model.RFQDocument{
		ID: "doc-1", URL: "https://evil.example.com/form.pdf",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowlist")
}

func TestFetchEnforcesSizeCeiling(t *testing.T) {
	f, srv := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 100))
	}), func(cfg *config.EnrichConfig) {
		cfg.MaxDocumentBytes = 50
	})

	_, err := f.Fetch(context.Background(), model.RFQDocument{
		ID: "doc-1", URL: srv.URL + "/big.pdf", Filename: "big.pdf",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ceiling")
}

func TestFetchAllToleratesPartialFailure(t *testing.T) {
	f, srv := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("content"))
	}), nil)

	fetched := f.FetchAll(context.Background(), []model.RFQDocument{
		{ID: "doc-1", URL: srv.URL + "/present.txt", Filename: "present.txt"},
		{ID: "doc-2", URL: srv.URL + "/missing.txt", Filename: "missing.txt"},
	})
	require.Len(t, fetched, 1)
	assert.Equal(t, "content", fetched["doc-1"].Text)
	assert.Nil(t, fetched["doc-2"])
}

func TestFetchFlattensXLSX(t *testing.T) {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Wage Rates")
	require.NoError(t, err)
	header := sheet.AddRow()
	header.AddCell().SetString("Classification")
	header.AddCell().SetString("Rate")
	row := sheet.AddRow()
	row.AddCell().SetString("Electrician")
	row.AddCell().SetString("48.20")

	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))

	f, srv := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}), nil)

	fetched, err := f.Fetch(context.Background(), model.RFQDocument{
		ID: "doc-1", URL: srv.URL + "/wages.xlsx", Filename: "wages.xlsx", Type: "xlsx",
	})
	require.NoError(t, err)
	assert.Contains(t, fetched.Text, "Sheet: Wage Rates")
	assert.Contains(t, fetched.Text, "Classification\tRate")
	assert.Contains(t, fetched.Text, "Electrician\t48.20")
}
