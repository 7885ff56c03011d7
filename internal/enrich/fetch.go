package enrich

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/proposal-cli/internal/config"
	"github.com/sells-group/proposal-cli/internal/model"
)

// FetchedDocument is one RFQ attachment with its content reduced to text.
type FetchedDocument struct {
	Doc  model.RFQDocument
	Text string
}

// Fetcher downloads RFQ attachments. Only HTTPS URLs on allowlisted hosts
// are fetched, each response is capped at the configured byte ceiling, and
// requests are rate limited per host.
type Fetcher struct {
	client *http.Client
	cfg    config.EnrichConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a Fetcher. client may be nil; a default client with the
// configured timeout is used then.
func NewFetcher(cfg config.EnrichConfig, client *http.Client) *Fetcher {
	if client == nil {
		timeout := cfg.FetchTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		client:   client,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(5, 5)
		f.limiters[host] = lim
	}
	return lim
}

// hostAllowed reports whether the hostname is on the allowlist.
func (f *Fetcher) hostAllowed(host string) bool {
	for _, allowed := range f.cfg.AllowedHosts {
		if strings.EqualFold(host, allowed) {
			return true
		}
	}
	return false
}

// FetchAll downloads the given attachments concurrently, bounded by the
// configured concurrency. The result is keyed by document ID; a document
// that failed to fetch is logged and absent from the map.
func (f *Fetcher) FetchAll(ctx context.Context, docs []model.RFQDocument) map[string]*FetchedDocument {
	results := make([]*FetchedDocument, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	limit := f.cfg.MaxConcurrent
	if limit < 1 {
		limit = 3
	}
	g.SetLimit(limit)

	for i, doc := range docs {
		g.Go(func() error {
			fetched, err := f.Fetch(ctx, doc)
			if err != nil {
				zap.L().Warn("enrich: attachment fetch failed",
					zap.String("document_id", doc.ID),
					zap.String("url", doc.URL),
					zap.Error(err),
				)
				return nil
			}
			results[i] = fetched
			return nil
		})
	}
	_ = g.Wait()

	fetched := make(map[string]*FetchedDocument, len(docs))
	for _, r := range results {
		if r != nil {
			fetched[r.Doc.ID] = r
		}
	}
	return fetched
}

// Fetch downloads one attachment and reduces it to text.
func (f *Fetcher) Fetch(ctx context.Context, doc model.RFQDocument) (*FetchedDocument, error) {
	u, err := url.Parse(doc.URL)
	if err != nil {
		return nil, eris.Wrap(err, "parse url")
	}
	if u.Scheme != "https" {
		return nil, eris.Errorf("refusing non-https url %q", doc.URL)
	}
	if !f.hostAllowed(u.Hostname()) {
		return nil, eris.Errorf("host %q not on allowlist", u.Hostname())
	}

	if err := f.limiterFor(u.Hostname()).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", "proposal-cli/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("unexpected status %d from %s", resp.StatusCode, doc.URL)
	}

	ceiling := f.cfg.MaxDocumentBytes
	if ceiling <= 0 {
		ceiling = 10 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, ceiling+1))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}
	if int64(len(body)) > ceiling {
		return nil, eris.Errorf("document %s exceeds %d byte ceiling", doc.ID, ceiling)
	}

	text, err := extractText(doc, body)
	if err != nil {
		return nil, err
	}
	return &FetchedDocument{Doc: doc, Text: text}, nil
}

// extractText reduces a raw attachment to plain text. Spreadsheets are
// flattened sheet by sheet into tab-separated rows; everything else passes
// through as-is.
func extractText(doc model.RFQDocument, body []byte) (string, error) {
	if strings.EqualFold(doc.Type, "xlsx") || strings.HasSuffix(strings.ToLower(doc.Filename), ".xlsx") {
		return xlsxToText(body)
	}
	return string(body), nil
}

func xlsxToText(body []byte) (string, error) {
	f, err := xlsx.OpenBinary(body)
	if err != nil {
		return "", eris.Wrap(err, "xlsx: open")
	}

	var b strings.Builder
	for _, sheet := range f.Sheets {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Sheet: " + sheet.Name + "\n")
		for _, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = cell.String()
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
