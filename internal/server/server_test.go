package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-cli/internal/config"
	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/internal/pipeline"
	"github.com/sells-group/proposal-cli/internal/store"
	"github.com/sells-group/proposal-cli/pkg/anthropic"
)

// scriptedClient replays canned stage outputs in call order.
type scriptedClient struct {
	replies []string
	calls   int
}

func (c *scriptedClient) CreateMessage(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if c.calls >= len(c.replies) {
		return nil, eris.New("scripted: no reply left")
	}
	text := c.replies[c.calls]
	c.calls++
	if text == "" {
		return nil, eris.New("scripted: failure")
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

func (c *scriptedClient) CreateBatch(context.Context, anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	return nil, eris.New("scripted: batch not supported")
}

func (c *scriptedClient) GetBatch(context.Context, string) (*anthropic.BatchResponse, error) {
	return nil, eris.New("scripted: batch not supported")
}

func (c *scriptedClient) GetBatchResults(context.Context, string) (anthropic.BatchResultIterator, error) {
	return nil, eris.New("scripted: batch not supported")
}

var _ anthropic.Client = (*scriptedClient)(nil)

const (
	analysisReply = `{
  "contract_info": {"type": "services", "scope": "Janitorial services", "requirements": ["Nightly cleaning"], "deliverables": ["Clean facility"], "locations": ["Denver"], "timeline": "1 year", "set_aside": ""},
  "entity_info": {"capability": "Janitorial", "experience": "10 years", "business_type": "small business"},
  "gap_analysis": {"required_naics": "", "entity_primary_naics": "", "is_match": true, "capability_gaps": [], "compliance_gaps": [], "risk_factors": []},
  "opportunity_assessment": {"win_factors": ["Incumbent"], "positioning": "incumbent", "value_proposition": "continuity", "win_probability": 60},
  "compliance_requirements": {"required_forms": [{"name": "SF-1449", "description": "cover form", "criticality": "required"}], "certifications": [], "submission_method": "email"},
  "technical_requirements": [],
  "pricing_and_terms": "FFP"
}`
	insightsReply = `{"requirements": ["Nightly cleaning"], "gaps": [], "risk_factors": [], "opportunities": [], "compliance_items": ["SF-1449"], "insights": {"naics_strategy": "", "competitive_advantage": "", "risk_mitigation": ""}}`
	strategyReply = `{"positioning": "Incumbent continuity", "gap_mitigation": "", "value_proposition": ["Continuity"], "win_probability": 65, "pricing_strategy": "FFP", "content_strategy": {"key_messages": [], "tone": "confident", "structure": ""}}`
	proposalReply = `{
  "company_info": "Acme", "technical_response": "Plan", "narrative": "Narrative", "pricing_details": "FFP", "submission_forms": ["SF-1449"],
  "blocks": [
    {"id": "b1", "type": "heading1", "content": "Proposal: Janitorial Services", "order": 0, "editable": true},
    {"id": "b2", "type": "text", "content": "We will clean nightly. Submit to co@gsa.gov.", "order": 1, "editable": true},
    {"id": "b3", "type": "form", "content": "SF-1449", "order": 2, "editable": true,
     "fields": [{"id": "f1", "label": "Company Name", "type": "text", "value": "Acme Facilities LLC", "required": true}]}
  ]
}`
)

func fullScript() []string {
	return []string{analysisReply, insightsReply, strategyReply, proposalReply}
}

func newTestServer(t *testing.T, client anthropic.Client) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	cfg := &config.Config{}
	cfg.Anthropic.SonnetModel = "claude-sonnet-4-5-20250929"
	cfg.Pipeline.MaxWriteTokens = 2048
	cfg.Pipeline.RequireFormCoverage = true

	gen := pipeline.NewGenerator(cfg, st, client, nil, nil)
	return New(NewRunManager(gen), st), st
}

func postProposal(t *testing.T, srv *Server) string {
	t.Helper()
	body := `{
  "rfq": {"id": "rfq-001", "title": "Janitorial Services", "agency": "GSA", "naics_code": "561720"},
  "entity": {"name": "Acme Facilities LLC", "uei": "ABC123DEF456", "naics_codes": [{"code": "561720", "name": "Janitorial Services"}]}
}`
	req := httptest.NewRequest(http.MethodPost, "/api/proposals", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["run_id"])
	return resp["run_id"]
}

// waitComplete polls the store until the run reaches a terminal status.
func waitComplete(t *testing.T, st store.Store, runID string) *model.Run {
	t.Helper()
	var run *model.Run
	require.Eventually(t, func() bool {
		r, err := st.GetRun(context.Background(), runID)
		if err != nil {
			return false
		}
		run = r
		return r.Status == model.RunStatusComplete || r.Status == model.RunStatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return run
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedClient{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateProposalValidation(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedClient{})

	for name, body := range map[string]string{
		"bad json":       `{`,
		"missing rfq":    `{"entity": {"name": "Acme"}}`,
		"missing entity": `{"rfq": {"id": "rfq-001", "title": "T"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/proposals", strings.NewReader(body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestProposalLifecycle(t *testing.T) {
	srv, st := newTestServer(t, &scriptedClient{replies: fullScript()})

	runID := postProposal(t, srv)
	run := waitComplete(t, st, runID)
	require.Equal(t, model.RunStatusComplete, run.Status)

	// Run status endpoint reports the finished progress snapshot.
	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+runID, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, model.RunStatusComplete, status.Run.Status)
	assert.InDelta(t, 1.0, status.Overall, 0.001)
	require.NotNil(t, status.Progress)

	// Document endpoint returns the assembled tree.
	req = httptest.NewRequest(http.MethodGet, "/api/runs/"+runID+"/document", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc model.GeneratedDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "Proposal: Janitorial Services", doc.Nodes[0].Content)
	assert.True(t, doc.SubmissionReady)
	assert.Equal(t, 65, doc.ConfidenceScore)
}

func TestDocumentPDFEndpoint(t *testing.T) {
	srv, st := newTestServer(t, &scriptedClient{replies: fullScript()})
	runID := postProposal(t, srv)
	waitComplete(t, st, runID)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+runID+"/document.pdf", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "proposal-rfq-001-v1.pdf")
	assert.Equal(t, "%PDF", rec.Body.String()[:4])
}

func TestEmailEndpoint(t *testing.T) {
	srv, st := newTestServer(t, &scriptedClient{replies: fullScript()})
	runID := postProposal(t, srv)
	waitComplete(t, st, runID)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+runID+"/email", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Subject    string   `json:"subject"`
		Body       string   `json:"body"`
		Recipients []string `json:"recipients"`
		Mailto     string   `json:"mailto"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Subject, "Proposal: Janitorial Services")
	assert.Contains(t, resp.Recipients, "co@gsa.gov")
	assert.True(t, strings.HasPrefix(resp.Mailto, "mailto:"))
}

func TestDocumentConflictWhileRunning(t *testing.T) {
	// A store-created run with no manager tracker and no document: the run
	// is still marked in progress, so the document endpoint conflicts.
	srv, st := newTestServer(t, &scriptedClient{})
	run, err := st.CreateRun(context.Background(), model.RFQ{ID: "rfq-002", Title: "T"}, model.Entity{Name: "Acme"})
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(context.Background(), run.ID, model.RunStatusWriting))

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID+"/document", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetRunNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedClient{})
	req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRunsEndpoint(t *testing.T) {
	srv, st := newTestServer(t, &scriptedClient{})
	_, err := st.CreateRun(context.Background(), model.RFQ{ID: "rfq-003", Title: "A"}, model.Entity{Name: "Acme"})
	require.NoError(t, err)
	_, err = st.CreateRun(context.Background(), model.RFQ{ID: "rfq-004", Title: "B"}, model.Entity{Name: "Acme"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/runs?status=queued", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Runs  []model.Run `json:"runs"`
		Count int         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	req = httptest.NewRequest(http.MethodGet, "/api/runs?limit=abc", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
