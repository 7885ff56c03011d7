package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/internal/store"
	"github.com/sells-group/proposal-cli/pkg/anthropic"
)

// scriptedClient returns canned responses in order, one per CreateMessage
// call. A nil text with a non-nil err scripts a call failure.
type scriptedClient struct {
	mu      sync.Mutex
	script  []scriptedReply
	calls   int
	prompts []string
}

type scriptedReply struct {
	text string
	err  error
}

func newScriptedClient(replies ...scriptedReply) *scriptedClient {
	return &scriptedClient{script: replies}
}

func reply(text string) scriptedReply   { return scriptedReply{text: text} }
func replyErr(msg string) scriptedReply { return scriptedReply{err: eris.New(msg)} }

func (c *scriptedClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.calls >= len(c.script) {
		return nil, eris.New("scripted client: no more replies")
	}
	r := c.script[c.calls]
	c.calls++
	if len(req.Messages) > 0 {
		c.prompts = append(c.prompts, req.Messages[len(req.Messages)-1].Content)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: r.text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

func (c *scriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *scriptedClient) CreateBatch(ctx context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	return nil, eris.New("scripted client: batch not supported")
}

func (c *scriptedClient) GetBatch(ctx context.Context, batchID string) (*anthropic.BatchResponse, error) {
	return nil, eris.New("scripted client: batch not supported")
}

func (c *scriptedClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.BatchResultIterator, error) {
	return nil, eris.New("scripted client: batch not supported")
}

var _ anthropic.Client = (*scriptedClient)(nil)

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu           sync.Mutex
	runs         map[string]*model.Run
	statuses     map[string][]model.RunStatus
	stageResults []model.StageResult
	results      map[string]*model.RunResult
	docs         map[string]*model.GeneratedDocument
	versions     map[string]int
	nextID       int
}

func newMemStore() *memStore {
	return &memStore{
		runs:     make(map[string]*model.Run),
		statuses: make(map[string][]model.RunStatus),
		results:  make(map[string]*model.RunResult),
		docs:     make(map[string]*model.GeneratedDocument),
		versions: make(map[string]int),
	}
}

func (s *memStore) CreateRun(ctx context.Context, rfq model.RFQ, entity model.Entity) (*model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	run := &model.Run{
		ID:     fmt.Sprintf("run-%d", s.nextID),
		RFQ:    rfq,
		Entity: entity,
		Status: model.RunStatusQueued,
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *memStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[runID] = append(s.statuses[runID], status)
	if r, ok := s.runs[runID]; ok {
		r.Status = status
	}
	return nil
}

func (s *memStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[runID] = append(s.statuses[runID], status)
	s.results[runID] = result
	if r, ok := s.runs[runID]; ok {
		r.Status = status
		r.Result = result
	}
	return nil
}

func (s *memStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil, eris.New("run not found")
	}
	return r, nil
}

func (s *memStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Run
	for _, r := range s.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (s *memStore) CreateStage(ctx context.Context, runID string, name string) (*model.StageRecord, error) {
	return &model.StageRecord{ID: runID + "/" + name, RunID: runID, Name: name, Status: model.StageStatusRunning}, nil
}

func (s *memStore) CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stageResults = append(s.stageResults, *result)
	return nil
}

func (s *memStore) SaveDocument(ctx context.Context, runID string, doc *model.GeneratedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[runID] = doc
	if doc.Metadata.Version > s.versions[doc.Metadata.RFQID] {
		s.versions[doc.Metadata.RFQID] = doc.Metadata.Version
	}
	return nil
}

func (s *memStore) GetDocument(ctx context.Context, runID string) (*model.GeneratedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[runID]
	if !ok {
		return nil, eris.New("document not found")
	}
	return doc, nil
}

func (s *memStore) LatestVersion(ctx context.Context, rfqID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[rfqID], nil
}

func (s *memStore) Migrate(ctx context.Context) error { return nil }
func (s *memStore) Close() error                      { return nil }

var _ store.Store = (*memStore)(nil)

// fixedEnricher returns canned enrichment output, or an error.
type fixedEnricher struct {
	forms []model.PreFilledForm
	docs  []model.DocumentDigest
	err   error
	calls int
}

func (e *fixedEnricher) AnalyzeAndMap(ctx context.Context, docs []model.RFQDocument, entity model.Entity) ([]model.PreFilledForm, []model.DocumentDigest, error) {
	e.calls++
	if e.err != nil {
		return nil, nil, e.err
	}
	return e.forms, e.docs, nil
}
