package model

import "time"

// RunStatus represents the current state of a generation run.
type RunStatus string

const (
	RunStatusQueued       RunStatus = "queued"
	RunStatusExtracting   RunStatus = "extracting"
	RunStatusAnalyzing    RunStatus = "analyzing"
	RunStatusStrategizing RunStatus = "strategizing"
	RunStatusWriting      RunStatus = "writing"
	RunStatusAssembling   RunStatus = "assembling"
	RunStatusComplete     RunStatus = "complete"
	RunStatusFailed       RunStatus = "failed"
)

// Run records a single proposal-generation run.
type Run struct {
	ID        string     `json:"id"`
	RFQ       RFQ        `json:"rfq"`
	Entity    Entity     `json:"entity"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Stages          []StageResult `json:"stages"`
	Report          string        `json:"report"`
	ConfidenceScore int           `json:"confidence_score"`
	SubmissionReady bool          `json:"submission_ready"`
	TotalTokens     int           `json:"total_tokens"`
	TotalCost       float64       `json:"total_cost"`
	Error           string        `json:"error,omitempty"`
	FailedStage     string        `json:"failed_stage,omitempty"`
}

// StageStatus represents the state of one pipeline stage.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageRecord is the stored row for a stage within a run.
type StageRecord struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    StageStatus  `json:"status"`
	Result    *StageResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// StageResult holds the outcome of one pipeline stage.
type StageResult struct {
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	Duration   int64          `json:"duration_ms"`
	TokenUsage TokenUsage     `json:"token_usage"`
	Error      string         `json:"error,omitempty"`
	Digest     map[string]int `json:"digest,omitempty"`
}

// TokenUsage tracks token consumption across model calls.
type TokenUsage struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	Cost                float64 `json:"cost"`
}

// Add accumulates usage from another measurement.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.Cost += other.Cost
}

// PreFilledForm describes a form extracted from an RFQ attachment with field
// values already mapped from entity data.
type PreFilledForm struct {
	DocumentID  string           `json:"document_id"`
	Name        string           `json:"name"`
	Fields      []PreFilledField `json:"fields"`
	Confidence  int              `json:"confidence" validate:"min=0,max=100"`
	NeedsReview bool             `json:"needs_review"`
}

// PreFilledField is one mapped field on a pre-filled form.
type PreFilledField struct {
	Label string    `json:"label"`
	Type  FieldType `json:"type"`
	Value string    `json:"value"`
}
