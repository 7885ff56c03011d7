package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/proposal-cli/internal/config"
	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/internal/store"
	"github.com/sells-group/proposal-cli/pkg/anthropic"
)

// Enricher is the attachment-enrichment collaborator: it fetches the RFQ's
// attachments and maps form fields to entity data. The pipeline only
// depends on this contract, never on how documents are fetched or parsed.
type Enricher interface {
	AnalyzeAndMap(ctx context.Context, docs []model.RFQDocument, entity model.Entity) ([]model.PreFilledForm, []model.DocumentDigest, error)
}

// SessionLogger receives per-stage execution records for offline diagnosis.
type SessionLogger interface {
	RecordStage(runID string, result model.StageResult, output any) error
}

// PipelineError is a pipeline-level failure: the stage that halted the run
// plus the underlying cause. Stages before it completed normally and their
// outputs remain stored.
type PipelineError struct {
	Stage model.StageName
	Err   error
}

func (e *PipelineError) Error() string {
	return "pipeline: stage " + string(e.Stage) + " failed: " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Generator orchestrates the proposal-generation pipeline: four model-call
// stages run strictly sequentially, then assembly folds the flat block list
// into the document tree and packages the envelope.
type Generator struct {
	cfg      *config.Config
	store    store.Store
	client   anthropic.Client
	enricher Enricher
	session  SessionLogger
}

// NewGenerator creates a Generator. enricher and session may be nil; the
// pipeline then runs without attachment enrichment or session logs.
func NewGenerator(cfg *config.Config, st store.Store, client anthropic.Client, enricher Enricher, session SessionLogger) *Generator {
	return &Generator{
		cfg:      cfg,
		store:    st,
		client:   client,
		enricher: enricher,
		session:  session,
	}
}

// NewRun records a queued run for the given inputs.
func (g *Generator) NewRun(ctx context.Context, rfq model.RFQ, entity model.Entity) (*model.Run, error) {
	return g.store.CreateRun(ctx, rfq, entity)
}

// Run creates a run and executes it with a private progress tracker.
func (g *Generator) Run(ctx context.Context, rfq model.RFQ, entity model.Entity) (*model.GeneratedDocument, error) {
	run, err := g.NewRun(ctx, rfq, entity)
	if err != nil {
		return nil, err
	}
	return g.Execute(ctx, run, NewProgressTracker())
}

// Execute runs the pipeline for a previously created run. Stages execute in
// fixed order; the first failure halts the run and is reported with its
// stage name. Outputs of completed stages are stored either way.
func (g *Generator) Execute(ctx context.Context, run *model.Run, tracker *ProgressTracker) (*model.GeneratedDocument, error) {
	log := zap.L().With(
		zap.String("run_id", run.ID),
		zap.String("rfq_id", run.RFQ.ID),
		zap.String("company", run.Entity.Name),
	)
	log.Info("pipeline: starting generation")

	if tracker == nil {
		tracker = NewProgressTracker()
	}

	setStatus := func(status model.RunStatus) {
		if err := g.store.UpdateRunStatus(ctx, run.ID, status); err != nil {
			log.Warn("pipeline: failed to update status", zap.Error(err))
		}
	}

	var stages []model.StageResult
	var totalUsage model.TokenUsage
	var trace model.StageOutputs

	// Stage tracking helper: timing, progress updates, store and session
	// records all live here so stage bodies stay about the work itself.
	runStage := func(name model.StageName, startMsg string, fn func() (string, map[string]int, model.TokenUsage, any, error)) error {
		tracker.StageStarted(name, startMsg)
		rec, recErr := g.store.CreateStage(ctx, run.ID, string(name))
		if recErr != nil {
			log.Warn("pipeline: failed to create stage record", zap.String("stage", string(name)), zap.Error(recErr))
		}

		start := time.Now()
		summary, digest, usage, output, err := fn()
		duration := time.Since(start).Milliseconds()
		totalUsage.Add(usage)

		result := model.StageResult{
			Name:       string(name),
			Duration:   duration,
			TokenUsage: usage,
			Digest:     digest,
		}
		if err != nil {
			result.Status = model.StageStatusFailed
			result.Error = err.Error()
			tracker.StageFailed(name, err.Error())
			log.Error("pipeline: stage failed",
				zap.String("stage", string(name)),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
		} else {
			result.Status = model.StageStatusComplete
			tracker.StageDone(name, summary, digest)
			log.Info("pipeline: stage complete",
				zap.String("stage", string(name)),
				zap.Int64("duration_ms", duration),
				zap.String("summary", summary),
			)
		}

		if rec != nil {
			if completeErr := g.store.CompleteStage(ctx, rec.ID, &result); completeErr != nil {
				log.Warn("pipeline: failed to store stage result", zap.Error(completeErr))
			}
		}
		if g.session != nil {
			if sessErr := g.session.RecordStage(run.ID, result, output); sessErr != nil {
				log.Warn("pipeline: failed to write session log", zap.Error(sessErr))
			}
		}
		stages = append(stages, result)
		return err
	}

	fail := func(stage model.StageName, err error) (*model.GeneratedDocument, error) {
		result := &model.RunResult{
			Stages:      stages,
			TotalTokens: totalUsage.InputTokens + totalUsage.OutputTokens,
			TotalCost:   totalUsage.Cost,
			Error:       err.Error(),
			FailedStage: string(stage),
		}
		if updateErr := g.store.UpdateRunResult(ctx, run.ID, model.RunStatusFailed, result); updateErr != nil {
			log.Warn("pipeline: failed to store run result", zap.Error(updateErr))
		}
		return nil, &PipelineError{Stage: stage, Err: err}
	}

	// Attachment enrichment is a collaborator, not a stage: a failure here
	// degrades the prompts but never halts the run.
	var preFilled []model.PreFilledForm
	var sourceDocs []model.DocumentDigest
	setStatus(model.RunStatusExtracting)
	if g.enricher != nil && g.cfg.Enrich.Enabled && len(run.RFQ.Documents) > 0 {
		forms, docs, err := g.enricher.AnalyzeAndMap(ctx, run.RFQ.Documents, run.Entity)
		if err != nil {
			log.Warn("pipeline: attachment enrichment failed, continuing without it", zap.Error(err))
		} else {
			preFilled = forms
			sourceDocs = docs
			log.Info("pipeline: attachments enriched",
				zap.Int("forms", len(forms)),
				zap.Int("documents", len(docs)),
			)
		}
	}

	// Stage 1: data extraction.
	var analysis *model.DataAnalysis
	err := runStage(model.StageDataExtraction, "extracting contract and company data", func() (string, map[string]int, model.TokenUsage, any, error) {
		a, usage, stageErr := ExtractStage(ctx, run.RFQ, run.Entity, sourceDocs, g.client, g.cfg.Anthropic)
		if stageErr != nil {
			return "", nil, usage, nil, stageErr
		}
		analysis = a
		return summarizeAnalysis(a), digestAnalysis(a), usage, a, nil
	})
	if err != nil {
		return fail(model.StageDataExtraction, err)
	}
	trace.DataAnalysis = analysis

	// Stage 2: insight analysis.
	setStatus(model.RunStatusAnalyzing)
	var insights *model.Insights
	err = runStage(model.StageInsightAnalysis, "deriving insights", func() (string, map[string]int, model.TokenUsage, any, error) {
		in, usage, stageErr := InsightStage(ctx, analysis, g.client, g.cfg.Anthropic)
		if stageErr != nil {
			return "", nil, usage, nil, stageErr
		}
		insights = in
		return summarizeInsights(in), digestInsights(in), usage, in, nil
	})
	if err != nil {
		return fail(model.StageInsightAnalysis, err)
	}
	trace.Insights = insights

	// Stage 3: strategy synthesis.
	setStatus(model.RunStatusStrategizing)
	var strategy *model.Strategy
	err = runStage(model.StageStrategySynthesis, "synthesizing bid strategy", func() (string, map[string]int, model.TokenUsage, any, error) {
		s, usage, stageErr := StrategyStage(ctx, insights, g.client, g.cfg.Anthropic)
		if stageErr != nil {
			return "", nil, usage, nil, stageErr
		}
		strategy = s
		return summarizeStrategy(s), digestStrategy(s), usage, s, nil
	})
	if err != nil {
		return fail(model.StageStrategySynthesis, err)
	}
	trace.Strategy = strategy

	// Stage 4: document writing.
	setStatus(model.RunStatusWriting)
	var proposal *model.Proposal
	err = runStage(model.StageDocumentWriting, "writing proposal document", func() (string, map[string]int, model.TokenUsage, any, error) {
		p, usage, stageErr := WriteStage(ctx, analysis, insights, strategy, run.Entity, preFilled, g.client, g.cfg.Anthropic, g.cfg.Pipeline.MaxWriteTokens)
		if stageErr != nil {
			return "", nil, usage, nil, stageErr
		}
		proposal = p
		return summarizeProposal(p), digestProposal(p), usage, p, nil
	})
	if err != nil {
		return fail(model.StageDocumentWriting, err)
	}
	trace.Proposal = proposal

	// Stage 5: assembly. Not a model call; invariant violations here are
	// reported as their own failure stage.
	setStatus(model.RunStatusAssembling)
	var doc *model.GeneratedDocument
	err = runStage(model.StageAssembly, "assembling document tree", func() (string, map[string]int, model.TokenUsage, any, error) {
		root, buildErr := BuildTree(proposal.Blocks)
		if buildErr != nil {
			return "", nil, model.TokenUsage{}, nil, buildErr
		}

		version := 1
		if latest, verErr := g.store.LatestVersion(ctx, run.RFQ.ID); verErr != nil {
			log.Warn("pipeline: failed to read latest version", zap.Error(verErr))
		} else {
			version = latest + 1
		}

		now := time.Now().UTC()
		doc = &model.GeneratedDocument{
			Metadata: model.DocumentMetadata{
				RFQID:       run.RFQ.ID,
				CompanyName: run.Entity.Name,
				GeneratedAt: now,
				ModifiedAt:  now,
				Version:     version,
			},
			Nodes:           []model.DocumentNode{root},
			Trace:           trace,
			SubmissionReady: coversRequiredForms(root, analysis.Compliance, g.cfg.Pipeline.RequireFormCoverage),
			ConfidenceScore: strategy.WinProbability,
		}
		return summarizeDocument(doc), digestDocument(doc), model.TokenUsage{}, doc, nil
	})
	if err != nil {
		return fail(model.StageAssembly, err)
	}

	if err := g.store.SaveDocument(ctx, run.ID, doc); err != nil {
		log.Warn("pipeline: failed to store document", zap.Error(err))
	}

	result := &model.RunResult{
		Stages:          stages,
		Report:          BuildReport(run, doc, stages, totalUsage),
		ConfidenceScore: doc.ConfidenceScore,
		SubmissionReady: doc.SubmissionReady,
		TotalTokens:     totalUsage.InputTokens + totalUsage.OutputTokens,
		TotalCost:       totalUsage.Cost,
	}
	if err := g.store.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, result); err != nil {
		log.Warn("pipeline: failed to store run result", zap.Error(err))
	}

	log.Info("pipeline: generation complete",
		zap.Int("version", doc.Metadata.Version),
		zap.Int("confidence", doc.ConfidenceScore),
		zap.Bool("submission_ready", doc.SubmissionReady),
		zap.Int("total_tokens", result.TotalTokens),
		zap.Float64("total_cost", result.TotalCost),
	)
	return doc, nil
}

// coversRequiredForms reports whether every form marked required by the
// compliance analysis appears as a form node under the document root.
// A missing required form degrades readiness; it does not fail the run.
func coversRequiredForms(root model.DocumentNode, compliance model.Compliance, enforce bool) bool {
	if !enforce {
		return true
	}

	present := make(map[string]bool)
	for _, child := range root.Children {
		if child.Type == model.BlockForm {
			present[normalizeFormName(child.Content)] = true
		}
	}

	for _, form := range compliance.RequiredForms {
		if form.Criticality != model.FormRequired {
			continue
		}
		if !present[normalizeFormName(form.Name)] {
			return false
		}
	}
	return true
}
