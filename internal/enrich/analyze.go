package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-cli/internal/config"
	"github.com/sells-group/proposal-cli/internal/llm"
	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/pkg/anthropic"
)

const analyzeSystemText = `You are a government contracting assistant. You analyze RFQ attachments
(solicitation documents, pricing sheets, fillable forms) and extract any forms
the bidder must complete, mapping each form field to the bidder's company data
when the answer is present in it.

Respond with JSON only. No markdown, no commentary.`

const analyzePrompt = `Analyze this RFQ attachment and extract fillable forms.

## Attachment: %s (type: %s)

%s

## Bidding company

%s

Respond with a JSON object of this exact shape:
{
  "summary": "one-paragraph description of what this document is",
  "forms": [
    {
      "name": "form name as printed on the document",
      "confidence": 85,
      "fields": [
        {"label": "field label", "type": "text|email|phone|date|textarea|select", "value": "value from company data, or empty string"}
      ]
    }
  ]
}

Rules:
- "forms" is empty if the document contains no fillable form.
- Fill "value" ONLY from the company data above. Never invent a value; leave
  it empty when the company data does not answer the field.
- "confidence" (0-100) is your confidence in the field mapping overall.`

// documentAnalysis is the model's verdict on one attachment.
type documentAnalysis struct {
	Summary string         `json:"summary" validate:"required"`
	Forms   []analyzedForm `json:"forms" validate:"dive"`
}

type analyzedForm struct {
	Name       string          `json:"name" validate:"required"`
	Confidence int             `json:"confidence" validate:"min=0,max=100"`
	Fields     []analyzedField `json:"fields" validate:"dive"`
}

type analyzedField struct {
	Label string `json:"label" validate:"required"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// maxPromptBytes bounds how much attachment text goes into one prompt.
const maxPromptBytes = 32 << 10

// defaultSmallBatchThreshold is the document count at or below which
// attachment analysis skips the Batch API and calls directly.
const defaultSmallBatchThreshold = 3

// Enricher runs the attachment sub-pipeline: fetch each attachment, have the
// model identify fillable forms in it, and map the fields to entity data.
type Enricher struct {
	fetcher *Fetcher
	client  anthropic.Client
	cfg     *config.Config
}

// New creates an Enricher. fetcher may be nil; a default one is built from
// the enrichment config then.
func New(cfg *config.Config, client anthropic.Client, fetcher *Fetcher) *Enricher {
	if fetcher == nil {
		fetcher = NewFetcher(cfg.Enrich, nil)
	}
	return &Enricher{fetcher: fetcher, client: client, cfg: cfg}
}

// AnalyzeAndMap fetches the attachments and extracts pre-filled forms and
// document digests. Per-document failures are logged and omitted; the method
// errors only when it could produce nothing at all.
func (e *Enricher) AnalyzeAndMap(ctx context.Context, docs []model.RFQDocument, entity model.Entity) ([]model.PreFilledForm, []model.DocumentDigest, error) {
	fetched := e.fetcher.FetchAll(ctx, docs)
	if len(fetched) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		zap.L().Warn("enrich: no attachments could be fetched", zap.Int("requested", len(docs)))
		return nil, nil, nil
	}

	// Iterate the input order so output order is deterministic.
	var ordered []*FetchedDocument
	for _, doc := range docs {
		if fd, ok := fetched[doc.ID]; ok {
			ordered = append(ordered, fd)
		}
	}

	analyses, err := e.analyzeAll(ctx, ordered, entity)
	if err != nil {
		return nil, nil, err
	}

	var forms []model.PreFilledForm
	var digests []model.DocumentDigest
	for _, fd := range ordered {
		analysis, ok := analyses[fd.Doc.ID]
		if !ok {
			continue
		}

		digests = append(digests, model.DocumentDigest{
			Name:    fd.Doc.Filename,
			Summary: analysis.Summary,
		})
		for _, form := range analysis.Forms {
			forms = append(forms, e.toPreFilled(fd.Doc.ID, form))
		}
	}

	zap.L().Info("enrich: attachments analyzed",
		zap.Int("documents", len(digests)),
		zap.Int("forms", len(forms)),
	)
	return forms, digests, nil
}

// analyzeAll runs the per-document analysis, directly for small counts and
// through the Batch API above the small-batch threshold. Results are keyed
// by document ID; a document whose analysis failed is logged and absent.
func (e *Enricher) analyzeAll(ctx context.Context, fetched []*FetchedDocument, entity model.Entity) (map[string]*documentAnalysis, error) {
	items := make([]anthropic.BatchRequestItem, 0, len(fetched))
	for _, fd := range fetched {
		items = append(items, anthropic.BatchRequestItem{
			CustomID: fd.Doc.ID,
			Params:   e.buildRequest(fd, entity),
		})
	}

	threshold := e.cfg.Anthropic.SmallBatchThreshold
	if threshold <= 0 {
		threshold = defaultSmallBatchThreshold
	}
	if e.cfg.Anthropic.NoBatch || len(items) <= threshold {
		return e.analyzeDirect(ctx, items)
	}
	return e.analyzeBatch(ctx, items)
}

func (e *Enricher) analyzeDirect(ctx context.Context, items []anthropic.BatchRequestItem) (map[string]*documentAnalysis, error) {
	analyses := make(map[string]*documentAnalysis, len(items))
	for _, item := range items {
		resp, err := e.client.CreateMessage(ctx, item.Params)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			zap.L().Warn("enrich: document analysis failed",
				zap.String("document_id", item.CustomID),
				zap.Error(err),
			)
			continue
		}

		analysis, err := llm.Decode[documentAnalysis]("enrichment", resp.Text())
		if err != nil {
			zap.L().Warn("enrich: document analysis unparseable",
				zap.String("document_id", item.CustomID),
				zap.Error(err),
			)
			continue
		}
		analyses[item.CustomID] = &analysis
	}
	return analyses, nil
}

func (e *Enricher) analyzeBatch(ctx context.Context, items []anthropic.BatchRequestItem) (map[string]*documentAnalysis, error) {
	batch, err := e.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create batch")
	}

	// Small batches finish fast; tighten the poll cap for them.
	var pollOpts []anthropic.PollOption
	if len(items) < 20 {
		pollOpts = append(pollOpts, anthropic.WithPollCap(10*time.Second))
	}
	batch, err = anthropic.PollBatch(ctx, e.client, batch.ID, pollOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: poll batch")
	}

	iter, err := e.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: get batch results")
	}
	results, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: collect batch results")
	}

	analyses := make(map[string]*documentAnalysis, len(results))
	for _, item := range items {
		resp, ok := results[item.CustomID]
		if !ok || resp == nil {
			zap.L().Warn("enrich: batch item missing from results",
				zap.String("document_id", item.CustomID),
			)
			continue
		}

		analysis, err := llm.Decode[documentAnalysis]("enrichment", resp.Text())
		if err != nil {
			zap.L().Warn("enrich: document analysis unparseable",
				zap.String("document_id", item.CustomID),
				zap.Error(err),
			)
			continue
		}
		analyses[item.CustomID] = &analysis
	}
	return analyses, nil
}

// buildRequest renders the analysis prompt for one attachment. The system
// prompt is identical across documents, so it carries a cache breakpoint.
func (e *Enricher) buildRequest(fd *FetchedDocument, entity model.Entity) anthropic.MessageRequest {
	text := fd.Text
	if len(text) > maxPromptBytes {
		text = text[:maxPromptBytes]
	}

	prompt := fmt.Sprintf(analyzePrompt, fd.Doc.Filename, fd.Doc.Type, text, formatEntityFacts(entity))
	return anthropic.MessageRequest{
		Model:     e.cfg.Anthropic.HaikuModel,
		MaxTokens: 2048,
		System:    anthropic.BuildCachedSystemBlocks(analyzeSystemText),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	}
}

// toPreFilled converts one analyzed form, flagging it for human review when
// the mapping confidence is below the configured threshold.
func (e *Enricher) toPreFilled(docID string, form analyzedForm) model.PreFilledForm {
	fields := make([]model.PreFilledField, 0, len(form.Fields))
	for _, f := range form.Fields {
		fields = append(fields, model.PreFilledField{
			Label: f.Label,
			Type:  fieldType(f.Type),
			Value: f.Value,
		})
	}
	return model.PreFilledForm{
		DocumentID:  docID,
		Name:        form.Name,
		Fields:      fields,
		Confidence:  form.Confidence,
		NeedsReview: form.Confidence < e.cfg.Enrich.ReviewThreshold,
	}
}

func fieldType(s string) model.FieldType {
	switch model.FieldType(strings.ToLower(strings.TrimSpace(s))) {
	case model.FieldEmail:
		return model.FieldEmail
	case model.FieldPhone:
		return model.FieldPhone
	case model.FieldDate:
		return model.FieldDate
	case model.FieldMultiline:
		return model.FieldMultiline
	case model.FieldSelect:
		return model.FieldSelect
	default:
		return model.FieldText
	}
}

// formatEntityFacts renders the entity record for the mapping prompt in a
// fixed field order.
func formatEntityFacts(entity model.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company Name: %s\n", entity.Name)
	fmt.Fprintf(&b, "Address: %s\n", entity.Address)
	fmt.Fprintf(&b, "UEI: %s\n", entity.UEI)
	if !entity.Founded.IsZero() {
		fmt.Fprintf(&b, "Founded: %s\n", entity.Founded.Format("2006-01-02"))
	}
	if entity.ContactEmail != "" {
		fmt.Fprintf(&b, "Contact Email: %s\n", entity.ContactEmail)
	}
	if entity.ContactPhone != "" {
		fmt.Fprintf(&b, "Contact Phone: %s\n", entity.ContactPhone)
	}
	for _, c := range entity.NAICSCodes {
		fmt.Fprintf(&b, "NAICS: %s (%s)\n", c.Code, c.Name)
	}
	return b.String()
}
