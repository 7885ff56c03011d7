package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/proposal-cli/internal/config"
	"github.com/sells-group/proposal-cli/internal/llm"
	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/pkg/anthropic"
)

const extractSystemText = "You are a government contracting analyst. You read solicitation and company records and return structured JSON analysis. Return valid JSON matching the requested schema; use empty strings or empty arrays for data not present in the input."

const extractPrompt = `Analyze this government contract opportunity against the bidding company.

Contract record:
%s

Company record:
%s
%s
Return a JSON object with this shape:
{
  "contract_info": {"type": "...", "scope": "...", "requirements": ["..."], "deliverables": ["..."], "locations": ["..."], "timeline": "...", "set_aside": "..."},
  "entity_info": {"capability": "...", "experience": "...", "business_type": "..."},
  "gap_analysis": {"required_naics": "...", "entity_primary_naics": "...", "is_match": true, "capability_gaps": ["..."], "compliance_gaps": ["..."], "risk_factors": ["..."]},
  "opportunity_assessment": {"win_factors": ["..."], "positioning": "...", "value_proposition": "...", "win_probability": 0},
  "compliance_requirements": {"required_forms": [{"name": "...", "description": "...", "criticality": "required"}], "certifications": ["..."], "submission_method": "..."},
  "technical_requirements": ["..."],
  "pricing_and_terms": "...",
  "source_documents": [{"name": "...", "summary": "..."}]
}`

// ExtractStage turns the raw contract and company records into a structured
// DataAnalysis. NAICS alignment in the result is recomputed from the input
// records, never trusted from the model.
func ExtractStage(ctx context.Context, rfq model.RFQ, entity model.Entity, docs []model.DocumentDigest, client anthropic.Client, cfg config.AnthropicConfig) (*model.DataAnalysis, model.TokenUsage, error) {
	prompt := fmt.Sprintf(extractPrompt,
		formatRFQ(rfq),
		formatEntity(entity),
		formatSourceDocuments(docs),
	)

	analysis, usage, err := llm.Generate[model.DataAnalysis](ctx, client, llm.Request{
		Stage:     string(model.StageDataExtraction),
		Model:     cfg.SonnetModel,
		MaxTokens: 4096,
		System:    extractSystemText,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, usage, err
	}

	// The model narrates the gap; the codes themselves come from the records.
	analysis.GapAnalysis.Required = rfq.NAICSCode
	analysis.GapAnalysis.EntityPrimary = entity.PrimaryNAICS().Code
	analysis.GapAnalysis.IsMatch = entity.HasNAICS(rfq.NAICSCode)

	if len(docs) > 0 && len(analysis.SourceDocuments) == 0 {
		analysis.SourceDocuments = docs
	}

	return &analysis, usage, nil
}

// formatRFQ renders the contract record for prompt embedding. Field order is
// fixed so identical inputs produce identical prompts.
func formatRFQ(rfq model.RFQ) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\n", rfq.ID)
	fmt.Fprintf(&b, "Title: %s\n", rfq.Title)
	fmt.Fprintf(&b, "Issuing agency: %s\n", rfq.Agency)
	fmt.Fprintf(&b, "NAICS code: %s\n", rfq.NAICSCode)
	if !rfq.Deadline.IsZero() {
		fmt.Fprintf(&b, "Deadline: %s\n", rfq.Deadline.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Description: %s", rfq.Description)
	return b.String()
}

func formatEntity(entity model.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", entity.Name)
	fmt.Fprintf(&b, "Address: %s\n", entity.Address)
	fmt.Fprintf(&b, "UEI: %s\n", entity.UEI)
	if !entity.Founded.IsZero() {
		fmt.Fprintf(&b, "Founded: %s\n", entity.Founded.Format("2006-01-02"))
	}
	b.WriteString("NAICS codes:")
	if len(entity.NAICSCodes) == 0 {
		b.WriteString(" none")
	}
	for _, c := range entity.NAICSCodes {
		fmt.Fprintf(&b, "\n  - %s %s", c.Code, c.Name)
	}
	return b.String()
}

func formatSourceDocuments(docs []model.DocumentDigest) string {
	if len(docs) == 0 {
		return "\n"
	}
	var b strings.Builder
	b.WriteString("\nSolicitation attachments (already processed):\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "  - %s: %s\n", d.Name, d.Summary)
	}
	return b.String()
}
