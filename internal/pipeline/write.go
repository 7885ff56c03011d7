package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/proposal-cli/internal/config"
	"github.com/sells-group/proposal-cli/internal/llm"
	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/pkg/anthropic"
)

const writeSystemText = "You are a proposal writer for government contracts. You write complete, submission-ready proposal documents as an ordered list of content blocks. Return valid JSON matching the requested schema."

const writePrompt = `Write a complete proposal document for this opportunity.

Contract analysis:
%s

Insights:
%s

Strategy:
%s

Company record:
%s
%s
Return a JSON object with this shape:
{
  "company_info": "...",
  "technical_response": "...",
  "narrative": "...",
  "pricing_details": "...",
  "submission_forms": ["..."],
  "blocks": [
    {"id": "b1", "type": "heading1", "content": "...", "order": 0, "editable": true},
    {"id": "b2", "type": "heading2", "content": "...", "order": 1, "editable": true},
    {"id": "b3", "type": "text", "content": "...", "order": 2, "editable": true},
    {"id": "b4", "type": "form", "content": "...", "order": 3, "editable": true,
     "fields": [{"id": "f1", "label": "...", "type": "text", "value": "", "required": true}]}
  ]
}

Rules for blocks:
- Exactly one heading1 block: the proposal title.
- Use heading2 for sections, heading3 for subsections, text for paragraphs.
- Emit one form block per required submission form, with its fields. Use
  field types text, email, phone, date, textarea, or select.
- Use the company record's literal values (name, address, UEI, contact
  email, contact phone) wherever a form field asks for them.
- Follow the content strategy's structure and tone.`

// WriteStage produces the proposal document as a flat block list. It
// consumes all three prior stage outputs plus the entity record for literal
// field values, and any pre-filled forms from attachment enrichment as
// additional context.
func WriteStage(ctx context.Context, analysis *model.DataAnalysis, insights *model.Insights, strategy *model.Strategy, entity model.Entity, forms []model.PreFilledForm, client anthropic.Client, cfg config.AnthropicConfig, maxTokens int) (*model.Proposal, model.TokenUsage, error) {
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	prompt := fmt.Sprintf(writePrompt,
		formatAnalysis(analysis),
		formatInsights(insights),
		formatStrategy(strategy),
		formatEntity(entity),
		formatPreFilledForms(forms),
	)

	proposal, usage, err := llm.Generate[model.Proposal](ctx, client, llm.Request{
		Stage:     string(model.StageDocumentWriting),
		Model:     cfg.SonnetModel,
		MaxTokens: int64(maxTokens),
		System:    writeSystemText,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, usage, err
	}

	proposal.Blocks = appendMissingForms(proposal.Blocks, forms)
	normalizeBlocks(proposal.Blocks)
	return &proposal, usage, nil
}

func formatStrategy(s *model.Strategy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Positioning: %s\n", s.Positioning)
	fmt.Fprintf(&b, "Gap mitigation: %s\n", s.GapMitigation)
	writeList(&b, "Value proposition", s.ValueProposition)
	fmt.Fprintf(&b, "Win probability: %d\n", s.WinProbability)
	fmt.Fprintf(&b, "Pricing strategy: %s\n", s.PricingStrategy)
	writeList(&b, "Key messages", s.Content.KeyMessages)
	fmt.Fprintf(&b, "Tone: %s\n", s.Content.Tone)
	fmt.Fprintf(&b, "Structure: %s", s.Content.Structure)
	return b.String()
}

func formatPreFilledForms(forms []model.PreFilledForm) string {
	if len(forms) == 0 {
		return "\n"
	}
	var b strings.Builder
	b.WriteString("\nPre-filled forms from solicitation attachments (reuse these values):\n")
	for _, f := range forms {
		fmt.Fprintf(&b, "Form %q (confidence %d", f.Name, f.Confidence)
		if f.NeedsReview {
			b.WriteString(", needs review")
		}
		b.WriteString("):\n")
		for _, fld := range f.Fields {
			fmt.Fprintf(&b, "  - %s [%s]: %s\n", fld.Label, fld.Type, fld.Value)
		}
	}
	return b.String()
}

// appendMissingForms adds a form block for each pre-filled form the model
// left out of the block list, matched by form name. The enrichment result
// is authoritative for which attachment forms exist.
func appendMissingForms(blocks []model.ContentBlock, forms []model.PreFilledForm) []model.ContentBlock {
	present := make(map[string]bool)
	for _, b := range blocks {
		if b.Type == model.BlockForm {
			present[normalizeFormName(b.Content)] = true
		}
	}

	for _, f := range forms {
		if len(f.Fields) == 0 || present[normalizeFormName(f.Name)] {
			continue
		}
		block := model.ContentBlock{
			ID:       uuid.NewString(),
			Type:     model.BlockForm,
			Content:  f.Name,
			Editable: true,
		}
		for i, fld := range f.Fields {
			block.Fields = append(block.Fields, model.FormField{
				ID:    fmt.Sprintf("%s-%d", block.ID, i),
				Label: fld.Label,
				Type:  fld.Type,
				Value: fld.Value,
			})
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// normalizeFormName canonicalizes a form name for matching between the
// compliance analysis, enrichment output, and generated blocks.
func normalizeFormName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// normalizeBlocks assigns missing IDs and rewrites Order to the list index,
// so downstream consumers never see duplicate or gapped orders.
func normalizeBlocks(blocks []model.ContentBlock) {
	for i := range blocks {
		if blocks[i].ID == "" {
			blocks[i].ID = uuid.NewString()
		}
		blocks[i].Order = i
	}
}
