package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/proposal-cli/internal/config"
	"github.com/sells-group/proposal-cli/internal/llm"
	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/pkg/anthropic"
)

const insightsSystemText = "You are a government contracting strategist. You turn a structured contract analysis into actionable insights for a proposal team. Return valid JSON matching the requested schema."

const insightsPrompt = `Derive proposal insights from this contract analysis.

Contract analysis:
%s

Return a JSON object with this shape:
{
  "requirements": ["..."],
  "gaps": ["..."],
  "risk_factors": ["..."],
  "opportunities": ["..."],
  "compliance_items": ["..."],
  "insights": {"naics_strategy": "...", "competitive_advantage": "...", "risk_mitigation": "..."}
}

The requirements list must not be empty: carry over every contract requirement, restated as an action the bidder must satisfy.`

// InsightStage distills the extraction output into prioritized requirements,
// gaps, and strategic notes.
func InsightStage(ctx context.Context, analysis *model.DataAnalysis, client anthropic.Client, cfg config.AnthropicConfig) (*model.Insights, model.TokenUsage, error) {
	prompt := fmt.Sprintf(insightsPrompt, formatAnalysis(analysis))

	insights, usage, err := llm.Generate[model.Insights](ctx, client, llm.Request{
		Stage:     string(model.StageInsightAnalysis),
		Model:     cfg.SonnetModel,
		MaxTokens: 4096,
		System:    insightsSystemText,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, usage, err
	}
	return &insights, usage, nil
}

// formatAnalysis renders a DataAnalysis for prompt embedding, fixed field
// order.
func formatAnalysis(a *model.DataAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contract type: %s\n", a.ContractInfo.Type)
	fmt.Fprintf(&b, "Scope: %s\n", a.ContractInfo.Scope)
	writeList(&b, "Requirements", a.ContractInfo.Requirements)
	writeList(&b, "Deliverables", a.ContractInfo.Deliverables)
	writeList(&b, "Locations", a.ContractInfo.Locations)
	fmt.Fprintf(&b, "Timeline: %s\n", a.ContractInfo.Timeline)
	fmt.Fprintf(&b, "Set-aside: %s\n", a.ContractInfo.SetAside)
	fmt.Fprintf(&b, "Company capability: %s\n", a.EntityInfo.Capability)
	fmt.Fprintf(&b, "Company experience: %s\n", a.EntityInfo.Experience)
	fmt.Fprintf(&b, "Business type: %s\n", a.EntityInfo.BusinessType)
	fmt.Fprintf(&b, "NAICS required: %s, company primary: %s, match: %t\n",
		a.GapAnalysis.Required, a.GapAnalysis.EntityPrimary, a.GapAnalysis.IsMatch)
	writeList(&b, "Capability gaps", a.GapAnalysis.CapabilityGaps)
	writeList(&b, "Compliance gaps", a.GapAnalysis.ComplianceGaps)
	writeList(&b, "Risk factors", a.GapAnalysis.RiskFactors)
	writeList(&b, "Win factors", a.Opportunity.WinFactors)
	fmt.Fprintf(&b, "Positioning: %s\n", a.Opportunity.Positioning)
	fmt.Fprintf(&b, "Value proposition: %s\n", a.Opportunity.ValueProposition)
	fmt.Fprintf(&b, "Win probability: %d\n", a.Opportunity.WinProbability)
	for _, f := range a.Compliance.RequiredForms {
		fmt.Fprintf(&b, "Required form: %s (%s) - %s\n", f.Name, f.Criticality, f.Description)
	}
	writeList(&b, "Certifications", a.Compliance.Certifications)
	fmt.Fprintf(&b, "Submission method: %s\n", a.Compliance.SubmissionMethod)
	writeList(&b, "Technical requirements", a.Technical)
	fmt.Fprintf(&b, "Pricing and terms: %s", a.PricingAndTerms)
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(label + ":\n")
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}
