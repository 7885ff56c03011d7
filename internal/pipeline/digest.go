package pipeline

import (
	"fmt"

	"github.com/sells-group/proposal-cli/internal/model"
)

// Stage digests: small numeric summaries attached to progress updates and
// stage records, so logs and UIs can show what a stage produced without
// carrying the full output around.

func digestAnalysis(a *model.DataAnalysis) map[string]int {
	match := 0
	if a.GapAnalysis.IsMatch {
		match = 1
	}
	return map[string]int{
		"requirements":   len(a.ContractInfo.Requirements),
		"deliverables":   len(a.ContractInfo.Deliverables),
		"required_forms": len(a.Compliance.RequiredForms),
		"naics_match":    match,
	}
}

func summarizeAnalysis(a *model.DataAnalysis) string {
	verdict := "NAICS gap"
	if a.GapAnalysis.IsMatch {
		verdict = "NAICS match"
	}
	return fmt.Sprintf("%d requirements, %d required forms, %s",
		len(a.ContractInfo.Requirements), len(a.Compliance.RequiredForms), verdict)
}

func digestInsights(in *model.Insights) map[string]int {
	return map[string]int{
		"requirements":  len(in.Requirements),
		"gaps":          len(in.Gaps),
		"risks":         len(in.RiskFactors),
		"opportunities": len(in.Opportunities),
	}
}

func summarizeInsights(in *model.Insights) string {
	return fmt.Sprintf("%d requirements, %d gaps, %d opportunities",
		len(in.Requirements), len(in.Gaps), len(in.Opportunities))
}

func digestStrategy(s *model.Strategy) map[string]int {
	return map[string]int{
		"win_probability": s.WinProbability,
		"value_props":     len(s.ValueProposition),
		"key_messages":    len(s.Content.KeyMessages),
	}
}

func summarizeStrategy(s *model.Strategy) string {
	return fmt.Sprintf("win probability %d%%, %d key messages",
		s.WinProbability, len(s.Content.KeyMessages))
}

func digestProposal(p *model.Proposal) map[string]int {
	forms := 0
	for _, b := range p.Blocks {
		if b.Type == model.BlockForm {
			forms++
		}
	}
	return map[string]int{
		"blocks": len(p.Blocks),
		"forms":  forms,
	}
}

func summarizeProposal(p *model.Proposal) string {
	d := digestProposal(p)
	return fmt.Sprintf("%d blocks, %d forms", d["blocks"], d["forms"])
}

func digestDocument(doc *model.GeneratedDocument) map[string]int {
	nodes := 0
	for _, n := range doc.Nodes {
		nodes += n.CountNodes()
	}
	ready := 0
	if doc.SubmissionReady {
		ready = 1
	}
	return map[string]int{
		"nodes":            nodes,
		"submission_ready": ready,
		"confidence":       doc.ConfidenceScore,
	}
}

func summarizeDocument(doc *model.GeneratedDocument) string {
	d := digestDocument(doc)
	readiness := "needs review before submission"
	if doc.SubmissionReady {
		readiness = "submission ready"
	}
	return fmt.Sprintf("%d nodes, confidence %d%%, %s", d["nodes"], doc.ConfidenceScore, readiness)
}
