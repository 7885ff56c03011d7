package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/proposal-cli/internal/model"
)

// BuildReport generates a human-readable run report in markdown.
func BuildReport(run *model.Run, doc *model.GeneratedDocument, stages []model.StageResult, totalUsage model.TokenUsage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Proposal Report: %s\n", run.RFQ.Title)
	fmt.Fprintf(&b, "RFQ: %s (%s)\n", run.RFQ.ID, run.RFQ.Agency)
	fmt.Fprintf(&b, "Company: %s\n", run.Entity.Name)
	if !run.RFQ.Deadline.IsZero() {
		fmt.Fprintf(&b, "Deadline: %s\n", run.RFQ.Deadline.Format(time.RFC3339))
	}
	b.WriteString("\n")

	// Summary.
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Document version: %d\n", doc.Metadata.Version)
	fmt.Fprintf(&b, "- Confidence: %d%%\n", doc.ConfidenceScore)
	fmt.Fprintf(&b, "- Submission ready: %t\n", doc.SubmissionReady)
	nodes := 0
	for _, n := range doc.Nodes {
		nodes += n.CountNodes()
	}
	fmt.Fprintf(&b, "- Document nodes: %d\n", nodes)
	fmt.Fprintf(&b, "- Token usage: %d input, %d output\n",
		totalUsage.InputTokens, totalUsage.OutputTokens)
	fmt.Fprintf(&b, "- Estimated cost: $%.4f\n\n", totalUsage.Cost)

	// Stage results.
	b.WriteString("## Stages\n")
	for _, s := range stages {
		fmt.Fprintf(&b, "- %s: %s (%dms)\n", s.Name, s.Status, s.Duration)
		if s.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", s.Error)
		}
	}
	b.WriteString("\n")

	// Gap analysis.
	if a := doc.Trace.DataAnalysis; a != nil {
		b.WriteString("## Gap Analysis\n")
		verdict := "mismatch"
		if a.GapAnalysis.IsMatch {
			verdict = "match"
		}
		fmt.Fprintf(&b, "- NAICS: required %s, company primary %s (%s)\n",
			a.GapAnalysis.Required, a.GapAnalysis.EntityPrimary, verdict)
		for _, gap := range a.GapAnalysis.CapabilityGaps {
			fmt.Fprintf(&b, "- Capability gap: %s\n", gap)
		}
		for _, gap := range a.GapAnalysis.ComplianceGaps {
			fmt.Fprintf(&b, "- Compliance gap: %s\n", gap)
		}
		b.WriteString("\n")
	}

	// Required forms and their coverage in the generated document.
	if a := doc.Trace.DataAnalysis; a != nil && len(a.Compliance.RequiredForms) > 0 {
		present := make(map[string]bool)
		for _, n := range doc.Nodes {
			for _, child := range n.Children {
				if child.Type == model.BlockForm {
					present[normalizeFormName(child.Content)] = true
				}
			}
		}

		b.WriteString("## Required Forms\n")
		for _, f := range a.Compliance.RequiredForms {
			mark := "missing"
			if present[normalizeFormName(f.Name)] {
				mark = "included"
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", f.Name, f.Criticality, mark)
		}
		b.WriteString("\n")
	}

	// Strategy highlights.
	if s := doc.Trace.Strategy; s != nil {
		b.WriteString("## Strategy\n")
		fmt.Fprintf(&b, "- Positioning: %s\n", s.Positioning)
		fmt.Fprintf(&b, "- Win probability: %d%%\n", s.WinProbability)
		for _, msg := range s.Content.KeyMessages {
			fmt.Fprintf(&b, "- Key message: %s\n", msg)
		}
	}

	return b.String()
}
