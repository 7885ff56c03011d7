package model

import "time"

// RFQ is the immutable contract record a proposal is generated against.
// It is supplied by an external data source and never mutated by the pipeline.
type RFQ struct {
	ID          string        `json:"id" yaml:"id"`
	Title       string        `json:"title" yaml:"title"`
	Agency      string        `json:"agency" yaml:"agency"`
	NAICSCode   string        `json:"naics_code" yaml:"naics_code"`
	Description string        `json:"description" yaml:"description"`
	Deadline    time.Time     `json:"deadline" yaml:"deadline"`
	Documents   []RFQDocument `json:"documents,omitempty" yaml:"documents,omitempty"`
}

// RFQDocument is an attachment listed on the RFQ (solicitation PDF, pricing
// sheet, required form). Only the reference is stored; content is fetched by
// the enrichment collaborator.
type RFQDocument struct {
	ID       string `json:"id" yaml:"id"`
	URL      string `json:"url" yaml:"url"`
	Filename string `json:"filename" yaml:"filename"`
	Type     string `json:"type" yaml:"type"` // "pdf", "xlsx", "doc", ...
}
