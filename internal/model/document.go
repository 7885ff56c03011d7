package model

import "time"

// DocumentNode is a content block after tree assembly. Depth is structural:
// root nodes are 0, their children 1, and so on — recomputed by the builder,
// never trusted from input metadata.
type DocumentNode struct {
	ID       string         `json:"id"`
	Type     BlockType      `json:"type"`
	Content  string         `json:"content"`
	Order    int            `json:"order"`
	Editable bool           `json:"editable"`
	Fields   []FormField    `json:"fields,omitempty"`
	Children []DocumentNode `json:"children,omitempty"`
	Depth    int            `json:"depth"`
}

// CountNodes returns the total node count of the subtree rooted at n,
// including n itself.
func (n DocumentNode) CountNodes() int {
	total := 1
	for _, c := range n.Children {
		total += c.CountNodes()
	}
	return total
}

// DocumentMetadata identifies a generated document.
type DocumentMetadata struct {
	RFQID       string    `json:"rfq_id"`
	CompanyName string    `json:"company_name"`
	GeneratedAt time.Time `json:"generated_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	Version     int       `json:"version"`
}

// GeneratedDocument is the final envelope handed to the editor. After that
// handoff the pipeline never touches it again.
type GeneratedDocument struct {
	Metadata        DocumentMetadata `json:"metadata"`
	Nodes           []DocumentNode   `json:"nodes"`
	Trace           StageOutputs     `json:"trace"`
	SubmissionReady bool             `json:"submission_ready"`
	ConfidenceScore int              `json:"confidence_score"`
}
