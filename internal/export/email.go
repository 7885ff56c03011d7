package export

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-cli/internal/model"
)

// Email is a proposal rendered for email submission.
type Email struct {
	Subject    string
	Body       string
	Recipients []string
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// BuildEmail flattens a generated document into a submission email. The body
// is the document's text content in reading order; recipients are any
// addresses found in the content plus the submitting entity's contact.
func BuildEmail(doc *model.GeneratedDocument, entity model.Entity) (*Email, error) {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil, eris.New("email: document has no nodes")
	}

	root := doc.Nodes[0]
	subject := fmt.Sprintf("Proposal Submission: %s (%s, v%d)",
		root.Content, entity.Name, doc.Metadata.Version)

	var b strings.Builder
	seen := make(map[string]bool)
	var recipients []string

	addRecipient := func(addr string) {
		addr = strings.ToLower(addr)
		if !seen[addr] {
			seen[addr] = true
			recipients = append(recipients, addr)
		}
	}

	var walk func(node model.DocumentNode)
	walk = func(node model.DocumentNode) {
		switch node.Type {
		case model.BlockHeading1:
			// Root title already carries the subject.
		case model.BlockHeading2, model.BlockHeading3:
			b.WriteString("\n" + node.Content + "\n\n")
		case model.BlockText:
			b.WriteString(node.Content + "\n\n")
			for _, addr := range emailPattern.FindAllString(node.Content, -1) {
				addRecipient(addr)
			}
		case model.BlockForm:
			b.WriteString("\n" + node.Content + " (attached)\n")
			for _, field := range node.Fields {
				if field.Value != "" {
					fmt.Fprintf(&b, "  %s: %s\n", field.Label, field.Value)
				}
			}
			b.WriteString("\n")
		}
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(root)

	if entity.ContactEmail != "" {
		addRecipient(entity.ContactEmail)
	}

	return &Email{
		Subject:    subject,
		Body:       strings.TrimSpace(b.String()) + "\n",
		Recipients: recipients,
	}, nil
}

// MailtoLink renders the email as a mailto URL.
func (e *Email) MailtoLink() string {
	q := url.Values{}
	q.Set("subject", e.Subject)
	q.Set("body", e.Body)
	return "mailto:" + strings.Join(e.Recipients, ",") + "?" + q.Encode()
}
