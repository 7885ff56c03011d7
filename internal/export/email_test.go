package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-cli/internal/model"
)

func TestBuildEmail(t *testing.T) {
	entity := model.Entity{Name: "Acme Facilities LLC", ContactEmail: "bids@acme.example"}
	email, err := BuildEmail(sampleDocument(), entity)
	require.NoError(t, err)

	assert.Equal(t, "Proposal Submission: Proposal: Janitorial Services (Acme Facilities LLC, v2)", email.Subject)

	// Body carries sections, text, and filled form fields; the root title
	// stays out of the body.
	assert.Contains(t, email.Body, "Technical Approach")
	assert.Contains(t, email.Body, "staff the facility nightly")
	assert.Contains(t, email.Body, "SF-1449 (attached)")
	assert.Contains(t, email.Body, "Company Name: Acme Facilities LLC")
	assert.NotContains(t, email.Body, "UEI:")
	assert.False(t, strings.HasPrefix(email.Body, "Proposal: Janitorial Services"))

	// Address found in the content first, entity contact after, no dupes.
	assert.Equal(t, []string{"contracting@gsa.gov", "bids@acme.example"}, email.Recipients)
}

func TestBuildEmailDeduplicatesRecipients(t *testing.T) {
	doc := sampleDocument()
	entity := model.Entity{Name: "Acme", ContactEmail: "Contracting@GSA.gov"}
	email, err := BuildEmail(doc, entity)
	require.NoError(t, err)
	assert.Equal(t, []string{"contracting@gsa.gov"}, email.Recipients)
}

func TestBuildEmailEmptyDocument(t *testing.T) {
	_, err := BuildEmail(nil, model.Entity{})
	require.Error(t, err)
}

func TestMailtoLink(t *testing.T) {
	email := &Email{
		Subject:    "Proposal Submission: Test",
		Body:       "Body text\n",
		Recipients: []string{"a@example.com", "b@example.com"},
	}
	link := email.MailtoLink()
	assert.True(t, strings.HasPrefix(link, "mailto:a@example.com,b@example.com?"))
	assert.Contains(t, link, "subject=Proposal+Submission%3A+Test")
	assert.Contains(t, link, "body=Body+text")
}
