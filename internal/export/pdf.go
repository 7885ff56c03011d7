package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-cli/internal/model"
)

// RenderPDF renders a generated document to PDF bytes. The node tree is
// walked depth-first: headings shrink with their level, text flows as
// wrapped paragraphs, and form nodes come out as bordered field tables.
func RenderPDF(doc *model.GeneratedDocument) ([]byte, error) {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil, eris.New("pdf: document has no nodes")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(doc.Nodes[0].Content, true)
	pdf.SetAuthor(doc.Metadata.CompanyName, true)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		footer := fmt.Sprintf("%s — v%d — generated %s",
			doc.Metadata.CompanyName,
			doc.Metadata.Version,
			doc.Metadata.GeneratedAt.Format("2006-01-02"),
		)
		pdf.CellFormat(0, 8, footer, "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()
	for _, node := range doc.Nodes {
		renderNode(pdf, node)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, eris.Wrap(err, "pdf: output")
	}

	zap.L().Debug("export: pdf rendered",
		zap.String("rfq_id", doc.Metadata.RFQID),
		zap.Int("bytes", buf.Len()),
	)
	return buf.Bytes(), nil
}

func renderNode(pdf *fpdf.Fpdf, node model.DocumentNode) {
	switch node.Type {
	case model.BlockHeading1:
		pdf.SetFont("Arial", "B", 18)
		pdf.MultiCell(0, 9, node.Content, "", "L", false)
		pdf.Ln(4)
	case model.BlockHeading2:
		pdf.Ln(3)
		pdf.SetFont("Arial", "B", 14)
		pdf.SetTextColor(40, 40, 90)
		pdf.MultiCell(0, 7, node.Content, "", "L", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	case model.BlockHeading3:
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 11)
		pdf.MultiCell(0, 6, node.Content, "", "L", false)
		pdf.Ln(1)
	case model.BlockText:
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, node.Content, "", "L", false)
		pdf.Ln(3)
	case model.BlockForm:
		renderForm(pdf, node)
	}

	for _, child := range node.Children {
		renderNode(pdf, child)
	}
}

// renderForm draws the form name and one bordered row per field. Unfilled
// fields render with a blank value cell so the form stays completable on
// paper.
func renderForm(pdf *fpdf.Fpdf, node model.DocumentNode) {
	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 12)
	pdf.MultiCell(0, 7, node.Content, "", "L", false)

	labelWidth := 60.0
	valueWidth := 120.0

	pdf.SetFont("Arial", "", 9)
	for _, field := range node.Fields {
		label := field.Label
		if field.Required {
			label += " *"
		}
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(labelWidth, 7, label, "1", 0, "L", true, 0, "")
		pdf.CellFormat(valueWidth, 7, field.Value, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}
