package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

// Generator renders conversion statements. Labels are plain ASCII, so the core
// Helvetica font is enough.
type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Render(doc model.ConversionStatement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Trial conversion statement", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", doc.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addContractBlock(pdf, g.fontName, "Trial contract", doc.Trial)
	pdf.Ln(2)
	addContractBlock(pdf, g.fontName, "Formal contract", doc.Formal)
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Charges (%d trial days)", doc.Cost.TrialDays), "", 1, "L", false, 0, "")

	headers := []string{"Item", "Description", "Amount"}
	colWidths := []float64{45, 100, 35}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)

	items := []struct {
		label string
		item  *model.CostItem
	}{
		{"Introduction fee", doc.Cost.IntroductionFee},
		{"Trial service fee", doc.Cost.TrialServiceFee},
		{"Management fee", doc.Cost.ManagementFee},
	}
	rows := 0
	for _, it := range items {
		if it.item == nil {
			continue
		}
		drawTableRow(pdf, g.fontName, []string{it.label, it.item.Description, formatAmount(it.item.Amount)}, colWidths, false)
		rows++
	}
	if rows == 0 {
		pdf.SetFont(g.fontName, "", 10)
		pdf.CellFormat(0, 8, "No charges", "1", 1, "C", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %s", formatAmount(doc.Cost.Total())), "", 1, "R", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont(g.fontName, "", 9)
	pdf.MultiCell(0, 5, "Charges are added to the earliest unpaid bill of the formal contract once the conversion is confirmed.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addContractBlock(pdf *gofpdf.Fpdf, fontName, title string, c model.Contract) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	lines := []string{
		fmt.Sprintf("ID: %s (%s)", c.ID, c.ContractType),
		fmt.Sprintf("Period: %s - %s", formatDate(c.StartDate), formatDate(c.EndDate)),
		fmt.Sprintf("Customer: %s", partyName(c.CustomerInfo)),
		fmt.Sprintf("Employee: %s", partyName(c.EmployeeInfo)),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i == len(cols)-1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func partyName(info *model.PartyInfo) string {
	if info == nil {
		return "-"
	}
	return safeValue(info.Name)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
