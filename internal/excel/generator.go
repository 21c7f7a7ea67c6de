package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate writes a summary sheet plus one sheet per target bill.
func (g *Generator) Generate(ledger model.AdjustmentLedger) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	summarySheet := "Summary"
	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	bills := groupByBill(ledger.Adjustments)
	if err := g.writeSummary(file, summarySheet, ledger, bills); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, bill := range bills {
		sheetName := buildSheetName(bill.id, usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		if err := g.writeDetail(file, sheetName, bill); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type billGroup struct {
	id    uuid.UUID
	items []model.FinancialAdjustment
}

func (b billGroup) total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range b.items {
		total = total.Add(item.Amount)
	}
	return total
}

func groupByBill(adjustments []model.FinancialAdjustment) []billGroup {
	index := map[uuid.UUID]int{}
	var groups []billGroup
	for _, adj := range adjustments {
		i, ok := index[adj.TargetBillID]
		if !ok {
			i = len(groups)
			index[adj.TargetBillID] = i
			groups = append(groups, billGroup{id: adj.TargetBillID})
		}
		groups[i].items = append(groups[i].items, adj)
	}
	return groups
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, ledger model.AdjustmentLedger, bills []billGroup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	total := decimal.Zero
	for _, bill := range bills {
		total = total.Add(bill.total())
	}

	set("A1", "Contract")
	set("B1", ledger.Contract.ID.String())
	set("A2", "Contract type")
	set("B2", string(ledger.Contract.ContractType))
	set("A3", "Customer")
	set("B3", partyName(ledger.Contract.CustomerInfo))
	set("A4", "Generated")
	set("B4", formatDateTime(ledger.GeneratedAt))
	set("A5", "Adjustments")
	set("B5", len(ledger.Adjustments))
	set("A6", "Total")
	set("B6", formatAmount(total))

	tableRow := 8
	set(fmt.Sprintf("A%d", tableRow), "Bill")
	set(fmt.Sprintf("B%d", tableRow), "Adjustments")
	set(fmt.Sprintf("C%d", tableRow), "Amount")

	for i, bill := range bills {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), bill.id.String())
		set(fmt.Sprintf("B%d", row), len(bill.items))
		set(fmt.Sprintf("C%d", row), formatAmount(bill.total()))
	}

	_ = file.SetColWidth(sheet, "A", "A", 40)
	_ = file.SetColWidth(sheet, "B", "B", 38)
	_ = file.SetColWidth(sheet, "C", "C", 16)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, bill billGroup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Bill")
	set("B1", bill.id.String())
	set("A2", "Total")
	set("B2", formatAmount(bill.total()))

	tableRow := 4
	headers := []string{
		"Created",
		"Kind",
		"Description",
		"Trial contract",
		"Amount",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, adj := range bill.items {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), formatDateTime(adj.CreatedAt))
		set(fmt.Sprintf("B%d", row), string(adj.Kind))
		set(fmt.Sprintf("C%d", row), adj.Description)
		set(fmt.Sprintf("D%d", row), adj.SourceTrialContractID.String())
		set(fmt.Sprintf("E%d", row), formatAmount(adj.Amount))
	}

	_ = file.SetColWidth(sheet, "A", "A", 20)
	_ = file.SetColWidth(sheet, "B", "B", 20)
	_ = file.SetColWidth(sheet, "C", "C", 45)
	_ = file.SetColWidth(sheet, "D", "D", 38)
	_ = file.SetColWidth(sheet, "E", "E", 14)
	return nil
}

func buildSheetName(id uuid.UUID, used map[string]struct{}) string {
	base := sanitizeSheetName("Bill " + id.String())
	if len(base) > 31 {
		base = base[:31]
	}

	nameCandidate := base
	counter := 2
	for {
		if _, exists := used[nameCandidate]; !exists {
			return nameCandidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		nameCandidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}

	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Sheet"
	}
	return value
}

func partyName(info *model.PartyInfo) string {
	if info == nil {
		return ""
	}
	return info.Name
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(2)
}
