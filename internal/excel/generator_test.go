package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

func TestGenerate_SheetPerBill(t *testing.T) {
	contract := model.Contract{
		ID:           uuid.New(),
		ContractType: model.ContractTypeNanny,
		CustomerInfo: &model.PartyInfo{Name: "Li Na"},
	}
	first, second := uuid.New(), uuid.New()
	created := time.Date(2024, time.March, 10, 18, 0, 0, 0, time.UTC)
	ledger := model.AdjustmentLedger{
		Contract: contract,
		Adjustments: []model.FinancialAdjustment{
			{ID: uuid.New(), Kind: model.AdjustmentKindTrialServiceFee, Amount: decimal.NewFromInt(3000), TargetBillID: first, CreatedAt: created},
			{ID: uuid.New(), Kind: model.AdjustmentKindManagementFee, Amount: decimal.NewFromInt(300), TargetBillID: first, CreatedAt: created},
			{ID: uuid.New(), Kind: model.AdjustmentKindIntroductionFee, Amount: decimal.NewFromInt(500), TargetBillID: second, CreatedAt: created},
		},
		GeneratedAt: created,
	}

	content, err := NewGenerator().Generate(ledger)
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer file.Close()

	sheets := file.GetSheetList()
	require.Len(t, sheets, 3)
	assert.Equal(t, "Summary", sheets[0])
	for _, name := range sheets[1:] {
		assert.LessOrEqual(t, len(name), 31)
	}

	id, err := file.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, contract.ID.String(), id)
}

func TestGenerate_EmptyLedger(t *testing.T) {
	content, err := NewGenerator().Generate(model.AdjustmentLedger{Contract: model.Contract{ID: uuid.New()}})
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, []string{"Summary"}, file.GetSheetList())
}

func TestBuildSheetName(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	used := map[string]struct{}{}

	name := buildSheetName(id, used)
	assert.Equal(t, "Bill 0f8fad5b-d9cb-469f-a165-70", name)
	assert.Len(t, name, 31)

	used[name] = struct{}{}
	again := buildSheetName(id, used)
	assert.Equal(t, "Bill 0f8fad5b-d9cb-469f-a165--2", again)
	assert.Len(t, again, 31)
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "Sheet", sanitizeSheetName("  "))
	assert.Equal(t, "a-b-c", sanitizeSheetName("a/b:c"))
	assert.Equal(t, "Sheet", sanitizeSheetName(""))
}
