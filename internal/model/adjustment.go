package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BillStatus string

const (
	BillStatusUnpaid BillStatus = "unpaid"
	BillStatusPaid   BillStatus = "paid"
)

type Bill struct {
	ID         uuid.UUID
	ContractID uuid.UUID
	CycleStart time.Time
	CycleEnd   time.Time
	Amount     decimal.Decimal
	Status     BillStatus
}

type AdjustmentKind string

const (
	AdjustmentKindIntroductionFee AdjustmentKind = "introduction_fee"
	AdjustmentKindTrialServiceFee AdjustmentKind = "trial_service_fee"
	AdjustmentKindManagementFee   AdjustmentKind = "management_fee"
)

// CostItem is one line of a conversion preview.
type CostItem struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ConversionCost is the non-persisted projection shown before a conversion is confirmed.
// A nil item means its source amount was zero.
type ConversionCost struct {
	TrialContractID  uuid.UUID `json:"trial_contract_id"`
	FormalContractID uuid.UUID `json:"formal_contract_id"`
	TrialDays        int       `json:"trial_days"`
	IntroductionFee  *CostItem `json:"introduction_fee,omitempty"`
	TrialServiceFee  *CostItem `json:"trial_service_fee,omitempty"`
	ManagementFee    *CostItem `json:"management_fee,omitempty"`
}

// Total sums the present line items.
func (c ConversionCost) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range []*CostItem{c.IntroductionFee, c.TrialServiceFee, c.ManagementFee} {
		if item != nil {
			total = total.Add(item.Amount)
		}
	}
	return total
}

type FinancialAdjustment struct {
	ID                    uuid.UUID
	Kind                  AdjustmentKind
	Amount                decimal.Decimal
	Description           string
	TargetBillID          uuid.UUID
	TargetContractID      uuid.UUID
	SourceTrialContractID uuid.UUID
	CreatedAt             time.Time
}

type ConversionResult struct {
	Trial        Contract
	Cost         ConversionCost
	TargetBillID uuid.UUID
	Adjustments  []FinancialAdjustment
}

// ConversionStatement is the printable cost sheet of a pending conversion.
type ConversionStatement struct {
	Trial       Contract
	Formal      Contract
	Cost        ConversionCost
	GeneratedAt time.Time
}

// AdjustmentLedger lists every adjustment attached to one formal contract.
type AdjustmentLedger struct {
	Contract    Contract
	Adjustments []FinancialAdjustment
	GeneratedAt time.Time
}
