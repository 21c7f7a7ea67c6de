package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

type adjustmentRecord struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Kind                  string          `gorm:"column:kind;not null"`
	Amount                decimal.Decimal `gorm:"column:amount;type:numeric(18,2);not null"`
	Description           string          `gorm:"column:description"`
	TargetBillID          uuid.UUID       `gorm:"column:target_bill_id;type:uuid;not null"`
	TargetContractID      uuid.UUID       `gorm:"column:target_contract_id;type:uuid;not null"`
	SourceTrialContractID uuid.UUID       `gorm:"column:source_trial_contract_id;type:uuid;not null"`
	CreatedAt             time.Time       `gorm:"column:created_at"`
}

func (adjustmentRecord) TableName() string { return "financial_adjustments" }

func newAdjustmentRecord(a *model.FinancialAdjustment) adjustmentRecord {
	rec := adjustmentRecord{
		ID:                    a.ID,
		Kind:                  string(a.Kind),
		Amount:                a.Amount,
		Description:           a.Description,
		TargetBillID:          a.TargetBillID,
		TargetContractID:      a.TargetContractID,
		SourceTrialContractID: a.SourceTrialContractID,
		CreatedAt:             a.CreatedAt,
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return rec
}

func (r adjustmentRecord) toModel() model.FinancialAdjustment {
	return model.FinancialAdjustment{
		ID:                    r.ID,
		Kind:                  model.AdjustmentKind(r.Kind),
		Amount:                r.Amount,
		Description:           r.Description,
		TargetBillID:          r.TargetBillID,
		TargetContractID:      r.TargetContractID,
		SourceTrialContractID: r.SourceTrialContractID,
		CreatedAt:             r.CreatedAt,
	}
}

type AdjustmentRepository struct {
	db *gorm.DB
}

func NewAdjustmentRepository(db *gorm.DB) *AdjustmentRepository {
	return &AdjustmentRepository{db: db}
}

// ListByContract returns adjustments attached to a formal contract, oldest first.
func (r *AdjustmentRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]model.FinancialAdjustment, error) {
	var rows []adjustmentRecord
	err := r.db.WithContext(ctx).
		Where("target_contract_id = ?", contractID).
		Order("created_at ASC").
		Order("kind ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.FinancialAdjustment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}
