package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

type billRecord struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ContractID uuid.UUID       `gorm:"column:contract_id;type:uuid;not null"`
	CycleStart time.Time       `gorm:"column:cycle_start;not null"`
	CycleEnd   time.Time       `gorm:"column:cycle_end;not null"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(18,2)"`
	Status     string          `gorm:"column:status;not null"`
}

func (billRecord) TableName() string { return "bills" }

type BillRepository struct {
	db *gorm.DB
}

func NewBillRepository(db *gorm.DB) *BillRepository {
	return &BillRepository{db: db}
}

// EarliestUnpaidBill returns gorm.ErrRecordNotFound when every bill is paid.
func (r *BillRepository) EarliestUnpaidBill(ctx context.Context, contractID uuid.UUID) (*model.Bill, error) {
	var rec billRecord
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND status <> ?", contractID, string(model.BillStatusPaid)).
		Order("cycle_start ASC").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &model.Bill{
		ID:         rec.ID,
		ContractID: rec.ContractID,
		CycleStart: rec.CycleStart,
		CycleEnd:   rec.CycleEnd,
		Amount:     rec.Amount,
		Status:     model.BillStatus(rec.Status),
	}, nil
}
