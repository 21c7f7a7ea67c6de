package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

// ErrStaleContract is returned when the row changed since it was read.
var ErrStaleContract = errors.New("contract was modified concurrently")

type contractRecord struct {
	ID                   uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ContractType         string           `gorm:"column:contract_type;not null"`
	CustomerID           uuid.UUID        `gorm:"column:customer_id;type:uuid;not null"`
	EmployeeID           uuid.UUID        `gorm:"column:employee_id;type:uuid;not null"`
	EmployeeLevel        decimal.Decimal  `gorm:"column:employee_level;type:numeric(18,2)"`
	DailyRate            decimal.Decimal  `gorm:"column:daily_rate;type:numeric(18,2)"`
	ManagementFeeRate    decimal.Decimal  `gorm:"column:management_fee_rate;type:numeric"`
	ManagementFeeAmount  decimal.Decimal  `gorm:"column:management_fee_amount;type:numeric(18,2)"`
	DepositRate          decimal.Decimal  `gorm:"column:deposit_rate;type:numeric"`
	SecurityDepositPaid  decimal.Decimal  `gorm:"column:security_deposit_paid;type:numeric(18,2)"`
	IntroductionFee      decimal.Decimal  `gorm:"column:introduction_fee;type:numeric(18,2)"`
	DepositAmount        decimal.Decimal  `gorm:"column:deposit_amount;type:numeric(18,2)"`
	StartDate            time.Time        `gorm:"column:start_date;not null"`
	EndDate              time.Time        `gorm:"column:end_date;not null"`
	ProvisionalStartDate *time.Time       `gorm:"column:provisional_start_date"`
	IsMonthlyAutoRenew   bool             `gorm:"column:is_monthly_auto_renew"`
	Overrides            string           `gorm:"column:overrides"`
	Status               string           `gorm:"column:status;not null"`
	SigningStatus        string           `gorm:"column:signing_status;not null"`
	CustomerSignature    []byte           `gorm:"column:customer_signature"`
	EmployeeSignature    []byte           `gorm:"column:employee_signature"`
	CustomerSignedAt     *time.Time       `gorm:"column:customer_signed_at"`
	EmployeeSignedAt     *time.Time       `gorm:"column:employee_signed_at"`
	CustomerInfo         *model.PartyInfo `gorm:"column:customer_info;type:text;serializer:json"`
	EmployeeInfo         *model.PartyInfo `gorm:"column:employee_info;type:text;serializer:json"`
	ConvertedToID        *uuid.UUID       `gorm:"column:converted_to_id;type:uuid"`
	Version              int              `gorm:"column:version;not null"`
	CreatedAt            time.Time        `gorm:"column:created_at"`
	UpdatedAt            time.Time        `gorm:"column:updated_at"`
}

func (contractRecord) TableName() string { return "contracts" }

func newContractRecord(c *model.Contract) contractRecord {
	return contractRecord{
		ID:                   c.ID,
		ContractType:         string(c.ContractType),
		CustomerID:           c.CustomerID,
		EmployeeID:           c.EmployeeID,
		EmployeeLevel:        c.EmployeeLevel,
		DailyRate:            c.DailyRate,
		ManagementFeeRate:    c.ManagementFeeRate,
		ManagementFeeAmount:  c.ManagementFeeAmount,
		DepositRate:          c.DepositRate,
		SecurityDepositPaid:  c.SecurityDepositPaid,
		IntroductionFee:      c.IntroductionFee,
		DepositAmount:        c.DepositAmount,
		StartDate:            c.StartDate,
		EndDate:              c.EndDate,
		ProvisionalStartDate: c.ProvisionalStartDate,
		IsMonthlyAutoRenew:   c.IsMonthlyAutoRenew,
		Overrides:            strings.Join(c.Overrides, ","),
		Status:               string(c.Status),
		SigningStatus:        string(c.SigningStatus),
		CustomerSignature:    c.CustomerSignature,
		EmployeeSignature:    c.EmployeeSignature,
		CustomerSignedAt:     c.CustomerSignedAt,
		EmployeeSignedAt:     c.EmployeeSignedAt,
		CustomerInfo:         c.CustomerInfo,
		EmployeeInfo:         c.EmployeeInfo,
		ConvertedToID:        c.ConvertedToID,
		Version:              c.Version,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func (r contractRecord) toModel() *model.Contract {
	var overrides []string
	if r.Overrides != "" {
		overrides = strings.Split(r.Overrides, ",")
	}
	return &model.Contract{
		ID:                   r.ID,
		ContractType:         model.ContractType(r.ContractType),
		CustomerID:           r.CustomerID,
		EmployeeID:           r.EmployeeID,
		EmployeeLevel:        r.EmployeeLevel,
		DailyRate:            r.DailyRate,
		ManagementFeeRate:    r.ManagementFeeRate,
		ManagementFeeAmount:  r.ManagementFeeAmount,
		DepositRate:          r.DepositRate,
		SecurityDepositPaid:  r.SecurityDepositPaid,
		IntroductionFee:      r.IntroductionFee,
		DepositAmount:        r.DepositAmount,
		StartDate:            r.StartDate,
		EndDate:              r.EndDate,
		ProvisionalStartDate: r.ProvisionalStartDate,
		IsMonthlyAutoRenew:   r.IsMonthlyAutoRenew,
		Overrides:            overrides,
		Status:               model.ContractStatus(r.Status),
		SigningStatus:        model.SigningStatus(r.SigningStatus),
		CustomerSignature:    r.CustomerSignature,
		EmployeeSignature:    r.EmployeeSignature,
		CustomerSignedAt:     r.CustomerSignedAt,
		EmployeeSignedAt:     r.EmployeeSignedAt,
		CustomerInfo:         r.CustomerInfo,
		EmployeeInfo:         r.EmployeeInfo,
		ConvertedToID:        r.ConvertedToID,
		Version:              r.Version,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Load returns gorm.ErrRecordNotFound for unknown ids.
func (r *ContractRepository) Load(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var rec contractRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (r *ContractRepository) Create(ctx context.Context, c *model.Contract) (*model.Contract, error) {
	rec := newContractRecord(c)
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

// Save writes c if nobody else changed the row since c.Version was read.
func (r *ContractRepository) Save(ctx context.Context, c *model.Contract) (*model.Contract, error) {
	return saveVersioned(r.db.WithContext(ctx), c)
}

// Update applies fn to the contract as a single read-modify-write under a row lock,
// so two parties signing at once cannot overwrite each other's slot.
func (r *ContractRepository) Update(ctx context.Context, id uuid.UUID, fn func(c *model.Contract) error) (*model.Contract, error) {
	var saved *model.Contract
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec contractRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&rec).Error
		if err != nil {
			return err
		}
		c := rec.toModel()
		if err := fn(c); err != nil {
			return err
		}
		saved, err = saveVersioned(tx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SaveWithAdjustments stores the contract and inserts every adjustment in one
// transaction. The target contract is locked and must still be open at the version
// the adjustments were priced against. Any failure leaves everything untouched.
func (r *ContractRepository) SaveWithAdjustments(
	ctx context.Context,
	c *model.Contract,
	target *model.Contract,
	adjustments []model.FinancialAdjustment,
) (*model.Contract, error) {
	var saved *model.Contract
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTarget(tx, target); err != nil {
			return err
		}
		var err error
		saved, err = saveVersioned(tx, c)
		if err != nil {
			return err
		}
		if len(adjustments) == 0 {
			return nil
		}
		records := make([]adjustmentRecord, 0, len(adjustments))
		for i := range adjustments {
			records = append(records, newAdjustmentRecord(&adjustments[i]))
		}
		return tx.Create(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func lockTarget(tx *gorm.DB, target *model.Contract) error {
	var rec contractRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "status", "version").
		Where("id = ?", target.ID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrStaleContract
	}
	if err != nil {
		return err
	}
	if rec.Version != target.Version || model.ContractStatus(rec.Status).IsClosed() {
		return ErrStaleContract
	}
	return nil
}

func saveVersioned(tx *gorm.DB, c *model.Contract) (*model.Contract, error) {
	rec := newContractRecord(c)
	rec.Version = c.Version + 1
	rec.UpdatedAt = time.Now().UTC()

	res := tx.Model(&contractRecord{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrStaleContract
	}
	return rec.toModel(), nil
}
