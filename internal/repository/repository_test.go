package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&contractRecord{}, &billRecord{}, &adjustmentRecord{}))
	require.NoError(t, db.Table("customers").AutoMigrate(&partyRecord{}))
	require.NoError(t, db.Table("employees").AutoMigrate(&partyRecord{}))
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX uq_adjustment_source_kind ON financial_adjustments (source_trial_contract_id, kind)`).Error)
	return db
}

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func newTrial(customer uuid.UUID) *model.Contract {
	return &model.Contract{
		ContractType:      model.ContractTypeNannyTrial,
		CustomerID:        customer,
		EmployeeID:        uuid.New(),
		EmployeeLevel:     decimal.NewFromInt(7800),
		DailyRate:         decimal.NewFromInt(300),
		ManagementFeeRate: decimal.RequireFromString("0.1"),
		DepositAmount:     decimal.NewFromInt(3000),
		StartDate:         day(time.March, 1),
		EndDate:           day(time.March, 7),
		Status:            model.ContractStatusTrialActive,
		SigningStatus:     model.SigningStatusSigned,
	}
}

func TestContractRepository_CreateAndLoad(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	contract := newTrial(uuid.New())
	contract.Overrides = []string{"daily_rate"}
	contract.CustomerSignature = []byte("customer-sig")
	contract.CustomerInfo = &model.PartyInfo{Name: "Li Na", PhoneNumber: "13800000000", IDCardNumber: "110101", Address: "1 Garden Road"}

	created, err := repo.Create(ctx, contract)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, 1, created.Version)

	loaded, err := repo.Load(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractTypeNannyTrial, loaded.ContractType)
	assert.True(t, loaded.DailyRate.Equal(decimal.NewFromInt(300)))
	assert.True(t, loaded.ManagementFeeRate.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, []string{"daily_rate"}, loaded.Overrides)
	assert.Equal(t, []byte("customer-sig"), loaded.CustomerSignature)
	require.NotNil(t, loaded.CustomerInfo)
	assert.Equal(t, "Li Na", loaded.CustomerInfo.Name)
	assert.Nil(t, loaded.EmployeeInfo)
	assert.True(t, loaded.StartDate.Equal(day(time.March, 1)))

	_, err = repo.Load(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestContractRepository_SaveChecksVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTrial(uuid.New()))
	require.NoError(t, err)

	first := created.Clone()
	first.IntroductionFee = decimal.NewFromInt(100)
	saved, err := repo.Save(ctx, &first)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)

	stale := created.Clone()
	stale.IntroductionFee = decimal.NewFromInt(999)
	_, err = repo.Save(ctx, &stale)
	assert.ErrorIs(t, err, ErrStaleContract)

	loaded, err := repo.Load(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IntroductionFee.Equal(decimal.NewFromInt(100)))
}

func TestContractRepository_UpdateRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTrial(uuid.New()))
	require.NoError(t, err)

	saved, err := repo.Update(ctx, created.ID, func(c *model.Contract) error {
		c.EmployeeSignature = []byte("employee-sig")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
	assert.Equal(t, []byte("employee-sig"), saved.EmployeeSignature)

	boom := errors.New("boom")
	_, err = repo.Update(ctx, created.ID, func(c *model.Contract) error {
		c.Status = model.ContractStatusTerminated
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loaded, err := repo.Load(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusTrialActive, loaded.Status)
	assert.Equal(t, 2, loaded.Version)

	_, err = repo.Update(ctx, uuid.New(), func(*model.Contract) error { return nil })
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

type conversionFixture struct {
	repo   *ContractRepository
	trial  *model.Contract
	formal *model.Contract
	bill   uuid.UUID
}

func setupConversion(t *testing.T, db *gorm.DB) conversionFixture {
	t.Helper()
	ctx := context.Background()
	repo := NewContractRepository(db)
	customer := uuid.New()

	trial, err := repo.Create(ctx, newTrial(customer))
	require.NoError(t, err)
	formal, err := repo.Create(ctx, &model.Contract{
		ContractType:  model.ContractTypeNanny,
		CustomerID:    customer,
		EmployeeID:    trial.EmployeeID,
		EmployeeLevel: decimal.NewFromInt(7800),
		StartDate:     day(time.March, 10),
		EndDate:       day(time.September, 9),
		Status:        model.ContractStatusPending,
		SigningStatus: model.SigningStatusSigned,
	})
	require.NoError(t, err)

	bill := billRecord{
		ID:         uuid.New(),
		ContractID: formal.ID,
		CycleStart: day(time.March, 10),
		CycleEnd:   day(time.April, 9),
		Amount:     decimal.NewFromInt(7800),
		Status:     string(model.BillStatusUnpaid),
	}
	require.NoError(t, db.Create(&bill).Error)
	return conversionFixture{repo: repo, trial: trial, formal: formal, bill: bill.ID}
}

func (f conversionFixture) adjustments() []model.FinancialAdjustment {
	now := day(time.March, 10)
	return []model.FinancialAdjustment{
		{
			Kind:                  model.AdjustmentKindTrialServiceFee,
			Amount:                decimal.NewFromInt(3000),
			Description:           "Trial service fee: 10 days x 300.00",
			TargetBillID:          f.bill,
			TargetContractID:      f.formal.ID,
			SourceTrialContractID: f.trial.ID,
			CreatedAt:             now,
		},
		{
			Kind:                  model.AdjustmentKindManagementFee,
			Amount:                decimal.NewFromInt(300),
			Description:           "Trial management fee: 10% of 3000.00",
			TargetBillID:          f.bill,
			TargetContractID:      f.formal.ID,
			SourceTrialContractID: f.trial.ID,
			CreatedAt:             now,
		},
	}
}

func (f conversionFixture) converted() *model.Contract {
	c := f.trial.Clone()
	c.Status = model.ContractStatusTrialSucceeded
	c.ConvertedToID = &f.formal.ID
	return &c
}

func TestContractRepository_SaveWithAdjustments(t *testing.T) {
	db := setupTestDB(t)
	f := setupConversion(t, db)
	ctx := context.Background()

	saved, err := f.repo.SaveWithAdjustments(ctx, f.converted(), f.formal, f.adjustments())
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusTrialSucceeded, saved.Status)
	require.NotNil(t, saved.ConvertedToID)
	assert.Equal(t, f.formal.ID, *saved.ConvertedToID)

	listed, err := NewAdjustmentRepository(db).ListByContract(ctx, f.formal.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, model.AdjustmentKindManagementFee, listed[0].Kind)
	assert.Equal(t, model.AdjustmentKindTrialServiceFee, listed[1].Kind)
	for _, a := range listed {
		assert.Equal(t, f.bill, a.TargetBillID)
		assert.Equal(t, f.trial.ID, a.SourceTrialContractID)
	}

	_, err = f.repo.SaveWithAdjustments(ctx, f.converted(), f.formal, f.adjustments())
	assert.ErrorIs(t, err, ErrStaleContract)

	listed, err = NewAdjustmentRepository(db).ListByContract(ctx, f.formal.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestContractRepository_SaveWithAdjustmentsIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	f := setupConversion(t, db)
	ctx := context.Background()

	injected := errors.New("ledger unavailable")
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_adjustments", func(tx *gorm.DB) {
		if tx.Statement.Table == "financial_adjustments" {
			_ = tx.AddError(injected)
		}
	}))

	_, err := f.repo.SaveWithAdjustments(ctx, f.converted(), f.formal, f.adjustments())
	assert.ErrorIs(t, err, injected)

	loaded, err := f.repo.Load(ctx, f.trial.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusTrialActive, loaded.Status)
	assert.Nil(t, loaded.ConvertedToID)
	assert.Equal(t, f.trial.Version, loaded.Version)

	var count int64
	require.NoError(t, db.Model(&adjustmentRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestContractRepository_SaveWithAdjustmentsRechecksTarget(t *testing.T) {
	db := setupTestDB(t)
	f := setupConversion(t, db)
	ctx := context.Background()

	require.NoError(t, db.Model(&contractRecord{}).
		Where("id = ?", f.formal.ID).
		Update("status", string(model.ContractStatusTerminated)).Error)

	_, err := f.repo.SaveWithAdjustments(ctx, f.converted(), f.formal, f.adjustments())
	assert.ErrorIs(t, err, ErrStaleContract)

	loaded, err := f.repo.Load(ctx, f.trial.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusTrialActive, loaded.Status)

	var count int64
	require.NoError(t, db.Model(&adjustmentRecord{}).Count(&count).Error)
	assert.Zero(t, count)

	moved := f.formal.Clone()
	moved.Version++
	_, err = f.repo.SaveWithAdjustments(ctx, f.converted(), &moved, f.adjustments())
	assert.ErrorIs(t, err, ErrStaleContract)
}

func TestBillRepository_EarliestUnpaidBill(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBillRepository(db)
	ctx := context.Background()
	contractID := uuid.New()

	bills := []billRecord{
		{ID: uuid.New(), ContractID: contractID, CycleStart: day(time.March, 10), CycleEnd: day(time.April, 9), Status: string(model.BillStatusPaid)},
		{ID: uuid.New(), ContractID: contractID, CycleStart: day(time.May, 10), CycleEnd: day(time.June, 9), Status: string(model.BillStatusUnpaid)},
		{ID: uuid.New(), ContractID: contractID, CycleStart: day(time.April, 10), CycleEnd: day(time.May, 9), Status: string(model.BillStatusUnpaid)},
		{ID: uuid.New(), ContractID: uuid.New(), CycleStart: day(time.January, 1), CycleEnd: day(time.January, 31), Status: string(model.BillStatusUnpaid)},
	}
	require.NoError(t, db.Create(&bills).Error)

	bill, err := repo.EarliestUnpaidBill(ctx, contractID)
	require.NoError(t, err)
	assert.Equal(t, bills[2].ID, bill.ID)
	assert.Equal(t, model.BillStatusUnpaid, bill.Status)

	_, err = repo.EarliestUnpaidBill(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPartyRepository_Search(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPartyRepository(db)
	ctx := context.Background()

	customers := []partyRecord{
		{ID: uuid.New(), Name: "Wang Fang", PhoneNumber: "13911112222"},
		{ID: uuid.New(), Name: "Zhang Wei", PhoneNumber: "13833334444"},
		{ID: uuid.New(), Name: "Wang Lei", PhoneNumber: "13755556666"},
	}
	require.NoError(t, db.Table("customers").Create(&customers).Error)
	require.NoError(t, db.Table("employees").Create(&partyRecord{ID: uuid.New(), Name: "Wang Min", PhoneNumber: "13600000000"}).Error)

	found, err := repo.Search(ctx, model.PartyRoleCustomer, "wang", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Wang Fang", found[0].Name)
	assert.Equal(t, "Wang Lei", found[1].Name)
	assert.Equal(t, model.PartyRoleCustomer, found[0].Role)

	found, err = repo.Search(ctx, model.PartyRoleCustomer, "3333", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Zhang Wei", found[0].Name)

	found, err = repo.Search(ctx, model.PartyRoleEmployee, "", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = repo.Search(ctx, model.PartyRole("agent"), "", 0)
	assert.Error(t, err)
}

func TestPartyRepository_SearchMatchesWildcardsLiterally(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPartyRepository(db)
	ctx := context.Background()

	customers := []partyRecord{
		{ID: uuid.New(), Name: "Chen 100% Care", PhoneNumber: "13900000001"},
		{ID: uuid.New(), Name: "Chen 1000 Homes", PhoneNumber: "13900000002"},
		{ID: uuid.New(), Name: "Liu_Yang", PhoneNumber: "13900000003"},
		{ID: uuid.New(), Name: "Liu Yang", PhoneNumber: "13900000004"},
	}
	require.NoError(t, db.Table("customers").Create(&customers).Error)

	found, err := repo.Search(ctx, model.PartyRoleCustomer, "100%", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Chen 100% Care", found[0].Name)

	found, err = repo.Search(ctx, model.PartyRoleCustomer, "liu_", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Liu_Yang", found[0].Name)

	found, err = repo.Search(ctx, model.PartyRoleCustomer, "%", 0)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
