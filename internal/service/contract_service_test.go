package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/housekeeping-contracts/internal/model"
	"github.com/nurpe/housekeeping-contracts/internal/rules"
	"github.com/nurpe/housekeeping-contracts/internal/validation"
)

func newContractService(store ContractStore) *ContractService {
	svc := NewContractService(store, rules.NewEngine(nil), validation.NewGate(nil), nil)
	svc.now = fixedClock(time.Date(2024, time.February, 20, 9, 0, 0, 0, time.UTC))
	return svc
}

func nannyContract() model.Contract {
	return model.Contract{
		ContractType:        model.ContractTypeNanny,
		CustomerID:          uuid.New(),
		EmployeeID:          uuid.New(),
		EmployeeLevel:       dec("6000"),
		ManagementFeeRate:   dec("0.10"),
		ManagementFeeAmount: dec("600"),
		SecurityDepositPaid: dec("6000"),
		DepositAmount:       dec("3000"),
		StartDate:           day(time.May, 1),
		EndDate:             day(time.October, 31),
		Status:              model.ContractStatusUnsigned,
		SigningStatus:       model.SigningStatusUnsigned,
	}
}

func TestContractService_CreateTrial(t *testing.T) {
	store := newMemoryStore()
	svc := newContractService(store)

	fields := rules.NewFieldSet()
	fields.SetAmount(rules.FieldEmployeeLevel, dec("7800"))
	fields.SetDate(rules.FieldStartDate, day(time.March, 1))

	created, err := svc.Create(context.Background(), CreateContractInput{
		Principal:    staff,
		ContractType: model.ContractTypeNannyTrial,
		CustomerID:   uuid.New(),
		EmployeeID:   uuid.New(),
		Fields:       fields,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusUnsigned, created.Status)
	assert.Equal(t, model.SigningStatusUnsigned, created.SigningStatus)
	assert.True(t, created.DailyRate.Equal(dec("300")))
	assert.Equal(t, day(time.March, 7), created.EndDate)
	assert.Equal(t, 1, created.Version)
}

func TestContractService_CreateRejectsInvalid(t *testing.T) {
	svc := newContractService(newMemoryStore())

	fields := rules.NewFieldSet()
	fields.SetAmount(rules.FieldEmployeeLevel, dec("7800"))
	fields.SetAmount(rules.FieldIntroductionFee, dec("500"))
	fields.SetAmount(rules.FieldManagementFeeRate, dec("0.1"))
	fields.SetDate(rules.FieldStartDate, day(time.March, 1))

	_, err := svc.Create(context.Background(), CreateContractInput{
		Principal:    admin,
		ContractType: model.ContractTypeNannyTrial,
		CustomerID:   uuid.New(),
		EmployeeID:   uuid.New(),
		Fields:       fields,
	})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Errors, 2)
}

func TestContractService_CreateRequiresBackOffice(t *testing.T) {
	svc := newContractService(newMemoryStore())
	_, err := svc.Create(context.Background(), CreateContractInput{
		Principal:    partyPrincipal(model.UserRoleCustomer, uuid.New()),
		ContractType: model.ContractTypeNanny,
		CustomerID:   uuid.New(),
		EmployeeID:   uuid.New(),
		Fields:       rules.NewFieldSet(),
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Create(context.Background(), CreateContractInput{
		Principal:    admin,
		ContractType: model.ContractTypeNanny,
		Fields:       rules.NewFieldSet(),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestContractService_UpdateFieldsDerives(t *testing.T) {
	store := newMemoryStore()
	stored := store.put(nannyContract())
	svc := newContractService(store)

	edit := rules.NewFieldSet()
	edit.SetAmount(rules.FieldEmployeeLevel, dec("7000"))

	saved, err := svc.UpdateFields(context.Background(), UpdateContractInput{
		Principal:  staff,
		ContractID: stored.ID,
		Version:    stored.Version,
		Fields:     edit,
	})
	require.NoError(t, err)
	assert.True(t, saved.ManagementFeeAmount.Equal(dec("700")))
	assert.True(t, saved.SecurityDepositPaid.Equal(dec("7000")))
	assert.Equal(t, 2, saved.Version)
}

func TestContractService_UpdateFieldsKeepsSuppliedDates(t *testing.T) {
	store := newMemoryStore()
	stored := store.put(model.Contract{
		ContractType:      model.ContractTypeNannyTrial,
		CustomerID:        uuid.New(),
		EmployeeID:        uuid.New(),
		EmployeeLevel:     dec("7800"),
		DailyRate:         dec("300"),
		IntroductionFee:   dec("0"),
		ManagementFeeRate: dec("0"),
		StartDate:         day(time.March, 1),
		EndDate:           day(time.March, 7),
		Status:            model.ContractStatusUnsigned,
		SigningStatus:     model.SigningStatusUnsigned,
	})
	svc := newContractService(store)

	edit := rules.NewFieldSet()
	edit.SetDate(rules.FieldStartDate, day(time.March, 2))
	edit.SetDate(rules.FieldEndDate, day(time.March, 20))

	saved, err := svc.UpdateFields(context.Background(), UpdateContractInput{
		Principal:  staff,
		ContractID: stored.ID,
		Fields:     edit,
	})
	require.NoError(t, err)
	assert.Equal(t, day(time.March, 2), saved.StartDate)
	assert.Equal(t, day(time.March, 20), saved.EndDate)
}

func TestContractService_UpdateFieldsRecomputesOwnedFee(t *testing.T) {
	store := newMemoryStore()
	stored := store.put(nannyContract())
	svc := newContractService(store)

	edit := rules.NewFieldSet()
	edit.SetAmount(rules.FieldManagementFeeAmount, dec("1"))
	edit.Overrides[rules.FieldManagementFeeAmount] = true

	saved, err := svc.UpdateFields(context.Background(), UpdateContractInput{
		Principal:  staff,
		ContractID: stored.ID,
		Fields:     edit,
	})
	require.NoError(t, err)
	assert.True(t, saved.ManagementFeeAmount.Equal(dec("600")))
	assert.Empty(t, saved.Overrides)
}

func TestContractService_UpdateFieldsTracksOverrides(t *testing.T) {
	store := newMemoryStore()
	provisional := day(time.April, 3)
	stored := store.put(model.Contract{
		ContractType:         model.ContractTypeMaternityNurse,
		CustomerID:           uuid.New(),
		EmployeeID:           uuid.New(),
		EmployeeLevel:        dec("6000"),
		DepositRate:          dec("0.25"),
		SecurityDepositPaid:  dec("8000"),
		ManagementFeeAmount:  dec("2000"),
		StartDate:            day(time.April, 1),
		EndDate:              day(time.April, 29),
		ProvisionalStartDate: &provisional,
		Status:               model.ContractStatusUnsigned,
		SigningStatus:        model.SigningStatusUnsigned,
	})
	svc := newContractService(store)

	edit := rules.NewFieldSet()
	edit.SetAmount(rules.FieldSecurityDepositPaid, dec("7999"))

	saved, err := svc.UpdateFields(context.Background(), UpdateContractInput{
		Principal:  admin,
		ContractID: stored.ID,
		Fields:     edit,
	})
	require.NoError(t, err)
	assert.True(t, saved.DepositRate.Equal(dec("0.25")))
	assert.True(t, saved.ManagementFeeAmount.Equal(dec("1999.75")))
	assert.Equal(t, []string{"security_deposit_paid"}, saved.Overrides)
}

func TestContractService_UpdateFieldsConflicts(t *testing.T) {
	store := newMemoryStore()
	stored := store.put(nannyContract())
	svc := newContractService(store)

	_, err := svc.UpdateFields(context.Background(), UpdateContractInput{
		Principal:  staff,
		ContractID: stored.ID,
		Version:    stored.Version + 3,
		Fields:     rules.NewFieldSet(),
	})
	assert.ErrorIs(t, err, ErrConflict)

	signed := nannyContract()
	signed.SigningStatus = model.SigningStatusCustomerSigned
	signed.CustomerSignature = []byte("sig")
	signedStored := store.put(signed)
	_, err = svc.UpdateFields(context.Background(), UpdateContractInput{
		Principal:  staff,
		ContractID: signedStored.ID,
		Fields:     rules.NewFieldSet(),
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.UpdateFields(context.Background(), UpdateContractInput{
		Principal:  staff,
		ContractID: uuid.New(),
		Fields:     rules.NewFieldSet(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContractService_GetScopesParties(t *testing.T) {
	store := newMemoryStore()
	stored := store.put(nannyContract())
	svc := newContractService(store)

	got, err := svc.Get(context.Background(), stored.ID, partyPrincipal(model.UserRoleEmployee, stored.ID))
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)

	_, err = svc.Get(context.Background(), stored.ID, partyPrincipal(model.UserRoleEmployee, uuid.New()))
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestContractService_FailTrial(t *testing.T) {
	store := newMemoryStore()
	svc := newContractService(store)

	trial := store.put(model.Contract{
		ContractType: model.ContractTypeNannyTrial,
		Status:       model.ContractStatusTrialActive,
		StartDate:    day(time.March, 1),
		EndDate:      day(time.March, 7),
	})
	failed, err := svc.FailTrial(context.Background(), trial.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusTerminated, failed.Status)

	_, err = svc.FailTrial(context.Background(), trial.ID, staff)
	assert.ErrorIs(t, err, ErrConflict)

	nanny := store.put(nannyContract())
	_, err = svc.FailTrial(context.Background(), nanny.ID, staff)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestContractService_Derive(t *testing.T) {
	svc := newContractService(newMemoryStore())
	fields := rules.NewFieldSet()
	fields.SetAmount(rules.FieldEmployeeLevel, dec("6000"))
	fields.SetAmount(rules.FieldDepositRate, dec("0.25"))

	out, err := svc.Derive(DeriveInput{
		ContractType: model.ContractTypeMaternityNurse,
		Fields:       fields,
		Changed:      rules.FieldDepositRate,
		Mode:         rules.ModeEdit,
	})
	require.NoError(t, err)
	assert.Equal(t, "8000.00", out.Amounts[rules.FieldSecurityDepositPaid].StringFixed(2))
	assert.Equal(t, "2000.00", out.Amounts[rules.FieldManagementFeeAmount].StringFixed(2))
}
