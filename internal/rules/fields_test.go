package rules

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

func TestFieldSet_JSONShape(t *testing.T) {
	fs := NewFieldSet()
	fs.SetAmount(FieldSecurityDepositPaid, dec("8000"))
	fs.SetAmount(FieldDepositRate, dec("0.25"))
	fs.SetDate(FieldStartDate, day(2024, time.March, 1))
	fs.SetFlag(FieldIsMonthlyAutoRenew, true)
	fs.Overrides[FieldSecurityDepositPaid] = true

	data, err := json.Marshal(fs)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "8000.00", raw["security_deposit_paid"])
	assert.Equal(t, "0.25", raw["deposit_rate"])
	assert.Equal(t, "2024-03-01T00:00:00Z", raw["start_date"])
	assert.Equal(t, true, raw["is_monthly_auto_renew"])
	assert.Equal(t, []any{"security_deposit_paid"}, raw["overrides"])

	var back FieldSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, fs.Equal(back))
}

func TestFieldSet_UnmarshalLenient(t *testing.T) {
	var fs FieldSet
	err := json.Unmarshal([]byte(`{"employee_level": 6000, "start_date": "2024-03-01", "end_date": null, "provisional_start_date": ""}`), &fs)
	require.NoError(t, err)
	assertAmount(t, fs, FieldEmployeeLevel, "6000")
	start, ok := fs.Date(FieldStartDate)
	require.True(t, ok)
	assert.Equal(t, day(2024, time.March, 1), start)
	assert.False(t, fs.Has(FieldEndDate))
	assert.False(t, fs.Has(FieldProvisionalStartDate))

	err = json.Unmarshal([]byte(`{"salary": "1"}`), &fs)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestFieldSet_ContractRoundTrip(t *testing.T) {
	provisional := day(2024, time.April, 3)
	contract := model.Contract{
		ContractType:         model.ContractTypeMaternityNurse,
		EmployeeLevel:        dec("6000"),
		DepositRate:          dec("0.25"),
		SecurityDepositPaid:  dec("8000"),
		ManagementFeeAmount:  dec("2000"),
		StartDate:            day(2024, time.April, 1),
		EndDate:              day(2024, time.April, 29),
		ProvisionalStartDate: &provisional,
		Overrides:            []string{"security_deposit_paid", "not_a_field"},
	}

	fs := FromContract(contract)
	assert.True(t, fs.Overridden(FieldSecurityDepositPaid))
	assert.Len(t, fs.Overrides, 1)

	var out model.Contract
	fs.ApplyTo(&out)
	assert.True(t, out.SecurityDepositPaid.Equal(contract.SecurityDepositPaid))
	assert.Equal(t, contract.EndDate, out.EndDate)
	require.NotNil(t, out.ProvisionalStartDate)
	assert.Equal(t, provisional, *out.ProvisionalStartDate)
	assert.Equal(t, []string{"security_deposit_paid"}, out.Overrides)
}

func TestParseTime(t *testing.T) {
	for _, raw := range []string{"2024-03-01", "2024-03-01T00:00:00Z", "2024-03-01T00:00:00", "2024-03-01 00:00"} {
		got, err := ParseTime(raw)
		require.NoError(t, err, raw)
		assert.True(t, got.Equal(day(2024, time.March, 1)), raw)
	}
	_, err := ParseTime("01/03/2024")
	assert.Error(t, err)
}
