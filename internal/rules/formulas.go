package rules

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

var (
	nannyManagementFeeRate        = decimal.RequireFromString("0.10")
	substitutionManagementFeeRate = decimal.RequireFromString("0.20")
	trialWorkingDaysPerMonth      = decimal.NewFromInt(26)
	depositRateSnapTolerance      = decimal.RequireFromString("0.001")
)

const (
	maternityServiceDays   = 26
	trialDaysOnCreate      = 6
	trialDaysOnEdit        = 7
	substitutionStartHour  = 6
	substitutionStartMin   = 30
	substitutionWindowSpan = time.Hour
)

func nannyRuleSet() *RuleSet {
	return &RuleSet{
		Type: model.ContractTypeNanny,
		Rules: []Rule{
			{
				Target:    FieldManagementFeeAmount,
				DependsOn: []Field{FieldEmployeeLevel, FieldManagementFeeRate},
				Amount:    levelTimesRate(nannyManagementFeeRate),
			},
			{
				Target:    FieldSecurityDepositPaid,
				DependsOn: []Field{FieldEmployeeLevel},
				Amount: func(fs FieldSet, _ Env) (decimal.Decimal, bool) {
					return fs.Amount(FieldEmployeeLevel)
				},
			},
			{
				Target:    FieldEndDate,
				DependsOn: []Field{FieldStartDate, FieldIsMonthlyAutoRenew},
				Date: func(fs FieldSet, _ Env) (time.Time, bool) {
					start, ok := fs.Date(FieldStartDate)
					if !ok || !fs.Flag(FieldIsMonthlyAutoRenew) {
						return time.Time{}, false
					}
					return lastDayOfMonth(start), true
				},
			},
		},
		Required: []Field{FieldEmployeeLevel, FieldStartDate, FieldEndDate},
		Overridable: []Override{
			{Field: FieldSecurityDepositPaid, ReleasedBy: []Field{FieldEmployeeLevel}},
		},
		Granularity: GranularityDate,
		Defaults: func(env Env) FieldSet {
			fs := NewFieldSet()
			fs.SetAmount(FieldManagementFeeRate, nannyManagementFeeRate)
			fs.SetAmount(FieldDepositAmount, env.depositAmount())
			fs.SetFlag(FieldIsMonthlyAutoRenew, false)
			return fs
		},
	}
}

func nannyTrialRuleSet() *RuleSet {
	return &RuleSet{
		Type: model.ContractTypeNannyTrial,
		Rules: []Rule{
			{
				Target:    FieldDailyRate,
				DependsOn: []Field{FieldEmployeeLevel},
				Amount: func(fs FieldSet, _ Env) (decimal.Decimal, bool) {
					level, ok := fs.Amount(FieldEmployeeLevel)
					if !ok {
						return decimal.Zero, false
					}
					return level.Div(trialWorkingDaysPerMonth), true
				},
			},
			{
				Target:    FieldEndDate,
				DependsOn: []Field{FieldStartDate},
				Date: func(fs FieldSet, env Env) (time.Time, bool) {
					start, ok := fs.Date(FieldStartDate)
					if !ok {
						return time.Time{}, false
					}
					return start.AddDate(0, 0, TrialLengthDays(env.Mode)), true
				},
			},
		},
		Required: []Field{FieldEmployeeLevel, FieldStartDate, FieldEndDate},
		Overridable: []Override{
			{Field: FieldDailyRate, ReleasedBy: []Field{FieldEmployeeLevel}},
		},
		Granularity: GranularityDate,
		Defaults: func(Env) FieldSet {
			fs := NewFieldSet()
			fs.SetAmount(FieldIntroductionFee, decimal.Zero)
			fs.SetAmount(FieldManagementFeeRate, decimal.Zero)
			return fs
		},
	}
}

// TrialLengthDays is the offset from start to end date of a trial contract.
// The creation form uses six days and the edit form seven; both are kept.
func TrialLengthDays(mode Mode) int {
	if mode == ModeEdit {
		return trialDaysOnEdit
	}
	return trialDaysOnCreate
}

func maternityNurseRuleSet() *RuleSet {
	return &RuleSet{
		Type: model.ContractTypeMaternityNurse,
		Rules: []Rule{
			{
				Target:    FieldSecurityDepositPaid,
				DependsOn: []Field{FieldEmployeeLevel, FieldDepositRate},
				Amount: func(fs FieldSet, _ Env) (decimal.Decimal, bool) {
					level, ok := fs.Amount(FieldEmployeeLevel)
					if !ok {
						return decimal.Zero, false
					}
					rate := fs.AmountOr(FieldDepositRate, decimal.Zero)
					remainder := decimal.NewFromInt(1).Sub(rate)
					if !remainder.IsPositive() {
						return decimal.Zero, false
					}
					return level.Div(remainder), true
				},
			},
			{
				// Reverse direction: only when the deposit itself was typed in.
				Target:    FieldDepositRate,
				DependsOn: []Field{FieldSecurityDepositPaid, FieldEmployeeLevel},
				When: func(origin Field, fs FieldSet) bool {
					return origin == FieldSecurityDepositPaid || fs.Overridden(FieldSecurityDepositPaid)
				},
				Amount: func(fs FieldSet, env Env) (decimal.Decimal, bool) {
					level, ok := fs.Amount(FieldEmployeeLevel)
					if !ok {
						return decimal.Zero, false
					}
					paid, ok := fs.Amount(FieldSecurityDepositPaid)
					if !ok || paid.LessThan(level) {
						return decimal.Zero, false
					}
					rate := decimal.NewFromInt(1).Sub(level.Div(paid))
					return snapRate(rate, env.canonicalRates()), true
				},
			},
			{
				Target:    FieldManagementFeeAmount,
				DependsOn: []Field{FieldSecurityDepositPaid, FieldDepositRate},
				Amount: func(fs FieldSet, _ Env) (decimal.Decimal, bool) {
					paid, ok := fs.Amount(FieldSecurityDepositPaid)
					if !ok {
						return decimal.Zero, false
					}
					return paid.Mul(fs.AmountOr(FieldDepositRate, decimal.Zero)), true
				},
			},
			{
				Target:    FieldEndDate,
				DependsOn: []Field{FieldProvisionalStartDate},
				Date: func(fs FieldSet, _ Env) (time.Time, bool) {
					start, ok := fs.Date(FieldProvisionalStartDate)
					if !ok {
						return time.Time{}, false
					}
					return start.AddDate(0, 0, maternityServiceDays), true
				},
			},
		},
		Required: []Field{FieldEmployeeLevel, FieldStartDate, FieldEndDate, FieldProvisionalStartDate},
		Overridable: []Override{
			{Field: FieldSecurityDepositPaid, ReleasedBy: []Field{FieldDepositRate}},
		},
		Granularity: GranularityDate,
		Defaults: func(env Env) FieldSet {
			fs := NewFieldSet()
			fs.SetAmount(FieldDepositAmount, env.depositAmount())
			return fs
		},
	}
}

func externalSubstitutionRuleSet() *RuleSet {
	return &RuleSet{
		Type: model.ContractTypeExternalSubstitution,
		Rules: []Rule{
			{
				Target:    FieldManagementFeeAmount,
				DependsOn: []Field{FieldEmployeeLevel, FieldManagementFeeRate},
				Amount:    levelTimesRate(substitutionManagementFeeRate),
			},
		},
		Required:    []Field{FieldEmployeeLevel, FieldStartDate, FieldEndDate},
		Granularity: GranularityTimestamp,
		Defaults: func(env Env) FieldSet {
			fs := NewFieldSet()
			fs.SetAmount(FieldManagementFeeRate, substitutionManagementFeeRate)
			start, end := SubstitutionWindow(env.Now, env.location())
			fs.SetDate(FieldStartDate, start)
			fs.SetDate(FieldEndDate, end)
			return fs
		},
	}
}

// SubstitutionWindow is the default same-day service window for an external
// substitution created at now: 06:30 to 07:30 local time.
func SubstitutionWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, substitutionStartHour, substitutionStartMin, 0, 0, loc)
	return start, start.Add(substitutionWindowSpan)
}

func levelTimesRate(defaultRate decimal.Decimal) func(FieldSet, Env) (decimal.Decimal, bool) {
	return func(fs FieldSet, _ Env) (decimal.Decimal, bool) {
		level, ok := fs.Amount(FieldEmployeeLevel)
		if !ok {
			return decimal.Zero, false
		}
		return level.Mul(fs.AmountOr(FieldManagementFeeRate, defaultRate)), true
	}
}

func snapRate(rate decimal.Decimal, canonical []decimal.Decimal) decimal.Decimal {
	for _, c := range canonical {
		if rate.Sub(c).Abs().LessThanOrEqual(depositRateSnapTolerance) {
			return c
		}
	}
	return rate
}

func lastDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location())
}
