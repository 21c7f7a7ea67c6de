// Package validation checks a contract field set before it may be persisted or
// move to another state. It never mutates its input.
package validation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nurpe/housekeeping-contracts/internal/model"
	"github.com/nurpe/housekeeping-contracts/internal/rules"
)

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Result struct {
	OK     bool         `json:"ok"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Error is the failed Result as an error value, for callers that only branch on failure.
type Error struct {
	Errors []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Reason))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Err returns nil for a passing result.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &Error{Errors: r.Errors}
}

const (
	ReasonRequired           = "is required"
	ReasonNegative           = "must not be negative"
	ReasonPositive           = "must be greater than zero"
	ReasonRateRange          = "must be between 0 and 1"
	ReasonEndBeforeStart     = "must not be before start_date"
	ReasonMutuallyExclusive  = "introduction_fee and management_fee_rate cannot both be set"
	ReasonDepositBelowLevel  = "must not be less than employee_level"
	ReasonDepositRateTooHigh = "must be less than 1"
)

type Gate struct {
	registry *rules.Registry
}

func NewGate(registry *rules.Registry) *Gate {
	if registry == nil {
		registry = rules.DefaultRegistry()
	}
	return &Gate{registry: registry}
}

// Validate reports every offending field at once. An unregistered type is the only
// case returned as an error rather than in the result.
func (g *Gate) Validate(t model.ContractType, fs rules.FieldSet) (Result, error) {
	rs, err := g.registry.Get(t)
	if err != nil {
		return Result{}, err
	}

	var errs []FieldError
	add := func(f rules.Field, reason string) {
		errs = append(errs, FieldError{Field: string(f), Reason: reason})
	}

	for _, f := range rs.Required {
		if !fs.Has(f) {
			add(f, ReasonRequired)
		}
	}

	if level, ok := fs.Amount(rules.FieldEmployeeLevel); ok && !level.IsPositive() {
		add(rules.FieldEmployeeLevel, ReasonPositive)
	}

	for _, f := range []rules.Field{
		rules.FieldDailyRate,
		rules.FieldManagementFeeAmount,
		rules.FieldSecurityDepositPaid,
		rules.FieldIntroductionFee,
		rules.FieldDepositAmount,
	} {
		if v, ok := fs.Amount(f); ok && v.IsNegative() {
			add(f, ReasonNegative)
		}
	}

	one := decimal.NewFromInt(1)
	for _, f := range []rules.Field{rules.FieldManagementFeeRate, rules.FieldDepositRate} {
		if v, ok := fs.Amount(f); ok && (v.IsNegative() || v.GreaterThan(one)) {
			add(f, ReasonRateRange)
		}
	}

	start, hasStart := fs.Date(rules.FieldStartDate)
	end, hasEnd := fs.Date(rules.FieldEndDate)
	if hasStart && hasEnd && end.Before(start) {
		add(rules.FieldEndDate, ReasonEndBeforeStart)
	}

	switch t {
	case model.ContractTypeNannyTrial:
		intro := fs.AmountOr(rules.FieldIntroductionFee, decimal.Zero)
		rate := fs.AmountOr(rules.FieldManagementFeeRate, decimal.Zero)
		if intro.IsPositive() && rate.IsPositive() {
			add(rules.FieldIntroductionFee, ReasonMutuallyExclusive)
			add(rules.FieldManagementFeeRate, ReasonMutuallyExclusive)
		}
	case model.ContractTypeMaternityNurse:
		level, hasLevel := fs.Amount(rules.FieldEmployeeLevel)
		paid, hasPaid := fs.Amount(rules.FieldSecurityDepositPaid)
		if hasLevel && hasPaid && paid.LessThan(level) {
			add(rules.FieldSecurityDepositPaid, ReasonDepositBelowLevel)
		}
		if rate, ok := fs.Amount(rules.FieldDepositRate); ok && rate.Equal(one) {
			add(rules.FieldDepositRate, ReasonDepositRateTooHigh)
		}
	}

	return Result{OK: len(errs) == 0, Errors: errs}, nil
}

// Fields returns the names of the offending fields in order of first appearance.
func (r Result) Fields() []string {
	seen := make(map[string]bool, len(r.Errors))
	var out []string
	for _, fe := range r.Errors {
		if !seen[fe.Field] {
			seen[fe.Field] = true
			out = append(out, fe.Field)
		}
	}
	return out
}
