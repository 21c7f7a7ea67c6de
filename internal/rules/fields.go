package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

type Field string

const (
	FieldEmployeeLevel        Field = "employee_level"
	FieldDailyRate            Field = "daily_rate"
	FieldManagementFeeRate    Field = "management_fee_rate"
	FieldManagementFeeAmount  Field = "management_fee_amount"
	FieldDepositRate          Field = "deposit_rate"
	FieldSecurityDepositPaid  Field = "security_deposit_paid"
	FieldIntroductionFee      Field = "introduction_fee"
	FieldDepositAmount        Field = "deposit_amount"
	FieldStartDate            Field = "start_date"
	FieldEndDate              Field = "end_date"
	FieldProvisionalStartDate Field = "provisional_start_date"
	FieldIsMonthlyAutoRenew   Field = "is_monthly_auto_renew"
)

type Kind int

const (
	KindMoney Kind = iota + 1
	KindRate
	KindDate
	KindFlag
)

var fieldKinds = map[Field]Kind{
	FieldEmployeeLevel:        KindMoney,
	FieldDailyRate:            KindMoney,
	FieldManagementFeeRate:    KindRate,
	FieldManagementFeeAmount:  KindMoney,
	FieldDepositRate:          KindRate,
	FieldSecurityDepositPaid:  KindMoney,
	FieldIntroductionFee:      KindMoney,
	FieldDepositAmount:        KindMoney,
	FieldStartDate:            KindDate,
	FieldEndDate:              KindDate,
	FieldProvisionalStartDate: KindDate,
	FieldIsMonthlyAutoRenew:   KindFlag,
}

// Kind returns 0 for unknown fields.
func (f Field) Kind() Kind {
	return fieldKinds[f]
}

func ParseField(raw string) (Field, error) {
	f := Field(strings.TrimSpace(raw))
	if f.Kind() == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, raw)
	}
	return f, nil
}

// FieldSet is a partial view of a contract's editable and derived values.
// Money and rate fields share Amounts; Kind tells them apart.
type FieldSet struct {
	Amounts   map[Field]decimal.Decimal
	Dates     map[Field]time.Time
	Flags     map[Field]bool
	Overrides map[Field]bool
}

func NewFieldSet() FieldSet {
	return FieldSet{
		Amounts:   map[Field]decimal.Decimal{},
		Dates:     map[Field]time.Time{},
		Flags:     map[Field]bool{},
		Overrides: map[Field]bool{},
	}
}

func (fs FieldSet) Amount(f Field) (decimal.Decimal, bool) {
	v, ok := fs.Amounts[f]
	return v, ok
}

func (fs FieldSet) AmountOr(f Field, def decimal.Decimal) decimal.Decimal {
	if v, ok := fs.Amounts[f]; ok {
		return v
	}
	return def
}

func (fs FieldSet) SetAmount(f Field, v decimal.Decimal) {
	fs.Amounts[f] = v
}

func (fs FieldSet) Date(f Field) (time.Time, bool) {
	v, ok := fs.Dates[f]
	if !ok || v.IsZero() {
		return time.Time{}, false
	}
	return v, true
}

func (fs FieldSet) SetDate(f Field, v time.Time) {
	fs.Dates[f] = v
}

func (fs FieldSet) Flag(f Field) bool {
	return fs.Flags[f]
}

func (fs FieldSet) SetFlag(f Field, v bool) {
	fs.Flags[f] = v
}

func (fs FieldSet) Has(f Field) bool {
	switch f.Kind() {
	case KindMoney, KindRate:
		_, ok := fs.Amounts[f]
		return ok
	case KindDate:
		_, ok := fs.Date(f)
		return ok
	case KindFlag:
		_, ok := fs.Flags[f]
		return ok
	default:
		return false
	}
}

func (fs FieldSet) Overridden(f Field) bool {
	return fs.Overrides[f]
}

func (fs FieldSet) Clone() FieldSet {
	out := NewFieldSet()
	for k, v := range fs.Amounts {
		out.Amounts[k] = v
	}
	for k, v := range fs.Dates {
		out.Dates[k] = v
	}
	for k, v := range fs.Flags {
		out.Flags[k] = v
	}
	for k, v := range fs.Overrides {
		if v {
			out.Overrides[k] = true
		}
	}
	return out
}

// Merge copies every value present in other over fs.
func (fs FieldSet) Merge(other FieldSet) {
	for k, v := range other.Amounts {
		fs.Amounts[k] = v
	}
	for k, v := range other.Dates {
		fs.Dates[k] = v
	}
	for k, v := range other.Flags {
		fs.Flags[k] = v
	}
	for k, v := range other.Overrides {
		if v {
			fs.Overrides[k] = true
		} else {
			delete(fs.Overrides, k)
		}
	}
}

// CopyField copies f from other, if other has it.
func (fs FieldSet) CopyField(other FieldSet, f Field) {
	switch f.Kind() {
	case KindMoney, KindRate:
		if v, ok := other.Amounts[f]; ok {
			fs.Amounts[f] = v
		}
	case KindDate:
		if v, ok := other.Dates[f]; ok {
			fs.Dates[f] = v
		}
	case KindFlag:
		if v, ok := other.Flags[f]; ok {
			fs.Flags[f] = v
		}
	}
}

// Fields lists every present field, sorted.
func (fs FieldSet) Fields() []Field {
	var out []Field
	for f := range fieldKinds {
		if fs.Has(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal compares values, not representation: 8000 equals 8000.00.
func (fs FieldSet) Equal(other FieldSet) bool {
	a, b := fs.Fields(), other.Fields()
	if len(a) != len(b) {
		return false
	}
	for i, f := range a {
		if b[i] != f {
			return false
		}
		switch f.Kind() {
		case KindMoney, KindRate:
			if !fs.Amounts[f].Equal(other.Amounts[f]) {
				return false
			}
		case KindDate:
			x, _ := fs.Date(f)
			y, _ := other.Date(f)
			if !x.Equal(y) {
				return false
			}
		case KindFlag:
			if fs.Flags[f] != other.Flags[f] {
				return false
			}
		}
	}
	return overrideList(fs) == overrideList(other)
}

func overrideList(fs FieldSet) string {
	var out []string
	for k, v := range fs.Overrides {
		if v {
			out = append(out, string(k))
		}
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

const overridesKey = "overrides"

func (fs FieldSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(fs.Amounts)+len(fs.Dates)+len(fs.Flags)+1)
	for k, v := range fs.Amounts {
		if k.Kind() == KindMoney {
			out[string(k)] = v.StringFixed(2)
			continue
		}
		out[string(k)] = v.String()
	}
	for k := range fs.Dates {
		if v, ok := fs.Date(k); ok {
			out[string(k)] = v.Format(time.RFC3339)
		}
	}
	for k, v := range fs.Flags {
		out[string(k)] = v
	}
	if list := overrideList(fs); list != "" {
		out[overridesKey] = strings.Split(list, ",")
	}
	return json.Marshal(out)
}

func (fs *FieldSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed := NewFieldSet()
	for key, value := range raw {
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}
		if key == overridesKey {
			var names []string
			if err := json.Unmarshal(value, &names); err != nil {
				return fmt.Errorf("overrides: %w", err)
			}
			for _, name := range names {
				f, err := ParseField(name)
				if err != nil {
					return err
				}
				parsed.Overrides[f] = true
			}
			continue
		}
		f, err := ParseField(key)
		if err != nil {
			return err
		}
		switch f.Kind() {
		case KindMoney, KindRate:
			var d decimal.Decimal
			if err := json.Unmarshal(value, &d); err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			parsed.Amounts[f] = d
		case KindDate:
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			if strings.TrimSpace(s) == "" {
				continue
			}
			t, err := ParseTime(s)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			parsed.Dates[f] = t
		case KindFlag:
			var b bool
			if err := json.Unmarshal(value, &b); err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			parsed.Flags[f] = b
		}
	}
	*fs = parsed
	return nil
}

func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", raw)
}

// FromContract projects the rule-relevant fields of a stored contract.
func FromContract(c model.Contract) FieldSet {
	fs := NewFieldSet()
	fs.Amounts[FieldEmployeeLevel] = c.EmployeeLevel
	fs.Amounts[FieldDailyRate] = c.DailyRate
	fs.Amounts[FieldManagementFeeRate] = c.ManagementFeeRate
	fs.Amounts[FieldManagementFeeAmount] = c.ManagementFeeAmount
	fs.Amounts[FieldDepositRate] = c.DepositRate
	fs.Amounts[FieldSecurityDepositPaid] = c.SecurityDepositPaid
	fs.Amounts[FieldIntroductionFee] = c.IntroductionFee
	fs.Amounts[FieldDepositAmount] = c.DepositAmount
	if !c.StartDate.IsZero() {
		fs.Dates[FieldStartDate] = c.StartDate
	}
	if !c.EndDate.IsZero() {
		fs.Dates[FieldEndDate] = c.EndDate
	}
	if c.ProvisionalStartDate != nil && !c.ProvisionalStartDate.IsZero() {
		fs.Dates[FieldProvisionalStartDate] = *c.ProvisionalStartDate
	}
	fs.Flags[FieldIsMonthlyAutoRenew] = c.IsMonthlyAutoRenew
	for _, name := range c.Overrides {
		if f, err := ParseField(name); err == nil {
			fs.Overrides[f] = true
		}
	}
	return fs
}

// ApplyTo writes every present field back onto the contract.
func (fs FieldSet) ApplyTo(c *model.Contract) {
	set := func(f Field, dst *decimal.Decimal) {
		if v, ok := fs.Amounts[f]; ok {
			*dst = v
		}
	}
	set(FieldEmployeeLevel, &c.EmployeeLevel)
	set(FieldDailyRate, &c.DailyRate)
	set(FieldManagementFeeRate, &c.ManagementFeeRate)
	set(FieldManagementFeeAmount, &c.ManagementFeeAmount)
	set(FieldDepositRate, &c.DepositRate)
	set(FieldSecurityDepositPaid, &c.SecurityDepositPaid)
	set(FieldIntroductionFee, &c.IntroductionFee)
	set(FieldDepositAmount, &c.DepositAmount)

	if v, ok := fs.Date(FieldStartDate); ok {
		c.StartDate = v
	}
	if v, ok := fs.Date(FieldEndDate); ok {
		c.EndDate = v
	}
	if v, ok := fs.Date(FieldProvisionalStartDate); ok {
		c.ProvisionalStartDate = &v
	}
	if v, ok := fs.Flags[FieldIsMonthlyAutoRenew]; ok {
		c.IsMonthlyAutoRenew = v
	}
	c.Overrides = nil
	if list := overrideList(fs); list != "" {
		c.Overrides = strings.Split(list, ",")
	}
}
