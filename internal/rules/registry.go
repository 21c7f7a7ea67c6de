package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrRuleCycle    = errors.New("derivation rules form a cycle")
)

type UnknownContractTypeError struct {
	Type model.ContractType
}

func (e *UnknownContractTypeError) Error() string {
	return fmt.Sprintf("unknown contract type %q", string(e.Type))
}

// Mode tells date rules which screen is asking: creation and editing offset the
// trial end date differently.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

type Granularity int

const (
	GranularityDate Granularity = iota
	GranularityTimestamp
)

// Env carries everything a rule may read besides the field set. Now is always
// supplied by the caller; rules never read the clock.
type Env struct {
	Now                   time.Time
	Mode                  Mode
	Location              *time.Location
	CanonicalDepositRates []decimal.Decimal
	DefaultDepositAmount  decimal.Decimal
}

func (e Env) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

func (e Env) canonicalRates() []decimal.Decimal {
	if len(e.CanonicalDepositRates) == 0 {
		return DefaultCanonicalDepositRates
	}
	return e.CanonicalDepositRates
}

func (e Env) depositAmount() decimal.Decimal {
	if e.DefaultDepositAmount.IsZero() {
		return DefaultDepositAmount
	}
	return e.DefaultDepositAmount
}

var (
	DefaultCanonicalDepositRates = []decimal.Decimal{
		decimal.RequireFromString("0.10"),
		decimal.RequireFromString("0.15"),
		decimal.RequireFromString("0.20"),
		decimal.RequireFromString("0.25"),
	}
	DefaultDepositAmount = decimal.NewFromInt(3000)
)

// Rule derives one target field. Exactly one of Amount and Date is set, matching
// the target's kind. When, if present, restricts the rule to the edits it solves
// for; this is how a bidirectional pair picks its direction.
type Rule struct {
	Target    Field
	DependsOn []Field
	When      func(origin Field, fs FieldSet) bool
	Amount    func(fs FieldSet, env Env) (decimal.Decimal, bool)
	Date      func(fs FieldSet, env Env) (time.Time, bool)
}

func (r Rule) dependsOn(f Field) bool {
	for _, dep := range r.DependsOn {
		if dep == f {
			return true
		}
	}
	return false
}

// Override marks a derived field the user may type over. Editing any ReleasedBy
// field drops the pin and lets the rule own the field again.
type Override struct {
	Field      Field
	ReleasedBy []Field
}

type RuleSet struct {
	Type        model.ContractType
	Rules       []Rule
	Required    []Field
	Overridable []Override
	Granularity Granularity
	Defaults    func(env Env) FieldSet
}

func (rs *RuleSet) overridable(f Field) bool {
	for _, o := range rs.Overridable {
		if o.Field == f {
			return true
		}
	}
	return false
}

// owns reports whether f is a money field only a rule of this set may write.
func (rs *RuleSet) owns(f Field) bool {
	if f.Kind() != KindMoney || rs.overridable(f) {
		return false
	}
	for _, r := range rs.Rules {
		if r.Target == f {
			return true
		}
	}
	return false
}

func (rs *RuleSet) dropForeignOverrides(fs FieldSet) {
	for f := range fs.Overrides {
		if !rs.overridable(f) {
			delete(fs.Overrides, f)
		}
	}
}

// trackOverride records a user edit to origin on fs.
func (rs *RuleSet) trackOverride(fs FieldSet, origin Field) {
	for _, o := range rs.Overridable {
		if o.Field == origin {
			fs.Overrides[origin] = true
			continue
		}
		for _, release := range o.ReleasedBy {
			if release == origin {
				delete(fs.Overrides, o.Field)
			}
		}
	}
}

func (rs *RuleSet) validate() error {
	seen := make(map[Field]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.Target.Kind() == 0 {
			return fmt.Errorf("%s: %w: target %q", rs.Type, ErrUnknownField, r.Target)
		}
		if seen[r.Target] {
			return fmt.Errorf("%s: duplicate rule for %s", rs.Type, r.Target)
		}
		seen[r.Target] = true
		isDate := r.Target.Kind() == KindDate
		if isDate && (r.Date == nil || r.Amount != nil) {
			return fmt.Errorf("%s: rule for %s must compute a date", rs.Type, r.Target)
		}
		if !isDate && (r.Amount == nil || r.Date != nil) {
			return fmt.Errorf("%s: rule for %s must compute an amount", rs.Type, r.Target)
		}
		if len(r.DependsOn) == 0 {
			return fmt.Errorf("%s: rule for %s has no dependencies", rs.Type, r.Target)
		}
		for _, dep := range r.DependsOn {
			if dep.Kind() == 0 {
				return fmt.Errorf("%s: %w: dependency %q", rs.Type, ErrUnknownField, dep)
			}
		}
	}
	for _, f := range rs.Required {
		if f.Kind() == 0 {
			return fmt.Errorf("%s: %w: required %q", rs.Type, ErrUnknownField, f)
		}
	}
	for _, o := range rs.Overridable {
		if !seen[o.Field] {
			return fmt.Errorf("%s: override for underived field %s", rs.Type, o.Field)
		}
	}
	return nil
}

type Registry struct {
	sets map[model.ContractType]*RuleSet
}

func NewRegistry(sets ...*RuleSet) (*Registry, error) {
	reg := &Registry{sets: make(map[model.ContractType]*RuleSet, len(sets))}
	for _, rs := range sets {
		if _, exists := reg.sets[rs.Type]; exists {
			return nil, fmt.Errorf("rule set %s registered twice", rs.Type)
		}
		if err := rs.validate(); err != nil {
			return nil, err
		}
		reg.sets[rs.Type] = rs
	}
	return reg, nil
}

func (r *Registry) Get(t model.ContractType) (*RuleSet, error) {
	rs, ok := r.sets[t]
	if !ok {
		return nil, &UnknownContractTypeError{Type: t}
	}
	return rs, nil
}

func (r *Registry) Types() []model.ContractType {
	out := make([]model.ContractType, 0, len(r.sets))
	for t := range r.sets {
		out = append(out, t)
	}
	return out
}

var defaultRegistry = mustRegistry(
	nannyRuleSet(),
	nannyTrialRuleSet(),
	maternityNurseRuleSet(),
	externalSubstitutionRuleSet(),
)

func mustRegistry(sets ...*RuleSet) *Registry {
	reg, err := NewRegistry(sets...)
	if err != nil {
		panic(err)
	}
	return reg
}

// DefaultRegistry holds the rule sets for the four contract types.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func GetRuleSet(t model.ContractType) (*RuleSet, error) {
	return defaultRegistry.Get(t)
}
