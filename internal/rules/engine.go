package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

// MaxDepth bounds how far an edit propagates through dependent rules.
const MaxDepth = 4

const moneyPlaces = 2

type Engine struct {
	registry *Registry
}

func NewEngine(registry *Registry) *Engine {
	if registry == nil {
		registry = defaultRegistry
	}
	return &Engine{registry: registry}
}

// Derive recomputes the fields that depend on changed and returns a new field set;
// current is not modified. The changed field itself is never rewritten, and neither
// is a field the user has overridden.
//
// An empty changed runs every applicable rule once, which is how a complete record
// is brought in line on create and update. That pass keeps dates the caller already
// supplied.
//
// Overrides on fields the contract type does not let users type over are dropped.
func (e *Engine) Derive(t model.ContractType, current FieldSet, changed Field, env Env) (FieldSet, error) {
	rs, err := e.registry.Get(t)
	if err != nil {
		return FieldSet{}, err
	}
	return e.derive(rs, current, changed, nil, env)
}

// Apply lays edits over current and derives from each edited field in turn. A
// field the edit supplies is never rewritten by a rule, so an explicit end date
// survives a start date sent alongside it. Money fields only rules may set are
// ignored in edits and recomputed.
func (e *Engine) Apply(t model.ContractType, current, edits FieldSet, env Env) (FieldSet, error) {
	rs, err := e.registry.Get(t)
	if err != nil {
		return FieldSet{}, err
	}

	out := current.Clone()
	rs.dropForeignOverrides(out)
	for f, pinned := range edits.Overrides {
		if pinned && rs.overridable(f) {
			out.Overrides[f] = true
		}
	}

	supplied := make(map[Field]bool)
	var order []Field
	for _, f := range edits.Fields() {
		if rs.owns(f) {
			continue
		}
		supplied[f] = true
		order = append(order, f)
		out.CopyField(edits, f)
	}

	for _, f := range order {
		out, err = e.derive(rs, out, f, supplied, env)
		if err != nil {
			return FieldSet{}, err
		}
	}
	for _, f := range order {
		if rs.overridable(f) {
			out.Overrides[f] = true
		}
	}
	return out, nil
}

func (e *Engine) derive(rs *RuleSet, current FieldSet, changed Field, fixed map[Field]bool, env Env) (FieldSet, error) {
	if changed != "" && changed.Kind() == 0 {
		return FieldSet{}, fmt.Errorf("%w: %q", ErrUnknownField, changed)
	}

	out := current.Clone()
	rs.dropForeignOverrides(out)
	if changed != "" {
		rs.trackOverride(out, changed)
	}

	active := make([]Rule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.Target == changed || out.Overridden(r.Target) || fixed[r.Target] {
			continue
		}
		if r.When != nil && !r.When(changed, out) {
			continue
		}
		if changed == "" && r.Date != nil && out.Has(r.Target) {
			continue
		}
		active = append(active, r)
	}

	selected := active
	if changed != "" {
		selected = affectedRules(active, changed)
	}

	ordered, err := orderRules(selected)
	if err != nil {
		return FieldSet{}, fmt.Errorf("%s: %w", rs.Type, err)
	}

	for _, r := range ordered {
		switch {
		case r.Amount != nil:
			v, ok := r.Amount(out, env)
			if !ok {
				continue
			}
			out.SetAmount(r.Target, normalizeAmount(r.Target, v))
		case r.Date != nil:
			v, ok := r.Date(out, env)
			if !ok {
				continue
			}
			out.SetDate(r.Target, v)
		}
	}

	if rs.Granularity == GranularityDate {
		for f, v := range out.Dates {
			if !v.IsZero() {
				out.Dates[f] = truncateToDate(v)
			}
		}
	}
	return out, nil
}

// Defaults returns the initial field set for a new contract with the caller's
// input laid over the type defaults, fully derived in creation mode.
func (e *Engine) Defaults(t model.ContractType, input FieldSet, env Env) (FieldSet, error) {
	rs, err := e.registry.Get(t)
	if err != nil {
		return FieldSet{}, err
	}
	base := NewFieldSet()
	if rs.Defaults != nil {
		base = rs.Defaults(env)
	}
	base.Merge(input)
	for f := range input.Amounts {
		if rs.overridable(f) {
			base.Overrides[f] = true
		}
	}
	env.Mode = ModeCreate
	return e.Derive(t, base, "", env)
}

// affectedRules walks outward from changed, level by level, collecting every rule
// whose inputs moved.
func affectedRules(active []Rule, changed Field) []Rule {
	picked := make([]bool, len(active))
	frontier := map[Field]bool{changed: true}
	for depth := 0; depth < MaxDepth && len(frontier) > 0; depth++ {
		next := map[Field]bool{}
		for i, r := range active {
			if picked[i] {
				continue
			}
			for f := range frontier {
				if r.dependsOn(f) {
					picked[i] = true
					next[r.Target] = true
					break
				}
			}
		}
		frontier = next
	}

	out := make([]Rule, 0, len(active))
	for i, r := range active {
		if picked[i] {
			out = append(out, r)
		}
	}
	return out
}

// orderRules sorts rules so that each runs after every rule producing one of its
// inputs. Ties keep declaration order.
func orderRules(rules []Rule) ([]Rule, error) {
	producer := make(map[Field]int, len(rules))
	for i, r := range rules {
		producer[r.Target] = i
	}
	indegree := make([]int, len(rules))
	dependents := make([][]int, len(rules))
	for i, r := range rules {
		for _, dep := range r.DependsOn {
			if p, ok := producer[dep]; ok && p != i {
				indegree[i]++
				dependents[p] = append(dependents[p], i)
			}
		}
	}

	ordered := make([]Rule, 0, len(rules))
	done := make([]bool, len(rules))
	for len(ordered) < len(rules) {
		progressed := false
		for i := range rules {
			if done[i] || indegree[i] > 0 {
				continue
			}
			done[i] = true
			progressed = true
			ordered = append(ordered, rules[i])
			for _, d := range dependents[i] {
				indegree[d]--
			}
			break
		}
		if !progressed {
			return nil, ErrRuleCycle
		}
	}
	return ordered, nil
}

func normalizeAmount(f Field, v decimal.Decimal) decimal.Decimal {
	if f.Kind() == KindMoney {
		return v.Round(moneyPlaces)
	}
	return v
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RoundMoney rounds to cents the same way derived fields are rounded.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(moneyPlaces)
}
