// Package conversion prices the graduation of a trial contract into a formal one.
package conversion

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/housekeeping-contracts/internal/model"
	"github.com/nurpe/housekeeping-contracts/internal/rules"
)

var (
	ErrNotTrial         = errors.New("source contract is not a trial contract")
	ErrTrialNotActive   = errors.New("trial contract is not active")
	ErrNotFormal        = errors.New("target contract is not a formal contract")
	ErrFormalClosed     = errors.New("target contract is closed")
	ErrCustomerMismatch = errors.New("trial and formal contracts belong to different customers")
)

// ConsistencyError means the conversion could not be applied as a whole. Nothing
// from the attempt was kept.
type ConsistencyError struct {
	TrialID uuid.UUID
	Err     error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("conversion of trial %s rolled back: %v", e.TrialID, e.Err)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

type Pricer struct {
	engine *rules.Engine
}

func NewPricer(engine *rules.Engine) *Pricer {
	return &Pricer{engine: engine}
}

// CheckPair verifies that trial can be converted into formal.
func CheckPair(trial, formal *model.Contract) error {
	if trial.ContractType != model.ContractTypeNannyTrial {
		return fmt.Errorf("%w: %s", ErrNotTrial, trial.ContractType)
	}
	if trial.Status != model.ContractStatusTrialActive {
		return fmt.Errorf("%w: status %s", ErrTrialNotActive, trial.Status)
	}
	if !formal.ContractType.IsFormal() {
		return fmt.Errorf("%w: %s", ErrNotFormal, formal.ContractType)
	}
	if formal.Status.IsClosed() {
		return fmt.Errorf("%w: status %s", ErrFormalClosed, formal.Status)
	}
	if trial.CustomerID != formal.CustomerID {
		return ErrCustomerMismatch
	}
	return nil
}

// Preview computes the costs the trial hands over. It has no side effects.
func (p *Pricer) Preview(trial, formal *model.Contract, asOf time.Time, env rules.Env) (model.ConversionCost, error) {
	if err := CheckPair(trial, formal); err != nil {
		return model.ConversionCost{}, err
	}

	env.Mode = rules.ModeEdit
	priced, err := p.engine.Derive(trial.ContractType, rules.FromContract(*trial), "", env)
	if err != nil {
		return model.ConversionCost{}, err
	}

	days := TrialDays(trial.StartDate, trial.EndDate, asOf)
	dailyRate := priced.AmountOr(rules.FieldDailyRate, decimal.Zero)
	serviceFee := rules.RoundMoney(dailyRate.Mul(decimal.NewFromInt(int64(days))))
	feeRate := priced.AmountOr(rules.FieldManagementFeeRate, decimal.Zero)
	managementFee := rules.RoundMoney(serviceFee.Mul(feeRate))
	introFee := rules.RoundMoney(priced.AmountOr(rules.FieldIntroductionFee, decimal.Zero))

	cost := model.ConversionCost{
		TrialContractID:  trial.ID,
		FormalContractID: formal.ID,
		TrialDays:        days,
	}
	if introFee.IsPositive() {
		cost.IntroductionFee = &model.CostItem{
			Amount:      introFee,
			Description: fmt.Sprintf("Introduction fee from trial contract %s", shortID(trial.ID)),
		}
	}
	if serviceFee.IsPositive() {
		cost.TrialServiceFee = &model.CostItem{
			Amount:      serviceFee,
			Description: fmt.Sprintf("Trial service fee: %d days x %s", days, dailyRate.StringFixed(2)),
		}
	}
	if managementFee.IsPositive() {
		cost.ManagementFee = &model.CostItem{
			Amount:      managementFee,
			Description: fmt.Sprintf("Trial management fee: %s%% of %s", feeRate.Shift(2).String(), serviceFee.StringFixed(2)),
		}
	}
	return cost, nil
}

// TrialDays counts the trial days served up to asOf, both ends inclusive and
// capped at the contract end date.
func TrialDays(start, end, asOf time.Time) int {
	if start.IsZero() {
		return 0
	}
	last := dateOf(asOf)
	if !end.IsZero() && dateOf(end).Before(last) {
		last = dateOf(end)
	}
	first := dateOf(start)
	if last.Before(first) {
		return 0
	}
	return int(last.Sub(first).Hours()/24) + 1
}

// Adjustments turns the present cost lines into ledger entries on billID.
func Adjustments(cost model.ConversionCost, billID uuid.UUID, now time.Time) []model.FinancialAdjustment {
	lines := []struct {
		kind model.AdjustmentKind
		item *model.CostItem
	}{
		{model.AdjustmentKindIntroductionFee, cost.IntroductionFee},
		{model.AdjustmentKindTrialServiceFee, cost.TrialServiceFee},
		{model.AdjustmentKindManagementFee, cost.ManagementFee},
	}
	out := make([]model.FinancialAdjustment, 0, len(lines))
	for _, line := range lines {
		if line.item == nil {
			continue
		}
		out = append(out, model.FinancialAdjustment{
			ID:                    uuid.New(),
			Kind:                  line.kind,
			Amount:                line.item.Amount,
			Description:           line.item.Description,
			TargetBillID:          billID,
			TargetContractID:      cost.FormalContractID,
			SourceTrialContractID: cost.TrialContractID,
			CreatedAt:             now,
		})
	}
	return out
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
