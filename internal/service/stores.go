package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/housekeeping-contracts/internal/config"
	"github.com/nurpe/housekeeping-contracts/internal/model"
	"github.com/nurpe/housekeeping-contracts/internal/repository"
	"github.com/nurpe/housekeeping-contracts/internal/rules"
)

// ContractStore persists contracts. Save and Update are atomic single-row writes;
// SaveWithAdjustments is one transaction that also requires target to be unchanged
// and open.
type ContractStore interface {
	Load(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	Create(ctx context.Context, c *model.Contract) (*model.Contract, error)
	Save(ctx context.Context, c *model.Contract) (*model.Contract, error)
	Update(ctx context.Context, id uuid.UUID, fn func(c *model.Contract) error) (*model.Contract, error)
	SaveWithAdjustments(ctx context.Context, c, target *model.Contract, adjustments []model.FinancialAdjustment) (*model.Contract, error)
}

type BillLocator interface {
	EarliestUnpaidBill(ctx context.Context, contractID uuid.UUID) (*model.Bill, error)
}

type PartyDirectory interface {
	Search(ctx context.Context, role model.PartyRole, query string, limit int) ([]model.Party, error)
}

type AdjustmentLister interface {
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]model.FinancialAdjustment, error)
}

// EnvFactory builds the rule environment for a given instant.
type EnvFactory func(now time.Time, mode rules.Mode) rules.Env

func NewEnvFactory(cfg config.ContractsConfig) EnvFactory {
	return func(now time.Time, mode rules.Mode) rules.Env {
		return rules.Env{
			Now:                   now,
			Mode:                  mode,
			Location:              cfg.Location,
			CanonicalDepositRates: cfg.CanonicalDepositRates,
			DefaultDepositAmount:  cfg.DefaultDepositAmount,
		}
	}
}

func defaultEnv(now time.Time, mode rules.Mode) rules.Env {
	return rules.Env{Now: now, Mode: mode}
}

// storeError maps persistence errors onto service errors.
func storeError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrStaleContract):
		return fmt.Errorf("%w: %s changed concurrently, reload and retry", ErrConflict, what)
	default:
		return err
	}
}
