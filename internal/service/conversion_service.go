package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/housekeeping-contracts/internal/conversion"
	"github.com/nurpe/housekeeping-contracts/internal/model"
	"github.com/nurpe/housekeeping-contracts/internal/repository"
	"github.com/nurpe/housekeeping-contracts/internal/rules"
)

type StatementRenderer interface {
	Render(doc model.ConversionStatement) ([]byte, error)
}

type LedgerExporter interface {
	Generate(ledger model.AdjustmentLedger) ([]byte, error)
}

type ConversionService struct {
	store       ContractStore
	bills       BillLocator
	adjustments AdjustmentLister
	pricer      *conversion.Pricer
	statement   StatementRenderer
	ledger      LedgerExporter
	env         EnvFactory
	log         zerolog.Logger
	now         func() time.Time
}

func NewConversionService(
	store ContractStore,
	bills BillLocator,
	adjustments AdjustmentLister,
	pricer *conversion.Pricer,
	statement StatementRenderer,
	ledger LedgerExporter,
	env EnvFactory,
	log zerolog.Logger,
) *ConversionService {
	if env == nil {
		env = defaultEnv
	}
	return &ConversionService{
		store:       store,
		bills:       bills,
		adjustments: adjustments,
		pricer:      pricer,
		statement:   statement,
		ledger:      ledger,
		env:         env,
		log:         log,
		now:         time.Now,
	}
}

type ConversionInput struct {
	Principal model.Principal
	TrialID   uuid.UUID
	FormalID  uuid.UUID
}

type FileResult struct {
	FileName string
	Content  []byte
}

// Preview prices the conversion without changing anything.
func (s *ConversionService) Preview(ctx context.Context, input ConversionInput) (*model.ConversionCost, error) {
	trial, formal, err := s.loadPair(ctx, input)
	if err != nil {
		return nil, err
	}
	now := s.now()
	cost, err := s.pricer.Preview(trial, formal, now, s.env(now, rules.ModeEdit))
	if err != nil {
		return nil, conversionError(err)
	}
	return &cost, nil
}

// Confirm marks the trial as succeeded and attaches its costs to the earliest
// unpaid bill of the formal contract. Status change and adjustments are written
// together or not at all.
func (s *ConversionService) Confirm(ctx context.Context, input ConversionInput) (*model.ConversionResult, error) {
	trial, formal, err := s.loadPair(ctx, input)
	if err != nil {
		return nil, err
	}
	now := s.now()
	cost, err := s.pricer.Preview(trial, formal, now, s.env(now, rules.ModeEdit))
	if err != nil {
		return nil, conversionError(err)
	}

	var billID uuid.UUID
	adjustments := []model.FinancialAdjustment{}
	if cost.Total().IsPositive() {
		bill, err := s.bills.EarliestUnpaidBill(ctx, formal.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: formal contract has no unpaid bill", ErrInvalidInput)
			}
			return nil, err
		}
		billID = bill.ID
		adjustments = conversion.Adjustments(cost, billID, now.UTC())
	}

	converted := trial.Clone()
	converted.Status = model.ContractStatusTrialSucceeded
	converted.ConvertedToID = &formal.ID

	saved, err := s.store.SaveWithAdjustments(ctx, &converted, formal, adjustments)
	if err != nil {
		if errors.Is(err, repository.ErrStaleContract) {
			return nil, fmt.Errorf("%w: trial or formal contract changed during conversion", ErrConflict)
		}
		s.log.Error().Err(err).
			Str("trial_id", trial.ID.String()).
			Str("formal_id", formal.ID.String()).
			Msg("conversion rolled back")
		return nil, &conversion.ConsistencyError{TrialID: trial.ID, Err: err}
	}

	s.log.Info().
		Str("trial_id", trial.ID.String()).
		Str("formal_id", formal.ID.String()).
		Str("bill_id", billID.String()).
		Int("adjustments", len(adjustments)).
		Str("total", cost.Total().StringFixed(2)).
		Msg("trial converted")

	return &model.ConversionResult{
		Trial:        *saved,
		Cost:         cost,
		TargetBillID: billID,
		Adjustments:  adjustments,
	}, nil
}

// PreviewStatement renders the preview as a PDF cost sheet.
func (s *ConversionService) PreviewStatement(ctx context.Context, input ConversionInput) (*FileResult, error) {
	trial, formal, err := s.loadPair(ctx, input)
	if err != nil {
		return nil, err
	}
	now := s.now()
	cost, err := s.pricer.Preview(trial, formal, now, s.env(now, rules.ModeEdit))
	if err != nil {
		return nil, conversionError(err)
	}
	content, err := s.statement.Render(model.ConversionStatement{
		Trial:       *trial,
		Formal:      *formal,
		Cost:        cost,
		GeneratedAt: now,
	})
	if err != nil {
		return nil, err
	}
	return &FileResult{
		FileName: fmt.Sprintf("conversion-%s-%s.pdf", shortID(trial.ID), now.Format("20060102")),
		Content:  content,
	}, nil
}

// ExportAdjustments returns the adjustment ledger of a formal contract as xlsx.
func (s *ConversionService) ExportAdjustments(ctx context.Context, contractID uuid.UUID, principal model.Principal) (*FileResult, error) {
	if !principal.IsBackOffice() {
		return nil, ErrPermissionDenied
	}
	contract, err := s.store.Load(ctx, contractID)
	if err != nil {
		return nil, storeError(err, "contract")
	}
	adjustments, err := s.adjustments.ListByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	content, err := s.ledger.Generate(model.AdjustmentLedger{
		Contract:    *contract,
		Adjustments: adjustments,
		GeneratedAt: now,
	})
	if err != nil {
		return nil, err
	}
	return &FileResult{
		FileName: fmt.Sprintf("adjustments-%s-%s.xlsx", shortID(contractID), now.Format("20060102")),
		Content:  content,
	}, nil
}

func (s *ConversionService) loadPair(ctx context.Context, input ConversionInput) (*model.Contract, *model.Contract, error) {
	if !input.Principal.IsBackOffice() {
		return nil, nil, ErrPermissionDenied
	}
	if input.TrialID == uuid.Nil || input.FormalID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: trial_contract_id and formal_contract_id are required", ErrInvalidInput)
	}
	if input.TrialID == input.FormalID {
		return nil, nil, fmt.Errorf("%w: trial and formal contract must differ", ErrInvalidInput)
	}
	trial, err := s.store.Load(ctx, input.TrialID)
	if err != nil {
		return nil, nil, storeError(err, "trial contract")
	}
	formal, err := s.store.Load(ctx, input.FormalID)
	if err != nil {
		return nil, nil, storeError(err, "formal contract")
	}
	return trial, formal, nil
}

func conversionError(err error) error {
	switch {
	case errors.Is(err, conversion.ErrTrialNotActive), errors.Is(err, conversion.ErrFormalClosed):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, conversion.ErrNotTrial),
		errors.Is(err, conversion.ErrNotFormal),
		errors.Is(err, conversion.ErrCustomerMismatch):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	default:
		return err
	}
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
