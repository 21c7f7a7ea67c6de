package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/housekeeping-contracts/internal/model"
	"github.com/nurpe/housekeeping-contracts/internal/signing"
)

type SigningService struct {
	store ContractStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewSigningService(store ContractStore, log zerolog.Logger) *SigningService {
	return &SigningService{store: store, log: log, now: time.Now}
}

type SubmitSignatureInput struct {
	Principal  model.Principal
	ContractID uuid.UUID
	Role       model.PartyRole
	Signature  []byte
	Party      model.PartyInfo
	Resign     bool
}

// SubmitSignature records one party's signature. The read-modify-write runs under
// the store's row lock, so the two parties may sign in any order or at once.
func (s *SigningService) SubmitSignature(ctx context.Context, input SubmitSignatureInput) (*model.Contract, error) {
	if err := authorizeParty(input.Principal, input.ContractID, input.Role); err != nil {
		return nil, err
	}
	at := s.now().UTC()
	saved, err := s.store.Update(ctx, input.ContractID, func(c *model.Contract) error {
		return signing.Apply(c, signing.Submission{
			Role:      input.Role,
			Signature: input.Signature,
			Party:     input.Party,
			Resign:    input.Resign,
			At:        at,
		})
	})
	if err != nil {
		return nil, signingError(err)
	}
	s.log.Info().
		Str("contract_id", saved.ID.String()).
		Str("role", string(input.Role)).
		Str("signing_status", string(saved.SigningStatus)).
		Msg("signature accepted")
	return saved, nil
}

type ResignInput struct {
	Principal  model.Principal
	ContractID uuid.UUID
	Role       model.PartyRole
}

// RequestResign clears one party's signature so that party can sign again.
func (s *SigningService) RequestResign(ctx context.Context, input ResignInput) (*model.Contract, error) {
	if !input.Principal.IsBackOffice() {
		if err := authorizeParty(input.Principal, input.ContractID, input.Role); err != nil {
			return nil, err
		}
	}
	saved, err := s.store.Update(ctx, input.ContractID, func(c *model.Contract) error {
		return signing.Resign(c, input.Role)
	})
	if err != nil {
		return nil, signingError(err)
	}
	s.log.Info().
		Str("contract_id", saved.ID.String()).
		Str("role", string(input.Role)).
		Str("signing_status", string(saved.SigningStatus)).
		Msg("signature cleared for re-signing")
	return saved, nil
}

// authorizeParty lets a signing-link principal act only on its own slot of its own
// contract. Admins may act for either party.
func authorizeParty(p model.Principal, contractID uuid.UUID, role model.PartyRole) error {
	if !role.Valid() {
		return fmt.Errorf("%w: role must be customer or employee", ErrInvalidInput)
	}
	if p.Role == model.UserRoleAdmin {
		return nil
	}
	own, ok := p.PartyRole()
	if !ok || own != role || !p.CanAccessContract(contractID) {
		return ErrPermissionDenied
	}
	return nil
}

func signingError(err error) error {
	switch {
	case errors.Is(err, signing.ErrInvalidRole), errors.Is(err, signing.ErrEmptySignature):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, signing.ErrContractClosed), errors.Is(err, signing.ErrNotSigned):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return storeError(err, "contract")
	}
}
