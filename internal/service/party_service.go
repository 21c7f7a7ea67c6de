package service

import (
	"context"
	"fmt"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

type PartyService struct {
	directory PartyDirectory
}

func NewPartyService(directory PartyDirectory) *PartyService {
	return &PartyService{directory: directory}
}

func (s *PartyService) Search(ctx context.Context, principal model.Principal, role model.PartyRole, query string, limit int) ([]model.Party, error) {
	if !principal.IsBackOffice() {
		return nil, ErrPermissionDenied
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role must be customer or employee", ErrInvalidInput)
	}
	return s.directory.Search(ctx, role, query, limit)
}
