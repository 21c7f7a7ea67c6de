package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/housekeeping-contracts/internal/model"
	"github.com/nurpe/housekeeping-contracts/internal/repository"
)

type memoryStore struct {
	mu          sync.Mutex
	contracts   map[uuid.UUID]model.Contract
	adjustments []model.FinancialAdjustment
	failWrite   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{contracts: map[uuid.UUID]model.Contract{}}
}

func (s *memoryStore) put(c model.Contract) *model.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	s.contracts[c.ID] = c.Clone()
	return &c
}

func (s *memoryStore) Load(_ context.Context, id uuid.UUID) (*model.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := c.Clone()
	return &out, nil
}

func (s *memoryStore) Create(_ context.Context, c *model.Contract) (*model.Contract, error) {
	created := c.Clone()
	created.ID = uuid.New()
	created.Version = 1
	created.CreatedAt = time.Now()
	return s.put(created), nil
}

func (s *memoryStore) Save(_ context.Context, c *model.Contract) (*model.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(c)
}

func (s *memoryStore) saveLocked(c *model.Contract) (*model.Contract, error) {
	current, ok := s.contracts[c.ID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if current.Version != c.Version {
		return nil, repository.ErrStaleContract
	}
	saved := c.Clone()
	saved.Version++
	s.contracts[c.ID] = saved
	out := saved.Clone()
	return &out, nil
}

func (s *memoryStore) Update(_ context.Context, id uuid.UUID, fn func(c *model.Contract) error) (*model.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	working := current.Clone()
	if err := fn(&working); err != nil {
		return nil, err
	}
	return s.saveLocked(&working)
}

func (s *memoryStore) SaveWithAdjustments(_ context.Context, c, target *model.Contract, adjustments []model.FinancialAdjustment) (*model.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return nil, s.failWrite
	}
	current, ok := s.contracts[target.ID]
	if !ok || current.Version != target.Version || current.Status.IsClosed() {
		return nil, repository.ErrStaleContract
	}
	saved, err := s.saveLocked(c)
	if err != nil {
		return nil, err
	}
	s.adjustments = append(s.adjustments, adjustments...)
	return saved, nil
}

func (s *memoryStore) ListByContract(_ context.Context, contractID uuid.UUID) ([]model.FinancialAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.FinancialAdjustment
	for _, a := range s.adjustments {
		if a.TargetContractID == contractID {
			out = append(out, a)
		}
	}
	return out, nil
}

type billsByContract map[uuid.UUID]model.Bill

func (b billsByContract) EarliestUnpaidBill(_ context.Context, contractID uuid.UUID) (*model.Bill, error) {
	bill, ok := b[contractID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &bill, nil
}

type recordingRenderer struct {
	statements []model.ConversionStatement
	ledgers    []model.AdjustmentLedger
}

func (r *recordingRenderer) Render(doc model.ConversionStatement) ([]byte, error) {
	r.statements = append(r.statements, doc)
	return []byte("%PDF"), nil
}

func (r *recordingRenderer) Generate(ledger model.AdjustmentLedger) ([]byte, error) {
	r.ledgers = append(r.ledgers, ledger)
	return []byte("PK"), nil
}

type staticDirectory []model.Party

func (d staticDirectory) Search(_ context.Context, role model.PartyRole, _ string, _ int) ([]model.Party, error) {
	var out []model.Party
	for _, p := range d {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

var (
	admin = model.Principal{UserID: uuid.New(), Role: model.UserRoleAdmin}
	staff = model.Principal{UserID: uuid.New(), Role: model.UserRoleStaff}
)

func partyPrincipal(role model.UserRole, contractID uuid.UUID) model.Principal {
	id := contractID
	return model.Principal{UserID: uuid.New(), Role: role, ContractID: &id}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}
