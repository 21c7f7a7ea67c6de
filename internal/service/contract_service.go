package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/housekeeping-contracts/internal/model"
	"github.com/nurpe/housekeeping-contracts/internal/rules"
	"github.com/nurpe/housekeeping-contracts/internal/validation"
)

type ContractService struct {
	store  ContractStore
	engine *rules.Engine
	gate   *validation.Gate
	env    EnvFactory
	now    func() time.Time
}

func NewContractService(store ContractStore, engine *rules.Engine, gate *validation.Gate, env EnvFactory) *ContractService {
	if env == nil {
		env = defaultEnv
	}
	return &ContractService{
		store:  store,
		engine: engine,
		gate:   gate,
		env:    env,
		now:    time.Now,
	}
}

type DeriveInput struct {
	ContractType model.ContractType
	Fields       rules.FieldSet
	Changed      rules.Field
	Mode         rules.Mode
}

// Derive recomputes the fields depending on the edited one. It touches no storage.
func (s *ContractService) Derive(input DeriveInput) (rules.FieldSet, error) {
	return s.engine.Derive(input.ContractType, input.Fields, input.Changed, s.env(s.now(), input.Mode))
}

func (s *ContractService) Validate(t model.ContractType, fs rules.FieldSet) (validation.Result, error) {
	return s.gate.Validate(t, fs)
}

type CreateContractInput struct {
	Principal    model.Principal
	ContractType model.ContractType
	CustomerID   uuid.UUID
	EmployeeID   uuid.UUID
	Fields       rules.FieldSet
}

func (s *ContractService) Create(ctx context.Context, input CreateContractInput) (*model.Contract, error) {
	if !input.Principal.IsBackOffice() {
		return nil, ErrPermissionDenied
	}
	if input.CustomerID == uuid.Nil || input.EmployeeID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer_id and employee_id are required", ErrInvalidInput)
	}

	fs, err := s.engine.Defaults(input.ContractType, input.Fields, s.env(s.now(), rules.ModeCreate))
	if err != nil {
		return nil, err
	}
	if err := s.check(input.ContractType, fs); err != nil {
		return nil, err
	}

	contract := model.Contract{
		ContractType:  input.ContractType,
		CustomerID:    input.CustomerID,
		EmployeeID:    input.EmployeeID,
		Status:        model.ContractStatusUnsigned,
		SigningStatus: model.SigningStatusUnsigned,
	}
	fs.ApplyTo(&contract)

	created, err := s.store.Create(ctx, &contract)
	if err != nil {
		return nil, storeError(err, "contract")
	}
	return created, nil
}

func (s *ContractService) Get(ctx context.Context, id uuid.UUID, principal model.Principal) (*model.Contract, error) {
	if !principal.CanAccessContract(id) {
		return nil, ErrPermissionDenied
	}
	contract, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, storeError(err, "contract")
	}
	return contract, nil
}

type UpdateContractInput struct {
	Principal  model.Principal
	ContractID uuid.UUID
	// Version, when set, must match the stored version.
	Version int
	Fields  rules.FieldSet
}

// UpdateFields applies user edits one field at a time, deriving after each, the
// same way the edit form does. Values the edit supplies are kept as sent. Contract
// type never changes.
func (s *ContractService) UpdateFields(ctx context.Context, input UpdateContractInput) (*model.Contract, error) {
	if !input.Principal.IsBackOffice() {
		return nil, ErrPermissionDenied
	}
	contract, err := s.store.Load(ctx, input.ContractID)
	if err != nil {
		return nil, storeError(err, "contract")
	}
	if input.Version != 0 && input.Version != contract.Version {
		return nil, fmt.Errorf("%w: contract version is %d", ErrConflict, contract.Version)
	}
	if contract.Status.IsClosed() {
		return nil, fmt.Errorf("%w: contract is %s", ErrConflict, contract.Status)
	}
	if contract.SigningStatus != model.SigningStatusUnsigned {
		return nil, fmt.Errorf("%w: contract already carries signatures", ErrConflict)
	}

	fs, err := s.engine.Apply(contract.ContractType, rules.FromContract(*contract), input.Fields, s.env(s.now(), rules.ModeEdit))
	if err != nil {
		return nil, err
	}
	if err := s.check(contract.ContractType, fs); err != nil {
		return nil, err
	}

	fs.ApplyTo(contract)
	saved, err := s.store.Save(ctx, contract)
	if err != nil {
		return nil, storeError(err, "contract")
	}
	return saved, nil
}

// FailTrial ends an unsuccessful trial.
func (s *ContractService) FailTrial(ctx context.Context, id uuid.UUID, principal model.Principal) (*model.Contract, error) {
	if !principal.IsBackOffice() {
		return nil, ErrPermissionDenied
	}
	saved, err := s.store.Update(ctx, id, func(c *model.Contract) error {
		if c.ContractType != model.ContractTypeNannyTrial {
			return fmt.Errorf("%w: contract is not a trial", ErrInvalidInput)
		}
		if c.Status != model.ContractStatusTrialActive {
			return fmt.Errorf("%w: trial is %s", ErrConflict, c.Status)
		}
		c.Status = model.ContractStatusTerminated
		return nil
	})
	if err != nil {
		return nil, storeError(err, "contract")
	}
	return saved, nil
}

func (s *ContractService) check(t model.ContractType, fs rules.FieldSet) error {
	result, err := s.gate.Validate(t, fs)
	if err != nil {
		return err
	}
	return result.Err()
}
