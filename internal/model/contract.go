package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ContractType string

const (
	ContractTypeNanny                ContractType = "nanny"
	ContractTypeMaternityNurse       ContractType = "maternity_nurse"
	ContractTypeNannyTrial           ContractType = "nanny_trial"
	ContractTypeExternalSubstitution ContractType = "external_substitution"
)

// IsFormal reports whether the type can receive costs from a converted trial.
func (t ContractType) IsFormal() bool {
	return t == ContractTypeNanny || t == ContractTypeMaternityNurse
}

type ContractStatus string

const (
	ContractStatusUnsigned       ContractStatus = "unsigned"
	ContractStatusPending        ContractStatus = "pending"
	ContractStatusActive         ContractStatus = "active"
	ContractStatusFinished       ContractStatus = "finished"
	ContractStatusTerminated     ContractStatus = "terminated"
	ContractStatusTrialActive    ContractStatus = "trial_active"
	ContractStatusTrialSucceeded ContractStatus = "trial_succeeded"
)

// IsClosed reports whether the contract no longer accepts changes.
func (s ContractStatus) IsClosed() bool {
	return s == ContractStatusFinished || s == ContractStatusTerminated
}

type SigningStatus string

const (
	SigningStatusUnsigned       SigningStatus = "UNSIGNED"
	SigningStatusCustomerSigned SigningStatus = "CUSTOMER_SIGNED"
	SigningStatusEmployeeSigned SigningStatus = "EMPLOYEE_SIGNED"
	SigningStatusSigned         SigningStatus = "SIGNED"
)

// Rank orders signing statuses; the two intermediate states share a rank.
func (s SigningStatus) Rank() int {
	switch s {
	case SigningStatusCustomerSigned, SigningStatusEmployeeSigned:
		return 1
	case SigningStatusSigned:
		return 2
	default:
		return 0
	}
}

type Contract struct {
	ID           uuid.UUID
	ContractType ContractType
	CustomerID   uuid.UUID
	EmployeeID   uuid.UUID

	EmployeeLevel       decimal.Decimal
	DailyRate           decimal.Decimal
	ManagementFeeRate   decimal.Decimal
	ManagementFeeAmount decimal.Decimal
	DepositRate         decimal.Decimal
	SecurityDepositPaid decimal.Decimal
	IntroductionFee     decimal.Decimal
	DepositAmount       decimal.Decimal

	StartDate            time.Time
	EndDate              time.Time
	ProvisionalStartDate *time.Time
	IsMonthlyAutoRenew   bool

	// Fields the user typed over a derived value; see rules.FieldSet.
	Overrides []string

	Status        ContractStatus
	SigningStatus SigningStatus

	CustomerSignature []byte
	EmployeeSignature []byte
	CustomerSignedAt  *time.Time
	EmployeeSignedAt  *time.Time
	CustomerInfo      *PartyInfo
	EmployeeInfo      *PartyInfo

	ConvertedToID *uuid.UUID
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy, so callers can mutate without touching a shared value.
func (c Contract) Clone() Contract {
	out := c
	if c.ProvisionalStartDate != nil {
		t := *c.ProvisionalStartDate
		out.ProvisionalStartDate = &t
	}
	if c.CustomerSignedAt != nil {
		t := *c.CustomerSignedAt
		out.CustomerSignedAt = &t
	}
	if c.EmployeeSignedAt != nil {
		t := *c.EmployeeSignedAt
		out.EmployeeSignedAt = &t
	}
	if c.CustomerInfo != nil {
		info := *c.CustomerInfo
		out.CustomerInfo = &info
	}
	if c.EmployeeInfo != nil {
		info := *c.EmployeeInfo
		out.EmployeeInfo = &info
	}
	if c.ConvertedToID != nil {
		id := *c.ConvertedToID
		out.ConvertedToID = &id
	}
	out.CustomerSignature = append([]byte(nil), c.CustomerSignature...)
	out.EmployeeSignature = append([]byte(nil), c.EmployeeSignature...)
	out.Overrides = append([]string(nil), c.Overrides...)
	return out
}
