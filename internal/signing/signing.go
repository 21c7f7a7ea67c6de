package signing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

var (
	ErrInvalidRole    = errors.New("invalid signing role")
	ErrEmptySignature = errors.New("signature payload is empty")
	ErrNotSigned      = errors.New("party has not signed")
	ErrContractClosed = errors.New("contract is closed")
)

type PartyInfoIncompleteError struct {
	Role    model.PartyRole
	Missing []string
}

func (e *PartyInfoIncompleteError) Error() string {
	return fmt.Sprintf("%s info is incomplete: missing %s", e.Role, strings.Join(e.Missing, ", "))
}

type AlreadyTerminalError struct {
	ContractID string
}

func (e *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("contract %s is already signed by both parties", e.ContractID)
}

// Status derives the signing status from the two slots.
func Status(customerSigned, employeeSigned bool) model.SigningStatus {
	switch {
	case customerSigned && employeeSigned:
		return model.SigningStatusSigned
	case customerSigned:
		return model.SigningStatusCustomerSigned
	case employeeSigned:
		return model.SigningStatusEmployeeSigned
	default:
		return model.SigningStatusUnsigned
	}
}

// StatusOf reads the slots off a contract.
func StatusOf(c *model.Contract) model.SigningStatus {
	return Status(len(c.CustomerSignature) > 0, len(c.EmployeeSignature) > 0)
}

type Submission struct {
	Role      model.PartyRole
	Signature []byte
	Party     model.PartyInfo
	// Resign lets a party replace its signature on a contract both sides have signed.
	Resign bool
	At     time.Time
}

// Apply writes one party's signature onto c. A party signing again before the
// other side has signed replaces its own slot; the status never moves back.
func Apply(c *model.Contract, sub Submission) error {
	if !sub.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, sub.Role)
	}
	if c.Status.IsClosed() {
		return fmt.Errorf("%w: %s", ErrContractClosed, c.Status)
	}
	if missing := sub.Party.MissingFields(); len(missing) > 0 {
		return &PartyInfoIncompleteError{Role: sub.Role, Missing: missing}
	}
	if len(sub.Signature) == 0 {
		return ErrEmptySignature
	}
	if StatusOf(c) == model.SigningStatusSigned && !sub.Resign {
		return &AlreadyTerminalError{ContractID: c.ID.String()}
	}

	at := sub.At
	info := sub.Party
	payload := append([]byte(nil), sub.Signature...)
	switch sub.Role {
	case model.PartyRoleCustomer:
		c.CustomerSignature = payload
		c.CustomerInfo = &info
		c.CustomerSignedAt = &at
	case model.PartyRoleEmployee:
		c.EmployeeSignature = payload
		c.EmployeeInfo = &info
		c.EmployeeSignedAt = &at
	}
	c.SigningStatus = StatusOf(c)
	if c.SigningStatus == model.SigningStatusSigned {
		promote(c, at)
	}
	return nil
}

// Resign clears exactly one party's slot so that party can sign again. The
// other party's signature and snapshot are left as they are.
func Resign(c *model.Contract, role model.PartyRole) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if c.Status.IsClosed() {
		return fmt.Errorf("%w: %s", ErrContractClosed, c.Status)
	}
	switch role {
	case model.PartyRoleCustomer:
		if len(c.CustomerSignature) == 0 {
			return fmt.Errorf("%w: %s", ErrNotSigned, role)
		}
		c.CustomerSignature = nil
		c.CustomerSignedAt = nil
	case model.PartyRoleEmployee:
		if len(c.EmployeeSignature) == 0 {
			return fmt.Errorf("%w: %s", ErrNotSigned, role)
		}
		c.EmployeeSignature = nil
		c.EmployeeSignedAt = nil
	}
	c.SigningStatus = StatusOf(c)
	return nil
}

// promote moves a freshly signed contract out of the unsigned lifecycle state.
func promote(c *model.Contract, at time.Time) {
	if c.Status != model.ContractStatusUnsigned && c.Status != "" {
		return
	}
	switch {
	case c.ContractType == model.ContractTypeNannyTrial:
		c.Status = model.ContractStatusTrialActive
	case !c.StartDate.IsZero() && !at.Before(c.StartDate):
		c.Status = model.ContractStatusActive
	default:
		c.Status = model.ContractStatusPending
	}
}
