package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleStaff    UserRole = "staff"
	UserRoleCustomer UserRole = "customer"
	UserRoleEmployee UserRole = "employee"
)

// Principal is the authenticated caller. Customer and employee principals come from
// signing links and are bound to a single contract.
type Principal struct {
	UserID     uuid.UUID
	Role       UserRole
	ContractID *uuid.UUID
}

func (p Principal) IsBackOffice() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleStaff
}

func (p Principal) IsParty() bool {
	return p.Role == UserRoleCustomer || p.Role == UserRoleEmployee
}

// PartyRole maps a signing-link principal to the slot it may write.
func (p Principal) PartyRole() (PartyRole, bool) {
	switch p.Role {
	case UserRoleCustomer:
		return PartyRoleCustomer, true
	case UserRoleEmployee:
		return PartyRoleEmployee, true
	default:
		return "", false
	}
}

// CanAccessContract reports whether the principal may read the contract.
func (p Principal) CanAccessContract(id uuid.UUID) bool {
	if p.IsBackOffice() {
		return true
	}
	return p.ContractID != nil && *p.ContractID == id
}
