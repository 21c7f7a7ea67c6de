package model

import (
	"strings"

	"github.com/google/uuid"
)

type PartyRole string

const (
	PartyRoleCustomer PartyRole = "customer"
	PartyRoleEmployee PartyRole = "employee"
)

func (r PartyRole) Valid() bool {
	return r == PartyRoleCustomer || r == PartyRoleEmployee
}

// Other returns the counterpart role.
func (r PartyRole) Other() PartyRole {
	if r == PartyRoleCustomer {
		return PartyRoleEmployee
	}
	return PartyRoleCustomer
}

// PartyInfo is the identity snapshot embedded into a contract at signing time.
type PartyInfo struct {
	Name         string `json:"name"`
	PhoneNumber  string `json:"phone_number"`
	IDCardNumber string `json:"id_card_number"`
	Address      string `json:"address"`
}

// MissingFields lists the json names of empty fields.
func (p PartyInfo) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.PhoneNumber) == "" {
		missing = append(missing, "phone_number")
	}
	if strings.TrimSpace(p.IDCardNumber) == "" {
		missing = append(missing, "id_card_number")
	}
	if strings.TrimSpace(p.Address) == "" {
		missing = append(missing, "address")
	}
	return missing
}

// Party is a live customer or employee record from the directory.
type Party struct {
	ID   uuid.UUID
	Role PartyRole
	PartyInfo
}
