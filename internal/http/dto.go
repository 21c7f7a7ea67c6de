package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/housekeeping-contracts/internal/model"
	"github.com/nurpe/housekeeping-contracts/internal/rules"
)

type contractResponse struct {
	ID               uuid.UUID        `json:"id"`
	ContractType     string           `json:"contract_type"`
	CustomerID       uuid.UUID        `json:"customer_id"`
	EmployeeID       uuid.UUID        `json:"employee_id"`
	Fields           rules.FieldSet   `json:"fields"`
	Status           string           `json:"status"`
	SigningStatus    string           `json:"signing_status"`
	CustomerSignedAt *time.Time       `json:"customer_signed_at,omitempty"`
	EmployeeSignedAt *time.Time       `json:"employee_signed_at,omitempty"`
	CustomerInfo     *model.PartyInfo `json:"customer_info,omitempty"`
	EmployeeInfo     *model.PartyInfo `json:"employee_info,omitempty"`
	ConvertedToID    *uuid.UUID       `json:"converted_to_id,omitempty"`
	Version          int              `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func toContractResponse(c *model.Contract) contractResponse {
	return contractResponse{
		ID:               c.ID,
		ContractType:     string(c.ContractType),
		CustomerID:       c.CustomerID,
		EmployeeID:       c.EmployeeID,
		Fields:           rules.FromContract(*c),
		Status:           string(c.Status),
		SigningStatus:    string(c.SigningStatus),
		CustomerSignedAt: c.CustomerSignedAt,
		EmployeeSignedAt: c.EmployeeSignedAt,
		CustomerInfo:     c.CustomerInfo,
		EmployeeInfo:     c.EmployeeInfo,
		ConvertedToID:    c.ConvertedToID,
		Version:          c.Version,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

type adjustmentResponse struct {
	ID                    uuid.UUID `json:"id"`
	Kind                  string    `json:"kind"`
	Amount                string    `json:"amount"`
	Description           string    `json:"description"`
	TargetBillID          uuid.UUID `json:"target_bill_id"`
	TargetContractID      uuid.UUID `json:"target_contract_id"`
	SourceTrialContractID uuid.UUID `json:"source_trial_contract_id"`
	CreatedAt             time.Time `json:"created_at"`
}

type conversionResponse struct {
	Trial        contractResponse     `json:"trial"`
	Cost         model.ConversionCost `json:"cost"`
	Total        string               `json:"total"`
	TargetBillID *uuid.UUID           `json:"target_bill_id,omitempty"`
	Adjustments  []adjustmentResponse `json:"adjustments"`
}

func toConversionResponse(r *model.ConversionResult) conversionResponse {
	out := conversionResponse{
		Trial:       toContractResponse(&r.Trial),
		Cost:        r.Cost,
		Total:       r.Cost.Total().StringFixed(2),
		Adjustments: make([]adjustmentResponse, 0, len(r.Adjustments)),
	}
	if r.TargetBillID != uuid.Nil {
		id := r.TargetBillID
		out.TargetBillID = &id
	}
	for _, a := range r.Adjustments {
		out.Adjustments = append(out.Adjustments, adjustmentResponse{
			ID:                    a.ID,
			Kind:                  string(a.Kind),
			Amount:                a.Amount.StringFixed(2),
			Description:           a.Description,
			TargetBillID:          a.TargetBillID,
			TargetContractID:      a.TargetContractID,
			SourceTrialContractID: a.SourceTrialContractID,
			CreatedAt:             a.CreatedAt,
		})
	}
	return out
}

type partyResponse struct {
	ID          uuid.UUID `json:"id"`
	Role        string    `json:"role"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
}
