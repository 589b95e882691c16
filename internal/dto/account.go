package dto

import (
	"github.com/SscSPs/general_ledger/internal/core/domain"
)

// CreateAccountRequest defines the data needed to add an account to the chart.
type CreateAccountRequest struct {
	Code            string                `json:"code" validate:"required,max=20"`
	Name            string                `json:"name" validate:"required,max=255"`
	AccountType     domain.AccountType    `json:"accountType" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Subtype         domain.AccountSubtype `json:"subtype" validate:"required,max=50"`
	ParentAccountID *string               `json:"parentAccountID,omitempty"`
	Description     string                `json:"description" validate:"max=500"`
	Actor           string                `json:"actor,omitempty"`
}

// UpdateAccountRequest defines the updatable fields of an account. Nil fields are left unchanged.
type UpdateAccountRequest struct {
	Name            *string                `json:"name,omitempty" validate:"omitempty,max=255"`
	Subtype         *domain.AccountSubtype `json:"subtype,omitempty" validate:"omitempty,max=50"`
	Description     *string                `json:"description,omitempty" validate:"omitempty,max=500"`
	ParentAccountID *string                `json:"parentAccountID,omitempty"`
	ClearParent     bool                   `json:"clearParent,omitempty"`
	IsActive        *bool                  `json:"isActive,omitempty"`
	Actor           string                 `json:"actor,omitempty"`
}
