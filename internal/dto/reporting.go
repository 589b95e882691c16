package dto

import "time"

// BalanceSheetRequest selects the balance sheet date and presentation options.
type BalanceSheetRequest struct {
	EndDate             time.Time `json:"endDate" validate:"required"`
	Comparative         bool      `json:"comparative"`
	IncludeZeroBalances bool      `json:"includeZeroBalances"`
}

// PeriodRequest selects an inclusive reporting window.
type PeriodRequest struct {
	StartDate   time.Time `json:"startDate" validate:"required"`
	EndDate     time.Time `json:"endDate" validate:"required,gtefield=StartDate"`
	Comparative bool      `json:"comparative"`
}

// StatementsRequest selects all three statements for one window.
type StatementsRequest struct {
	PeriodRequest
	IncludeZeroBalances bool `json:"includeZeroBalances"`
}
