package services

import (
	"context"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/SscSPs/general_ledger/internal/dto"
)

// ReportingService generates financial statements from posted entries.
type ReportingService interface {
	GetBalanceSheet(ctx context.Context, req dto.BalanceSheetRequest) (*domain.BalanceSheet, error)
	GetIncomeStatement(ctx context.Context, req dto.PeriodRequest) (*domain.IncomeStatement, error)
	GetCashFlowStatement(ctx context.Context, req dto.PeriodRequest) (*domain.CashFlowStatement, error)

	// GenerateStatements builds all three statements for the window concurrently.
	GenerateStatements(ctx context.Context, req dto.StatementsRequest) (*domain.FinancialStatements, error)
}
