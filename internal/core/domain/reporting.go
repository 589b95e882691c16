package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityQuery selects accounts and the window of entries whose lines are summed.
// Empty slices mean "any". From and To are inclusive entry dates; nil means unbounded.
type ActivityQuery struct {
	AccountIDs   []string
	AccountTypes []AccountType
	Subtypes     []AccountSubtype
	From         *time.Time
	To           *time.Time
	Statuses     []EntryStatus // defaults to POSTED only
	ActiveOnly   bool
}

// AccountActivity is the summed debit and credit activity of one account.
// Accounts matching the query with no activity are returned with zero totals.
type AccountActivity struct {
	AccountID   string          `json:"accountID"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	AccountType AccountType     `json:"accountType"`
	Subtype     AccountSubtype  `json:"subtype"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// StatementLine is one account row on a statement.
type StatementLine struct {
	AccountID     string           `json:"accountID"`
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Amount        decimal.Decimal  `json:"amount"`
	PriorAmount   *decimal.Decimal `json:"priorAmount,omitempty"`
	Change        *decimal.Decimal `json:"change,omitempty"`
	ChangePercent *decimal.Decimal `json:"changePercent,omitempty"`
}

// StatementSection groups lines of one subtype.
type StatementSection struct {
	Subtype       AccountSubtype   `json:"subtype"`
	Lines         []StatementLine  `json:"lines"`
	Total         decimal.Decimal  `json:"total"`
	PriorTotal    *decimal.Decimal `json:"priorTotal,omitempty"`
	Change        *decimal.Decimal `json:"change,omitempty"`
	ChangePercent *decimal.Decimal `json:"changePercent,omitempty"`
}

// TypeGroup holds all sections for one account type.
type TypeGroup struct {
	AccountType AccountType        `json:"accountType"`
	Sections    []StatementSection `json:"sections"`
	Total       decimal.Decimal    `json:"total"`
	PriorTotal  *decimal.Decimal   `json:"priorTotal,omitempty"`
}

// BalanceSheet reports asset, liability and equity balances as of a date.
type BalanceSheet struct {
	AsOf             time.Time       `json:"asOf"`
	ComparativeAsOf  *time.Time      `json:"comparativeAsOf,omitempty"`
	Assets           TypeGroup       `json:"assets"`
	Liabilities      TypeGroup       `json:"liabilities"`
	Equity           TypeGroup       `json:"equity"`
	UnclosedEarnings decimal.Decimal `json:"unclosedEarnings"`
	Balanced         bool            `json:"balanced"`
}

// IncomeStatement reports revenue and expense activity within a period.
type IncomeStatement struct {
	PeriodStart      time.Time        `json:"periodStart"`
	PeriodEnd        time.Time        `json:"periodEnd"`
	ComparativeStart *time.Time       `json:"comparativeStart,omitempty"`
	ComparativeEnd   *time.Time       `json:"comparativeEnd,omitempty"`
	Revenue          TypeGroup        `json:"revenue"`
	Expenses         TypeGroup        `json:"expenses"`
	NetIncome        decimal.Decimal  `json:"netIncome"`
	PriorNetIncome   *decimal.Decimal `json:"priorNetIncome,omitempty"`
}

// CashFlowActivity names a cash flow statement section.
type CashFlowActivity string

const (
	OperatingActivity CashFlowActivity = "OPERATING"
	InvestingActivity CashFlowActivity = "INVESTING"
	FinancingActivity CashFlowActivity = "FINANCING"
)

// CashFlowItem is one contribution to a cash flow section.
type CashFlowItem struct {
	AccountID   string          `json:"accountID,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// CashFlowSection groups items of one activity.
type CashFlowSection struct {
	Activity CashFlowActivity `json:"activity"`
	Items    []CashFlowItem   `json:"items"`
	Total    decimal.Decimal  `json:"total"`
}

// CashFlowStatement reports the movement of cash within a period.
type CashFlowStatement struct {
	PeriodStart   time.Time          `json:"periodStart"`
	PeriodEnd     time.Time          `json:"periodEnd"`
	BeginningCash decimal.Decimal    `json:"beginningCash"`
	EndingCash    decimal.Decimal    `json:"endingCash"`
	Operating     CashFlowSection    `json:"operating"`
	Investing     CashFlowSection    `json:"investing"`
	Financing     CashFlowSection    `json:"financing"`
	NetChange     decimal.Decimal    `json:"netChange"`
	Reconciled    bool               `json:"reconciled"`
	Discrepancy   decimal.Decimal    `json:"discrepancy"`
	Prior         *CashFlowStatement `json:"prior,omitempty"`
}

// FinancialStatements bundles the three statements for one period.
type FinancialStatements struct {
	BalanceSheet    *BalanceSheet      `json:"balanceSheet"`
	IncomeStatement *IncomeStatement   `json:"incomeStatement"`
	CashFlow        *CashFlowStatement `json:"cashFlow"`
}
