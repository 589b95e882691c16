package domain

import (
	"github.com/shopspring/decimal"
)

// AccountType defines the fundamental accounting type of an account.
type AccountType string

const (
	Asset     AccountType = "ASSET"
	Liability AccountType = "LIABILITY"
	Equity    AccountType = "EQUITY"
	Revenue   AccountType = "REVENUE"
	Expense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case Asset, Liability, Equity, Revenue, Expense:
		return true
	}
	return false
}

// IsDebitNormal reports whether debits increase the natural balance of the type.
func (t AccountType) IsDebitNormal() bool {
	return t == Asset || t == Expense
}

// AccountSubtype refines an AccountType for statement grouping.
type AccountSubtype string

const (
	SubtypeCash               AccountSubtype = "CASH"
	SubtypeBank               AccountSubtype = "BANK"
	SubtypeAccountsReceivable AccountSubtype = "ACCOUNTS_RECEIVABLE"
	SubtypeInventory          AccountSubtype = "INVENTORY"
	SubtypePrepaidExpense     AccountSubtype = "PREPAID_EXPENSE"
	SubtypeOtherCurrentAsset  AccountSubtype = "OTHER_CURRENT_ASSET"
	SubtypeFixedAsset         AccountSubtype = "FIXED_ASSET"
	SubtypeLongTermInvestment AccountSubtype = "LONG_TERM_INVESTMENT"
	SubtypeIntangibleAsset    AccountSubtype = "INTANGIBLE_ASSET"

	SubtypeAccountsPayable       AccountSubtype = "ACCOUNTS_PAYABLE"
	SubtypeAccruedLiability      AccountSubtype = "ACCRUED_LIABILITY"
	SubtypeOtherCurrentLiability AccountSubtype = "OTHER_CURRENT_LIABILITY"
	SubtypeNotesPayable          AccountSubtype = "NOTES_PAYABLE"
	SubtypeLongTermDebt          AccountSubtype = "LONG_TERM_DEBT"

	SubtypeOwnerEquity      AccountSubtype = "OWNER_EQUITY"
	SubtypeCommonStock      AccountSubtype = "COMMON_STOCK"
	SubtypeOwnerDrawings    AccountSubtype = "OWNER_DRAWINGS"
	SubtypeRetainedEarnings AccountSubtype = "RETAINED_EARNINGS"

	SubtypeOperatingRevenue AccountSubtype = "OPERATING_REVENUE"
	SubtypeOtherRevenue     AccountSubtype = "OTHER_REVENUE"

	SubtypeCostOfGoodsSold  AccountSubtype = "COST_OF_GOODS_SOLD"
	SubtypeOperatingExpense AccountSubtype = "OPERATING_EXPENSE"
	SubtypeOtherExpense     AccountSubtype = "OTHER_EXPENSE"
)

// Account represents a ledger account in the chart of accounts.
type Account struct {
	AccountID       string          `json:"accountID"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	AccountType     AccountType     `json:"accountType"`
	Subtype         AccountSubtype  `json:"subtype"`
	ParentAccountID *string         `json:"parentAccountID,omitempty"`
	Description     string          `json:"description"`
	IsActive        bool            `json:"isActive"`
	Balance         decimal.Decimal `json:"balance"` // natural-sign balance of all POSTED lines
	AuditFields
}

// AccountFilter narrows account listings. Zero values mean "any".
type AccountFilter struct {
	AccountType     AccountType
	Subtype         AccountSubtype
	ParentAccountID *string
	ActiveOnly      bool
	Limit           int
	Offset          int
}
