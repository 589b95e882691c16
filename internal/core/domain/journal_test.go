package domain_test

import (
	"testing"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestJournalEntry_Totals(t *testing.T) {
	entry := domain.JournalEntry{
		Lines: []domain.JournalLine{
			{AccountID: "cash", Debit: decimal.RequireFromString("100.50")},
			{AccountID: "rev", Credit: decimal.RequireFromString("60.25")},
			{AccountID: "rev2", Credit: decimal.RequireFromString("40.25")},
		},
	}

	debit, credit := entry.Totals()
	assert.True(t, debit.Equal(decimal.RequireFromString("100.50")))
	assert.True(t, credit.Equal(decimal.RequireFromString("100.50")))
}

func TestJournalEntry_AccountIDsDeduplicates(t *testing.T) {
	entry := domain.JournalEntry{
		Lines: []domain.JournalLine{
			{AccountID: "b"},
			{AccountID: "a"},
			{AccountID: "b"},
		},
	}
	assert.Equal(t, []string{"b", "a"}, entry.AccountIDs())
}

func TestPostingStep_RoundTrip(t *testing.T) {
	for step := domain.StepReceived; step <= domain.StepComplete; step++ {
		parsed, ok := domain.ParsePostingStep(step.String())
		assert.True(t, ok, step.String())
		assert.Equal(t, step, parsed)
	}

	_, ok := domain.ParsePostingStep("SHIPPED")
	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN", domain.PostingStep(42).String())
}

func TestAccountType(t *testing.T) {
	assert.True(t, domain.Asset.IsDebitNormal())
	assert.True(t, domain.Expense.IsDebitNormal())
	assert.False(t, domain.Revenue.IsDebitNormal())
	assert.False(t, domain.AccountType("INCOME").Valid())
	assert.True(t, domain.Equity.Valid())
}
