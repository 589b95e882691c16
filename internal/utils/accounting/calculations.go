package accounting

import (
	"fmt"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Tolerance is the largest accepted difference between debit and credit totals.
var Tolerance = decimal.RequireFromString(domain.BalanceTolerance)

// AmountScale is the number of decimal places amounts are stored with.
const AmountScale = 4

// NaturalBalance converts debit and credit activity into the balance of an account in its natural sign.
// It is the single sign convention used by posting and by every statement:
// DEBIT to ASSET/EXPENSE -> Positive (+), CREDIT to ASSET/EXPENSE -> Negative (-),
// DEBIT to LIABILITY/EQUITY/REVENUE -> Negative (-), CREDIT to LIABILITY/EQUITY/REVENUE -> Positive (+).
func NaturalBalance(accountType domain.AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if accountType.IsDebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// CalculateSignedAmount returns the balance delta a single line applies to its account.
func CalculateSignedAmount(line domain.JournalLine, accountType domain.AccountType) (decimal.Decimal, error) {
	if !accountType.Valid() {
		return decimal.Zero, fmt.Errorf("unknown account type '%s' encountered for account ID %s", accountType, line.AccountID)
	}
	return NaturalBalance(accountType, line.Debit, line.Credit), nil
}

// BalanceChanges sums the signed deltas of all lines per account.
func BalanceChanges(lines []domain.JournalLine, accounts map[string]domain.Account) (map[string]decimal.Decimal, error) {
	changes := make(map[string]decimal.Decimal, len(accounts))
	for _, line := range lines {
		acc, ok := accounts[line.AccountID]
		if !ok {
			return nil, apperrors.NewNotFoundError("account", line.AccountID)
		}
		delta, err := CalculateSignedAmount(line, acc.AccountType)
		if err != nil {
			return nil, err
		}
		changes[line.AccountID] = changes[line.AccountID].Add(delta)
	}
	return changes, nil
}

// ValidateLines checks that every line carries exactly one strictly positive side with at
// most AmountScale decimal places, and that total debits equal total credits within Tolerance.
func ValidateLines(lines []domain.JournalLine) error {
	if len(lines) == 0 {
		return apperrors.NewValidationError("journal entry must have at least one line")
	}

	debits, credits := decimal.Zero, decimal.Zero
	for i, line := range lines {
		if line.AccountID == "" {
			return apperrors.NewValidationError("line %d: account is required", i+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return apperrors.NewValidationError("line %d: amounts cannot be negative", i+1)
		}
		if !fitsScale(line.Debit) || !fitsScale(line.Credit) {
			return apperrors.NewValidationError("line %d: amounts allow at most %d decimal places", i+1, AmountScale)
		}
		hasDebit, hasCredit := line.Debit.IsPositive(), line.Credit.IsPositive()
		if hasDebit == hasCredit {
			return apperrors.NewValidationError("line %d: exactly one of debit or credit must be positive", i+1)
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}

	if debits.Sub(credits).Abs().GreaterThan(Tolerance) {
		return apperrors.NewValidationError("debits (%s) do not equal credits (%s)", debits.String(), credits.String())
	}
	return nil
}

func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale))
}

// PercentChange returns (current-prior)/|prior|*100 rounded to two places, or nil when prior is zero.
func PercentChange(current, prior decimal.Decimal) *decimal.Decimal {
	if prior.IsZero() {
		return nil
	}
	pct := current.Sub(prior).Div(prior.Abs()).Mul(decimal.NewFromInt(100)).Round(2)
	return &pct
}
