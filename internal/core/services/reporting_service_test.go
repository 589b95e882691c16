package services_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	"github.com/SscSPs/general_ledger/internal/dto"
	"github.com/SscSPs/general_ledger/internal/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ReportingServiceTestSuite struct {
	suite.Suite
	l   *ledger
	ctx context.Context

	cash, bank, receivable, inventory, prepaid, equipment *domain.Account
	payable, loan, capital, revenue, expense              *domain.Account

	january dto.PeriodRequest
}

// SetupTest books one month of activity plus a single December sale:
//
//	Dec 15  cash 50 / revenue 50
//	Jan 02  bank 1000 / capital 1000
//	Jan 05  receivable 300 / revenue 300
//	Jan 06  cash 200 / revenue 200
//	Jan 10  expense 120 / cash 120
//	Jan 12  equipment 400 / bank 400
//	Jan 15  inventory 150 / payable 150
//	Jan 20  bank 500 / loan 500
//	Jan 25  cash 100 / receivable 100
//	Jan 28  cash 999 / revenue 999, reversed on Jan 29
func (suite *ReportingServiceTestSuite) SetupTest() {
	suite.l = newLedger()
	suite.ctx = context.Background()
	t := suite.T()
	l := suite.l

	suite.cash = l.account(t, "1000", domain.Asset, domain.SubtypeCash)
	suite.bank = l.account(t, "1010", domain.Asset, domain.SubtypeBank)
	suite.receivable = l.account(t, "1100", domain.Asset, domain.SubtypeAccountsReceivable)
	suite.inventory = l.account(t, "1200", domain.Asset, domain.SubtypeInventory)
	suite.prepaid = l.account(t, "1300", domain.Asset, domain.SubtypePrepaidExpense)
	suite.equipment = l.account(t, "1500", domain.Asset, domain.SubtypeFixedAsset)
	suite.payable = l.account(t, "2000", domain.Liability, domain.SubtypeAccountsPayable)
	suite.loan = l.account(t, "2500", domain.Liability, domain.SubtypeLongTermDebt)
	suite.capital = l.account(t, "3000", domain.Equity, domain.SubtypeCommonStock)
	suite.revenue = l.account(t, "4000", domain.Revenue, domain.SubtypeOperatingRevenue)
	suite.expense = l.account(t, "5000", domain.Expense, domain.SubtypeOperatingExpense)

	l.post(t, day(2023, time.December, 15), debit(suite.cash.AccountID, "50"), credit(suite.revenue.AccountID, "50"))
	l.post(t, day(2024, time.January, 2), debit(suite.bank.AccountID, "1000"), credit(suite.capital.AccountID, "1000"))
	l.post(t, day(2024, time.January, 5), debit(suite.receivable.AccountID, "300"), credit(suite.revenue.AccountID, "300"))
	l.post(t, day(2024, time.January, 6), debit(suite.cash.AccountID, "200"), credit(suite.revenue.AccountID, "200"))
	l.post(t, day(2024, time.January, 10), debit(suite.expense.AccountID, "120"), credit(suite.cash.AccountID, "120"))
	l.post(t, day(2024, time.January, 12), debit(suite.equipment.AccountID, "400"), credit(suite.bank.AccountID, "400"))
	l.post(t, day(2024, time.January, 15), debit(suite.inventory.AccountID, "150"), credit(suite.payable.AccountID, "150"))
	l.post(t, day(2024, time.January, 20), debit(suite.bank.AccountID, "500"), credit(suite.loan.AccountID, "500"))
	l.post(t, day(2024, time.January, 25), debit(suite.cash.AccountID, "100"), credit(suite.receivable.AccountID, "100"))

	mistake := l.post(t, day(2024, time.January, 28), debit(suite.cash.AccountID, "999"), credit(suite.revenue.AccountID, "999"))
	reversalDate := day(2024, time.January, 29)
	_, err := l.svc.Journal.ReverseEntry(suite.ctx, mistake.EntryID, dto.ReverseEntryRequest{EntryDate: &reversalDate})
	suite.Require().NoError(err)

	suite.january = dto.PeriodRequest{StartDate: day(2024, time.January, 1), EndDate: day(2024, time.January, 31)}
}

func section(group domain.TypeGroup, subtype domain.AccountSubtype) *domain.StatementSection {
	for i := range group.Sections {
		if group.Sections[i].Subtype == subtype {
			return &group.Sections[i]
		}
	}
	return nil
}

func itemFor(s domain.CashFlowSection, accountID string) *domain.CashFlowItem {
	for i := range s.Items {
		if s.Items[i].AccountID == accountID {
			return &s.Items[i]
		}
	}
	return nil
}

func (suite *ReportingServiceTestSuite) equalDec(expected string, actual decimal.Decimal) {
	suite.True(dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func (suite *ReportingServiceTestSuite) TestBalanceSheet() {
	sheet, err := suite.l.svc.Reporting.GetBalanceSheet(suite.ctx, dto.BalanceSheetRequest{EndDate: suite.january.EndDate})
	suite.Require().NoError(err)

	suite.equalDec("2080", sheet.Assets.Total)
	suite.equalDec("650", sheet.Liabilities.Total)
	suite.equalDec("1000", sheet.Equity.Total)
	suite.equalDec("430", sheet.UnclosedEarnings)
	suite.True(sheet.Balanced)

	cash := section(sheet.Assets, domain.SubtypeCash)
	suite.Require().NotNil(cash)
	suite.equalDec("230", cash.Total)
	suite.Nil(section(sheet.Assets, domain.SubtypePrepaidExpense), "zero rows are hidden by default")
	suite.Nil(section(sheet.Assets, domain.SubtypeOperatingRevenue))
	suite.Nil(sheet.ComparativeAsOf)
	suite.Nil(sheet.Assets.PriorTotal)
}

func (suite *ReportingServiceTestSuite) TestBalanceSheet_AsOfEarlierDate() {
	sheet, err := suite.l.svc.Reporting.GetBalanceSheet(suite.ctx, dto.BalanceSheetRequest{EndDate: day(2024, time.January, 5)})
	suite.Require().NoError(err)

	suite.equalDec("1350", sheet.Assets.Total)
	suite.equalDec("350", sheet.UnclosedEarnings)
	suite.True(sheet.Balanced)
}

func (suite *ReportingServiceTestSuite) TestBalanceSheet_ComparativeAndZeroRows() {
	sheet, err := suite.l.svc.Reporting.GetBalanceSheet(suite.ctx, dto.BalanceSheetRequest{
		EndDate:             suite.january.EndDate,
		Comparative:         true,
		IncludeZeroBalances: true,
	})
	suite.Require().NoError(err)

	suite.Require().NotNil(sheet.ComparativeAsOf)
	suite.Equal(day(2023, time.January, 31), *sheet.ComparativeAsOf)
	suite.Require().NotNil(sheet.Assets.PriorTotal)
	suite.True(sheet.Assets.PriorTotal.IsZero())

	prepaid := section(sheet.Assets, domain.SubtypePrepaidExpense)
	suite.Require().NotNil(prepaid)
	suite.Require().Len(prepaid.Lines, 1)
	suite.True(prepaid.Lines[0].Amount.IsZero())

	cash := section(sheet.Assets, domain.SubtypeCash)
	suite.Require().NotNil(cash)
	suite.Require().NotNil(cash.Change)
	suite.equalDec("230", *cash.Change)
	suite.Nil(cash.ChangePercent, "no percentage against a zero prior balance")
}

func (suite *ReportingServiceTestSuite) TestIncomeStatement() {
	stmt, err := suite.l.svc.Reporting.GetIncomeStatement(suite.ctx, suite.january)
	suite.Require().NoError(err)

	// The reversed Jan 28 sale is excluded.
	suite.equalDec("500", stmt.Revenue.Total)
	suite.equalDec("120", stmt.Expenses.Total)
	suite.equalDec("380", stmt.NetIncome)
	suite.Nil(stmt.PriorNetIncome)
}

func (suite *ReportingServiceTestSuite) TestIncomeStatement_Comparative() {
	req := suite.january
	req.Comparative = true

	stmt, err := suite.l.svc.Reporting.GetIncomeStatement(suite.ctx, req)
	suite.Require().NoError(err)

	suite.Require().NotNil(stmt.ComparativeStart)
	suite.Require().NotNil(stmt.ComparativeEnd)
	suite.Equal(day(2023, time.December, 1), *stmt.ComparativeStart)
	suite.Equal(day(2023, time.December, 31), *stmt.ComparativeEnd)
	suite.Require().NotNil(stmt.PriorNetIncome)
	suite.equalDec("50", *stmt.PriorNetIncome)

	revenue := section(stmt.Revenue, domain.SubtypeOperatingRevenue)
	suite.Require().NotNil(revenue)
	suite.Require().NotNil(revenue.ChangePercent)
	suite.equalDec("900", *revenue.ChangePercent)
}

func (suite *ReportingServiceTestSuite) TestIncomeStatement_RejectsInvertedPeriod() {
	_, err := suite.l.svc.Reporting.GetIncomeStatement(suite.ctx, dto.PeriodRequest{
		StartDate: day(2024, time.February, 1),
		EndDate:   day(2024, time.January, 1),
	})
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *ReportingServiceTestSuite) TestCashFlow_Reconciles() {
	stmt, err := suite.l.svc.Reporting.GetCashFlowStatement(suite.ctx, suite.january)
	suite.Require().NoError(err)

	suite.equalDec("50", stmt.BeginningCash)
	suite.equalDec("1330", stmt.EndingCash)

	suite.equalDec("380", stmt.Operating.Items[0].Amount)
	suite.Equal("Net income", stmt.Operating.Items[0].Description)
	receivable := itemFor(stmt.Operating, suite.receivable.AccountID)
	suite.Require().NotNil(receivable)
	suite.equalDec("-200", receivable.Amount)
	inventory := itemFor(stmt.Operating, suite.inventory.AccountID)
	suite.Require().NotNil(inventory)
	suite.equalDec("-150", inventory.Amount)
	payable := itemFor(stmt.Operating, suite.payable.AccountID)
	suite.Require().NotNil(payable)
	suite.equalDec("150", payable.Amount)
	suite.Nil(itemFor(stmt.Operating, suite.prepaid.AccountID))
	suite.equalDec("180", stmt.Operating.Total)

	suite.equalDec("-400", stmt.Investing.Total)
	suite.equalDec("1500", stmt.Financing.Total)
	suite.equalDec("1280", stmt.NetChange)
	suite.True(stmt.Discrepancy.IsZero())
	suite.True(stmt.Reconciled)
	suite.Nil(stmt.Prior)
}

func (suite *ReportingServiceTestSuite) TestCashFlow_Comparative() {
	req := suite.january
	req.Comparative = true

	stmt, err := suite.l.svc.Reporting.GetCashFlowStatement(suite.ctx, req)
	suite.Require().NoError(err)

	suite.Require().NotNil(stmt.Prior)
	suite.True(stmt.Prior.BeginningCash.IsZero())
	suite.equalDec("50", stmt.Prior.EndingCash)
	suite.equalDec("50", stmt.Prior.NetChange)
	suite.True(stmt.Prior.Reconciled)
}

func (suite *ReportingServiceTestSuite) TestGenerateStatements() {
	out, err := suite.l.svc.Reporting.GenerateStatements(suite.ctx, dto.StatementsRequest{PeriodRequest: suite.january})
	suite.Require().NoError(err)

	suite.Require().NotNil(out.BalanceSheet)
	suite.Require().NotNil(out.IncomeStatement)
	suite.Require().NotNil(out.CashFlow)
	suite.True(out.BalanceSheet.Balanced)
	suite.True(out.CashFlow.Reconciled)
	suite.True(out.CashFlow.NetChange.Equal(out.CashFlow.EndingCash.Sub(out.CashFlow.BeginningCash)))
	suite.True(out.IncomeStatement.NetIncome.Equal(out.CashFlow.Operating.Items[0].Amount))
}

func (suite *ReportingServiceTestSuite) TestStatements_IgnoreDrafts() {
	before, err := suite.l.svc.Reporting.GenerateStatements(suite.ctx, dto.StatementsRequest{PeriodRequest: suite.january})
	suite.Require().NoError(err)

	_, err = suite.l.svc.Journal.PostEntry(suite.ctx, dto.PostJournalEntryRequest{
		EntryDate: day(2024, time.January, 30),
		Draft:     true,
		Lines:     []dto.JournalLineRequest{debit(suite.cash.AccountID, "777"), credit(suite.revenue.AccountID, "777")},
	})
	suite.Require().NoError(err)

	after, err := suite.l.svc.Reporting.GenerateStatements(suite.ctx, dto.StatementsRequest{PeriodRequest: suite.january})
	suite.Require().NoError(err)

	suite.True(before.BalanceSheet.Assets.Total.Equal(after.BalanceSheet.Assets.Total))
	suite.True(before.BalanceSheet.UnclosedEarnings.Equal(after.BalanceSheet.UnclosedEarnings))
	suite.True(before.IncomeStatement.Revenue.Total.Equal(after.IncomeStatement.Revenue.Total))
	suite.equalDec("380", after.IncomeStatement.NetIncome)
	suite.equalDec("1330", after.CashFlow.EndingCash)
	suite.True(after.CashFlow.Reconciled)
}

func (suite *ReportingServiceTestSuite) TestCashFlow_UnmappedSubtypeIsReported() {
	suspense := suite.l.account(suite.T(), "1900", domain.Asset, domain.AccountSubtype("SUSPENSE"))
	suite.l.post(suite.T(), day(2024, time.January, 30), debit(suite.cash.AccountID, "60"), credit(suspense.AccountID, "60"))

	var logs bytes.Buffer
	ctx := middleware.WithLogger(suite.ctx, slog.New(slog.NewJSONHandler(&logs, nil)))

	stmt, err := suite.l.svc.Reporting.GetCashFlowStatement(ctx, suite.january)
	suite.Require().NoError(err)

	suite.equalDec("1390", stmt.EndingCash)
	suite.equalDec("1280", stmt.NetChange)
	suite.equalDec("-60", stmt.Discrepancy)
	suite.False(stmt.Reconciled)
	suite.Nil(itemFor(stmt.Operating, suspense.AccountID))
	suite.Contains(logs.String(), "Cash flow does not reconcile with cash balances")
	suite.Contains(logs.String(), `"level":"WARN"`)
}

func TestReportingServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReportingServiceTestSuite))
}
