package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/dto"
	"github.com/SscSPs/general_ledger/internal/utils/accounting"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// cashSubtypes are the accounts whose balance is "cash" on the cash flow statement.
var cashSubtypes = []domain.AccountSubtype{domain.SubtypeCash, domain.SubtypeBank}

type cashFlowRule struct {
	activity domain.CashFlowActivity
	negate   bool
}

// cashFlowRules maps non-cash subtypes to the section their period change is reported in.
// Asset increases consume cash, so their change is negated.
var cashFlowRules = map[domain.AccountSubtype]cashFlowRule{
	domain.SubtypeAccountsReceivable:    {domain.OperatingActivity, true},
	domain.SubtypeInventory:             {domain.OperatingActivity, true},
	domain.SubtypePrepaidExpense:        {domain.OperatingActivity, true},
	domain.SubtypeOtherCurrentAsset:     {domain.OperatingActivity, true},
	domain.SubtypeAccountsPayable:       {domain.OperatingActivity, false},
	domain.SubtypeAccruedLiability:      {domain.OperatingActivity, false},
	domain.SubtypeOtherCurrentLiability: {domain.OperatingActivity, false},
	domain.SubtypeRetainedEarnings:      {domain.OperatingActivity, false},

	domain.SubtypeFixedAsset:         {domain.InvestingActivity, true},
	domain.SubtypeLongTermInvestment: {domain.InvestingActivity, true},
	domain.SubtypeIntangibleAsset:    {domain.InvestingActivity, true},

	domain.SubtypeNotesPayable:  {domain.FinancingActivity, false},
	domain.SubtypeLongTermDebt:  {domain.FinancingActivity, false},
	domain.SubtypeOwnerEquity:   {domain.FinancingActivity, false},
	domain.SubtypeCommonStock:   {domain.FinancingActivity, false},
	domain.SubtypeOwnerDrawings: {domain.FinancingActivity, false},
}

// reportingService implements the ReportingService interface
type reportingService struct {
	BaseService
	txManager     portsrepo.TransactionManager
	reportingRepo portsrepo.ReportingRepository
}

// NewReportingService creates the statement engine.
func NewReportingService(txManager portsrepo.TransactionManager, repo portsrepo.ReportingRepository) portssvc.ReportingService {
	return &reportingService{
		txManager:     txManager,
		reportingRepo: repo,
	}
}

// Ensure reportingService implements the ReportingService interface
var _ portssvc.ReportingService = (*reportingService)(nil)

// buildGroup turns account activity of one type into subtype sections. prior is nil unless
// the statement is comparative. Rows that are zero in every presented period are dropped
// unless includeZero is set.
func buildGroup(accountType domain.AccountType, current []domain.AccountActivity, prior map[string]domain.AccountActivity, includeZero bool) domain.TypeGroup {
	group := domain.TypeGroup{AccountType: accountType, Sections: []domain.StatementSection{}, Total: decimal.Zero}
	index := map[domain.AccountSubtype]int{}
	comparative := prior != nil
	priorTotal := decimal.Zero

	for _, a := range current {
		if a.AccountType != accountType {
			continue
		}
		amount := accounting.NaturalBalance(accountType, a.Debit, a.Credit)
		line := domain.StatementLine{AccountID: a.AccountID, Code: a.Code, Name: a.Name, Amount: amount}

		priorAmount := decimal.Zero
		if comparative {
			if p, ok := prior[a.AccountID]; ok {
				priorAmount = accounting.NaturalBalance(accountType, p.Debit, p.Credit)
			}
			change := amount.Sub(priorAmount)
			line.PriorAmount = &priorAmount
			line.Change = &change
			line.ChangePercent = accounting.PercentChange(amount, priorAmount)
		}
		if !includeZero && amount.IsZero() && priorAmount.IsZero() {
			continue
		}

		i, ok := index[a.Subtype]
		if !ok {
			i = len(group.Sections)
			index[a.Subtype] = i
			section := domain.StatementSection{Subtype: a.Subtype, Total: decimal.Zero}
			if comparative {
				zero := decimal.Zero
				section.PriorTotal = &zero
			}
			group.Sections = append(group.Sections, section)
		}
		section := &group.Sections[i]
		section.Lines = append(section.Lines, line)
		section.Total = section.Total.Add(amount)
		group.Total = group.Total.Add(amount)
		if comparative {
			pt := section.PriorTotal.Add(priorAmount)
			section.PriorTotal = &pt
			priorTotal = priorTotal.Add(priorAmount)
		}
	}

	if comparative {
		for i := range group.Sections {
			section := &group.Sections[i]
			change := section.Total.Sub(*section.PriorTotal)
			section.Change = &change
			section.ChangePercent = accounting.PercentChange(section.Total, *section.PriorTotal)
		}
		group.PriorTotal = &priorTotal
	}
	return group
}

func byAccountID(rows []domain.AccountActivity) map[string]domain.AccountActivity {
	m := make(map[string]domain.AccountActivity, len(rows))
	for _, r := range rows {
		m[r.AccountID] = r
	}
	return m
}

// netIncome returns revenue minus expenses over the activity rows.
func netIncome(rows []domain.AccountActivity) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		switch r.AccountType {
		case domain.Revenue:
			total = total.Add(accounting.NaturalBalance(r.AccountType, r.Debit, r.Credit))
		case domain.Expense:
			total = total.Sub(accounting.NaturalBalance(r.AccountType, r.Debit, r.Credit))
		}
	}
	return total
}

func (s *reportingService) earningsThrough(ctx context.Context, end time.Time) (decimal.Decimal, error) {
	rows, err := s.reportingRepo.SumActivity(ctx, domain.ActivityQuery{
		AccountTypes: []domain.AccountType{domain.Revenue, domain.Expense},
		To:           &end,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return netIncome(rows), nil
}

func (s *reportingService) GetBalanceSheet(ctx context.Context, req dto.BalanceSheetRequest) (*domain.BalanceSheet, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	return s.balanceSheet(ctx, dateOnly(req.EndDate), req.Comparative, req.IncludeZeroBalances)
}

func (s *reportingService) balanceSheet(ctx context.Context, end time.Time, comparative, includeZero bool) (*domain.BalanceSheet, error) {
	sheet := &domain.BalanceSheet{AsOf: end}
	types := []domain.AccountType{domain.Asset, domain.Liability, domain.Equity}

	err := s.txManager.RunInSnapshot(ctx, func(ctx context.Context) error {
		current, err := s.reportingRepo.SumActivity(ctx, domain.ActivityQuery{AccountTypes: types, To: &end, ActiveOnly: true})
		if err != nil {
			return err
		}
		earnings, err := s.earningsThrough(ctx, end)
		if err != nil {
			return err
		}

		var prior map[string]domain.AccountActivity
		if comparative {
			prevEnd := end.AddDate(-1, 0, 0)
			rows, err := s.reportingRepo.SumActivity(ctx, domain.ActivityQuery{AccountTypes: types, To: &prevEnd, ActiveOnly: true})
			if err != nil {
				return err
			}
			prior = byAccountID(rows)
			sheet.ComparativeAsOf = &prevEnd
		}

		sheet.Assets = buildGroup(domain.Asset, current, prior, includeZero)
		sheet.Liabilities = buildGroup(domain.Liability, current, prior, includeZero)
		sheet.Equity = buildGroup(domain.Equity, current, prior, includeZero)
		sheet.UnclosedEarnings = earnings
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to build balance sheet", slog.String("as_of", end.Format(time.DateOnly)))
		return nil, fmt.Errorf("failed to build balance sheet: %w", err)
	}

	claims := sheet.Liabilities.Total.Add(sheet.Equity.Total).Add(sheet.UnclosedEarnings)
	sheet.Balanced = sheet.Assets.Total.Sub(claims).Abs().LessThanOrEqual(accounting.Tolerance)
	if !sheet.Balanced {
		s.LogWarn(ctx, "Balance sheet does not balance",
			slog.String("as_of", end.Format(time.DateOnly)),
			slog.String("assets", sheet.Assets.Total.String()),
			slog.String("liabilities_and_equity", claims.String()))
	}

	s.LogInfo(ctx, "Balance sheet generated",
		slog.String("as_of", end.Format(time.DateOnly)),
		slog.Bool("comparative", comparative))
	return sheet, nil
}

// priorWindow returns the window of equal length that ends the day before start.
func priorWindow(start, end time.Time) (time.Time, time.Time) {
	prevEnd := start.AddDate(0, 0, -1)
	return prevEnd.Add(-end.Sub(start)), prevEnd
}

func (s *reportingService) GetIncomeStatement(ctx context.Context, req dto.PeriodRequest) (*domain.IncomeStatement, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	return s.incomeStatement(ctx, dateOnly(req.StartDate), dateOnly(req.EndDate), req.Comparative, false)
}

func (s *reportingService) incomeStatement(ctx context.Context, start, end time.Time, comparative, includeZero bool) (*domain.IncomeStatement, error) {
	stmt := &domain.IncomeStatement{PeriodStart: start, PeriodEnd: end}
	types := []domain.AccountType{domain.Revenue, domain.Expense}

	err := s.txManager.RunInSnapshot(ctx, func(ctx context.Context) error {
		current, err := s.reportingRepo.SumActivity(ctx, domain.ActivityQuery{AccountTypes: types, From: &start, To: &end})
		if err != nil {
			return err
		}

		var prior map[string]domain.AccountActivity
		if comparative {
			prevStart, prevEnd := priorWindow(start, end)
			rows, err := s.reportingRepo.SumActivity(ctx, domain.ActivityQuery{AccountTypes: types, From: &prevStart, To: &prevEnd})
			if err != nil {
				return err
			}
			prior = byAccountID(rows)
			priorNet := netIncome(rows)
			stmt.ComparativeStart = &prevStart
			stmt.ComparativeEnd = &prevEnd
			stmt.PriorNetIncome = &priorNet
		}

		stmt.Revenue = buildGroup(domain.Revenue, current, prior, includeZero)
		stmt.Expenses = buildGroup(domain.Expense, current, prior, includeZero)
		stmt.NetIncome = stmt.Revenue.Total.Sub(stmt.Expenses.Total)
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to build income statement",
			slog.String("from", start.Format(time.DateOnly)),
			slog.String("to", end.Format(time.DateOnly)))
		return nil, fmt.Errorf("failed to build income statement: %w", err)
	}

	s.LogInfo(ctx, "Income statement generated",
		slog.String("from", start.Format(time.DateOnly)),
		slog.String("to", end.Format(time.DateOnly)),
		slog.String("net_income", stmt.NetIncome.String()))
	return stmt, nil
}

func (s *reportingService) GetCashFlowStatement(ctx context.Context, req dto.PeriodRequest) (*domain.CashFlowStatement, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	return s.cashFlow(ctx, dateOnly(req.StartDate), dateOnly(req.EndDate), req.Comparative)
}

func (s *reportingService) cashFlow(ctx context.Context, start, end time.Time, comparative bool) (*domain.CashFlowStatement, error) {
	var stmt *domain.CashFlowStatement
	err := s.txManager.RunInSnapshot(ctx, func(ctx context.Context) error {
		var err error
		stmt, err = s.cashFlowIn(ctx, start, end)
		if err != nil {
			return err
		}
		if comparative {
			prevStart, prevEnd := priorWindow(start, end)
			stmt.Prior, err = s.cashFlowIn(ctx, prevStart, prevEnd)
		}
		return err
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to build cash flow statement",
			slog.String("from", start.Format(time.DateOnly)),
			slog.String("to", end.Format(time.DateOnly)))
		return nil, fmt.Errorf("failed to build cash flow statement: %w", err)
	}

	for _, cf := range []*domain.CashFlowStatement{stmt, stmt.Prior} {
		if cf != nil && !cf.Reconciled {
			s.LogWarn(ctx, "Cash flow does not reconcile with cash balances",
				slog.String("from", cf.PeriodStart.Format(time.DateOnly)),
				slog.String("to", cf.PeriodEnd.Format(time.DateOnly)),
				slog.String("net_change", cf.NetChange.String()),
				slog.String("discrepancy", cf.Discrepancy.String()))
		}
	}
	return stmt, nil
}

func (s *reportingService) cashBalance(ctx context.Context, through time.Time) (decimal.Decimal, error) {
	rows, err := s.reportingRepo.SumActivity(ctx, domain.ActivityQuery{
		AccountTypes: []domain.AccountType{domain.Asset},
		Subtypes:     cashSubtypes,
		To:           &through,
	})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(accounting.NaturalBalance(r.AccountType, r.Debit, r.Credit))
	}
	return total, nil
}

// cashFlowIn computes one period using the indirect method. It must run inside a snapshot.
func (s *reportingService) cashFlowIn(ctx context.Context, start, end time.Time) (*domain.CashFlowStatement, error) {
	beginning, err := s.cashBalance(ctx, start.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	ending, err := s.cashBalance(ctx, end)
	if err != nil {
		return nil, err
	}
	activity, err := s.reportingRepo.SumActivity(ctx, domain.ActivityQuery{From: &start, To: &end})
	if err != nil {
		return nil, err
	}

	net := netIncome(activity)
	sections := map[domain.CashFlowActivity]*domain.CashFlowSection{
		domain.OperatingActivity: {Activity: domain.OperatingActivity, Items: []domain.CashFlowItem{{Description: "Net income", Amount: net}}, Total: net},
		domain.InvestingActivity: {Activity: domain.InvestingActivity, Items: []domain.CashFlowItem{}, Total: decimal.Zero},
		domain.FinancingActivity: {Activity: domain.FinancingActivity, Items: []domain.CashFlowItem{}, Total: decimal.Zero},
	}

	for _, a := range activity {
		rule, ok := cashFlowRules[a.Subtype]
		if !ok {
			continue
		}
		amount := accounting.NaturalBalance(a.AccountType, a.Debit, a.Credit)
		if rule.negate {
			amount = amount.Neg()
		}
		if amount.IsZero() {
			continue
		}
		section := sections[rule.activity]
		section.Items = append(section.Items, domain.CashFlowItem{AccountID: a.AccountID, Description: a.Name, Amount: amount})
		section.Total = section.Total.Add(amount)
	}

	stmt := &domain.CashFlowStatement{
		PeriodStart:   start,
		PeriodEnd:     end,
		BeginningCash: beginning,
		EndingCash:    ending,
		Operating:     *sections[domain.OperatingActivity],
		Investing:     *sections[domain.InvestingActivity],
		Financing:     *sections[domain.FinancingActivity],
	}
	stmt.NetChange = stmt.Operating.Total.Add(stmt.Investing.Total).Add(stmt.Financing.Total)
	stmt.Discrepancy = stmt.NetChange.Sub(ending.Sub(beginning))
	stmt.Reconciled = stmt.Discrepancy.Abs().LessThanOrEqual(accounting.Tolerance)
	return stmt, nil
}

// GenerateStatements builds the three statements concurrently, each from its own snapshot.
func (s *reportingService) GenerateStatements(ctx context.Context, req dto.StatementsRequest) (*domain.FinancialStatements, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	start, end := dateOnly(req.StartDate), dateOnly(req.EndDate)

	out := &domain.FinancialStatements{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.BalanceSheet, err = s.balanceSheet(gctx, end, req.Comparative, req.IncludeZeroBalances)
		return err
	})
	g.Go(func() error {
		var err error
		out.IncomeStatement, err = s.incomeStatement(gctx, start, end, req.Comparative, req.IncludeZeroBalances)
		return err
	})
	g.Go(func() error {
		var err error
		out.CashFlow, err = s.cashFlow(gctx, start, end, req.Comparative)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
