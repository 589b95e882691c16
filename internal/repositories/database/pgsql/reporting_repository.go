package pgsql

import (
	"context"
	"fmt"
	"strings"

	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// reportingRepository implements the ReportingRepository interface
type reportingRepository struct {
	BaseRepository
}

// newReportingRepository creates a new reporting repository
func newReportingRepository(db *pgxpool.Pool) portsrepo.ReportingRepository {
	return &reportingRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

// SumActivity totals debits and credits per account. Entry filters live in the join so that
// accounts without matching lines still come back with zero totals.
func (r *reportingRepository) SumActivity(ctx context.Context, q domain.ActivityQuery) ([]domain.AccountActivity, error) {
	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = []domain.EntryStatus{domain.EntryPosted}
	}
	args := []any{toStrings(statuses)}
	param := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	joinConds := []string{"e.entry_id = l.entry_id", "e.status = ANY($1)"}
	if q.From != nil {
		joinConds = append(joinConds, "e.entry_date >= "+param(*q.From))
	}
	if q.To != nil {
		joinConds = append(joinConds, "e.entry_date <= "+param(*q.To))
	}

	var where []string
	if len(q.AccountIDs) > 0 {
		where = append(where, "a.account_id = ANY("+param(q.AccountIDs)+")")
	}
	if len(q.AccountTypes) > 0 {
		where = append(where, "a.account_type = ANY("+param(toStrings(q.AccountTypes))+")")
	}
	if len(q.Subtypes) > 0 {
		where = append(where, "a.subtype = ANY("+param(toStrings(q.Subtypes))+")")
	}
	if q.ActiveOnly {
		where = append(where, "a.is_active")
	}

	query := `
		SELECT
			a.account_id,
			a.code,
			a.name,
			a.account_type,
			a.subtype,
			COALESCE(SUM(l.debit), 0) AS total_debit,
			COALESCE(SUM(l.credit), 0) AS total_credit
		FROM accounts a
		LEFT JOIN (journal_lines l JOIN journal_entries e ON ` + strings.Join(joinConds, " AND ") + `)
			ON l.account_id = a.account_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tGROUP BY a.account_id\n\t\tORDER BY a.code"

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "error querying account activity")
	}
	defer rows.Close()

	result := []domain.AccountActivity{}
	for rows.Next() {
		var row domain.AccountActivity
		var accountType, subtype string
		if err := rows.Scan(
			&row.AccountID,
			&row.Code,
			&row.Name,
			&accountType,
			&subtype,
			&row.Debit,
			&row.Credit,
		); err != nil {
			return nil, mapError(err, "error scanning account activity row")
		}
		row.AccountType = domain.AccountType(accountType)
		row.Subtype = domain.AccountSubtype(subtype)
		result = append(result, row)
	}
	return result, mapError(rows.Err(), "error iterating account activity rows")
}
