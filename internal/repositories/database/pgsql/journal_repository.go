package pgsql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/general_ledger/internal/apperrors"
	"github.com/SscSPs/general_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/general_ledger/internal/models"
	"github.com/SscSPs/general_ledger/internal/utils/mapping"
	"github.com/SscSPs/general_ledger/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `entry_id, entry_number, entry_date, reference, description, status,
	source_service, source_document_id, idempotency_key, reversal_of_id, reversed_by_id,
	created_at, created_by, last_updated_at, last_updated_by`

const insertLineQuery = `
	INSERT INTO journal_lines (line_id, entry_id, line_number, account_id, debit, credit, description)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
`

type PgxJournalRepository struct {
	BaseRepository
}

// newPgxJournalRepository creates a new repository for journal entries and their lines.
func newPgxJournalRepository(pool *pgxpool.Pool) portsrepo.JournalRepositoryFacade {
	return &PgxJournalRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxJournalRepository implements portsrepo.JournalRepositoryFacade
var _ portsrepo.JournalRepositoryFacade = (*PgxJournalRepository)(nil)

func scanEntry(row pgx.Row) (models.JournalEntry, error) {
	var m models.JournalEntry
	err := row.Scan(
		&m.EntryID,
		&m.EntryNumber,
		&m.EntryDate,
		&m.Reference,
		&m.Description,
		&m.Status,
		&m.SourceService,
		&m.SourceDocumentID,
		&m.IdempotencyKey,
		&m.ReversalOfID,
		&m.ReversedByID,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	return m, err
}

// loadLines fetches the lines of the given entries grouped by entry id.
func (r *PgxJournalRepository) loadLines(ctx context.Context, entryIDs []string) (map[string][]models.JournalLine, error) {
	out := make(map[string][]models.JournalLine, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}
	rows, err := r.db(ctx).Query(ctx, `
		SELECT line_id, entry_id, line_number, account_id, debit, credit, description
		FROM journal_lines
		WHERE entry_id = ANY($1)
		ORDER BY entry_id, line_number;`, entryIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l models.JournalLine
		if err := rows.Scan(&l.LineID, &l.EntryID, &l.LineNumber, &l.AccountID, &l.Debit, &l.Credit, &l.Description); err != nil {
			return nil, err
		}
		out[l.EntryID] = append(out[l.EntryID], l)
	}
	return out, rows.Err()
}

func (r *PgxJournalRepository) findOne(ctx context.Context, where string, arg any, what string) (*domain.JournalEntry, error) {
	m, err := scanEntry(r.db(ctx).QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE `+where+`;`, arg))
	if err != nil {
		return nil, mapError(err, "journal entry %s", what)
	}
	lines, err := r.loadLines(ctx, []string{m.EntryID})
	if err != nil {
		return nil, mapError(err, "failed to load lines of journal entry %s", m.EntryID)
	}
	d := mapping.ToDomainJournalEntry(m, lines[m.EntryID])
	return &d, nil
}

// FindEntryByID retrieves an entry with its lines.
func (r *PgxJournalRepository) FindEntryByID(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	return r.findOne(ctx, "entry_id = $1", entryID, entryID)
}

// FindEntryByIdempotencyKey retrieves the entry posted under key.
func (r *PgxJournalRepository) FindEntryByIdempotencyKey(ctx context.Context, key string) (*domain.JournalEntry, error) {
	return r.findOne(ctx, "idempotency_key = $1", key, "with idempotency key "+key)
}

// entryConditions builds the WHERE clause shared by ListEntries and CountEntries.
func entryConditions(filter domain.EntryFilter) ([]string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("e.status = $%d", string(filter.Status))
	}
	if filter.From != nil {
		add("e.entry_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("e.entry_date <= $%d", *filter.To)
	}
	if filter.AccountID != "" {
		add("EXISTS (SELECT 1 FROM journal_lines l WHERE l.entry_id = e.entry_id AND l.account_id = $%d)", filter.AccountID)
	}
	return conds, args
}

// ListEntries retrieves a page of entries ordered by entry date and number using token-based pagination.
func (r *PgxJournalRepository) ListEntries(ctx context.Context, filter domain.EntryFilter) ([]domain.JournalEntry, *string, error) {
	conds, args := entryConditions(filter)
	if filter.NextToken != nil && *filter.NextToken != "" {
		cursorDate, cursorNumber, err := pagination.DecodeToken(*filter.NextToken)
		if err != nil {
			return nil, nil, apperrors.NewValidationError("%v", err)
		}
		args = append(args, cursorDate, cursorNumber)
		conds = append(conds, fmt.Sprintf("(e.entry_date, e.entry_number) > ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + prefixed("e.", entryColumns) + ` FROM journal_entries e`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY e.entry_date, e.entry_number"
	if filter.Limit > 0 {
		// One extra row tells whether another page exists.
		args = append(args, filter.Limit+1)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, nil, mapError(err, "failed to list journal entries")
	}
	var headers []models.JournalEntry
	for rows.Next() {
		m, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, nil, mapError(err, "failed to scan journal entry")
		}
		headers = append(headers, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, mapError(err, "error iterating journal entries")
	}

	var next *string
	if filter.Limit > 0 && len(headers) > filter.Limit {
		headers = headers[:filter.Limit]
		last := headers[len(headers)-1]
		token := pagination.EncodeToken(last.EntryDate, last.EntryNumber)
		next = &token
	}

	ids := make([]string, len(headers))
	for i, h := range headers {
		ids[i] = h.EntryID
	}
	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, nil, mapError(err, "failed to load journal lines")
	}

	out := make([]domain.JournalEntry, len(headers))
	for i, h := range headers {
		out[i] = mapping.ToDomainJournalEntry(h, lines[h.EntryID])
	}
	return out, next, nil
}

// CountEntries counts entries matching the filter, ignoring paging fields.
func (r *PgxJournalRepository) CountEntries(ctx context.Context, filter domain.EntryFilter) (int, error) {
	conds, args := entryConditions(filter)
	query := `SELECT COUNT(*) FROM journal_entries e`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	var count int
	err := r.db(ctx).QueryRow(ctx, query, args...).Scan(&count)
	return count, mapError(err, "failed to count journal entries")
}

func queueLines(batch *pgx.Batch, entryID string, lines []domain.JournalLine) {
	for _, line := range lines {
		m := mapping.ToModelJournalLine(line)
		batch.Queue(insertLineQuery, m.LineID, entryID, m.LineNumber, m.AccountID, m.Debit, m.Credit, m.Description)
	}
}

// SaveEntry inserts an entry header and all its lines in one round trip.
func (r *PgxJournalRepository) SaveEntry(ctx context.Context, entry domain.JournalEntry) error {
	m := mapping.ToModelJournalEntry(entry)
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO journal_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);`,
		m.EntryID,
		m.EntryNumber,
		m.EntryDate,
		m.Reference,
		m.Description,
		m.Status,
		m.SourceService,
		m.SourceDocumentID,
		m.IdempotencyKey,
		m.ReversalOfID,
		m.ReversedByID,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	queueLines(batch, m.EntryID, entry.Lines)

	if err := r.db(ctx).SendBatch(ctx, batch).Close(); err != nil {
		return mapError(err, "failed to save journal entry %s", m.EntryNumber)
	}
	return nil
}

// UpdateEntryStatus moves an entry to status and records reversal links when given.
func (r *PgxJournalRepository) UpdateEntryStatus(ctx context.Context, entryID string, status domain.EntryStatus, reversalOfID, reversedByID *string, actor string, at time.Time) error {
	query := `
		UPDATE journal_entries
		SET status = $1,
		    reversal_of_id = COALESCE($2, reversal_of_id),
		    reversed_by_id = COALESCE($3, reversed_by_id),
		    last_updated_at = $4, last_updated_by = $5
		WHERE entry_id = $6;
	`
	tag, err := r.db(ctx).Exec(ctx, query, string(status),
		mapping.NullString(reversalOfID), mapping.NullString(reversedByID), at, actor, entryID)
	if err != nil {
		return mapError(err, "failed to update status of journal entry %s", entryID)
	}
	return expectOne(tag, "journal entry", entryID)
}

// ReplaceDraft overwrites the header fields and lines of a DRAFT entry.
func (r *PgxJournalRepository) ReplaceDraft(ctx context.Context, entry domain.JournalEntry) error {
	m := mapping.ToModelJournalEntry(entry)
	q := r.db(ctx)
	tag, err := q.Exec(ctx, `
		UPDATE journal_entries
		SET entry_date = $1, reference = $2, description = $3, source_service = $4, source_document_id = $5,
		    last_updated_at = $6, last_updated_by = $7
		WHERE entry_id = $8 AND status = 'DRAFT';`,
		m.EntryDate, m.Reference, m.Description, m.SourceService, m.SourceDocumentID,
		m.LastUpdatedAt, m.LastUpdatedBy, m.EntryID)
	if err != nil {
		return mapError(err, "failed to update draft %s", m.EntryID)
	}
	if err := expectOne(tag, "draft journal entry", m.EntryID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM journal_lines WHERE entry_id = $1;`, m.EntryID)
	queueLines(batch, m.EntryID, entry.Lines)
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return mapError(err, "failed to replace lines of draft %s", m.EntryID)
	}
	return nil
}

// DeleteEntry removes an entry. Lines go with it through ON DELETE CASCADE.
func (r *PgxJournalRepository) DeleteEntry(ctx context.Context, entryID string) error {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM journal_entries WHERE entry_id = $1;`, entryID)
	if err != nil {
		return mapError(err, "failed to delete journal entry %s", entryID)
	}
	return expectOne(tag, "journal entry", entryID)
}

// prefixed qualifies every column of a comma separated list with p.
func prefixed(p, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = p + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
