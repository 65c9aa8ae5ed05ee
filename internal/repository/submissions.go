package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/quotation-intake/internal/downstream"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
)

const (
	submissionsTable = "quotation_submissions"
	ordersTable      = "sales_orders"
)

var (
	_ downstream.Submitter   = (*SubmissionRepository)(nil)
	_ downstream.OrderLookup = (*SubmissionRepository)(nil)
)

// Submission is one stored upsert.
type Submission struct {
	Reference   string
	WorkItemID  string
	Quotations  int
	Payload     entity.AggregatedPayload
	SubmittedAt time.Time
}

// SubmissionRepository is the SQL system of record: one row per reference,
// replaced on every submit, and a table of known sales orders.
type SubmissionRepository struct {
	db     *DB
	now    func() time.Time
	logger *slog.Logger
}

func NewSubmissionRepository(db *DB, logger *slog.Logger) *SubmissionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionRepository{db: db, now: time.Now, logger: logger}
}

func (r *SubmissionRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

// Migrate creates the tables if they do not exist. The DDL is portable
// between Postgres and SQLite.
func (r *SubmissionRepository) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		var res sql.Result
		if err := r.db.Driver.Exec(ctx, stmt, []any{}, &res); err != nil {
			r.logger.Error("repository.migrate.error", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS ` + submissionsTable + ` (
	reference varchar(255) PRIMARY KEY,
	work_item_id varchar(512) NOT NULL,
	quotations integer NOT NULL,
	payload text NOT NULL,
	submitted_at timestamp NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS ` + ordersTable + ` (
	reference varchar(255) PRIMARY KEY,
	created_at timestamp NOT NULL
)`,
}

// Submit upserts the payload under reference.
func (r *SubmissionRepository) Submit(ctx context.Context, reference string, payload entity.AggregatedPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	query, args := r.builder().Insert(submissionsTable).
		Columns("reference", "work_item_id", "quotations", "payload", "submitted_at").
		Values(reference, payload.WorkItemID, len(payload.Quotations), string(body), r.now().UTC()).
		OnConflict(
			entsql.ConflictColumns("reference"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	var res sql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("repository.submit.error", "reference", reference, "error", err)
		return fmt.Errorf("upsert submission %s: %w", reference, err)
	}
	r.logger.Info("repository.submit.ok", "reference", reference, "quotations", len(payload.Quotations))
	return nil
}

// Get returns the stored submission for reference.
func (r *SubmissionRepository) Get(ctx context.Context, reference string) (Submission, bool, error) {
	query, args := r.builder().
		Select("reference", "work_item_id", "quotations", "payload", "submitted_at").
		From(entsql.Table(submissionsTable)).
		Where(entsql.EQ("reference", reference)).
		Query()

	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, query, args, rows); err != nil {
		return Submission{}, false, fmt.Errorf("select submission %s: %w", reference, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Submission{}, false, rows.Err()
	}
	var s Submission
	var payload string
	if err := rows.Scan(&s.Reference, &s.WorkItemID, &s.Quotations, &payload, &s.SubmittedAt); err != nil {
		return Submission{}, false, fmt.Errorf("scan submission: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &s.Payload); err != nil {
		return Submission{}, false, fmt.Errorf("decode submission payload: %w", err)
	}
	return s, true, rows.Err()
}

// Count returns the number of stored submissions.
func (r *SubmissionRepository) Count(ctx context.Context) (int, error) {
	query, args := r.builder().
		Select(entsql.Count("*")).
		From(entsql.Table(submissionsTable)).
		Query()
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, query, args, rows); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// AddOrder registers a sales order reference. Registering twice is a no-op.
func (r *SubmissionRepository) AddOrder(ctx context.Context, reference string) error {
	query, args := r.builder().Insert(ordersTable).
		Columns("reference", "created_at").
		Values(reference, r.now().UTC()).
		OnConflict(entsql.ConflictColumns("reference"), entsql.DoNothing()).
		Query()
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("insert order %s: %w", reference, err)
	}
	return nil
}

func (r *SubmissionRepository) OrderExists(ctx context.Context, reference string) (bool, error) {
	query, args := r.builder().
		Select("reference").
		From(entsql.Table(ordersTable)).
		Where(entsql.EQ("reference", reference)).
		Limit(1).
		Query()
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, query, args, rows); err != nil {
		return false, fmt.Errorf("lookup order %s: %w", reference, err)
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}
