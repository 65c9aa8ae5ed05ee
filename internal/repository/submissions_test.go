package repository

import (
	"context"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/quotation-intake/internal/entity"
)

func newSQLiteRepo(t *testing.T) *SubmissionRepository {
	t.Helper()
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })

	repo := NewSubmissionRepository(db, nil)
	require.NoError(t, repo.Migrate(context.Background()))
	require.NoError(t, repo.Migrate(context.Background()), "migrate is idempotent")
	return repo
}

func TestSubmit_SameReferenceKeepsOneRowWithLatestPayload(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	repo.now = func() time.Time { return time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC) }

	first := entity.AggregatedPayload{
		Reference:  "SO100",
		WorkItemID: "SO100_E1",
		Quotations: []entity.Quotation{{Vendor: &entity.Vendor{Name: "Acme"}, Items: []entity.Item{{PartNumber: "A"}}}},
	}
	second := first
	second.WorkItemID = "SO100_E2"
	second.Quotations = append(second.Quotations, entity.Quotation{Vendor: &entity.Vendor{Name: "Globex"}, Items: []entity.Item{{PartNumber: "G"}}})

	require.NoError(t, repo.Submit(ctx, "SO100", first))
	require.NoError(t, repo.Submit(ctx, "SO100", second))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok, err := repo.Get(ctx, "SO100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SO100_E2", got.WorkItemID)
	assert.Equal(t, 2, got.Quotations)
	assert.Equal(t, "Globex", got.Payload.Quotations[1].VendorName())

	_, ok, err = repo.Get(ctx, "SO404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderExists(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	ok, err := repo.OrderExists(ctx, "SO1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.AddOrder(ctx, "SO1"))
	require.NoError(t, repo.AddOrder(ctx, "SO1"))

	ok, err = repo.OrderExists(ctx, "SO1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMigrate_CreatesBothTables(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	rows := &entsql.Rows{}
	require.NoError(t, repo.db.Driver.Query(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name", []any{}, rows))
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{submissionsTable, ordersTable}, tables)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
