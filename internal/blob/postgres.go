package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	postgresObjectTableName  = "blob_objects"
	postgresOperationTimeout = 10 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresStore keeps objects in one table so several coordinator instances
// on different hosts can share locks and checkpoints. If-None-Match maps to
// INSERT ... ON CONFLICT DO NOTHING.
type PostgresStore struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc
	logger    *slog.Logger

	mu    sync.Mutex
	ready bool
	db    *sql.DB
}

func NewPostgresStore(dsn string, logger *slog.Logger) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: empty dsn")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		dsn:       dsn,
		tableName: postgresObjectTableName,
		openDB:    sql.Open,
		logger:    logger,
	}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT data FROM %s WHERE object_key = $1", quoteIdentifier(s.tableName))
	var data []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %q: %w", key, err)
	}
	return data, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, data []byte, opts ...PutOption) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	o := applyPutOptions(opts)
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	table := quoteIdentifier(s.tableName)
	if o.IfNoneMatch {
		query := fmt.Sprintf(`
			INSERT INTO %s (object_key, data, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (object_key) DO NOTHING`, table)
		res, err := s.db.ExecContext(ctx, query, key, data)
		if err != nil {
			return fmt.Errorf("postgres put %q: %w", key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("postgres put %q: %w", key, err)
		}
		if n == 0 {
			return ErrPreconditionFailed
		}
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (object_key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (object_key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, table)
	if _, err := s.db.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("postgres put %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE object_key = $1", quoteIdentifier(s.tableName))
	res, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("postgres delete %q: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, prefix, delimiter string) (ListResult, error) {
	if err := s.ensureReady(); err != nil {
		return ListResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT object_key FROM %s WHERE object_key LIKE $1 ESCAPE '\' ORDER BY object_key`,
		quoteIdentifier(s.tableName))
	rows, err := s.db.QueryContext(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return ListResult{}, fmt.Errorf("postgres list %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return ListResult{}, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	return collate(keys, prefix, delimiter), nil
}

func (s *PostgresStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	s.ready = false
	return s.db.Close()
}

// ensureReady opens the pool and creates the table on first use. A failed
// attempt is not remembered; the next call tries again.
func (s *PostgresStore) ensureReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	db, err := s.openDB("postgres", s.dsn)
	if err != nil {
		s.logger.Warn("blob.postgres.open_error", "error", err)
		return fmt.Errorf("postgres store: open: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			object_key TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, quoteIdentifier(s.tableName))
	if _, err := db.ExecContext(ctx, query); err != nil {
		_ = db.Close()
		s.logger.Warn("blob.postgres.init_error", "table", s.tableName, "error", err)
		return fmt.Errorf("postgres store: create table: %w", err)
	}
	s.db = db
	s.ready = true
	s.logger.Info("blob.postgres.ready", "table", s.tableName)
	return nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
