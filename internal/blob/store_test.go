package blob

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	bs, err := OpenBadgerStore("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": bs,
	}
}

func TestStoreContract_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "a/b.txt", []byte("one")))
			require.NoError(t, s.Put(ctx, "a/b.txt", []byte("two")), "unconditional put overwrites")

			got, err := s.Get(ctx, "a/b.txt")
			require.NoError(t, err)
			assert.Equal(t, "two", string(got))

			require.NoError(t, s.Delete(ctx, "a/b.txt"))
			assert.ErrorIs(t, s.Delete(ctx, "a/b.txt"), ErrNotFound)
		})
	}
}

func TestStoreContract_IfNoneMatch(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, "locks/x.lock", []byte("first"), IfNoneMatch()))
			err := s.Put(ctx, "locks/x.lock", []byte("second"), IfNoneMatch())
			assert.ErrorIs(t, err, ErrPreconditionFailed)

			got, err := s.Get(ctx, "locks/x.lock")
			require.NoError(t, err)
			assert.Equal(t, "first", string(got))
		})
	}
}

func TestStoreContract_ConcurrentCreateHasOneWinner(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := s.Put(ctx, "locks/race.lock", []byte("x"), IfNoneMatch()); err == nil {
						wins.Add(1)
					} else {
						assert.ErrorIs(t, err, ErrPreconditionFailed)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestStoreContract_ListWithDelimiter(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{
				"attachments/unprocessed/SO1_E1/E1_a.pdf",
				"attachments/unprocessed/SO1_E1/E1_b.png",
				"attachments/unprocessed/SO2_E9/E9_c.pdf",
				"attachments/unprocessed/stray.txt",
				"attachments/processed/SO0_E0/E0_z.pdf",
			} {
				require.NoError(t, s.Put(ctx, k, []byte("x")))
			}

			res, err := s.List(ctx, "attachments/unprocessed/", "/")
			require.NoError(t, err)
			assert.Equal(t, []string{
				"attachments/unprocessed/SO1_E1/",
				"attachments/unprocessed/SO2_E9/",
			}, res.Prefixes)
			assert.Equal(t, []string{"attachments/unprocessed/stray.txt"}, res.Objects)

			res, err = s.List(ctx, "attachments/unprocessed/SO1_E1/", "")
			require.NoError(t, err)
			assert.Equal(t, []string{
				"attachments/unprocessed/SO1_E1/E1_a.pdf",
				"attachments/unprocessed/SO1_E1/E1_b.png",
			}, res.Objects)
			assert.Empty(t, res.Prefixes)
		})
	}
}

func TestMove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "u/a", []byte("payload")))

	require.NoError(t, Move(ctx, s, "u/a", "p/a"))

	_, err := s.Get(ctx, "u/a")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.Get(ctx, "p/a")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	assert.ErrorIs(t, Move(ctx, s, "u/missing", "p/missing"), ErrNotFound)
}

func TestOpenFromDSN(t *testing.T) {
	s, err := OpenFromDSN("memory://", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = OpenFromDSN("badger://?in_memory=true", nil)
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	dir := t.TempDir()
	s, err = OpenFromDSN("badger://"+dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = OpenFromDSN("postgres://u:p@localhost/db?sslmode=disable", nil)
	require.NoError(t, err)
	assert.IsType(t, &PostgresStore{}, s)

	_, err = OpenFromDSN("s3://bucket", nil)
	assert.Error(t, err)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `attachments/un\_processed/50\%`, escapeLike("attachments/un_processed/50%"))
}

func TestPostgresStore_RetriesInitAfterFailure(t *testing.T) {
	s, err := NewPostgresStore("postgres://u:p@localhost/db?sslmode=disable", nil)
	require.NoError(t, err)

	var opens atomic.Int32
	s.openDB = func(string, string) (*sql.DB, error) {
		opens.Add(1)
		return nil, errors.New("connection refused")
	}

	ctx := context.Background()
	_, err = s.Get(ctx, "k")
	require.ErrorContains(t, err, "connection refused")
	err = s.Put(ctx, "k", []byte("v"))
	require.ErrorContains(t, err, "connection refused")
	_, err = s.List(ctx, "", "/")
	require.Error(t, err)

	assert.EqualValues(t, 3, opens.Load(), "each call retries initialization")
	assert.NoError(t, s.Close())
}
