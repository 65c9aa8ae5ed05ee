package blob

import (
	"context"
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned by Get and Delete when no object exists at the key.
	ErrNotFound = errors.New("blob: object not found")
	// ErrPreconditionFailed is returned by a conditional Put when the key already exists.
	ErrPreconditionFailed = errors.New("blob: precondition failed")
)

// Store is the object store every piece of coordination state lives in. It has
// no transactions, leases or rename: the only atomic primitive is a
// create-if-absent Put.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, opts ...PutOption) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix, delimiter string) (ListResult, error)
	Close() error
}

// ListResult mirrors an object-storage listing: with a delimiter, keys that
// continue past it are rolled up into Prefixes.
type ListResult struct {
	Objects  []string
	Prefixes []string
}

type PutOptions struct {
	IfNoneMatch bool
}

type PutOption func(*PutOptions)

// IfNoneMatch makes Put fail with ErrPreconditionFailed if the key exists.
func IfNoneMatch() PutOption {
	return func(o *PutOptions) { o.IfNoneMatch = true }
}

func applyPutOptions(opts []PutOption) PutOptions {
	var o PutOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// collate groups keys already filtered by prefix into objects and common prefixes.
func collate(keys []string, prefix, delimiter string) ListResult {
	var res ListResult
	seen := map[string]struct{}{}
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				p := prefix + rest[:i+len(delimiter)]
				if _, ok := seen[p]; !ok {
					seen[p] = struct{}{}
					res.Prefixes = append(res.Prefixes, p)
				}
				continue
			}
		}
		res.Objects = append(res.Objects, key)
	}
	sort.Strings(res.Objects)
	sort.Strings(res.Prefixes)
	return res
}

// Move copies src to dst and then deletes src. There is no atomic rename, so
// between the two steps the object is visible under both keys.
func Move(ctx context.Context, s Store, src, dst string) error {
	data, err := s.Get(ctx, src)
	if err != nil {
		return err
	}
	if err := s.Put(ctx, dst, data); err != nil {
		return err
	}
	if err := s.Delete(ctx, src); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
