package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/blob"
)

// Info is the lock object body. It is informational only: existence of the
// object is what holds the lock.
type Info struct {
	ItemID     string    `json:"-"`
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Manager grants mutual exclusion over work items through conditional create
// on the object store. There is no lease: a holder that dies without
// releasing leaves the lock in place until an operator clears it.
type Manager struct {
	store  blob.Store
	owner  string
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Manager)

// WithOwner overrides the owner token written into lock bodies.
func WithOwner(owner string) Option {
	return func(m *Manager) { m.owner = owner }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store blob.Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	host, _ := os.Hostname()
	m := &Manager{
		store:  store,
		owner:  fmt.Sprintf("%s/%d/%s", host, os.Getpid(), uuid.NewString()[:8]),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Owner() string { return m.owner }

// TryAcquire returns false, not an error, when the lock already exists.
func (m *Manager) TryAcquire(ctx context.Context, itemID string) (bool, error) {
	key := constants.LockName(itemID)
	body, err := json.Marshal(Info{Owner: m.owner, AcquiredAt: m.now().UTC()})
	if err != nil {
		return false, fmt.Errorf("encode lock body: %w", err)
	}

	err = m.store.Put(ctx, key, body, blob.IfNoneMatch())
	switch {
	case err == nil:
		m.logger.Debug("lock.acquire.ok", "item_id", itemID, "owner", m.owner)
		return true, nil
	case errors.Is(err, blob.ErrPreconditionFailed):
		m.logger.Info("lock.acquire.contended", "item_id", itemID)
		return false, nil
	default:
		m.logger.Error("lock.acquire.error", "item_id", itemID, "error", err)
		return false, fmt.Errorf("acquire lock %s: %w", itemID, err)
	}
}

// Release deletes the lock. An absent lock counts as released.
func (m *Manager) Release(ctx context.Context, itemID string) error {
	err := m.store.Delete(ctx, constants.LockName(itemID))
	if err != nil && !errors.Is(err, blob.ErrNotFound) {
		m.logger.Error("lock.release.error", "item_id", itemID, "error", err)
		return fmt.Errorf("release lock %s: %w", itemID, err)
	}
	m.logger.Debug("lock.release.ok", "item_id", itemID)
	return nil
}

// List returns every held lock, sorted by item id. A body that cannot be
// decoded still yields an entry with only ItemID set.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	res, err := m.store.List(ctx, constants.LocksPrefix, "")
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	out := make([]Info, 0, len(res.Objects))
	for _, key := range res.Objects {
		itemID, ok := constants.ItemIDFromLock(key)
		if !ok {
			continue
		}
		info := Info{ItemID: itemID}
		raw, err := m.store.Get(ctx, key)
		if errors.Is(err, blob.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read lock %s: %w", itemID, err)
		}
		if err := json.Unmarshal(raw, &info); err != nil {
			m.logger.Warn("lock.list.bad_body", "item_id", itemID, "error", err)
		}
		info.ItemID = itemID
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}
