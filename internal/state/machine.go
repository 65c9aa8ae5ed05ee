package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/blob"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
)

var ErrInvalidTransition = errors.New("invalid work item transition")

// Locker is the part of the lock manager the machine needs.
type Locker interface {
	TryAcquire(ctx context.Context, itemID string) (bool, error)
	Release(ctx context.Context, itemID string) error
}

// Machine moves work items between the unprocessed and processed prefixes.
// The store has no rename, so a move is copy then delete per file. Between
// the two an object can be visible under both prefixes.
type Machine struct {
	store  blob.Store
	locks  Locker
	logger *slog.Logger
}

func NewMachine(store blob.Store, locks Locker, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{store: store, locks: locks, logger: logger}
}

// Discover lists every work item folder under the unprocessed prefix.
// Folder names that do not split into reference and email id are skipped.
func (m *Machine) Discover(ctx context.Context) ([]entity.WorkItem, error) {
	res, err := m.store.List(ctx, constants.UnprocessedPrefix, "/")
	if err != nil {
		return nil, fmt.Errorf("list unprocessed: %w", err)
	}
	items := make([]entity.WorkItem, 0, len(res.Prefixes))
	for _, p := range res.Prefixes {
		itemID := strings.TrimSuffix(strings.TrimPrefix(p, constants.UnprocessedPrefix), "/")
		item, ok := entity.NewWorkItem(itemID)
		if !ok {
			m.logger.Warn("state.discover.bad_folder", "folder", itemID)
			continue
		}
		items = append(items, item)
	}
	m.logger.Debug("state.discover", "items", len(items))
	return items, nil
}

// Lock takes the item's lock and snapshots its staged files. ok is false
// when another holder owns the lock; the item is left untouched.
//
// Staging is not atomic either: attachments are written one by one and the
// raw email last. An overlapping pass can lock an item mid-staging and see
// only the files written so far. It submits a partial payload, and the next
// pass that completes the remaining files replaces it downstream with a
// payload covering only those. Together with the copy-then-delete window on
// Complete, readers of persisted state must tolerate both.
func (m *Machine) Lock(ctx context.Context, item *entity.WorkItem) (bool, error) {
	if item.State != constants.ItemStateUnprocessed {
		return false, fmt.Errorf("%w: lock from %s", ErrInvalidTransition, item.State)
	}
	ok, err := m.locks.TryAcquire(ctx, item.ID)
	if err != nil || !ok {
		return false, err
	}
	item.State = constants.ItemStateLocked
	item.LockHeld = true

	res, err := m.store.List(ctx, constants.UnprocessedItemPrefix(item.ID), "")
	if err != nil {
		return true, fmt.Errorf("list files of %s: %w", item.ID, err)
	}
	item.Files = res.Objects
	return true, nil
}

// Complete moves every staged file to the processed prefix and then writes
// the grouped payload. It tries every file even after a failure so a retry
// has less left to move; any failure keeps the item Locked for Release.
func (m *Machine) Complete(ctx context.Context, item *entity.WorkItem, payload entity.AggregatedPayload) error {
	if item.State != constants.ItemStateLocked {
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, item.State)
	}
	logger := m.logger.With("item_id", item.ID, "reference", item.Reference)

	var errs []error
	for _, src := range item.Files {
		dst := constants.ProcessedKey(src)
		if err := blob.Move(ctx, m.store, src, dst); err != nil {
			logger.Error("state.move.error", "file", src, "error", err)
			errs = append(errs, fmt.Errorf("move %s: %w", src, err))
			continue
		}
		logger.Debug("state.move.ok", "file", src, "to", dst)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := m.store.Put(ctx, constants.GroupedPayloadKey(item.Reference), body); err != nil {
		return fmt.Errorf("persist payload: %w", err)
	}

	item.State = constants.ItemStateProcessed
	logger.Info("state.processed", "files", len(item.Files), "quotations", len(payload.Quotations))
	return nil
}

// Release drops the lock. A Locked item goes back to Unprocessed; a
// Processed item keeps its state.
func (m *Machine) Release(ctx context.Context, item *entity.WorkItem) error {
	if !item.LockHeld {
		return nil
	}
	if err := m.locks.Release(ctx, item.ID); err != nil {
		return err
	}
	item.LockHeld = false
	if item.State == constants.ItemStateLocked {
		item.State = constants.ItemStateUnprocessed
	}
	return nil
}
