package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/blob"
)

const DefaultMaxIDs = 5000

// State is the incremental-fetch high-water mark plus the ids already staged.
type State struct {
	LastProcessed time.Time
	IDs           *IDSet
}

// Empty reports whether no pass has checkpointed yet.
func (s State) Empty() bool {
	return s.LastProcessed.IsZero() && s.IDs.Len() == 0
}

type idsDocument struct {
	IDs []string `json:"ids"`
}

// Store persists State as two small objects. It assumes a single writer.
type Store struct {
	store  blob.Store
	maxIDs int
	logger *slog.Logger
}

func NewStore(store blob.Store, maxIDs int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if maxIDs <= 0 {
		maxIDs = DefaultMaxIDs
	}
	return &Store{store: store, maxIDs: maxIDs, logger: logger}
}

// Load returns the stored state. Missing objects are not an error: found is
// false and the state is empty.
func (s *Store) Load(ctx context.Context) (State, bool, error) {
	state := State{IDs: NewIDSet()}
	found := false

	raw, err := s.store.Get(ctx, constants.LastProcessedTimeKey)
	switch {
	case errors.Is(err, blob.ErrNotFound):
	case err != nil:
		return State{}, false, fmt.Errorf("load last processed time: %w", err)
	default:
		text := strings.TrimSpace(string(raw))
		if text != "" {
			ts, err := time.Parse(time.RFC3339Nano, text)
			if err != nil {
				return State{}, false, fmt.Errorf("parse last processed time %q: %w", text, err)
			}
			state.LastProcessed = ts.UTC()
		}
		found = true
	}

	raw, err = s.store.Get(ctx, constants.ProcessedIDsKey)
	switch {
	case errors.Is(err, blob.ErrNotFound):
	case err != nil:
		return State{}, false, fmt.Errorf("load processed ids: %w", err)
	default:
		var doc idsDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return State{}, false, fmt.Errorf("decode processed ids: %w", err)
		}
		state.IDs = NewIDSet(doc.IDs...)
		found = true
	}

	s.logger.Debug("checkpoint.load",
		"found", found,
		"last_processed", state.LastProcessed,
		"ids", state.IDs.Len(),
	)
	return state, found, nil
}

// Save writes ids first and the timestamp last, so a failure between the two
// leaves an older timestamp with a superset of ids. Refetched messages are
// then filtered by id.
func (s *Store) Save(ctx context.Context, state State) error {
	ids := state.IDs
	if ids == nil {
		ids = NewIDSet()
	} else {
		ids = ids.Clone()
	}
	if dropped := ids.Trim(s.maxIDs); dropped > 0 {
		s.logger.Info("checkpoint.ids.trimmed", "dropped", dropped, "kept", ids.Len())
	}

	doc, err := json.MarshalIndent(idsDocument{IDs: ids.Slice()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode processed ids: %w", err)
	}
	if err := s.store.Put(ctx, constants.ProcessedIDsKey, doc); err != nil {
		return fmt.Errorf("save processed ids: %w", err)
	}

	if !state.LastProcessed.IsZero() {
		ts := state.LastProcessed.UTC().Format(time.RFC3339Nano)
		if err := s.store.Put(ctx, constants.LastProcessedTimeKey, []byte(ts)); err != nil {
			return fmt.Errorf("save last processed time: %w", err)
		}
	}

	s.logger.Debug("checkpoint.save", "last_processed", state.LastProcessed, "ids", ids.Len())
	return nil
}

// Advance returns the later of current and each candidate. The high-water
// mark never moves backwards regardless of arrival order.
func Advance(current time.Time, candidates ...time.Time) time.Time {
	out := current
	for _, c := range candidates {
		if c.After(out) {
			out = c
		}
	}
	return out
}
