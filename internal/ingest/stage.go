package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/blob"
	"github.com/joseph-ayodele/quotation-intake/internal/checkpoint"
	"github.com/joseph-ayodele/quotation-intake/internal/mail"
)

// StageStats summarizes the fetch/stage half of a pass.
type StageStats struct {
	Fetched     int
	Duplicates  int
	Skipped     int
	Staged      int
	Attachments int
}

// Reference derives the business reference from a subject line.
func Reference(subject string) string {
	return strings.ToUpper(strings.TrimSpace(subject))
}

// validReference rejects references that would not survive the
// <reference>_<emailId> folder name round trip.
func validReference(ref string) bool {
	return ref != "" && !strings.ContainsAny(ref, "_/")
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, "\\", "_")
}

type stager struct {
	store  blob.Store
	logger *slog.Logger
}

// stage writes every new message into the unprocessed prefix and records its
// id in ids. A store failure stops staging and is returned. Messages staged
// before it are fetched again next pass and overwrite the same keys.
func (s *stager) stage(ctx context.Context, msgs []mail.Message, ids *checkpoint.IDSet) (StageStats, error) {
	stats := StageStats{Fetched: len(msgs)}
	for _, m := range msgs {
		if ids.Has(m.ID) {
			stats.Duplicates++
			continue
		}
		n, err := s.stageMessage(ctx, m)
		if err != nil {
			return stats, err
		}
		ids.Add(m.ID)
		if n < 0 {
			stats.Skipped++
			continue
		}
		stats.Staged++
		stats.Attachments += n
	}
	return stats, nil
}

// stageMessage returns the number of staged attachments, or -1 when the
// message is deliberately skipped.
func (s *stager) stageMessage(ctx context.Context, m mail.Message) (int, error) {
	ref := Reference(m.Subject)
	logger := s.logger.With("email_id", m.ID, "reference", ref)
	if !validReference(ref) {
		logger.Warn("ingest.stage.bad_reference", "subject", m.Subject)
		return -1, nil
	}

	var files []mail.Attachment
	for _, a := range m.Attachments {
		if a.Inline {
			continue
		}
		files = append(files, a)
	}
	if len(files) == 0 {
		logger.Info("ingest.stage.no_attachments")
		return -1, nil
	}

	itemID := constants.ItemID(ref, m.ID)
	for _, a := range files {
		name := sanitizeFilename(a.Name)
		key := constants.UnprocessedKey(itemID, m.ID, name)
		if err := s.store.Put(ctx, key, a.Data); err != nil {
			logger.Error("ingest.stage.put_error", "item_id", itemID, "file", key, "error", err)
			return 0, fmt.Errorf("stage %s: %w", key, err)
		}
		archive := constants.ArchiveKey(ref, m.ID, name)
		if err := s.store.Put(ctx, archive, a.Data); err != nil {
			return 0, fmt.Errorf("archive %s: %w", archive, err)
		}
	}

	raw, err := json.MarshalIndent(mail.NewRawEmail(m), "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode raw email: %w", err)
	}
	if err := s.store.Put(ctx, constants.RawEmailKey(itemID), raw); err != nil {
		return 0, fmt.Errorf("store raw email %s: %w", itemID, err)
	}
	logger.Info("ingest.stage.ok", "item_id", itemID, "attachments", len(files))
	return len(files), nil
}
