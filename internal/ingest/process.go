package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/common"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
	"github.com/joseph-ayodele/quotation-intake/internal/mail"
)

// ItemResult is the outcome of one attempt at one work item.
type ItemResult struct {
	ItemID     string
	Reference  string
	Outcome    constants.ItemOutcome
	Files      int
	Quotations int
	Err        error
}

// processItem runs one work item from lock to processed. Every exit other
// than success releases the lock and leaves the item unprocessed.
func (c *Coordinator) processItem(ctx context.Context, item entity.WorkItem) ItemResult {
	ctx = common.WithItemID(ctx, item.ID)
	logger := common.LoggerFromContext(ctx, c.logger).With("reference", item.Reference)
	res := ItemResult{ItemID: item.ID, Reference: item.Reference}

	ok, err := c.machine.Lock(ctx, &item)
	if err != nil && !ok {
		logger.Error("ingest.item.lock_error", "error", err)
		res.Outcome, res.Err = constants.OutcomeFailed, err
		return res
	}
	if !ok {
		logger.Info("ingest.item.locked_elsewhere")
		res.Outcome = constants.OutcomeLockContended
		return res
	}
	defer func() {
		// release even if the pass context was cancelled mid item
		if err := c.machine.Release(context.WithoutCancel(ctx), &item); err != nil {
			logger.Error("ingest.item.release_error", "error", err)
		}
	}()
	if err != nil {
		logger.Error("ingest.item.list_error", "error", err)
		res.Outcome, res.Err = constants.OutcomeFailed, err
		return res
	}
	res.Files = len(item.Files)

	if c.orders != nil {
		known, err := c.orders.OrderExists(ctx, item.Reference)
		if err != nil {
			logger.Error("ingest.item.order_lookup_error", "error", err)
			res.Outcome, res.Err = constants.OutcomeFailed, err
			return res
		}
		if !known {
			logger.Warn("ingest.item.unknown_order")
			res.Outcome = constants.OutcomeUnknownOrder
			return res
		}
	}

	report, err := c.processor.Process(ctx, item)
	if err != nil {
		res.Outcome, res.Err = constants.OutcomeFailed, err
		return res
	}
	if !report.HasPayload {
		logger.Warn("ingest.item.no_valid_results", "files", len(item.Files))
		res.Outcome = constants.OutcomeNoValidResults
		return res
	}
	res.Quotations = len(report.Payload.Quotations)

	if err := c.submitter.Submit(ctx, item.Reference, report.Payload); err != nil {
		logger.Error("ingest.item.submit_error", "error", err)
		res.Outcome, res.Err = constants.OutcomeFailed, err
		return res
	}
	logger.Info("ingest.item.submitted", "quotations", res.Quotations)

	if err := c.notify(ctx, item, logger); err != nil {
		res.Outcome, res.Err = constants.OutcomeFailed, err
		return res
	}

	if err := c.machine.Complete(ctx, &item, report.Payload); err != nil {
		logger.Error("ingest.item.complete_error", "error", err)
		res.Outcome, res.Err = constants.OutcomeFailed, err
		return res
	}
	res.Outcome = constants.OutcomeProcessed
	return res
}

// notify replies to the original message. Only a missing or unreadable
// metadata object is an error; the send itself is best-effort.
func (c *Coordinator) notify(ctx context.Context, item entity.WorkItem, logger *slog.Logger) error {
	body, err := c.store.Get(ctx, constants.RawEmailKey(item.ID))
	if err != nil {
		logger.Error("ingest.notify.metadata_error", "error", err)
		return fmt.Errorf("load raw email %s: %w", item.ID, err)
	}
	var raw mail.RawEmail
	if err := json.Unmarshal(body, &raw); err != nil {
		logger.Error("ingest.notify.metadata_error", "error", err)
		return fmt.Errorf("decode raw email %s: %w", item.ID, err)
	}

	html := mail.BuildReplyBody(raw.FromName, item.Reference, len(item.Files))
	if err := c.transport.SendReply(ctx, raw.ID, html); err != nil {
		logger.Warn("ingest.notify.send_failed", "error", err)
		return nil
	}
	logger.Info("ingest.notify.sent", "to", raw.From)
	return nil
}
