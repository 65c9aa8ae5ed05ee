package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/blob"
	"github.com/joseph-ayodele/quotation-intake/internal/checkpoint"
	"github.com/joseph-ayodele/quotation-intake/internal/common"
	"github.com/joseph-ayodele/quotation-intake/internal/downstream"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
	"github.com/joseph-ayodele/quotation-intake/internal/mail"
	"github.com/joseph-ayodele/quotation-intake/internal/pipeline"
	"github.com/joseph-ayodele/quotation-intake/internal/state"
)

// ItemProcessor extracts and aggregates one locked work item.
type ItemProcessor interface {
	Process(ctx context.Context, item entity.WorkItem) (pipeline.Report, error)
}

// PassReport is what one pass did.
type PassReport struct {
	PassID     string
	StartedAt  time.Time
	Duration   time.Duration
	Stage      StageStats
	StageErr   error
	Checkpoint time.Time
	Items      []ItemResult
}

// Count returns how many items ended with outcome.
func (r PassReport) Count(outcome constants.ItemOutcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == outcome {
			n++
		}
	}
	return n
}

// Healthy reports whether the fetch/stage half completed.
func (r PassReport) Healthy() bool { return r.StageErr == nil }

// Coordinator drives passes: fetch and stage new mail, then discover, lock,
// process, submit and move every unprocessed work item it can lock. Passes
// may overlap; the per-item lock is what keeps them apart.
type Coordinator struct {
	store       blob.Store
	transport   mail.Transport
	checkpoints *checkpoint.Store
	machine     *state.Machine
	processor   ItemProcessor
	submitter   downstream.Submitter
	orders      downstream.OrderLookup
	pool        *ants.Pool
	stager      *stager
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithItemConcurrency sets how many work items one coordinator processes at once.
func WithItemConcurrency(size int) Option {
	return func(c *Coordinator) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if c.pool != nil {
			c.pool.Release()
		}
		c.pool = pool
		return nil
	}
}

// WithOrderLookup skips items whose reference the system of record does not know.
func WithOrderLookup(orders downstream.OrderLookup) Option {
	return func(c *Coordinator) error {
		c.orders = orders
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

func NewCoordinator(
	store blob.Store,
	transport mail.Transport,
	checkpoints *checkpoint.Store,
	machine *state.Machine,
	processor ItemProcessor,
	submitter downstream.Submitter,
	opts ...Option,
) (*Coordinator, error) {
	pool, err := ants.NewPool(4)
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		store:       store,
		transport:   transport,
		checkpoints: checkpoints,
		machine:     machine,
		processor:   processor,
		submitter:   submitter,
		pool:        pool,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			c.Release()
			return nil, err
		}
	}
	c.stager = &stager{store: store, logger: c.logger}
	return c, nil
}

// Release stops the item worker pool. The coordinator must not be used after.
func (c *Coordinator) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

// RunPass runs one fetch/stage half followed by one process half. A failed
// stage half does not advance the checkpoint and does not stop processing of
// already staged items. Per item failures are reported, never returned.
func (c *Coordinator) RunPass(ctx context.Context) PassReport {
	report := PassReport{PassID: uuid.NewString(), StartedAt: c.now()}
	ctx = common.WithPassID(ctx, report.PassID)
	logger := common.LoggerFromContext(ctx, c.logger)
	logger.Info("ingest.pass.start")

	report.Stage, report.Checkpoint, report.StageErr = c.fetchAndStage(ctx, logger)
	if report.StageErr != nil {
		logger.Error("ingest.stage.failed", "error", report.StageErr)
	}

	items, err := c.machine.Discover(ctx)
	if err != nil {
		logger.Error("ingest.discover.failed", "error", err)
	}
	report.Items = c.processAll(ctx, items, logger)

	report.Duration = c.now().Sub(report.StartedAt)
	logger.Info("ingest.pass.done",
		"fetched", report.Stage.Fetched,
		"staged", report.Stage.Staged,
		"items", len(report.Items),
		"processed", report.Count(constants.OutcomeProcessed),
		"failed", report.Count(constants.OutcomeFailed),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report
}

// fetchAndStage returns the checkpoint timestamp in effect after the half.
func (c *Coordinator) fetchAndStage(ctx context.Context, logger *slog.Logger) (StageStats, time.Time, error) {
	cp, found, err := c.checkpoints.Load(ctx)
	if err != nil {
		return StageStats{}, time.Time{}, fmt.Errorf("load checkpoint: %w", err)
	}
	logger.Debug("ingest.fetch.since", "since", cp.LastProcessed, "found", found, "known_ids", cp.IDs.Len())

	msgs, err := c.transport.FetchSince(ctx, cp.LastProcessed)
	if err != nil {
		return StageStats{}, cp.LastProcessed, fmt.Errorf("fetch mail: %w", err)
	}

	ids := cp.IDs.Clone()
	stats, err := c.stager.stage(ctx, msgs, ids)
	if err != nil {
		return stats, cp.LastProcessed, err
	}

	next := cp.LastProcessed
	for _, m := range msgs {
		next = checkpoint.Advance(next, m.ReceivedAt)
	}
	if err := c.checkpoints.Save(ctx, checkpoint.State{LastProcessed: next, IDs: ids}); err != nil {
		return stats, cp.LastProcessed, fmt.Errorf("save checkpoint: %w", err)
	}
	logger.Info("ingest.stage.done",
		"fetched", stats.Fetched,
		"duplicates", stats.Duplicates,
		"skipped", stats.Skipped,
		"staged", stats.Staged,
		"checkpoint", next,
	)
	return stats, next, nil
}

func (c *Coordinator) processAll(ctx context.Context, items []entity.WorkItem, logger *slog.Logger) []ItemResult {
	results := make([]ItemResult, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i] = c.processItem(ctx, item)
		}
		if err := c.pool.Submit(task); err != nil {
			logger.Error("ingest.item.submit_to_pool_failed", "item_id", item.ID, "error", err)
			results[i] = ItemResult{ItemID: item.ID, Reference: item.Reference, Outcome: constants.OutcomeFailed, Err: err}
			wg.Done()
		}
	}
	wg.Wait()
	return results
}
