package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/quotation-intake/internal/blob"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
)

// Report is everything one work item produced.
type Report struct {
	Records    []entity.AttachmentRecord
	Results    []entity.ExtractionResult
	Payload    entity.AggregatedPayload
	HasPayload bool
}

// Valid counts results that passed the validity gate.
func (r Report) Valid() int {
	n := 0
	for _, res := range r.Results {
		if res.Valid {
			n++
		}
	}
	return n
}

// Processor coordinates the text stage then the parse stage for every file
// of a work item and aggregates the valid results.
type Processor struct {
	store       blob.Store
	text        *TextStage
	parse       *ParseStage
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

func NewProcessor(store blob.Store, text *TextStage, parse *ParseStage, concurrency int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Processor{
		store:       store,
		text:        text,
		parse:       parse,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger,
	}
}

// Process runs every staged file of item. A failed or invalid file is
// logged and skipped; only a store read failure fails the item. Results
// keep the order of item.Files.
func (p *Processor) Process(ctx context.Context, item entity.WorkItem) (Report, error) {
	logger := p.logger.With("item_id", item.ID, "reference", item.Reference)
	records := make([]entity.AttachmentRecord, len(item.Files))
	results := make([]*entity.ExtractionResult, len(item.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, key := range item.Files {
		g.Go(func() error {
			data, err := p.store.Get(gctx, key)
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}

			rec := p.text.Run(gctx, key, data)
			records[i] = rec
			if rec.Failed() {
				logger.Warn("pipeline.file.skipped", "file", key, "class", rec.Class, "reason", rec.Failure)
				return nil
			}

			res := p.parse.Run(gctx, rec)
			results[i] = &res
			if !res.Valid {
				logger.Warn("pipeline.file.invalid", "file", key, "class", rec.Class, "reason", res.Reason)
				return nil
			}
			logger.Info("pipeline.file.ok", "file", key, "class", rec.Class,
				"vendor", res.Quotation.VendorName(), "items", len(res.Quotation.Items))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("pipeline.item.failed", "error", err)
		return Report{}, err
	}

	report := Report{Records: records}
	for _, r := range results {
		if r != nil {
			report.Results = append(report.Results, *r)
		}
	}
	report.Payload, report.HasPayload = entity.Aggregate(item, report.Results, p.now())
	logger.Info("pipeline.item.done",
		"files", len(item.Files),
		"results", len(report.Results),
		"valid", report.Valid(),
	)
	return report, nil
}
