package entity

import (
	"time"

	"github.com/joseph-ayodele/quotation-intake/constants"
)

// AttachmentRecord is the per-file trace of a pipeline run.
type AttachmentRecord struct {
	Key     string              `json:"key"`
	Class   constants.FileClass `json:"class"`
	Text    string              `json:"-"`
	Failure string              `json:"failure,omitempty"`
}

// Failed reports whether text extraction did not produce anything usable.
func (r AttachmentRecord) Failed() bool {
	return r.Failure != ""
}

// ExtractionResult is the structured output for one attachment.
type ExtractionResult struct {
	SourceKey string    `json:"source_key"`
	Quotation Quotation `json:"quotation"`
	Valid     bool      `json:"valid"`
	Reason    string    `json:"reason,omitempty"`
}

// AggregatedPayload groups the valid results of one work item under its
// business reference. The JSON keys match what the downstream reader expects.
type AggregatedPayload struct {
	Reference   string      `json:"SIN"`
	Quotations  []Quotation `json:"quotations"`
	WorkItemID  string      `json:"work_item_id"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Aggregate keeps only valid results, in the order given.
func Aggregate(item WorkItem, results []ExtractionResult, now time.Time) (AggregatedPayload, bool) {
	p := AggregatedPayload{
		Reference:   item.Reference,
		WorkItemID:  item.ID,
		GeneratedAt: now.UTC(),
		Quotations:  make([]Quotation, 0, len(results)),
	}
	for _, r := range results {
		if !r.Valid {
			continue
		}
		p.Quotations = append(p.Quotations, r.Quotation)
	}
	return p, len(p.Quotations) > 0
}

// ItemCount is the number of quoted lines across all quotations.
func (p AggregatedPayload) ItemCount() int {
	n := 0
	for _, q := range p.Quotations {
		n += len(q.Items)
	}
	return n
}
