package downstream

import (
	"context"

	"github.com/joseph-ayodele/quotation-intake/internal/entity"
)

// Submitter is the system-of-record upsert. Implementations must be
// idempotent per reference: a crash after Submit and before the folder move
// resubmits the same reference on the next pass.
type Submitter interface {
	Submit(ctx context.Context, reference string, payload entity.AggregatedPayload) error
}

// OrderLookup reports whether the system of record knows a reference.
type OrderLookup interface {
	OrderExists(ctx context.Context, reference string) (bool, error)
}
