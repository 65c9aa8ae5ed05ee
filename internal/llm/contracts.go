package llm

import (
	"context"

	"github.com/joseph-ayodele/quotation-intake/internal/entity"
)

// Extraction is what the structured-extraction call produced for one text.
//
// Invalid means the model answered but the answer could not be used (not
// JSON, or JSON that does not fit the schema). Empty is the sentinel for
// "no answer at all", returned when retries run out.
type Extraction struct {
	Quotation entity.Quotation
	Raw       string
	Invalid   bool
	Empty     bool
	Reason    string
}

// EmptyExtraction is returned by callers that gave up on the model.
func EmptyExtraction(reason string) Extraction {
	return Extraction{Empty: true, Reason: reason}
}

// Extractor turns document text into a quotation. It returns an error only
// for transport failures; a bad answer is an Invalid extraction.
type Extractor interface {
	Extract(ctx context.Context, text string) (Extraction, error)
}
