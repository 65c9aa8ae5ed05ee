package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/quotation-intake/internal/entity"
	"github.com/joseph-ayodele/quotation-intake/internal/llm"
	"github.com/joseph-ayodele/quotation-intake/internal/retry"
)

// ParseStage is text -> quotation, through the structured-extraction
// collaborator under its retry policy.
type ParseStage struct {
	extractor llm.Extractor
	policy    retry.Policy
	logger    *slog.Logger
}

func NewParseStage(extractor llm.Extractor, policy retry.Policy, logger *slog.Logger) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.Name == "" {
		policy.Name = "llm.extract"
	}
	return &ParseStage{extractor: extractor, policy: policy, logger: logger}
}

// Extract returns the empty sentinel when the collaborator cannot be reached,
// whether retries ran out or the failure was fatal.
func (s *ParseStage) Extract(ctx context.Context, text string) llm.Extraction {
	res := retry.Do(ctx, s.policy, func(ctx context.Context) (llm.Extraction, error) {
		return s.extractor.Extract(ctx, text)
	})
	if !res.OK() {
		return llm.EmptyExtraction(res.Outcome.String() + ": " + errString(res.Err))
	}
	return res.Value
}

// Run extracts and applies the validity gate.
func (s *ParseStage) Run(ctx context.Context, rec entity.AttachmentRecord) entity.ExtractionResult {
	out := entity.ExtractionResult{SourceKey: rec.Key}
	ext := s.Extract(ctx, rec.Text)
	switch {
	case ext.Empty:
		out.Reason = "no extraction result (" + ext.Reason + ")"
	case ext.Invalid:
		out.Reason = "invalid extraction: " + ext.Reason
	default:
		out.Quotation = ext.Quotation
		if err := ext.Quotation.Validate(); err != nil {
			out.Reason = err.Error()
		} else {
			out.Valid = true
		}
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
