package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
	"github.com/joseph-ayodele/quotation-intake/internal/extract"
	"github.com/joseph-ayodele/quotation-intake/internal/ocr"
	"github.com/joseph-ayodele/quotation-intake/internal/retry"
)

// Classifier is the file classification step (extract.Classifier).
type Classifier interface {
	Classify(ctx context.Context, name string, data []byte) (extract.Result, error)
}

// TextStage is file -> text. Text-bearing PDFs are read directly, scanned
// PDFs and images go to the OCR analyzer under its retry policy.
type TextStage struct {
	classifier Classifier
	analyzer   ocr.Analyzer
	policy     retry.Policy
	logger     *slog.Logger
}

func NewTextStage(classifier Classifier, analyzer ocr.Analyzer, policy retry.Policy, logger *slog.Logger) *TextStage {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.Name == "" {
		policy.Name = "ocr.analyze"
	}
	return &TextStage{classifier: classifier, analyzer: analyzer, policy: policy, logger: logger}
}

// Run never returns an error for a bad file; the record carries the
// failure and the caller skips it.
func (s *TextStage) Run(ctx context.Context, key string, data []byte) entity.AttachmentRecord {
	name := path.Base(key)
	rec := entity.AttachmentRecord{Key: key}
	logger := s.logger.With("file", key)

	cls, err := s.classifier.Classify(ctx, name, data)
	rec.Class = cls.Class
	if err != nil {
		rec.Failure = err.Error()
		return rec
	}

	switch {
	case cls.Class == constants.FileClassUnsupported:
		rec.Failure = "unsupported format"
		return rec
	case !cls.Class.NeedsOCR():
		rec.Text = cls.Text
	default:
		doc := ocr.Document{Key: key, Name: name, Data: data}
		res := retry.Do(ctx, s.policy, func(ctx context.Context) ([]string, error) {
			return s.analyzer.Analyze(ctx, doc)
		})
		if !res.OK() {
			logger.Error("pipeline.ocr.failed", "outcome", res.Outcome.String(), "attempts", res.Attempts, "error", res.Err)
			rec.Failure = fmt.Sprintf("ocr %s: %v", res.Outcome, res.Err)
			return rec
		}
		rec.Text = ocr.JoinLines(res.Value)
	}

	if rec.Text == "" {
		rec.Failure = "no text extracted"
	}
	return rec
}
