package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/ocr"
)

// Result is the classification of one file plus its text when the file
// carries a text layer.
type Result struct {
	Class constants.FileClass
	Text  string
	Pages int
}

// Classifier decides how a staged file is read. PDFs are probed with
// pdftotext: any text means text-bearing, none means scanned.
type Classifier struct {
	pdftotext string
	runner    ocr.Runner
	logger    *slog.Logger
}

func NewClassifier(pdftotext string, runner ocr.Runner, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ocr.ExecRunner{Logger: logger}
	}
	if pdftotext == "" {
		pdftotext = "pdftotext"
	}
	return &Classifier{pdftotext: pdftotext, runner: runner, logger: logger}
}

// ClassByName classifies by extension only. PDFs come back as text-bearing
// until probed.
func ClassByName(name string) constants.FileClass {
	ext := filepath.Ext(name)
	switch {
	case constants.IsPDFExt(ext):
		return constants.FileClassTextPDF
	case constants.IsImageExt(ext):
		return constants.FileClassImage
	default:
		return constants.FileClassUnsupported
	}
}

func (c *Classifier) Classify(ctx context.Context, name string, data []byte) (Result, error) {
	class := ClassByName(name)
	if class != constants.FileClassTextPDF {
		return Result{Class: class}, nil
	}

	text, pages, err := c.pdfToText(ctx, data)
	if err != nil {
		return Result{Class: constants.FileClassUnsupported}, fmt.Errorf("read pdf %s: %w", name, err)
	}
	if strings.TrimSpace(text) == "" {
		c.logger.Debug("extract.pdf.scanned", "file", name, "pages", pages)
		return Result{Class: constants.FileClassScannedPDF, Pages: pages}, nil
	}
	return Result{Class: constants.FileClassTextPDF, Text: ocr.Normalize(text), Pages: pages}, nil
}

func (c *Classifier) pdfToText(ctx context.Context, data []byte) (string, int, error) {
	f, err := os.CreateTemp("", "qi-pdf-*.pdf")
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		return "", 0, err
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := c.runner.Run(ctx, c.pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", f.Name(), "-")
	if err != nil {
		return "", 0, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	text := string(out)
	// A form-feed \f is used as page separator by default
	pages := 1 + strings.Count(strings.TrimRight(text, "\f"), "\f")
	return strings.ReplaceAll(text, "\f", "\n"), pages, nil
}
