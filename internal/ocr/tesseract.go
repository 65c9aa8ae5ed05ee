package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/joseph-ayodele/quotation-intake/constants"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300
	MaxPages      int // 0 = no limit
	PSM           int // e.g., 6 is good for uniform block of text
}

// Tesseract analyzes documents on the local host: scanned PDFs are rendered
// with pdftoppm, then every page image goes through tesseract.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

func (t *Tesseract) Analyze(ctx context.Context, doc Document) ([]string, error) {
	ext := constants.NormalizeExt(filepath.Ext(doc.Name))
	if !constants.IsPDFExt(ext) && !constants.IsImageExt(ext) {
		return nil, fmt.Errorf("ocr: unsupported extension %q", ext)
	}

	tmpDir, err := os.MkdirTemp("", "qi-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("ocr: temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.logger.Warn("ocr.cleanup_error", "dir", tmpDir, "error", err)
		}
	}()

	in := filepath.Join(tmpDir, "input."+ext)
	if err := os.WriteFile(in, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("ocr: write input: %w", err)
	}

	pages := []string{in}
	if constants.IsPDFExt(ext) {
		pages, err = t.renderPages(ctx, in, filepath.Join(tmpDir, "page"))
		if err != nil {
			return nil, err
		}
	}

	var lines []string
	for _, img := range pages {
		txt, err := t.recognize(ctx, img)
		if err != nil {
			return nil, err
		}
		lines = append(lines, SplitLines(txt)...)
	}
	t.logger.Debug("ocr.local.done", "key", doc.Key, "pages", len(pages), "lines", len(lines))
	return lines, nil
}

func (t *Tesseract) renderPages(ctx context.Context, pdf, prefix string) ([]string, error) {
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := t.runner.Run(ctx, t.cfg.Pdftoppm, "-r", strconv.Itoa(t.cfg.DPI), "-png", pdf, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}
	// prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if t.cfg.MaxPages > 0 && len(matches) > t.cfg.MaxPages {
		matches = matches[:t.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm: no pages rendered")
	}
	return matches, nil
}

func (t *Tesseract) recognize(ctx context.Context, img string) (string, error) {
	args := []string{img, "stdout", "-l", t.cfg.TesseractLang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
