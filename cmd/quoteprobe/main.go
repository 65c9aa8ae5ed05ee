package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/quotation-intake/internal/common"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
	"github.com/joseph-ayodele/quotation-intake/internal/extract"
	"github.com/joseph-ayodele/quotation-intake/internal/llm"
	"github.com/joseph-ayodele/quotation-intake/internal/llm/langchain"
	"github.com/joseph-ayodele/quotation-intake/internal/llm/openai"
	"github.com/joseph-ayodele/quotation-intake/internal/ocr"
	"github.com/joseph-ayodele/quotation-intake/internal/pipeline"
	"github.com/joseph-ayodele/quotation-intake/internal/retry"
)

type probeOutput struct {
	File       string                  `json:"file"`
	Class      string                  `json:"class"`
	Failure    string                  `json:"failure,omitempty"`
	TextChars  int                     `json:"text_chars"`
	Text       string                  `json:"text,omitempty"`
	Extraction *entity.ExtractionResult `json:"extraction,omitempty"`
	ElapsedMS  int64                   `json:"elapsed_ms"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(os.Getenv("QUOTESD_CONFIG"))
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(2)
	}

	provider := flag.String("llm", cfg.LLM.Provider, "openai | langchain")
	model := flag.String("model", cfg.LLM.Model, "model name")
	baseURL := flag.String("base-url", cfg.LLM.BaseURL, "OpenAI-compatible base URL")
	textOnly := flag.Bool("text-only", false, "stop after text extraction")
	showText := flag.Bool("show-text", false, "include the extracted text in the output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: quoteprobe [flags] <file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()

	runner := ocr.ExecRunner{Logger: logger}
	text := pipeline.NewTextStage(
		extract.NewClassifier("pdftotext", runner, logger),
		ocr.NewTesseract(ocr.Config{TesseractLang: cfg.OCR.TesseractLang, TessdataDir: cfg.OCR.TessdataDir, PSM: 6}, runner, logger),
		retry.Policy{Name: "ocr.analyze", MaxAttempts: cfg.Retry.OCRMaxAttempts, BackoffBase: cfg.Retry.BackoffBase, Logger: logger},
		logger,
	)
	rec := text.Run(ctx, filepath.Base(path), data)

	out := probeOutput{
		File:      path,
		Class:     string(rec.Class),
		Failure:   rec.Failure,
		TextChars: len(rec.Text),
	}
	if *showText {
		out.Text = rec.Text
	}

	if !rec.Failed() && !*textOnly {
		var extractor llm.Extractor
		switch *provider {
		case "langchain":
			extractor, err = langchain.New(langchain.Config{
				BaseURL: *baseURL, Token: cfg.LLM.APIKey, Model: *model, Temperature: float64(cfg.LLM.Temperature),
			}, logger)
			if err != nil {
				logger.Error("langchain client", "error", err)
				os.Exit(1)
			}
		default:
			extractor = openai.NewClient(openai.Config{
				APIKey: cfg.LLM.APIKey, BaseURL: *baseURL, Model: *model,
				Temperature: cfg.LLM.Temperature, Timeout: cfg.LLM.Timeout,
			}, nil, logger)
		}
		parse := pipeline.NewParseStage(extractor,
			retry.Policy{Name: "llm.extract", MaxAttempts: cfg.Retry.ExtractMaxAttempts, BackoffBase: cfg.Retry.BackoffBase, Logger: logger},
			logger)
		res := parse.Run(ctx, rec)
		out.Extraction = &res
	}
	out.ElapsedMS = time.Since(start).Milliseconds()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
