package langchain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/joseph-ayodele/quotation-intake/internal/llm"
)

var _ llm.Extractor = (*Extractor)(nil)

type Config struct {
	BaseURL     string
	Token       string
	Model       string
	Temperature float64
}

// Extractor implements llm.Extractor through langchaingo, for any
// OpenAI-compatible endpoint (local model servers, proxies).
type Extractor struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Extractor, error) {
	token := cfg.Token
	if token == "" {
		// local OpenAI-compatible servers accept any token
		token = "none"
	}
	opts := []openai.Option{openai.WithToken(token)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain openai client: %w", err)
	}
	return NewWithModel(client, cfg.Temperature, logger), nil
}

// NewWithModel wraps an existing model handle.
func NewWithModel(model llms.Model, temperature float64, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client:      model,
		temperature: temperature,
		logger:      logger.With("component", "langchain-extractor"),
	}
}

func (e *Extractor) Extract(ctx context.Context, text string) (llm.Extraction, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(llm.SystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(llm.BuildUserPrompt(text))},
		},
	}

	resp, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(e.temperature), llms.WithJSONMode())
	if err != nil {
		e.logger.Error("llm.extract.generate_error", "error", err)
		return llm.Extraction{}, err
	}
	if len(resp.Choices) < 1 {
		e.logger.Warn("llm.extract.no_choices")
		return llm.Extraction{Invalid: true, Reason: "no choices in response"}, nil
	}

	ext := llm.ParseResponse(resp.Choices[0].Content, e.logger)
	if ext.Invalid {
		e.logger.Warn("llm.extract.invalid", "reason", ext.Reason)
	} else {
		e.logger.Info("llm.extract.ok", "vendor", ext.Quotation.VendorName(), "items", len(ext.Quotation.Items))
	}
	return ext, nil
}
