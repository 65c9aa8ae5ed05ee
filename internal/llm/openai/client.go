package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/quotation-intake/internal/llm"
)

var _ llm.Extractor = (*Client)(nil)

type chatCompletion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract implements llm.Extractor over the chat/completions endpoint. HTTP
// failures are returned as categorized errors for the retry policy; anything
// the model says comes back as an Extraction.
func (c *Client) Extract(ctx context.Context, text string) (llm.Extraction, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(text),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.SystemPrompt},
			{"role": "user", "content": llm.BuildUserPrompt(text)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, err := c.http.DoJSON(ctx, http.MethodPost, endpoint, body, nil)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Extraction{}, err
	}

	var cc chatCompletion
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
		)
		return llm.Extraction{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Warn("llm.extract.no_choices", "req_id", rid)
		return llm.Extraction{Invalid: true, Reason: "no choices in response"}, nil
	}

	ext := llm.ParseResponse(cc.Choices[0].Message.Content, c.logger)
	if ext.Invalid {
		c.logger.Warn("llm.extract.invalid",
			"req_id", rid, "reason", ext.Reason,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return ext, nil
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"vendor", ext.Quotation.VendorName(),
		"items", len(ext.Quotation.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ext, nil
}
