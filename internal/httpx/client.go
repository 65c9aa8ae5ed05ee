package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/quotation-intake/internal/common"
)

// Client sends JSON requests to one collaborator and maps non-2xx answers onto
// categorized errors (see common.ExternalError). It does not retry; callers
// wrap it in a retry policy where the contract allows.
type Client struct {
	service string
	http    *http.Client
	logger  *slog.Logger
	headers map[string]string
}

// New builds a client for the named service. A nil httpClient gets a default
// one with the given timeout.
func New(service string, httpClient *http.Client, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		service: service,
		http:    httpClient,
		logger:  logger,
		headers: map[string]string{},
	}
}

// SetHeader adds a header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// DoJSON sends body (nil for none) as JSON and returns the raw response body
// and status. A non-2xx status returns the body together with an error.
func (c *Client) DoJSON(ctx context.Context, method, endpoint string, body any, headers map[string]string) ([]byte, int, error) {
	var reader io.Reader
	var size int
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			c.logger.Error("http.encode_error", "service", c.service, "error", err)
			return nil, 0, fmt.Errorf("encode json: %w", err)
		}
		reader = bytes.NewReader(bs)
		size = len(bs)
	}
	h := map[string]string{"Accept": "application/json"}
	if body != nil {
		h["Content-Type"] = "application/json"
	}
	for k, v := range headers {
		h[k] = v
	}
	return c.do(ctx, method, endpoint, reader, size, h)
}

// PostForm sends an application/x-www-form-urlencoded body.
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	encoded := form.Encode()
	return c.do(ctx, http.MethodPost, endpoint, strings.NewReader(encoded), len(encoded), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "application/json",
	})
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, size int, headers map[string]string) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		c.logger.Error("http.build_request_error", "service", c.service, "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("http.request",
		"service", c.service,
		"req_id", reqID,
		"method", method,
		"url", endpoint,
		"content_length", size,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("http.send_error", "service", c.service, "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, fmt.Errorf("%s request: %w", c.service, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("http.response_body_close_error", "service", c.service, "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	c.logger.Debug("http.response",
		"service", c.service,
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		c.logger.Warn("http.non_2xx",
			"service", c.service,
			"req_id", reqID,
			"method", method,
			"status", resp.StatusCode,
		)
		return raw, resp.StatusCode, common.ExternalError(c.service, resp.StatusCode, raw)
	}
	return raw, resp.StatusCode, nil
}
