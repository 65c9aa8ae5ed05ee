package downstream

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/quotation-intake/internal/common"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
	"github.com/joseph-ayodele/quotation-intake/internal/httpx"
)

var (
	_ Submitter   = (*HTTPClient)(nil)
	_ OrderLookup = (*HTTPClient)(nil)
)

// HTTPClient talks to a REST system of record:
//
//	PUT {base}/quotations/{reference}   upsert, Idempotency-Key = reference
//	GET {base}/orders/{reference}       200 known, 404 unknown
type HTTPClient struct {
	base   string
	http   *httpx.Client
	logger *slog.Logger
}

func NewHTTPClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := httpx.New("downstream", httpClient, 30*time.Second, logger)
	if token != "" {
		c.SetHeader("Authorization", "Bearer "+token)
	}
	return &HTTPClient{base: strings.TrimRight(baseURL, "/"), http: c, logger: logger}
}

func (c *HTTPClient) Submit(ctx context.Context, reference string, payload entity.AggregatedPayload) error {
	endpoint := c.base + "/quotations/" + url.PathEscape(reference)
	_, status, err := c.http.DoJSON(ctx, http.MethodPut, endpoint, payload, map[string]string{
		"Idempotency-Key": reference,
	})
	if err != nil {
		c.logger.Error("downstream.submit.error", "reference", reference, "status", status, "error", err)
		return err
	}
	c.logger.Info("downstream.submit.ok", "reference", reference, "status", status, "quotations", len(payload.Quotations))
	return nil
}

func (c *HTTPClient) OrderExists(ctx context.Context, reference string) (bool, error) {
	endpoint := c.base + "/orders/" + url.PathEscape(reference)
	_, _, err := c.http.DoJSON(ctx, http.MethodGet, endpoint, nil, nil)
	switch {
	case err == nil:
		return true, nil
	case common.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}
