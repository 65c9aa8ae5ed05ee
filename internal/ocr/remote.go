package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/quotation-intake/internal/httpx"
)

type RemoteConfig struct {
	Endpoint      string
	APIKey        string
	Namespace     string
	Bucket        string
	CompartmentID string
	Timeout       time.Duration
}

// RemoteAnalyzer calls a document-analysis service that reads the staged
// object directly from the bucket, so only the key travels.
type RemoteAnalyzer struct {
	cfg    RemoteConfig
	client *httpx.Client
	logger *slog.Logger
}

type analyzeRequest struct {
	Document struct {
		Source        string `json:"source"`
		NamespaceName string `json:"namespaceName"`
		BucketName    string `json:"bucketName"`
		ObjectName    string `json:"objectName"`
	} `json:"document"`
	Features      []analyzeFeature `json:"features"`
	DocumentType  string           `json:"documentType"`
	CompartmentID string           `json:"compartmentId"`
}

type analyzeFeature struct {
	FeatureType string `json:"featureType"`
}

type analyzeResponse struct {
	Pages []struct {
		Lines []struct {
			Text string `json:"text"`
		} `json:"lines"`
	} `json:"pages"`
}

func NewRemoteAnalyzer(cfg RemoteConfig, httpClient *http.Client, logger *slog.Logger) *RemoteAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	c := httpx.New("ocr", httpClient, cfg.Timeout, logger)
	if cfg.APIKey != "" {
		c.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &RemoteAnalyzer{cfg: cfg, client: c, logger: logger}
}

func (a *RemoteAnalyzer) Analyze(ctx context.Context, doc Document) ([]string, error) {
	var req analyzeRequest
	req.Document.Source = "OBJECT_STORAGE"
	req.Document.NamespaceName = a.cfg.Namespace
	req.Document.BucketName = a.cfg.Bucket
	req.Document.ObjectName = doc.Key
	req.Features = []analyzeFeature{{FeatureType: "TEXT_EXTRACTION"}}
	req.DocumentType = "OTHERS"
	req.CompartmentID = a.cfg.CompartmentID

	endpoint := strings.TrimRight(a.cfg.Endpoint, "/") + "/actions/analyzeDocument"
	raw, _, err := a.client.DoJSON(ctx, http.MethodPost, endpoint, req, nil)
	if err != nil {
		return nil, err
	}

	var resp analyzeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("ocr: decode response: %w", err)
	}
	var lines []string
	for _, p := range resp.Pages {
		for _, ln := range p.Lines {
			if t := strings.TrimSpace(ln.Text); t != "" {
				lines = append(lines, t)
			}
		}
	}
	a.logger.Debug("ocr.remote.done", "key", doc.Key, "pages", len(resp.Pages), "lines", len(lines))
	return lines, nil
}
