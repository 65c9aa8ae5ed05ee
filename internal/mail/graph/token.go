package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/quotation-intake/internal/httpx"
)

// TokenSource yields a bearer token for Graph calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a pre-acquired access token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("graph: empty access token")
	}
	return string(t), nil
}

// ClientCredentials runs the OAuth2 client-credentials grant and caches the
// token until shortly before it expires.
type ClientCredentials struct {
	endpoint     string
	clientID     string
	clientSecret string
	scopes       []string
	http         *httpx.Client
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewClientCredentials(authorityURL, tenantID, clientID, clientSecret string, scopes []string, httpClient *http.Client, logger *slog.Logger) *ClientCredentials {
	if authorityURL == "" {
		authorityURL = "https://login.microsoftonline.com"
	}
	return &ClientCredentials{
		endpoint:     strings.TrimRight(authorityURL, "/") + "/" + url.PathEscape(tenantID) + "/oauth2/v2.0/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       scopes,
		http:         httpx.New("graph-auth", httpClient, 30*time.Second, logger),
		now:          time.Now,
	}
}

func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {strings.Join(c.scopes, " ")},
		"grant_type":    {"client_credentials"},
	}
	raw, _, err := c.http.PostForm(ctx, c.endpoint, form)
	if err != nil {
		return "", fmt.Errorf("graph: acquire token: %w", err)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("graph: decode token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("graph: token response without access_token")
	}
	ttl := time.Duration(resp.ExpiresIn) * time.Second
	// refresh a minute early
	if ttl > 2*time.Minute {
		ttl -= time.Minute
	}
	c.token = resp.AccessToken
	c.expires = c.now().Add(ttl)
	return c.token, nil
}
