package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/quotation-intake/internal/httpx"
	"github.com/joseph-ayodele/quotation-intake/internal/mail"
)

var _ mail.Transport = (*Client)(nil)

const fileAttachmentType = "#microsoft.graph.fileAttachment"

type Config struct {
	BaseURL  string // default https://graph.microsoft.com/v1.0
	Mailbox  string // empty -> /me
	PageSize int
	MaxPages int
}

// Client is the Microsoft Graph mail transport.
type Client struct {
	cfg    Config
	tokens TokenSource
	http   *httpx.Client
	logger *slog.Logger
}

func NewClient(cfg Config, tokens TokenSource, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.microsoft.com/v1.0"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	return &Client{
		cfg:    cfg,
		tokens: tokens,
		http:   httpx.New("graph", httpClient, 60*time.Second, logger),
		logger: logger,
	}
}

type emailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type graphMessage struct {
	ID               string `json:"id"`
	Subject          string `json:"subject"`
	ReceivedDateTime string `json:"receivedDateTime"`
	BodyPreview      string `json:"bodyPreview"`
	HasAttachments   bool   `json:"hasAttachments"`
	From             struct {
		EmailAddress emailAddress `json:"emailAddress"`
	} `json:"from"`
}

type messagePage struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
	IsInline     bool   `json:"isInline"`
}

func (c *Client) mailboxURL() string {
	if c.cfg.Mailbox == "" {
		return c.cfg.BaseURL + "/me"
	}
	return c.cfg.BaseURL + "/users/" + url.PathEscape(c.cfg.Mailbox)
}

func (c *Client) authHeaders(ctx context.Context) (map[string]string, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + tok}, nil
}

// FetchSince lists inbox messages received at or after since, oldest first,
// with their file attachments. Paging stops after MaxPages.
func (c *Client) FetchSince(ctx context.Context, since time.Time) ([]mail.Message, error) {
	q := url.Values{}
	q.Set("$top", strconv.Itoa(c.cfg.PageSize))
	q.Set("$orderby", "receivedDateTime asc")
	q.Set("$select", "id,subject,from,receivedDateTime,bodyPreview,hasAttachments")
	if !since.IsZero() {
		q.Set("$filter", "receivedDateTime ge "+since.UTC().Format(time.RFC3339))
	}
	next := c.mailboxURL() + "/mailFolders/inbox/messages?" + q.Encode()

	var out []mail.Message
	for page := 0; next != "" && page < c.cfg.MaxPages; page++ {
		headers, err := c.authHeaders(ctx)
		if err != nil {
			return nil, err
		}
		raw, _, err := c.http.DoJSON(ctx, http.MethodGet, next, nil, headers)
		if err != nil {
			return nil, fmt.Errorf("graph: list messages: %w", err)
		}
		var p messagePage
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("graph: decode messages: %w", err)
		}
		for _, gm := range p.Value {
			m := mail.Message{
				ID:          gm.ID,
				Subject:     gm.Subject,
				From:        gm.From.EmailAddress.Address,
				FromName:    gm.From.EmailAddress.Name,
				BodyPreview: gm.BodyPreview,
			}
			if ts, err := time.Parse(time.RFC3339, gm.ReceivedDateTime); err == nil {
				m.ReceivedAt = ts.UTC()
			} else {
				c.logger.Warn("graph.message.bad_received", "message_id", gm.ID, "value", gm.ReceivedDateTime)
			}
			if gm.HasAttachments {
				atts, err := c.attachments(ctx, gm.ID)
				if err != nil {
					return nil, err
				}
				m.Attachments = atts
			}
			out = append(out, m)
		}
		next = p.NextLink
		if next != "" && page == c.cfg.MaxPages-1 {
			c.logger.Warn("graph.fetch.page_limit", "max_pages", c.cfg.MaxPages)
		}
	}
	c.logger.Info("graph.fetch.ok", "since", since, "messages", len(out))
	return out, nil
}

func (c *Client) attachments(ctx context.Context, messageID string) ([]mail.Attachment, error) {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := c.mailboxURL() + "/messages/" + url.PathEscape(messageID) + "/attachments"
	raw, _, err := c.http.DoJSON(ctx, http.MethodGet, endpoint, nil, headers)
	if err != nil {
		return nil, fmt.Errorf("graph: list attachments of %s: %w", messageID, err)
	}
	var resp struct {
		Value []graphAttachment `json:"value"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("graph: decode attachments: %w", err)
	}

	out := make([]mail.Attachment, 0, len(resp.Value))
	for _, a := range resp.Value {
		if a.ODataType != fileAttachmentType {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(a.ContentBytes)
		if err != nil {
			c.logger.Warn("graph.attachment.bad_content", "message_id", messageID, "name", a.Name, "error", err)
			continue
		}
		out = append(out, mail.Attachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			Data:        data,
			Inline:      a.IsInline,
		})
	}
	return out, nil
}

// SendReply creates a reply draft, sets its HTML body, then sends it.
func (c *Client) SendReply(ctx context.Context, messageID, htmlBody string) error {
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}
	base := c.mailboxURL() + "/messages/"

	raw, _, err := c.http.DoJSON(ctx, http.MethodPost, base+url.PathEscape(messageID)+"/createReply", nil, headers)
	if err != nil {
		return fmt.Errorf("graph: create reply: %w", err)
	}
	var draft struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &draft); err != nil || draft.ID == "" {
		return fmt.Errorf("graph: create reply returned no draft id")
	}

	patch := map[string]any{"body": map[string]string{"contentType": "HTML", "content": htmlBody}}
	if _, _, err := c.http.DoJSON(ctx, http.MethodPatch, base+url.PathEscape(draft.ID), patch, headers); err != nil {
		return fmt.Errorf("graph: update reply: %w", err)
	}
	if _, _, err := c.http.DoJSON(ctx, http.MethodPost, base+url.PathEscape(draft.ID)+"/send", nil, headers); err != nil {
		return fmt.Errorf("graph: send reply: %w", err)
	}
	c.logger.Info("graph.reply.sent", "message_id", messageID, "draft_id", draft.ID)
	return nil
}
