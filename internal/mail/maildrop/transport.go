package maildrop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/quotation-intake/internal/mail"
)

var _ mail.Transport = (*Transport)(nil)

const (
	inboxDir  = "inbox"
	outboxDir = "outbox"
)

// File is one message dropped into <dir>/inbox as JSON.
type File struct {
	ID          string           `json:"id"`
	Subject     string           `json:"subject"`
	From        string           `json:"from"`
	FromName    string           `json:"from_name"`
	Received    time.Time        `json:"received"`
	Body        string           `json:"body"`
	Attachments []FileAttachment `json:"attachments"`
}

type FileAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Inline      bool   `json:"inline,omitempty"`
	Content     []byte `json:"content"` // base64 in JSON
}

// Reply is what SendReply writes to <dir>/outbox.
type Reply struct {
	InReplyTo string    `json:"in_reply_to"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// Transport reads messages from a local directory. It serves single-host
// deployments and integration runs without a mail provider.
type Transport struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, sub := range []string{inboxDir, outboxDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("maildrop: create %s: %w", sub, err)
		}
	}
	return &Transport{dir: dir, now: time.Now, logger: logger}, nil
}

// InboxDir is where new messages are dropped.
func (t *Transport) InboxDir() string { return filepath.Join(t.dir, inboxDir) }

func (t *Transport) FetchSince(ctx context.Context, since time.Time) ([]mail.Message, error) {
	entries, err := os.ReadDir(t.InboxDir())
	if err != nil {
		return nil, fmt.Errorf("maildrop: read inbox: %w", err)
	}
	var out []mail.Message
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		path := filepath.Join(t.InboxDir(), e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("maildrop: read %s: %w", e.Name(), err)
		}
		var f File
		if err := json.Unmarshal(raw, &f); err != nil {
			t.logger.Warn("maildrop.bad_message", "file", e.Name(), "error", err)
			continue
		}
		if f.ID == "" {
			f.ID = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		if !since.IsZero() && f.Received.Before(since) {
			continue
		}
		out = append(out, toMessage(f))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	t.logger.Debug("maildrop.fetch", "since", since, "messages", len(out))
	return out, nil
}

func toMessage(f File) mail.Message {
	m := mail.Message{
		ID:          f.ID,
		ReceivedAt:  f.Received.UTC(),
		Subject:     f.Subject,
		From:        f.From,
		FromName:    f.FromName,
		BodyPreview: f.Body,
	}
	for _, a := range f.Attachments {
		m.Attachments = append(m.Attachments, mail.Attachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			Data:        a.Content,
			Inline:      a.Inline,
		})
	}
	return m
}

func (t *Transport) SendReply(_ context.Context, messageID, htmlBody string) error {
	now := t.now().UTC()
	b, err := json.MarshalIndent(Reply{InReplyTo: messageID, Body: htmlBody, SentAt: now}, "", "  ")
	if err != nil {
		return fmt.Errorf("maildrop: encode reply: %w", err)
	}
	name := fmt.Sprintf("%s_%d.json", safeName(messageID), now.UnixNano())
	if err := os.WriteFile(filepath.Join(t.dir, outboxDir, name), b, 0o644); err != nil {
		return fmt.Errorf("maildrop: write reply: %w", err)
	}
	t.logger.Info("maildrop.reply.written", "message_id", messageID, "file", name)
	return nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, s)
}
