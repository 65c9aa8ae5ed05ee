package mail

import (
	"context"
	"time"
)

// Attachment is a file attached to an inbound message. Inline attachments
// (signatures, embedded images) are not staged.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
	Inline      bool
}

type Message struct {
	ID          string
	ReceivedAt  time.Time
	Subject     string
	From        string
	FromName    string
	BodyPreview string
	Attachments []Attachment
}

// Transport is the email collaborator. FetchSince returns messages received
// at or after since, oldest first where the provider allows. SendReply is
// best-effort: callers log its failure and move on.
type Transport interface {
	FetchSince(ctx context.Context, since time.Time) ([]Message, error)
	SendReply(ctx context.Context, messageID, htmlBody string) error
}

// RawEmail is the metadata object persisted next to the staged attachments,
// read back later to address the reply.
type RawEmail struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
	Received string `json:"received"`
	Body     string `json:"body"`
}

func NewRawEmail(m Message) RawEmail {
	raw := RawEmail{
		ID:       m.ID,
		Subject:  m.Subject,
		From:     m.From,
		FromName: m.FromName,
		Body:     m.BodyPreview,
	}
	if !m.ReceivedAt.IsZero() {
		raw.Received = m.ReceivedAt.UTC().Format(time.RFC3339)
	}
	return raw
}
