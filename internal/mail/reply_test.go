package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFirstName(t *testing.T) {
	assert.Equal(t, "Sara", FirstName("Sara Al-Harbi"))
	assert.Equal(t, "Valued Customer", FirstName("   "))
	assert.Equal(t, "Valued Customer", FirstName(""))
}

func TestBuildReplyBody(t *testing.T) {
	one := BuildReplyBody("Omar Khalid", "SO100", 1)
	assert.Contains(t, one, "<strong>Omar</strong>")
	assert.Contains(t, one, "Your quotation has been successfully received")
	assert.Contains(t, one, "<strong>SO100</strong>")

	many := BuildReplyBody("", "SO100", 3)
	assert.Contains(t, many, "<strong>Valued Customer</strong>")
	assert.Contains(t, many, "Your 3 quotations have been")

	esc := BuildReplyBody("<script>", "SO1", 1)
	assert.Contains(t, esc, "&lt;script&gt;")
}

func TestNewRawEmail(t *testing.T) {
	raw := NewRawEmail(Message{
		ID:          "AAMk1",
		Subject:     " so100 ",
		From:        "a@b.c",
		FromName:    "A B",
		BodyPreview: "hi",
		ReceivedAt:  time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
	})
	assert.Equal(t, RawEmail{
		ID: "AAMk1", Subject: " so100 ", From: "a@b.c", FromName: "A B",
		Received: "2025-02-03T04:05:06Z", Body: "hi",
	}, raw)
}
