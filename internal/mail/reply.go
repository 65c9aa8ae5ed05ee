package mail

import (
	"fmt"
	"html"
	"strings"
)

const fallbackGreeting = "Valued Customer"

// FirstName is the first word of a display name.
func FirstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return fallbackGreeting
	}
	return fields[0]
}

// BuildReplyBody is the HTML acknowledgement sent once a reference has been
// submitted downstream.
func BuildReplyBody(fromName, reference string, attachments int) string {
	info := "quotation has"
	if attachments != 1 {
		info = fmt.Sprintf("%d quotations have", attachments)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Dear <strong>%s</strong>,</p>\n", html.EscapeString(FirstName(fromName)))
	b.WriteString("<p>Thank you for your submission.</p>\n")
	fmt.Fprintf(&b, "<p>Your %s been successfully received and processed for <strong>%s</strong>.</p>\n",
		info, html.EscapeString(reference))
	b.WriteString("<p>Best regards,<br>Sales Bot</p>\n")
	return b.String()
}
