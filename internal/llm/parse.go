package llm

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

var reFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripCodeFences removes a surrounding markdown code block, if any.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ParseResponse turns raw model content into an Extraction. It never fails:
// content that cannot be used comes back Invalid with the raw text kept.
func ParseResponse(content string, logger *slog.Logger) Extraction {
	if logger == nil {
		logger = slog.Default()
	}
	text := StripCodeFences(content)
	ext := Extraction{Raw: text}

	if !json.Valid([]byte(text)) {
		ext.Invalid = true
		ext.Reason = "response is not json"
		return ext
	}

	cleaned, _, err := NormalizeAndSanitizeJSON([]byte(text), logger)
	if err != nil {
		ext.Invalid = true
		ext.Reason = err.Error()
		return ext
	}
	if err := ValidateJSONAgainstSchema(BuildQuotationJSONSchema(), cleaned); err != nil {
		ext.Invalid = true
		ext.Reason = err.Error()
		return ext
	}
	if err := json.Unmarshal(cleaned, &ext.Quotation); err != nil {
		ext.Invalid = true
		ext.Reason = err.Error()
		return ext
	}
	return ext
}
