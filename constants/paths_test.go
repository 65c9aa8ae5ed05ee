package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitItemID(t *testing.T) {
	ref, id, ok := SplitItemID("SO100_AAMk_x=")
	assert.True(t, ok)
	assert.Equal(t, "SO100", ref)
	assert.Equal(t, "AAMk_x=", id)

	for _, bad := range []string{"SO100", "_E1", "SO100_", ""} {
		_, _, ok := SplitItemID(bad)
		assert.False(t, ok, bad)
	}
}

func TestKeyLayout(t *testing.T) {
	item := ItemID("SO100", "E1")
	staged := UnprocessedKey(item, "E1", "quote.pdf")

	assert.Equal(t, "attachments/unprocessed/SO100_E1/E1_quote.pdf", staged)
	assert.Equal(t, "attachments/processed/SO100_E1/E1_quote.pdf", ProcessedKey(staged))
	assert.Equal(t, "attachments/locks/SO100_E1.lock", LockName(item))
	assert.Equal(t, "emails/raw/SO100_E1.json", RawEmailKey(item))
	assert.Equal(t, "emails/processed/SO100_grouped.json", GroupedPayloadKey("SO100"))
	assert.Equal(t, "attachments/all_attachments/SO100/E1_quote.pdf", ArchiveKey("SO100", "E1", "quote.pdf"))

	got, ok := ItemIDFromLock(LockName(item))
	assert.True(t, ok)
	assert.Equal(t, item, got)
	assert.True(t, IsGroupedPayloadKey(GroupedPayloadKey("SO100")))
}
