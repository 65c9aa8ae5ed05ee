package maildrop

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func drop(t *testing.T, tr *Transport, name string, f File) {
	t.Helper()
	b, err := json.Marshal(f)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(tr.InboxDir(), name), b, 0o644))
}

func TestFetchSince(t *testing.T) {
	tr, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	t0 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	drop(t, tr, "b.json", File{ID: "b", Subject: "SO2", Received: t0.Add(2 * time.Hour)})
	drop(t, tr, "a.json", File{ID: "a", Subject: "SO1", Received: t0.Add(time.Hour), FromName: "Ali Hassan",
		Attachments: []FileAttachment{{Name: "q.pdf", Content: []byte("%PDF")}}})
	drop(t, tr, "old.json", File{ID: "old", Received: t0.Add(-time.Hour)})
	require.NoError(t, os.WriteFile(filepath.Join(tr.InboxDir(), "broken.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tr.InboxDir(), "notes.txt"), []byte("x"), 0o644))

	msgs, err := tr.FetchSince(context.Background(), t0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].ID)
	assert.Equal(t, "b", msgs[1].ID)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, []byte("%PDF"), msgs[0].Attachments[0].Data)
}

func TestSendReply(t *testing.T) {
	dir := t.TempDir()
	tr, err := New(dir, nil)
	require.NoError(t, err)
	tr.now = func() time.Time { return time.Unix(100, 0) }

	require.NoError(t, tr.SendReply(context.Background(), "AAM/k1", "<p>ok</p>"))

	entries, err := os.ReadDir(filepath.Join(dir, "outbox"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "AAM-k1_100000000000.json", entries[0].Name())

	raw, err := os.ReadFile(filepath.Join(dir, "outbox", entries[0].Name()))
	require.NoError(t, err)
	var r Reply
	require.NoError(t, json.Unmarshal(raw, &r))
	assert.Equal(t, "AAM/k1", r.InReplyTo)
	assert.Equal(t, "<p>ok</p>", r.Body)
}

func TestWatch_SignalsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sig, err := Watch(ctx, tr.InboxDir(), 20*time.Millisecond, nil)
	require.NoError(t, err)

	drop(t, tr, "m.json", File{ID: "m"})

	select {
	case <-sig:
	case <-time.After(5 * time.Second):
		t.Fatal("no signal after dropping a message")
	}

	cancel()
	for range sig {
	}
}
