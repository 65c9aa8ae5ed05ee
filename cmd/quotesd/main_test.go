package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/blob"
	"github.com/joseph-ayodele/quotation-intake/internal/ingest"
	"github.com/joseph-ayodele/quotation-intake/internal/lock"
)

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = parseLevel("verbose")
	assert.Error(t, err)
}

func TestParseDay(t *testing.T) {
	d, err := parseDay("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseDay("2025-02-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), *d)

	_, err = parseDay("03/02/2025")
	assert.Error(t, err)
}

func TestLocksListAndRelease(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORE_DSN", "badger://"+dir)

	store, err := blob.OpenBadgerStore(dir, false, nil)
	require.NoError(t, err)
	ok, err := lock.NewManager(store, nil, lock.WithOwner("host-1/42/abcd1234")).TryAcquire(context.Background(), "SO1_E1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Close())

	run := func(args ...string) string {
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		require.NoError(t, app.Run(append([]string{"quotesd", "--log-level", "error"}, args...)))
		return out.String()
	}

	listed := run("locks", "list")
	assert.Contains(t, listed, "SO1_E1")
	assert.Contains(t, listed, "host-1/42/abcd1234")

	assert.Contains(t, run("locks", "release", "SO1_E1"), "released SO1_E1")
	assert.NotContains(t, run("locks", "list"), "SO1_E1")
}

func TestSetup_RejectsBadLevel(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run([]string{"quotesd", "--log-level", "loud", "locks", "list"})
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, ingest.PassReport{
		PassID:   "p-1",
		StageErr: errors.New("fetch mail: boom"),
		Items: []ingest.ItemResult{
			{ItemID: "SO1_E1", Outcome: constants.OutcomeProcessed, Files: 2, Quotations: 1},
			{ItemID: "SO2_E2", Outcome: constants.OutcomeFailed, Err: errors.New("submit: 500")},
		},
	})
	s := out.String()
	assert.Contains(t, s, "pass p-1")
	assert.Contains(t, s, "stage error: fetch mail: boom")
	assert.Contains(t, s, "SO2_E2")
	assert.Contains(t, s, "processed=1 pending_review=0 failed=1")
}
