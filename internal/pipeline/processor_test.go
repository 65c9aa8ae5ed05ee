package pipeline

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/blob"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
	"github.com/joseph-ayodele/quotation-intake/internal/extract"
	"github.com/joseph-ayodele/quotation-intake/internal/llm"
	"github.com/joseph-ayodele/quotation-intake/internal/ocr"
	"github.com/joseph-ayodele/quotation-intake/internal/retry"
)

// nameClassifier treats file contents as the PDF text layer.
type nameClassifier struct{}

func (nameClassifier) Classify(_ context.Context, name string, data []byte) (extract.Result, error) {
	cls := extract.ClassByName(name)
	if cls == constants.FileClassTextPDF {
		if len(data) == 0 {
			return extract.Result{Class: constants.FileClassScannedPDF}, nil
		}
		return extract.Result{Class: cls, Text: string(data)}, nil
	}
	return extract.Result{Class: cls}, nil
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	lines []string
	err   error
}

func (f *fakeAnalyzer) Analyze(context.Context, ocr.Document) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.lines, f.err
}

// scriptedExtractor answers by the first line of the text.
type scriptedExtractor struct {
	mu      sync.Mutex
	answers map[string]llm.Extraction
	errs    map[string]error
	calls   map[string]int
}

func (s *scriptedExtractor) Extract(_ context.Context, text string) (llm.Extraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, _, _ := strings.Cut(text, "\n")
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[key]++
	if err := s.errs[key]; err != nil {
		return llm.Extraction{}, err
	}
	return s.answers[key], nil
}

func noWait(context.Context, time.Duration) error { return nil }

func policy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, BackoffBase: 2, Sleep: noWait, Jitter: func() float64 { return 0 }}
}

func acme() entity.Quotation {
	return entity.Quotation{Vendor: &entity.Vendor{Name: "Acme"}, Items: []entity.Item{{PartNumber: "A-1", Quantity: "1"}}}
}

func newProcessor(store blob.Store, an ocr.Analyzer, ex llm.Extractor) *Processor {
	text := NewTextStage(nameClassifier{}, an, policy(3), nil)
	parse := NewParseStage(ex, policy(5), nil)
	p := NewProcessor(store, text, parse, 2, nil)
	p.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p
}

func stage(t *testing.T, store blob.Store, itemID string, files map[string]string) entity.WorkItem {
	t.Helper()
	item, ok := entity.NewWorkItem(itemID)
	require.True(t, ok)
	for name, body := range files {
		key := constants.UnprocessedKey(itemID, item.EmailID, name)
		require.NoError(t, store.Put(context.Background(), key, []byte(body)))
		item.Files = append(item.Files, key)
	}
	return item
}

func TestProcess_TextPDFAndUnsupported(t *testing.T) {
	store := blob.NewMemoryStore()
	item := stage(t, store, "SO100_E1", map[string]string{"a.pdf": "A", "b.docx": "B"})
	ex := &scriptedExtractor{answers: map[string]llm.Extraction{"A": {Quotation: acme()}}}

	report, err := newProcessor(store, &fakeAnalyzer{}, ex).Process(context.Background(), item)
	require.NoError(t, err)
	require.True(t, report.HasPayload)

	want := entity.AggregatedPayload{
		Reference:   "SO100",
		WorkItemID:  "SO100_E1",
		GeneratedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Quotations:  []entity.Quotation{acme()},
	}
	assert.Empty(t, cmp.Diff(want, report.Payload))
	assert.Equal(t, 1, report.Valid())
	assert.Zero(t, ex.calls["B"], "unsupported file never reaches extraction")
}

func TestProcess_ValidityGate(t *testing.T) {
	store := blob.NewMemoryStore()
	item := stage(t, store, "SO7_E7", map[string]string{"a.pdf": "NOVENDOR", "b.pdf": "NOITEMS", "c.pdf": "JUNK"})
	ex := &scriptedExtractor{answers: map[string]llm.Extraction{
		"NOVENDOR": {Quotation: entity.Quotation{Items: []entity.Item{{PartNumber: "x"}}}},
		"NOITEMS":  {Quotation: entity.Quotation{Vendor: &entity.Vendor{Name: "v"}}},
		"JUNK":     {Invalid: true, Raw: "??", Reason: "response is not json"},
	}}

	report, err := newProcessor(store, &fakeAnalyzer{}, ex).Process(context.Background(), item)
	require.NoError(t, err)
	assert.False(t, report.HasPayload)
	assert.Empty(t, report.Payload.Quotations)
	require.Len(t, report.Results, 3)
	for _, r := range report.Results {
		assert.False(t, r.Valid)
		assert.NotEmpty(t, r.Reason)
	}
}

func TestProcess_OCRExhaustionSkipsFile(t *testing.T) {
	store := blob.NewMemoryStore()
	item := stage(t, store, "SO1_E1", map[string]string{"scan.png": "img", "a.pdf": "A"})
	an := &fakeAnalyzer{err: goerrors.New("busy", goerrors.CategoryExternal).WithCode(503)}
	ex := &scriptedExtractor{answers: map[string]llm.Extraction{"A": {Quotation: acme()}}}

	report, err := newProcessor(store, an, ex).Process(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 3, an.calls, "one call plus two retries")
	assert.True(t, report.HasPayload)
	assert.Len(t, report.Payload.Quotations, 1)

	var scan entity.AttachmentRecord
	for _, r := range report.Records {
		if path.Base(r.Key) == "E1_scan.png" {
			scan = r
		}
	}
	assert.Equal(t, constants.FileClassImage, scan.Class)
	assert.True(t, scan.Failed())
}

func TestProcess_OCRLinesFeedExtraction(t *testing.T) {
	store := blob.NewMemoryStore()
	item := stage(t, store, "SO2_E2", map[string]string{"scan.pdf": ""})
	an := &fakeAnalyzer{lines: []string{"SCANNED", "line two"}}
	ex := &scriptedExtractor{answers: map[string]llm.Extraction{"SCANNED": {Quotation: acme()}}}

	report, err := newProcessor(store, an, ex).Process(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, report.HasPayload)
	assert.Equal(t, "SCANNED\nline two", report.Records[0].Text)
	assert.Equal(t, constants.FileClassScannedPDF, report.Records[0].Class)
}

func TestProcess_ExtractionExhaustionIsEmptySentinel(t *testing.T) {
	store := blob.NewMemoryStore()
	item := stage(t, store, "SO3_E3", map[string]string{"a.pdf": "A"})
	ex := &scriptedExtractor{errs: map[string]error{"A": goerrors.New("slow", goerrors.CategoryRateLimit).WithCode(429)}}

	report, err := newProcessor(store, &fakeAnalyzer{}, ex).Process(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 5, ex.calls["A"])
	assert.False(t, report.HasPayload)
	require.Len(t, report.Results, 1)
	assert.Contains(t, report.Results[0].Reason, "exhausted")
}

func TestProcess_StoreReadFailureFailsItem(t *testing.T) {
	store := blob.NewMemoryStore()
	item := stage(t, store, "SO4_E4", map[string]string{"a.pdf": "A"})
	item.Files = append(item.Files, constants.UnprocessedKey("SO4_E4", "E4", "gone.pdf"))

	_, err := newProcessor(store, &fakeAnalyzer{}, &scriptedExtractor{}).Process(context.Background(), item)
	require.Error(t, err)
	assert.True(t, errors.Is(err, blob.ErrNotFound))
}
