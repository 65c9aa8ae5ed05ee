package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/quotation-intake/internal/retry"
)

type fakeRunner struct {
	calls [][]string
	pages int
	text  string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if name == "pdftoppm" {
		prefix := args[len(args)-1]
		for i := 1; i <= f.pages; i++ {
			if err := os.WriteFile(prefix+"-"+string(rune('0'+i))+".png", []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	}
	return []byte(f.text), nil, nil
}

func TestTesseract_ImageGoesStraightToOCR(t *testing.T) {
	r := &fakeRunner{text: "ACME LTD\n\n  Part   X-1\t10.00\n-----\n"}
	tess := NewTesseract(Config{TesseractLang: "eng"}, r, nil)

	lines, err := tess.Analyze(context.Background(), Document{Key: "k", Name: "scan.PNG", Data: []byte("img")})
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME LTD", "Part X-1 10.00"}, lines)
	require.Len(t, r.calls, 1)
	assert.Equal(t, "tesseract", r.calls[0][0])
	assert.Equal(t, "input.png", filepath.Base(r.calls[0][1]))
}

func TestTesseract_ScannedPDFRendersPages(t *testing.T) {
	r := &fakeRunner{text: "line", pages: 2}
	tess := NewTesseract(Config{}, r, nil)

	lines, err := tess.Analyze(context.Background(), Document{Name: "q.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, []string{"line", "line"}, lines)
	assert.Len(t, r.calls, 3)
}

func TestTesseract_Unsupported(t *testing.T) {
	_, err := NewTesseract(Config{}, &fakeRunner{}, nil).Analyze(context.Background(), Document{Name: "a.docx"})
	assert.Error(t, err)
}

func TestRemoteAnalyzer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/actions/analyzeDocument", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "attachments/unprocessed/SO1_E1/E1_a.pdf", req.Document.ObjectName)
		assert.Equal(t, "ns", req.Document.NamespaceName)
		assert.Equal(t, "ocid1.compartment", req.CompartmentID)
		_, _ = w.Write([]byte(`{"pages":[{"lines":[{"text":"Acme"},{"text":" "}]},{"lines":[{"text":"Total 10"}]}]}`))
	}))
	defer srv.Close()

	a := NewRemoteAnalyzer(RemoteConfig{
		Endpoint:      srv.URL,
		APIKey:        "k",
		Namespace:     "ns",
		Bucket:        "b",
		CompartmentID: "ocid1.compartment",
	}, srv.Client(), nil)

	lines, err := a.Analyze(context.Background(), Document{Key: "attachments/unprocessed/SO1_E1/E1_a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Total 10"}, lines)
	assert.Equal(t, "Acme\nTotal 10", JoinLines(lines))
}

func TestRemoteAnalyzer_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRemoteAnalyzer(RemoteConfig{Endpoint: srv.URL}, srv.Client(), nil).
		Analyze(context.Background(), Document{Key: "k"})
	require.Error(t, err)
	assert.Equal(t, retry.Retryable, retry.Classify(err))
}
