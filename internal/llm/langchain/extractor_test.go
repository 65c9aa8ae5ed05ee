package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/joseph-ayodele/quotation-intake/internal/retry"
)

type fakeModel struct {
	content  string
	err      error
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestExtract(t *testing.T) {
	m := &fakeModel{content: `{"Vendor":{"name":"Acme"},"Items":[{"Quantity":"3"}]}`}
	ext, err := NewWithModel(m, 0, nil).Extract(context.Background(), "quote text")
	require.NoError(t, err)
	require.False(t, ext.Invalid)
	assert.Equal(t, "3", ext.Quotation.Items[0].Quantity)

	require.Len(t, m.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.messages[1].Role)
}

func TestExtract_ProviderRateLimitIsRetryable(t *testing.T) {
	m := &fakeModel{err: errors.New("API returned unexpected status code: 429: Rate limit reached")}
	_, err := NewWithModel(m, 0, nil).Extract(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, retry.Retryable, retry.Classify(err))
}

func TestExtract_EmptyChoices(t *testing.T) {
	ext, err := NewWithModel(emptyModel{}, 0, nil).Extract(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ext.Invalid)
}

type emptyModel struct{}

func (emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (emptyModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", nil
}
