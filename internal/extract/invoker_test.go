package extract

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLNativeAI/PaperJet/internal/llm"
)

type stubExtractor struct {
	raw map[string]any
	err error
}

func (s stubExtractor) Extract(_ context.Context, _ llm.Document, _ *llm.Contract) (map[string]any, error) {
	return s.raw, s.err
}
func (s stubExtractor) ModelName() string { return "stub-model" }

type panickySink struct{}

func (panickySink) StartSpan(context.Context, SpanMeta) (context.Context, Span) {
	panic("sink exploded")
}

type recordingSink struct {
	started int
	ended   int
	failed  int
}

func (s *recordingSink) StartSpan(ctx context.Context, _ SpanMeta) (context.Context, Span) {
	s.started++
	return ctx, recordingSpan{sink: s}
}

type recordingSpan struct{ sink *recordingSink }

func (recordingSpan) ID() string         { return "span-1" }
func (r recordingSpan) End(_, _ int)     { r.sink.ended++ }
func (r recordingSpan) EndError(_ error) { r.sink.failed++ }

func TestInvokerExtract(t *testing.T) {
	logger := slog.Default()
	doc := llm.Document{URL: "file:///doc.pdf", MimeType: "application/pdf"}
	contract := &llm.Contract{Fields: []llm.FieldSlot{{Name: "vendor"}}, Prompt: "extract"}

	t.Run("returns extractor output and closes the span", func(t *testing.T) {
		sink := &recordingSink{}
		iv := NewInvoker(stubExtractor{raw: map[string]any{"vendor": "ACME"}}, sink, logger)

		raw, err := iv.Extract(context.Background(), doc, contract)
		require.NoError(t, err)
		assert.Equal(t, "ACME", raw["vendor"])
		assert.Equal(t, 1, sink.started)
		assert.Equal(t, 1, sink.ended)
	})

	t.Run("propagates the extractor error unmodified", func(t *testing.T) {
		wantErr := errors.New("model unavailable")
		sink := &recordingSink{}
		iv := NewInvoker(stubExtractor{err: wantErr}, sink, logger)

		_, err := iv.Extract(context.Background(), doc, contract)
		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, 1, sink.failed)
	})

	t.Run("a panicking sink cannot affect the result", func(t *testing.T) {
		iv := NewInvoker(stubExtractor{raw: map[string]any{"vendor": "ACME"}}, panickySink{}, logger)

		raw, err := iv.Extract(context.Background(), doc, contract)
		require.NoError(t, err)
		assert.Equal(t, "ACME", raw["vendor"])
	})

	t.Run("nil sink defaults to nop", func(t *testing.T) {
		iv := NewInvoker(stubExtractor{raw: map[string]any{}}, nil, logger)
		_, err := iv.Extract(context.Background(), doc, contract)
		assert.NoError(t, err)
	})
}
