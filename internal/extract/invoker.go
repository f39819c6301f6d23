package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/MLNativeAI/PaperJet/internal/llm"
)

// Invoker performs exactly one structured-extraction call per invocation and
// wraps it in a best-effort trace span. It never retries and never modifies
// model errors; both policies belong to the callers.
type Invoker struct {
	extractor llm.DocumentExtractor
	sink      TraceSink
	logger    *slog.Logger
}

func NewInvoker(extractor llm.DocumentExtractor, sink TraceSink, logger *slog.Logger) *Invoker {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{extractor: extractor, sink: sink, logger: logger}
}

// Extract calls the model once and returns the raw contract-conforming
// object. The span around the call is telemetry only: a panicking sink can
// not alter the returned result or error.
func (iv *Invoker) Extract(ctx context.Context, doc llm.Document, contract *llm.Contract) (map[string]any, error) {
	start := time.Now()

	var span Span = nopSpan{}
	iv.safely(func() {
		ctx, span = iv.sink.StartSpan(ctx, SpanMeta{
			Name:        "document-extraction",
			Model:       iv.extractor.ModelName(),
			DocumentURL: doc.URL,
			Prompt:      contract.Prompt,
		})
	})

	raw, err := iv.extractor.Extract(ctx, doc, contract)
	if err != nil {
		iv.safely(func() { span.EndError(err) })
		iv.logger.Error("invoker.extract.failed",
			"span_id", span.ID(),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	iv.safely(func() { span.End(len(contract.Fields), len(contract.Tables)) })
	iv.logger.Info("invoker.extract.ok",
		"span_id", span.ID(),
		"fields", len(contract.Fields),
		"tables", len(contract.Tables),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return raw, nil
}

// safely runs a telemetry operation, swallowing panics so tracing stays
// structurally incapable of affecting the extraction outcome.
func (iv *Invoker) safely(f func()) {
	defer func() {
		if r := recover(); r != nil {
			iv.logger.Warn("invoker.trace_sink.panic", "panic", r)
		}
	}()
	f()
}
