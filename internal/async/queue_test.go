package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (p *recordingProcessor) ProcessExecution(_ context.Context, executionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, executionID)
	return p.err
}

func (p *recordingProcessor) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func TestExecutionQueue(t *testing.T) {
	logger := slog.Default()

	t.Run("processes every enqueued job before shutdown returns", func(t *testing.T) {
		proc := &recordingProcessor{}
		q := NewExecutionQueue(proc, logger, WithWorkers(2), WithQueueSize(8))

		for _, id := range []string{"exec_1", "exec_2", "exec_3"} {
			require.NoError(t, q.Enqueue(context.Background(), Job{ExecutionID: id, SubmittedAt: time.Now()}))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)

		assert.ElementsMatch(t, []string{"exec_1", "exec_2", "exec_3"}, proc.ids())
	})

	t.Run("processor errors do not stop the workers", func(t *testing.T) {
		proc := &recordingProcessor{err: errors.New("boom")}
		q := NewExecutionQueue(proc, logger, WithWorkers(1))

		require.NoError(t, q.Dispatch(context.Background(), "exec_1"))
		require.NoError(t, q.Dispatch(context.Background(), "exec_2"))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)

		assert.Len(t, proc.ids(), 2)
	})

	t.Run("enqueue after shutdown is a no-op", func(t *testing.T) {
		proc := &recordingProcessor{}
		q := NewExecutionQueue(proc, logger, WithWorkers(1))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)

		require.NoError(t, q.Enqueue(context.Background(), Job{ExecutionID: "exec_late"}))
		assert.Empty(t, proc.ids())

		// A second shutdown is safe.
		q.Shutdown(ctx)
	})
}
