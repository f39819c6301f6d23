package async

import (
	"context"
	"time"
)

// Job is the smallest useful unit: one execution to process. Extend as
// needed later (priority, retry count, etc).
type Job struct {
	ExecutionID string
	SubmittedAt time.Time
	TraceID     string
}

// Processor is the work the queue delegates to. Implementations own their
// failure handling; an error returned here is logged, never retried.
type Processor interface {
	ProcessExecution(ctx context.Context, executionID string) error
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
