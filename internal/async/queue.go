package async

import (
	"context"
	"time"
)

// Job is one artifact to run through the pipeline. Extend as needed later
// (trace, retry, priority).
type Job struct {
	Bucket      string
	Key         string
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
