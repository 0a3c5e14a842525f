package async

import (
	"context"
	"time"
)

// Job is one file handed to the queue.
type Job struct {
	Name        string // display / dedup name
	Path        string
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
