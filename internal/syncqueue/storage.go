package syncqueue

import (
	"context"
	"time"
)

// Storage is the durable backing of the queue. Pop blocks up to timeout and
// returns (nil, nil) when nothing arrived; PromoteDue moves delayed jobs
// whose retry instant has passed back onto the pending list.
type Storage interface {
	Push(ctx context.Context, job *Job) error
	PushDelayed(ctx context.Context, job *Job, at time.Time) error
	Pop(ctx context.Context, timeout time.Duration) (*Job, error)
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	DeadLetter(ctx context.Context, job *Job) error
	DeadLetters(ctx context.Context, limit int) ([]*Job, error)
}
