package queue

import (
	"context"
	"encoding/json"

	"rivoj/internal/common/cache"
	appErr "rivoj/pkg/errors"
)

// pendingKey is the Redis list holding jobs that found no worker capacity.
const pendingKey = "judge:pending_queue"

// Entry identifies one job waiting for worker capacity.
type Entry struct {
	SubmissionID string `json:"submission_id"`
	ProblemID    int64  `json:"problem_id"`
}

// PendingQueue is a FIFO backlog over a Redis list. Jobs are pushed when no
// worker is selectable and popped opportunistically when capacity may have
// freed up.
type PendingQueue struct {
	cache cache.Cache
}

func NewPendingQueue(c cache.Cache) *PendingQueue {
	return &PendingQueue{cache: c}
}

// Push appends an entry to the backlog.
func (q *PendingQueue) Push(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode pending entry failed")
	}
	if err := q.cache.LPush(ctx, pendingKey, payload); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "push pending entry failed")
	}
	return nil
}

// Pop removes and returns the oldest entry, or nil when the backlog is empty.
func (q *PendingQueue) Pop(ctx context.Context) (*Entry, error) {
	raw, err := q.cache.RPop(ctx, pendingKey)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "pop pending entry failed")
	}
	if raw == "" {
		return nil, nil
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "decode pending entry failed")
	}
	return &entry, nil
}

// Len returns the backlog depth.
func (q *PendingQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.cache.LLen(ctx, pendingKey)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.CacheError, "read pending length failed")
	}
	return n, nil
}
