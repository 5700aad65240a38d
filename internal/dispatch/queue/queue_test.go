package queue

import (
	"context"
	"testing"

	"rivoj/internal/common/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *PendingQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return NewPendingQueue(c)
}

func TestPendingQueueFIFO(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	ctx := context.Background()

	entries := []Entry{
		{SubmissionID: "sub-1", ProblemID: 10},
		{SubmissionID: "sub-2", ProblemID: 11},
		{SubmissionID: "sub-3", ProblemID: 10},
	}
	for _, e := range entries {
		if err := q.Push(ctx, e); err != nil {
			t.Fatalf("Push(%v): %v", e, err)
		}
	}

	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 3 {
		t.Fatalf("Len = %d, want 3", n)
	}

	for i, want := range entries {
		got, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop #%d: %v", i, err)
		}
		if got == nil || *got != want {
			t.Fatalf("Pop #%d = %v, want %v", i, got, want)
		}
	}
}

func TestPendingQueuePopEmpty(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)

	got, err := q.Pop(context.Background())
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if got != nil {
		t.Fatalf("Pop on empty queue = %v, want nil", got)
	}
}
