package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDispatchesToHandler(t *testing.T) {
	var handled int64
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt64(&handled, 1)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "j", Type: "noop"}))
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&handled) == 5
	}, time.Second, 10*time.Millisecond)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int64
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt64(&attempts, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1", Type: "flaky"}))

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&attempts) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})

	err := q.Enqueue(Job{ID: "j1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}
