package task

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTaskQueue is a bare channel standing in for TaskQueue
type mockTaskQueue struct {
	items chan QueuedJob
}

func newMockTaskQueue() *mockTaskQueue {
	return &mockTaskQueue{items: make(chan QueuedJob, 10)}
}

func (m *mockTaskQueue) GetChannel() <-chan QueuedJob {
	return m.items
}

func TestNewWorkerPool(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(newMockTaskQueue(), WorkerPoolConfig{WorkerCount: 3}, setupTestLogger())
	assert.Equal(t, 3, pool.workerCount)

	// Invalid worker counts fall back to one worker
	pool = NewWorkerPool(newMockTaskQueue(), WorkerPoolConfig{WorkerCount: -1}, setupTestLogger())
	assert.Equal(t, 1, pool.workerCount)
}

func TestWorkerPool_ProcessesJobs(t *testing.T) {
	t.Parallel()

	queue := newMockTaskQueue()
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 2}, setupTestLogger())

	var processed int32
	var wg sync.WaitGroup
	wg.Add(5)

	pool.Start(func(ctx context.Context, item QueuedJob, workerID int) {
		atomic.AddInt32(&processed, 1)
		wg.Done()
	})
	defer pool.Stop()

	for i := 0; i < 5; i++ {
		queue.items <- newQueuedJob()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for jobs to be processed")
	}

	assert.Equal(t, int32(5), atomic.LoadInt32(&processed))
}

func TestWorkerPool_StopCancelsHandlerContext(t *testing.T) {
	t.Parallel()

	queue := newMockTaskQueue()
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())

	started := make(chan struct{})
	cancelled := make(chan struct{})

	pool.Start(func(ctx context.Context, item QueuedJob, workerID int) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})

	queue.items <- newQueuedJob()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler never started")
	}

	pool.Stop()

	select {
	case <-cancelled:
	default:
		t.Fatal("Stop returned before the handler observed cancellation")
	}
}

func TestWorkerPool_ExitsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	queue := newMockTaskQueue()
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 2}, setupTestLogger())
	pool.Start(func(ctx context.Context, item QueuedJob, workerID int) {})

	close(queue.items)

	exited := make(chan struct{})
	go func() {
		pool.wg.Wait()
		close(exited)
	}()

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("workers did not exit after the queue closed")
	}

	require.NotPanics(t, pool.Stop)
}
