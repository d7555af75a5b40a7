package workers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ResultsInTaskOrder(t *testing.T) {
	pool := NewPool(4, time.Second)

	tasks := make([]Task, 8)
	for i := range tasks {
		i := i
		tasks[i] = Task{
			Name: fmt.Sprintf("task-%d", i),
			Fn: func(ctx context.Context) (interface{}, error) {
				// Stagger completion so order would scramble without indexing
				time.Sleep(time.Duration(8-i) * time.Millisecond)
				return i * 10, nil
			},
		}
	}

	results := pool.Run(context.Background(), tasks)
	require.Len(t, results, 8)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("task-%d", i), r.Name)
		require.NoError(t, r.Err)
		assert.Equal(t, i*10, r.Value)
	}
}

func TestPool_FailureIsolation(t *testing.T) {
	pool := NewPool(2, time.Second)
	boom := errors.New("boom")

	tasks := []Task{
		{Name: "ok", Fn: func(ctx context.Context) (interface{}, error) { return "fine", nil }},
		{Name: "bad", Fn: func(ctx context.Context) (interface{}, error) { return nil, boom }},
		{Name: "also-ok", Fn: func(ctx context.Context) (interface{}, error) { return 42, nil }},
	}

	results := pool.Run(context.Background(), tasks)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 42, results[2].Value)
}

func TestPool_TaskTimeout(t *testing.T) {
	pool := NewPool(1, 20*time.Millisecond)

	tasks := []Task{
		{Name: "slow", Fn: func(ctx context.Context) (interface{}, error) {
			// Ignores its context entirely
			time.Sleep(500 * time.Millisecond)
			return "too late", nil
		}},
		{Name: "fast", Fn: func(ctx context.Context) (interface{}, error) {
			return "done", nil
		}},
	}

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	require.Error(t, results[0].Err)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.NoError(t, results[1].Err)
	assert.Less(t, elapsed, 400*time.Millisecond, "timed-out task must not hold the worker")
}

func TestPool_CancelAbandonsPendingTasks(t *testing.T) {
	pool := NewPool(1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	var started int32
	tasks := []Task{
		{Name: "first", Fn: func(ctx context.Context) (interface{}, error) {
			atomic.AddInt32(&started, 1)
			cancel()
			return "ran", nil
		}},
		{Name: "second", Fn: func(ctx context.Context) (interface{}, error) {
			atomic.AddInt32(&started, 1)
			return "ran", nil
		}},
	}

	results := pool.Run(ctx, tasks)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.ErrorIs(t, results[1].Err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&started))
}

func TestPool_EmptyTaskList(t *testing.T) {
	pool := NewPool(0, 0)
	results := pool.Run(context.Background(), nil)
	assert.Empty(t, results)
}

func TestNewPool_Defaults(t *testing.T) {
	pool := NewPool(0, 0)
	assert.Greater(t, pool.numWorkers, 0)
	assert.Equal(t, 60*time.Second, pool.taskTimeout)
}
