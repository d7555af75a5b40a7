// Package workers provides a bounded worker pool for running independent
// per-model computations concurrently.
package workers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Task is one unit of independent work, identified by name.
type Task struct {
	Name string
	Fn   func(ctx context.Context) (interface{}, error)
}

// Result pairs a task name with its outcome.
type Result struct {
	Name  string
	Value interface{}
	Err   error
}

// Pool manages a fixed number of worker goroutines. Each task is time-boxed
// individually so one slow model cannot starve the others.
type Pool struct {
	numWorkers  int
	taskTimeout time.Duration
}

// NewPool creates a worker pool. workers <= 0 defaults to GOMAXPROCS;
// timeout <= 0 defaults to 60s per task.
func NewPool(workers int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Pool{numWorkers: workers, taskTimeout: timeout}
}

type jobItem struct {
	index int
	task  Task
}

type resultItem struct {
	index  int
	result Result
}

// Run executes the tasks and returns results in task order. A failed or
// timed-out task produces a Result with Err set; siblings are unaffected.
// Cancelling ctx abandons tasks that have not started.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	numTasks := len(tasks)
	if numTasks == 0 {
		return []Result{}
	}

	jobs := make(chan jobItem, numTasks)
	results := make(chan resultItem, numTasks)

	numActualWorkers := p.numWorkers
	if numTasks < numActualWorkers {
		numActualWorkers = numTasks
	}

	var wg sync.WaitGroup
	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, jobs, results)
		}()
	}

	for idx, task := range tasks {
		jobs <- jobItem{index: idx, task: task}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]Result, numTasks)
	for item := range results {
		out[item.index] = item.result
	}
	return out
}

func (p *Pool) worker(ctx context.Context, jobs <-chan jobItem, results chan<- resultItem) {
	for job := range jobs {
		if ctx.Err() != nil {
			results <- resultItem{index: job.index, result: Result{
				Name: job.task.Name,
				Err:  fmt.Errorf("task %s abandoned: %w", job.task.Name, ctx.Err()),
			}}
			continue
		}
		results <- resultItem{index: job.index, result: p.runOne(ctx, job.task)}
	}
}

// runOne executes a single task under its own deadline. The task function
// runs in a separate goroutine so a function that ignores its context still
// cannot hold the worker past the timeout.
func (p *Pool) runOne(ctx context.Context, task Task) Result {
	taskCtx, cancel := context.WithTimeout(ctx, p.taskTimeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		value, err := task.Fn(taskCtx)
		done <- Result{Name: task.Name, Value: value, Err: err}
	}()

	select {
	case result := <-done:
		return result
	case <-taskCtx.Done():
		return Result{
			Name: task.Name,
			Err:  fmt.Errorf("task %s timed out: %w", task.Name, taskCtx.Err()),
		}
	}
}
