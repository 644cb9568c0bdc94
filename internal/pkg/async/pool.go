// Package async runs small batches of named tasks concurrently and collects
// their results by name.
package async

import (
	"context"
	"sync"
)

// Task is one unit of work identified by name.
type Task struct {
	Name    string
	Execute func() (interface{}, error)
}

// Result carries a task's outcome under the task's name.
type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool bounds how many tasks run at once.
type Pool struct {
	concurrency int
}

func NewPool(concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{concurrency: concurrency}
}

// Execute runs every task, at most concurrency at a time, and returns a map
// of results keyed by task name. Tasks still waiting for a slot when the
// context is cancelled report the context error as their result.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	results := make(chan Result, len(tasks))
	slots := make(chan struct{}, p.concurrency)

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()

			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
			case <-ctx.Done():
				results <- Result{Name: task.Name, Err: ctx.Err()}
				return
			}

			data, err := task.Execute()
			results <- Result{Name: task.Name, Data: data, Err: err}
		}(task)
	}
	wg.Wait()
	close(results)

	collected := make(map[string]Result, len(tasks))
	for result := range results {
		collected[result.Name] = result
	}
	return collected
}
