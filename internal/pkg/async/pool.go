// internal/pkg/async/pool.go
package async

import (
	"context"
	"sync"
)

type Task[T any] struct {
	Name    string
	Execute func(ctx context.Context) (T, error)
}

type Result[T any] struct {
	Name string
	Data T
	Err  error
}

// Pool runs tasks on a bounded number of workers. A pool holds no state
// between Execute calls and may be reused.
type Pool[T any] struct {
	workerCount int
}

func NewPool[T any](workerCount int) *Pool[T] {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool[T]{workerCount: workerCount}
}

func (p *Pool[T]) worker(ctx context.Context, tasks <-chan Task[T], results chan<- Result[T], wg *sync.WaitGroup) {
	defer wg.Done()
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result[T]{Name: task.Name, Err: err}
			continue
		}
		data, err := task.Execute(ctx)
		results <- Result[T]{Name: task.Name, Data: data, Err: err}
	}
}

// Execute runs every task and returns one result per task name. Tasks
// still queued when ctx ends report ctx's error without running.
func (p *Pool[T]) Execute(ctx context.Context, tasks []Task[T]) map[string]Result[T] {
	var wg sync.WaitGroup
	queue := make(chan Task[T], len(tasks))
	results := make(chan Result[T], len(tasks))

	for _, task := range tasks {
		queue <- task
	}
	close(queue)

	workers := min(p.workerCount, len(tasks))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, queue, results, &wg)
	}

	wg.Wait()
	close(results)

	out := make(map[string]Result[T], len(tasks))
	for result := range results {
		out[result.Name] = result
	}
	return out
}
