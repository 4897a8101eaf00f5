package async

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (any, error)
}

type Result struct {
	Name string
	Data any
	Err  error
}

// Pool runs independent tasks with bounded concurrency.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

// Execute runs every task and returns their results keyed by task name.
// A failing task does not cancel the others; tasks not started before ctx
// is done report ctx.Err().
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(tasks))
	)

	var g errgroup.Group
	g.SetLimit(p.workerCount)

	for _, task := range tasks {
		g.Go(func() error {
			result := Result{Name: task.Name}
			if err := ctx.Err(); err != nil {
				result.Err = err
			} else {
				result.Data, result.Err = task.Execute(ctx)
			}

			mu.Lock()
			results[task.Name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FirstError returns the first error among results in task order.
func FirstError(tasks []Task, results map[string]Result) error {
	for _, task := range tasks {
		if err := results[task.Name].Err; err != nil {
			return err
		}
	}
	return nil
}
