// Package async runs independent tasks concurrently and merges their outcomes
// back through a completion channel.
//
// Each task owns whatever state its closure captures. Results are only
// collected by the caller's goroutine, so tasks never write to shared fields.
package async

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Result is the outcome of a single task.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Run starts every task in its own goroutine and waits for all of them.
// Results are returned in completion order. When onDone is non-nil it is
// called from the caller's goroutine as each result arrives.
func Run(ctx context.Context, tasks []Task, onDone func(Result)) []Result {
	if len(tasks) == 0 {
		return nil
	}

	resultChan := make(chan Result, len(tasks))
	for _, task := range tasks {
		go func() {
			start := time.Now()
			err := task.Func(ctx)
			resultChan <- Result{Name: task.Name, Err: err, Duration: time.Since(start)}
		}()
	}

	results := make([]Result, 0, len(tasks))
	for range len(tasks) {
		res := <-resultChan
		if onDone != nil {
			onDone(res)
		}
		results = append(results, res)
	}
	return results
}

// RunParallel executes the tasks concurrently and returns all failures joined
// into one error, each prefixed with its task name.
func RunParallel(ctx context.Context, tasks []Task) error {
	return Errors(Run(ctx, tasks, nil))
}

// Errors joins the failed results of a Run.
func Errors(results []Result) error {
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	return errors.Join(errs...)
}
