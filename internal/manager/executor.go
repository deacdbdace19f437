package manager

import (
	"context"
	"sync"
)

// DefaultWorkers is the default worker pool width.
const DefaultWorkers = 4

// Task is one unit of provisioning or teardown work.
type Task func(ctx context.Context)

// Executor runs a batch of independent tasks and waits for all of
// them. The two implementations are the two execution models the
// manager supports: a bounded worker pool and one goroutine per task.
// An executor is stateless between Run calls; a manager instance uses
// exactly one executor for all of its operations.
type Executor interface {
	Run(ctx context.Context, tasks []Task)
}

// WorkerPool executes tasks on a fixed number of workers.
type WorkerPool struct {
	width int
}

// NewWorkerPool creates a worker pool executor. A non-positive width
// falls back to DefaultWorkers.
func NewWorkerPool(width int) *WorkerPool {
	if width <= 0 {
		width = DefaultWorkers
	}
	return &WorkerPool{width: width}
}

// Width returns the number of workers.
func (e *WorkerPool) Width() int {
	return e.width
}

// Run implements Executor.
func (e *WorkerPool) Run(ctx context.Context, tasks []Task) {
	if len(tasks) == 0 {
		return
	}

	width := e.width
	if width > len(tasks) {
		width = len(tasks)
	}

	queue := make(chan Task)
	var wg sync.WaitGroup
	wg.Add(width)
	for i := 0; i < width; i++ {
		go func() {
			defer wg.Done()
			for task := range queue {
				task(ctx)
			}
		}()
	}

	for _, task := range tasks {
		select {
		case <-ctx.Done():
			// Stop feeding; running tasks observe ctx themselves.
			close(queue)
			wg.Wait()
			return
		case queue <- task:
		}
	}
	close(queue)
	wg.Wait()
}

// PerTask executes every task on its own goroutine and joins them
// with a fan-in barrier.
type PerTask struct{}

// NewPerTask creates a per-task executor.
func NewPerTask() *PerTask {
	return &PerTask{}
}

// Run implements Executor.
func (e *PerTask) Run(ctx context.Context, tasks []Task) {
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for _, task := range tasks {
		go func(t Task) {
			defer wg.Done()
			t(ctx)
		}(task)
	}
	wg.Wait()
}
