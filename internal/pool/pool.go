// Package pool provides the bounded worker pool that executes scheduled
// attempts. Submission never blocks: when every slot is busy the caller is
// told immediately so it can record the attempt as dropped.
package pool

import (
	"context"
	"sync"
)

// Task is a unit of work run by a worker.
type Task func()

// Stats describes the pool at a point in time.
type Stats struct {
	Workers  int `json:"workers"`
	InFlight int `json:"in_flight"`
	Max      int `json:"max"`
}

// WorkerPool runs tasks on at most max goroutines. min workers are started up
// front and more are added on demand until max is reached.
type WorkerPool struct {
	min int
	max int

	slots chan struct{} // one token per queued or running task
	jobs  chan Task
	quit  chan struct{}

	mu      sync.Mutex
	workers int
	closed  bool

	inflight  sync.WaitGroup
	workersWg sync.WaitGroup
	closeOnce sync.Once
}

// NewWorkerPool creates a pool with min pre-started workers and a ceiling of
// max concurrent tasks. max below 1 is treated as 1 and min is clamped to
// [0, max].
func NewWorkerPool(min, max int) *WorkerPool {
	if max < 1 {
		max = 1
	}
	if min < 0 {
		min = 0
	}
	if min > max {
		min = max
	}
	p := &WorkerPool{
		min:   min,
		max:   max,
		slots: make(chan struct{}, max),
		jobs:  make(chan Task, max),
		quit:  make(chan struct{}),
	}
	p.mu.Lock()
	for i := 0; i < min; i++ {
		p.spawnLocked()
	}
	p.mu.Unlock()
	return p
}

// TrySubmit queues task if a slot is free and reports whether it was accepted.
// It never blocks.
func (p *WorkerPool) TrySubmit(task Task) bool {
	if task == nil {
		return false
	}

	select {
	case p.slots <- struct{}{}:
	default:
		return false
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return false
	}
	if len(p.slots) > p.workers && p.workers < p.max {
		p.spawnLocked()
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	// jobs has capacity max and we hold one of max slots, so this cannot block.
	p.jobs <- task
	return true
}

// Wait blocks until every accepted task has finished or ctx is done.
func (p *WorkerPool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and lets workers exit once the queue drains.
// Tasks already accepted still run.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.quit)
	})
	p.workersWg.Wait()
}

// Stats returns the current worker count and number of in-flight tasks.
func (p *WorkerPool) Stats() Stats {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()
	return Stats{Workers: workers, InFlight: len(p.slots), Max: p.max}
}

func (p *WorkerPool) spawnLocked() {
	p.workers++
	p.workersWg.Add(1)
	go p.work()
}

func (p *WorkerPool) work() {
	defer p.workersWg.Done()
	for {
		select {
		case task := <-p.jobs:
			p.run(task)
		case <-p.quit:
			// Drain anything accepted before Close.
			for {
				select {
				case task := <-p.jobs:
					p.run(task)
				default:
					return
				}
			}
		}
	}
}

func (p *WorkerPool) run(task Task) {
	defer func() {
		<-p.slots
		p.inflight.Done()
	}()
	task()
}
