// Package worker runs independent revision pairs concurrently and throttles
// requests to the Wikidata endpoints.
package worker

import (
	"context"
	"sync"
)

// Job is one independent unit of work, typically one revision pair
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of a job
type Result interface {
	GetError() error
}

type queued struct {
	seq int
	job Job
}

type finished struct {
	seq    int
	result Result
}

// Pool runs jobs on a fixed number of workers. Results are returned in
// submission order regardless of completion order.
type Pool struct {
	workers    int
	jobQueue   chan queued
	results    chan finished
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	collected  chan struct{}
	done       []finished

	mu        sync.Mutex
	submitted int
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops the workers
// after their current job.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan queued, workers*2),
		results:    make(chan finished, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
		collected:  make(chan struct{}),
	}
}

// Start launches the workers and the result collector. It must be called
// before Wait.
func (p *Pool) Start() {
	go func() {
		defer close(p.collected)
		for f := range p.results {
			p.done = append(p.done, f)
		}
	}()
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case q, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := q.job.Execute(p.ctx)
			select {
			case p.results <- finished{seq: q.seq, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It blocks while the queue is full and drops the job
// once the pool is shut down. Submit must not be called after Wait.
func (p *Pool) Submit(job Job) {
	p.mu.Lock()
	seq := p.submitted
	p.submitted++
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
	case p.jobQueue <- queued{seq: seq, job: job}:
	}
}

// Wait closes the queue, waits for the workers and returns one entry per
// submitted job in submission order. Jobs dropped by a shutdown or a
// cancelled context leave a nil entry.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.collected

	p.mu.Lock()
	results := make([]Result, p.submitted)
	p.mu.Unlock()
	for _, f := range p.done {
		results[f.seq] = f.result
	}
	return results
}

// Shutdown stops the pool without waiting for queued jobs
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// ResultCollector gathers results from concurrent producers
type ResultCollector struct {
	results []Result
	errors  int
	mu      sync.Mutex
}

func NewResultCollector() *ResultCollector {
	return &ResultCollector{
		results: make([]Result, 0),
	}
}

func (c *ResultCollector) Add(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
	if result.GetError() != nil {
		c.errors++
	}
}

// Results returns a snapshot of the collected results
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

// Failed returns how many collected results carry an error
func (c *ResultCollector) Failed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}
