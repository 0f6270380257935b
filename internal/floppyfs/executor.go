package floppyfs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MGerckens/floppyfs/internal/metrics"
)

type job struct {
	fn     func() error
	done   chan error
	queued time.Time
}

// executor runs jobs one at a time on a single goroutine. It owns the
// device channel and the directory index: code touching either must run
// inside a job. Submitters block on an unbuffered channel, so jobs start
// in submission order.
type executor struct {
	jobs      chan *job
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newExecutor() *executor {
	e := &executor{
		jobs: make(chan *job),
		quit: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *executor) run() {
	defer e.wg.Done()
	for {
		select {
		case j := <-e.jobs:
			metrics.RecordQueueWait(time.Since(j.queued))
			j.done <- call(j.fn)
		case <-e.quit:
			return
		}
	}
}

// call runs fn and turns a panic into an error so a bad job cannot take the
// worker down with it.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrIO, r)
		}
	}()
	return fn()
}

// do submits fn and waits for it. A context cancelled before the worker
// picks the job up abandons it; once started, a job runs to completion.
func (e *executor) do(ctx context.Context, fn func() error) error {
	j := &job{fn: fn, done: make(chan error, 1), queued: time.Now()}
	select {
	case e.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrClosed
	}
	return <-j.done
}

func (e *executor) close() {
	e.closeOnce.Do(func() {
		close(e.quit)
	})
	e.wg.Wait()
}
