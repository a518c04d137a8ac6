package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/script"
)

// job states
const (
	jobPending int32 = iota
	jobRunning
	jobAbandoned
)

// job is a unit of work to be executed on the executor goroutine. Each job
// owns its result channel, so a late completion can only ever reach the
// caller that submitted it.
type job struct {
	fn    func(*script.Runtime) (any, error)
	state atomic.Int32
	done  chan jobResult
}

// jobResult holds the return value from a script-side operation.
type jobResult struct {
	value any
	err   error
}

// executor serializes all script-side execution through a single
// goroutine. The script runtime is not safe for concurrent mutation; every
// bridge operation that touches classes or instances goes through it.
type executor struct {
	rt       *script.Runtime
	requests chan *job
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	timeout  time.Duration
}

// newExecutor creates an executor and starts the processing goroutine.
func newExecutor(rt *script.Runtime, queueSize int, timeout time.Duration) *executor {
	e := &executor{
		rt:       rt,
		requests: make(chan *job, queueSize),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		timeout:  timeout,
	}
	go e.loop()
	return e
}

// loop processes jobs sequentially on a dedicated goroutine. Jobs whose
// caller gave up while they were queued are skipped.
func (e *executor) loop() {
	defer close(e.stopped)
	for {
		select {
		case j := <-e.requests:
			if !j.state.CompareAndSwap(jobPending, jobRunning) {
				log.Debugf("skipping abandoned job")
				continue
			}
			j.done <- e.execute(j.fn)
		case <-e.quit:
			return
		}
	}
}

// execute runs a job, recovering from panics.
func (e *executor) execute(fn func(*script.Runtime) (any, error)) (result jobResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("recovered panic in script job: %v", r)
			result = jobResult{err: &errs.Error{
				Kind:  errs.CalleeError,
				Class: "RuntimeError",
				Msg:   fmt.Sprint(r),
			}}
		}
	}()
	v, err := fn(e.rt)
	return jobResult{value: v, err: err}
}

// Do submits fn and waits for its result. The wait is bounded by ctx's
// deadline, or by the executor's default timeout when ctx has none. On
// expiry a job that has not started is abandoned and never runs; a job
// already running is not interrupted, its eventual result is dropped.
// Either way the caller gets Timeout.
//
// Do must not be called from inside a job.
func (e *executor) Do(ctx context.Context, fn func(*script.Runtime) (any, error)) (any, error) {
	select {
	case <-e.quit:
		return nil, errs.New(errs.SessionClosed, "", "session is closed")
	default:
	}

	if _, ok := ctx.Deadline(); !ok && e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	j := &job{fn: fn, done: make(chan jobResult, 1)}
	select {
	case e.requests <- j:
	case <-ctx.Done():
		return nil, timeout(ctx, "queue full")
	case <-e.quit:
		return nil, errs.New(errs.SessionClosed, "", "session is closed")
	}

	select {
	case r := <-j.done:
		return r.value, r.err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobPending, jobAbandoned) {
			log.Warningf("abandoned queued job: %v", ctx.Err())
			return nil, timeout(ctx, "job abandoned before it started")
		}
		log.Warningf("job still running after %v; its result will be discarded", ctx.Err())
		return nil, timeout(ctx, "job still running; result discarded")
	case <-e.stopped:
		select {
		case r := <-j.done:
			return r.value, r.err
		default:
		}
		return nil, errs.New(errs.SessionClosed, "", "session closed before the job ran")
	}
}

func timeout(ctx context.Context, msg string) error {
	return &errs.Error{Kind: errs.Timeout, Msg: msg, Err: ctx.Err()}
}

// Stop shuts down the worker goroutine and waits for an in-flight job to
// finish. Queued jobs are never run.
func (e *executor) Stop() {
	e.stopOnce.Do(func() { close(e.quit) })
	<-e.stopped
}
