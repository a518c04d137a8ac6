// Package bridge is the host-facing façade over a script runtime.
//
// A Session owns one script runtime, the executor goroutine that runs all
// script-side code, and the registry holding the instances it created.
// Session methods are safe for concurrent use. Script work is serialized
// through the executor; handle bookkeeping and value conversion are not.
//
// Timeouts bound how long a caller waits, not how long script code runs. A
// call whose deadline expires before its job starts is dropped; a call whose
// job is already running returns Timeout while the job runs to completion
// and its result is discarded. Script code is never preempted.
package bridge

import (
	"sync/atomic"
	"time"

	"github.com/chazu/scriptbridge/registry"
	"github.com/chazu/scriptbridge/script"
	"github.com/chazu/scriptbridge/value"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("scriptbridge.bridge")

// Defaults used when no option overrides them.
const (
	DefaultCallTimeout = 30 * time.Second
	DefaultQueueSize   = 64
)

// Session is an open bridge to a script runtime.
type Session struct {
	rt      *script.Runtime
	exec    *executor
	handles *registry.Store

	stopSweeper func()
	closed      atomic.Bool
}

type options struct {
	callTimeout   time.Duration
	queueSize     int
	sweepInterval time.Duration
	handleTTL     time.Duration
	onRelease     func(h value.Handle, obj any)
}

// Option configures a Session.
type Option func(*options)

// WithCallTimeout sets the wait bound for calls whose context carries no
// deadline. Zero disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

// WithQueueSize sets how many jobs may wait for the executor.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithHandleTTL evicts handles that have been idle longer than ttl,
// checking every interval.
func WithHandleTTL(interval, ttl time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = interval
		o.handleTTL = ttl
	}
}

// WithReleaseHook runs fn for every instance leaving the session's registry.
func WithReleaseHook(fn func(h value.Handle, obj any)) Option {
	return func(o *options) { o.onRelease = fn }
}

// Open starts a session over rt.
func Open(rt *script.Runtime, opts ...Option) *Session {
	o := options{callTimeout: DefaultCallTimeout, queueSize: DefaultQueueSize}
	for _, opt := range opts {
		opt(&o)
	}

	var ropts []registry.Option
	if o.onRelease != nil {
		ropts = append(ropts, registry.WithReleaseHook(o.onRelease))
	}
	s := &Session{
		rt:      rt,
		exec:    newExecutor(rt, o.queueSize, o.callTimeout),
		handles: registry.New(ropts...),
	}
	if o.sweepInterval > 0 && o.handleTTL > 0 {
		s.stopSweeper = s.handles.StartSweeper(o.sweepInterval, o.handleTTL)
	}
	log.Infof("session opened (modules: %v, call timeout %s)", rt.Modules(), o.callTimeout)
	return s
}

// Registry exposes the session's handle store for inspection.
func (s *Session) Registry() *registry.Store { return s.handles }

// Close stops the executor, waiting for a running job, and releases every
// live handle. Calls made after Close fail with SessionClosed. Close is
// idempotent.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.exec.Stop()
	n := s.handles.Drain()
	log.Infof("session closed, released %d handles", n)
	return nil
}
