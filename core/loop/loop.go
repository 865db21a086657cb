// Package loop provides the single-threaded reactor every stream, socket and
// process callback runs on. Blocking work happens on helper goroutines which
// hand their results back with Post.
package loop

import (
	"context"
	"errors"
	"sync"

	"github.com/rambollwong/rainbowflow/core/safe"
	"github.com/rambollwong/rainbowflow/log"
	"github.com/rambollwong/rainbowlog"
)

const loggerLabel = "LOOP"

var (
	// ErrLoopRunning will be returned if Run is called on a loop that is already running.
	ErrLoopRunning = errors.New("loop is already running")
)

// Loop is a FIFO task queue drained by exactly one goroutine at a time.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	refs    int
	running bool
	stopped bool
	wakeC   chan struct{}

	logger *rainbowlog.Logger
}

// New creates a new Loop instance.
func New(opt ...Option) (*Loop, error) {
	l := &Loop{
		mu:     sync.Mutex{},
		queue:  make([]func(), 0, 64),
		wakeC:  make(chan struct{}, 1),
		logger: nil,
	}
	if err := l.apply(opt...); err != nil {
		return nil, err
	}
	if l.logger == nil {
		l.logger = log.Sub(loggerLabel)
	}
	return l, nil
}

// Post schedules fn to run on the loop goroutine. It is safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.wake()
}

// Ref marks one piece of outstanding asynchronous work. Run does not return
// while the reference count is above zero.
func (l *Loop) Ref() {
	l.mu.Lock()
	l.refs++
	l.mu.Unlock()
}

// Unref releases a reference taken by Ref.
func (l *Loop) Unref() {
	l.mu.Lock()
	if l.refs > 0 {
		l.refs--
	}
	l.mu.Unlock()
	l.wake()
}

// Refs returns the current reference count.
func (l *Loop) Refs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs
}

// Stop asks a running Run to return once the current task has finished.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.wake()
}

// Run dispatches tasks until there is nothing queued and nothing referenced,
// until Stop is called, or until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrLoopRunning
	}
	l.running = true
	l.stopped = false
	l.mu.Unlock()
	l.logger.Debug().Msg("loop started").Done()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		l.logger.Debug().Msg("loop stopped").Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		l.mu.Lock()
		if l.stopped {
			l.mu.Unlock()
			return nil
		}
		if len(l.queue) > 0 {
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			fn()
			continue
		}
		if l.refs == 0 {
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wakeC:
		}
	}
}

// Logger returns the logger instance.
func (l *Loop) Logger() *rainbowlog.Logger {
	return l.logger
}

func (l *Loop) wake() {
	select {
	case l.wakeC <- struct{}{}:
	default:
	}
}

// Submit runs the blocking work on a helper goroutine and posts done with its
// result back onto the loop. The loop is kept alive until done has been queued.
func Submit[R any](l *Loop, work func() R, done func(R)) {
	l.Ref()
	safe.ReportGo(l.logger, func() {
		r := work()
		l.Post(func() {
			l.Unref()
			if done != nil {
				done(r)
			}
		})
	}, func(error) {
		l.Post(l.Unref)
	})
}
