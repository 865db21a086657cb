package streams

import (
	"github.com/rambollwong/rainbowflow/core/event"
	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/core/stream"
)

var _ stream.Writable[int] = (*Sink[int])(nil)

// WriteFunc writes a batch of items and calls done exactly once, on the
// loop goroutine, when the batch was consumed or failed.
type WriteFunc[T any] func(items []T, done func(err error))

// FinalFunc runs after the last batch was written and before finish fires.
type FinalFunc func(done func(err error))

// Sink is a queued Writable on top of an asynchronous WriteFunc.
// At most one batch is in flight at any time; the queued size counts the
// in-flight batch until it completed.
type Sink[T any] struct {
	loop  *loop.Loop
	hwm   int
	sizer func(T) int

	write WriteFunc[T]
	final FinalFunc

	queue     []T
	size      int
	writing   bool
	scheduled bool
	corked    int
	needDrain bool
	ending    bool
	finishing bool
	done      bool
	state     stream.WriteState

	drainH  event.Hooks[struct{}]
	finishH event.Once[struct{}]
	errH    event.Once[error]
	closeH  event.Once[struct{}]
}

// NewSink creates a Sink writing through write. final may be nil.
func NewSink[T any](l *loop.Loop, write WriteFunc[T], final FinalFunc, opt ...Option) (*Sink[T], error) {
	cfg, err := newConfig(opt...)
	if err != nil {
		return nil, err
	}
	sizer, hwm, err := sizerOf[T](cfg)
	if err != nil {
		return nil, err
	}
	s := &Sink[T]{
		loop:  l,
		hwm:   hwm,
		sizer: sizer,
		write: write,
		final: final,
		queue: make([]T, 0, 8),
		state: stream.WriteOpen,
	}
	s.finishH.Post = l.Post
	s.errH.Post = l.Post
	s.closeH.Post = l.Post
	return s, nil
}

// Loop returns the loop the sink runs on.
func (s *Sink[T]) Loop() *loop.Loop {
	return s.loop
}

// HighWaterMark returns the configured high-water mark.
func (s *Sink[T]) HighWaterMark() int {
	return s.hwm
}

// Queued returns the size of the queued and in-flight items.
func (s *Sink[T]) Queued() int {
	return s.size
}

// Write queues item and reports whether the caller may keep writing.
func (s *Sink[T]) Write(item T) (bool, error) {
	if s.done && !s.ending {
		return false, stream.ErrDestroyed
	}
	if s.ending {
		return false, stream.ErrWriteAfterEnd
	}
	s.queue = append(s.queue, item)
	s.size += s.sizer(item)
	s.schedule()
	if s.size >= s.hwm {
		s.needDrain = true
		return false, nil
	}
	return true, nil
}

// End queues the final items and finishes the sink once everything was written.
// Calling End again without items is a no-op.
func (s *Sink[T]) End(final ...T) error {
	if s.ending || s.done {
		if len(final) > 0 {
			return stream.ErrWriteAfterEnd
		}
		return nil
	}
	for _, item := range final {
		s.queue = append(s.queue, item)
		s.size += s.sizer(item)
	}
	s.ending = true
	s.corked = 0
	s.state = stream.WriteEnding
	s.schedule()
	return nil
}

// Cork holds writes back until the matching Uncork.
func (s *Sink[T]) Cork() {
	if s.done || s.ending {
		return
	}
	s.corked++
	s.state = stream.WriteCorked
}

// Uncork releases one Cork. The last Uncork flushes the queue as one batch.
func (s *Sink[T]) Uncork() {
	if s.corked == 0 {
		return
	}
	s.corked--
	if s.corked == 0 && !s.done && !s.ending {
		s.state = stream.WriteOpen
		s.schedule()
	}
}

// NeedDrain reports whether a drain notification is pending.
func (s *Sink[T]) NeedDrain() bool {
	return s.needDrain
}

// OnDrain registers fn to be called every time a pending drain is released.
func (s *Sink[T]) OnDrain(fn func()) func() {
	return s.drainH.Add(event.Void(fn))
}

// OnFinish registers fn to be called once after End and a full flush.
func (s *Sink[T]) OnFinish(fn func()) func() {
	return s.finishH.Add(event.Void(fn))
}

// OnError registers fn to be called if the sink fails.
func (s *Sink[T]) OnError(fn func(err error)) func() {
	return s.errH.Add(fn)
}

// OnClose registers fn to be called once the sink was torn down.
func (s *Sink[T]) OnClose(fn func()) func() {
	return s.closeH.Add(event.Void(fn))
}

// WriteState returns the current state.
func (s *Sink[T]) WriteState() stream.WriteState {
	return s.state
}

// Destroy tears the sink down. Queued items are discarded.
func (s *Sink[T]) Destroy(err error) {
	if s.done {
		return
	}
	s.done = true
	s.ending = false
	s.queue = nil
	s.size = 0
	s.drainH.Clear()
	if err != nil {
		s.state = stream.WriteErrored
		s.errH.Fire(err)
	} else {
		s.state = stream.WriteEnded
	}
	s.closeH.Fire(struct{}{})
}

func (s *Sink[T]) schedule() {
	if s.scheduled || s.done {
		return
	}
	s.scheduled = true
	s.loop.Post(s.flush)
}

func (s *Sink[T]) flush() {
	s.scheduled = false
	if s.done || s.writing || s.corked > 0 {
		return
	}
	if len(s.queue) == 0 {
		s.maybeFinish()
		return
	}
	batch := make([]T, len(s.queue))
	copy(batch, s.queue)
	s.writing = true

	called := false
	s.write(batch, func(err error) {
		if called {
			return
		}
		called = true
		s.written(len(batch), err)
	})
}

func (s *Sink[T]) written(n int, err error) {
	if s.done {
		return
	}
	s.writing = false
	if err != nil {
		s.Destroy(err)
		return
	}
	var zero T
	for i := 0; i < n; i++ {
		s.size -= s.sizer(s.queue[i])
		s.queue[i] = zero
	}
	s.queue = s.queue[n:]

	if s.needDrain && s.size < s.hwm && !s.ending {
		s.needDrain = false
		s.drainH.Fire(struct{}{})
	}
	if s.done {
		return
	}
	if len(s.queue) > 0 {
		s.schedule()
		return
	}
	s.maybeFinish()
}

func (s *Sink[T]) maybeFinish() {
	if !s.ending || s.writing || s.finishing || s.done || len(s.queue) > 0 {
		return
	}
	s.finishing = true
	if s.final == nil {
		s.finish()
		return
	}
	s.final(func(err error) {
		if s.done {
			return
		}
		if err != nil {
			s.Destroy(err)
			return
		}
		s.finish()
	})
}

func (s *Sink[T]) finish() {
	s.done = true
	s.needDrain = false
	s.state = stream.WriteEnded
	s.drainH.Clear()
	s.finishH.Fire(struct{}{})
	s.closeH.Fire(struct{}{})
}
