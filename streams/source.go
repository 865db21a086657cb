package streams

import (
	"github.com/rambollwong/rainbowflow/core/event"
	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/core/stream"
)

var _ stream.Readable[int] = (*Source[int])(nil)

// Source is a buffered Readable. A producer feeds it with Push and PushEnd,
// a consumer drains it with OnData or Read.
//
// The buffer is bounded by the high-water mark only in cooperation with the
// producer: Push reports false once the mark is reached, and the demand
// hook is called when the consumer wants more.
type Source[T any] struct {
	loop  *loop.Loop
	hwm   int
	sizer func(T) int

	demand func()

	buf  []T
	size int

	consumer  func(T)
	paused    bool
	eof       bool
	done      bool
	scheduled bool
	state     stream.ReadState

	endH   event.Once[struct{}]
	errH   event.Once[error]
	closeH event.Once[struct{}]
}

// NewSource creates an empty Source bound to l.
func NewSource[T any](l *loop.Loop, opt ...Option) (*Source[T], error) {
	cfg, err := newConfig(opt...)
	if err != nil {
		return nil, err
	}
	sizer, hwm, err := sizerOf[T](cfg)
	if err != nil {
		return nil, err
	}
	s := &Source[T]{
		loop:   l,
		hwm:    hwm,
		sizer:  sizer,
		buf:    make([]T, 0, 8),
		paused: cfg.paused,
		state:  stream.ReadIdle,
	}
	if s.paused {
		s.state = stream.ReadPaused
	}
	s.endH.Post = l.Post
	s.errH.Post = l.Post
	s.closeH.Post = l.Post
	return s, nil
}

// Loop returns the loop the source delivers on.
func (s *Source[T]) Loop() *loop.Loop {
	return s.loop
}

// HighWaterMark returns the configured high-water mark.
func (s *Source[T]) HighWaterMark() int {
	return s.hwm
}

// Buffered returns the size of the buffered, not yet delivered items.
func (s *Source[T]) Buffered() int {
	return s.size
}

// SetDemand sets the hook called when the source wants the producer to push more.
// The hook may be called while the producer is already producing and must be idempotent.
func (s *Source[T]) SetDemand(fn func()) {
	s.demand = fn
}

// Push appends item to the buffer. It returns false once the buffered size
// reached the high-water mark or the source does not accept items anymore.
func (s *Source[T]) Push(item T) bool {
	if s.done || s.eof {
		return false
	}
	s.buf = append(s.buf, item)
	s.size += s.sizer(item)
	s.schedule()
	return s.size < s.hwm
}

// PushEnd marks the end of the items. OnEnd fires once the buffer was drained.
func (s *Source[T]) PushEnd() {
	if s.done || s.eof {
		return
	}
	s.eof = true
	s.schedule()
}

// Ended reports whether the producer pushed the end of the items.
func (s *Source[T]) Ended() bool {
	return s.eof
}

// OnData registers the consumer and starts flowing unless the source is paused.
func (s *Source[T]) OnData(consumer func(item T)) error {
	if consumer == nil {
		return nil
	}
	if s.consumer != nil {
		return stream.ErrAlreadyAttached
	}
	s.consumer = consumer
	if s.done {
		return nil
	}
	if !s.paused {
		s.state = stream.ReadFlowing
		s.schedule()
		s.requestMore()
	}
	return nil
}

// Detach removes the consumer.
func (s *Source[T]) Detach() {
	s.consumer = nil
	if !s.done && !s.paused {
		s.state = stream.ReadIdle
	}
}

// Read pulls the next buffered item.
func (s *Source[T]) Read() (T, bool) {
	var zero T
	if s.done {
		return zero, false
	}
	if len(s.buf) == 0 {
		s.pull()
		if s.eof {
			s.schedule()
		}
		return zero, false
	}
	item := s.shift()
	s.pull()
	if s.eof && len(s.buf) == 0 {
		s.schedule()
	}
	return item, true
}

// Pause stops pushing to the consumer.
func (s *Source[T]) Pause() {
	s.paused = true
	if !s.done {
		s.state = stream.ReadPaused
	}
}

// Resume restarts pushing to the consumer and flushes the buffer.
func (s *Source[T]) Resume() {
	s.paused = false
	if s.done {
		return
	}
	if s.consumer != nil {
		s.state = stream.ReadFlowing
	} else {
		s.state = stream.ReadIdle
	}
	s.schedule()
	s.requestMore()
}

// IsPaused reports whether Pause was called without a following Resume.
func (s *Source[T]) IsPaused() bool {
	return s.paused
}

// OnEnd registers fn to be called once all items have been delivered.
func (s *Source[T]) OnEnd(fn func()) func() {
	return s.endH.Add(event.Void(fn))
}

// OnError registers fn to be called if the source fails.
func (s *Source[T]) OnError(fn func(err error)) func() {
	return s.errH.Add(fn)
}

// OnClose registers fn to be called once the source was torn down.
func (s *Source[T]) OnClose(fn func()) func() {
	return s.closeH.Add(event.Void(fn))
}

// ReadState returns the current state.
func (s *Source[T]) ReadState() stream.ReadState {
	return s.state
}

// Destroy tears the source down. Buffered items are discarded.
func (s *Source[T]) Destroy(err error) {
	if s.done {
		return
	}
	s.done = true
	s.buf = nil
	s.size = 0
	s.consumer = nil
	if err != nil {
		s.state = stream.ReadErrored
		s.errH.Fire(err)
	} else {
		s.state = stream.ReadEnded
	}
	s.closeH.Fire(struct{}{})
}

func (s *Source[T]) shift() T {
	var zero T
	item := s.buf[0]
	s.buf[0] = zero
	s.buf = s.buf[1:]
	s.size -= s.sizer(item)
	return item
}

func (s *Source[T]) schedule() {
	if s.scheduled || s.done {
		return
	}
	s.scheduled = true
	s.loop.Post(s.flush)
}

func (s *Source[T]) flush() {
	s.scheduled = false
	for !s.done && s.state == stream.ReadFlowing && len(s.buf) > 0 && s.consumer != nil {
		s.consumer(s.shift())
	}
	if s.done {
		return
	}
	if s.eof && len(s.buf) == 0 {
		s.finish()
		return
	}
	s.requestMore()
}

// finish fires end and close once the producer ended and the buffer is empty.
func (s *Source[T]) finish() {
	s.done = true
	s.consumer = nil
	s.state = stream.ReadEnded
	s.endH.Fire(struct{}{})
	s.closeH.Fire(struct{}{})
}

// requestMore asks the producer for more unless the source is paused;
// a paused source only pulls through Read.
func (s *Source[T]) requestMore() {
	if s.paused {
		return
	}
	s.pull()
}

func (s *Source[T]) pull() {
	if s.done || s.eof || s.demand == nil || s.size >= s.hwm {
		return
	}
	s.demand()
}

// Empty returns a Source that is already ended.
func Empty[T any](l *loop.Loop) *Source[T] {
	s, _ := NewSource[T](l)
	s.PushEnd()
	return s
}
