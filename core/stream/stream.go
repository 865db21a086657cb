package stream

import "github.com/rambollwong/rainbowflow/core/loop"

// Readable produces a sequence of items of type T.
// All methods must be called on the goroutine running Loop().
type Readable[T any] interface {
	// Loop returns the loop the stream delivers its callbacks on.
	Loop() *loop.Loop

	// OnData registers the single consumer of the stream and switches it to
	// flowing mode unless it was paused explicitly.
	// ErrAlreadyAttached is returned if a consumer is registered already.
	OnData(consumer func(item T)) error

	// Detach removes the consumer. Items produced afterwards stay buffered.
	Detach()

	// Read pulls one buffered item. It reports false if nothing is buffered.
	Read() (T, bool)

	// Pause stops pushing items to the consumer. Buffered items are kept.
	Pause()

	// Resume restarts pushing items to the consumer.
	Resume()

	// IsPaused reports whether the stream was paused explicitly.
	IsPaused() bool

	// OnEnd registers a callback fired once all items have been delivered.
	OnEnd(fn func()) (cancel func())

	// OnError registers a callback fired when the stream fails.
	OnError(fn func(err error)) (cancel func())

	// OnClose registers a callback fired once the stream was torn down,
	// after end, after error, or after Destroy.
	OnClose(fn func()) (cancel func())

	// ReadState returns the state of the readable side.
	ReadState() ReadState

	// Destroy tears the stream down discarding buffered items.
	// A non nil err is reported through OnError.
	Destroy(err error)
}

// Writable accepts a sequence of items of type T.
// All methods must be called on the goroutine running Loop().
type Writable[T any] interface {
	// Loop returns the loop the stream delivers its callbacks on.
	Loop() *loop.Loop

	// Write queues item. It returns false once the queue reached the
	// high-water mark; the caller should stop writing until OnDrain fires.
	// ErrWriteAfterEnd is returned once End was called.
	Write(item T) (bool, error)

	// End queues the optional final items and finishes the stream once
	// everything was flushed.
	End(final ...T) error

	// Cork buffers writes until the matching Uncork.
	Cork()

	// Uncork flushes everything written since the outermost Cork as one batch.
	Uncork()

	// NeedDrain reports whether a Write returned false and OnDrain has not fired yet.
	NeedDrain() bool

	// OnDrain registers a callback fired when the queue falls below the high-water mark.
	OnDrain(fn func()) (cancel func())

	// OnFinish registers a callback fired once after End and a full flush.
	OnFinish(fn func()) (cancel func())

	// OnError registers a callback fired when the stream fails.
	OnError(fn func(err error)) (cancel func())

	// OnClose registers a callback fired once the stream was torn down.
	OnClose(fn func()) (cancel func())

	// WriteState returns the state of the writable side.
	WriteState() WriteState

	// Destroy tears the stream down discarding queued items.
	Destroy(err error)
}

// Duplex is both a Readable of R and a Writable of W.
type Duplex[R, W any] interface {
	Readable[R]
	Writable[W]
}
