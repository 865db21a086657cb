package streams

import (
	"bytes"

	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/core/stream"
)

// Collect consumes r and calls cb once with every item it produced, and with
// the error if r failed.
func Collect[T any](r stream.Readable[T], cb func(items []T, err error)) error {
	var items []T
	if err := r.OnData(func(item T) {
		items = append(items, item)
	}); err != nil {
		return err
	}
	r.OnEnd(func() {
		cb(items, nil)
	})
	r.OnError(func(err error) {
		cb(items, err)
	})
	return nil
}

// Concat consumes a byte stream and calls cb once with the joined bytes.
func Concat(r stream.Readable[[]byte], cb func(data []byte, err error)) error {
	return Collect(r, func(chunks [][]byte, err error) {
		cb(bytes.Join(chunks, nil), err)
	})
}

// Capture is a Sink keeping everything written to it in memory.
type Capture[T any] struct {
	*Sink[T]

	items   []T
	batches int
}

// NewCapture creates an empty Capture.
func NewCapture[T any](l *loop.Loop, opt ...Option) (*Capture[T], error) {
	c := &Capture[T]{}
	sink, err := NewSink[T](l, func(items []T, done func(error)) {
		c.items = append(c.items, items...)
		c.batches++
		done(nil)
	}, nil, opt...)
	if err != nil {
		return nil, err
	}
	c.Sink = sink
	return c, nil
}

// Items returns the captured items in write order.
func (c *Capture[T]) Items() []T {
	return c.items
}

// Batches returns how many write batches the capture received.
func (c *Capture[T]) Batches() int {
	return c.batches
}
