package streams

import (
	"github.com/rambollwong/rainbowflow/core/event"
	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/core/stream"
)

var _ stream.Duplex[int, string] = (*Duplex[int, string])(nil)

// Duplex joins a Source and a Sink into one stream. The two halves keep their
// own state machines; errors and teardown are shared.
//
// Unless half-open is allowed, the writable side is ended as soon as the
// readable side ended.
type Duplex[R, W any] struct {
	*Source[R]
	*Sink[W]

	loop          *loop.Loop
	allowHalfOpen bool
	readClosed    bool
	writeClosed   bool

	errH   event.Once[error]
	closeH event.Once[struct{}]
}

// NewDuplex creates a Duplex over the given halves.
func NewDuplex[R, W any](l *loop.Loop, src *Source[R], sink *Sink[W], opt ...Option) (*Duplex[R, W], error) {
	cfg, err := newConfig(opt...)
	if err != nil {
		return nil, err
	}
	d := &Duplex[R, W]{
		Source:        src,
		Sink:          sink,
		loop:          l,
		allowHalfOpen: cfg.allowHalfOpen,
	}
	d.errH.Post = l.Post
	d.closeH.Post = l.Post

	src.OnEnd(func() {
		if !d.allowHalfOpen {
			_ = d.Sink.End()
		}
	})
	src.OnError(d.fail)
	sink.OnError(d.fail)
	src.OnClose(func() {
		d.readClosed = true
		d.maybeClose()
	})
	sink.OnClose(func() {
		d.writeClosed = true
		d.maybeClose()
	})
	return d, nil
}

// Loop returns the loop the duplex runs on.
func (d *Duplex[R, W]) Loop() *loop.Loop {
	return d.loop
}

// AllowHalfOpen reports whether the writable side outlives the readable side.
func (d *Duplex[R, W]) AllowHalfOpen() bool {
	return d.allowHalfOpen
}

// OnError registers fn to be called once if either half fails.
func (d *Duplex[R, W]) OnError(fn func(err error)) func() {
	return d.errH.Add(fn)
}

// OnClose registers fn to be called once both halves were torn down.
func (d *Duplex[R, W]) OnClose(fn func()) func() {
	return d.closeH.Add(event.Void(fn))
}

// Destroy tears down both halves.
func (d *Duplex[R, W]) Destroy(err error) {
	if err != nil {
		d.fail(err)
		return
	}
	d.Source.Destroy(nil)
	d.Sink.Destroy(nil)
}

// ReadClosed reports whether the readable half was torn down.
func (d *Duplex[R, W]) ReadClosed() bool {
	return d.readClosed
}

// WriteClosed reports whether the writable half was torn down.
func (d *Duplex[R, W]) WriteClosed() bool {
	return d.writeClosed
}

func (d *Duplex[R, W]) fail(err error) {
	if !d.errH.Fire(err) {
		return
	}
	d.Source.Destroy(err)
	d.Sink.Destroy(err)
}

func (d *Duplex[R, W]) maybeClose() {
	if d.readClosed && d.writeClosed {
		d.closeH.Fire(struct{}{})
	}
}
