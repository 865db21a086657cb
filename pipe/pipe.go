// Package pipe wires readables into writables and child processes.
//
// Every function returns the downstream end so calls compose left to right:
// the result of one pipe is the source of the next.
package pipe

import (
	"errors"
	"iter"
	"slices"

	"github.com/rambollwong/rainbowflow/core/process"
	"github.com/rambollwong/rainbowflow/core/stream"
	"github.com/rambollwong/rainbowflow/streams"
)

// Streams forwards every item of src to dst until src ends or fails, or dst
// is torn down. src is paused while dst reports backpressure and resumed
// when dst drains. When src ends, dst is ended unless WithEnd(false) is set.
// dst is returned with its static type so the call can be chained.
func Streams[T any, D stream.Writable[T]](src stream.Readable[T], dst D, opt ...Option) (D, error) {
	o := &options{end: true}
	if err := o.apply(opt...); err != nil {
		return dst, err
	}
	r := &relation[T]{src: src, dst: dst, opts: o}
	if err := src.OnData(r.forward); err != nil {
		if errors.Is(err, stream.ErrAlreadyAttached) {
			return dst, ErrAlreadyPiped
		}
		return dst, err
	}
	r.cancels = []func(){
		dst.OnDrain(r.drain),
		src.OnEnd(r.end),
		src.OnError(r.fail),
		src.OnClose(r.detach),
		dst.OnClose(r.dstGone),
	}
	return dst, nil
}

// relation is one active source to sink registration.
type relation[T any] struct {
	src  stream.Readable[T]
	dst  stream.Writable[T]
	opts *options

	paused   bool
	detached bool
	cancels  []func()
}

func (r *relation[T]) forward(item T) {
	if r.detached {
		return
	}
	ok, err := r.dst.Write(item)
	if err != nil {
		r.dstGone()
		return
	}
	if !ok {
		r.paused = true
		r.src.Pause()
	}
}

func (r *relation[T]) drain() {
	if r.detached || !r.paused {
		return
	}
	r.paused = false
	r.src.Resume()
}

func (r *relation[T]) end() {
	r.detach()
	if r.opts.end {
		_ = r.dst.End()
	}
}

func (r *relation[T]) fail(err error) {
	r.detach()
	if r.opts.propagateError {
		r.dst.Destroy(err)
	}
}

// dstGone stops src, which keeps its buffered items for a later consumer.
func (r *relation[T]) dstGone() {
	if r.detached {
		return
	}
	r.src.Pause()
	r.detach()
}

func (r *relation[T]) detach() {
	if r.detached {
		return
	}
	r.detached = true
	for _, cancel := range r.cancels {
		cancel()
	}
	r.src.Detach()
}

// Chain pipes src through every stage in order and returns the readable
// side of the last stage.
func Chain[T any](src stream.Readable[T], stages ...stream.Duplex[T, T]) (stream.Readable[T], error) {
	cur := src
	for _, stage := range stages {
		if _, err := Streams[T, stream.Writable[T]](cur, stage); err != nil {
			return nil, err
		}
		cur = stage
	}
	return cur, nil
}

// IntoProcess pipes src into the stdin of p and returns the stdout of p,
// so the process acts as a transform. ErrNoStdin is returned right away if
// p has no stdin. If p has no stdout, an ended empty readable is returned.
func IntoProcess(src stream.Readable[[]byte], p process.ChildProcess, opt ...Option) (stream.Readable[[]byte], error) {
	stdin := p.Stdin()
	if stdin == nil {
		return nil, ErrNoStdin
	}
	if _, err := Streams(src, stdin, opt...); err != nil {
		return nil, err
	}
	return stdoutOf(p), nil
}

// SeqIntoProcess adapts a byte sequence into a readable and pipes it into p.
func SeqIntoProcess(seq iter.Seq[byte], p process.ChildProcess, opt ...Option) (stream.Readable[[]byte], error) {
	if p.Stdin() == nil {
		return nil, ErrNoStdin
	}
	src, err := streams.FromBytes(p.Loop(), seq, streams.DefaultChunkSize)
	if err != nil {
		return nil, err
	}
	return IntoProcess(src, p, opt...)
}

// TextIntoProcess pipes the bytes of text into p.
func TextIntoProcess[S ~string | ~[]byte](text S, p process.ChildProcess, opt ...Option) (stream.Readable[[]byte], error) {
	data := []byte(string(text))
	return SeqIntoProcess(slices.Values(data), p, opt...)
}

// FromProcess pipes the stdout of p into dst and returns dst. If p has no
// stdout, dst is ended right away.
func FromProcess[D stream.Writable[[]byte]](p process.ChildProcess, dst D, opt ...Option) (D, error) {
	out := p.Stdout()
	if out == nil {
		_ = dst.End()
		return dst, nil
	}
	return Streams(out, dst, opt...)
}

func stdoutOf(p process.ChildProcess) stream.Readable[[]byte] {
	if out := p.Stdout(); out != nil {
		return out
	}
	return streams.Empty[[]byte](p.Loop())
}
