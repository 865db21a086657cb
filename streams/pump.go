package streams

import (
	"io"
	"net"
	"sync"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"
	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/core/safe"
	"github.com/rambollwong/rainbowflow/util"
)

// ReadPump feeds a Source from an io.Reader. Reads happen on a helper
// goroutine, one at a time, and only when the Source asked for more, so a
// full buffer stops reading from the underlying descriptor.
type ReadPump struct {
	loop *loop.Loop
	r    io.Reader
	src  *Source[[]byte]
	size int

	// loop goroutine only
	started bool
	pending bool
	stopped bool
	refed   bool

	bytes int64

	gateC     chan struct{}
	closeC    chan struct{}
	doneC     chan struct{}
	closeOnce sync.Once
}

// AttachReader binds r as the producer of src. Nothing is read until Start
// is called or src asks for data.
func AttachReader(src *Source[[]byte], r io.Reader, readBufferSize int) *ReadPump {
	if readBufferSize <= 0 {
		readBufferSize = DefaultReadBufferSize
	}
	p := &ReadPump{
		loop:   src.Loop(),
		r:      r,
		src:    src,
		size:   readBufferSize,
		gateC:  make(chan struct{}, 1),
		closeC: make(chan struct{}),
		doneC:  make(chan struct{}),
	}
	src.SetDemand(p.grant)
	src.OnClose(p.Stop)
	safe.LoggerGo(p.loop.Logger(), p.run)
	return p
}

// NewReaderSource creates a Source fed by r that starts reading right away.
func NewReaderSource(l *loop.Loop, r io.Reader, opt ...Option) (*Source[[]byte], *ReadPump, error) {
	cfg, err := newConfig(opt...)
	if err != nil {
		return nil, nil, err
	}
	src, err := NewSource[[]byte](l, opt...)
	if err != nil {
		return nil, nil, err
	}
	p := AttachReader(src, r, cfg.readBufferSize)
	if !cfg.paused {
		p.Start()
	}
	return src, p, nil
}

// Start issues the first read even though nobody consumes the source yet.
func (p *ReadPump) Start() {
	p.started = true
	p.grant()
}

// Started reports whether the pump issued its first read.
func (p *ReadPump) Started() bool {
	return p.started
}

// Bytes returns the number of bytes read so far.
func (p *ReadPump) Bytes() int64 {
	return p.bytes
}

// Done is closed when the reading goroutine exited.
func (p *ReadPump) Done() <-chan struct{} {
	return p.doneC
}

// Stop stops issuing reads. A read that is in progress completes, its
// result is dropped.
func (p *ReadPump) Stop() {
	p.stopped = true
	p.unref()
	p.closeOnce.Do(func() {
		close(p.closeC)
	})
}

func (p *ReadPump) grant() {
	if p.stopped || p.pending {
		return
	}
	p.started = true
	p.pending = true
	if !p.refed {
		p.refed = true
		p.loop.Ref()
	}
	select {
	case p.gateC <- struct{}{}:
	default:
	}
}

func (p *ReadPump) unref() {
	if p.refed {
		p.refed = false
		p.loop.Unref()
	}
}

func (p *ReadPump) run() {
	defer close(p.doneC)
	buf := make([]byte, p.size)
	for {
		select {
		case <-p.closeC:
			return
		case <-p.gateC:
		}
		n, err := p.r.Read(buf)
		var chunk []byte
		if n > 0 {
			chunk = make([]byte, n)
			copy(chunk, buf[:n])
		}
		p.loop.Post(func() {
			p.deliver(chunk, err)
		})
		if err != nil {
			return
		}
	}
}

func (p *ReadPump) deliver(chunk []byte, err error) {
	p.pending = false
	if p.stopped {
		return
	}
	more := true
	if len(chunk) > 0 {
		p.bytes += int64(len(chunk))
		more = p.src.Push(chunk)
	}
	if err != nil {
		p.stopped = true
		p.unref()
		if err == io.EOF || util.IsConnClosedError(err) {
			p.src.PushEnd()
		} else {
			p.src.Destroy(pkgerrors.Wrap(err, "read"))
		}
		return
	}
	if more {
		p.grant()
		return
	}
	// buffer is full, keep the loop alive until the consumer asks again
	p.unref()
}

// WritePump serializes writes to an io.Writer on a helper goroutine.
// Batches of several chunks go out as net.Buffers, which turns into a
// single writev on connections that support it.
type WritePump struct {
	loop *loop.Loop
	w    io.Writer

	bytes atomic.Int64

	jobC      chan writeJob
	closeC    chan struct{}
	closeOnce sync.Once
}

type writeJob struct {
	chunks [][]byte
	final  bool
	done   func(error)
}

// NewWritePump starts a WritePump for w.
func NewWritePump(l *loop.Loop, w io.Writer) *WritePump {
	p := &WritePump{
		loop:   l,
		w:      w,
		jobC:   make(chan writeJob, 1),
		closeC: make(chan struct{}),
	}
	safe.LoggerGo(l.Logger(), p.run)
	return p
}

// NewWriterSink creates a Sink writing to w. Ending the sink closes the write
// half of w if it has one, or w itself if it is an io.Closer.
func NewWriterSink(l *loop.Loop, w io.Writer, opt ...Option) (*Sink[[]byte], *WritePump, error) {
	p := NewWritePump(l, w)
	sink, err := NewSink[[]byte](l, p.Write, p.Final, opt...)
	if err != nil {
		p.Stop()
		return nil, nil, err
	}
	sink.OnClose(p.Stop)
	return sink, p, nil
}

// Write is a WriteFunc.
func (p *WritePump) Write(chunks [][]byte, done func(error)) {
	p.submit(writeJob{chunks: chunks, done: done})
}

// Final is a FinalFunc closing the write direction of the writer.
func (p *WritePump) Final(done func(error)) {
	p.submit(writeJob{final: true, done: done})
}

// Bytes returns the number of bytes written so far.
func (p *WritePump) Bytes() int64 {
	return p.bytes.Load()
}

// Stop ends the writing goroutine once the current job finished.
func (p *WritePump) Stop() {
	p.closeOnce.Do(func() {
		close(p.closeC)
	})
}

func (p *WritePump) submit(job writeJob) {
	select {
	case <-p.closeC:
		done := job.done
		p.loop.Post(func() { done(io.ErrClosedPipe) })
		return
	default:
	}
	p.loop.Ref()
	select {
	case p.jobC <- job:
	case <-p.closeC:
		p.loop.Unref()
		done := job.done
		p.loop.Post(func() { done(io.ErrClosedPipe) })
	}
}

func (p *WritePump) run() {
	for {
		select {
		case <-p.closeC:
			p.drain()
			return
		case job := <-p.jobC:
			err := p.do(job)
			if err != nil {
				err = pkgerrors.Wrap(err, "write")
			}
			done := job.done
			p.loop.Post(func() {
				p.loop.Unref()
				done(err)
			})
		}
	}
}

// drain fails a job that was handed over right before Stop.
func (p *WritePump) drain() {
	for {
		select {
		case job := <-p.jobC:
			done := job.done
			p.loop.Post(func() {
				p.loop.Unref()
				done(io.ErrClosedPipe)
			})
		default:
			return
		}
	}
}

func (p *WritePump) do(job writeJob) error {
	if job.final {
		switch w := p.w.(type) {
		case interface{ CloseWrite() error }:
			return w.CloseWrite()
		case io.Closer:
			return w.Close()
		}
		return nil
	}
	if len(job.chunks) == 1 {
		n, err := p.w.Write(job.chunks[0])
		p.bytes.Add(int64(n))
		return err
	}
	bufs := net.Buffers(job.chunks)
	n, err := bufs.WriteTo(p.w)
	p.bytes.Add(n)
	return err
}
