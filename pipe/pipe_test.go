package pipe

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/rambollwong/rainbowflow/childprocess"
	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/core/stream"
	"github.com/rambollwong/rainbowflow/streams"
)

func newTestLoop(t *testing.T) *loop.Loop {
	l, err := loop.New()
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func runTestLoop(t *testing.T, l *loop.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatal(err)
	}
}

func equalInts(a, b []int) bool {
	return deep.Equal(a, b) == nil
}

// slowSink completes every batch two loop turns later.
func slowSink(t *testing.T, l *loop.Loop, hwm int) (*streams.Sink[int], *[]int) {
	var written []int
	sink, err := streams.NewSink[int](l, func(items []int, done func(error)) {
		l.Post(func() {
			l.Post(func() {
				written = append(written, items...)
				done(nil)
			})
		})
	}, nil, streams.WithHighWaterMark(hwm))
	if err != nil {
		t.Fatal(err)
	}
	return sink, &written
}

func TestStreamsOrdering(t *testing.T) {
	l := newTestLoop(t)
	src, err := streams.FromSlice(l, []int{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	c, err := streams.NewCapture[int](l)
	if err != nil {
		t.Fatal(err)
	}
	finished := false
	dst, err := Streams[int](src, c)
	if err != nil {
		t.Fatal(err)
	}
	dst.OnFinish(func() { finished = true })
	runTestLoop(t, l)
	if !equalInts(c.Items(), []int{1, 2, 3}) {
		t.Fatalf("unexpected items %v", c.Items())
	}
	if !finished {
		t.Fatal("ending the source must end the sink")
	}
}

func TestStreamsOrderingWithPauseResume(t *testing.T) {
	l := newTestLoop(t)
	src, err := streams.FromSlice(l, []int{1, 2, 3}, streams.WithHighWaterMark(1))
	if err != nil {
		t.Fatal(err)
	}
	c, err := streams.NewCapture[int](l, streams.WithHighWaterMark(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = Streams[int](src, c); err != nil {
		t.Fatal(err)
	}
	src.Pause()
	l.Post(func() {
		src.Resume()
		src.Pause()
		l.Post(src.Resume)
	})
	runTestLoop(t, l)
	if !equalInts(c.Items(), []int{1, 2, 3}) {
		t.Fatalf("unexpected items %v", c.Items())
	}
}

func TestStreamsBackpressure(t *testing.T) {
	l := newTestLoop(t)
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	src, err := streams.FromSlice(l, items)
	if err != nil {
		t.Fatal(err)
	}
	sink, written := slowSink(t, l, 4)
	pauses := 0
	// registered ahead of the pipe so it observes the source before the pipe resumes it
	sink.OnDrain(func() {
		if !src.IsPaused() {
			t.Error("source must be paused until the sink drained")
		}
		pauses++
	})
	if _, err = Streams[int](src, sink); err != nil {
		t.Fatal(err)
	}
	runTestLoop(t, l)
	if !equalInts(*written, items) {
		t.Fatalf("unexpected items %v", *written)
	}
	if pauses == 0 {
		t.Fatal("expected the source to be paused at least once")
	}
}

func TestStreamsNoFanOut(t *testing.T) {
	l := newTestLoop(t)
	src, _ := streams.FromSlice(l, []int{1})
	a, _ := streams.NewCapture[int](l)
	b, _ := streams.NewCapture[int](l)
	if _, err := Streams[int](src, a); err != nil {
		t.Fatal(err)
	}
	if _, err := Streams[int](src, b); !errors.Is(err, ErrAlreadyPiped) {
		t.Fatalf("expected ErrAlreadyPiped, got %v", err)
	}
}

func TestStreamsWithoutEnd(t *testing.T) {
	l := newTestLoop(t)
	src, _ := streams.FromSlice(l, []int{1, 2})
	c, _ := streams.NewCapture[int](l)
	if _, err := Streams[int](src, c, WithEnd(false)); err != nil {
		t.Fatal(err)
	}
	runTestLoop(t, l)
	if c.WriteState() != stream.WriteOpen {
		t.Fatalf("sink must stay open, got %s", c.WriteState())
	}
	if !equalInts(c.Items(), []int{1, 2}) {
		t.Fatalf("unexpected items %v", c.Items())
	}
}

func TestStreamsPropagateError(t *testing.T) {
	boom := errors.New("boom")
	for _, propagate := range []bool{false, true} {
		l := newTestLoop(t)
		src, _ := streams.NewSource[int](l)
		c, _ := streams.NewCapture[int](l)
		var sinkErr error
		c.OnError(func(err error) { sinkErr = err })
		if _, err := Streams[int](src, c, WithPropagateError(propagate)); err != nil {
			t.Fatal(err)
		}
		l.Post(func() { src.Destroy(boom) })
		runTestLoop(t, l)
		if propagate != errors.Is(sinkErr, boom) {
			t.Fatalf("propagate=%v, sink error %v", propagate, sinkErr)
		}
	}
}

func TestDestroyedSinkPausesSource(t *testing.T) {
	l := newTestLoop(t)
	src, _ := streams.NewSource[int](l)
	c, _ := streams.NewCapture[int](l)
	if _, err := Streams[int](src, c); err != nil {
		t.Fatal(err)
	}
	l.Post(func() {
		c.Destroy(nil)
		src.Push(1)
		src.Push(2)
	})
	runTestLoop(t, l)
	if !src.IsPaused() || src.ReadState() != stream.ReadPaused {
		t.Fatalf("source must be paused, got %s", src.ReadState())
	}
	if src.Buffered() != 2 {
		t.Fatalf("expected 2 buffered items, got %d", src.Buffered())
	}
	if len(c.Items()) != 0 {
		t.Fatalf("unexpected items %v", c.Items())
	}
}

func TestChain(t *testing.T) {
	l := newTestLoop(t)
	src, _ := streams.FromSlice(l, []int{1, 2, 3})

	// a pass-through stage adding 10 to every item
	stageSrc, _ := streams.NewSource[int](l)
	stageSink, _ := streams.NewSink[int](l, func(items []int, done func(error)) {
		for _, v := range items {
			stageSrc.Push(v + 10)
		}
		done(nil)
	}, func(done func(error)) {
		stageSrc.PushEnd()
		done(nil)
	})
	stage, _ := streams.NewDuplex(l, stageSrc, stageSink, streams.WithAllowHalfOpen(true))

	out, err := Chain[int](src, stage)
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	_ = streams.Collect(out, func(items []int, err error) { got = items })
	runTestLoop(t, l)
	if !equalInts(got, []int{11, 12, 13}) {
		t.Fatalf("unexpected items %v", got)
	}
}

// fakeProcess is a ChildProcess with optional stdio and no OS process.
type fakeProcess struct {
	l      *loop.Loop
	stdin  stream.Writable[[]byte]
	stdout stream.Readable[[]byte]
}

func (p *fakeProcess) Loop() *loop.Loop { return p.l }

func (p *fakeProcess) Stdin() stream.Writable[[]byte] { return p.stdin }

func (p *fakeProcess) Stdout() stream.Readable[[]byte] { return p.stdout }

func (p *fakeProcess) Stderr() stream.Readable[[]byte] { return nil }

func (p *fakeProcess) OnExit(func(code int, err error)) func() { return func() {} }

func (p *fakeProcess) Pid() int { return 0 }

func (p *fakeProcess) Kill() error { return nil }

func TestFromProcessWithoutStdout(t *testing.T) {
	l := newTestLoop(t)
	c, _ := streams.NewCapture[[]byte](l)
	var errs []error
	finished := false
	c.OnError(func(err error) { errs = append(errs, err) })
	c.OnFinish(func() { finished = true })

	dst, err := FromProcess(&fakeProcess{l: l}, c)
	if err != nil {
		t.Fatal(err)
	}
	if dst != c {
		t.Fatal("the sink must be returned")
	}
	runTestLoop(t, l)
	if !finished {
		t.Fatal("sink must be ended")
	}
	if len(c.Items()) != 0 || len(errs) != 0 {
		t.Fatalf("expected an empty pipe, got %d items and errors %v", len(c.Items()), errs)
	}
}

func TestIntoProcessWithoutStdin(t *testing.T) {
	l := newTestLoop(t)
	src, _ := streams.FromSlice(l, [][]byte{[]byte("x")})
	if _, err := IntoProcess(src, &fakeProcess{l: l}); !errors.Is(err, ErrNoStdin) {
		t.Fatalf("expected ErrNoStdin, got %v", err)
	}
	if _, err := TextIntoProcess("x", &fakeProcess{l: l}); !errors.Is(err, ErrNoStdin) {
		t.Fatalf("expected ErrNoStdin, got %v", err)
	}
}

func TestIntoProcessWithoutStdout(t *testing.T) {
	l := newTestLoop(t)
	stdin, _ := streams.NewCapture[[]byte](l)
	p := &fakeProcess{l: l, stdin: stdin}
	out, err := TextIntoProcess("hello", p)
	if err != nil {
		t.Fatal(err)
	}
	ended := false
	out.OnEnd(func() { ended = true })
	runTestLoop(t, l)
	if !ended {
		t.Fatal("the missing stdout must read as an ended stream")
	}
	if string(joinChunks(stdin.Items())) != "hello" {
		t.Fatalf("unexpected stdin %q", joinChunks(stdin.Items()))
	}
}

func joinChunks(chunks [][]byte) []byte {
	var b []byte
	for _, c := range chunks {
		b = append(b, c...)
	}
	return b
}

func TestTextThroughUppercaseProcess(t *testing.T) {
	if _, err := exec.LookPath("tr"); err != nil {
		t.Skip("tr not found")
	}
	l := newTestLoop(t)
	p, err := childprocess.Spawn(l, "tr", childprocess.WithArgs("a-z", "A-Z"),
		childprocess.WithStdio(childprocess.StdioPipe, childprocess.StdioPipe, childprocess.StdioIgnore))
	if err != nil {
		t.Fatal(err)
	}
	out, err := TextIntoProcess("abc", p)
	if err != nil {
		t.Fatal(err)
	}
	var got []byte
	_ = streams.Concat(out, func(data []byte, err error) {
		if err != nil {
			t.Error(err)
		}
		got = data
	})
	exitCode := -1
	p.OnExit(func(code int, err error) { exitCode = code })
	runTestLoop(t, l)
	if string(got) != "ABC" {
		t.Fatalf("expected ABC, got %q", got)
	}
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", exitCode)
	}
}
