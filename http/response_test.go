package http

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/pipe"
	"github.com/rambollwong/rainbowflow/streams"
)

func newTestResponse(t *testing.T, opt ...Option) (*loop.Loop, *ServerResponse, *streams.Capture[[]byte]) {
	l, err := loop.New()
	if err != nil {
		t.Fatal(err)
	}
	c, err := streams.NewCapture[[]byte](l)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewServerResponse(c, opt...)
	if err != nil {
		t.Fatal(err)
	}
	return l, r, c
}

func runTestLoop(t *testing.T, l *loop.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatal(err)
	}
}

func output(c *streams.Capture[[]byte]) string {
	return string(bytes.Join(c.Items(), nil))
}

func TestDefaultHeadBeforeFirstBodyByte(t *testing.T) {
	l, r, c := newTestResponse(t)
	l.Post(func() {
		if _, err := r.Write([]byte("x")); err != nil {
			t.Error(err)
		}
	})
	runTestLoop(t, l)
	want := "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nx"
	if output(c) != want {
		t.Fatalf("expected %q, got %q", want, output(c))
	}
	if c.Batches() != 1 {
		t.Fatalf("head and body must go out as one batch, got %d", c.Batches())
	}
	if !r.HeadersSent() || r.StatusCode() != 200 {
		t.Fatal("expected the default head to be sent")
	}
}

func TestWriteHeadTwice(t *testing.T) {
	l, r, _ := newTestResponse(t)
	l.Post(func() {
		if err := r.WriteHead(204, nil); err != nil {
			t.Error(err)
		}
		if err := r.WriteHead(200, nil); !errors.Is(err, ErrHeadersSent) {
			t.Errorf("expected ErrHeadersSent, got %v", err)
		}
		if err := r.SetHeader("X-Late", "1"); !errors.Is(err, ErrHeadersSent) {
			t.Errorf("expected ErrHeadersSent, got %v", err)
		}
		if err := r.RemoveHeader("Connection"); !errors.Is(err, ErrHeadersSent) {
			t.Errorf("expected ErrHeadersSent, got %v", err)
		}
		if err := r.SetStatusCode(500); !errors.Is(err, ErrHeadersSent) {
			t.Errorf("expected ErrHeadersSent, got %v", err)
		}
	})
	runTestLoop(t, l)
	if r.StatusCode() != 204 {
		t.Fatalf("status must not change after the head was sent, got %d", r.StatusCode())
	}
}

func TestWriteHeadMessageMergesHeaders(t *testing.T) {
	l, r, c := newTestResponse(t)
	l.Post(func() {
		if err := r.SetHeader("x-powered-by", "rainbowflow"); err != nil {
			t.Error(err)
		}
		err := r.WriteHeadMessage(404, "Nothing Here", map[string]string{
			"X-B":          "2",
			"Content-Type": "text/plain",
			"X-A":          "1",
			"Connection":   "keep-alive",
		})
		if err != nil {
			t.Error(err)
		}
		_ = r.End([]byte("gone"))
	})
	runTestLoop(t, l)
	want := "HTTP/1.1 404 Nothing Here\r\n" +
		"Connection: keep-alive\r\n" +
		"X-Powered-By: rainbowflow\r\n" +
		"Content-Type: text/plain\r\n" +
		"X-A: 1\r\n" +
		"X-B: 2\r\n" +
		"\r\n" +
		"gone"
	if output(c) != want {
		t.Fatalf("expected %q, got %q", want, output(c))
	}
}

func TestWriteHeadEqualsEmptyMessage(t *testing.T) {
	l1, r1, c1 := newTestResponse(t)
	l2, r2, c2 := newTestResponse(t)
	l1.Post(func() { _ = r1.WriteHead(201, map[string]string{"X-Id": "7"}) })
	l2.Post(func() { _ = r2.WriteHeadMessage(201, "", map[string]string{"X-Id": "7"}) })
	runTestLoop(t, l1)
	runTestLoop(t, l2)
	if output(c1) != output(c2) {
		t.Fatalf("%q != %q", output(c1), output(c2))
	}
	if output(c1) != "HTTP/1.1 201 Created\r\nConnection: close\r\nX-Id: 7\r\n\r\n" {
		t.Fatalf("unexpected head %q", output(c1))
	}
}

func TestHeaderTable(t *testing.T) {
	_, r, _ := newTestResponse(t)
	if err := r.SetHeader("content-length", "3"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetHeader("Cache-Control", "no-cache"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetHeader("CONTENT-LENGTH", "4"); err != nil {
		t.Fatal(err)
	}
	if v, ok := r.Header("Content-Length"); !ok || v != "4" {
		t.Fatalf("expected 4, got %q %v", v, ok)
	}
	names := r.HeaderNames()
	want := []string{"Connection", "Content-Length", "Cache-Control"}
	if diff := deep.Equal(names, want); diff != nil {
		t.Fatal(diff)
	}
	if err := r.RemoveHeader("connection"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Header("Connection"); ok {
		t.Fatal("header must be removed")
	}
}

func TestInvalidInput(t *testing.T) {
	_, r, _ := newTestResponse(t)
	if err := r.SetHeader("Bad\r\nName", "v"); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
	if err := r.SetHeader("X-Ok", "line\nbreak"); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
	if err := r.WriteHead(42, nil); !errors.Is(err, ErrInvalidStatusCode) {
		t.Fatalf("expected ErrInvalidStatusCode, got %v", err)
	}
	if err := r.WriteHead(200, map[string]string{"": "x"}); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
	if r.HeadersSent() {
		t.Fatal("rejected calls must not send the head")
	}
}

func TestStatusLine(t *testing.T) {
	l, r, c := newTestResponse(t, WithoutConnectionClose())
	l.Post(func() {
		_ = r.SetStatusCode(299)
		_ = r.End()
	})
	runTestLoop(t, l)
	if output(c) != "HTTP/1.1 299 Unknown\r\n\r\n" {
		t.Fatalf("unexpected head %q", output(c))
	}
	if StatusText(404) != "Not Found" {
		t.Fatalf("unexpected reason %q", StatusText(404))
	}
}

func TestPipeIntoResponse(t *testing.T) {
	l, r, c := newTestResponse(t)
	src, err := streams.FromSlice(l, [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	if err != nil {
		t.Fatal(err)
	}
	finished := false
	dst, err := pipe.Streams[[]byte](src, r)
	if err != nil {
		t.Fatal(err)
	}
	dst.OnFinish(func() { finished = true })
	runTestLoop(t, l)
	if !finished {
		t.Fatal("response must be ended with the source")
	}
	if output(c) != "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nabc" {
		t.Fatalf("unexpected output %q", output(c))
	}
}
