package childprocess

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/rambollwong/rainbowflow/core/loop"
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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatal(err)
	}
}

func requireBinary(t *testing.T, name string) {
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not found", name)
	}
}

func TestSpawnEmptyCommand(t *testing.T) {
	if _, err := Spawn(newTestLoop(t), ""); !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestSpawnMissingBinary(t *testing.T) {
	l := newTestLoop(t)
	if _, err := Spawn(l, "rainbowflow-no-such-binary"); err == nil {
		t.Fatal("expected an error")
	}
	if l.Refs() != 0 {
		t.Fatal("a failed spawn must not keep the loop alive")
	}
}

func TestCatEchoesStdin(t *testing.T) {
	requireBinary(t, "cat")
	l := newTestLoop(t)
	p, err := Spawn(l, "cat")
	if err != nil {
		t.Fatal(err)
	}
	var out []byte
	if err = streams.Concat(p.Stdout(), func(data []byte, err error) {
		if err != nil {
			t.Error(err)
		}
		out = data
	}); err != nil {
		t.Fatal(err)
	}
	exits, closes := 0, 0
	p.OnExit(func(code int, err error) {
		exits++
		if code != 0 || err != nil {
			t.Errorf("unexpected exit %d %v", code, err)
		}
	})
	p.OnClose(func() { closes++ })
	l.Post(func() {
		_, _ = p.Stdin().Write([]byte("hello "))
		_ = p.Stdin().End([]byte("process"))
	})
	runTestLoop(t, l)

	if string(out) != "hello process" {
		t.Fatalf("unexpected output %q", out)
	}
	if exits != 1 || closes != 1 {
		t.Fatalf("expected one exit and one close, got %d and %d", exits, closes)
	}
	if exited, code := p.Exited(); !exited || code != 0 {
		t.Fatalf("expected exited with 0, got %v %d", exited, code)
	}
}

func TestExitCode(t *testing.T) {
	requireBinary(t, "sh")
	l := newTestLoop(t)
	p, err := Spawn(l, "sh", WithArgs("-c", "exit 3"), WithStdio(StdioIgnore, StdioIgnore, StdioIgnore))
	if err != nil {
		t.Fatal(err)
	}
	if p.Stdin() != nil || p.Stdout() != nil || p.Stderr() != nil {
		t.Fatal("ignored stdio must have no streams")
	}
	code := -1
	var exitErr error
	p.OnExit(func(c int, err error) { code, exitErr = c, err })
	runTestLoop(t, l)
	if code != 3 || exitErr != nil {
		t.Fatalf("expected code 3 without error, got %d %v", code, exitErr)
	}
}

func TestStderr(t *testing.T) {
	requireBinary(t, "sh")
	l := newTestLoop(t)
	p, err := Spawn(l, "sh", WithArgs("-c", "echo oops >&2"), WithStdio(StdioIgnore, StdioIgnore, StdioPipe))
	if err != nil {
		t.Fatal(err)
	}
	var got []byte
	_ = streams.Concat(p.Stderr(), func(data []byte, err error) { got = data })
	runTestLoop(t, l)
	if string(got) != "oops\n" {
		t.Fatalf("unexpected stderr %q", got)
	}
}

func TestKill(t *testing.T) {
	requireBinary(t, "sleep")
	l := newTestLoop(t)
	p, err := Spawn(l, "sleep", WithArgs("10"), WithStdio(StdioIgnore, StdioIgnore, StdioIgnore))
	if err != nil {
		t.Fatal(err)
	}
	var exitErr error
	p.OnExit(func(_ int, err error) { exitErr = err })
	l.Post(func() {
		if err := p.Kill(); err != nil {
			t.Error(err)
		}
	})
	runTestLoop(t, l)
	if exitErr == nil {
		t.Fatal("a killed process must report an error")
	}
	if err = p.Kill(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestExitNotDelayedByDescendantHoldingStdout(t *testing.T) {
	requireBinary(t, "sh")
	requireBinary(t, "sleep")
	l := newTestLoop(t)
	p, err := Spawn(l, "sh", WithArgs("-c", "sleep 1 & echo hi"))
	if err != nil {
		t.Fatal(err)
	}
	var out []byte
	outEnded := false
	if err = streams.Concat(p.Stdout(), func(data []byte, err error) {
		out, outEnded = data, true
	}); err != nil {
		t.Fatal(err)
	}
	_ = streams.Concat(p.Stderr(), func([]byte, error) {})
	l.Post(func() { _ = p.Stdin().End() })

	start := time.Now()
	var exitAfter time.Duration
	endedAtExit := true
	p.OnExit(func(code int, err error) {
		exitAfter = time.Since(start)
		endedAtExit = outEnded
		if code != 0 || err != nil {
			t.Errorf("unexpected exit %d %v", code, err)
		}
	})
	closed := false
	p.OnClose(func() {
		closed = true
		if !outEnded {
			t.Error("close must wait for stdout to end")
		}
	})
	runTestLoop(t, l)

	if endedAtExit {
		t.Fatal("exit must be reported while the descendant still holds stdout")
	}
	if exitAfter >= time.Second {
		t.Fatalf("exit reported after %s", exitAfter)
	}
	if !closed || string(out) != "hi\n" {
		t.Fatalf("expected close with output, got %v %q", closed, out)
	}
}

func TestSpawnRejectsSizerOfAnotherType(t *testing.T) {
	l := newTestLoop(t)
	_, err := Spawn(l, "cat", WithStreamOptions(streams.WithSizer(func(int) int { return 1 })))
	if !errors.Is(err, streams.ErrSizerType) {
		t.Fatalf("expected ErrSizerType, got %v", err)
	}
}
