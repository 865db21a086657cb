package childprocess

import (
	"errors"
	"io"
	"os"
	"os/exec"

	pkgerrors "github.com/pkg/errors"
	"github.com/rambollwong/rainbowflow/core/event"
	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/core/process"
	"github.com/rambollwong/rainbowflow/core/safe"
	"github.com/rambollwong/rainbowflow/core/stream"
	"github.com/rambollwong/rainbowflow/log"
	"github.com/rambollwong/rainbowflow/streams"
	"github.com/rambollwong/rainbowlog"
)

const loggerLabel = "CHILD-PROCESS"

var (
	// ErrEmptyCommand will be returned if Spawn is called without a command name.
	ErrEmptyCommand = errors.New("empty command")
	// ErrNotRunning will be returned if Kill is called after the process exited.
	ErrNotRunning = errors.New("process is not running")

	_ process.ChildProcess = (*ChildProcess)(nil)
)

// ChildProcess is an OS process whose stdio takes part in the stream layer.
// It lives until the process exited and its output streams were torn down.
type ChildProcess struct {
	loop *loop.Loop
	cmd  *exec.Cmd

	stdin  *streams.Sink[[]byte]
	stdout *streams.Source[[]byte]
	stderr *streams.Source[[]byte]

	// pipe ends handed to the child, closed in the parent after Start
	childEnds []*os.File

	exited    bool
	exitCode  int
	openStdio int

	exitH  event.Once[exitEvent]
	closeH event.Once[struct{}]

	logger *rainbowlog.Logger
}

type exitEvent struct {
	code int
	err  error
}

// Spawn starts name as a child process. Its exit is reported on l.
func Spawn(l *loop.Loop, name string, opt ...Option) (*ChildProcess, error) {
	if name == "" {
		return nil, ErrEmptyCommand
	}
	cfg := defaultConfig()
	if err := cfg.apply(opt...); err != nil {
		return nil, err
	}
	if err := streams.CheckOptions[[]byte](cfg.streamOpts...); err != nil {
		return nil, err
	}

	cmd := exec.Command(name, cfg.args...)
	cmd.Dir = cfg.dir
	if len(cfg.env) > 0 {
		cmd.Env = append(os.Environ(), cfg.env...)
	}

	p := &ChildProcess{
		loop:   l,
		cmd:    cmd,
		logger: cfg.logger,
	}
	if p.logger == nil {
		p.logger = log.Sub(loggerLabel)
	}
	p.exitH.Post = l.Post
	p.closeH.Post = l.Post

	stdinW, err := p.setupStdin(cfg.stdio[0])
	if err != nil {
		return nil, err
	}
	stdoutR, err := p.setupOutput(cfg.stdio[1], &cmd.Stdout, os.Stdout)
	if err != nil {
		p.closeFiles(append(p.childEnds, stdinW)...)
		return nil, err
	}
	stderrR, err := p.setupOutput(cfg.stdio[2], &cmd.Stderr, os.Stderr)
	if err != nil {
		p.closeFiles(append(p.childEnds, stdinW, stdoutR)...)
		return nil, err
	}

	if err = cmd.Start(); err != nil {
		p.closeFiles(append(p.childEnds, stdinW, stdoutR, stderrR)...)
		return nil, pkgerrors.Wrapf(err, "spawn %s", name)
	}
	// the child owns its ends now
	p.closeFiles(p.childEnds...)
	p.childEnds = nil
	l.Ref()

	// stream options were checked above, the constructors cannot fail anymore
	if stdinW != nil {
		p.stdin, _, _ = streams.NewWriterSink(l, stdinW, cfg.streamOpts...)
		p.stdin.OnClose(func() { p.closeFiles(stdinW) })
	}
	if stdoutR != nil {
		p.stdout, _, _ = streams.NewReaderSource(l, stdoutR, cfg.streamOpts...)
		p.trackStdio(p.stdout, stdoutR)
	}
	if stderrR != nil {
		p.stderr, _, _ = streams.NewReaderSource(l, stderrR, cfg.streamOpts...)
		p.trackStdio(p.stderr, stderrR)
	}

	p.logger.Debug().Msg("process spawned").
		Str("command", name).
		Int("pid", cmd.Process.Pid).
		Done()

	safe.LoggerGo(p.logger, p.wait)
	return p, nil
}

// setupStdin returns the parent's write end of the stdin pipe, if any.
func (p *ChildProcess) setupStdin(mode StdioMode) (*os.File, error) {
	switch mode {
	case StdioPipe:
		r, w, err := os.Pipe()
		if err != nil {
			return nil, pkgerrors.Wrap(err, "stdin pipe")
		}
		p.cmd.Stdin = r
		p.childEnds = append(p.childEnds, r)
		return w, nil
	case StdioInherit:
		p.cmd.Stdin = os.Stdin
	}
	return nil, nil
}

// setupOutput returns the parent's read end of an output pipe, if any.
// The child gets the *os.File itself, so exec starts no copy goroutine and
// Wait has no pipe to close.
func (p *ChildProcess) setupOutput(mode StdioMode, target *io.Writer, inherit *os.File) (*os.File, error) {
	switch mode {
	case StdioPipe:
		r, w, err := os.Pipe()
		if err != nil {
			return nil, pkgerrors.Wrap(err, "output pipe")
		}
		*target = w
		p.childEnds = append(p.childEnds, w)
		return r, nil
	case StdioInherit:
		*target = inherit
	}
	return nil, nil
}

func (p *ChildProcess) closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

func (p *ChildProcess) trackStdio(src *streams.Source[[]byte], f *os.File) {
	p.openStdio++
	src.OnClose(func() {
		// unblocks a pending read when the stream was destroyed early
		p.closeFiles(f)
		p.openStdio--
		p.maybeClose()
	})
}

// wait reaps the process. Exit is reported as soon as the process is gone,
// even if a descendant still holds its output pipes open.
func (p *ChildProcess) wait() {
	state, err := p.cmd.Process.Wait()
	code := -1
	if state != nil {
		code = state.ExitCode()
		if err == nil && !state.Exited() {
			err = &exec.ExitError{ProcessState: state}
		}
	}
	p.loop.Post(func() {
		p.exit(code, err)
	})
}

func (p *ChildProcess) exit(code int, err error) {
	p.exited = true
	p.exitCode = code
	p.loop.Unref()
	p.logger.Debug().Msg("process exited").
		Int("pid", p.Pid()).
		Int("code", code).
		Err(err).
		Done()
	p.exitH.Fire(exitEvent{code: code, err: err})
	p.maybeClose()
}

func (p *ChildProcess) maybeClose() {
	if p.exited && p.openStdio == 0 {
		p.closeH.Fire(struct{}{})
	}
}

// Loop returns the loop the process reports on.
func (p *ChildProcess) Loop() *loop.Loop {
	return p.loop
}

// Stdin returns the process' stdin, or nil.
func (p *ChildProcess) Stdin() stream.Writable[[]byte] {
	if p.stdin == nil {
		return nil
	}
	return p.stdin
}

// Stdout returns the process' stdout, or nil.
func (p *ChildProcess) Stdout() stream.Readable[[]byte] {
	if p.stdout == nil {
		return nil
	}
	return p.stdout
}

// Stderr returns the process' stderr, or nil.
func (p *ChildProcess) Stderr() stream.Readable[[]byte] {
	if p.stderr == nil {
		return nil
	}
	return p.stderr
}

// OnExit registers fn to be called once the process exited.
func (p *ChildProcess) OnExit(fn func(code int, err error)) func() {
	if fn == nil {
		return func() {}
	}
	return p.exitH.Add(func(e exitEvent) {
		fn(e.code, e.err)
	})
}

// OnClose registers fn to be called once the process exited and its
// output streams were torn down.
func (p *ChildProcess) OnClose(fn func()) func() {
	return p.closeH.Add(event.Void(fn))
}

// Exited reports whether the process exited, and its exit code.
func (p *ChildProcess) Exited() (bool, int) {
	return p.exited, p.exitCode
}

// Pid returns the OS process id.
func (p *ChildProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Kill terminates the process.
func (p *ChildProcess) Kill() error {
	if p.exited || p.cmd.Process == nil {
		return ErrNotRunning
	}
	return p.cmd.Process.Kill()
}
