package process

import (
	"github.com/rambollwong/rainbowflow/core/loop"
	"github.com/rambollwong/rainbowflow/core/stream"
)

// ChildProcess is the boundary a spawned process exposes to the stream layer.
type ChildProcess interface {
	// Loop returns the loop the process delivers its callbacks on.
	Loop() *loop.Loop

	// Stdin returns the writable end of the process' standard input,
	// or nil if stdin was not requested as a pipe.
	Stdin() stream.Writable[[]byte]

	// Stdout returns the readable end of the process' standard output,
	// or nil if stdout was not requested as a pipe.
	Stdout() stream.Readable[[]byte]

	// Stderr returns the readable end of the process' standard error,
	// or nil if stderr was not requested as a pipe.
	Stderr() stream.Readable[[]byte]

	// OnExit registers a callback fired once the process exited.
	// err is nil for a regular exit, whatever the exit code.
	OnExit(fn func(code int, err error)) (cancel func())

	// Pid returns the OS process id.
	Pid() int

	// Kill terminates the process.
	Kill() error
}
