package pipe

import "errors"

var (
	// ErrAlreadyPiped will be returned if the source already feeds another sink.
	ErrAlreadyPiped = errors.New("source is already piped")
	// ErrNoStdin will be returned if data is piped into a process without stdin.
	ErrNoStdin = errors.New("child process has no stdin")
)
