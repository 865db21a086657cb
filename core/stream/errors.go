package stream

import "errors"

var (
	// ErrWriteAfterEnd will be returned if Write or End with items is called after End.
	ErrWriteAfterEnd = errors.New("write after end")
	// ErrDestroyed will be returned if a destroyed stream is written to.
	ErrDestroyed = errors.New("stream destroyed")
	// ErrAlreadyAttached will be returned if a second consumer is registered on a readable.
	ErrAlreadyAttached = errors.New("readable already has a consumer")
)
