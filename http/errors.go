package http

import "errors"

var (
	// ErrHeadersSent will be returned if the head is modified after it was written.
	ErrHeadersSent = errors.New("headers already sent")
	// ErrInvalidStatusCode will be returned for status codes outside 100-999.
	ErrInvalidStatusCode = errors.New("invalid status code")
	// ErrInvalidHeader will be returned for empty header names or names and values containing line breaks.
	ErrInvalidHeader = errors.New("invalid header")
)
