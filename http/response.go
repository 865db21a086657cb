// Package http writes HTTP/1.1 responses onto byte streams.
package http

import (
	"strconv"

	"github.com/rambollwong/rainbowflow/core/stream"
	"github.com/rambollwong/rainbowflow/log"
	"github.com/rambollwong/rainbowlog"
)

const (
	loggerLabel = "HTTP"

	headerConnection = "Connection"
)

var _ stream.Writable[[]byte] = (*ServerResponse)(nil)

// ServerResponse is the writing end of an HTTP exchange. It wraps a byte
// Writable, usually a socket, and makes sure the status line and the header
// block go out before any body byte.
//
// ServerResponse is itself a Writable, so it can be the destination of a pipe.
// It must only be used from the loop goroutine of the wrapped stream.
type ServerResponse struct {
	stream.Writable[[]byte]

	statusCode    int
	statusMessage string
	header        *header
	headersSent   bool

	logger *rainbowlog.Logger
}

// NewServerResponse creates a response writing to w.
// The header table starts with "Connection: close".
func NewServerResponse(w stream.Writable[[]byte], opt ...Option) (*ServerResponse, error) {
	r := &ServerResponse{
		Writable: w,
		header:   newHeader(),
	}
	_ = r.header.set(headerConnection, "close")
	if err := r.apply(opt...); err != nil {
		return nil, err
	}
	if r.logger == nil {
		r.logger = log.Sub(loggerLabel)
	}
	return r, nil
}

// StatusCode returns the status code, 0 if none was set yet.
func (r *ServerResponse) StatusCode() int {
	return r.statusCode
}

// SetStatusCode sets the status code sent with the head.
func (r *ServerResponse) SetStatusCode(code int) error {
	if r.headersSent {
		return ErrHeadersSent
	}
	if !validStatusCode(code) {
		return ErrInvalidStatusCode
	}
	r.statusCode = code
	return nil
}

// StatusMessage returns the reason phrase set by the caller, if any.
func (r *ServerResponse) StatusMessage() string {
	return r.statusMessage
}

// SetStatusMessage overrides the reason phrase of the status line.
func (r *ServerResponse) SetStatusMessage(msg string) error {
	if r.headersSent {
		return ErrHeadersSent
	}
	if !validHeader("Status", msg) {
		return ErrInvalidHeader
	}
	r.statusMessage = msg
	return nil
}

// SetHeader sets a header, replacing any value of the same name.
func (r *ServerResponse) SetHeader(name, value string) error {
	if r.headersSent {
		return ErrHeadersSent
	}
	return r.header.set(name, value)
}

// Header returns the value of the named header.
func (r *ServerResponse) Header(name string) (string, bool) {
	return r.header.get(name)
}

// RemoveHeader removes the named header.
func (r *ServerResponse) RemoveHeader(name string) error {
	if r.headersSent {
		return ErrHeadersSent
	}
	r.header.remove(name)
	return nil
}

// HeaderNames returns the canonical header names in the order they were first set.
func (r *ServerResponse) HeaderNames() []string {
	names := make([]string, len(r.header.names))
	copy(names, r.header.names)
	return names
}

// HeadersSent reports whether the head was written.
func (r *ServerResponse) HeadersSent() bool {
	return r.headersSent
}

// WriteHead writes the status line and the header block with the reason
// phrase for code.
func (r *ServerResponse) WriteHead(code int, headers map[string]string) error {
	return r.WriteHeadMessage(code, "", headers)
}

// WriteHeadMessage merges headers into the header table and writes the head.
// An empty msg keeps the message set before or falls back to StatusText.
func (r *ServerResponse) WriteHeadMessage(code int, msg string, headers map[string]string) error {
	if r.headersSent {
		return ErrHeadersSent
	}
	if !validStatusCode(code) {
		return ErrInvalidStatusCode
	}
	if msg != "" && !validHeader("Status", msg) {
		return ErrInvalidHeader
	}
	if err := r.header.merge(headers); err != nil {
		return err
	}
	r.statusCode = code
	if msg != "" {
		r.statusMessage = msg
	}
	return r.sendHead()
}

// Write writes a body chunk. If the head was not written yet, the default
// head goes out first, in the same batch as chunk.
func (r *ServerResponse) Write(chunk []byte) (bool, error) {
	if r.headersSent {
		return r.Writable.Write(chunk)
	}
	r.Writable.Cork()
	defer r.Writable.Uncork()
	if err := r.sendHead(); err != nil {
		return false, err
	}
	return r.Writable.Write(chunk)
}

// End writes the head if needed, then ends the wrapped stream.
func (r *ServerResponse) End(final ...[]byte) error {
	if !r.headersSent {
		if err := r.sendHead(); err != nil {
			return err
		}
	}
	return r.Writable.End(final...)
}

func (r *ServerResponse) sendHead() error {
	if r.statusCode == 0 {
		r.statusCode = DefaultStatusCode
	}
	msg := r.statusMessage
	if msg == "" {
		msg = StatusText(r.statusCode)
	}
	head := make([]byte, 0, 128)
	head = append(head, "HTTP/1.1 "...)
	head = strconv.AppendInt(head, int64(r.statusCode), 10)
	head = append(head, ' ')
	head = append(head, msg...)
	head = append(head, "\r\n"...)
	head = r.header.appendTo(head)
	head = append(head, "\r\n"...)

	if _, err := r.Writable.Write(head); err != nil {
		return err
	}
	r.headersSent = true
	r.logger.Debug().Msg("head sent").
		Int("status", r.statusCode).
		Int("headers", len(r.header.names)).
		Done()
	return nil
}
