package util

import (
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// NetError checks if the provided error implements the net.Error interface.
// It returns the net.Error value and true if the error implements the interface.
// Otherwise, it returns nil and false.
func NetError(err error) (net.Error, bool) {
	var ne net.Error
	ok := errors.As(err, &ne)
	if ok {
		return ne, true
	}
	return nil, false
}

// IsNetErrorTimeout checks if the provided error is a network error and specifically a timeout error.
func IsNetErrorTimeout(err error) bool {
	ne, ok := NetError(err)
	if ok {
		return ne.Timeout()
	}
	return false
}

// IsConnClosedError reports whether err means the descriptor was closed
// underneath a pending read, which ends the stream instead of failing it.
func IsConnClosedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}

// IsConnResetError reports whether the peer reset the connection.
func IsConnResetError(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}

// IsConnRefusedError reports whether a connection attempt was refused.
func IsConnRefusedError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
