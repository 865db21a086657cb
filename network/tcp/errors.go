package tcp

import "errors"

var (
	ErrEmptyListenAddress = errors.New("empty listen address")
	ErrWrongTcpAddr       = errors.New("wrong tcp address format")
	ErrInvalidPort        = errors.New("port out of range")
	ErrServerListening    = errors.New("server is already listening")
	ErrServerNotListening = errors.New("server is not listening")
	ErrServerClosed       = errors.New("server closed")
	ErrInvalidMaxConns    = errors.New("max connections must not be negative")
	ErrInvalidBufferSize  = errors.New("buffer size must be positive")
	ErrNotConnected       = errors.New("socket is not connected")
	ErrOptionNotSupported = errors.New("option not supported by the connection")
)
