package tcp

import (
	"context"

	"github.com/rambollwong/rainbowflow/core/network"
	"github.com/rambollwong/rainbowflow/streams"
	"github.com/rambollwong/rainbowlog"
)

type config struct {
	ctx            context.Context
	allowHalfOpen  bool
	pauseOnConnect bool
	reusePort      bool
	maxConnections int
	blacklist      network.AddrBlacklist
	readBufferSize int
	highWaterMark  int
	logger         *rainbowlog.Logger
}

func defaultConfig() *config {
	return &config{
		ctx:            context.Background(),
		readBufferSize: streams.DefaultReadBufferSize,
	}
}

// Option configures a Socket or a Server.
type Option func(c *config) error

// apply load configuration items for a Socket or Server instance.
func (c *config) apply(opt ...Option) error {
	for _, o := range opt {
		if err := o(c); err != nil {
			return err
		}
	}
	return nil
}

// streamOptions translates the config into options of the socket's halves.
func (c *config) streamOptions(paused bool) []streams.Option {
	opts := []streams.Option{
		streams.WithAllowHalfOpen(c.allowHalfOpen),
		streams.WithReadBufferSize(c.readBufferSize),
	}
	if c.highWaterMark > 0 {
		opts = append(opts, streams.WithHighWaterMark(c.highWaterMark))
	}
	if paused {
		opts = append(opts, streams.WithPaused())
	}
	return opts
}

// WithContext sets the context dialing and listening run under.
func WithContext(ctx context.Context) Option {
	return func(c *config) error {
		c.ctx = ctx
		return nil
	}
}

// WithAllowHalfOpen keeps the writable side of a socket open after the peer ended its side.
func WithAllowHalfOpen(allow bool) Option {
	return func(c *config) error {
		c.allowHalfOpen = allow
		return nil
	}
}

// WithPauseOnConnect delivers accepted sockets paused; nothing is read before Resume.
func WithPauseOnConnect(pause bool) Option {
	return func(c *config) error {
		c.pauseOnConnect = pause
		return nil
	}
}

// WithReusePort sets SO_REUSEADDR and SO_REUSEPORT on listeners.
func WithReusePort(reuse bool) Option {
	return func(c *config) error {
		c.reusePort = reuse
		return nil
	}
}

// WithMaxConnections refuses connections while n sockets of the server are open. 0 means unlimited.
func WithMaxConnections(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return ErrInvalidMaxConns
		}
		c.maxConnections = n
		return nil
	}
}

// WithBlacklist refuses connections from blacklisted remote addresses.
func WithBlacklist(b network.AddrBlacklist) Option {
	return func(c *config) error {
		c.blacklist = b
		return nil
	}
}

// WithReadBufferSize sets the size of a single read from the connection.
func WithReadBufferSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrInvalidBufferSize
		}
		c.readBufferSize = n
		return nil
	}
}

// WithHighWaterMark sets the high-water mark, in bytes, of both socket halves.
func WithHighWaterMark(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrInvalidBufferSize
		}
		c.highWaterMark = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *rainbowlog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}
