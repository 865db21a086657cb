package http

import "github.com/rambollwong/rainbowlog"

// Option configures a ServerResponse.
type Option func(r *ServerResponse) error

func (r *ServerResponse) apply(opt ...Option) error {
	for _, o := range opt {
		if err := o(r); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger sets the logger.
func WithLogger(logger *rainbowlog.Logger) Option {
	return func(r *ServerResponse) error {
		r.logger = logger
		return nil
	}
}

// WithoutConnectionClose drops the default "Connection: close" header.
func WithoutConnectionClose() Option {
	return func(r *ServerResponse) error {
		r.header.remove(headerConnection)
		return nil
	}
}
