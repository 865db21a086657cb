package loop

import "github.com/rambollwong/rainbowlog"

type Option func(l *Loop) error

// apply load configuration items for Loop instance.
func (l *Loop) apply(opt ...Option) error {
	for _, o := range opt {
		if err := o(l); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger sets the logger of the loop.
func WithLogger(logger *rainbowlog.Logger) Option {
	return func(l *Loop) error {
		l.logger = logger
		return nil
	}
}
