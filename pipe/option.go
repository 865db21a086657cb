package pipe

type options struct {
	end            bool
	propagateError bool
}

type Option func(o *options) error

// apply load configuration items for a pipe relation.
func (o *options) apply(opt ...Option) error {
	for _, op := range opt {
		if err := op(o); err != nil {
			return err
		}
	}
	return nil
}

// WithEnd sets whether the sink is ended once the source ended. Default true.
func WithEnd(end bool) Option {
	return func(o *options) error {
		o.end = end
		return nil
	}
}

// WithPropagateError destroys the sink with the source's error when the source fails.
func WithPropagateError(propagate bool) Option {
	return func(o *options) error {
		o.propagateError = propagate
		return nil
	}
}
