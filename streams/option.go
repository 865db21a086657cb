package streams

import "errors"

const (
	// DefaultHighWaterMark is the high-water mark of item streams.
	DefaultHighWaterMark = 16
	// DefaultByteHighWaterMark is the high-water mark of []byte streams, in bytes.
	DefaultByteHighWaterMark = 16 << 10
	// DefaultReadBufferSize is the size of a single read issued by a ReadPump.
	DefaultReadBufferSize = 64 << 10
)

var (
	// ErrInvalidHighWaterMark will be returned if a high-water mark below 1 is configured.
	ErrInvalidHighWaterMark = errors.New("high-water mark must be positive")
	// ErrInvalidReadBufferSize will be returned if a read buffer size below 1 is configured.
	ErrInvalidReadBufferSize = errors.New("read buffer size must be positive")
	// ErrSizerType will be returned if WithSizer was given a function for another item type.
	ErrSizerType = errors.New("sizer does not match the stream item type")
)

type config struct {
	highWaterMark  int
	sizer          any
	allowHalfOpen  bool
	paused         bool
	readBufferSize int
}

type Option func(c *config) error

// apply load configuration items for a stream.
func (c *config) apply(opt ...Option) error {
	for _, o := range opt {
		if err := o(c); err != nil {
			return err
		}
	}
	return nil
}

func newConfig(opt ...Option) (*config, error) {
	c := &config{readBufferSize: DefaultReadBufferSize}
	if err := c.apply(opt...); err != nil {
		return nil, err
	}
	return c, nil
}

// WithHighWaterMark sets the buffered size at which a stream signals backpressure.
func WithHighWaterMark(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrInvalidHighWaterMark
		}
		c.highWaterMark = n
		return nil
	}
}

// WithSizer sets how much of the high-water mark a single item uses.
// Item streams count one per item, []byte streams count bytes.
func WithSizer[T any](fn func(T) int) Option {
	return func(c *config) error {
		c.sizer = fn
		return nil
	}
}

// WithAllowHalfOpen keeps the writable side of a duplex open after its readable side ended.
func WithAllowHalfOpen(allow bool) Option {
	return func(c *config) error {
		c.allowHalfOpen = allow
		return nil
	}
}

// WithPaused creates a readable that is paused until Resume is called.
func WithPaused() Option {
	return func(c *config) error {
		c.paused = true
		return nil
	}
}

// WithReadBufferSize sets the size of the reads a ReadPump issues.
func WithReadBufferSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrInvalidReadBufferSize
		}
		c.readBufferSize = n
		return nil
	}
}

// sizerOf resolves the configured sizer and high-water mark for item type T.
func sizerOf[T any](c *config) (func(T) int, int, error) {
	var zero T
	_, isBytes := any(zero).([]byte)

	hwm := c.highWaterMark
	if hwm == 0 {
		hwm = DefaultHighWaterMark
		if isBytes {
			hwm = DefaultByteHighWaterMark
		}
	}
	if c.sizer != nil {
		fn, ok := c.sizer.(func(T) int)
		if !ok {
			return nil, 0, ErrSizerType
		}
		if fn != nil {
			return fn, hwm, nil
		}
	}
	if isBytes {
		return func(item T) int { return len(any(item).([]byte)) }, hwm, nil
	}
	return func(T) int { return 1 }, hwm, nil
}

// CheckOptions reports the first error the options would cause in a
// constructor of a stream of T.
func CheckOptions[T any](opt ...Option) error {
	cfg, err := newConfig(opt...)
	if err != nil {
		return err
	}
	_, _, err = sizerOf[T](cfg)
	return err
}
