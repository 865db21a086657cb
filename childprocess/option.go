package childprocess

import (
	"github.com/rambollwong/rainbowflow/streams"
	"github.com/rambollwong/rainbowlog"
)

// StdioMode tells Spawn what to do with one of the standard descriptors.
type StdioMode uint8

const (
	// StdioPipe connects the descriptor to a stream.
	StdioPipe StdioMode = iota
	// StdioIgnore connects the descriptor to the null device; the stream is nil.
	StdioIgnore
	// StdioInherit hands the parent's descriptor to the child; the stream is nil.
	StdioInherit
)

type config struct {
	args       []string
	dir        string
	env        []string
	stdio      [3]StdioMode
	streamOpts []streams.Option
	logger     *rainbowlog.Logger
}

func defaultConfig() *config {
	return &config{stdio: [3]StdioMode{StdioPipe, StdioPipe, StdioPipe}}
}

type Option func(c *config) error

// apply load configuration items for Spawn.
func (c *config) apply(opt ...Option) error {
	for _, o := range opt {
		if err := o(c); err != nil {
			return err
		}
	}
	return nil
}

// WithArgs sets the command line arguments.
func WithArgs(args ...string) Option {
	return func(c *config) error {
		c.args = append(c.args, args...)
		return nil
	}
}

// WithDir sets the working directory of the process.
func WithDir(dir string) Option {
	return func(c *config) error {
		c.dir = dir
		return nil
	}
}

// WithEnv adds KEY=value entries to the inherited environment.
func WithEnv(env ...string) Option {
	return func(c *config) error {
		c.env = append(c.env, env...)
		return nil
	}
}

// WithStdio sets the modes of stdin, stdout and stderr.
func WithStdio(stdin, stdout, stderr StdioMode) Option {
	return func(c *config) error {
		c.stdio = [3]StdioMode{stdin, stdout, stderr}
		return nil
	}
}

// WithStreamOptions sets the options of the stdio streams.
func WithStreamOptions(opt ...streams.Option) Option {
	return func(c *config) error {
		c.streamOpts = append(c.streamOpts, opt...)
		return nil
	}
}

// WithLogger sets the logger of the process.
func WithLogger(logger *rainbowlog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}
