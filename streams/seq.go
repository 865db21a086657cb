package streams

import (
	"iter"
	"slices"

	"github.com/rambollwong/rainbowflow/core/loop"
)

// DefaultChunkSize is the size of the chunks FromBytes cuts a byte sequence into.
const DefaultChunkSize = 4 << 10

// FromSeq adapts a finite or infinite sequence into a Source. Items are
// pulled only when the source asks for more, so an infinite sequence is
// consumed as fast as the reader drains it and no faster.
func FromSeq[T any](l *loop.Loop, seq iter.Seq[T], opt ...Option) (*Source[T], error) {
	s, err := NewSource[T](l, opt...)
	if err != nil {
		return nil, err
	}
	next, stop := iter.Pull(seq)
	producing := false
	s.SetDemand(func() {
		if producing {
			return
		}
		producing = true
		defer func() { producing = false }()
		for {
			v, ok := next()
			if !ok {
				stop()
				s.PushEnd()
				return
			}
			if !s.Push(v) {
				return
			}
		}
	})
	s.OnClose(stop)
	return s, nil
}

// FromSlice adapts items into a Source.
func FromSlice[T any](l *loop.Loop, items []T, opt ...Option) (*Source[T], error) {
	return FromSeq(l, slices.Values(items), opt...)
}

// FromBytes adapts a byte sequence into a Source of chunks of at most chunkSize bytes.
func FromBytes(l *loop.Loop, seq iter.Seq[byte], chunkSize int, opt ...Option) (*Source[[]byte], error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return FromSeq(l, Chunk(seq, chunkSize), opt...)
}

// Chunk groups seq into slices of n items. The last slice may be shorter.
func Chunk[T any](seq iter.Seq[T], n int) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		buf := make([]T, 0, n)
		for v := range seq {
			buf = append(buf, v)
			if len(buf) == n {
				if !yield(buf) {
					return
				}
				buf = make([]T, 0, n)
			}
		}
		if len(buf) > 0 {
			yield(buf)
		}
	}
}
