package streams

import (
	"context"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/rambollwong/rainbowflow/core/loop"
)

func newTestLoop(t *testing.T) *loop.Loop {
	l, err := loop.New()
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func runTestLoop(t *testing.T, l *loop.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatal(err)
	}
}

func equalInts(a, b []int) bool {
	return deep.Equal(a, b) == nil
}
