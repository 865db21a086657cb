package safe

import (
	"fmt"

	"github.com/rambollwong/rainbowlog"
)

// LoggerGo is a utility function that executes a function concurrently in a goroutine.
// It recovers from any panics that occur within the goroutine and logs the panic error using the provided logger.
func LoggerGo(logger *rainbowlog.Logger, f func()) {
	go func() {
		defer func() {
			if err := recover(); err != nil {
				logger.Error().Msgf("panic: %+v", err).Done()
			}
		}()
		f()
	}()
}

// ReportGo runs f in a goroutine like LoggerGo, and additionally hands the
// recovered panic to onPanic as an error so the owner can fail the task
// that was waiting on f.
func ReportGo(logger *rainbowlog.Logger, f func(), onPanic func(err error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Msgf("panic: %+v", r).Done()
				if onPanic != nil {
					onPanic(fmt.Errorf("panic: %v", r))
				}
			}
		}()
		f()
	}()
}
