package log

import "github.com/rambollwong/rainbowlog"

var (
	DefaultLoggerLabel = "RAINBOW-FLOW"
	Logger             = rainbowlog.New(rainbowlog.WithLabels(DefaultLoggerLabel))
)

// InitLogger replaces the root logger used by every component created afterwards.
func InitLogger(rootLogger *rainbowlog.Logger) {
	Logger = rootLogger.SubLogger(rainbowlog.WithLabels(DefaultLoggerLabel))
}

// Sub returns a labelled sub logger of the root logger.
func Sub(label string) *rainbowlog.Logger {
	return Logger.SubLogger(rainbowlog.WithLabels(DefaultLoggerLabel, label))
}
