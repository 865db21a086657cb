package stream

// ReadState is the state of a readable stream.
type ReadState uint8

const (
	// ReadIdle is the state before a consumer was registered.
	ReadIdle ReadState = iota
	// ReadFlowing means items are pushed to the consumer.
	ReadFlowing
	// ReadPaused means items are buffered until Resume.
	ReadPaused
	// ReadEnded means all items were delivered.
	ReadEnded
	// ReadErrored means the stream failed.
	ReadErrored
)

var readStates = []string{"Idle", "Flowing", "Paused", "Ended", "Errored"}

func (s ReadState) String() string {
	if int(s) >= len(readStates) {
		return "[unrecognized]"
	}
	return readStates[s]
}

// Terminated reports whether s is a final state.
func (s ReadState) Terminated() bool {
	return s == ReadEnded || s == ReadErrored
}

// WriteState is the state of a writable stream.
type WriteState uint8

const (
	// WriteOpen accepts writes and flushes them.
	WriteOpen WriteState = iota
	// WriteCorked accepts writes and holds them back.
	WriteCorked
	// WriteEnding does not accept writes and flushes what is queued.
	WriteEnding
	// WriteEnded means everything was flushed.
	WriteEnded
	// WriteErrored means the stream failed.
	WriteErrored
)

var writeStates = []string{"Open", "Corked", "Ending", "Ended", "Errored"}

func (s WriteState) String() string {
	if int(s) >= len(writeStates) {
		return "[unrecognized]"
	}
	return writeStates[s]
}

// Terminated reports whether s is a final state.
func (s WriteState) Terminated() bool {
	return s == WriteEnded || s == WriteErrored
}
