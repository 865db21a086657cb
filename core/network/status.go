package network

import (
	"sync/atomic"
	"time"
)

// Status is an interface for storing metadata of a Socket.
type Status interface {
	Direction() Direction
	EstablishedTime() time.Time
	SetClosed()
	IsClosed() bool
}

// BasicStatus stores metadata of a Socket.
type BasicStatus struct {
	// direction specifies whether this is an inbound or an outbound socket.
	direction Direction
	// establishedTime is the unix nano timestamp the connection was established, 0 while connecting.
	establishedTime atomic.Int64
	// closed specifies whether this socket has been closed. 0 means open, 1 means closed
	closed uint32
}

// NewStatus creates a new BasicStatus instance.
func NewStatus(direction Direction) *BasicStatus {
	return &BasicStatus{direction: direction}
}

// Direction returns the direction of the socket.
func (s *BasicStatus) Direction() Direction {
	return s.direction
}

// SetEstablished records the time the connection was established.
func (s *BasicStatus) SetEstablished(t time.Time) {
	s.establishedTime.Store(t.UnixNano())
}

// EstablishedTime returns the time when the connection was established,
// or the zero time while it is still connecting.
func (s *BasicStatus) EstablishedTime() time.Time {
	ns := s.establishedTime.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// SetClosed marks the socket as closed.
func (s *BasicStatus) SetClosed() {
	atomic.StoreUint32(&s.closed, 1)
}

// IsClosed returns whether the socket is closed.
func (s *BasicStatus) IsClosed() bool {
	return atomic.LoadUint32(&s.closed) == 1
}
