package network

import (
	"net"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/rambollwong/rainbowflow/core/stream"
)

// Socket is a byte Duplex bound to a network endpoint.
type Socket interface {
	stream.Duplex[[]byte, []byte]
	Status

	// SocketState returns the connection state.
	SocketState() SocketState

	// OnConnect registers a callback fired once the connection was established.
	OnConnect(fn func()) (cancel func())

	// RemoteHost returns the host the socket connects or is connected to.
	RemoteHost() string

	// RemotePort returns the port the socket connects or is connected to.
	RemotePort() int

	// Family returns the address family of the socket.
	Family() Family

	// LocalAddr returns the local multi-address, nil while connecting.
	LocalAddr() ma.Multiaddr

	// RemoteAddr returns the remote multi-address, nil while connecting.
	RemoteAddr() ma.Multiaddr

	// LocalNetAddr returns the local net address, nil while connecting.
	LocalNetAddr() net.Addr

	// RemoteNetAddr returns the remote net address, nil while connecting.
	RemoteNetAddr() net.Addr

	// BytesRead returns the number of bytes received.
	BytesRead() int64

	// BytesWritten returns the number of bytes sent.
	BytesWritten() int64
}
