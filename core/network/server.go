package network

import (
	"net"

	ma "github.com/multiformats/go-multiaddr"
)

// Server accepts connections and hands every one of them out as a Socket.
// The server does not own the sockets it produced.
type Server interface {
	// Listen binds the server to port on all IPv4 interfaces.
	Listen(port int, onListening func()) error

	// ListenMultiaddr binds the server to the given addresses.
	ListenMultiaddr(onListening func(), addresses ...ma.Multiaddr) error

	// ListenAddresses returns the bound addresses.
	ListenAddresses() []ma.Multiaddr

	// Address returns the first bound address, or nil.
	Address() net.Addr

	// OnConnection registers a callback fired for every accepted socket.
	OnConnection(fn func(sock Socket)) (cancel func())

	// OnError registers a callback fired when listening fails.
	OnError(fn func(err error)) (cancel func())

	// ServerState returns the lifecycle state.
	ServerState() ServerState

	// Connections returns the number of open sockets the server produced.
	Connections() int

	// Close stops accepting. onClose fires once every socket the server
	// produced was closed.
	Close(onClose func()) error
}

// AddrBlacklist decides whether connections from a remote address are refused.
type AddrBlacklist interface {
	BlackAddr(addr net.Addr) bool
}
