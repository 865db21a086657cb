package network

// SocketState is the connection state of a Socket.
type SocketState uint8

const (
	// Connecting is the state while the connection attempt runs.
	Connecting SocketState = iota
	// Connected means both directions are open.
	Connected
	// Closing means one direction was closed, or the socket is being torn down.
	Closing
	// Closed means the socket was torn down.
	Closed
)

var socketStates = []string{"Connecting", "Connected", "Closing", "Closed"}

func (s SocketState) String() string {
	if int(s) >= len(socketStates) {
		return "[unrecognized]"
	}
	return socketStates[s]
}

// ServerState is the lifecycle state of a Server.
type ServerState uint8

const (
	// Created is the state before Listen.
	Created ServerState = iota
	// Listening means the server accepts connections.
	Listening
	// Stopped means the server was closed or failed to listen.
	Stopped
)

var serverStates = []string{"Created", "Listening", "Stopped"}

func (s ServerState) String() string {
	if int(s) >= len(serverStates) {
		return "[unrecognized]"
	}
	return serverStates[s]
}

// Family is the address family of a socket.
type Family uint8

const (
	// FamilyIPv4 restricts a socket to IPv4.
	FamilyIPv4 Family = iota
	// FamilyIPv6 restricts a socket to IPv6.
	FamilyIPv6
	// FamilyAny lets the resolver pick.
	FamilyAny
)

// Network returns the Go network name for the family.
func (f Family) Network() string {
	switch f {
	case FamilyIPv4:
		return "tcp4"
	case FamilyIPv6:
		return "tcp6"
	default:
		return "tcp"
	}
}

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "IPv4"
	case FamilyIPv6:
		return "IPv6"
	case FamilyAny:
		return "Any"
	}
	return "[unrecognized]"
}
