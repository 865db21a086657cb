package network

// Direction of a socket.
type Direction uint8

const (
	// Unknown is the default direction.
	Unknown Direction = iota
	// Inbound is for sockets a Server accepted.
	Inbound
	// Outbound is for sockets created by Connect.
	Outbound
)

var directions = []string{"Unknown", "Inbound", "Outbound"}

func (d Direction) String() string {
	if int(d) >= len(directions) {
		return "[unrecognized]"
	}
	return directions[d]
}
