//go:build windows
// +build windows

package reuse

import (
	"net"
	"syscall"
)

// Control is a no-op, windows has no SO_REUSEPORT.
func Control(network, address string, c syscall.RawConn) error {
	return nil
}

// ListenConfig returns the default listen config.
func ListenConfig(reusePort bool) net.ListenConfig {
	return net.ListenConfig{}
}
