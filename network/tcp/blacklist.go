package tcp

import (
	"net"
	"strconv"
	"strings"

	"github.com/rambollwong/rainbowcat/types"
	"github.com/rambollwong/rainbowflow/core/network"
)

var _ network.AddrBlacklist = (*Blacklist)(nil)

// Blacklist refuses connections by remote "IP:Port" or by remote IP.
type Blacklist struct {
	ipAndPort *types.Set[string]
}

// NewBlacklist creates an empty Blacklist.
func NewBlacklist() *Blacklist {
	return &Blacklist{
		ipAndPort: types.NewSet[string](),
	}
}

// AddIPAndPort adds an "IP:Port" address or a bare IP to the blacklist.
// Malformed entries are ignored.
func (b *Blacklist) AddIPAndPort(ipAndPort string) {
	if ok, n := checkIPAndPort(ipAndPort); ok {
		b.ipAndPort.Put(n)
	}
}

// RemoveIPAndPort removes an address added by AddIPAndPort.
func (b *Blacklist) RemoveIPAndPort(ipAndPort string) {
	if ok, n := checkIPAndPort(ipAndPort); ok {
		b.ipAndPort.Remove(n)
	}
}

// Size returns the number of entries.
func (b *Blacklist) Size() int {
	return int(b.ipAndPort.Size())
}

// BlackAddr reports whether addr or its IP was blacklisted.
func (b *Blacklist) BlackAddr(addr net.Addr) bool {
	if addr == nil {
		return false
	}
	netAddrStr := addr.String()
	if b.ipAndPort.Exist(netAddrStr) {
		return true
	}
	ip6 := strings.Contains(netAddrStr, "[")
	ip, _, err := net.SplitHostPort(netAddrStr)
	if err != nil {
		return false
	}
	if ip6 {
		ip = "[" + ip + "]"
	}
	return b.ipAndPort.Exist(ip)
}

// checkIPAndPort validates an "IP:Port" or bare IP entry and normalizes
// bare IPv6 addresses to their bracketed form.
func checkIPAndPort(ipAndPort string) (bool, string) {
	if host, port, err := net.SplitHostPort(ipAndPort); err == nil {
		if net.ParseIP(host) == nil {
			return false, ""
		}
		if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
			return false, ""
		}
		return true, ipAndPort
	}
	// bare IP
	bare := strings.Trim(ipAndPort, "[]")
	if net.ParseIP(bare) == nil {
		return false, ""
	}
	if strings.Contains(bare, ":") {
		return true, "[" + bare + "]"
	}
	return true, bare
}
