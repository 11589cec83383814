package transport

import "net"

// ResolveUDPAddr resolves a host:port string to a UDP address, the shape
// every Send call and session lookup key in this codebase takes. This
// system speaks UDP exclusively, so there is no transport-type tag
// wrapped around net.Addr.
func ResolveUDPAddr(s string) (net.Addr, error) {
	return net.ResolveUDPAddr("udp", s)
}

// AddrKey returns a comparable, stable string key for a peer address,
// suitable for use as a map key in the session registry. net.Addr values
// returned by different calls to ReadFrom for the same peer are not
// guaranteed to be == comparable across all net.Addr implementations, so
// callers key maps off this string form instead.
func AddrKey(addr net.Addr) string {
	return addr.Network() + ":" + addr.String()
}
