package rate

import "net/netip"

// IsTrustedAddr reports loopback and private-range (RFC 1918, RFC 4193)
// addresses. Unparsable input is untrusted.
func IsTrustedAddr(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate()
}
