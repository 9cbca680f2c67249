// Package ipaddr collapses the template families the reference
// implementation spells out per-address-family (Port<IPv4>/Port<IPv6>,
// AuthHandler<IPv4>/<IPv6>, ...) into one generic parameter plus two
// address newtypes sharing a common Family interface.
package ipaddr

import "net/netip"

// Family is the shared contract V4 and V6 both satisfy: byte width, prefix
// semantics, and the classification predicates used by the RIP codec and
// the FIB to reject martian or self routes.
type Family interface {
	comparable
	Bytes() []byte
	BitLen() int
	IsUnicast() bool
	IsMulticast() bool
	IsLinkLocalUnicast() bool
	IsLoopback() bool
	String() string
}

// V4 wraps a 4-byte address.
type V4 struct{ addr netip.Addr }

// V6 wraps a 16-byte address.
type V6 struct{ addr netip.Addr }

func NewV4(addr netip.Addr) V4 {
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	return V4{addr}
}

func NewV6(addr netip.Addr) V6 { return V6{addr} }

func V4FromBytes(b [4]byte) V4 { return V4{netip.AddrFrom4(b)} }
func V6FromBytes(b [16]byte) V6 { return V6{netip.AddrFrom16(b)} }

func V4Zero() V4 { return V4{netip.IPv4Unspecified()} }
func V6Zero() V6 { return V6{netip.IPv6Unspecified()} }

func (a V4) Addr() netip.Addr { return a.addr }
func (a V6) Addr() netip.Addr { return a.addr }

// Bytes returns the raw address bytes (4 for V4, 16 for V6) for use as a
// trie key.
func (a V4) Bytes() []byte {
	b := a.addr.As4()
	return b[:]
}

func (a V6) Bytes() []byte {
	b := a.addr.As16()
	return b[:]
}

func (a V4) BitLen() int { return 32 }
func (a V6) BitLen() int { return 128 }

func (a V4) String() string { return a.addr.String() }
func (a V6) String() string { return a.addr.String() }

func (a V4) IsUnicast() bool {
	return a.addr.IsValid() && !a.addr.IsMulticast() && !a.addr.IsUnspecified()
}
func (a V6) IsUnicast() bool {
	return a.addr.IsValid() && !a.addr.IsMulticast() && !a.addr.IsUnspecified()
}

func (a V4) IsMulticast() bool { return a.addr.IsMulticast() }
func (a V6) IsMulticast() bool { return a.addr.IsMulticast() }

func (a V4) IsLinkLocalUnicast() bool { return a.addr.IsLinkLocalUnicast() }
func (a V6) IsLinkLocalUnicast() bool { return a.addr.IsLinkLocalUnicast() }

func (a V4) IsLoopback() bool { return a.addr.IsLoopback() }
func (a V6) IsLoopback() bool { return a.addr.IsLoopback() }

// IsClassE reports whether a is in the (RIPv2-reserved) class E range
// 240.0.0.0/4.
func (a V4) IsClassE() bool {
	b := a.addr.As4()
	return b[0] >= 240
}

// IsBroadcast reports whether a is the all-ones limited broadcast address.
func (a V4) IsBroadcast() bool {
	return a.addr == netip.AddrFrom4([4]byte{255, 255, 255, 255})
}

// ClassfulPrefixLen derives the classful prefix length (8/16/24) from the
// leading octet, per RFC 2453's classful-fallback rule for RIPv2 entries
// whose mask field is zero. Returns 0 if addr is also zero (unresolvable).
func ClassfulPrefixLen(a V4) int {
	b := a.addr.As4()
	switch {
	case b[0] == 0:
		return 0
	case b[0] < 128:
		return 8
	case b[0] < 192:
		return 16
	case b[0] < 224:
		return 24
	default:
		// class D/E: no classful interpretation.
		return 0
	}
}

// Prefix is a generic (family, length) network, used as the RouteDB and
// FIB key.
type Prefix[A Family] struct {
	Addr A
	Len  int
}

func (p Prefix[A]) String() string {
	return p.Addr.String() + "/" + itoa(p.Len)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// PrefixV4 builds a Prefix for V4 from an address and a length.
func PrefixV4(addr V4, length int) Prefix[V4] {
	return Prefix[V4]{Addr: addr, Len: length}
}

func PrefixV6(addr V6, length int) Prefix[V6] {
	return Prefix[V6]{Addr: addr, Len: length}
}

// Contains reports whether addr agrees with p.Addr on its leading p.Len
// bits.
func (p Prefix[A]) Contains(addr A) bool {
	switch v := any(p.Addr).(type) {
	case V4:
		o := any(addr).(V4)
		return netip.PrefixFrom(v.addr, p.Len).Contains(o.addr)
	case V6:
		o := any(addr).(V6)
		return netip.PrefixFrom(v.addr, p.Len).Contains(o.addr)
	}
	return false
}

// IsDefault reports whether the prefix is the default route (0/0).
func (p Prefix[A]) IsDefault() bool { return p.Len == 0 }
