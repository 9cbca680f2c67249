package packet

import (
	"fmt"
	"net/netip"

	"github.com/xorproute/xorpcore/internal/ipaddr"
)

// RouteEntryV2 is one 20-byte RIPv2 route entry (spec §4.5).
type RouteEntryV2 struct {
	AFI     uint16
	Tag     uint16
	Addr    ipaddr.V4
	Mask    int // prefix length, 0..32; 0 may mean "apply classful fallback"
	Nexthop ipaddr.V4
	Metric  uint32
}

func EncodeRouteEntryV2(e RouteEntryV2) []byte {
	buf := make([]byte, RouteEntrySize)
	putUint16(buf[0:2], e.AFI)
	putUint16(buf[2:4], e.Tag)
	copy(buf[4:8], e.Addr.Bytes())
	copy(buf[8:12], maskBytes(e.Mask))
	copy(buf[12:16], e.Nexthop.Bytes())
	putUint32(buf[16:20], e.Metric)
	return buf
}

func maskBytes(prefixLen int) []byte {
	var m [4]byte
	full := prefixLen / 8
	for i := 0; i < full && i < 4; i++ {
		m[i] = 0xFF
	}
	if full < 4 {
		rem := prefixLen % 8
		if rem > 0 {
			m[full] = byte(0xFF << (8 - rem))
		}
	}
	return m[:]
}

func maskLen(mask [4]byte) int {
	n := 0
	for _, b := range mask {
		for i := 0; i < 8; i++ {
			if b&(0x80>>i) != 0 {
				n++
			} else {
				return n
			}
		}
	}
	return n
}

// DecodeRouteEntryV2 parses one 20-byte wire entry without applying the
// semantic acceptance rules (classful fallback, martian rejection,
// self-route/next-hop substitution) — those run afterward in Normalize,
// which needs receive-context (source address, receiving subnet) the raw
// decode does not have.
func DecodeRouteEntryV2(b []byte) (RouteEntryV2, error) {
	if len(b) != RouteEntrySize {
		return RouteEntryV2{}, fmt.Errorf("packet: v2 entry must be %d bytes, got %d", RouteEntrySize, len(b))
	}
	var addrBytes, maskB, nhBytes [4]byte
	copy(addrBytes[:], b[4:8])
	copy(maskB[:], b[8:12])
	copy(nhBytes[:], b[12:16])
	return RouteEntryV2{
		AFI:     getUint16(b[0:2]),
		Tag:     getUint16(b[2:4]),
		Addr:    ipaddr.V4FromBytes(addrBytes),
		Mask:    maskLen(maskB),
		Nexthop: ipaddr.V4FromBytes(nhBytes),
		Metric:  getUint32(b[16:20]),
	}, nil
}

// IsAuthSlot reports whether the raw 20-byte entry is an authentication
// entry (AFI == 0xFFFF) rather than a route entry.
func IsAuthSlot(b []byte) bool {
	return len(b) == RouteEntrySize && getUint16(b[0:2]) == AFIAuth
}

// NormalizedEntry is a route entry after classful fallback, martian
// rejection, and next-hop substitution have been applied (spec §4.5
// "Parsing rules").
type NormalizedEntry struct {
	Net     ipaddr.Prefix[ipaddr.V4]
	Nexthop ipaddr.V4
	Tag     uint16
	Metric  uint32
}

// Normalize applies the §4.5 parsing rules to one decoded RIPv2 entry:
//   - metric > 16 is rejected
//   - mask == 0 && addr != 0 derives a classful prefix length (8/16/24)
//   - routes to multicast, loopback, class-E, the receiver's own address,
//     or its broadcast address are rejected
//   - next hop 0 or outside the receiving subnet is replaced by src
func Normalize(e RouteEntryV2, src ipaddr.V4, rxSubnet netip.Prefix, ownAddrs []ipaddr.V4) (NormalizedEntry, error) {
	if e.Metric > 16 {
		return NormalizedEntry{}, fmt.Errorf("packet: metric %d exceeds infinity", e.Metric)
	}

	prefixLen := e.Mask
	if prefixLen == 0 && e.Addr.Addr() != netip.IPv4Unspecified() {
		prefixLen = ipaddr.ClassfulPrefixLen(e.Addr)
		if prefixLen == 0 {
			return NormalizedEntry{}, fmt.Errorf("packet: cannot classfully derive prefix for %s", e.Addr)
		}
	}
	if prefixLen > 32 {
		return NormalizedEntry{}, fmt.Errorf("packet: prefix length %d exceeds 32", prefixLen)
	}

	if e.Addr.IsMulticast() || e.Addr.IsLoopback() || e.Addr.IsClassE() {
		return NormalizedEntry{}, fmt.Errorf("packet: martian route %s rejected", e.Addr)
	}
	for _, own := range ownAddrs {
		if e.Addr == own {
			return NormalizedEntry{}, fmt.Errorf("packet: route to receiver's own address %s rejected", e.Addr)
		}
	}
	if rxSubnet.IsValid() && rxSubnet.Addr().Is4() && rxSubnet.Bits() < 31 {
		net4 := rxSubnet.Masked().Addr().As4()
		var bcast [4]byte
		putUint32(bcast[:], getUint32(net4[:])|(uint32(1)<<(32-rxSubnet.Bits())-1))
		if e.Addr == ipaddr.V4FromBytes(bcast) {
			return NormalizedEntry{}, fmt.Errorf("packet: route to receiving subnet's broadcast address %s rejected", e.Addr)
		}
	}

	nh := e.Nexthop
	if nh.Addr() == netip.IPv4Unspecified() || (rxSubnet.IsValid() && !rxSubnet.Contains(nh.Addr())) {
		nh = src
	}

	return NormalizedEntry{
		Net:     ipaddr.PrefixV4(e.Addr, prefixLen),
		Nexthop: nh,
		Tag:     e.Tag,
		Metric:  e.Metric,
	}, nil
}
