package packet

import (
	"fmt"

	"github.com/xorproute/xorpcore/internal/ipaddr"
)

// NexthopMetric marks a RIPng route entry as a "next hop" entry rather
// than a route (spec §4.5, RFC 2080 §2.1.1).
const NexthopMetric = 0xFF

// RouteEntryNg is one 20-byte RIPng route entry.
type RouteEntryNg struct {
	Prefix    ipaddr.V6
	Tag       uint16
	PrefixLen int
	Metric    int // 1..16, or NexthopMetric for a next-hop entry
}

func EncodeRouteEntryNg(e RouteEntryNg) []byte {
	buf := make([]byte, RouteEntrySize)
	copy(buf[0:16], e.Prefix.Bytes())
	putUint16(buf[16:18], e.Tag)
	buf[18] = byte(e.PrefixLen)
	buf[19] = byte(e.Metric)
	return buf
}

func DecodeRouteEntryNg(b []byte) (RouteEntryNg, error) {
	if len(b) != RouteEntrySize {
		return RouteEntryNg{}, fmt.Errorf("packet: ripng entry must be %d bytes, got %d", RouteEntrySize, len(b))
	}
	var pb [16]byte
	copy(pb[:], b[0:16])
	e := RouteEntryNg{
		Prefix:    ipaddr.V6FromBytes(pb),
		Tag:       getUint16(b[16:18]),
		PrefixLen: int(b[18]),
		Metric:    int(b[19]),
	}
	if e.PrefixLen > 128 {
		return RouteEntryNg{}, fmt.Errorf("packet: ripng prefix length %d exceeds 128", e.PrefixLen)
	}
	if e.Metric != NexthopMetric && e.Metric > 16 {
		return RouteEntryNg{}, fmt.Errorf("packet: ripng metric %d exceeds infinity", e.Metric)
	}
	return e, nil
}

// IsNexthopEntry reports whether e carries a next-hop override (RFC 2080
// §2.1.1) rather than a route.
func (e RouteEntryNg) IsNexthopEntry() bool { return e.Metric == NexthopMetric }

// DecodeNg parses a full RIPng packet body (after the 4-byte header) into
// route entries, threading next-hop entries through to the routes that
// follow them per RFC 2080: a next-hop entry applies to every subsequent
// route entry until superseded or the packet ends, with tag/prefix_len
// ignored and re-zeroed to the originating interface's link-local address
// when no override applies — that substitution is a Port-level concern,
// so DecodeNg returns the raw entries paired with whichever next hop (if
// any) precedes them.
type NgEntry struct {
	Route   RouteEntryNg
	Nexthop *ipaddr.V6 // nil if no override precedes this entry
}

func DecodeNg(body []byte) ([]NgEntry, error) {
	if len(body)%RouteEntrySize != 0 {
		return nil, fmt.Errorf("packet: ripng body length %d not a multiple of %d", len(body), RouteEntrySize)
	}
	n := len(body) / RouteEntrySize
	entries := make([]NgEntry, 0, n)
	var curNexthop *ipaddr.V6
	for i := 0; i < n; i++ {
		raw, err := DecodeRouteEntryNg(body[i*RouteEntrySize : (i+1)*RouteEntrySize])
		if err != nil {
			return nil, err
		}
		if raw.IsNexthopEntry() {
			nh := raw.Prefix
			curNexthop = &nh
			continue
		}
		entries = append(entries, NgEntry{Route: raw, Nexthop: curNexthop})
	}
	return entries, nil
}

// EncodeNg serializes route entries back to wire form, emitting a next-hop
// entry immediately before any run of routes that share a non-nil,
// changed next hop.
func EncodeNg(entries []NgEntry) []byte {
	buf := make([]byte, 0, len(entries)*RouteEntrySize*2)
	var lastNexthop *ipaddr.V6
	for _, e := range entries {
		if e.Nexthop != nil && (lastNexthop == nil || *lastNexthop != *e.Nexthop) {
			buf = append(buf, EncodeRouteEntryNg(RouteEntryNg{Prefix: *e.Nexthop, Metric: NexthopMetric})...)
			lastNexthop = e.Nexthop
		}
		if e.Nexthop == nil {
			lastNexthop = nil
		}
		buf = append(buf, EncodeRouteEntryNg(e.Route)...)
	}
	return buf
}
