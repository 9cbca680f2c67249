package packet

import (
	"net/netip"
	"testing"

	"github.com/xorproute/xorpcore/internal/ipaddr"
)

func v4(s string) ipaddr.V4 { return ipaddr.NewV4(netip.MustParseAddr(s)) }
func v6(s string) ipaddr.V6 { return ipaddr.NewV6(netip.MustParseAddr(s)) }

func TestHeaderRoundTrip(t *testing.T) {
	buf := EncodeHeader(Header{Command: CmdResponse, Version: RIPv2Version})
	h, rest, err := DecodeHeader(buf, RIPv2Version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Command != CmdResponse || h.Version != RIPv2Version {
		t.Fatalf("round trip mismatch: %+v", h)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no remaining bytes, got %d", len(rest))
	}
}

func TestDecodeHeaderRejectsBadVersion(t *testing.T) {
	buf := EncodeHeader(Header{Command: CmdResponse, Version: 9})
	if _, _, err := DecodeHeader(buf, RIPv2Version); err == nil {
		t.Fatal("expected error for version mismatch")
	}
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	if _, _, err := DecodeHeader([]byte{1, 2}, RIPv2Version); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestRouteEntryV2RoundTrip(t *testing.T) {
	e := RouteEntryV2{
		AFI:     2,
		Tag:     7,
		Addr:    v4("10.0.0.0"),
		Mask:    24,
		Nexthop: v4("10.0.0.1"),
		Metric:  3,
	}
	buf := EncodeRouteEntryV2(e)
	if len(buf) != RouteEntrySize {
		t.Fatalf("expected %d bytes, got %d", RouteEntrySize, len(buf))
	}
	got, err := DecodeRouteEntryV2(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Addr != e.Addr || got.Nexthop != e.Nexthop || got.Mask != e.Mask || got.Metric != e.Metric || got.Tag != e.Tag {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestDecodeV2PlaintextAuth(t *testing.T) {
	var key [16]byte
	copy(key[:], []byte("sharedsecretkey"))
	pkt := PacketV2{
		Header: Header{Command: CmdResponse, Version: RIPv2Version},
		Auth:   &PlaintextAuthEntry{Key: key},
		Entries: []RouteEntryV2{
			{Addr: v4("192.168.1.0"), Mask: 24, Nexthop: v4("0.0.0.0"), Metric: 1},
		},
	}
	buf := EncodeV2(pkt)
	got, err := DecodeV2(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Auth == nil || got.Auth.Key != key {
		t.Fatalf("expected plaintext auth to round trip, got %+v", got.Auth)
	}
	if len(got.Entries) != 1 {
		t.Fatalf("expected 1 route entry, got %d", len(got.Entries))
	}
}

func TestDecodeV2MD5AuthWithTrailer(t *testing.T) {
	pkt := PacketV2{
		Header:  Header{Command: CmdResponse, Version: RIPv2Version},
		MD5Auth: &MD5AuthHeader{AuthDataOffset: 24, KeyID: 1, AuthDataLen: 16, SeqNo: 42},
		Entries: []RouteEntryV2{
			{Addr: v4("172.16.0.0"), Mask: 16, Nexthop: v4("0.0.0.0"), Metric: 2},
		},
		MD5: &MD5Trailer{Digest: [16]byte{1, 2, 3}},
	}
	buf := EncodeV2(pkt)
	got, err := DecodeV2(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MD5Auth == nil || got.MD5Auth.SeqNo != 42 {
		t.Fatalf("expected md5 auth header to round trip, got %+v", got.MD5Auth)
	}
	if got.MD5 == nil || got.MD5.Digest != pkt.MD5.Digest {
		t.Fatalf("expected md5 trailer to round trip, got %+v", got.MD5)
	}
	if len(got.Entries) != 1 {
		t.Fatalf("expected 1 route entry, got %d", len(got.Entries))
	}
}

func TestDecodeV2RejectsMisalignedBody(t *testing.T) {
	buf := append(EncodeHeader(Header{Command: CmdResponse, Version: RIPv2Version}), 1, 2, 3)
	if _, err := DecodeV2(buf); err == nil {
		t.Fatal("expected error for misaligned body")
	}
}

func TestNormalizeClassfulFallback(t *testing.T) {
	e := RouteEntryV2{Addr: v4("10.1.2.0"), Mask: 0, Nexthop: v4("0.0.0.0"), Metric: 1}
	src := v4("10.0.0.1")
	n, err := Normalize(e, src, netip.Prefix{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Net.Len != 8 {
		t.Fatalf("expected classful /8 for class A address, got /%d", n.Net.Len)
	}
}

func TestNormalizeRejectsMetricOverInfinity(t *testing.T) {
	e := RouteEntryV2{Addr: v4("10.0.0.0"), Mask: 24, Nexthop: v4("0.0.0.0"), Metric: 17}
	if _, err := Normalize(e, v4("10.0.0.1"), netip.Prefix{}, nil); err == nil {
		t.Fatal("expected error for metric exceeding infinity")
	}
}

func TestNormalizeRejectsMartianRoute(t *testing.T) {
	e := RouteEntryV2{Addr: v4("224.0.0.9"), Mask: 32, Nexthop: v4("0.0.0.0"), Metric: 1}
	if _, err := Normalize(e, v4("10.0.0.1"), netip.Prefix{}, nil); err == nil {
		t.Fatal("expected error for multicast martian route")
	}
}

func TestNormalizeSubstitutesNexthopOutsideSubnet(t *testing.T) {
	e := RouteEntryV2{Addr: v4("10.1.0.0"), Mask: 24, Nexthop: v4("192.168.1.1"), Metric: 1}
	src := v4("10.0.0.2")
	subnet := netip.MustParsePrefix("10.0.0.0/24")
	n, err := Normalize(e, src, subnet, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Nexthop != src {
		t.Fatalf("expected next hop substituted with source %s, got %s", src, n.Nexthop)
	}
}

func TestRouteEntryNgRoundTrip(t *testing.T) {
	e := RouteEntryNg{Prefix: v6("2001:db8::"), Tag: 5, PrefixLen: 32, Metric: 2}
	buf := EncodeRouteEntryNg(e)
	got, err := DecodeRouteEntryNg(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != e {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestDecodeNgThreadsNexthopEntry(t *testing.T) {
	nh := v6("fe80::1")
	entries := []NgEntry{
		{Route: RouteEntryNg{Prefix: nh, Metric: NexthopMetric}},
		{Route: RouteEntryNg{Prefix: v6("2001:db8::"), PrefixLen: 32, Metric: 1}, Nexthop: &nh},
	}
	buf := EncodeNg(entries)
	got, err := DecodeNg(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 route entry (next-hop entry consumed), got %d", len(got))
	}
	if got[0].Nexthop == nil || *got[0].Nexthop != nh {
		t.Fatalf("expected next hop %s threaded onto route, got %+v", nh, got[0].Nexthop)
	}
}

func TestDecodeNgRejectsOversizedPrefixLen(t *testing.T) {
	buf := make([]byte, RouteEntrySize)
	buf[18] = 200
	if _, err := DecodeNg(buf); err == nil {
		t.Fatal("expected error for prefix length exceeding 128")
	}
}

func TestPacketNgRoundTrip(t *testing.T) {
	pkt := PacketNg{
		Header: Header{Command: CmdResponse, Version: RIPngVersion},
		Entries: []NgEntry{
			{Route: RouteEntryNg{Prefix: v6("2001:db8::"), PrefixLen: 32, Metric: 1}},
		},
	}
	buf := EncodeNgPacket(pkt)
	got, err := DecodeNgPacket(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].Route.Prefix != v6("2001:db8::") {
		t.Fatalf("round trip mismatch: %+v", got.Entries)
	}
}
