// Package auth implements the AuthHandler (spec §4.6, C7): none,
// plaintext, and MD5 authentication for RIPv2 packets. MD5 key lifecycle
// (pending/active/expired) and inbound sequence-number replay tracking
// are grounded on original_source's xorp/rip/auth.cc.
package auth

import (
	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/rip/packet"
)

// RoutesPerPacket is the number of 20-byte route entries that fit in a
// maximum-size RIPv2 packet (spec §4.5): (512-4)/20.
const RoutesPerPacket = (packet.MaxPacketBytes - packet.HeaderSize) / packet.RouteEntrySize

// Handler authenticates inbound packets and produces authenticated
// outbound packets. Implementations are None, Plaintext, and MD5.
type Handler interface {
	Name() string
	Reset()
	// HeadEntries is the number of leading route-entry slots consumed by
	// authentication data (0 for none, 1 for plaintext/MD5).
	HeadEntries() int
	MaxRoutingEntries() int
	// AuthenticateInbound validates raw against this handler's scheme and
	// returns the route entries carried by pkt once validated. src is the
	// packet's source address; newPeer relaxes the sequence-number replay
	// check for MD5 (spec §4.6 "new peer exception").
	AuthenticateInbound(raw []byte, pkt packet.PacketV2, src ipaddr.V4, newPeer bool) ([]packet.RouteEntryV2, error)
	// AuthenticateOutbound returns the wire bytes of one or more
	// authenticated copies of pkt (MD5 produces one copy per valid key).
	AuthenticateOutbound(pkt packet.PacketV2) ([][]byte, error)
}
