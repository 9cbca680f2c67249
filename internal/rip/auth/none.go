package auth

import (
	"fmt"

	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/rip/packet"
)

// None implements Handler for unauthenticated RIPv2 (spec §4.6 "none").
type None struct{}

func (None) Name() string { return "none" }
func (None) Reset()       {}
func (None) HeadEntries() int {
	return 0
}
func (None) MaxRoutingEntries() int { return RoutesPerPacket }

func (None) AuthenticateInbound(_ []byte, pkt packet.PacketV2, _ ipaddr.V4, _ bool) ([]packet.RouteEntryV2, error) {
	if pkt.Auth != nil || pkt.MD5Auth != nil {
		return nil, fmt.Errorf("auth: unexpected authentication data in unauthenticated packet")
	}
	return pkt.Entries, nil
}

func (None) AuthenticateOutbound(pkt packet.PacketV2) ([][]byte, error) {
	return [][]byte{packet.EncodeV2(pkt)}, nil
}
