package auth

import (
	"fmt"

	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/rip/packet"
)

// Plaintext implements Handler for RIPv2 simple password authentication
// (spec §4.6 "simple"). The key is truncated/zero-padded to 16 bytes on
// the wire, matching PlaintextAuthHandler::set_key.
type Plaintext struct {
	Key string
}

func (Plaintext) Name() string { return "simple" }
func (Plaintext) Reset()       {}
func (Plaintext) HeadEntries() int {
	return 1
}
func (Plaintext) MaxRoutingEntries() int { return RoutesPerPacket - 1 }

func (p Plaintext) AuthenticateInbound(_ []byte, pkt packet.PacketV2, _ ipaddr.V4, _ bool) ([]packet.RouteEntryV2, error) {
	if pkt.Auth == nil {
		return nil, fmt.Errorf("auth: not an authenticated packet")
	}
	got := keyBytesToString(pkt.Auth.Key)
	if got != padKey(p.Key) {
		return nil, fmt.Errorf("auth: wrong password")
	}
	return pkt.Entries, nil
}

func (p Plaintext) AuthenticateOutbound(pkt packet.PacketV2) ([][]byte, error) {
	var key [16]byte
	copy(key[:], padKey(p.Key))
	pkt.Auth = &packet.PlaintextAuthEntry{Key: key}
	return [][]byte{packet.EncodeV2(pkt)}, nil
}

func padKey(key string) string {
	if len(key) > 16 {
		key = key[:16]
	}
	b := make([]byte, 16)
	copy(b, key)
	return string(b)
}

func keyBytesToString(b [16]byte) string { return string(b[:]) }
