package auth

import (
	"crypto/md5"
	"fmt"
	"time"

	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/rip/packet"
	"github.com/xorproute/xorpcore/internal/runtime"
)

// MD5 implements Handler for RIPv2 keyed MD5 authentication (RFC 2082,
// spec §4.6 "md5"), grounded on MD5AuthHandler. Keys move between a
// pending chain (not yet started or already expired) and a valid chain
// as their start/end times arrive, scheduled on rt's clock. When the
// chain is empty, MD5 behaves exactly like None (XORP's "no valid keys,
// then don't use any authentication" rule).
type MD5 struct {
	rt      *runtime.Runtime
	valid   []*MD5Key
	invalid []*MD5Key
}

func NewMD5(rt *runtime.Runtime) *MD5 {
	return &MD5{rt: rt}
}

func (m *MD5) Name() string {
	if len(m.valid) == 0 {
		return None{}.Name()
	}
	return "md5"
}

func (m *MD5) Reset() {
	if len(m.valid) == 0 {
		return
	}
	for _, k := range m.valid {
		k.Reset()
	}
}

func (m *MD5) HeadEntries() int {
	if len(m.valid) == 0 {
		return None{}.HeadEntries()
	}
	return 1
}

func (m *MD5) MaxRoutingEntries() int {
	if len(m.valid) == 0 {
		return None{}.MaxRoutingEntries()
	}
	return RoutesPerPacket - 1
}

// Empty reports whether the handler has no keys configured at all.
func (m *MD5) Empty() bool { return len(m.valid) == 0 && len(m.invalid) == 0 }

// AddKey installs a key active during [start, end). end == time.Time{}
// (zero value) means "never expires". Mirrors MD5AuthHandler::add_key,
// including the "keep the last expired key alive" persistence rule and
// scheduling start/stop transitions on rt's clock.
func (m *MD5) AddKey(id byte, key string, start, end time.Time, now time.Time) error {
	if !end.IsZero() && start.After(end) {
		return fmt.Errorf("auth: key %d start time is after end time", id)
	}
	if !end.IsZero() && end.Before(now) {
		return fmt.Errorf("auth: key %d end time is in the past", id)
	}

	if len(m.valid) == 1 && m.valid[0].IsPersistent() {
		m.valid[0].SetPersistent(false)
		m.invalid = append(m.invalid, m.valid[0])
		m.valid = nil
	}

	m.removeKey(id)

	nk := newMD5Key(id, key, start, end)
	pending := start.After(now)
	if pending {
		nk.startTimer = m.rt.AfterFunc(start.Sub(now), func() { m.keyStart(id) })
	}
	if !end.IsZero() {
		nk.stopTimer = m.rt.AfterFunc(end.Sub(now), func() { m.keyStop(id) })
	}

	if pending {
		m.invalid = append(m.invalid, nk)
	} else {
		m.valid = append(m.valid, nk)
	}
	return nil
}

// RemoveKey deletes key id from whichever chain holds it.
func (m *MD5) RemoveKey(id byte) error {
	if !m.removeKey(id) {
		return fmt.Errorf("auth: no such key %d", id)
	}
	return nil
}

func (m *MD5) removeKey(id byte) bool {
	for i, k := range m.valid {
		if k.IDMatches(id) {
			stopKeyTimers(k)
			m.valid = append(m.valid[:i], m.valid[i+1:]...)
			return true
		}
	}
	for i, k := range m.invalid {
		if k.IDMatches(id) {
			stopKeyTimers(k)
			m.invalid = append(m.invalid[:i], m.invalid[i+1:]...)
			return true
		}
	}
	return false
}

func stopKeyTimers(k *MD5Key) {
	if k.startTimer != nil {
		k.startTimer.Stop()
	}
	if k.stopTimer != nil {
		k.stopTimer.Stop()
	}
}

func (m *MD5) keyStart(id byte) {
	for i, k := range m.invalid {
		if k.IDMatches(id) {
			m.invalid = append(m.invalid[:i], m.invalid[i+1:]...)
			m.valid = append(m.valid, k)
			return
		}
	}
}

// keyStop moves an expiring key to the invalid chain, unless it is the
// last valid key — RFC 2082 §4.3 requires the last key be kept usable
// until the configuration changes.
func (m *MD5) keyStop(id byte) {
	for i, k := range m.valid {
		if !k.IDMatches(id) {
			continue
		}
		if len(m.valid) == 1 {
			k.SetPersistent(true)
			return
		}
		m.valid = append(m.valid[:i], m.valid[i+1:]...)
		m.invalid = append(m.invalid, k)
		return
	}
}

func (m *MD5) findValid(id byte) *MD5Key {
	for _, k := range m.valid {
		if k.IDMatches(id) {
			return k
		}
	}
	return nil
}

func (m *MD5) AuthenticateInbound(raw []byte, pkt packet.PacketV2, src ipaddr.V4, newPeer bool) ([]packet.RouteEntryV2, error) {
	if len(m.valid) == 0 {
		return None{}.AuthenticateInbound(raw, pkt, src, newPeer)
	}

	if pkt.MD5Auth == nil || pkt.MD5 == nil {
		return nil, fmt.Errorf("auth: not an MD5 authenticated packet")
	}
	mpr := pkt.MD5Auth
	if int(mpr.AuthDataLen) != packet.MD5TrailerSize {
		return nil, fmt.Errorf("auth: wrong number of auth bytes (%d != %d)", mpr.AuthDataLen, packet.MD5TrailerSize)
	}
	if int(mpr.AuthDataOffset)+int(mpr.AuthDataLen) != len(raw) {
		return nil, fmt.Errorf("auth: auth data offset/size does not match packet size (%d+%d != %d)",
			mpr.AuthDataOffset, mpr.AuthDataLen, len(raw))
	}

	key := m.findValid(mpr.KeyID)
	if key == nil {
		return nil, fmt.Errorf("auth: packet with key ID %d for which no key is configured", mpr.KeyID)
	}

	if newPeer {
		key.ResetSrc(src)
	}

	lastSeqno := key.LastSeqnoRecv(src)
	if key.PacketsReceived(src) && !(newPeer && mpr.SeqNo == 0) && (mpr.SeqNo-lastSeqno >= 0x7fffffff) {
		return nil, fmt.Errorf("auth: bad sequence number 0x%08x < 0x%08x", mpr.SeqNo, lastSeqno)
	}

	kb := key.KeyBytes()
	digest := md5.Sum(append(append([]byte{}, raw[:len(raw)-16]...), kb[:]...))
	if digest != pkt.MD5.Digest {
		return nil, fmt.Errorf("auth: authentication digest doesn't match local key (key ID = %d)", mpr.KeyID)
	}

	key.SetLastSeqnoRecv(src, mpr.SeqNo)
	return pkt.Entries, nil
}

func (m *MD5) AuthenticateOutbound(pkt packet.PacketV2) ([][]byte, error) {
	if len(m.valid) == 0 {
		return None{}.AuthenticateOutbound(pkt)
	}

	out := make([][]byte, 0, len(m.valid))
	authOffset := packet.HeaderSize + packet.RouteEntrySize + len(pkt.Entries)*packet.RouteEntrySize
	for _, key := range m.valid {
		cp := pkt
		h := MD5AuthHeaderFor(key, authOffset)
		cp.MD5Auth = &h
		cp.MD5 = &packet.MD5Trailer{}
		buf := packet.EncodeV2(cp)

		kb := key.KeyBytes()
		digest := md5.Sum(append(append([]byte{}, buf[:len(buf)-16]...), kb[:]...))
		copy(buf[len(buf)-16:], digest[:])

		out = append(out, buf)
	}
	return out, nil
}

func MD5AuthHeaderFor(key *MD5Key, authOffset int) packet.MD5AuthHeader {
	return packet.MD5AuthHeader{
		AuthDataOffset: uint16(authOffset),
		KeyID:          key.ID,
		AuthDataLen:    packet.MD5TrailerSize,
		SeqNo:          key.NextSeqnoOut(),
	}
}
