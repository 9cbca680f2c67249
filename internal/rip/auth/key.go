package auth

import (
	"time"

	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/runtime"
)

// MD5Key is one entry of the MD5 authentication key chain (spec §4.6,
// grounded on MD5AuthHandler::MD5Key). A key is "valid" between its start
// and end time, unless it has been marked persistent after being the last
// surviving key to expire (RFC 2082 §4.3).
type MD5Key struct {
	ID          byte
	keyData     [16]byte
	start       time.Time
	end         time.Time
	persistent  bool
	nextSeqOut  uint32
	lastSeqRecv map[ipaddr.V4]uint32
	pktsRecv    map[ipaddr.V4]bool
	startTimer  runtime.Timer
	stopTimer   runtime.Timer
}

func newMD5Key(id byte, key string, start, end time.Time) *MD5Key {
	var kd [16]byte
	copy(kd[:], padKey(key))
	return &MD5Key{
		ID:          id,
		keyData:     kd,
		start:       start,
		end:         end,
		lastSeqRecv: make(map[ipaddr.V4]uint32),
		pktsRecv:    make(map[ipaddr.V4]bool),
	}
}

func (k *MD5Key) IDMatches(id byte) bool { return k.ID == id }

// ValidAt reports whether the key is usable at when: persistent keys are
// always valid; otherwise when must fall within [start, end), and a zero
// end never expires.
func (k *MD5Key) ValidAt(when time.Time) bool {
	if k.persistent {
		return true
	}
	return !when.Before(k.start) && (k.end.IsZero() || when.Before(k.end))
}

func (k *MD5Key) SetPersistent(p bool) { k.persistent = p }
func (k *MD5Key) IsPersistent() bool   { return k.persistent }

// Reset clears all per-source received-sequence state, e.g. on
// configuration reload.
func (k *MD5Key) Reset() {
	k.lastSeqRecv = make(map[ipaddr.V4]uint32)
	k.pktsRecv = make(map[ipaddr.V4]bool)
}

// ResetSrc clears received-sequence state for a single source, used when
// a peer is recognized as new (spec §4.6 "new peer exception").
func (k *MD5Key) ResetSrc(src ipaddr.V4) {
	delete(k.lastSeqRecv, src)
	delete(k.pktsRecv, src)
}

func (k *MD5Key) PacketsReceived(src ipaddr.V4) bool { return k.pktsRecv[src] }

func (k *MD5Key) LastSeqnoRecv(src ipaddr.V4) uint32 { return k.lastSeqRecv[src] }

func (k *MD5Key) SetLastSeqnoRecv(src ipaddr.V4, seqno uint32) {
	k.lastSeqRecv[src] = seqno
	k.pktsRecv[src] = true
}

// NextSeqnoOut returns the sequence number to stamp on the next outbound
// packet signed with this key, then increments it.
func (k *MD5Key) NextSeqnoOut() uint32 {
	s := k.nextSeqOut
	k.nextSeqOut++
	return s
}

func (k *MD5Key) KeyBytes() [16]byte { return k.keyData }
