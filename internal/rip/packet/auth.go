package packet

import "fmt"

// PlaintextAuthEntry is a 20-byte RIPv2 plaintext authentication entry
// (AFI=0xFFFF, auth_type=2, 16-byte key padded with zeros).
type PlaintextAuthEntry struct {
	Key [16]byte
}

func EncodePlaintextAuth(e PlaintextAuthEntry) []byte {
	buf := make([]byte, RouteEntrySize)
	putUint16(buf[0:2], AFIAuth)
	putUint16(buf[2:4], AuthTypePlaintext)
	copy(buf[4:20], e.Key[:])
	return buf
}

func DecodePlaintextAuth(b []byte) (PlaintextAuthEntry, error) {
	if len(b) != RouteEntrySize {
		return PlaintextAuthEntry{}, fmt.Errorf("packet: auth entry must be %d bytes", RouteEntrySize)
	}
	var e PlaintextAuthEntry
	copy(e.Key[:], b[4:20])
	return e, nil
}

// MD5AuthHeader is the 20-byte RIPv2 MD5 authentication header that
// precedes the route entries (AFI=0xFFFF, auth_type=3). AuthDataOffset
// counts bytes from the start of the RIP header to the start of the MD5
// trailer that follows the last route entry.
type MD5AuthHeader struct {
	AuthDataOffset uint16
	KeyID          byte
	AuthDataLen    byte
	SeqNo          uint32
}

func EncodeMD5AuthHeader(e MD5AuthHeader) []byte {
	buf := make([]byte, RouteEntrySize)
	putUint16(buf[0:2], AFIAuth)
	putUint16(buf[2:4], AuthTypeMD5)
	putUint16(buf[4:6], e.AuthDataOffset)
	buf[6] = e.KeyID
	buf[7] = e.AuthDataLen
	putUint32(buf[8:12], e.SeqNo)
	// bytes 12-19 reserved, must be zero
	return buf
}

func DecodeMD5AuthHeader(b []byte) (MD5AuthHeader, error) {
	if len(b) != RouteEntrySize {
		return MD5AuthHeader{}, fmt.Errorf("packet: auth entry must be %d bytes", RouteEntrySize)
	}
	return MD5AuthHeader{
		AuthDataOffset: getUint16(b[4:6]),
		KeyID:          b[6],
		AuthDataLen:    b[7],
		SeqNo:          getUint32(b[8:12]),
	}, nil
}

// AuthKind classifies a decoded auth slot.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthKindPlaintext
	AuthKindMD5
)

// ClassifyAuthSlot inspects the first 20-byte entry of a RIPv2 packet body
// and reports which authentication form (if any) is present.
func ClassifyAuthSlot(b []byte) (AuthKind, error) {
	if !IsAuthSlot(b) {
		return AuthNone, nil
	}
	authType := getUint16(b[2:4])
	switch authType {
	case AuthTypePlaintext:
		return AuthKindPlaintext, nil
	case AuthTypeMD5:
		return AuthKindMD5, nil
	default:
		return AuthNone, fmt.Errorf("packet: unknown auth_type %d", authType)
	}
}

// MD5Trailer is the 20-byte trailer appended after all route entries when
// MD5 authentication is in effect (AFI=0xFFFF, magic=1, 16-byte digest).
type MD5Trailer struct {
	Digest [16]byte
}

func EncodeMD5Trailer(t MD5Trailer) []byte {
	buf := make([]byte, MD5TrailerSize)
	putUint16(buf[0:2], AFIAuth)
	putUint16(buf[2:4], MD5Magic)
	copy(buf[4:20], t.Digest[:])
	return buf
}

func DecodeMD5Trailer(b []byte) (MD5Trailer, error) {
	if len(b) != MD5TrailerSize {
		return MD5Trailer{}, fmt.Errorf("packet: md5 trailer must be %d bytes", MD5TrailerSize)
	}
	if getUint16(b[0:2]) != AFIAuth {
		return MD5Trailer{}, fmt.Errorf("packet: md5 trailer afi mismatch")
	}
	if getUint16(b[2:4]) != MD5Magic {
		return MD5Trailer{}, fmt.Errorf("packet: md5 trailer magic mismatch")
	}
	var t MD5Trailer
	copy(t.Digest[:], b[4:20])
	return t, nil
}
