// Package packet implements the RipPacketCodec (spec §4.5, C6): encoding
// and decoding of RIP headers, route entries, and authentication
// trailers, for both RIPv2 (RFC 2453) and RIPng (RFC 2080).
package packet

import (
	"encoding/binary"
	"fmt"
)

const (
	CmdRequest  byte = 1
	CmdResponse byte = 2

	RIPv2Version byte = 2
	RIPngVersion byte = 1

	HeaderSize    = 4
	RouteEntrySize = 20
	MaxPacketBytes = 512

	AFIInet = 2
	AFIAuth = 0xFFFF

	AuthTypePlaintext = 2
	AuthTypeMD5       = 3
	MD5Magic          = 1
	MD5TrailerSize    = 20
)

// Header is the 4-byte common RIP header (spec §4.5 wire format).
type Header struct {
	Command byte
	Version byte
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Command
	buf[1] = h.Version
	// bytes 2-3 must-be-zero
	return buf
}

// DecodeHeader validates and parses the 4-byte header, returning the
// remaining entry bytes.
func DecodeHeader(buf []byte, wantVersion byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, fmt.Errorf("packet: buffer too short for header (%d bytes)", len(buf))
	}
	if len(buf) > MaxPacketBytes+MD5TrailerSize {
		return Header{}, nil, fmt.Errorf("packet: buffer too large (%d bytes)", len(buf))
	}
	h := Header{Command: buf[0], Version: buf[1]}
	if h.Command != CmdRequest && h.Command != CmdResponse {
		return Header{}, nil, fmt.Errorf("packet: bad command %d", h.Command)
	}
	if h.Version != wantVersion {
		return Header{}, nil, fmt.Errorf("packet: bad version %d (want %d)", h.Version, wantVersion)
	}
	return h, buf[HeaderSize:], nil
}

func putUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func getUint16(b []byte) uint16    { return binary.BigEndian.Uint16(b) }
func putUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getUint32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
