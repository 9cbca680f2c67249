package packet

import "fmt"

// PacketV2 is a fully decoded RIPv2 datagram.
type PacketV2 struct {
	Header  Header
	Auth    *PlaintextAuthEntry // set iff plaintext auth present
	MD5Auth *MD5AuthHeader      // set iff MD5 auth present
	MD5     *MD5Trailer         // set iff MD5 auth present and trailer parsed
	Entries []RouteEntryV2
}

// DecodeV2 parses a complete RIPv2 datagram (header, optional auth slot,
// route entries, optional MD5 trailer). It performs only wire-level
// validation; classful fallback and martian/self-route rejection are a
// later Normalize pass run with receive-context per entry.
func DecodeV2(buf []byte) (PacketV2, error) {
	h, body, err := DecodeHeader(buf, RIPv2Version)
	if err != nil {
		return PacketV2{}, err
	}
	if len(body)%RouteEntrySize != 0 {
		return PacketV2{}, fmt.Errorf("packet: v2 body length %d not a multiple of %d", len(body), RouteEntrySize)
	}

	var pkt PacketV2
	pkt.Header = h

	if len(body) >= RouteEntrySize && IsAuthSlot(body[0:RouteEntrySize]) {
		kind, err := ClassifyAuthSlot(body[0:RouteEntrySize])
		if err != nil {
			return PacketV2{}, err
		}
		switch kind {
		case AuthKindPlaintext:
			a, err := DecodePlaintextAuth(body[0:RouteEntrySize])
			if err != nil {
				return PacketV2{}, err
			}
			pkt.Auth = &a
			body = body[RouteEntrySize:]
		case AuthKindMD5:
			a, err := DecodeMD5AuthHeader(body[0:RouteEntrySize])
			if err != nil {
				return PacketV2{}, err
			}
			pkt.MD5Auth = &a
			body = body[RouteEntrySize:]
			if len(body) < MD5TrailerSize {
				return PacketV2{}, fmt.Errorf("packet: md5 packet missing trailer")
			}
			trailer := body[len(body)-MD5TrailerSize:]
			t, err := DecodeMD5Trailer(trailer)
			if err != nil {
				return PacketV2{}, err
			}
			pkt.MD5 = &t
			body = body[:len(body)-MD5TrailerSize]
		}
	}

	if len(body)%RouteEntrySize != 0 {
		return PacketV2{}, fmt.Errorf("packet: v2 route entries length %d not a multiple of %d", len(body), RouteEntrySize)
	}
	n := len(body) / RouteEntrySize
	pkt.Entries = make([]RouteEntryV2, 0, n)
	for i := 0; i < n; i++ {
		e, err := DecodeRouteEntryV2(body[i*RouteEntrySize : (i+1)*RouteEntrySize])
		if err != nil {
			return PacketV2{}, err
		}
		pkt.Entries = append(pkt.Entries, e)
	}
	return pkt, nil
}

// EncodeV2 serializes a RIPv2 packet. The MD5 digest field of pkt.MD5 (if
// set) must already be computed by the auth layer over the bytes this
// function would produce with a zeroed digest — callers compute the
// digest after a first EncodeV2 pass and patch it in, mirroring
// original_source's two-pass auth_encode/sign sequence.
func EncodeV2(pkt PacketV2) []byte {
	buf := EncodeHeader(pkt.Header)
	if pkt.Auth != nil {
		buf = append(buf, EncodePlaintextAuth(*pkt.Auth)...)
	}
	if pkt.MD5Auth != nil {
		buf = append(buf, EncodeMD5AuthHeader(*pkt.MD5Auth)...)
	}
	for _, e := range pkt.Entries {
		buf = append(buf, EncodeRouteEntryV2(e)...)
	}
	if pkt.MD5 != nil {
		buf = append(buf, EncodeMD5Trailer(*pkt.MD5)...)
	}
	return buf
}

// PacketNg is a fully decoded RIPng datagram.
type PacketNg struct {
	Header  Header
	Entries []NgEntry
}

func DecodeNgPacket(buf []byte) (PacketNg, error) {
	h, body, err := DecodeHeader(buf, RIPngVersion)
	if err != nil {
		return PacketNg{}, err
	}
	entries, err := DecodeNg(body)
	if err != nil {
		return PacketNg{}, err
	}
	return PacketNg{Header: h, Entries: entries}, nil
}

func EncodeNgPacket(pkt PacketNg) []byte {
	buf := EncodeHeader(pkt.Header)
	buf = append(buf, EncodeNg(pkt.Entries)...)
	return buf
}
