package transport

import "fmt"

// QUIC version 1, RFC 9000.
const supportedVersion uint32 = 1

// MinInitialPacketSize is the smallest UDP payload a client Initial may
// arrive in, RFC 9000 §14.1.
const MinInitialPacketSize = 1200

// maxPacketNumberLen is the widest truncated packet-number encoding §17.1
// permits.
const maxPacketNumberLen = 4

type packetType uint8

const (
	packetTypeInitial packetType = iota
	packetTypeZeroRTT
	packetTypeHandshake
	packetTypeRetry
	packetTypeVersionNegotiation
	packetTypeShort
)

func (t packetType) String() string {
	switch t {
	case packetTypeInitial:
		return "initial"
	case packetTypeZeroRTT:
		return "zerortt"
	case packetTypeHandshake:
		return "handshake"
	case packetTypeRetry:
		return "retry"
	case packetTypeVersionNegotiation:
		return "version_negotiation"
	case packetTypeShort:
		return "short"
	default:
		return "unknown"
	}
}

// packetTypeFromSpace maps a packet-number space onto the header type its
// packets are carried in.
func packetTypeFromSpace(kind SpaceKind) packetType {
	switch kind {
	case SpaceInitial:
		return packetTypeInitial
	case SpaceHandshake:
		return packetTypeHandshake
	case SpaceZeroRTT:
		return packetTypeZeroRTT
	default:
		return packetTypeShort
	}
}

// packetHeader is the version-invariant part of a packet header: the first
// byte, version and connection IDs, RFC 8999.
//
// dcil must be set before decoding a short header: the DCID carries no
// length prefix there, so the endpoint supplies the length of the CIDs it
// issues.
type packetHeader struct {
	flags   uint8
	version uint32
	dcid    []byte
	scid    []byte

	dcil uint8
}

// packet is one coalesced-datagram element: its type, header, and the
// type-specific fields that follow the header on the wire.
type packet struct {
	typ    packetType
	header packetHeader

	token             []byte // Initial and Retry only
	supportedVersions []uint32

	packetNumber    uint64
	largestAcked    uint64 // reference for packet-number truncation
	packetNumberLen int
	payloadLen      int // encode: bytes after the packet number; decodeBody: includes the packet number
	headerLen       int // encode: through the packet number; decodeBody: up to the packet number
	keyPhase        uint8
}

const (
	headerFormLong = 0x80
	headerFixedBit = 0x40
	headerKeyPhase = 0x04
	longTypeMask   = 0x30
	pnLenMask      = 0x03
)

// decodeHeader parses the version-invariant header fields from b. It
// returns the number of bytes consumed; type-specific fields are decoded
// by a following decodeBody call.
func (p *packet) decodeHeader(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortPacket("first byte")
	}
	p.header.flags = b[0]
	n := 1
	if b[0]&headerFormLong == 0 {
		// Short header: fixed bit, then the DCID at the length this
		// endpoint issues.
		if b[0]&headerFixedBit == 0 {
			return 0, newError(ProtocolViolation, "fixed bit not set")
		}
		p.typ = packetTypeShort
		if len(b) < n+int(p.header.dcil) {
			return 0, errShortPacket("dcid")
		}
		p.header.dcid = b[n : n+int(p.header.dcil)]
		n += int(p.header.dcil)
		p.keyPhase = (b[0] & headerKeyPhase) >> 2
		p.headerLen = n
		return n, nil
	}
	if len(b) < n+4 {
		return 0, errShortPacket("version")
	}
	p.header.version = uint32(b[n])<<24 | uint32(b[n+1])<<16 | uint32(b[n+2])<<8 | uint32(b[n+3])
	n += 4
	if p.header.version == 0 {
		p.typ = packetTypeVersionNegotiation
	} else {
		if b[0]&headerFixedBit == 0 {
			return 0, newError(ProtocolViolation, "fixed bit not set")
		}
		p.typ = packetType((b[0] & longTypeMask) >> 4)
	}
	if len(b) < n+1 {
		return 0, errShortPacket("dcid length")
	}
	dcil := int(b[n])
	n++
	if dcil > MaxCIDLength || len(b) < n+dcil {
		return 0, errShortPacket("dcid")
	}
	p.header.dcid = b[n : n+dcil]
	n += dcil
	if len(b) < n+1 {
		return 0, errShortPacket("scid length")
	}
	scil := int(b[n])
	n++
	if scil > MaxCIDLength || len(b) < n+scil {
		return 0, errShortPacket("scid")
	}
	p.header.scid = b[n : n+scil]
	n += scil
	return n, nil
}

// decodeBody parses the type-specific fields that follow the invariant
// header: the Initial token, Retry token, Version Negotiation version
// list, or the long-header length field. b is the whole packet;
// headerOffset is decodeHeader's return value. After decodeBody,
// p.headerLen is the offset of the (still header-protected) packet number
// and p.payloadLen the number of bytes from there to the end of this
// packet.
func (p *packet) decodeBody(b []byte, headerOffset int) (int, error) {
	n := headerOffset
	switch p.typ {
	case packetTypeVersionNegotiation:
		if (len(b)-n)%4 != 0 || len(b) == n {
			return 0, errShortPacket("supported versions")
		}
		for n < len(b) {
			p.supportedVersions = append(p.supportedVersions,
				uint32(b[n])<<24|uint32(b[n+1])<<16|uint32(b[n+2])<<8|uint32(b[n+3]))
			n += 4
		}
		p.headerLen = n
		return n - headerOffset, nil
	case packetTypeRetry:
		// Everything up to the 16-byte integrity tag is the token.
		if len(b) < n+16 {
			return 0, errShortPacket("retry integrity tag")
		}
		p.token = b[n : len(b)-16]
		p.headerLen = len(b)
		return len(b) - headerOffset, nil
	case packetTypeInitial:
		var tokenLen uint64
		ln := getVarint(b[n:], &tokenLen)
		if ln == 0 || uint64(len(b)-n-ln) < tokenLen {
			return 0, errShortPacket("token")
		}
		n += ln
		p.token = b[n : n+int(tokenLen)]
		n += int(tokenLen)
	case packetTypeShort:
		p.payloadLen = len(b) - n
		return n - headerOffset, nil
	}
	var length uint64
	ln := getVarint(b[n:], &length)
	if ln == 0 || uint64(len(b)-n-ln) < length {
		return 0, errShortPacket("length")
	}
	n += ln
	p.headerLen = n
	p.payloadLen = int(length)
	return n - headerOffset, nil
}

// encodedLen reports the wire size of this packet's header plus
// payloadLen, so a sender can budget space before assembling the payload.
func (p *packet) encodedLen() int {
	pnLen := p.packetNumberLen
	if pnLen == 0 {
		pnLen = packetNumberLenFor(p.packetNumber, p.largestAcked)
	}
	if p.typ == packetTypeShort {
		return 1 + len(p.header.dcid) + pnLen + p.payloadLen
	}
	n := 1 + 4 + 1 + len(p.header.dcid) + 1 + len(p.header.scid)
	if p.typ == packetTypeInitial {
		n += varintLen(uint64(len(p.token))) + len(p.token)
	}
	n += varintLen(uint64(pnLen+p.payloadLen)) + pnLen + p.payloadLen
	return n
}

// encode writes the packet header, including the truncated packet number,
// and returns the offset at which the payload begins. payloadLen must
// already be set: long headers commit to it in the length field.
func (p *packet) encode(b []byte) (int, error) {
	pnLen := packetNumberLenFor(p.packetNumber, p.largestAcked)
	p.packetNumberLen = pnLen
	if p.typ == packetTypeShort {
		need := 1 + len(p.header.dcid) + pnLen
		if len(b) < need {
			return 0, errShortPacket("short header")
		}
		b[0] = headerFixedBit | uint8(pnLen-1) | p.keyPhase<<2
		n := 1
		n += copy(b[n:], p.header.dcid)
		encodePacketNumber(b[n:], p.packetNumber, pnLen)
		n += pnLen
		p.headerLen = n
		return n, nil
	}
	if len(b) < p.encodedLen()-p.payloadLen {
		return 0, errShortPacket("long header")
	}
	b[0] = headerFormLong | headerFixedBit | uint8(p.typ)<<4 | uint8(pnLen-1)
	n := 1
	v := p.header.version
	b[n], b[n+1], b[n+2], b[n+3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
	n += 4
	b[n] = uint8(len(p.header.dcid))
	n++
	n += copy(b[n:], p.header.dcid)
	b[n] = uint8(len(p.header.scid))
	n++
	n += copy(b[n:], p.header.scid)
	if p.typ == packetTypeInitial {
		n += putVarint(b[n:], uint64(len(p.token)))
		n += copy(b[n:], p.token)
	}
	n += putVarint(b[n:], uint64(pnLen+p.payloadLen))
	encodePacketNumber(b[n:], p.packetNumber, pnLen)
	n += pnLen
	p.headerLen = n
	return n, nil
}

// pnLenFromFlags reads the truncated packet-number length from the first
// byte. Only meaningful once header protection has been removed by the
// caller's crypto layer.
func (p *packet) pnLenFromFlags() int {
	return int(p.header.flags&pnLenMask) + 1
}

func (p *packet) String() string {
	return fmt.Sprintf("%s dcid=%x scid=%x pn=%d", p.typ, p.header.dcid, p.header.scid, p.packetNumber)
}

// packetNumberLenFor returns the number of bytes needed to encode pn so
// the receiver can recover it unambiguously given the largest packet
// number it has acknowledged, RFC 9000 §A.2.
func packetNumberLenFor(pn, largestAcked uint64) int {
	var numUnacked uint64
	if largestAcked == 0 {
		numUnacked = pn + 1
	} else {
		numUnacked = pn - largestAcked
	}
	for n := 1; n < maxPacketNumberLen; n++ {
		if numUnacked < uint64(1)<<(8*n-1) {
			return n
		}
	}
	return maxPacketNumberLen
}

// encodePacketNumber writes the low n bytes of pn big-endian.
func encodePacketNumber(b []byte, pn uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(pn)
		pn >>= 8
	}
}

// decodePacketNumber reconstructs a full packet number from its truncated
// wire form, selecting the candidate closest to largest+1, RFC 9000 §A.3.
func decodePacketNumber(largest, truncated uint64, pnLen int) uint64 {
	expected := largest + 1
	win := uint64(1) << (8 * pnLen)
	hwin := win / 2
	mask := win - 1
	candidate := (expected &^ mask) | truncated
	if candidate+hwin <= expected && candidate+win <= varintMax {
		return candidate + win
	}
	if candidate > expected+hwin && candidate >= win {
		return candidate - win
	}
	return candidate
}

// getPacketNumber reads an n-byte truncated packet number.
func getPacketNumber(b []byte, n int) (uint64, error) {
	if len(b) < n {
		return 0, errShortPacket("packet number")
	}
	var pn uint64
	for i := 0; i < n; i++ {
		pn = pn<<8 | uint64(b[i])
	}
	return pn, nil
}

func errShortPacket(what string) *Error {
	return newError(ProtocolViolation, "packet truncated in "+what)
}
