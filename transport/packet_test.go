package transport

import (
	"bytes"
	"testing"
)

func TestPacketNumberDecode(t *testing.T) {
	// RFC 9000 §A.3's worked example: largest acked 0xa82f30ea, 16-bit
	// truncated value 0x9b32 decodes to 0xa82f9b32.
	if got := decodePacketNumber(0xa82f30ea, 0x9b32, 2); got != 0xa82f9b32 {
		t.Fatalf("decodePacketNumber = %#x, want 0xa82f9b32", got)
	}
	// A truncated value just behind the expected number stays in the same
	// window rather than wrapping forward.
	if got := decodePacketNumber(100, 99, 1); got != 99 {
		t.Fatalf("decodePacketNumber = %d, want 99", got)
	}
	// A small truncated value far below expectation selects the next
	// window up.
	if got := decodePacketNumber(255, 0, 1); got != 256 {
		t.Fatalf("decodePacketNumber = %d, want 256", got)
	}
}

func TestPacketNumberLenFor(t *testing.T) {
	// RFC 9000 §A.2's worked example: sending 0xac5c02 with largest acked
	// 0xabe8b3 needs 16 bits.
	if got := packetNumberLenFor(0xac5c02, 0xabe8b3); got != 2 {
		t.Fatalf("packetNumberLenFor = %d, want 2", got)
	}
	if got := packetNumberLenFor(0, 0); got != 1 {
		t.Fatalf("packetNumberLenFor(0,0) = %d, want 1", got)
	}
}

func TestPacketNumberRoundTrip(t *testing.T) {
	for _, tc := range []struct{ pn, largest uint64 }{
		{1, 0},
		{300, 290},
		{0xac5c02, 0xabe8b3},
		{0xa82f9b32, 0xa82f30ea},
	} {
		n := packetNumberLenFor(tc.pn, tc.largest)
		var b [maxPacketNumberLen]byte
		encodePacketNumber(b[:], tc.pn, n)
		truncated, err := getPacketNumber(b[:], n)
		if err != nil {
			t.Fatalf("getPacketNumber: %v", err)
		}
		if got := decodePacketNumber(tc.largest, truncated, n); got != tc.pn {
			t.Fatalf("round trip pn=%#x largest=%#x: got %#x", tc.pn, tc.largest, got)
		}
	}
}

func TestPacketLongHeaderRoundTrip(t *testing.T) {
	p := packet{
		typ: packetTypeInitial,
		header: packetHeader{
			version: supportedVersion,
			dcid:    []byte{1, 2, 3, 4},
			scid:    []byte{5, 6, 7, 8, 9},
		},
		token:        []byte("tok"),
		packetNumber: 7,
		payloadLen:   20,
	}
	buf := make([]byte, 128)
	hdrLen, err := p.encode(buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var q packet
	n, err := q.decodeHeader(buf[:hdrLen+20])
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if q.typ != packetTypeInitial {
		t.Fatalf("expected initial, got %v", q.typ)
	}
	if !bytes.Equal(q.header.dcid, p.header.dcid) || !bytes.Equal(q.header.scid, p.header.scid) {
		t.Fatalf("cid mismatch: dcid=%x scid=%x", q.header.dcid, q.header.scid)
	}
	if q.header.version != supportedVersion {
		t.Fatalf("version = %d", q.header.version)
	}
	if _, err := q.decodeBody(buf[:hdrLen+20], n); err != nil {
		t.Fatalf("decodeBody: %v", err)
	}
	if !bytes.Equal(q.token, p.token) {
		t.Fatalf("token = %q", q.token)
	}
	pnLen := q.pnLenFromFlags()
	// The length field covers the packet number plus payload.
	if q.payloadLen != pnLen+20 {
		t.Fatalf("payloadLen = %d, want %d", q.payloadLen, pnLen+20)
	}
	truncated, err := getPacketNumber(buf[q.headerLen:], pnLen)
	if err != nil {
		t.Fatalf("getPacketNumber: %v", err)
	}
	if got := decodePacketNumber(0, truncated, pnLen); got != 7 {
		t.Fatalf("packet number = %d, want 7", got)
	}
}

func TestPacketShortHeaderRoundTrip(t *testing.T) {
	p := packet{
		typ:          packetTypeShort,
		header:       packetHeader{dcid: []byte{9, 9, 9, 9, 9, 9, 9, 9}},
		packetNumber: 42,
		keyPhase:     1,
	}
	buf := make([]byte, 64)
	hdrLen, err := p.encode(buf)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	q := packet{header: packetHeader{dcil: 8}}
	if _, err := q.decodeHeader(buf[:hdrLen+10]); err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if q.typ != packetTypeShort {
		t.Fatalf("expected short, got %v", q.typ)
	}
	if !bytes.Equal(q.header.dcid, p.header.dcid) {
		t.Fatalf("dcid = %x", q.header.dcid)
	}
	if q.keyPhase != 1 {
		t.Fatalf("key phase = %d, want 1", q.keyPhase)
	}
}

func TestPacketDecodeHeaderRejectsUnsetFixedBit(t *testing.T) {
	var p packet
	if _, err := p.decodeHeader([]byte{0x00, 0x01}); err == nil {
		t.Fatalf("expected an error for a cleared fixed bit")
	}
}

func TestPacketVersionNegotiationDecode(t *testing.T) {
	b := []byte{
		0x80,       // long form, version negotiation has no fixed-bit requirement
		0, 0, 0, 0, // version 0
		1, 0xaa, // dcid
		1, 0xbb, // scid
		0, 0, 0, 1, // supported version 1
		0xff, 0, 0, 0x1d, // a draft version
	}
	var p packet
	n, err := p.decodeHeader(b)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if p.typ != packetTypeVersionNegotiation {
		t.Fatalf("expected version negotiation, got %v", p.typ)
	}
	if _, err := p.decodeBody(b, n); err != nil {
		t.Fatalf("decodeBody: %v", err)
	}
	if len(p.supportedVersions) != 2 || p.supportedVersions[0] != 1 {
		t.Fatalf("supported versions = %v", p.supportedVersions)
	}
}
