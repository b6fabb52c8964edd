package transport

import "fmt"

// Frame type codes, RFC 9000 §19.
const (
	frameTypePadding              = 0x00
	frameTypePing                 = 0x01
	frameTypeAck                  = 0x02
	frameTypeAckECN               = 0x03
	frameTypeResetStream          = 0x04
	frameTypeStopSending          = 0x05
	frameTypeCrypto               = 0x06
	frameTypeNewToken             = 0x07
	frameTypeStream               = 0x08
	frameTypeStreamEnd            = 0x0f
	frameTypeMaxData              = 0x10
	frameTypeMaxStreamData        = 0x11
	frameTypeMaxStreamsBidi       = 0x12
	frameTypeMaxStreamsUni        = 0x13
	frameTypeDataBlocked          = 0x14
	frameTypeStreamDataBlocked    = 0x15
	frameTypeStreamsBlockedBidi   = 0x16
	frameTypeStreamsBlockedUni    = 0x17
	frameTypeNewConnectionID      = 0x18
	frameTypeRetireConnectionID   = 0x19
	frameTypePathChallenge        = 0x1a
	frameTypePathResponse         = 0x1b
	frameTypeConnectionClose      = 0x1c
	frameTypeApplicationClose     = 0x1d
	frameTypeHanshakeDone         = 0x1e
	frameTypeDatagram             = 0x30
	frameTypeDatagramWithLength   = 0x31
)

// frame is implemented by every decoded QUIC frame. encodedLen reports the
// exact wire size so a caller can budget space before committing a frame to
// a packet.
type frame interface {
	encodedLen() int
	encode(b []byte) (int, error)
}

// isFrameAckEliciting reports whether a frame of the given wire type forces
// the receiver to eventually acknowledge the packet it rode in (every frame
// except ACK, PADDING and CONNECTION_CLOSE, per the glossary definition).
func isFrameAckEliciting(typ uint64) bool {
	switch typ {
	case frameTypeAck, frameTypeAckECN, frameTypePadding,
		frameTypeConnectionClose, frameTypeApplicationClose:
		return false
	default:
		return true
	}
}

func errShortFrame(what string) error {
	return newFrameError(FrameEncodingError, 0, what+": short buffer")
}

// --- PADDING ---

type paddingFrame struct {
	length int
}

func newPaddingFrame(n int) *paddingFrame { return &paddingFrame{length: n} }

func (f *paddingFrame) encodedLen() int { return f.length }

func (f *paddingFrame) encode(b []byte) (int, error) {
	if len(b) < f.length {
		return 0, errShortFrame("padding")
	}
	for i := 0; i < f.length; i++ {
		b[i] = 0
	}
	return f.length, nil
}

func (f *paddingFrame) decode(b []byte) (int, error) {
	n := 0
	for n < len(b) && b[n] == frameTypePadding {
		n++
	}
	f.length = n
	return n, nil
}

func (f *paddingFrame) String() string { return fmt.Sprintf("padding len=%d", f.length) }

// --- PING ---

type pingFrame struct{}

func (f *pingFrame) encodedLen() int { return 1 }

func (f *pingFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortFrame("ping")
	}
	b[0] = frameTypePing
	return 1, nil
}

func (f *pingFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypePing {
		return 0, errShortFrame("ping")
	}
	return 1, nil
}

func (f *pingFrame) String() string { return "ping" }

// --- ACK ---

// ackRange is an inclusive [smallest, largest] packet-number range,
// ordered from newest to oldest as they appear on the wire.
type ackRange struct {
	smallest uint64
	largest  uint64
}

type ackFrame struct {
	largestAck uint64
	ackDelay   uint64
	ranges     []ackRange // ranges[0] is the first (largest) range
}

func newAckFrame(ackDelay uint64, ranges recvRangeSet) *ackFrame {
	f := &ackFrame{ackDelay: ackDelay}
	for i, r := range ranges {
		if i == 0 {
			f.largestAck = r.largest
		}
		f.ranges = append(f.ranges, ackRange{smallest: r.smallest, largest: r.largest})
	}
	return f
}

func (f *ackFrame) encodedLen() int {
	n := varintLen(frameTypeAck) + varintLen(f.largestAck) + varintLen(f.ackDelay)
	n += varintLen(uint64(len(f.ranges) - 1))
	n += varintLen(f.ranges[0].largest - f.ranges[0].smallest)
	for i := 1; i < len(f.ranges); i++ {
		gap := f.ranges[i-1].smallest - f.ranges[i].largest - 2
		ln := f.ranges[i].largest - f.ranges[i].smallest
		n += varintLen(gap) + varintLen(ln)
	}
	return n
}

func (f *ackFrame) encode(b []byte) (int, error) {
	n := 0
	ln := putVarint(b[n:], frameTypeAck)
	if ln == 0 {
		return 0, errShortFrame("ack")
	}
	n += ln
	for _, v := range []uint64{f.largestAck, f.ackDelay, uint64(len(f.ranges) - 1), f.ranges[0].largest - f.ranges[0].smallest} {
		ln = putVarint(b[n:], v)
		if ln == 0 {
			return 0, errShortFrame("ack")
		}
		n += ln
	}
	for i := 1; i < len(f.ranges); i++ {
		gap := f.ranges[i-1].smallest - f.ranges[i].largest - 2
		rangeLen := f.ranges[i].largest - f.ranges[i].smallest
		for _, v := range []uint64{gap, rangeLen} {
			ln = putVarint(b[n:], v)
			if ln == 0 {
				return 0, errShortFrame("ack")
			}
			n += ln
		}
	}
	return n, nil
}

func (f *ackFrame) decode(b []byte) (int, error) {
	n := 0
	var typ uint64
	ln := getVarint(b, &typ)
	if ln == 0 || (typ != frameTypeAck && typ != frameTypeAckECN) {
		return 0, errShortFrame("ack")
	}
	n += ln
	var largest, delay, rangeCount, firstRangeLen uint64
	for _, v := range []*uint64{&largest, &delay, &rangeCount, &firstRangeLen} {
		ln = getVarint(b[n:], v)
		if ln == 0 {
			return 0, errShortFrame("ack")
		}
		n += ln
	}
	if firstRangeLen > largest {
		return 0, newFrameError(FrameEncodingError, frameTypeAck, "ack range underflow")
	}
	f.largestAck = largest
	f.ackDelay = delay
	f.ranges = f.ranges[:0]
	f.ranges = append(f.ranges, ackRange{smallest: largest - firstRangeLen, largest: largest})
	for i := uint64(0); i < rangeCount; i++ {
		var gap, rangeLen uint64
		ln = getVarint(b[n:], &gap)
		if ln == 0 {
			return 0, errShortFrame("ack")
		}
		n += ln
		ln = getVarint(b[n:], &rangeLen)
		if ln == 0 {
			return 0, errShortFrame("ack")
		}
		n += ln
		prevSmallest := f.ranges[len(f.ranges)-1].smallest
		if gap+2 > prevSmallest {
			return 0, newFrameError(FrameEncodingError, frameTypeAck, "ack gap underflow")
		}
		newLargest := prevSmallest - gap - 2
		if rangeLen > newLargest {
			return 0, newFrameError(FrameEncodingError, frameTypeAck, "ack range underflow")
		}
		f.ranges = append(f.ranges, ackRange{smallest: newLargest - rangeLen, largest: newLargest})
	}
	if typ == frameTypeAckECN {
		// ECN counts are three additional varints; parsed but not tracked
		// (congestion control is out of scope for this package).
		var ect0, ect1, ce uint64
		for _, v := range []*uint64{&ect0, &ect1, &ce} {
			ln = getVarint(b[n:], v)
			if ln == 0 {
				return 0, errShortFrame("ack ecn")
			}
			n += ln
		}
	}
	return n, nil
}

// toRangeSet returns a copy of the frame's ranges in ascending order
// (smallest range first), the reverse of the largest-first order the frame
// itself holds.
func (f *ackFrame) toRangeSet() recvRangeSet {
	if len(f.ranges) == 0 {
		return nil
	}
	rs := make(recvRangeSet, len(f.ranges))
	for i, r := range f.ranges {
		rs[len(f.ranges)-1-i] = recvRange{smallest: r.smallest, largest: r.largest}
	}
	return rs
}

func (f *ackFrame) String() string {
	return fmt.Sprintf("ack largest=%d delay=%d ranges=%d", f.largestAck, f.ackDelay, len(f.ranges))
}

// --- RESET_STREAM ---

type resetStreamFrame struct {
	streamID  uint64
	errorCode uint64
	finalSize uint64
}

func newResetStreamFrame(streamID, errorCode, finalSize uint64) *resetStreamFrame {
	return &resetStreamFrame{streamID: streamID, errorCode: errorCode, finalSize: finalSize}
}

func (f *resetStreamFrame) encodedLen() int {
	return varintLen(frameTypeResetStream) + varintLen(f.streamID) + varintLen(f.errorCode) + varintLen(f.finalSize)
}

func (f *resetStreamFrame) encode(b []byte) (int, error) {
	return encodeVarints(b, frameTypeResetStream, f.streamID, f.errorCode, f.finalSize)
}

func (f *resetStreamFrame) decode(b []byte) (int, error) {
	var typ uint64
	n, err := decodeVarints(b, &typ, &f.streamID, &f.errorCode, &f.finalSize)
	if err != nil || typ != frameTypeResetStream {
		return 0, errShortFrame("reset_stream")
	}
	return n, nil
}

func (f *resetStreamFrame) String() string {
	return fmt.Sprintf("reset_stream id=%d code=%d final=%d", f.streamID, f.errorCode, f.finalSize)
}

// --- STOP_SENDING ---

type stopSendingFrame struct {
	streamID  uint64
	errorCode uint64
}

func newStopSendingFrame(streamID, errorCode uint64) *stopSendingFrame {
	return &stopSendingFrame{streamID: streamID, errorCode: errorCode}
}

func (f *stopSendingFrame) encodedLen() int {
	return varintLen(frameTypeStopSending) + varintLen(f.streamID) + varintLen(f.errorCode)
}

func (f *stopSendingFrame) encode(b []byte) (int, error) {
	return encodeVarints(b, frameTypeStopSending, f.streamID, f.errorCode)
}

func (f *stopSendingFrame) decode(b []byte) (int, error) {
	var typ uint64
	n, err := decodeVarints(b, &typ, &f.streamID, &f.errorCode)
	if err != nil || typ != frameTypeStopSending {
		return 0, errShortFrame("stop_sending")
	}
	return n, nil
}

func (f *stopSendingFrame) String() string {
	return fmt.Sprintf("stop_sending id=%d code=%d", f.streamID, f.errorCode)
}

// --- CRYPTO ---

type cryptoFrame struct {
	offset uint64
	data   []byte
}

func newCryptoFrame(data []byte, offset uint64) *cryptoFrame {
	return &cryptoFrame{offset: offset, data: data}
}

func (f *cryptoFrame) encodedLen() int {
	return varintLen(frameTypeCrypto) + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *cryptoFrame) encode(b []byte) (int, error) {
	n, err := encodeVarints(b, frameTypeCrypto, f.offset, uint64(len(f.data)))
	if err != nil {
		return 0, err
	}
	if len(b)-n < len(f.data) {
		return 0, errShortFrame("crypto")
	}
	n += copy(b[n:], f.data)
	return n, nil
}

func (f *cryptoFrame) decode(b []byte) (int, error) {
	var typ, length uint64
	n, err := decodeVarints(b, &typ, &f.offset, &length)
	if err != nil || typ != frameTypeCrypto {
		return 0, errShortFrame("crypto")
	}
	if uint64(len(b)-n) < length {
		return 0, errShortFrame("crypto")
	}
	f.data = b[n : n+int(length)]
	n += int(length)
	return n, nil
}

func (f *cryptoFrame) String() string {
	return fmt.Sprintf("crypto offset=%d len=%d", f.offset, len(f.data))
}

// --- NEW_TOKEN ---

type newTokenFrame struct {
	token []byte
}

func newNewTokenFrame(token []byte) *newTokenFrame {
	return &newTokenFrame{token: token}
}

func (f *newTokenFrame) encodedLen() int {
	return varintLen(frameTypeNewToken) + varintLen(uint64(len(f.token))) + len(f.token)
}

func (f *newTokenFrame) encode(b []byte) (int, error) {
	n, err := encodeVarints(b, frameTypeNewToken, uint64(len(f.token)))
	if err != nil {
		return 0, err
	}
	if len(b)-n < len(f.token) {
		return 0, errShortFrame("new_token")
	}
	n += copy(b[n:], f.token)
	return n, nil
}

func (f *newTokenFrame) decode(b []byte) (int, error) {
	var typ, length uint64
	n, err := decodeVarints(b, &typ, &length)
	if err != nil || typ != frameTypeNewToken {
		return 0, errShortFrame("new_token")
	}
	if length == 0 {
		return 0, newFrameError(FrameEncodingError, frameTypeNewToken, "empty token")
	}
	if uint64(len(b)-n) < length {
		return 0, errShortFrame("new_token")
	}
	f.token = b[n : n+int(length)]
	n += int(length)
	return n, nil
}

func (f *newTokenFrame) String() string { return fmt.Sprintf("new_token len=%d", len(f.token)) }

// --- STREAM ---

type streamFrame struct {
	streamID uint64
	offset   uint64
	data     []byte
	fin      bool
}

func newStreamFrame(id uint64, data []byte, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: id, data: data, offset: offset, fin: fin}
}

// streamFrame always uses the explicit-offset, explicit-length wire form
// (type bits OFF=1, LEN=1) to keep encode/decode symmetric and simple to
// reason about, even though the wire format allows omitting either bit to
// save a few bytes.
func (f *streamFrame) typ() uint64 {
	typ := uint64(0x0e) // STREAM with OFF and LEN bits set
	if f.fin {
		typ |= 0x01
	}
	return typ
}

func (f *streamFrame) encodedLen() int {
	return varintLen(f.typ()) + varintLen(f.streamID) + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *streamFrame) encode(b []byte) (int, error) {
	n, err := encodeVarints(b, f.typ(), f.streamID, f.offset, uint64(len(f.data)))
	if err != nil {
		return 0, err
	}
	if len(b)-n < len(f.data) {
		return 0, errShortFrame("stream")
	}
	n += copy(b[n:], f.data)
	return n, nil
}

func (f *streamFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || typ < frameTypeStream || typ > frameTypeStreamEnd {
		return 0, errShortFrame("stream")
	}
	hasOffset := typ&0x04 != 0
	hasLength := typ&0x02 != 0
	f.fin = typ&0x01 != 0
	ln := getVarint(b[n:], &f.streamID)
	if ln == 0 {
		return 0, errShortFrame("stream")
	}
	n += ln
	f.offset = 0
	if hasOffset {
		ln = getVarint(b[n:], &f.offset)
		if ln == 0 {
			return 0, errShortFrame("stream")
		}
		n += ln
	}
	var length uint64
	if hasLength {
		ln = getVarint(b[n:], &length)
		if ln == 0 {
			return 0, errShortFrame("stream")
		}
		n += ln
	} else {
		length = uint64(len(b) - n)
	}
	if uint64(len(b)-n) < length {
		return 0, errShortFrame("stream")
	}
	f.data = b[n : n+int(length)]
	n += int(length)
	return n, nil
}

func (f *streamFrame) String() string {
	return fmt.Sprintf("stream id=%d offset=%d len=%d fin=%v", f.streamID, f.offset, len(f.data), f.fin)
}

// --- MAX_DATA ---

type maxDataFrame struct {
	maximumData uint64
}

func newMaxDataFrame(max uint64) *maxDataFrame { return &maxDataFrame{maximumData: max} }

func (f *maxDataFrame) encodedLen() int {
	return varintLen(frameTypeMaxData) + varintLen(f.maximumData)
}

func (f *maxDataFrame) encode(b []byte) (int, error) {
	return encodeVarints(b, frameTypeMaxData, f.maximumData)
}

func (f *maxDataFrame) decode(b []byte) (int, error) {
	var typ uint64
	n, err := decodeVarints(b, &typ, &f.maximumData)
	if err != nil || typ != frameTypeMaxData {
		return 0, errShortFrame("max_data")
	}
	return n, nil
}

func (f *maxDataFrame) String() string { return fmt.Sprintf("max_data max=%d", f.maximumData) }

// --- MAX_STREAM_DATA ---

type maxStreamDataFrame struct {
	streamID    uint64
	maximumData uint64
}

func newMaxStreamDataFrame(id, max uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: id, maximumData: max}
}

func (f *maxStreamDataFrame) encodedLen() int {
	return varintLen(frameTypeMaxStreamData) + varintLen(f.streamID) + varintLen(f.maximumData)
}

func (f *maxStreamDataFrame) encode(b []byte) (int, error) {
	return encodeVarints(b, frameTypeMaxStreamData, f.streamID, f.maximumData)
}

func (f *maxStreamDataFrame) decode(b []byte) (int, error) {
	var typ uint64
	n, err := decodeVarints(b, &typ, &f.streamID, &f.maximumData)
	if err != nil || typ != frameTypeMaxStreamData {
		return 0, errShortFrame("max_stream_data")
	}
	return n, nil
}

func (f *maxStreamDataFrame) String() string {
	return fmt.Sprintf("max_stream_data id=%d max=%d", f.streamID, f.maximumData)
}

// --- MAX_STREAMS ---

type maxStreamsFrame struct {
	bidi           bool
	maximumStreams uint64
}

func newMaxStreamsFrame(maximumStreams uint64, bidi bool) *maxStreamsFrame {
	return &maxStreamsFrame{bidi: bidi, maximumStreams: maximumStreams}
}

func (f *maxStreamsFrame) typ() uint64 {
	if f.bidi {
		return frameTypeMaxStreamsBidi
	}
	return frameTypeMaxStreamsUni
}

func (f *maxStreamsFrame) encodedLen() int {
	return varintLen(f.typ()) + varintLen(f.maximumStreams)
}

func (f *maxStreamsFrame) encode(b []byte) (int, error) {
	return encodeVarints(b, f.typ(), f.maximumStreams)
}

func (f *maxStreamsFrame) decode(b []byte) (int, error) {
	var typ uint64
	n, err := decodeVarints(b, &typ, &f.maximumStreams)
	if err != nil || (typ != frameTypeMaxStreamsBidi && typ != frameTypeMaxStreamsUni) {
		return 0, errShortFrame("max_streams")
	}
	f.bidi = typ == frameTypeMaxStreamsBidi
	return n, nil
}

func (f *maxStreamsFrame) String() string {
	return fmt.Sprintf("max_streams bidi=%v max=%d", f.bidi, f.maximumStreams)
}

// --- DATA_BLOCKED / STREAM_DATA_BLOCKED / STREAMS_BLOCKED ---

type dataBlockedFrame struct{ dataLimit uint64 }

func newDataBlockedFrame(dataLimit uint64) *dataBlockedFrame { return &dataBlockedFrame{dataLimit: dataLimit} }

func (f *dataBlockedFrame) encodedLen() int {
	return varintLen(frameTypeDataBlocked) + varintLen(f.dataLimit)
}
func (f *dataBlockedFrame) encode(b []byte) (int, error) {
	return encodeVarints(b, frameTypeDataBlocked, f.dataLimit)
}
func (f *dataBlockedFrame) decode(b []byte) (int, error) {
	var typ uint64
	n, err := decodeVarints(b, &typ, &f.dataLimit)
	if err != nil || typ != frameTypeDataBlocked {
		return 0, errShortFrame("data_blocked")
	}
	return n, nil
}
func (f *dataBlockedFrame) String() string { return fmt.Sprintf("data_blocked limit=%d", f.dataLimit) }

type streamDataBlockedFrame struct {
	streamID  uint64
	dataLimit uint64
}

func newStreamDataBlockedFrame(streamID, dataLimit uint64) *streamDataBlockedFrame {
	return &streamDataBlockedFrame{streamID: streamID, dataLimit: dataLimit}
}

func (f *streamDataBlockedFrame) encodedLen() int {
	return varintLen(frameTypeStreamDataBlocked) + varintLen(f.streamID) + varintLen(f.dataLimit)
}
func (f *streamDataBlockedFrame) encode(b []byte) (int, error) {
	return encodeVarints(b, frameTypeStreamDataBlocked, f.streamID, f.dataLimit)
}
func (f *streamDataBlockedFrame) decode(b []byte) (int, error) {
	var typ uint64
	n, err := decodeVarints(b, &typ, &f.streamID, &f.dataLimit)
	if err != nil || typ != frameTypeStreamDataBlocked {
		return 0, errShortFrame("stream_data_blocked")
	}
	return n, nil
}
func (f *streamDataBlockedFrame) String() string {
	return fmt.Sprintf("stream_data_blocked id=%d limit=%d", f.streamID, f.dataLimit)
}

type streamsBlockedFrame struct {
	bidi        bool
	streamLimit uint64
}

func newStreamsBlockedFrame(streamLimit uint64, bidi bool) *streamsBlockedFrame {
	return &streamsBlockedFrame{bidi: bidi, streamLimit: streamLimit}
}

func (f *streamsBlockedFrame) typ() uint64 {
	if f.bidi {
		return frameTypeStreamsBlockedBidi
	}
	return frameTypeStreamsBlockedUni
}
func (f *streamsBlockedFrame) encodedLen() int {
	return varintLen(f.typ()) + varintLen(f.streamLimit)
}
func (f *streamsBlockedFrame) encode(b []byte) (int, error) {
	return encodeVarints(b, f.typ(), f.streamLimit)
}
func (f *streamsBlockedFrame) decode(b []byte) (int, error) {
	var typ uint64
	n, err := decodeVarints(b, &typ, &f.streamLimit)
	if err != nil || (typ != frameTypeStreamsBlockedBidi && typ != frameTypeStreamsBlockedUni) {
		return 0, errShortFrame("streams_blocked")
	}
	f.bidi = typ == frameTypeStreamsBlockedBidi
	return n, nil
}
func (f *streamsBlockedFrame) String() string {
	return fmt.Sprintf("streams_blocked bidi=%v limit=%d", f.bidi, f.streamLimit)
}

// --- NEW_CONNECTION_ID / RETIRE_CONNECTION_ID ---

type newConnectionIDFrame struct {
	sequenceNumber uint64
	retirePriorTo  uint64
	connectionID   []byte
	resetToken     [16]byte
}

func (f *newConnectionIDFrame) encodedLen() int {
	return varintLen(frameTypeNewConnectionID) + varintLen(f.sequenceNumber) + varintLen(f.retirePriorTo) +
		1 + len(f.connectionID) + 16
}

func (f *newConnectionIDFrame) encode(b []byte) (int, error) {
	n, err := encodeVarints(b, frameTypeNewConnectionID, f.sequenceNumber, f.retirePriorTo, uint64(len(f.connectionID)))
	if err != nil {
		return 0, err
	}
	if len(b)-n < len(f.connectionID)+16 {
		return 0, errShortFrame("new_connection_id")
	}
	n += copy(b[n:], f.connectionID)
	n += copy(b[n:], f.resetToken[:])
	return n, nil
}

func (f *newConnectionIDFrame) decode(b []byte) (int, error) {
	var typ, seq, retirePriorTo, cidLen uint64
	n, err := decodeVarints(b, &typ, &seq, &retirePriorTo, &cidLen)
	if err != nil || typ != frameTypeNewConnectionID {
		return 0, errShortFrame("new_connection_id")
	}
	if cidLen > MaxCIDLength {
		return 0, newFrameError(FrameEncodingError, frameTypeNewConnectionID, "cid too long")
	}
	if retirePriorTo > seq {
		return 0, newFrameError(FrameEncodingError, frameTypeNewConnectionID, "retire_prior_to exceeds sequence_number")
	}
	if uint64(len(b)-n) < cidLen+16 {
		return 0, errShortFrame("new_connection_id")
	}
	f.sequenceNumber = seq
	f.retirePriorTo = retirePriorTo
	f.connectionID = b[n : n+int(cidLen)]
	n += int(cidLen)
	copy(f.resetToken[:], b[n:n+16])
	n += 16
	return n, nil
}

func (f *newConnectionIDFrame) String() string {
	return fmt.Sprintf("new_connection_id seq=%d retire_prior_to=%d", f.sequenceNumber, f.retirePriorTo)
}

type retireConnectionIDFrame struct {
	sequenceNumber uint64
}

func (f *retireConnectionIDFrame) encodedLen() int {
	return varintLen(frameTypeRetireConnectionID) + varintLen(f.sequenceNumber)
}
func (f *retireConnectionIDFrame) encode(b []byte) (int, error) {
	return encodeVarints(b, frameTypeRetireConnectionID, f.sequenceNumber)
}
func (f *retireConnectionIDFrame) decode(b []byte) (int, error) {
	var typ uint64
	n, err := decodeVarints(b, &typ, &f.sequenceNumber)
	if err != nil || typ != frameTypeRetireConnectionID {
		return 0, errShortFrame("retire_connection_id")
	}
	return n, nil
}
func (f *retireConnectionIDFrame) String() string {
	return fmt.Sprintf("retire_connection_id seq=%d", f.sequenceNumber)
}

// --- PATH_CHALLENGE / PATH_RESPONSE ---

type pathChallengeFrame struct{ data [8]byte }

func (f *pathChallengeFrame) encodedLen() int { return varintLen(frameTypePathChallenge) + 8 }
func (f *pathChallengeFrame) encode(b []byte) (int, error) {
	n := putVarint(b, frameTypePathChallenge)
	if n == 0 || len(b)-n < 8 {
		return 0, errShortFrame("path_challenge")
	}
	n += copy(b[n:], f.data[:])
	return n, nil
}
func (f *pathChallengeFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || typ != frameTypePathChallenge || len(b)-n < 8 {
		return 0, errShortFrame("path_challenge")
	}
	copy(f.data[:], b[n:n+8])
	return n + 8, nil
}
func (f *pathChallengeFrame) String() string { return "path_challenge" }

type pathResponseFrame struct{ data [8]byte }

func (f *pathResponseFrame) encodedLen() int { return varintLen(frameTypePathResponse) + 8 }
func (f *pathResponseFrame) encode(b []byte) (int, error) {
	n := putVarint(b, frameTypePathResponse)
	if n == 0 || len(b)-n < 8 {
		return 0, errShortFrame("path_response")
	}
	n += copy(b[n:], f.data[:])
	return n, nil
}
func (f *pathResponseFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || typ != frameTypePathResponse || len(b)-n < 8 {
		return 0, errShortFrame("path_response")
	}
	copy(f.data[:], b[n:n+8])
	return n + 8, nil
}
func (f *pathResponseFrame) String() string { return "path_response" }

// --- CONNECTION_CLOSE ---

type connectionCloseFrame struct {
	application  bool
	errorCode    uint64
	frameType    uint64
	reasonPhrase []byte
}

func newConnectionCloseFrame(errorCode, frameType uint64, reason []byte, application bool) *connectionCloseFrame {
	return &connectionCloseFrame{application: application, errorCode: errorCode, frameType: frameType, reasonPhrase: reason}
}

func (f *connectionCloseFrame) typ() uint64 {
	if f.application {
		return frameTypeApplicationClose
	}
	return frameTypeConnectionClose
}

func (f *connectionCloseFrame) encodedLen() int {
	n := varintLen(f.typ()) + varintLen(f.errorCode)
	if !f.application {
		n += varintLen(f.frameType)
	}
	n += varintLen(uint64(len(f.reasonPhrase))) + len(f.reasonPhrase)
	return n
}

func (f *connectionCloseFrame) encode(b []byte) (int, error) {
	n := putVarint(b, f.typ())
	if n == 0 {
		return 0, errShortFrame("connection_close")
	}
	vs := []uint64{f.errorCode}
	if !f.application {
		vs = append(vs, f.frameType)
	}
	vs = append(vs, uint64(len(f.reasonPhrase)))
	for _, v := range vs {
		ln := putVarint(b[n:], v)
		if ln == 0 {
			return 0, errShortFrame("connection_close")
		}
		n += ln
	}
	if len(b)-n < len(f.reasonPhrase) {
		return 0, errShortFrame("connection_close")
	}
	n += copy(b[n:], f.reasonPhrase)
	return n, nil
}

func (f *connectionCloseFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || (typ != frameTypeConnectionClose && typ != frameTypeApplicationClose) {
		return 0, errShortFrame("connection_close")
	}
	f.application = typ == frameTypeApplicationClose
	ln := getVarint(b[n:], &f.errorCode)
	if ln == 0 {
		return 0, errShortFrame("connection_close")
	}
	n += ln
	if !f.application {
		ln = getVarint(b[n:], &f.frameType)
		if ln == 0 {
			return 0, errShortFrame("connection_close")
		}
		n += ln
	}
	var length uint64
	ln = getVarint(b[n:], &length)
	if ln == 0 {
		return 0, errShortFrame("connection_close")
	}
	n += ln
	if uint64(len(b)-n) < length {
		return 0, errShortFrame("connection_close")
	}
	f.reasonPhrase = b[n : n+int(length)]
	n += int(length)
	return n, nil
}

func (f *connectionCloseFrame) String() string {
	return fmt.Sprintf("connection_close app=%v code=%s reason=%q", f.application, errorCodeString(f.errorCode), f.reasonPhrase)
}

// --- HANDSHAKE_DONE ---

type handshakeDoneFrame struct{}

func (f *handshakeDoneFrame) encodedLen() int { return 1 }
func (f *handshakeDoneFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortFrame("handshake_done")
	}
	b[0] = frameTypeHanshakeDone
	return 1, nil
}
func (f *handshakeDoneFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeHanshakeDone {
		return 0, errShortFrame("handshake_done")
	}
	return 1, nil
}
func (f *handshakeDoneFrame) String() string { return "handshake_done" }

// --- DATAGRAM ---

type datagramFrame struct {
	data []byte
}

func (f *datagramFrame) encodedLen() int {
	return varintLen(frameTypeDatagramWithLength) + varintLen(uint64(len(f.data))) + len(f.data)
}
func (f *datagramFrame) encode(b []byte) (int, error) {
	n, err := encodeVarints(b, frameTypeDatagramWithLength, uint64(len(f.data)))
	if err != nil {
		return 0, err
	}
	if len(b)-n < len(f.data) {
		return 0, errShortFrame("datagram")
	}
	n += copy(b[n:], f.data)
	return n, nil
}
func (f *datagramFrame) decode(b []byte) (int, error) {
	var typ uint64
	n := getVarint(b, &typ)
	if n == 0 || (typ != frameTypeDatagram && typ != frameTypeDatagramWithLength) {
		return 0, errShortFrame("datagram")
	}
	var length uint64
	if typ == frameTypeDatagramWithLength {
		ln := getVarint(b[n:], &length)
		if ln == 0 {
			return 0, errShortFrame("datagram")
		}
		n += ln
	} else {
		length = uint64(len(b) - n)
	}
	if uint64(len(b)-n) < length {
		return 0, errShortFrame("datagram")
	}
	f.data = b[n : n+int(length)]
	n += int(length)
	return n, nil
}
func (f *datagramFrame) String() string { return fmt.Sprintf("datagram len=%d", len(f.data)) }

// --- shared helpers ---

func encodeVarints(b []byte, vs ...uint64) (int, error) {
	n := 0
	for _, v := range vs {
		ln := putVarint(b[n:], v)
		if ln == 0 {
			return 0, errShortFrame("varints")
		}
		n += ln
	}
	return n, nil
}

func decodeVarints(b []byte, vs ...*uint64) (int, error) {
	n := 0
	for _, v := range vs {
		ln := getVarint(b[n:], v)
		if ln == 0 {
			return 0, errShortFrame("varints")
		}
		n += ln
	}
	return n, nil
}

func encodeFrames(b []byte, frames []frame) (int, error) {
	n := 0
	for _, f := range frames {
		ln, err := f.encode(b[n:])
		if err != nil {
			return 0, err
		}
		n += ln
	}
	return n, nil
}
