package transport

import (
	"sort"
	"sync"
	"time"
)

// recvRange is an inclusive, ascending packet-number range used while
// generating or parsing ACK frames.
type recvRange struct {
	smallest uint64
	largest  uint64
}

// recvRangeSet holds the ranges an ACK frame reports, ordered from
// largest to smallest (the order they are assembled in and appear on the
// wire).
type recvRangeSet []recvRange

// packetThreshold is RFC 9002 §6.1.1's PACKET_THRESHOLD: the number of
// newer acknowledged packets that triggers a fast-retransmit loss
// declaration for an older, unacknowledged one.
const packetThreshold = 3

// SpaceKind identifies which of the three packet-number spaces (or the
// restricted 0-RTT sub-space of Data) a Space instance serves. The frame
// grammar a space accepts depends on this.
type SpaceKind uint8

const (
	SpaceInitial SpaceKind = iota
	SpaceHandshake
	SpaceZeroRTT
	SpaceData
)

func (k SpaceKind) String() string {
	switch k {
	case SpaceInitial:
		return "initial"
	case SpaceHandshake:
		return "handshake"
	case SpaceZeroRTT:
		return "zero_rtt"
	case SpaceData:
		return "data"
	default:
		return "unknown"
	}
}

// rcvdState is the per-received-packet-number state machine: NotReceived
// (implicit, absent from the map) -> Unreached | Ignored(t) | Important(t)
// -> Synced(t). Once a PN reaches Synced it never regresses.
type rcvdState uint8

const (
	stateUnreached rcvdState = iota
	stateIgnored
	stateImportant
	stateSynced
)

type rcvdEntry struct {
	state rcvdState
	at    time.Time
}

// rcvd transitions a freshly-seen packet number into Ignored or Important
// depending on whether it carried an ack-eliciting frame.
func rcvd(now time.Time, ackEliciting bool) rcvdEntry {
	if ackEliciting {
		return rcvdEntry{state: stateImportant, at: now}
	}
	return rcvdEntry{state: stateIgnored, at: now}
}

// intoSynced promotes an entry that has just been reported in an emitted
// ACK frame. Unreached (a gap that has now been advertised at least once)
// is a terminal, non-Synced state: it records that the gap is durable
// rather than merely not-yet-acknowledged.
func (e rcvdEntry) intoSynced(now time.Time) rcvdEntry {
	if e.state == stateUnreached {
		return e
	}
	return rcvdEntry{state: stateSynced, at: now}
}

// recordKind tags what follow-up action a sent packet's payload record
// requires once its fate (acked or lost) is known. Mirrors the Ack / Frame
// / Data payload-record variants.
type recordKind uint8

const (
	recordAck recordKind = iota
	recordFrame
	recordData
)

// sentRecord is one payload record attached to a sent packet.
type sentRecord struct {
	kind recordKind

	// recordAck
	ackLargest uint64

	// recordFrame: requeued verbatim into the control queue on loss.
	ctrlFrame frame

	// recordData / recordFrame: notified on outcome. Either may be nil.
	onAcked func()
	onLost  func()
}

// pendingFrame is handed to TrySend by the caller (the Transmission
// Planner or Space Coordinator) describing one frame to place in the next
// packet along with how its fate should be tracked.
type pendingFrame struct {
	frame        frame
	kind         recordKind
	ackEliciting bool
	onAcked      func()
	onLost       func()
}

type sentPacket struct {
	sendTime     time.Time
	records      []sentRecord
	size         int
	ackEliciting bool
}

// Metrics is the narrow set of counters and gauges a Space reports through.
// It is optional: a nil *Metrics disables instrumentation.
type Metrics struct {
	hook metricsHook
}

// metricsHook is implemented by transport/metrics.go's prometheus-backed
// collector; kept as an interface here so pnspace.go has no direct
// dependency on the metrics wiring.
type metricsHook interface {
	observeSent(kind SpaceKind, ackEliciting bool, size int)
	observeAcked(kind SpaceKind, n int)
	observeLost(kind SpaceKind, n int)
	observeRTT(kind SpaceKind, d time.Duration)
}

// Space is the per-epoch reliability engine: it tracks sent and received
// packet numbers, generates and processes ACK frames, detects loss, and
// samples RTT.
type Space struct {
	mu   sync.Mutex
	kind SpaceKind

	sentPackets map[uint64]*sentPacket
	nextPN      uint64
	skipPNs     bool // occasionally skip a PN to catch spurious acks
	skipEvery   uint64
	skipped     map[uint64]bool

	rcvdPackets map[uint64]rcvdEntry
	rcvdOffset  uint64 // lowest PN still tracked; monotonically non-decreasing
	haveLargestRcvd bool
	largestRcvdPN   uint64

	disorderTolerance uint64 // trailing receive window kept open on ack confirmation

	largestAckedPN    uint64
	haveLargestAckedPN bool

	largestRcvdAckElicitingPN    uint64
	haveLargestRcvdAckElicitingPN bool

	lastSyncedAckLargest uint64 // zero until the first ACK is emitted

	newLostEvent        bool
	rcvdUnreachedPacket bool
	timeToSync          time.Time

	lossTime time.Time

	maxAckDelay time.Duration

	controlQueue []*pendingFrame // FIFO retransmission queue

	rtt     rttStats
	metrics *Metrics
	sink    EventSink

	discarded bool
}

// NewSpace constructs a Space ready to send and receive, with RTT stats at
// their initial values (no samples are available yet).
func NewSpace(kind SpaceKind) *Space {
	s := &Space{
		kind:              kind,
		sentPackets:       make(map[uint64]*sentPacket),
		rcvdPackets:       make(map[uint64]rcvdEntry),
		disorderTolerance: packetThreshold,
		maxAckDelay:       25 * time.Millisecond,
	}
	s.rtt.init()
	return s
}

// SetMaxAckDelay applies the negotiated max_ack_delay transport parameter.
func (s *Space) SetMaxAckDelay(d time.Duration) {
	s.mu.Lock()
	s.maxAckDelay = d
	s.rtt.maxAckDelay = d
	s.mu.Unlock()
}

// SetMetrics attaches an optional metrics hook.
func (s *Space) SetMetrics(m *Metrics) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

// SetEventSink attaches an optional qlog-style event sink; a nil sink
// disables event emission.
func (s *Space) SetEventSink(sink EventSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// EnableSkipPN turns on the optional packet-number-skipping mode used by
// the Data space to detect a peer acknowledging a PN that was never sent.
func (s *Space) EnableSkipPN(every uint64) {
	s.mu.Lock()
	s.skipPNs = true
	s.skipEvery = every
	if s.skipped == nil {
		s.skipped = make(map[uint64]bool)
	}
	s.mu.Unlock()
}

// Discard tears the space down: sent_packets are dropped with no further
// loss notification.
func (s *Space) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
	s.sentPackets = nil
	s.controlQueue = nil
}

// Discarded reports whether Discard has been called.
func (s *Space) Discarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

// QueueFrame enqueues a control frame (MAX_DATA, NEW_CONNECTION_ID, ...)
// for transmission; it is requeued here again if its packet is lost.
func (s *Space) QueueFrame(f frame) {
	s.mu.Lock()
	s.controlQueue = append(s.controlQueue, &pendingFrame{frame: f, kind: recordFrame, ackEliciting: true})
	s.mu.Unlock()
}

// NeedSendAck reports whether an ACK frame must be emitted now.
func (s *Space) NeedSendAck(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needSendAckLocked(now)
}

func (s *Space) needSendAckLocked(now time.Time) bool {
	if !s.haveLargestRcvd {
		return false
	}
	urgent := s.newLostEvent || s.rcvdUnreachedPacket || (!s.timeToSync.IsZero() && !now.Before(s.timeToSync))
	if !urgent {
		return false
	}
	for pn := s.largestRcvdPN; ; pn-- {
		if e, ok := s.rcvdPackets[pn]; ok && e.state == stateImportant {
			return true
		}
		if pn == s.rcvdOffset {
			break
		}
	}
	return false
}

// nextPacketNumber allocates the next PN to send on, skipping one
// occasionally when skip-PN mode is enabled.
func (s *Space) nextPacketNumber() uint64 {
	pn := s.nextPN
	s.nextPN++
	if s.skipPNs && s.skipEvery > 0 && pn > 0 && pn%s.skipEvery == 0 {
		s.skipped[pn] = true
		pn = s.nextPN
		s.nextPN++
	}
	return pn
}

// TrySend assembles at most one packet's worth of frames into buf following
// the order: ACK first (if needed), then the control
// queue in FIFO order, then any extra frames the caller supplies (e.g.
// stream or crypto data prepared by the Coordinator/Transaction). It
// records the packet in sentPackets and returns its packet number and the
// number of bytes written.
func (s *Space) TrySend(buf []byte, now time.Time, extra []*pendingFrame) (pn uint64, n int, ackEliciting bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return 0, 0, false, newError(InternalError, "space discarded")
	}

	var records []sentRecord
	left := len(buf)

	if s.needSendAckLocked(now) {
		ack := s.genAckFrameLocked(now)
		if ack != nil {
			ln := ack.encodedLen()
			if left >= ln {
				m, encErr := ack.encode(buf[n:])
				if encErr != nil {
					return 0, 0, false, encErr
				}
				n += m
				left -= m
				records = append(records, sentRecord{kind: recordAck, ackLargest: ack.largestAck})
				s.syncAckedLocked(ack, now)
			}
		}
	}

	pending := append(append([]*pendingFrame{}, s.controlQueue...), extra...)
	var consumed int
	for _, pf := range pending {
		ln := pf.frame.encodedLen()
		if ln > left {
			break
		}
		m, encErr := pf.frame.encode(buf[n:])
		if encErr != nil {
			return 0, 0, false, encErr
		}
		n += m
		left -= m
		if pf.ackEliciting {
			ackEliciting = true
		}
		records = append(records, sentRecord{kind: pf.kind, ctrlFrame: pf.frame, onAcked: pf.onAcked, onLost: pf.onLost})
		consumed++
	}
	s.controlQueue = s.controlQueue[minInt2(consumed, len(s.controlQueue)):]

	if len(records) == 0 {
		return 0, 0, false, nil
	}

	if s.nextPN > varintMax {
		return 0, 0, false, newError(InternalError, "packet number space exhausted")
	}
	pn = s.nextPacketNumber()
	s.sentPackets[pn] = &sentPacket{sendTime: now, records: records, size: n, ackEliciting: ackEliciting}
	if s.metrics != nil {
		s.metrics.hook.observeSent(s.kind, ackEliciting, n)
	}
	logPacket(s.sink, logEventPacketSent, s.kind, pn, n)
	return pn, n, ackEliciting, nil
}

func minInt2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Receive decodes one packet's decrypted payload frame-by-frame, routes
// each frame through route, and updates the receive-side PN state. route
// is the hook into the Frame Dispatcher; an error it returns aborts the
// packet. Frame types the space's grammar forbids (e.g. ACK in 0-RTT) are
// rejected with PROTOCOL_VIOLATION by Receive itself, before route.
//
// Receive rejects stale or duplicate packet numbers silently: no error,
// ok=false.
func (s *Space) Receive(pn uint64, payload []byte, now time.Time, route func(f frame, ackEliciting bool) error) (ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return false, nil
	}
	if pn < s.rcvdOffset {
		logPacket(s.sink, logEventPacketDropped, s.kind, pn, len(payload))
		return false, nil
	}
	if e, seen := s.rcvdPackets[pn]; seen && e.state != stateUnreached {
		logPacket(s.sink, logEventPacketDropped, s.kind, pn, len(payload))
		return false, nil
	}

	ackElicited := false
	b := payload
	for len(b) > 0 {
		var typ uint64
		tn := getVarint(b, &typ)
		if tn == 0 {
			return false, newFrameError(FrameEncodingError, 0, "truncated frame type")
		}
		if !frameAllowedInSpace(s.kind, typ) {
			return false, newFrameError(ProtocolViolation, typ, "frame not allowed in "+s.kind.String()+" space")
		}
		f, consumed, decErr := decodeFrame(typ, b)
		if decErr != nil {
			return false, decErr
		}
		if isFrameAckEliciting(typ) {
			ackElicited = true
		}
		if routeErr := route(f, isFrameAckEliciting(typ)); routeErr != nil {
			return false, routeErr
		}
		if s.sink != nil {
			s.sink.OnLogEvent(newLogEventFrame(now, logEventFramesProcessed, f))
		}
		b = b[consumed:]
	}

	if s.haveLargestRcvd && pn > s.largestRcvdPN {
		s.largestRcvdPN = pn
	} else if !s.haveLargestRcvd {
		s.largestRcvdPN = pn
		s.haveLargestRcvd = true
	}
	s.rcvdPackets[pn] = rcvd(now, ackElicited)
	logPacket(s.sink, logEventPacketReceived, s.kind, pn, len(payload))

	if ackElicited {
		if !s.haveLargestRcvdAckElicitingPN || pn > s.largestRcvdAckElicitingPN {
			s.largestRcvdAckElicitingPN = pn
			s.haveLargestRcvdAckElicitingPN = true
			// A gap of unreceived PNs more than packetThreshold behind
			// the new largest, and not yet advertised in an ACK, means
			// the peer will shortly declare those packets lost: sync an
			// ACK immediately. lastSyncedAckLargest starts at zero, so
			// the scan runs even before the first ACK has been emitted.
			if pn >= packetThreshold {
				gapFloor := pn - packetThreshold
				start := s.lastSyncedAckLargest + 1
				if start < s.rcvdOffset {
					start = s.rcvdOffset
				}
				for p := start; p < gapFloor; p++ {
					if _, seen := s.rcvdPackets[p]; !seen {
						s.newLostEvent = true
						break
					}
				}
			}
		}
		if pn < s.lastSyncedAckLargest {
			s.rcvdUnreachedPacket = true
		}
		if s.timeToSync.IsZero() {
			s.timeToSync = now.Add(s.maxAckDelay)
		}
	}
	return true, nil
}

// frameAllowedInSpace applies the per-space frame grammar of RFC 9000
// §12.4's table 3: Initial and Handshake packets carry only the handshake
// machinery; 0-RTT excludes acknowledgements, handshake signals and a few
// server-to-client-only frames.
func frameAllowedInSpace(kind SpaceKind, typ uint64) bool {
	switch kind {
	case SpaceInitial, SpaceHandshake:
		switch typ {
		case frameTypePadding, frameTypePing, frameTypeAck, frameTypeAckECN,
			frameTypeCrypto, frameTypeConnectionClose:
			return true
		}
		return false
	case SpaceZeroRTT:
		return !zeroRTTForbidden(typ)
	default:
		return true
	}
}

func zeroRTTForbidden(typ uint64) bool {
	switch typ {
	case frameTypeAck, frameTypeAckECN, frameTypeCrypto, frameTypeHanshakeDone,
		frameTypeNewToken, frameTypePathResponse, frameTypeRetireConnectionID:
		return true
	default:
		return false
	}
}

func decodeFrame(typ uint64, b []byte) (frame, int, error) {
	var f interface {
		frame
		decode([]byte) (int, error)
	}
	switch {
	case typ == frameTypePadding:
		f = &paddingFrame{}
	case typ == frameTypePing:
		f = &pingFrame{}
	case typ == frameTypeAck || typ == frameTypeAckECN:
		f = &ackFrame{}
	case typ == frameTypeResetStream:
		f = &resetStreamFrame{}
	case typ == frameTypeStopSending:
		f = &stopSendingFrame{}
	case typ == frameTypeCrypto:
		f = &cryptoFrame{}
	case typ == frameTypeNewToken:
		f = &newTokenFrame{}
	case typ >= frameTypeStream && typ <= frameTypeStreamEnd:
		f = &streamFrame{}
	case typ == frameTypeMaxData:
		f = &maxDataFrame{}
	case typ == frameTypeMaxStreamData:
		f = &maxStreamDataFrame{}
	case typ == frameTypeMaxStreamsBidi || typ == frameTypeMaxStreamsUni:
		f = &maxStreamsFrame{}
	case typ == frameTypeDataBlocked:
		f = &dataBlockedFrame{}
	case typ == frameTypeStreamDataBlocked:
		f = &streamDataBlockedFrame{}
	case typ == frameTypeStreamsBlockedBidi || typ == frameTypeStreamsBlockedUni:
		f = &streamsBlockedFrame{}
	case typ == frameTypeNewConnectionID:
		f = &newConnectionIDFrame{}
	case typ == frameTypeRetireConnectionID:
		f = &retireConnectionIDFrame{}
	case typ == frameTypePathChallenge:
		f = &pathChallengeFrame{}
	case typ == frameTypePathResponse:
		f = &pathResponseFrame{}
	case typ == frameTypeConnectionClose || typ == frameTypeApplicationClose:
		f = &connectionCloseFrame{}
	case typ == frameTypeHanshakeDone:
		f = &handshakeDoneFrame{}
	case typ == frameTypeDatagram || typ == frameTypeDatagramWithLength:
		f = &datagramFrame{}
	default:
		return nil, 0, newFrameError(FrameEncodingError, typ, "unknown frame type")
	}
	n, err := f.decode(b)
	if err != nil {
		return nil, 0, err
	}
	return f, n, nil
}

// genAckFrameLocked generates the next ACK frame: from
// the rightmost received entry leftward, collect the first maximal run of
// received PNs (first_range), then alternate gap/acked runs.
func (s *Space) genAckFrameLocked(now time.Time) *ackFrame {
	if !s.haveLargestRcvd {
		return nil
	}
	received := func(pn uint64) (rcvdEntry, bool) {
		e, ok := s.rcvdPackets[pn]
		return e, ok && e.state != stateUnreached
	}

	var ranges recvRangeSet
	var largestImportantTime time.Time
	pn := s.largestRcvdPN
	for {
		if e, ok := received(pn); ok {
			if largestImportantTime.IsZero() {
				largestImportantTime = e.at
			}
			largest := pn
			for pn > s.rcvdOffset {
				if _, ok := received(pn - 1); !ok {
					break
				}
				pn--
			}
			ranges = append(ranges, recvRange{smallest: pn, largest: largest})
		}
		if pn == s.rcvdOffset {
			break
		}
		pn--
	}
	if len(ranges) == 0 {
		return nil
	}
	delay := uint64(0)
	if !largestImportantTime.IsZero() {
		delay = uint64(now.Sub(largestImportantTime).Microseconds())
	}
	return newAckFrame(delay, ranges)
}

// syncAckedLocked transitions every entry the just-emitted ACK reported
// into Synced, marks the unreceived gaps between its ranges Unreached, and
// clears the urgency flags.
func (s *Space) syncAckedLocked(ack *ackFrame, now time.Time) {
	for i, r := range ack.ranges {
		for pn := r.smallest; pn <= r.largest; pn++ {
			if e, ok := s.rcvdPackets[pn]; ok {
				s.rcvdPackets[pn] = e.intoSynced(now)
			}
			if pn == r.largest {
				break
			}
		}
		if i > 0 {
			for pn := r.largest + 1; pn < ack.ranges[i-1].smallest; pn++ {
				if _, ok := s.rcvdPackets[pn]; !ok {
					s.rcvdPackets[pn] = rcvdEntry{state: stateUnreached, at: now}
				}
			}
		}
	}
	s.newLostEvent = false
	s.rcvdUnreachedPacket = false
	s.timeToSync = time.Time{}
	s.lastSyncedAckLargest = ack.largestAck
}

// OnAckReceived processes a peer ACK frame. handshakeConfirmed
// gates whether the peer's reported ack_delay may be trusted for an RTT
// sample (an unconfirmed handshake cannot yet prove the peer isn't an
// off-path attacker replaying stale acks).
func (s *Space) OnAckReceived(ack *ackFrame, now time.Time, handshakeConfirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return nil
	}
	if s.haveLargestAckedPN && ack.largestAck < s.largestAckedPN {
		return nil // stale
	}
	for pn := range s.skipped {
		for _, r := range ack.ranges {
			if pn >= r.smallest && pn <= r.largest {
				return newFrameError(ProtocolViolation, frameTypeAck, "ACK of a skipped packet number")
			}
		}
	}
	wasNewLargest := !s.haveLargestAckedPN || ack.largestAck > s.largestAckedPN
	s.largestAckedPN = ack.largestAck
	s.haveLargestAckedPN = true

	var ackedCount int
	var newlyAckedLargestWasAckEliciting bool
	var newlyAckedLargestSendTime time.Time
	for _, r := range ack.ranges {
		for pn := r.smallest; ; pn++ {
			if sp, ok := s.sentPackets[pn]; ok {
				ackedCount++
				for _, rec := range sp.records {
					switch rec.kind {
					case recordAck:
						s.drainRcvdTo(rec.ackLargest)
					case recordFrame:
						if rec.onAcked != nil {
							rec.onAcked()
						}
					case recordData:
						if rec.onAcked != nil {
							rec.onAcked()
						}
					}
				}
				if pn == ack.largestAck {
					newlyAckedLargestWasAckEliciting = sp.ackEliciting
					newlyAckedLargestSendTime = sp.sendTime
				}
				delete(s.sentPackets, pn)
			}
			if pn == r.largest {
				break
			}
		}
	}
	if s.metrics != nil && ackedCount > 0 {
		s.metrics.hook.observeAcked(s.kind, ackedCount)
	}

	if wasNewLargest && newlyAckedLargestWasAckEliciting {
		ackDelay := time.Duration(ack.ackDelay) * time.Microsecond
		if ackDelay > s.maxAckDelay {
			ackDelay = s.maxAckDelay
		}
		sendElapsed := now.Sub(newlyAckedLargestSendTime)
		s.rtt.update(sendElapsed, ackDelay, handshakeConfirmed)
		if s.metrics != nil {
			s.metrics.hook.observeRTT(s.kind, s.rtt.smoothedRTT)
		}
	}

	s.detectAndQueueLostLocked(now)
	s.compactSentPrefixLocked()
	return nil
}

// drainRcvdTo implements the Ack-record follow-up: slide the receive
// window forward, but keep a disorder_tolerance-sized trailing window open
// to tolerate reordering.
func (s *Space) drainRcvdTo(largestInFrame uint64) {
	if largestInFrame <= s.disorderTolerance {
		return
	}
	cut := largestInFrame - s.disorderTolerance
	for pn := range s.rcvdPackets {
		if pn < cut {
			delete(s.rcvdPackets, pn)
			if pn >= s.rcvdOffset {
				s.rcvdOffset = pn + 1
			}
		}
	}
	if cut > s.rcvdOffset {
		s.rcvdOffset = cut
	}
}

// detectAndQueueLostLocked declares a packet lost when either it falls
// packetThreshold PNs behind the largest acked one, or it was sent long
// enough ago per the RTT-based loss delay; it requeues Frame records and
// invokes onLost for Data records.
func (s *Space) detectAndQueueLostLocked(now time.Time) {
	lossDelay := s.rtt.lossDelay()
	var pns []uint64
	for pn := range s.sentPackets {
		pns = append(pns, pn)
	}
	sort.Slice(pns, func(i, j int) bool { return pns[i] < pns[j] })

	var earliestLossTime time.Time
	var lostCount int
	for _, pn := range pns {
		sp := s.sentPackets[pn]
		byCount := s.haveLargestAckedPN && pn+packetThreshold <= s.largestAckedPN
		byTime := now.Sub(sp.sendTime) >= lossDelay
		if byCount || byTime {
			lostCount++
			for _, rec := range sp.records {
				switch rec.kind {
				case recordFrame:
					s.controlQueue = append(s.controlQueue, &pendingFrame{frame: rec.ctrlFrame, kind: recordFrame, ackEliciting: true, onAcked: rec.onAcked, onLost: rec.onLost})
					if rec.onLost != nil {
						rec.onLost()
					}
				case recordData:
					if rec.onLost != nil {
						rec.onLost()
					}
				}
			}
			delete(s.sentPackets, pn)
			continue
		}
		candidateLoss := sp.sendTime.Add(lossDelay)
		if earliestLossTime.IsZero() || candidateLoss.Before(earliestLossTime) {
			earliestLossTime = candidateLoss
		}
	}
	s.lossTime = earliestLossTime
	if s.metrics != nil && lostCount > 0 {
		s.metrics.hook.observeLost(s.kind, lostCount)
	}
}

// compactSentPrefixLocked is a no-op for the map-backed sentPackets (there
// is no leading-None prefix to trim), kept as a named step alongside the
// other bookkeeping OnAckReceived performs.
func (s *Space) compactSentPrefixLocked() {}

// LossTime returns the earliest instant at which an inflight packet will
// be declared lost by the time-threshold rule, or the zero Time if none is
// pending.
func (s *Space) LossTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lossTime
}

// AdvancePacketNumber raises the next packet number to allocate to at
// least pn. The Coordinator uses it when discarding the 0-RTT half of the
// Data space: 0-RTT and 1-RTT share one packet-number sequence on the
// wire, so the 1-RTT space resumes numbering where 0-RTT stopped.
func (s *Space) AdvancePacketNumber(pn uint64) {
	s.mu.Lock()
	if pn > s.nextPN {
		s.nextPN = pn
	}
	s.mu.Unlock()
}

// LargestAcked returns the highest packet number the peer has
// acknowledged, and whether any ack has been processed yet. Senders use it
// as the reference for packet-number truncation.
func (s *Space) LargestAcked() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.largestAckedPN, s.haveLargestAckedPN
}

// HasInflight reports whether any packet in this space is awaiting ack.
func (s *Space) HasInflight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sentPackets) > 0
}
