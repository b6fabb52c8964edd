package transport

import (
	"testing"
	"time"
)

func TestSpaceSendAndReceiveOrderedAck(t *testing.T) {
	sender := NewSpace(SpaceData)
	receiver := NewSpace(SpaceData)
	now := time.Now()

	sender.QueueFrame(newPingFrameForTest())
	buf := make([]byte, 1200)
	pn, n, ackEliciting, err := sender.TrySend(buf, now, nil)
	if err != nil {
		t.Fatalf("TrySend: %v", err)
	}
	if n == 0 || !ackEliciting {
		t.Fatalf("expected an ack-eliciting packet, got n=%d ackEliciting=%v", n, ackEliciting)
	}

	var routed []frame
	ok, err := receiver.Receive(pn, buf[:n], now, func(f frame, _ bool) error {
		routed = append(routed, f)
		return nil
	})
	if err != nil || !ok {
		t.Fatalf("Receive: ok=%v err=%v", ok, err)
	}
	if len(routed) != 1 {
		t.Fatalf("expected 1 routed frame, got %d", len(routed))
	}

	afterDelay := now.Add(30 * time.Millisecond) // past the default max_ack_delay
	if !receiver.NeedSendAck(afterDelay) {
		t.Fatalf("expected NeedSendAck after an ack-eliciting receive")
	}
	ackBuf := make([]byte, 256)
	_, ackN, _, err := receiver.TrySend(ackBuf, afterDelay, nil)
	if err != nil || ackN == 0 {
		t.Fatalf("expected receiver to emit an ACK, n=%d err=%v", ackN, err)
	}

	var typ uint64
	getVarint(ackBuf, &typ)
	if typ != frameTypeAck {
		t.Fatalf("expected first frame to be ACK, got type %d", typ)
	}
}

func TestSpaceGapTriggersImmediateAck(t *testing.T) {
	s := NewSpace(SpaceData)
	now := time.Now()

	if ok, err := requireReceive(t, s, 0, now); err != nil || !ok {
		t.Fatalf("receive pn=0: ok=%v err=%v", ok, err)
	}
	afterDelay := now.Add(30 * time.Millisecond) // past the default max_ack_delay
	ackBuf := make([]byte, 256)
	if _, n, _, err := s.TrySend(ackBuf, afterDelay, nil); err != nil || n == 0 {
		t.Fatalf("expected an ACK to sync lastSyncedAckLargest, n=%d err=%v", n, err)
	}

	// pn 1..4 never arrive; pn 5 does. The resulting gap is large enough
	// to cross packetThreshold, which must force an immediate ACK.
	if ok, err := requireReceive(t, s, 5, afterDelay); err != nil || !ok {
		t.Fatalf("receive pn=5: ok=%v err=%v", ok, err)
	}
	if !s.NeedSendAck(afterDelay) {
		t.Fatalf("expected a gap past packetThreshold to force an immediate ACK")
	}
}

func TestSpaceGapBeforeFirstAckTriggersImmediateAck(t *testing.T) {
	s := NewSpace(SpaceData)
	now := time.Now()

	// No ACK has been emitted yet; a gap observed behind the very first
	// packets must still force an immediate ACK.
	if ok, err := requireReceive(t, s, 0, now); err != nil || !ok {
		t.Fatalf("receive pn=0: ok=%v err=%v", ok, err)
	}
	if s.NeedSendAck(now) {
		t.Fatalf("no gap yet, ACK must wait for max_ack_delay")
	}
	if ok, err := requireReceive(t, s, 5, now); err != nil || !ok {
		t.Fatalf("receive pn=5: ok=%v err=%v", ok, err)
	}
	if !s.NeedSendAck(now) {
		t.Fatalf("expected a pre-first-ACK gap to force an immediate ACK")
	}
}

func TestSpaceFastRetransmit(t *testing.T) {
	s := NewSpace(SpaceData)
	now := time.Now()

	var lost int
	for i := uint64(0); i < 4; i++ {
		s.QueueFrame(newPingFrameForTest())
		buf := make([]byte, 64)
		_, n, _, err := s.TrySend(buf, now, nil)
		if err != nil || n == 0 {
			t.Fatalf("TrySend %d: n=%d err=%v", i, n, err)
		}
	}

	ack := newAckFrame(0, recvRangeSet{{smallest: 1, largest: 3}})
	if err := s.OnAckReceived(ack, now, true); err != nil {
		t.Fatalf("OnAckReceived: %v", err)
	}
	s.mu.Lock()
	_, stillInflight := s.sentPackets[0]
	lost = len(s.controlQueue)
	s.mu.Unlock()
	if stillInflight {
		t.Fatalf("packet 0 should have been declared lost by packet-count threshold")
	}
	if lost == 0 {
		t.Fatalf("expected the lost packet's control frame to be requeued")
	}
}

func TestSpaceDuplicatePacketSilentlyDropped(t *testing.T) {
	s := NewSpace(SpaceData)
	now := time.Now()
	buf := []byte{}
	ok, err := s.Receive(5, buf, now, func(frame, bool) error { return nil })
	if err != nil || !ok {
		t.Fatalf("first receive: ok=%v err=%v", ok, err)
	}
	ok, err = s.Receive(5, buf, now, func(frame, bool) error {
		t.Fatalf("route should not be called for a duplicate packet number")
		return nil
	})
	if err != nil {
		t.Fatalf("duplicate receive returned an error: %v", err)
	}
	if ok {
		t.Fatalf("duplicate receive should report ok=false")
	}
}

func TestSpaceZeroRTTRejectsAck(t *testing.T) {
	s := NewSpace(SpaceZeroRTT)
	now := time.Now()
	ack := &ackFrame{largestAck: 1, ackDelay: 0, ranges: []ackRange{{smallest: 0, largest: 1}}}
	buf := make([]byte, ack.encodedLen())
	if _, err := ack.encode(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err := s.Receive(0, buf, now, func(frame, bool) error { return nil })
	terr, ok := err.(*Error)
	if !ok || terr.Kind != ProtocolViolation {
		t.Fatalf("expected ProtocolViolation for ACK in 0-RTT space, got %v", err)
	}
}

func TestSpaceInitialRejectsStreamFrame(t *testing.T) {
	s := NewSpace(SpaceInitial)
	now := time.Now()
	f := newStreamFrame(4, []byte("x"), 0, false)
	buf := make([]byte, f.encodedLen())
	if _, err := f.encode(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err := s.Receive(0, buf, now, func(frame, bool) error { return nil })
	terr, ok := err.(*Error)
	if !ok || terr.Kind != ProtocolViolation {
		t.Fatalf("expected ProtocolViolation for STREAM in Initial space, got %v", err)
	}
}

func requireReceive(t *testing.T, s *Space, pn uint64, now time.Time) (bool, error) {
	t.Helper()
	f := newPingFrameForTest()
	buf := make([]byte, f.encodedLen())
	if _, err := f.encode(buf); err != nil {
		return false, err
	}
	return s.Receive(pn, buf, now, func(frame, bool) error { return nil })
}

func newPingFrameForTest() *pingFrame { return &pingFrame{} }
