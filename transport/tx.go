package transport

import (
	"context"
	"time"
)

// Transaction is a single send opportunity: the gathered permissions and
// destination CID for assembling one UDP datagram. A Transaction is
// produced by PrepareTransaction and consumed by exactly one call to
// Commit.
type Transaction struct {
	dcid      []byte
	flowLimit uint64
	needAck   bool
	cc        CongestionController
	antiAmp   *AntiAmplifier
	sendCtrl  *SendControl

	maxDatagramSize int
	spent           int
}

// Planner is the Transmission Planner: it gates each send opportunity
// behind congestion control, anti-amplification, flow control and CID
// availability, in that order.
type Planner struct {
	cc              CongestionController
	antiAmp         *AntiAmplifier
	sendCtrl        *SendControl
	dcid            *RemoteCIDRegistry
	maxDatagramSize int
}

// NewPlanner builds a Transmission Planner wired to the given
// subsystems.
func NewPlanner(cc CongestionController, antiAmp *AntiAmplifier, sendCtrl *SendControl, dcid *RemoteCIDRegistry, maxDatagramSize int) *Planner {
	if maxDatagramSize <= 0 {
		maxDatagramSize = 1200
	}
	return &Planner{cc: cc, antiAmp: antiAmp, sendCtrl: sendCtrl, dcid: dcid, maxDatagramSize: maxDatagramSize}
}

// PrepareTransaction gates a send opportunity through, in order:
// congestion control, anti-amplification balance, connection flow control
// credit, and destination CID availability. It blocks until every gate
// passes or ctx is done, always returning either a usable *Transaction or
// a non-nil error explaining why none is available right now.
func (p *Planner) PrepareTransaction(ctx context.Context) (*Transaction, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !p.cc.PollSend(p.maxDatagramSize) {
			if err := waitTick(ctx); err != nil {
				return nil, err
			}
			continue
		}
		budget, unbounded := p.antiAmp.PollBalance()
		if !unbounded && budget == 0 {
			if err := waitTick(ctx); err != nil {
				return nil, err
			}
			continue
		}
		credit, err := p.sendCtrl.Credit()
		if err != nil {
			// No flow-control credit: an ACK-only or control-frame-only
			// transaction is still permitted, so degrade rather than fail.
			credit = 0
		}
		dcid, err := p.dcid.PollBorrowCID(ctx)
		if err != nil {
			return nil, err
		}
		return &Transaction{
			dcid:            dcid,
			flowLimit:       credit,
			cc:              p.cc,
			antiAmp:         p.antiAmp,
			sendCtrl:        p.sendCtrl,
			maxDatagramSize: p.maxDatagramSize,
		}, nil
	}
}

// waitTick blocks briefly so PrepareTransaction's retry loop doesn't spin,
// returning ctx's error if it completes first.
func waitTick(ctx context.Context) error {
	t := time.NewTimer(time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DCID returns the destination connection ID to address this datagram
// with.
func (t *Transaction) DCID() []byte { return t.dcid }

// FlowLimit returns the connection-level send credit available to this
// transaction.
func (t *Transaction) FlowLimit() uint64 { return t.flowLimit }

// NeedAck reports whether any loaded space requested that an ACK be sent.
func (t *Transaction) NeedAck() bool { return t.needAck }

// LoadInitialSpace assembles one Initial packet (long header, token, and
// the space's pending frames) into buf, returning the bytes written and
// the packet number used. A nil or discarded space, or a space with
// nothing to send, yields (0, 0, nil) so callers can probe every space
// while coalescing a datagram.
func (t *Transaction) LoadInitialSpace(sp *Space, scid, token []byte, buf []byte, now time.Time) (int, uint64, error) {
	return t.loadSpace(sp, scid, token, 0, buf, now)
}

// LoadHandshakeSpace assembles one Handshake packet.
func (t *Transaction) LoadHandshakeSpace(sp *Space, scid []byte, buf []byte, now time.Time) (int, uint64, error) {
	return t.loadSpace(sp, scid, nil, 0, buf, now)
}

// LoadZeroRTTData assembles one 0-RTT packet from the Data space's 0-RTT
// half.
func (t *Transaction) LoadZeroRTTData(sp *Space, scid []byte, buf []byte, now time.Time) (int, uint64, error) {
	return t.loadSpace(sp, scid, nil, 0, buf, now)
}

// LoadOneRTTData assembles one short-header packet from the 1-RTT space.
func (t *Transaction) LoadOneRTTData(sp *Space, keyPhase uint8, buf []byte, now time.Time) (int, uint64, error) {
	return t.loadSpace(sp, nil, nil, keyPhase, buf, now)
}

func (t *Transaction) loadSpace(sp *Space, scid, token []byte, keyPhase uint8, buf []byte, now time.Time) (int, uint64, error) {
	if sp == nil || sp.Discarded() {
		return 0, 0, nil
	}
	typ := packetTypeFromSpace(sp.kind)
	limit := len(buf)
	if t.maxDatagramSize < limit {
		limit = t.maxDatagramSize
	}
	if t.spent >= limit {
		return 0, 0, nil
	}
	p := packet{
		typ:      typ,
		header:   packetHeader{version: supportedVersion, dcid: t.dcid, scid: scid},
		token:    token,
		keyPhase: keyPhase,
	}
	// Budget the payload against a worst-case header (4-byte packet
	// number); the real header is written once the packet number is known.
	p.packetNumberLen = maxPacketNumberLen
	p.payloadLen = limit - t.spent
	overhead := p.encodedLen() - p.payloadLen
	p.packetNumberLen = 0
	room := limit - t.spent - overhead
	if room <= 0 {
		return 0, 0, nil
	}
	if sp.NeedSendAck(now) {
		t.needAck = true
	}
	payload := make([]byte, room)
	pn, n, _, err := sp.TrySend(payload, now, nil)
	if err != nil || n == 0 {
		return 0, 0, err
	}
	p.packetNumber = pn
	p.largestAcked, _ = sp.LargestAcked()
	p.payloadLen = n
	hdrLen, err := p.encode(buf[t.spent:])
	if err != nil {
		return 0, 0, err
	}
	copy(buf[t.spent+hdrLen:], payload[:n])
	t.spent += hdrLen + n
	return hdrLen + n, pn, nil
}

// Commit finalizes this transaction: it debits the anti-amplification
// balance by the datagram's size, unless the datagram carries only an ACK
// (which is exempt), and records the send against congestion control and
// connection flow control.
func (t *Transaction) Commit(size int, ackOnly bool, ackEliciting bool, sendTime time.Time) {
	if !ackOnly {
		t.antiAmp.OnDataSent(uint64(size))
	}
	t.cc.OnSent(sendTime, size, ackEliciting)
	if t.flowLimit > 0 {
		t.sendCtrl.OnDataSent(uint64(size))
	}
}
