package transport

import (
	"sync"
	"time"
)

// Dispatcher routes a decoded frame to the subsystem that owns it: each
// frame type maps to exactly one destination method call, made directly
// under that subsystem's own mutex. It is also the receive-path entry
// for whole packets (ReceivePacket), where the anti-amplification
// balance is credited before any frame is examined.
type Dispatcher struct {
	role       Role
	params     *Parameters
	localCIDs  *LocalCIDRegistry
	remoteCIDs *RemoteCIDRegistry
	sendFlow   *SendControl
	recvFlow   *RecvControl
	antiAmp    *AntiAmplifier

	// Highest delivered offset per stream, so connection-level receive
	// flow control is charged only for newly delivered bytes.
	mu            sync.Mutex
	streamOffsets map[uint64]uint64
	recvdTotal    uint64

	OnHandshakeDone    func()
	OnConnectionClose  func(*connectionCloseFrame)
	OnNewToken         func(token []byte)
	OnStreamFrame      func(*streamFrame)
	OnStreamCtrl       func(frame)
	OnCryptoFrame      func(*cryptoFrame)
	OnDatagramFrame    func(*datagramFrame)
	OnPathChallenge    func(*pathChallengeFrame)
	OnPathResponse     func(*pathResponseFrame)
}

// NewDispatcher builds a Dispatcher wired to the connection-level
// subsystems every frame type other than stream/crypto/datagram data
// routes into directly.
func NewDispatcher(role Role, params *Parameters, localCIDs *LocalCIDRegistry, remoteCIDs *RemoteCIDRegistry, sendFlow *SendControl, recvFlow *RecvControl, antiAmp *AntiAmplifier) *Dispatcher {
	return &Dispatcher{
		role:          role,
		params:        params,
		localCIDs:     localCIDs,
		remoteCIDs:    remoteCIDs,
		sendFlow:      sendFlow,
		recvFlow:      recvFlow,
		antiAmp:       antiAmp,
		streamOffsets: make(map[uint64]uint64),
	}
}

// ReceivePacket is the receive-path entry for one decrypted packet: it
// credits the anti-amplification balance with the packet's bytes (every
// received byte counts toward the 3x budget, stale and duplicate packets
// included), then hands the payload to sp, routing each decoded frame
// through Dispatch.
func (d *Dispatcher) ReceivePacket(sp *Space, pn uint64, payload []byte, now time.Time) (bool, error) {
	d.antiAmp.OnDataRecvd(uint64(len(payload)))
	return sp.Receive(pn, payload, now, func(f frame, _ bool) error {
		return d.Dispatch(f)
	})
}

// Dispatch routes f to the subsystem that owns its effect:
// CONNECTION_CLOSE to the connection error sink, NEW_TOKEN to the client
// token store, MAX_DATA to send-side flow control,
// NEW_CONNECTION_ID/RETIRE_CONNECTION_ID to the CID registries,
// HANDSHAKE_DONE to the handshake confirmation signal, DATA_BLOCKED
// ignored (diagnostic only), ACK ignored (Space.Receive passes ACK frames
// to route without processing them; ACK processing is Space.OnAckReceived,
// which neither Dispatch nor ReceivePacket calls), PATH_CHALLENGE/
// PATH_RESPONSE to the active path, stream control and stream/crypto/
// datagram data frames to their respective sinks. STREAM frames are
// charged against connection-level receive flow control before they are
// forwarded; DATAGRAM frames are rejected unless
// max_datagram_frame_size was advertised.
func (d *Dispatcher) Dispatch(f frame) error {
	switch v := f.(type) {
	case *connectionCloseFrame:
		if d.OnConnectionClose != nil {
			d.OnConnectionClose(v)
		}
	case *newTokenFrame:
		// NEW_TOKEN flows server-to-client only, RFC 9000 §19.7.
		if d.role == RoleServer {
			return newFrameError(ProtocolViolation, frameTypeNewToken, "NEW_TOKEN received by server")
		}
		if d.OnNewToken != nil {
			d.OnNewToken(v.token)
		}
	case *maxDataFrame:
		d.sendFlow.OnMaxData(v.maximumData)
	case *newConnectionIDFrame:
		return d.remoteCIDs.Recv(v)
	case *retireConnectionIDFrame:
		return d.localCIDs.Retire(v.sequenceNumber)
	case *handshakeDoneFrame:
		// HANDSHAKE_DONE flows server-to-client only, RFC 9000 §19.20.
		if d.role == RoleServer {
			return newFrameError(ProtocolViolation, frameTypeHanshakeDone, "HANDSHAKE_DONE received by server")
		}
		if d.OnHandshakeDone != nil {
			d.OnHandshakeDone()
		}
	case *dataBlockedFrame:
		// diagnostic only, no action required
	case *pathChallengeFrame:
		if d.OnPathChallenge != nil {
			d.OnPathChallenge(v)
		}
	case *pathResponseFrame:
		if d.OnPathResponse != nil {
			d.OnPathResponse(v)
		}
	case *resetStreamFrame, *stopSendingFrame, *maxStreamDataFrame, *maxStreamsFrame,
		*streamDataBlockedFrame, *streamsBlockedFrame:
		if d.OnStreamCtrl != nil {
			d.OnStreamCtrl(f)
		}
	case *streamFrame:
		if err := d.chargeRecvFlow(v); err != nil {
			return err
		}
		if d.OnStreamFrame != nil {
			d.OnStreamFrame(v)
		}
	case *cryptoFrame:
		if d.OnCryptoFrame != nil {
			d.OnCryptoFrame(v)
		}
	case *datagramFrame:
		// RFC 9221 §3: DATAGRAM frames are only valid once this endpoint
		// advertised max_datagram_frame_size, and are bounded by it.
		local := d.params.Local()
		if local.MaxDatagramFrameSize == 0 {
			return newFrameError(ProtocolViolation, frameTypeDatagram, "DATAGRAM frame without negotiated max_datagram_frame_size")
		}
		if uint64(v.encodedLen()) > local.MaxDatagramFrameSize {
			return newFrameError(ProtocolViolation, frameTypeDatagram, "DATAGRAM frame exceeds max_datagram_frame_size")
		}
		if d.OnDatagramFrame != nil {
			d.OnDatagramFrame(v)
		}
	case *paddingFrame, *pingFrame:
		// no-op; ping's only effect is being ack-eliciting, already
		// accounted for by Space.Receive
	case *ackFrame:
		// ignored: ACK processing is Space.OnAckReceived, not called here
	default:
		return newFrameError(ProtocolViolation, 0, "unrecognized frame reached dispatcher")
	}
	return nil
}

// chargeRecvFlow debits connection-level receive flow control with the
// bytes a STREAM frame newly delivers: only the extension past the
// stream's previous highest offset counts, retransmitted data does not.
func (d *Dispatcher) chargeRecvFlow(f *streamFrame) error {
	end := f.offset + uint64(len(f.data))
	d.mu.Lock()
	prev := d.streamOffsets[f.streamID]
	if end <= prev {
		d.mu.Unlock()
		return nil
	}
	d.streamOffsets[f.streamID] = end
	d.recvdTotal += end - prev
	total := d.recvdTotal
	d.mu.Unlock()
	return d.recvFlow.OnDataRecvd(total)
}
