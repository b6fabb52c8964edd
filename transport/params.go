package transport

import (
	"bytes"
	"sync"
)

// Role distinguishes the two parameter-negotiation roles.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

// MaxCIDLength is the largest connection ID RFC 9000 permits.
const MaxCIDLength = 20

// maxStreamsLimit is 2^60 - 1, RFC 9000 §4.6's bound on
// initial_max_streams_{bidi,uni}.
const maxStreamsLimit = 1<<60 - 1

// CommonParameters holds one endpoint's transport parameter set. Every
// field defaults to the RFC 9000 §18.2 default when left zero, except
// where a field's own doc comment says otherwise.
type CommonParameters struct {
	OriginalDestinationCID   []byte // server only
	MaxIdleTimeout            Milliseconds
	StatelessResetToken       []byte // server only, 16 bytes
	MaxUDPPayloadSize         uint64
	InitialMaxData            uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni   uint64
	InitialMaxStreamsBidi     uint64
	InitialMaxStreamsUni      uint64
	AckDelayExponent          uint64
	MaxAckDelay               Milliseconds
	DisableActiveMigration    bool
	PreferredAddress          []byte // server only, opaque encoded form
	ActiveConnectionIDLimit   uint64
	InitialSourceCID          []byte
	RetrySourceCID            []byte // server only
	MaxDatagramFrameSize      uint64
}

// Milliseconds is a varint-encoded duration, used by max_idle_timeout and
// max_ack_delay which are specified in milliseconds on the wire.
type Milliseconds uint64

// DefaultParameters returns the RFC 9000 §18.2 default values a field takes
// when absent from the wire.
func DefaultParameters() CommonParameters {
	return CommonParameters{
		MaxUDPPayloadSize:       65527,
		AckDelayExponent:        3,
		MaxAckDelay:             25,
		ActiveConnectionIDLimit: 2,
	}
}

// Requirements records the connection IDs a peer's transport parameters
// must echo back, extracted from the long-header packets actually observed
// on the wire, so the remote parameter set can be authenticated against
// them once it arrives.
type Requirements struct {
	InitialSourceCID        []byte
	RetrySourceCID          []byte
	OriginalDestinationCID  []byte
	haveInitialSourceCID    bool
	haveRetrySourceCID      bool
	haveOriginalDestCID     bool
}

// readiness bitmask.
const (
	localReady  uint8 = 1 << 0
	remoteReady uint8 = 1 << 1
)

// Pair is returned once both local and remote parameter sets are settled.
type Pair struct {
	Local  CommonParameters
	Remote CommonParameters
}

// Parameters is a guarded transport-parameter registry: a mutex-protected
// Ready(state) | Failed(error) cell plus a waker list, the same
// guarded-state pattern the connection-ID registries use.
type Parameters struct {
	mu   sync.Mutex
	role Role

	state        uint8 // localReady | remoteReady bitmask
	local        CommonParameters
	remote       CommonParameters
	remembered   *CommonParameters // 0-RTT: parameters remembered from a prior session

	requirements Requirements

	err     error
	waiters []chan struct{}
}

// NewClientParameters builds a client-side registry. remembered, if
// non-nil, is the 0-RTT session's prior server parameter set (used only to
// gate 0-RTT eligibility elsewhere; it does not pre-satisfy remoteReady).
func NewClientParameters(local CommonParameters, remembered *CommonParameters) *Parameters {
	return &Parameters{role: RoleClient, state: localReady, local: local, remembered: remembered}
}

// NewServerParameters builds a server-side registry.
func NewServerParameters(local CommonParameters) *Parameters {
	return &Parameters{role: RoleServer, state: localReady, local: local}
}

// SetInitialSCID populates the outbound initial_source_connection_id.
func (p *Parameters) SetInitialSCID(cid []byte) {
	p.mu.Lock()
	p.local.InitialSourceCID = cid
	p.mu.Unlock()
}

// SetRetrySCID populates the outbound retry_source_connection_id.
// Caller invariant: server role only.
func (p *Parameters) SetRetrySCID(cid []byte) {
	p.mu.Lock()
	p.local.RetrySourceCID = cid
	p.mu.Unlock()
}

// SetOriginalDCID populates the outbound original_destination_connection_id.
// Caller invariant: server role only.
func (p *Parameters) SetOriginalDCID(cid []byte) {
	p.mu.Lock()
	p.local.OriginalDestinationCID = cid
	p.mu.Unlock()
}

// InitialSCIDFromPeerNeedEqual registers the SCID of the first Initial
// packet received from the peer as an authentication requirement.
//
// Only the first call is honored; later calls are a no-op rather than
// overwriting a requirement already recorded. There is no point in the
// handshake state machine where a second, different value would be
// legitimate.
func (p *Parameters) InitialSCIDFromPeerNeedEqual(cid []byte) {
	p.mu.Lock()
	if !p.requirements.haveInitialSourceCID {
		p.requirements.InitialSourceCID = cid
		p.requirements.haveInitialSourceCID = true
	}
	p.mu.Unlock()
}

// RetrySCIDFromServerNeedEqual registers the SCID of a Retry packet as an
// authentication requirement. Client role only.
func (p *Parameters) RetrySCIDFromServerNeedEqual(cid []byte) {
	p.mu.Lock()
	if !p.requirements.haveRetrySourceCID {
		p.requirements.RetrySourceCID = cid
		p.requirements.haveRetrySourceCID = true
	}
	p.mu.Unlock()
}

// OriginalDCIDFromServerNeedEqual registers the DCID the client first sent
// as an authentication requirement. Client role only.
func (p *Parameters) OriginalDCIDFromServerNeedEqual(cid []byte) {
	p.mu.Lock()
	if !p.requirements.haveOriginalDestCID {
		p.requirements.OriginalDestinationCID = cid
		p.requirements.haveOriginalDestCID = true
	}
	p.mu.Unlock()
}

// RecvRemoteParams parses, validates and authenticates a received
// quic_transport_parameters extension body. On success RemoteReady is set
// and all waiters wake with the now-available Pair; on failure the
// registry transitions to its terminal error state and all waiters wake
// with that error.
func (p *Parameters) RecvRemoteParams(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	parsed, err := parseTransportParameters(b)
	if err != nil {
		return p.failLocked(err)
	}
	if err := validateRemoteParams(parsed); err != nil {
		return p.failLocked(err)
	}
	if err := p.authenticateCIDsLocked(parsed); err != nil {
		return p.failLocked(err)
	}
	p.remote = *parsed
	p.state |= remoteReady
	p.wakeAllLocked()
	return nil
}

func (p *Parameters) failLocked(err error) error {
	p.err = err
	p.wakeAllLocked()
	return err
}

// authenticateCIDsLocked cross-checks the peer's claimed
// initial_source_connection_id (and, for a client, the server's
// original_destination_connection_id and retry_source_connection_id)
// against the values observed directly on the wire, covering the client
// with/without Retry and server cases separately.
func (p *Parameters) authenticateCIDsLocked(remote *CommonParameters) error {
	if len(remote.InitialSourceCID) == 0 || !p.requirements.haveInitialSourceCID ||
		!bytes.Equal(remote.InitialSourceCID, p.requirements.InitialSourceCID) {
		if p.role == RoleServer {
			return newError(TransportParameterError, "Initial Source Connection ID from client mismatch")
		}
		return newError(TransportParameterError, "Initial Source Connection ID from server mismatch")
	}
	if p.role == RoleClient {
		if !p.requirements.haveOriginalDestCID || !bytes.Equal(remote.OriginalDestinationCID, p.requirements.OriginalDestinationCID) {
			return newError(TransportParameterError, "Original Destination Connection ID from server mismatch")
		}
		if p.requirements.haveRetrySourceCID {
			if !bytes.Equal(remote.RetrySourceCID, p.requirements.RetrySourceCID) {
				return newError(TransportParameterError, "Retry Source Connection ID from server mismatch")
			}
		}
	} else {
		if len(remote.OriginalDestinationCID) > 0 {
			return newError(TransportParameterError, "unexpected original destination cid from client")
		}
		if len(remote.StatelessResetToken) > 0 {
			return newError(TransportParameterError, "unexpected stateless reset token from client")
		}
		if len(remote.RetrySourceCID) > 0 {
			return newError(TransportParameterError, "unexpected retry source cid from client")
		}
	}
	return nil
}

// validateRemoteParams implements RFC 9000 §18.2's numeric bounds. Every
// violation is TRANSPORT_PARAMETER_ERROR; no partial state is ever written
// to p.remote until every bound has passed.
func validateRemoteParams(p *CommonParameters) error {
	if p.MaxUDPPayloadSize != 0 && p.MaxUDPPayloadSize < 1200 {
		return newError(TransportParameterError, "max_udp_payload_size below 1200")
	}
	if p.AckDelayExponent > 20 {
		return newError(TransportParameterError, "ack_delay_exponent exceeds 20")
	}
	if uint64(p.MaxAckDelay) > 1<<14 {
		return newError(TransportParameterError, "max_ack_delay exceeds 2^14")
	}
	if p.ActiveConnectionIDLimit != 0 && p.ActiveConnectionIDLimit < 2 {
		return newError(TransportParameterError, "active_connection_id_limit below 2")
	}
	if p.InitialMaxStreamsBidi > maxStreamsLimit {
		return newError(TransportParameterError, "initial_max_streams_bidi exceeds 2^60-1")
	}
	if p.InitialMaxStreamsUni > maxStreamsLimit {
		return newError(TransportParameterError, "initial_max_streams_uni exceeds 2^60-1")
	}
	return nil
}

// PollReady blocks until RemoteReady is set, the registry fails, or ctx is
// done. On success it returns the settled Pair; on failure or cancellation
// it returns the zero Pair and the relevant error.
func (p *Parameters) PollReady(ctx waitContext) (Pair, error) {
	p.mu.Lock()
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return Pair{}, err
	}
	if p.state&remoteReady != 0 {
		pair := Pair{Local: p.local, Remote: p.remote}
		p.mu.Unlock()
		return pair, nil
	}
	ch := make(chan struct{})
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case <-ch:
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.err != nil {
			return Pair{}, p.err
		}
		return Pair{Local: p.local, Remote: p.remote}, nil
	case <-ctx.Done():
		return Pair{}, ctx.Err()
	}
}

// Local returns a copy of the local parameter set.
func (p *Parameters) Local() CommonParameters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}

// Remote returns a copy of the remote parameter set and whether it is
// ready yet.
func (p *Parameters) Remote() (CommonParameters, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote, p.state&remoteReady != 0
}

// HasRcvdRemoteParams reports whether RemoteReady has been set.
func (p *Parameters) HasRcvdRemoteParams() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state&remoteReady != 0
}

// OnConnError freezes the registry into its terminal error state and wakes
// every waiter with it.
func (p *Parameters) OnConnError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
	p.wakeAllLocked()
}

func (p *Parameters) wakeAllLocked() {
	for _, ch := range p.waiters {
		close(ch)
	}
	p.waiters = nil
}

// waitContext is the minimal surface PollReady needs from a
// context.Context, kept as an interface so this file doesn't need to
// import "context" just to name the parameter type.
type waitContext interface {
	Done() <-chan struct{}
	Err() error
}
