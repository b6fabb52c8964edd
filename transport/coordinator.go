package transport

import "sync"

// keyEpoch identifies which of a connection's encryption levels is in
// play. 0-RTT and 1-RTT carry separate keys but share one packet-number
// sequence on the wire; they are modeled as two Space instances here, and
// DiscardZeroRTT hands the 0-RTT space's next packet number to the 1-RTT
// space so the shared sequence never reuses a number across the key
// change.
type keyEpoch uint8

const (
	epochInitial keyEpoch = iota
	epochHandshake
	epochZeroRTT
	epochOneRTT
)

// Coordinator owns the packet-number spaces for every encryption level of
// a connection, the per-epoch key availability, and the rules for
// discarding each space as the handshake advances.
type Coordinator struct {
	mu   sync.Mutex
	role Role

	initial   *Space
	handshake *Space
	zeroRTT   *Space
	data      *Space

	keys [epochOneRTT + 1]bool

	zeroRTTDiscarded   bool
	initialDiscarded   bool
	handshakeDiscarded bool
}

// NewCoordinator builds a Coordinator with all four packet-number
// sub-spaces live. Only the Initial epoch has keys at construction; the
// others unlock as InstallKeys is called from the key schedule. A server
// that never accepts 0-RTT for this connection should call DiscardZeroRTT
// immediately after construction.
func NewCoordinator(role Role) *Coordinator {
	c := &Coordinator{
		role:      role,
		initial:   NewSpace(SpaceInitial),
		handshake: NewSpace(SpaceHandshake),
		zeroRTT:   NewSpace(SpaceZeroRTT),
		data:      NewSpace(SpaceData),
	}
	c.keys[epochInitial] = true
	return c
}

// InstallKeys marks epoch e's keys as delivered by the TLS key schedule,
// making its space usable for sealing and opening. Installing the 1-RTT
// keys on a server discards the 0-RTT half immediately; the client keeps
// 0-RTT keys until handshake confirmation.
func (c *Coordinator) InstallKeys(e keyEpoch) {
	c.mu.Lock()
	c.keys[e] = true
	server := c.role == RoleServer
	c.mu.Unlock()
	if e == epochOneRTT && server {
		c.DiscardZeroRTT()
	}
}

// HasKeys reports whether epoch e's keys are installed and its space has
// not been discarded.
func (c *Coordinator) HasKeys(e keyEpoch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.keys[e] {
		return false
	}
	switch e {
	case epochInitial:
		return !c.initialDiscarded
	case epochHandshake:
		return !c.handshakeDiscarded
	case epochZeroRTT:
		return !c.zeroRTTDiscarded
	default:
		return true
	}
}

// OnHandshakePacketDecrypted records the first successful Handshake-level
// decryption, which retires the Initial keys.
func (c *Coordinator) OnHandshakePacketDecrypted() {
	c.DiscardInitial()
}

// OnHandshakePacketSent records the first Handshake-level send, the other
// trigger for Initial key retirement.
func (c *Coordinator) OnHandshakePacketSent() {
	c.DiscardInitial()
}

// OnHandshakeConfirmed retires the Handshake keys, and on a client the
// 0-RTT keys as well (a server has already dropped them when its 1-RTT
// keys were installed).
func (c *Coordinator) OnHandshakeConfirmed() {
	c.DiscardHandshake()
	c.mu.Lock()
	client := c.role == RoleClient
	c.mu.Unlock()
	if client {
		c.DiscardZeroRTT()
	}
}

// Initial returns the Initial packet-number space, or nil once discarded.
func (c *Coordinator) Initial() *Space {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialDiscarded {
		return nil
	}
	return c.initial
}

// Handshake returns the Handshake packet-number space, or nil once
// discarded.
func (c *Coordinator) Handshake() *Space {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handshakeDiscarded {
		return nil
	}
	return c.handshake
}

// ZeroRTT returns the 0-RTT packet-number sub-space, or nil once
// discarded (on a server when 1-RTT keys are installed, on a client at
// handshake confirmation, or by an explicit DiscardZeroRTT).
func (c *Coordinator) ZeroRTT() *Space {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.zeroRTTDiscarded {
		return nil
	}
	return c.zeroRTT
}

// Data returns the 1-RTT (Data) packet-number space. It is never
// discarded for the lifetime of the connection.
func (c *Coordinator) Data() *Space {
	return c.data
}

// DiscardInitial drops the Initial space per RFC 9000 §17.2.2.1: once a
// Handshake packet has been successfully processed, the Initial keys and
// any unacknowledged Initial data are abandoned outright (no further loss
// detection, no further ACKs sent for it).
func (c *Coordinator) DiscardInitial() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialDiscarded {
		return
	}
	c.initialDiscarded = true
	c.initial.Discard()
}

// DiscardHandshake drops the Handshake space once the handshake is
// confirmed, per RFC 9000 §4.9.2.
func (c *Coordinator) DiscardHandshake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handshakeDiscarded {
		return
	}
	c.handshakeDiscarded = true
	c.handshake.Discard()
}

// DiscardZeroRTT drops the 0-RTT sub-space, per RFC 9001 §4.9.3. InstallKeys
// calls it on a server when 1-RTT keys are installed and
// OnHandshakeConfirmed calls it on a client. Any frames still queued in
// it are lost; they are not migrated to the 1-RTT space. The 1-RTT space
// picks up the packet-number sequence where the 0-RTT half left off.
func (c *Coordinator) DiscardZeroRTT() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.zeroRTTDiscarded {
		return
	}
	c.zeroRTTDiscarded = true
	c.zeroRTT.mu.Lock()
	next := c.zeroRTT.nextPN
	c.zeroRTT.mu.Unlock()
	c.data.AdvancePacketNumber(next)
	c.zeroRTT.Discard()
}

// HandshakeConfirmed reports whether both the Initial and Handshake
// spaces have been discarded, the condition RFC 9000 §4.1.2 defines
// handshake confirmation by (for the purposes internal to this package;
// the TLS-level handshake-complete signal is a separate, externally
// supplied fact).
func (c *Coordinator) HandshakeConfirmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialDiscarded && c.handshakeDiscarded
}

// SpaceForEpoch returns the live space for the given key epoch, or nil if
// that epoch's space has been discarded.
func (c *Coordinator) SpaceForEpoch(e keyEpoch) *Space {
	switch e {
	case epochInitial:
		return c.Initial()
	case epochHandshake:
		return c.Handshake()
	case epochZeroRTT:
		return c.ZeroRTT()
	case epochOneRTT:
		return c.Data()
	default:
		return nil
	}
}
