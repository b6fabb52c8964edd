package transport

import (
	"context"
	"crypto/rand"
	"sync"
)

// cidState is the two-phase retirement lifecycle: a CID stays Active until
// a replacement has been issued, moves to Retiring once a
// RETIRE_CONNECTION_ID frame has been queued for it, and is dropped from
// the registry only once that frame has actually been acknowledged.
type cidState uint8

const (
	cidActive cidState = iota
	cidRetiring
	cidRetired
)

// ConnectionID is a single entry in a CID registry: the wire value, its
// sequence number, and (for remote entries) the stateless reset token that
// accompanies it.
type ConnectionID struct {
	Seq    uint64
	CID    []byte
	Token  [16]byte
	hasTok bool
	state  cidState
}

// LocalCIDRegistry manages the connection IDs this endpoint has issued to
// its peer via NEW_CONNECTION_ID frames: it hands out fresh CIDs up to the
// peer's active_connection_id_limit and retires old ones on request.
type LocalCIDRegistry struct {
	mu        sync.Mutex
	entries   map[uint64]*ConnectionID
	nextSeq   uint64
	limit     uint64 // peer's active_connection_id_limit, 2 until negotiated
	cidLen    int
	issueFunc func() ([]byte, [16]byte, error)
}

// NewLocalCIDRegistry creates a registry that issues cidLen-byte random
// connection IDs. issueFunc may be overridden in tests for deterministic
// output; nil selects crypto/rand.
func NewLocalCIDRegistry(cidLen int) *LocalCIDRegistry {
	return &LocalCIDRegistry{
		entries: make(map[uint64]*ConnectionID),
		limit:   2,
		cidLen:  cidLen,
	}
}

// SetPeerLimit applies the peer's active_connection_id_limit, learned from
// its transport parameters.
func (r *LocalCIDRegistry) SetPeerLimit(limit uint64) {
	r.mu.Lock()
	r.limit = limit
	r.mu.Unlock()
}

// Issue registers the connection's initial source CID as sequence 0.
func (r *LocalCIDRegistry) Issue(initial []byte) {
	r.mu.Lock()
	r.entries[0] = &ConnectionID{Seq: 0, CID: initial, state: cidActive}
	r.nextSeq = 1
	r.mu.Unlock()
}

// MaybeIssueNew generates and registers a fresh CID if the active count is
// below the peer's limit, returning the NEW_CONNECTION_ID frame to send,
// or nil if no issuance is needed.
func (r *LocalCIDRegistry) MaybeIssueNew() (*newConnectionIDFrame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := uint64(0)
	for _, e := range r.entries {
		if e.state == cidActive {
			active++
		}
	}
	if active >= r.limit {
		return nil, nil
	}
	cid, token, err := r.generate()
	if err != nil {
		return nil, err
	}
	seq := r.nextSeq
	r.nextSeq++
	r.entries[seq] = &ConnectionID{Seq: seq, CID: cid, Token: token, hasTok: true, state: cidActive}
	return &newConnectionIDFrame{
		sequenceNumber: seq,
		retirePriorTo:  0,
		connectionID:   cid,
		resetToken:     token,
	}, nil
}

func (r *LocalCIDRegistry) generate() ([]byte, [16]byte, error) {
	if r.issueFunc != nil {
		return r.issueFunc()
	}
	cid := make([]byte, r.cidLen)
	if _, err := rand.Read(cid); err != nil {
		return nil, [16]byte{}, err
	}
	var token [16]byte
	if _, err := rand.Read(token[:]); err != nil {
		return nil, [16]byte{}, err
	}
	return cid, token, nil
}

// Retire handles a RETIRE_CONNECTION_ID frame from the peer: the
// referenced sequence number moves straight to cidRetired, since its
// withdrawal is the peer's own doing and needs no round trip of our own.
func (r *LocalCIDRegistry) Retire(seq uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[seq]
	if !ok {
		return nil
	}
	e.state = cidRetired
	delete(r.entries, seq)
	return nil
}

// RemoteCIDRegistry manages the connection IDs the peer has issued to us
// via NEW_CONNECTION_ID frames: the destination CIDs available for
// outgoing packets, and the stateless reset tokens that authenticate a
// reset originating from any of them.
type RemoteCIDRegistry struct {
	mu           sync.Mutex
	entries      map[uint64]*ConnectionID
	current      uint64
	retirePrior  uint64
	limit        uint64
	pendingRetire []uint64
	waiters      []chan struct{}
}

// NewRemoteCIDRegistry creates an empty remote registry. odcid is the
// original destination CID used before any NEW_CONNECTION_ID has arrived.
func NewRemoteCIDRegistry(odcid []byte) *RemoteCIDRegistry {
	r := &RemoteCIDRegistry{
		entries: make(map[uint64]*ConnectionID),
		limit:   2,
	}
	r.entries[0] = &ConnectionID{Seq: 0, CID: odcid, state: cidActive}
	return r
}

// SetLimit applies this endpoint's own active_connection_id_limit,
// bounding how many CIDs the peer may have outstanding at once.
func (r *RemoteCIDRegistry) SetLimit(limit uint64) {
	r.mu.Lock()
	r.limit = limit
	r.mu.Unlock()
}

// Recv handles an incoming NEW_CONNECTION_ID frame, per RFC 9000 §19.15:
// sequence numbers below retire_prior_to are immediately queued for
// retirement, and a retire_prior_to increase retires every entry it now
// covers.
func (r *RemoteCIDRegistry) Recv(f *newConnectionIDFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if uint64(len(r.entries)) >= r.limit {
		if _, ok := r.entries[f.sequenceNumber]; !ok {
			return newError(ConnectionIDLimitError, "peer exceeded active_connection_id_limit")
		}
	}

	if _, ok := r.entries[f.sequenceNumber]; !ok {
		r.entries[f.sequenceNumber] = &ConnectionID{
			Seq: f.sequenceNumber, CID: f.connectionID, Token: f.resetToken, hasTok: true, state: cidActive,
		}
	}

	if f.retirePriorTo > r.retirePrior {
		r.retirePrior = f.retirePriorTo
		for seq, e := range r.entries {
			if seq < r.retirePrior && e.state == cidActive {
				e.state = cidRetiring
				r.pendingRetire = append(r.pendingRetire, seq)
			}
		}
	}
	if f.sequenceNumber < r.retirePrior {
		if e, ok := r.entries[f.sequenceNumber]; ok && e.state == cidActive {
			e.state = cidRetiring
			r.pendingRetire = append(r.pendingRetire, f.sequenceNumber)
		}
	}
	r.wakeAllLocked()
	return nil
}

// DrainPendingRetirements returns and clears the sequence numbers that now
// need a RETIRE_CONNECTION_ID frame sent; the caller is responsible for
// transitioning each to cidRetired once that frame is acknowledged via
// ConfirmRetired.
func (r *RemoteCIDRegistry) DrainPendingRetirements() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pendingRetire
	r.pendingRetire = nil
	return out
}

// ConfirmRetired finalizes the retirement of seq once its
// RETIRE_CONNECTION_ID frame has been acknowledged.
func (r *RemoteCIDRegistry) ConfirmRetired(seq uint64) {
	r.mu.Lock()
	delete(r.entries, seq)
	r.mu.Unlock()
}

// PollBorrowCID returns an active destination CID to address outgoing
// packets with, blocking until one becomes active or ctx is canceled. This
// is the registry-side half of the Transmission Planner's dcid gate.
func (r *RemoteCIDRegistry) PollBorrowCID(ctx context.Context) ([]byte, error) {
	for {
		r.mu.Lock()
		if e, ok := r.entries[r.current]; ok && e.state == cidActive {
			cid := e.CID
			r.mu.Unlock()
			return cid, nil
		}
		for seq, e := range r.entries {
			if e.state == cidActive {
				r.current = seq
				cid := e.CID
				r.mu.Unlock()
				return cid, nil
			}
		}
		ch := make(chan struct{})
		r.waiters = append(r.waiters, ch)
		r.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// StatelessResetTokenKnown reports whether token matches any CID the peer
// has issued us, authenticating an incoming stateless reset.
func (r *RemoteCIDRegistry) StatelessResetTokenKnown(token [16]byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.hasTok && e.Token == token {
			return true
		}
	}
	return false
}

func (r *RemoteCIDRegistry) wakeAllLocked() {
	for _, ch := range r.waiters {
		close(ch)
	}
	r.waiters = nil
}
