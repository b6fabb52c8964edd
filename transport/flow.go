package transport

import (
	"context"
	"sync"
)

// SendControl is the connection-level send-side flow controller: it tracks
// how much data this endpoint has been granted credit to send, per RFC
// 9000 §4.1, and the MAX_DATA updates received from the peer.
type SendControl struct {
	mu      sync.Mutex
	sent    uint64
	limit   uint64
	waiters []chan struct{}
}

// NewSendControl creates a send-side flow controller starting at the
// negotiated initial_max_data.
func NewSendControl(initialMax uint64) *SendControl {
	return &SendControl{limit: initialMax}
}

// Credit returns the number of bytes still available to send without
// exceeding the peer's MAX_DATA, or a FLOW_CONTROL_ERROR if none remain
// and the caller must block.
func (s *SendControl) Credit() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent >= s.limit {
		return 0, newError(FlowControlError, "connection-level send credit exhausted")
	}
	return s.limit - s.sent, nil
}

// OnDataSent records n bytes committed to the wire against the credit.
func (s *SendControl) OnDataSent(n uint64) {
	s.mu.Lock()
	s.sent += n
	s.mu.Unlock()
}

// OnMaxData applies a MAX_DATA frame from the peer, per RFC 9000 §19.9:
// the limit only ever increases.
func (s *SendControl) OnMaxData(limit uint64) {
	s.mu.Lock()
	if limit > s.limit {
		s.limit = limit
		s.wakeAllLocked()
	}
	s.mu.Unlock()
}

func (s *SendControl) wakeAllLocked() {
	for _, ch := range s.waiters {
		close(ch)
	}
	s.waiters = nil
}

// PollCredit blocks until at least one byte of send credit is available or
// ctx is canceled.
func (s *SendControl) PollCredit(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.sent < s.limit {
			s.mu.Unlock()
			return nil
		}
		ch := make(chan struct{})
		s.waiters = append(s.waiters, ch)
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RecvControl is the connection-level receive-side flow controller: it
// tracks how many bytes have been delivered against the window this
// endpoint has advertised, and when to send a MAX_DATA update.
type RecvControl struct {
	mu        sync.Mutex
	recvd     uint64
	window    uint64
	sentLimit uint64
}

// NewRecvControl creates a receive-side flow controller advertising
// initialMax as its first window.
func NewRecvControl(initialMax uint64) *RecvControl {
	return &RecvControl{window: initialMax, sentLimit: initialMax}
}

// OnDataRecvd records total, the cumulative number of bytes delivered on
// the connection so far, returning a
// FLOW_CONTROL_ERROR if the peer exceeded the advertised window.
func (r *RecvControl) OnDataRecvd(total uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if total > r.window {
		return newError(FlowControlError, "peer exceeded advertised connection flow control limit")
	}
	if total > r.recvd {
		r.recvd = total
	}
	return nil
}

// MaybeAdvertise returns a new MAX_DATA value to send once the consumed
// fraction of the current window crosses half, or 0 if no update is due.
func (r *RecvControl) MaybeAdvertise() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recvd < r.window/2 {
		return 0
	}
	newWindow := r.window * 2
	if newWindow <= r.sentLimit {
		return 0
	}
	r.window = newWindow
	r.sentLimit = newWindow
	return newWindow
}
