package transport

import (
	"context"
	"testing"
	"time"
)

func TestSendControlCreditAndMaxData(t *testing.T) {
	s := NewSendControl(100)
	credit, err := s.Credit()
	if err != nil || credit != 100 {
		t.Fatalf("Credit = %d, %v", credit, err)
	}

	s.OnDataSent(100)
	if _, err := s.Credit(); err == nil {
		t.Fatalf("expected FLOW_CONTROL_ERROR once credit is exhausted")
	}

	// MAX_DATA only ever raises the limit.
	s.OnMaxData(50)
	if _, err := s.Credit(); err == nil {
		t.Fatalf("a regressive MAX_DATA must not restore credit")
	}
	s.OnMaxData(200)
	credit, err = s.Credit()
	if err != nil || credit != 100 {
		t.Fatalf("expected 100 bytes of credit after MAX_DATA 200, got %d err=%v", credit, err)
	}
}

func TestSendControlPollCreditUnblocksOnMaxData(t *testing.T) {
	s := NewSendControl(10)
	s.OnDataSent(10)

	unblocked := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		unblocked <- s.PollCredit(ctx)
	}()

	s.OnMaxData(20)
	if err := <-unblocked; err != nil {
		t.Fatalf("PollCredit: %v", err)
	}
}

func TestRecvControlRejectsWindowOverrun(t *testing.T) {
	r := NewRecvControl(100)
	if err := r.OnDataRecvd(100); err != nil {
		t.Fatalf("at-window delivery must be accepted: %v", err)
	}
	err := r.OnDataRecvd(101)
	terr, ok := err.(*Error)
	if !ok || terr.Kind != FlowControlError {
		t.Fatalf("expected FLOW_CONTROL_ERROR, got %v", err)
	}
}

func TestRecvControlMaybeAdvertise(t *testing.T) {
	r := NewRecvControl(100)
	if v := r.MaybeAdvertise(); v != 0 {
		t.Fatalf("no data consumed yet, expected no update, got %d", v)
	}
	if err := r.OnDataRecvd(60); err != nil {
		t.Fatalf("OnDataRecvd: %v", err)
	}
	if v := r.MaybeAdvertise(); v != 200 {
		t.Fatalf("expected a doubled window of 200, got %d", v)
	}
	// Not due again until the new window is half consumed.
	if v := r.MaybeAdvertise(); v != 0 {
		t.Fatalf("expected no immediate second update, got %d", v)
	}
}
