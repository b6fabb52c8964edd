package transport

import "testing"

func TestAntiAmplifierThreeTimesLimit(t *testing.T) {
	a := NewAntiAmplifier()
	if budget, unbounded := a.PollBalance(); unbounded || budget != 0 {
		t.Fatalf("no bytes received yet: budget=%d unbounded=%v", budget, unbounded)
	}

	a.OnDataRecvd(100)
	budget, unbounded := a.PollBalance()
	if unbounded || budget != 300 {
		t.Fatalf("expected 3x budget of 300, got %d unbounded=%v", budget, unbounded)
	}

	a.OnDataSent(250)
	if budget, _ := a.PollBalance(); budget != 50 {
		t.Fatalf("expected 50 bytes remaining, got %d", budget)
	}

	a.OnDataSent(50)
	if budget, _ := a.PollBalance(); budget != 0 {
		t.Fatalf("expected balance exhausted, got %d", budget)
	}

	// More client bytes reopen the budget.
	a.OnDataRecvd(10)
	if budget, _ := a.PollBalance(); budget != 30 {
		t.Fatalf("expected 30 bytes after 10 more received, got %d", budget)
	}
}

func TestAntiAmplifierValidationLiftsLimit(t *testing.T) {
	a := NewAntiAmplifier()
	a.OnDataSent(1 << 20)
	a.Validate()
	if !a.Validated() {
		t.Fatalf("expected Validated after Validate")
	}
	if _, unbounded := a.PollBalance(); !unbounded {
		t.Fatalf("expected an unbounded balance on a validated path")
	}
}
