package transport

import (
	"context"
	"testing"
)

// TestParametersClientCIDAuthMismatch is scenario S4: a client that
// authenticated a server Initial's SCID as Z rejects a remote parameter set
// claiming initial_source_connection_id=Y.
func TestParametersClientCIDAuthMismatch(t *testing.T) {
	p := NewClientParameters(mergeDefaults(CommonParameters{}), nil)
	p.InitialSCIDFromPeerNeedEqual([]byte("Z"))
	p.OriginalDCIDFromServerNeedEqual([]byte("X"))

	remote := mergeDefaults(CommonParameters{
		InitialSourceCID:       []byte("Y"), // mismatch: client expects "Z"
		OriginalDestinationCID: []byte("X"),
	})
	wire := encodeTransportParameters(&remote)

	err := p.RecvRemoteParams(wire)
	terr, ok := err.(*Error)
	if !ok || terr.Kind != TransportParameterError {
		t.Fatalf("expected TransportParameterError, got %v", err)
	}
	if p.HasRcvdRemoteParams() {
		t.Fatalf("RemoteReady must not be set after a failed authentication")
	}
}

func TestParametersClientCIDAuthSuccess(t *testing.T) {
	p := NewClientParameters(mergeDefaults(CommonParameters{}), nil)
	p.InitialSCIDFromPeerNeedEqual([]byte("Z"))
	p.OriginalDCIDFromServerNeedEqual([]byte("X"))
	p.RetrySCIDFromServerNeedEqual([]byte("S2"))

	remote := mergeDefaults(CommonParameters{
		InitialSourceCID:       []byte("Z"),
		OriginalDestinationCID: []byte("X"),
		RetrySourceCID:         []byte("S2"),
	})
	wire := encodeTransportParameters(&remote)

	if err := p.RecvRemoteParams(wire); err != nil {
		t.Fatalf("RecvRemoteParams: %v", err)
	}
	if !p.HasRcvdRemoteParams() {
		t.Fatalf("expected RemoteReady after a successful authentication")
	}
}

func TestParametersServerRejectsClientOriginalDCID(t *testing.T) {
	p := NewServerParameters(mergeDefaults(CommonParameters{}))
	p.InitialSCIDFromPeerNeedEqual([]byte("C1"))

	remote := mergeDefaults(CommonParameters{
		InitialSourceCID:       []byte("C1"),
		OriginalDestinationCID: []byte("should not be sent by client"),
	})
	wire := encodeTransportParameters(&remote)

	err := p.RecvRemoteParams(wire)
	terr, ok := err.(*Error)
	if !ok || terr.Kind != TransportParameterError {
		t.Fatalf("expected TransportParameterError, got %v", err)
	}
}

func TestParametersValidationBounds(t *testing.T) {
	cases := []struct {
		name string
		p    CommonParameters
	}{
		{"max_udp_payload_size too small", CommonParameters{MaxUDPPayloadSize: 1199}},
		{"ack_delay_exponent too large", CommonParameters{AckDelayExponent: 21}},
		{"max_ack_delay too large", CommonParameters{MaxAckDelay: 1 << 14 << 1}},
		{"active_connection_id_limit too small", CommonParameters{ActiveConnectionIDLimit: 1}},
		{"initial_max_streams_bidi too large", CommonParameters{InitialMaxStreamsBidi: maxStreamsLimit + 1}},
		{"initial_max_streams_uni too large", CommonParameters{InitialMaxStreamsUni: maxStreamsLimit + 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := NewServerParameters(mergeDefaults(CommonParameters{}))
			p.InitialSCIDFromPeerNeedEqual([]byte("C1"))
			remote := c.p
			remote.InitialSourceCID = []byte("C1")
			wire := encodeTransportParameters(&remote)
			err := p.RecvRemoteParams(wire)
			terr, ok := err.(*Error)
			if !ok || terr.Kind != TransportParameterError {
				t.Fatalf("expected TransportParameterError, got %v", err)
			}
			if _, ready := p.Remote(); ready {
				t.Fatalf("no partial remote state should be observable after a validation failure")
			}
		})
	}
}

func TestParametersPollReadyUnblocksOnSuccess(t *testing.T) {
	p := NewServerParameters(mergeDefaults(CommonParameters{}))
	p.InitialSCIDFromPeerNeedEqual([]byte("C1"))

	done := make(chan error, 1)
	go func() {
		_, err := p.PollReady(context.Background())
		done <- err
	}()

	remote := mergeDefaults(CommonParameters{InitialSourceCID: []byte("C1")})
	wire := encodeTransportParameters(&remote)
	if err := p.RecvRemoteParams(wire); err != nil {
		t.Fatalf("RecvRemoteParams: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("PollReady: %v", err)
	}
}

func TestParametersOnConnErrorWakesWaiters(t *testing.T) {
	p := NewServerParameters(mergeDefaults(CommonParameters{}))

	done := make(chan error, 1)
	go func() {
		_, err := p.PollReady(context.Background())
		done <- err
	}()

	sentinel := newError(InternalError, "connection torn down")
	p.OnConnError(sentinel)
	if err := <-done; err != sentinel {
		t.Fatalf("expected PollReady to wake with the connection error, got %v", err)
	}

	// A frozen registry must fail fast on a subsequent attempt.
	if err := p.RecvRemoteParams(nil); err != sentinel {
		t.Fatalf("expected RecvRemoteParams on a frozen registry to return the terminal error, got %v", err)
	}
}
