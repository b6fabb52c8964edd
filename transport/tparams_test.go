package transport

import (
	"bytes"
	"testing"
)

func TestParseTransportParametersIgnoresUnknownIDs(t *testing.T) {
	// A reserved (31*N+27) parameter followed by initial_max_data.
	var b []byte
	b = appendVarintParam(b, 31*7+27, 12345)
	b = appendVarintParam(b, tpInitialMaxData, 4096)
	p, err := parseTransportParameters(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.InitialMaxData != 4096 {
		t.Fatalf("InitialMaxData = %d, want 4096", p.InitialMaxData)
	}
}

func TestParseTransportParametersTruncatedValue(t *testing.T) {
	var b []byte
	b = appendVarintParam(b, tpInitialMaxData, 4096)
	_, err := parseTransportParameters(b[:len(b)-1])
	terr, ok := err.(*Error)
	if !ok || terr.Kind != TransportParameterError {
		t.Fatalf("expected TRANSPORT_PARAMETER_ERROR, got %v", err)
	}
}

func TestParseTransportParametersResetTokenLength(t *testing.T) {
	var b []byte
	b = appendBytesParam(b, tpStatelessResetToken, []byte("short"))
	if _, err := parseTransportParameters(b); err == nil {
		t.Fatalf("expected a wrong-length stateless_reset_token to be rejected")
	}
}

func TestParseTransportParametersFlagWithValue(t *testing.T) {
	var b []byte
	b = appendBytesParam(b, tpDisableActiveMigration, []byte{1})
	if _, err := parseTransportParameters(b); err == nil {
		t.Fatalf("expected disable_active_migration with a body to be rejected")
	}
}

func TestEncodeTransportParametersParseable(t *testing.T) {
	in := CommonParameters{
		MaxUDPPayloadSize:       1452,
		AckDelayExponent:        3,
		MaxAckDelay:             25,
		ActiveConnectionIDLimit: 4,
		InitialMaxData:          1 << 20,
		InitialSourceCID:        []byte{1, 2, 3, 4},
		DisableActiveMigration:  true,
	}
	out, err := parseTransportParameters(encodeTransportParameters(&in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.MaxUDPPayloadSize != 1452 || out.ActiveConnectionIDLimit != 4 {
		t.Fatalf("numeric parameters did not survive: %+v", out)
	}
	if !bytes.Equal(out.InitialSourceCID, in.InitialSourceCID) {
		t.Fatalf("InitialSourceCID = %x", out.InitialSourceCID)
	}
	if !out.DisableActiveMigration {
		t.Fatalf("DisableActiveMigration lost")
	}
}
