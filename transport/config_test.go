package transport

import "testing"

func TestNewClientParametersFromConfigRejectsOversizedCID(t *testing.T) {
	cfg := ClientConfig{SCID: make([]byte, MaxCIDLength+1)}
	if _, err := NewClientParametersFromConfig(cfg); err == nil {
		t.Fatalf("expected error for oversized scid")
	}
}

func TestNewClientParametersFromConfigRejectsBadBound(t *testing.T) {
	cfg := ClientConfig{
		SCID:   []byte{1, 2, 3},
		Params: CommonParameters{MaxUDPPayloadSize: 100},
	}
	_, err := NewClientParametersFromConfig(cfg)
	terr, ok := err.(*Error)
	if !ok || terr.Kind != TransportParameterError {
		t.Fatalf("expected TransportParameterError, got %v", err)
	}
}

func TestNewClientParametersFromConfigAppliesDefaults(t *testing.T) {
	cfg := ClientConfig{SCID: []byte{1, 2, 3}}
	p, err := NewClientParametersFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewClientParametersFromConfig: %v", err)
	}
	local := p.Local()
	if local.ActiveConnectionIDLimit != 2 {
		t.Fatalf("expected default active_connection_id_limit=2, got %d", local.ActiveConnectionIDLimit)
	}
	if string(local.InitialSourceCID) != string(cfg.SCID) {
		t.Fatalf("initial source cid not applied")
	}
}

func TestNewServerParametersFromConfigRequiresODCID(t *testing.T) {
	cfg := ServerConfig{SCID: []byte{1, 2, 3}}
	if _, err := NewServerParametersFromConfig(cfg); err == nil {
		t.Fatalf("expected error for missing original destination cid")
	}
}

func TestNewServerParametersFromConfigRejectsBadResetToken(t *testing.T) {
	cfg := ServerConfig{
		SCID:                   []byte{1, 2, 3},
		OriginalDestinationCID: []byte{9, 9, 9},
		StatelessResetToken:    []byte{1, 2, 3},
	}
	if _, err := NewServerParametersFromConfig(cfg); err == nil {
		t.Fatalf("expected error for malformed stateless reset token")
	}
}

func TestNewServerParametersFromConfigOK(t *testing.T) {
	cfg := ServerConfig{
		SCID:                   []byte{1, 2, 3},
		OriginalDestinationCID: []byte{9, 9, 9},
		RetrySourceCID:         []byte{7, 7},
	}
	p, err := NewServerParametersFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewServerParametersFromConfig: %v", err)
	}
	local := p.Local()
	if string(local.OriginalDestinationCID) != string(cfg.OriginalDestinationCID) {
		t.Fatalf("original destination cid not applied")
	}
	if string(local.RetrySourceCID) != string(cfg.RetrySourceCID) {
		t.Fatalf("retry source cid not applied")
	}
}

func TestDatagramSizeDefaults(t *testing.T) {
	if got := (ClientConfig{}).DatagramSize(); got != 1200 {
		t.Fatalf("ClientConfig{}.DatagramSize() = %d, want 1200", got)
	}
	if got := (ServerConfig{MaxDatagramSize: 1500}).DatagramSize(); got != 1500 {
		t.Fatalf("ServerConfig.DatagramSize() = %d, want 1500", got)
	}
}
