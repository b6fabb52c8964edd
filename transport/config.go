package transport

// ClientConfig is the builder-style configuration surface a client endpoint
// supplies to construct its Parameters registry and packet-number spaces.
// Invalid combinations are rejected at construction time rather than
// failing lazily once a connection is already underway.
type ClientConfig struct {
	// SCID is this endpoint's initial source connection ID. Required,
	// 0-20 bytes.
	SCID []byte
	// Params is the local transport parameter set advertised to the peer.
	// Zero-valued fields fall back to DefaultParameters.
	Params CommonParameters
	// Remembered is a prior session's server parameters, used only to gate
	// 0-RTT eligibility; it never pre-satisfies RemoteReady.
	Remembered *CommonParameters
	// MaxDatagramSize bounds the UDP payload the Transmission Planner will
	// assemble into. Defaults to 1200 (RFC 9000's floor) if zero.
	MaxDatagramSize int
}

// ServerConfig is the server-side counterpart of ClientConfig.
type ServerConfig struct {
	// SCID is this endpoint's initial source connection ID. Required,
	// 0-20 bytes.
	SCID []byte
	// OriginalDestinationCID is the DCID the client's first Initial packet
	// carried. Required: it becomes original_destination_connection_id.
	OriginalDestinationCID []byte
	// RetrySourceCID, if non-empty, marks that a Retry was sent and
	// populates retry_source_connection_id.
	RetrySourceCID []byte
	// StatelessResetToken is the 16-byte token advertised with SCID.
	StatelessResetToken []byte
	// Params is the local transport parameter set advertised to the peer.
	Params CommonParameters
	// MaxDatagramSize bounds the UDP payload the Transmission Planner will
	// assemble into. Defaults to 1200 if zero.
	MaxDatagramSize int
}

// mergeDefaults fills zero-valued fields of p with RFC 9000 §18.2 defaults.
func mergeDefaults(p CommonParameters) CommonParameters {
	d := DefaultParameters()
	if p.MaxUDPPayloadSize == 0 {
		p.MaxUDPPayloadSize = d.MaxUDPPayloadSize
	}
	if p.AckDelayExponent == 0 {
		p.AckDelayExponent = d.AckDelayExponent
	}
	if p.MaxAckDelay == 0 {
		p.MaxAckDelay = d.MaxAckDelay
	}
	if p.ActiveConnectionIDLimit == 0 {
		p.ActiveConnectionIDLimit = d.ActiveConnectionIDLimit
	}
	return p
}

// NewClientParametersFromConfig validates cfg and builds the client-side
// Parameters registry, rejecting any invalid combination before a single
// packet is ever sent.
func NewClientParametersFromConfig(cfg ClientConfig) (*Parameters, error) {
	if len(cfg.SCID) > MaxCIDLength {
		return nil, newError(ProtocolViolation, "initial source cid too long")
	}
	params := mergeDefaults(cfg.Params)
	if err := validateRemoteParams(&params); err != nil {
		// Local parameters obey the same numeric bounds as remote ones;
		// reuse the same validator rather than duplicating the rule set.
		return nil, err
	}
	p := NewClientParameters(params, cfg.Remembered)
	p.SetInitialSCID(cfg.SCID)
	return p, nil
}

// NewServerParametersFromConfig validates cfg and builds the server-side
// Parameters registry.
func NewServerParametersFromConfig(cfg ServerConfig) (*Parameters, error) {
	if len(cfg.SCID) > MaxCIDLength {
		return nil, newError(ProtocolViolation, "initial source cid too long")
	}
	if len(cfg.OriginalDestinationCID) == 0 {
		return nil, newError(InternalError, "original destination cid required")
	}
	if len(cfg.StatelessResetToken) != 0 && len(cfg.StatelessResetToken) != 16 {
		return nil, newError(InternalError, "stateless reset token must be 16 bytes")
	}
	params := mergeDefaults(cfg.Params)
	if err := validateRemoteParams(&params); err != nil {
		return nil, err
	}
	params.OriginalDestinationCID = cfg.OriginalDestinationCID
	params.RetrySourceCID = cfg.RetrySourceCID
	params.StatelessResetToken = cfg.StatelessResetToken
	p := NewServerParameters(params)
	p.SetInitialSCID(cfg.SCID)
	if len(cfg.RetrySourceCID) > 0 {
		p.SetRetrySCID(cfg.RetrySourceCID)
	}
	p.SetOriginalDCID(cfg.OriginalDestinationCID)
	return p, nil
}

// DatagramSize returns cfg's MaxDatagramSize, or 1200 (RFC 9000's floor) if
// unset, the size NewPlanner should be constructed with for this endpoint.
func (cfg ClientConfig) DatagramSize() int {
	if cfg.MaxDatagramSize <= 0 {
		return 1200
	}
	return cfg.MaxDatagramSize
}

// DatagramSize returns cfg's MaxDatagramSize, or 1200 if unset.
func (cfg ServerConfig) DatagramSize() int {
	if cfg.MaxDatagramSize <= 0 {
		return 1200
	}
	return cfg.MaxDatagramSize
}
