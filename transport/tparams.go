package transport

// Transport parameter identifiers, RFC 9000 §18.2.
const (
	tpOriginalDestinationConnectionID uint64 = 0x00
	tpMaxIdleTimeout                  uint64 = 0x01
	tpStatelessResetToken             uint64 = 0x02
	tpMaxUDPPayloadSize               uint64 = 0x03
	tpInitialMaxData                  uint64 = 0x04
	tpInitialMaxStreamDataBidiLocal   uint64 = 0x05
	tpInitialMaxStreamDataBidiRemote  uint64 = 0x06
	tpInitialMaxStreamDataUni         uint64 = 0x07
	tpInitialMaxStreamsBidi           uint64 = 0x08
	tpInitialMaxStreamsUni            uint64 = 0x09
	tpAckDelayExponent                uint64 = 0x0a
	tpMaxAckDelay                     uint64 = 0x0b
	tpDisableActiveMigration          uint64 = 0x0c
	tpPreferredAddress                uint64 = 0x0d
	tpActiveConnectionIDLimit         uint64 = 0x0e
	tpInitialSourceConnectionID       uint64 = 0x0f
	tpRetrySourceConnectionID         uint64 = 0x10
	tpMaxDatagramFrameSize            uint64 = 0x20
)

// encodeTransportParameters serializes p as a quic_transport_parameters
// extension body: a sequence of (varint id, varint length, value)
// triples, RFC 9000 §18.1.
func encodeTransportParameters(p *CommonParameters) []byte {
	b := make([]byte, 0, 256)

	if len(p.OriginalDestinationCID) > 0 {
		b = appendBytesParam(b, tpOriginalDestinationConnectionID, p.OriginalDestinationCID)
	}
	if p.MaxIdleTimeout != 0 {
		b = appendVarintParam(b, tpMaxIdleTimeout, uint64(p.MaxIdleTimeout))
	}
	if len(p.StatelessResetToken) > 0 {
		b = appendBytesParam(b, tpStatelessResetToken, p.StatelessResetToken)
	}
	if p.MaxUDPPayloadSize != 0 {
		b = appendVarintParam(b, tpMaxUDPPayloadSize, p.MaxUDPPayloadSize)
	}
	if p.InitialMaxData != 0 {
		b = appendVarintParam(b, tpInitialMaxData, p.InitialMaxData)
	}
	if p.InitialMaxStreamDataBidiLocal != 0 {
		b = appendVarintParam(b, tpInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	}
	if p.InitialMaxStreamDataBidiRemote != 0 {
		b = appendVarintParam(b, tpInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	}
	if p.InitialMaxStreamDataUni != 0 {
		b = appendVarintParam(b, tpInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	}
	if p.InitialMaxStreamsBidi != 0 {
		b = appendVarintParam(b, tpInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	}
	if p.InitialMaxStreamsUni != 0 {
		b = appendVarintParam(b, tpInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	}
	if p.AckDelayExponent != 0 {
		b = appendVarintParam(b, tpAckDelayExponent, p.AckDelayExponent)
	}
	if p.MaxAckDelay != 0 {
		b = appendVarintParam(b, tpMaxAckDelay, uint64(p.MaxAckDelay))
	}
	if p.DisableActiveMigration {
		b = appendFlagParam(b, tpDisableActiveMigration)
	}
	if len(p.PreferredAddress) > 0 {
		b = appendBytesParam(b, tpPreferredAddress, p.PreferredAddress)
	}
	if p.ActiveConnectionIDLimit != 0 {
		b = appendVarintParam(b, tpActiveConnectionIDLimit, p.ActiveConnectionIDLimit)
	}
	if p.InitialSourceCID != nil {
		b = appendBytesParam(b, tpInitialSourceConnectionID, p.InitialSourceCID)
	}
	if len(p.RetrySourceCID) > 0 {
		b = appendBytesParam(b, tpRetrySourceConnectionID, p.RetrySourceCID)
	}
	if p.MaxDatagramFrameSize != 0 {
		b = appendVarintParam(b, tpMaxDatagramFrameSize, p.MaxDatagramFrameSize)
	}
	return b
}

func appendVarintParam(b []byte, id, v uint64) []byte {
	header := make([]byte, varintLen(id)+varintLen(uint64(varintLen(v))))
	n := putVarint(header, id)
	n += putVarint(header[n:], uint64(varintLen(v)))
	b = append(b, header[:n]...)
	val := make([]byte, varintLen(v))
	putVarint(val, v)
	return append(b, val...)
}

func appendBytesParam(b []byte, id uint64, v []byte) []byte {
	header := make([]byte, varintLen(id)+varintLen(uint64(len(v))))
	n := putVarint(header, id)
	n += putVarint(header[n:], uint64(len(v)))
	b = append(b, header[:n]...)
	return append(b, v...)
}

func appendFlagParam(b []byte, id uint64) []byte {
	header := make([]byte, varintLen(id)+1)
	n := putVarint(header, id)
	n += putVarint(header[n:], 0)
	return append(b, header[:n]...)
}

// parseTransportParameters decodes a quic_transport_parameters extension
// body into a CommonParameters, rejecting malformed encodings and repeated
// parameter IDs with TRANSPORT_PARAMETER_ERROR. Unknown parameter IDs are
// skipped per RFC 9000 §7.4.2 (grease and future extensibility).
func parseTransportParameters(b []byte) (*CommonParameters, error) {
	p := &CommonParameters{}
	seen := make(map[uint64]bool)
	for len(b) > 0 {
		var id, length uint64
		n := getVarint(b, &id)
		if n == 0 {
			return nil, newError(TransportParameterError, "truncated parameter id")
		}
		b = b[n:]
		n = getVarint(b, &length)
		if n == 0 {
			return nil, newError(TransportParameterError, "truncated parameter length")
		}
		b = b[n:]
		if uint64(len(b)) < length {
			return nil, newError(TransportParameterError, "parameter value runs past extension body")
		}
		val := b[:length]
		b = b[length:]
		if seen[id] {
			return nil, newError(TransportParameterError, "duplicate transport parameter")
		}
		seen[id] = true

		switch id {
		case tpOriginalDestinationConnectionID:
			p.OriginalDestinationCID = append([]byte(nil), val...)
		case tpMaxIdleTimeout:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.MaxIdleTimeout = Milliseconds(v)
		case tpStatelessResetToken:
			if length != 16 {
				return nil, newError(TransportParameterError, "stateless_reset_token wrong length")
			}
			p.StatelessResetToken = append([]byte(nil), val...)
		case tpMaxUDPPayloadSize:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.MaxUDPPayloadSize = v
		case tpInitialMaxData:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.InitialMaxData = v
		case tpInitialMaxStreamDataBidiLocal:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamDataBidiLocal = v
		case tpInitialMaxStreamDataBidiRemote:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamDataBidiRemote = v
		case tpInitialMaxStreamDataUni:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamDataUni = v
		case tpInitialMaxStreamsBidi:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamsBidi = v
		case tpInitialMaxStreamsUni:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.InitialMaxStreamsUni = v
		case tpAckDelayExponent:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.AckDelayExponent = v
		case tpMaxAckDelay:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.MaxAckDelay = Milliseconds(v)
		case tpDisableActiveMigration:
			if length != 0 {
				return nil, newError(TransportParameterError, "disable_active_migration carries a value")
			}
			p.DisableActiveMigration = true
		case tpPreferredAddress:
			p.PreferredAddress = append([]byte(nil), val...)
		case tpActiveConnectionIDLimit:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.ActiveConnectionIDLimit = v
		case tpInitialSourceConnectionID:
			p.InitialSourceCID = append([]byte(nil), val...)
		case tpRetrySourceConnectionID:
			p.RetrySourceCID = append([]byte(nil), val...)
		case tpMaxDatagramFrameSize:
			v, err := decodeVarintExact(val)
			if err != nil {
				return nil, err
			}
			p.MaxDatagramFrameSize = v
		default:
			// unknown parameter, ignored
		}
	}
	return p, nil
}

// decodeVarintExact decodes a varint that must consume the entire slice,
// the form every integer-valued transport parameter takes on the wire.
func decodeVarintExact(b []byte) (uint64, error) {
	var v uint64
	n := getVarint(b, &v)
	if n == 0 || n != len(b) {
		return 0, newError(TransportParameterError, "malformed integer parameter value")
	}
	return v, nil
}
