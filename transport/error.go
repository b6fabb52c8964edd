package transport

import "fmt"

// ErrorKind enumerates the fatal, connection-level error categories a QUIC
// endpoint can observe. Values are chosen to map directly onto RFC 9000
// §20.1 transport error codes; ErrorKind(code) for code <= 0x0e recovers
// the wire value.
type ErrorKind uint64

// Transport error codes, RFC 9000 §20.1.
const (
	NoError ErrorKind = iota
	InternalError
	ConnectionRefused
	FlowControlError
	StreamLimitError
	StreamStateError
	FinalSizeError
	FrameEncodingError
	TransportParameterError
	ConnectionIDLimitError
	ProtocolViolation
	InvalidToken
	ApplicationError
	CryptoBufferExceeded
	KeyUpdateError
	AEADLimitReached
	NoViablePath
)

var errorKindNames = [...]string{
	"NO_ERROR",
	"INTERNAL_ERROR",
	"CONNECTION_REFUSED",
	"FLOW_CONTROL_ERROR",
	"STREAM_LIMIT_ERROR",
	"STREAM_STATE_ERROR",
	"FINAL_SIZE_ERROR",
	"FRAME_ENCODING_ERROR",
	"TRANSPORT_PARAMETER_ERROR",
	"CONNECTION_ID_LIMIT_ERROR",
	"PROTOCOL_VIOLATION",
	"INVALID_TOKEN",
	"APPLICATION_ERROR",
	"CRYPTO_BUFFER_EXCEEDED",
	"KEY_UPDATE_ERROR",
	"AEAD_LIMIT_REACHED",
	"NO_VIABLE_PATH",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ERROR_0x%x", uint64(k))
}

// Error is a fatal, connection-level error. It carries enough information
// to populate a CONNECTION_CLOSE frame: the error code, the frame type that
// triggered it (0 when not applicable) and a short human-readable reason.
//
// Error never wraps another error: the taxonomy is closed and every
// producer in this package constructs one directly with newError or
// newFrameError.
type Error struct {
	Kind      ErrorKind
	FrameType uint64
	Reason    string
}

func newError(kind ErrorKind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func newFrameError(kind ErrorKind, frameType uint64, reason string) *Error {
	return &Error{Kind: kind, FrameType: frameType, Reason: reason}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// errorCodeString renders a raw CONNECTION_CLOSE error code, falling back to
// hex for application-defined or reserved codes.
func errorCodeString(code uint64) string {
	if code < uint64(len(errorKindNames)) {
		return errorKindNames[code]
	}
	return fmt.Sprintf("0x%x", code)
}

// CryptoError wraps a TLS alert observed while driving the handshake.
// The handshake itself is out of scope for this package; CryptoError only
// gives the rest of the engine a typed value to route to the connection
// error sink per the taxonomy in the error handling design.
type CryptoError struct {
	Alert uint8
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("CRYPTO_ERROR 0x%x", 0x0100+uint64(e.Alert))
}
