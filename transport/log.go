package transport

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Event categories follow qlog's QUIC event taxonomy.
// https://quiclog.github.io/internet-drafts/draft-marx-qlog-event-definitions-quic-h3.html
const (
	logEventPacketReceived  = "packet_received"
	logEventPacketSent      = "packet_sent"
	logEventPacketDropped   = "packet_dropped"
	logEventFramesProcessed = "frames_processed"
)

// LogField is one key-value pair of an event; a field holds either a
// string or a number, never both.
type LogField struct {
	Key string
	Str string
	Num uint64
}

func (s LogField) String() string {
	if s.Str == "" {
		return s.Key + "=" + strconv.FormatUint(s.Num, 10)
	}
	return s.Key + "=" + s.Str
}

// LogEvent is one qlog-shaped event emitted while processing a
// connection. Fields keep insertion order so rendered events are stable.
type LogEvent struct {
	Time   time.Time
	Type   string
	Fields []LogField
}

func newLogEvent(tm time.Time, tp string) LogEvent {
	return LogEvent{Time: tm, Type: tp, Fields: make([]LogField, 0, 8)}
}

// addField appends a field, coercing v into the string or numeric slot.
// Only the value shapes this package actually logs are supported.
func (s *LogEvent) addField(k string, v interface{}) {
	f := LogField{Key: k}
	switch v := v.(type) {
	case uint64:
		f.Num = v
	case int:
		f.Num = uint64(v)
	case string:
		f.Str = v
	case []byte:
		f.Str = hex.EncodeToString(v)
	case bool:
		f.Str = strconv.FormatBool(v)
	default:
		panic(fmt.Sprint("unsupported log field type for key ", k))
	}
	s.Fields = append(s.Fields, f)
}

func (s LogEvent) String() string {
	var b strings.Builder
	b.WriteString(s.Time.Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(s.Type)
	for _, f := range s.Fields {
		b.WriteString(" ")
		b.WriteString(f.String())
	}
	return b.String()
}

// EventSink receives LogEvents emitted during connection processing.
type EventSink interface {
	OnLogEvent(e LogEvent)
}

// newLogEventPacket builds a packet_sent/packet_received/packet_dropped
// event for a packet identified by its space and packet number.
func newLogEventPacket(tm time.Time, tp string, kind SpaceKind, pn uint64, size int) LogEvent {
	e := newLogEvent(tm, tp)
	e.addField("space", kind.String())
	if pn > 0 {
		e.addField("packet_number", pn)
	}
	if size > 0 {
		e.addField("payload_length", size)
	}
	return e
}

func logPacket(sink EventSink, tp string, kind SpaceKind, pn uint64, size int) {
	if sink == nil {
		return
	}
	sink.OnLogEvent(newLogEventPacket(time.Now(), tp, kind, pn, size))
}

// newLogEventFrame renders a decoded frame into an event, one field set
// per frame type. Field names follow qlog's QUIC frame schema.
func newLogEventFrame(tm time.Time, tp string, f frame) LogEvent {
	e := newLogEvent(tm, tp)
	switch f := f.(type) {
	case *paddingFrame:
		e.addField("frame_type", "padding")
	case *pingFrame:
		e.addField("frame_type", "ping")
	case *ackFrame:
		e.addField("frame_type", "ack")
		e.addField("ack_delay", f.ackDelay)
	case *resetStreamFrame:
		e.addField("frame_type", "reset_stream")
		e.addField("stream_id", f.streamID)
		e.addField("error_code", f.errorCode)
		e.addField("final_size", f.finalSize)
	case *stopSendingFrame:
		e.addField("frame_type", "stop_sending")
		e.addField("stream_id", f.streamID)
		e.addField("error_code", f.errorCode)
	case *cryptoFrame:
		e.addField("frame_type", "crypto")
		e.addField("offset", f.offset)
		e.addField("length", len(f.data))
	case *newTokenFrame:
		e.addField("frame_type", "new_token")
		e.addField("token", f.token)
	case *streamFrame:
		e.addField("frame_type", "stream")
		e.addField("stream_id", f.streamID)
		e.addField("offset", f.offset)
		e.addField("length", len(f.data))
		e.addField("fin", f.fin)
	case *maxDataFrame:
		e.addField("frame_type", "max_data")
		e.addField("maximum", f.maximumData)
	case *maxStreamDataFrame:
		e.addField("frame_type", "max_stream_data")
		e.addField("stream_id", f.streamID)
		e.addField("maximum", f.maximumData)
	case *maxStreamsFrame:
		e.addField("frame_type", "max_streams")
		e.addField("stream_type", streamTypeName(f.bidi))
		e.addField("maximum", f.maximumStreams)
	case *dataBlockedFrame:
		e.addField("frame_type", "data_blocked")
		e.addField("limit", f.dataLimit)
	case *streamDataBlockedFrame:
		e.addField("frame_type", "stream_data_blocked")
		e.addField("stream_id", f.streamID)
		e.addField("limit", f.dataLimit)
	case *streamsBlockedFrame:
		e.addField("frame_type", "streams_blocked")
		e.addField("stream_type", streamTypeName(f.bidi))
		e.addField("limit", f.streamLimit)
	case *newConnectionIDFrame:
		e.addField("frame_type", "new_connection_id")
		e.addField("sequence_number", f.sequenceNumber)
		e.addField("retire_prior_to", f.retirePriorTo)
		e.addField("connection_id", f.connectionID)
	case *retireConnectionIDFrame:
		e.addField("frame_type", "retire_connection_id")
		e.addField("sequence_number", f.sequenceNumber)
	case *pathChallengeFrame:
		e.addField("frame_type", "path_challenge")
	case *pathResponseFrame:
		e.addField("frame_type", "path_response")
	case *connectionCloseFrame:
		e.addField("frame_type", "connection_close")
		if f.application {
			e.addField("error_space", "application")
		} else {
			e.addField("error_space", "transport")
		}
		e.addField("error_code", errorCodeString(f.errorCode))
		e.addField("raw_error_code", f.errorCode)
		e.addField("reason", string(f.reasonPhrase))
		if f.frameType > 0 {
			e.addField("trigger_frame_type", f.frameType)
		}
	case *handshakeDoneFrame:
		e.addField("frame_type", "handshake_done")
	case *datagramFrame:
		e.addField("frame_type", "datagram")
		e.addField("length", len(f.data))
	default:
		e.addField("frame_type", "unknown")
	}
	return e
}

func streamTypeName(bidi bool) string {
	if bidi {
		return "bidirectional"
	}
	return "unidirectional"
}

// ToLogrusFields converts an event's fields into a logrus.Fields map, the
// bridge LogrusSink uses to hand a qlog-shaped event to a logrus.Entry.
func (s LogEvent) ToLogrusFields() logrus.Fields {
	lf := make(logrus.Fields, len(s.Fields))
	for _, f := range s.Fields {
		if f.Str != "" {
			lf[f.Key] = f.Str
		} else {
			lf[f.Key] = f.Num
		}
	}
	return lf
}

// LogrusSink adapts a *logrus.Logger into an EventSink, logging every
// event at debug level under its qlog category name. Production code
// supplies its own *logrus.Logger to control level and formatter.
type LogrusSink struct {
	Logger *logrus.Logger
}

// NewLogrusSink builds a sink around logger, or a fresh default logger if
// logger is nil.
func NewLogrusSink(logger *logrus.Logger) *LogrusSink {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogrusSink{Logger: logger}
}

func (s *LogrusSink) OnLogEvent(e LogEvent) {
	s.Logger.WithFields(e.ToLogrusFields()).WithTime(e.Time).Debug(e.Type)
}
