package transport

import (
	"testing"
	"time"
)

func TestLogEventFrame(t *testing.T) {
	tests := []struct {
		f    frame
		want string
	}{
		{newPaddingFrame(1), "frame_type=padding"},
		{&pingFrame{}, "frame_type=ping"},
		{newAckFrame(2, recvRangeSet{{smallest: 0, largest: 1}}), "frame_type=ack ack_delay=2"},
		{newResetStreamFrame(1, 2, 3), "frame_type=reset_stream stream_id=1 error_code=2 final_size=3"},
		{newStopSendingFrame(1, 2), "frame_type=stop_sending stream_id=1 error_code=2"},
		{newCryptoFrame(make([]byte, 5), 1), "frame_type=crypto offset=1 length=5"},
		{newNewTokenFrame(make([]byte, 4)), "frame_type=new_token token=00000000"},
		{newStreamFrame(2, make([]byte, 4), 3, true), "frame_type=stream stream_id=2 offset=3 length=4 fin=true"},
		{newMaxDataFrame(1), "frame_type=max_data maximum=1"},
		{newMaxStreamDataFrame(1, 2), "frame_type=max_stream_data stream_id=1 maximum=2"},
		{newMaxStreamsFrame(1, false), "frame_type=max_streams stream_type=unidirectional maximum=1"},
		{newMaxStreamsFrame(2, true), "frame_type=max_streams stream_type=bidirectional maximum=2"},
		{newDataBlockedFrame(1), "frame_type=data_blocked limit=1"},
		{newStreamDataBlockedFrame(1, 2), "frame_type=stream_data_blocked stream_id=1 limit=2"},
		{newStreamsBlockedFrame(1, false), "frame_type=streams_blocked stream_type=unidirectional limit=1"},
		{newStreamsBlockedFrame(2, true), "frame_type=streams_blocked stream_type=bidirectional limit=2"},
		{&newConnectionIDFrame{sequenceNumber: 3, retirePriorTo: 1, connectionID: []byte{0xab}},
			"frame_type=new_connection_id sequence_number=3 retire_prior_to=1 connection_id=ab"},
		{&retireConnectionIDFrame{sequenceNumber: 2}, "frame_type=retire_connection_id sequence_number=2"},
		{newConnectionCloseFrame(0x122, 99, []byte("reason"), false),
			"frame_type=connection_close error_space=transport error_code=0x122 raw_error_code=290 reason=reason trigger_frame_type=99"},
		{&handshakeDoneFrame{}, "frame_type=handshake_done"},
		{&datagramFrame{data: make([]byte, 7)}, "frame_type=datagram length=7"},
	}
	tm := time.Date(2020, time.January, 5, 2, 3, 4, 5, time.UTC)
	for _, tt := range tests {
		e := newLogEventFrame(tm, logEventFramesProcessed, tt.f)
		want := "2020-01-05T02:03:04Z frames_processed " + tt.want
		if got := e.String(); got != want {
			t.Fatalf("\nexpect %v\nactual %v", want, got)
		}
	}
}

func TestLogEventPacket(t *testing.T) {
	tm := time.Date(2020, time.January, 5, 2, 3, 4, 5, time.UTC)
	e := newLogEventPacket(tm, logEventPacketSent, SpaceHandshake, 9, 120)
	want := "2020-01-05T02:03:04Z packet_sent space=handshake packet_number=9 payload_length=120"
	if got := e.String(); got != want {
		t.Fatalf("\nexpect %v\nactual %v", want, got)
	}
}

func TestLogEventToLogrusFields(t *testing.T) {
	e := newLogEvent(time.Now(), logEventPacketReceived)
	e.addField("space", "initial")
	e.addField("packet_number", uint64(7))
	lf := e.ToLogrusFields()
	if lf["space"] != "initial" {
		t.Fatalf("space = %v", lf["space"])
	}
	if lf["packet_number"] != uint64(7) {
		t.Fatalf("packet_number = %v", lf["packet_number"])
	}
}
