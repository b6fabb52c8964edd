package transport

import (
	"context"
	"testing"
	"time"
)

func newTestPlanner(t *testing.T) (*Planner, *AntiAmplifier, *SendControl) {
	t.Helper()
	cc := newRenoController(1200)
	antiAmp := NewAntiAmplifier()
	antiAmp.Validate() // skip 3x bookkeeping for tests that don't exercise it directly
	sendCtrl := NewSendControl(1 << 20)
	dcid := NewRemoteCIDRegistry([]byte("odcid"))
	return NewPlanner(cc, antiAmp, sendCtrl, dcid, 1200), antiAmp, sendCtrl
}

func TestPlannerPrepareTransactionReturnsUsableTransaction(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tx, err := p.PrepareTransaction(ctx)
	if err != nil {
		t.Fatalf("PrepareTransaction: %v", err)
	}
	if string(tx.DCID()) != "odcid" {
		t.Fatalf("expected the ODCID as destination, got %q", tx.DCID())
	}
	if tx.FlowLimit() == 0 {
		t.Fatalf("expected nonzero flow credit")
	}
}

func TestPlannerPrepareTransactionDegradesCreditOnExhaustion(t *testing.T) {
	cc := newRenoController(1200)
	antiAmp := NewAntiAmplifier()
	antiAmp.Validate()
	sendCtrl := NewSendControl(0) // no credit at all
	dcid := NewRemoteCIDRegistry([]byte("odcid"))
	p := NewPlanner(cc, antiAmp, sendCtrl, dcid, 1200)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tx, err := p.PrepareTransaction(ctx)
	if err != nil {
		t.Fatalf("expected an ack-only transaction to still be prepared, got %v", err)
	}
	if tx.FlowLimit() != 0 {
		t.Fatalf("expected degraded zero credit, got %d", tx.FlowLimit())
	}
}

func TestPlannerPrepareTransactionCancels(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.PrepareTransaction(ctx); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestTransactionLoadAndCommitAntiAmpExemptsAckOnly(t *testing.T) {
	p, antiAmp, _ := newTestPlanner(t)
	antiAmp.mu.Lock()
	antiAmp.validated = false // exercise the metered path directly
	antiAmp.mu.Unlock()
	antiAmp.OnDataRecvd(1200)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tx, err := p.PrepareTransaction(ctx)
	if err != nil {
		t.Fatalf("PrepareTransaction: %v", err)
	}

	sp := NewSpace(SpaceData)
	sp.QueueFrame(&pingFrame{})
	buf := make([]byte, 200)
	now := time.Now()
	n, pn, err := tx.LoadOneRTTData(sp, 0, buf, now)
	if err != nil || n == 0 {
		t.Fatalf("LoadOneRTTData: n=%d err=%v", n, err)
	}
	if pn != 0 {
		t.Fatalf("first packet in the space must use packet number 0, got %d", pn)
	}
	var pkt packet
	pkt.header.dcil = uint8(len(tx.DCID()))
	if _, err := pkt.decodeHeader(buf[:n]); err != nil {
		t.Fatalf("assembled packet must carry a parseable short header: %v", err)
	}
	if pkt.typ != packetTypeShort {
		t.Fatalf("expected a short header, got %v", pkt.typ)
	}

	tx.Commit(n, true, true, now)
	if antiAmp.sent != 0 {
		t.Fatalf("ack-only commit must not debit the anti-amplification balance, got sent=%d", antiAmp.sent)
	}
}

func TestTransactionCommitDebitsAntiAmpWhenNotAckOnly(t *testing.T) {
	p, antiAmp, _ := newTestPlanner(t)
	antiAmp.mu.Lock()
	antiAmp.validated = false
	antiAmp.mu.Unlock()
	antiAmp.OnDataRecvd(1200)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tx, err := p.PrepareTransaction(ctx)
	if err != nil {
		t.Fatalf("PrepareTransaction: %v", err)
	}
	tx.Commit(100, false, true, time.Now())
	if antiAmp.sent != 100 {
		t.Fatalf("expected anti-amplification debited by 100, got %d", antiAmp.sent)
	}
}
