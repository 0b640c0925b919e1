package engine

import (
	"log/slog"
	"time"

	"github.com/netprobe/synscan/internal"
)

// IncomingTCP is the single entry point for packet events (spec §4.3, §6
// incoming_tcp). now_s/now_us from the distilled spec collapse to a single
// time.Time here, matching how Send/Acknowledge/Resend already take one.
// Returns whether the event was consumed by a known transition.
func (t *Table) IncomingTCP(tcb *TCB, event EventKind, payload []byte, payloadLength Size, now time.Time, seqnoThem, acknoThem Value) (consumed bool) {
	if event == EventTIMEOUT && now.Sub(tcb.WhenCreated) > t.connectionTimeout {
		t.sendRST(tcb)
		t.DestroyTCB(tcb, ReasonTimeout, now)
		return true
	}
	if event == EventRST {
		t.DestroyTCB(tcb, ReasonRST, now)
		return true
	}

	switch tcb.State {
	case StateSynSent:
		return t.handleSynSent(tcb, event, now, seqnoThem, acknoThem)
	case StateEstablishedSend, StateEstablishedRecv, StateFinWait1:
		return t.handleEstablished(tcb, event, payload, payloadLength, now, seqnoThem, acknoThem)
	case StateFinWait2, StateTimeWait:
		return t.handleFinWait2TimeWait(tcb, event, now)
	case StateLastAck, StateCloseWait, StateClosing:
		// Placeholders per spec §4.3: "events are logged." Reachability of
		// LAST_ACK/CLOSING from this state machine's transitions is an open
		// question (spec §9) — CLOSE_WAIT only ever reaches them through
		// transitions this spec does not define, so they are dead ends here
		// by design, not by omission.
		t.debug("statemachine:placeholder-state", slog.String("state", tcb.State.String()), slog.String("event", event.String()))
		return false
	default:
		t.Error("statemachine:unknown-state", slog.String("state", tcb.State.String()))
		panic(errUnknownState)
	}
}

func (t *Table) sendRST(tcb *TCB) {
	buf, ok := t.getBufferWithBackoff()
	if !ok {
		t.Error("statemachine:rst-pool-empty")
		return
	}
	err := t.template.FormatPacket(buf, tcb.Endpoints, tcb.SeqnoMe, tcb.SeqnoThem, OutRST|OutACK, 0, nil)
	if err != nil {
		t.Error("statemachine:rst-format-failed", slog.String("err", err.Error()))
		return
	}
	t.stack.Transmit(buf)
}

func (t *Table) sendACK(tcb *TCB) {
	buf, ok := t.getBufferWithBackoff()
	if !ok {
		t.Error("statemachine:ack-pool-empty")
		return
	}
	window := Size(65535)
	if tcb.IsSmallWindow {
		window = 600
	}
	err := t.template.FormatPacket(buf, tcb.Endpoints, tcb.SeqnoMe, tcb.SeqnoThem, OutACK, window, nil)
	if err != nil {
		t.Error("statemachine:ack-format-failed", slog.String("err", err.Error()))
		return
	}
	t.stack.Transmit(buf)
}

func (t *Table) handleSynSent(tcb *TCB, event EventKind, now time.Time, seqnoThem, acknoThem Value) bool {
	switch event {
	case EventTIMEOUT:
		tcb.SynsSent++
		t.transmitSYN(tcb)
		// Jitter the retry so many TCBs created in the same tick don't
		// retransmit their SYN in lockstep.
		seed := uint32(tcb.index)*2654435761 + uint32(tcb.generation) + uint32(tcb.SynsSent)
		jitter := time.Duration(internal.Prand32(seed)%250) * time.Millisecond
		t.armRetransmit(tcb, now.Add(time.Duration(tcb.SynsSent)*time.Second+jitter))
		return true
	case EventSYNACK:
		// +1 consumes the SYN's own byte of sequence space, matching spec
		// §8 scenario 1 (their_seq=1000 on the SYNACK, the first data byte
		// arrives at their_seq=1001).
		tcb.SeqnoThem = Add(seqnoThem, 1)
		tcb.seqnoThemFirst = tcb.SeqnoThem
		tcb.SeqnoMe = acknoThem
		tcb.seqnoMeFirst = acknoThem
		t.sendACK(tcb)
		t.dispatchApp(tcb, AppEventConnected, nil, now)
		return true
	}
	return false
}

func (t *Table) transmitSYN(tcb *TCB) {
	buf, ok := t.getBufferWithBackoff()
	if !ok {
		t.Error("statemachine:syn-pool-empty")
		return
	}
	err := t.template.FormatPacket(buf, tcb.Endpoints, tcb.SeqnoMe, 0, OutSYN, 65535, nil)
	if err != nil {
		t.Error("statemachine:syn-format-failed", slog.String("err", err.Error()))
		return
	}
	t.stack.Transmit(buf)
}

func (t *Table) handleEstablished(tcb *TCB, event EventKind, payload []byte, payloadLength Size, now time.Time, seqnoThem, acknoThem Value) bool {
	switch event {
	case EventSYNACK:
		t.sendACK(tcb)
		return true
	case EventFIN:
		if tcb.State == StateEstablishedRecv {
			tcb.State = StateCloseWait
		}
		// From ESTABLISHED_SEND, ignore: the peer will resend the FIN once
		// it sees our outstanding ACKs (spec §4.3).
		return true
	case EventACK:
		t.Acknowledge(tcb, acknoThem, now)
		switch tcb.State {
		case StateEstablishedSend:
			if len(tcb.Segments) == 0 {
				tcb.State = StateEstablishedRecv
				t.dispatchApp(tcb, AppEventSendSent, nil, now)
				t.armRetransmit(tcb, now.Add(10*time.Second))
			}
		case StateEstablishedRecv:
			t.armRetransmit(tcb, now.Add(time.Second))
		case StateFinWait1:
			if len(tcb.Segments) == 0 {
				tcb.State = StateFinWait2
				t.armRetransmit(tcb, now.Add(5*time.Second))
			} else {
				t.armRetransmit(tcb, now.Add(time.Second))
			}
		}
		if len(tcb.Segments) > 0 && tcb.Segments[0].IsFIN {
			tcb.State = StateFinWait1
		}
		return true
	case EventTIMEOUT:
		switch tcb.State {
		case StateEstablishedRecv:
			t.dispatchApp(tcb, AppEventRecvTimeout, nil, now)
		case StateEstablishedSend, StateFinWait1:
			t.Resend(tcb, now)
			t.armRetransmit(tcb, now.Add(time.Second))
		}
		return true
	case EventDATA:
		t.receiveSegment(tcb, payload, payloadLength, seqnoThem, false, now)
		return true
	}
	return false
}

func (t *Table) handleFinWait2TimeWait(tcb *TCB, event EventKind, now time.Time) bool {
	switch event {
	case EventFIN:
		t.receiveSegment(tcb, nil, 0, tcb.SeqnoThem, true, now)
		tcb.State = StateTimeWait
		t.armRetransmit(tcb, now.Add(5*time.Second))
		return true
	case EventTIMEOUT:
		if tcb.State == StateTimeWait {
			t.DestroyTCB(tcb, ReasonTimeout, now)
			return true
		}
	}
	return false
}
