package engine

import (
	"time"
)

// receiveSegment implements spec §4.4 segment receive: filters fully-stale
// data, trims an already-seen prefix, notifies App Dispatch with whatever
// payload remains, advances seqno_them, and acks. Out-of-order segments
// beyond seqno_them are dropped with no reassembly buffer, per spec
// Non-goals.
func (t *Table) receiveSegment(tcb *TCB, payload []byte, payloadLength Size, seqnoThemArrived Value, isFIN bool, now time.Time) {
	if IsStalePastSeq(tcb.SeqnoThem, seqnoThemArrived, payloadLength) {
		t.sendACK(tcb)
		return
	}

	for seqnoThemArrived != tcb.SeqnoThem && payloadLength > 0 {
		payload = payload[1:]
		payloadLength--
		seqnoThemArrived = Add(seqnoThemArrived, 1)
	}

	if payloadLength == 0 && !isFIN {
		t.sendACK(tcb)
		return
	}

	if payloadLength > 0 {
		t.dispatchApp(tcb, AppEventRecvPayload, payload, now)
	}

	extra := Size(0)
	if isFIN {
		extra = 1
	}
	tcb.SeqnoThem = Add(tcb.SeqnoThem, payloadLength+extra)
	t.sendACK(tcb)
}
