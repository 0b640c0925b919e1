package engine

import (
	"log/slog"
	"time"
)

// Segment is one outgoing TCP segment queued for transmission (spec §3).
type Segment struct {
	SEQ        Value
	Buf        []byte
	Length     Size
	Discipline Discipline
	IsFIN      bool
}

// segEnd returns the sequence number one past the last byte of seg,
// counting the FIN as one byte of sequence space.
func segEnd(seg Segment) Value {
	extra := Size(0)
	if seg.IsFIN {
		extra = 1
	}
	return Add(seg.SEQ, seg.Length+extra)
}

// freeSegmentBuffer releases a segment's buffer according to its ownership
// discipline. Static buffers are borrowed and are never freed here; Adopt
// and Copy buffers are owned by the queue and are dropped for the garbage
// collector to reclaim (spec §3 invariant 5 / §9: "the tag dictates
// destructor behavior").
func freeSegmentBuffer(seg *Segment) {
	switch seg.Discipline {
	case Adopt, Copy:
		seg.Buf = nil
	}
}

// Send implements spec §4.2 SegmentQueue.send: split oversized payloads at
// MSS, reject appends past a queued FIN, append the new segment, eagerly
// transmit it if the queue was empty, and always re-arm the retransmit
// timer.
func (t *Table) Send(tcb *TCB, buf []byte, length Size, discipline Discipline, isFIN bool, now time.Time) error {
	if length > tcb.MSS {
		headBuf := buf[:tcb.MSS]
		tailBuf := buf[tcb.MSS:]
		tailDiscipline := discipline
		if discipline == Adopt {
			// A recursive split whose outer discipline was Adopt becomes
			// Copy for the tail: ownership cannot be split (spec §4.2 step 1).
			tailDiscipline = Copy
		}
		if err := t.sendOne(tcb, headBuf, tcb.MSS, discipline, false, now); err != nil {
			return err
		}
		return t.Send(tcb, tailBuf, length-tcb.MSS, tailDiscipline, isFIN, now)
	}
	return t.sendOne(tcb, buf, length, discipline, isFIN, now)
}

func (t *Table) sendOne(tcb *TCB, buf []byte, length Size, discipline Discipline, isFIN bool, now time.Time) error {
	if length == 0 && !isFIN {
		return nil // spec §4.2 step 2.
	}

	if len(tcb.Segments) > 0 && tcb.Segments[len(tcb.Segments)-1].IsFIN {
		// Tail is already a FIN: reject the append (spec §3 invariant 4,
		// §4.2 step 3) and free an Adopt-owned buffer rather than leaking it.
		if discipline == Adopt {
			seg := Segment{Buf: buf, Discipline: discipline}
			freeSegmentBuffer(&seg)
		}
		t.armRetransmit(tcb, now.Add(time.Second))
		return nil
	}

	expectedSeq := tcb.SeqnoMe
	if n := len(tcb.Segments); n > 0 {
		expectedSeq = segEnd(tcb.Segments[n-1])
	}

	seg := Segment{SEQ: expectedSeq, Length: length, Discipline: discipline, IsFIN: isFIN}
	switch discipline {
	case Static, Adopt:
		seg.Buf = buf
	case Copy:
		seg.Buf = append([]byte(nil), buf...)
	}

	wasEmpty := len(tcb.Segments) == 0
	tcb.Segments = append(tcb.Segments, seg)
	if wasEmpty {
		t.transmitSegment(tcb, seg, false)
		tcb.State = StateEstablishedSend
		t.debug("segq:eager-transmit", slog.Uint64("seq", uint64(seg.SEQ)), slog.Uint64("len", uint64(seg.Length)))
	}
	t.armRetransmit(tcb, now.Add(time.Second))
	return nil
}

// Acknowledge implements spec §4.2 SegmentQueue.acknowledge: the past/future
// filters, cumulative retirement, and mid-segment trimming of a partially
// acked head.
func (t *Table) Acknowledge(tcb *TCB, ackno Value, now time.Time) bool {
	if ackno == tcb.SeqnoMe {
		return false // Normal repeat: no-op.
	}
	if IsStalePast(ackno, tcb.SeqnoMe) {
		t.counters.StaleACKsDropped++
		t.debug("segq:ack-stale-past", slog.Uint64("ack", uint64(ackno)), slog.Uint64("snd.me", uint64(tcb.SeqnoMe)))
		return false
	}
	if IsOutOfRangeFuture(ackno, tcb.SeqnoMe) {
		t.counters.StaleACKsDropped++
		t.debug("segq:ack-future", slog.Uint64("ack", uint64(ackno)), slog.Uint64("snd.me", uint64(tcb.SeqnoMe)))
		return false
	}

	lengthAcked := Sub(ackno, tcb.SeqnoMe)
	for len(tcb.Segments) > 0 {
		seg := &tcb.Segments[0]
		segLen := seg.Length
		if seg.IsFIN {
			segLen++
		}
		if Size(lengthAcked) < segLen {
			break
		}
		freeSegmentBuffer(seg)
		lengthAcked -= Size(segLen)
		tcb.SeqnoMe = segEnd(*seg)
		tcb.Segments = tcb.Segments[1:]
	}

	if len(tcb.Segments) > 0 && lengthAcked > 0 {
		// Partial ack of the new head: shrink it in place (spec §4.2).
		seg := &tcb.Segments[0]
		switch seg.Discipline {
		case Static:
			seg.Buf = seg.Buf[lengthAcked:]
		case Adopt, Copy:
			shrunk := append([]byte(nil), seg.Buf[lengthAcked:]...)
			seg.Buf = shrunk
			seg.Discipline = Copy
		}
		seg.Length -= Size(lengthAcked)
		seg.SEQ = Add(seg.SEQ, Size(lengthAcked))
		tcb.SeqnoMe = Add(tcb.SeqnoMe, Size(lengthAcked))
	}

	tcb.AcknoThem = ackno
	return true
}

// Resend implements spec §4.2 SegmentQueue.resend: retransmit exactly the
// unacknowledged head byte-for-byte and rearm for now+2s.
func (t *Table) Resend(tcb *TCB, now time.Time) {
	if len(tcb.Segments) == 0 {
		return
	}
	head := tcb.Segments[0]
	if head.SEQ != tcb.SeqnoMe {
		// §7: "Seqno mismatch with queue head — Fatal, indicates internal
		// corruption." The only non-bug way to reach this is if Acknowledge
		// was skipped for an accepted ACK, which is itself a programmer error.
		t.Error("resend:seqno-corruption", slog.Uint64("head.seq", uint64(head.SEQ)), slog.Uint64("snd.me", uint64(tcb.SeqnoMe)))
		panic(errSeqnoCorruption)
	}
	t.transmitSegment(tcb, head, true)
	t.counters.Retransmits++
	t.armResend(tcb, now.Add(2*time.Second))
}

// transmitSegment formats and enqueues seg for transmission via the
// external PacketTemplate/BufferPool/StackQueue collaborators (spec §6).
// Pure-ACK, RST and FIN packets carry empty payloads; retransmissions are
// byte-identical to the original (spec §6, §8 property 7) because this is
// the only call site that forms the wire bytes from a Segment.
func (t *Table) transmitSegment(tcb *TCB, seg Segment, isResend bool) {
	flags := OutPSH | OutACK
	if seg.IsFIN {
		flags |= OutFIN
	}
	window := Size(65535)
	if tcb.IsSmallWindow {
		window = 600
	}
	payload := seg.Buf[:seg.Length]
	buf, ok := t.getBufferWithBackoff()
	if !ok {
		t.Error("segq:pool-empty-drop", slog.String("reason", "buffer pool empty after retry"))
		return
	}
	err := t.template.FormatPacket(buf, tcb.Endpoints, seg.SEQ, tcb.SeqnoThem, flags, window, payload)
	if err != nil {
		t.Error("segq:format-failed", slog.String("err", err.Error()))
		return
	}
	t.stack.Transmit(buf)
	t.Trace("segq:transmit", slog.Bool("resend", isResend), slog.Uint64("seq", uint64(seg.SEQ)), slog.Uint64("len", uint64(seg.Length)))
}
