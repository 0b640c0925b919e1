package engine

import (
	"log/slog"
	"time"

	"github.com/netprobe/synscan/timerwheel"
)

// ProcessTimeouts is the external entry point called from the ingress loop
// each tick (spec §6 process_timeouts): it runs the catch-all rearm safety
// net, then drains and dispatches every timer entry due by now.
func (t *Table) ProcessTimeouts(now time.Time) {
	t.catchAllRearm(now)

	for _, tok := range t.timers.RemoveExpired(now) {
		if tok.Index < 0 || int(tok.Index) >= len(t.slab) {
			continue
		}
		tcb := &t.slab[tok.Index]
		if !tcb.IsActive || tcb.generation != tok.Generation {
			// Slot was reused or destroyed since this entry was armed;
			// nothing to dispatch against.
			continue
		}
		t.IncomingTCP(tcb, EventTIMEOUT, nil, 0, now, tcb.SeqnoThem, tcb.AcknoThem)
	}
}

// catchAllRearm re-arms any active TCB whose timer slot is empty, for
// now + 2s. Spec §5/§9 describe this as an accepted known-kludge safety net
// against missed rearms, not something to prove unnecessary and delete: an
// implementation that can prove the invariant holds at every call site may
// omit it, but absent that proof the literal source keeps it, and so do we.
func (t *Table) catchAllRearm(now time.Time) {
	for i := range t.slab {
		tcb := &t.slab[i]
		if !tcb.IsActive {
			continue
		}
		tok := timerwheel.Token{Index: tcb.index, Generation: tcb.generation}
		if t.timers.Has(tok) {
			continue
		}
		t.Error("timers:catch-all-rearm", slog.Int("idx", int(tcb.index)), slog.String("state", tcb.State.String()))
		t.armRetransmit(tcb, now.Add(2*time.Second))
	}
}
