package engine

import (
	"log/slog"
	"time"

	"github.com/netprobe/synscan/stream"
)

// RotatePort computes the next source port within [low, high], wrapping to
// low on overflow, per spec §4.6.
func RotatePort(port, low, high uint16) (next uint16, wrapped bool) {
	if port < high {
		return port + 1, false
	}
	return low, true
}

// RotateIP advances addr (an IPv4 4-byte or IPv6 16-byte big-endian address)
// by one within [low, high], treating it as a big integer (spec §4.6:
// "IPv4 arithmetic; IPv6 as 128-bit add-then-compare"). Wraps to low on
// overflow past high.
func RotateIP(addr, low, high []byte) (next []byte, wrapped bool) {
	next = append([]byte(nil), addr...)
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	if bytesGreater(next, high) {
		return append([]byte(nil), low...), true
	}
	return next, false
}

func bytesGreater(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// nextLocalEndpoint rotates ep's local port, advancing the local IP on
// port-range wraparound, per spec §4.6.
func (t *Table) nextLocalEndpoint(ep Endpoints) Endpoints {
	next := ep
	next.Local = append([]byte(nil), ep.Local...)

	port, wrapped := RotatePort(ep.LocalPort, t.sourcePortLow, t.sourcePortHigh)
	next.LocalPort = port
	if wrapped && len(t.sourceIPLow) > 0 {
		ip, _ := RotateIP(ep.Local, t.sourceIPLow, t.sourceIPHigh)
		next.Local = ip
	}
	return next
}

// scheduleAltReconnect implements spec §4.5's alt-protocol reconnect: a
// second connection attempt to the same remote target over a freshly
// rotated local 4-tuple, using altStream instead of the one already
// attached to tcb, still starting in Connect.
func (t *Table) scheduleAltReconnect(tcb *TCB, altStream stream.Stream, now time.Time) {
	newLocalEp := t.nextLocalEndpoint(tcb.Endpoints)
	newEp := Endpoints{
		Local:      newLocalEp.Local,
		Remote:     tcb.Endpoints.Remote,
		LocalPort:  newLocalEp.LocalPort,
		RemotePort: tcb.Endpoints.RemotePort,
		IsIPv6:     tcb.Endpoints.IsIPv6,
	}

	cookie := t.synCookie(newEp, t.entropy)
	seqnoMe := Sub0(Value(cookie), 1)

	newTCB, err := t.CreateTCB(newEp, seqnoMe, tcb.TTL, altStream, now)
	if err != nil {
		t.debug("rotate:create-failed", slog.String("err", err.Error()))
		return
	}
	t.transmitSYN(newTCB)
	t.armRetransmit(newTCB, now.Add(time.Second))
}

// Sub0 computes v - n in 32-bit modular arithmetic, the same wraparound
// rule as Add, kept distinct since n is typically a small literal (e.g.
// the "initial seqno_me - 1" in spec §4.6) rather than a Size byte count.
func Sub0(v Value, n uint32) Value {
	return v - Value(n)
}
