package engine

import (
	"log/slog"
	"time"

	"github.com/netprobe/synscan/stream"
)

// netAPI adapts a single TCB's SegmentQueue.send into the stream.NetAPI
// handle a Stream's TransmitHello/Feed callbacks use to write further
// application data (spec §4.5, §6).
type netAPI struct {
	t   *Table
	tcb *TCB
	now time.Time
}

func (n netAPI) Send(payload []byte) error {
	return n.t.Send(n.tcb, payload, Size(len(payload)), Copy, false, n.now)
}

// dispatchApp implements spec §4.5 App Dispatch: the 4-state Connect →
// ReceiveHello → ReceiveNext / SendNext sub-machine layered on top of the
// TCP state machine.
func (t *Table) dispatchApp(tcb *TCB, event AppEvent, payload []byte, now time.Time) {
	switch tcb.AppState {
	case AppConnect:
		if event == AppEventConnected {
			t.armRetransmit(tcb, now.Add(t.helloTimeout))
			tcb.State = StateEstablishedRecv
			tcb.AppState = AppReceiveHello
			if tcb.Stream != nil {
				if next, ok := tcb.Stream.Next(); ok {
					t.scheduleAltReconnect(tcb, next, now)
				}
			}
		}

	case AppReceiveHello:
		switch event {
		case AppEventRecvTimeout:
			t.sendHello(tcb, now)
		case AppEventRecvPayload:
			tcb.AppState = AppReceiveNext
			t.feedPayload(tcb, payload, now)
		}

	case AppReceiveNext:
		if event == AppEventRecvPayload {
			t.feedPayload(tcb, payload, now)
		}

	case AppSendNext:
		if event == AppEventSendSent {
			tcb.State = StateEstablishedRecv
			tcb.AppState = AppReceiveNext
		}
	}
}

// sendHello implements the ReceiveHello/APP_RECV_TIMEOUT transition: prefer
// a stream's TransmitHello callback, falling back to a canned hello
// template enqueued as a single Static FIN segment (spec §4.5).
func (t *Table) sendHello(tcb *TCB, now time.Time) {
	if tcb.Stream == nil {
		return
	}
	net := netAPI{t: t, tcb: tcb, now: now}

	if sent, err := tcb.Stream.TransmitHello(&tcb.BannerState, net); err != nil {
		t.Error("app:transmit-hello-failed", slog.String("err", err.Error()))
		return
	} else if sent {
		t.applyHelloSideEffects(tcb)
		return
	}

	hello, ok := tcb.Stream.Hello(&tcb.BannerState)
	if !ok {
		return
	}
	if err := t.Send(tcb, hello, Size(len(hello)), Static, true, now); err != nil {
		t.Error("app:send-hello-failed", slog.String("err", err.Error()))
		return
	}
	t.applyHelloSideEffects(tcb)
}

func (t *Table) applyHelloSideEffects(tcb *TCB) {
	if tcb.Stream != nil && tcb.Stream.Name() == "ssl" {
		tcb.BannerState.IsSentHello = true
	}
	if tcb.BannerState.Heartbleed {
		tcb.IsSmallWindow = true
	}
}

// feedPayload implements the ReceiveNext/APP_RECV_PAYLOAD transition:
// deliver bytes to the attached protocol parser and accumulate whatever
// banner fragments it emits.
func (t *Table) feedPayload(tcb *TCB, payload []byte, now time.Time) {
	if tcb.Stream == nil || len(payload) == 0 {
		return
	}
	net := netAPI{t: t, tcb: tcb, now: now}
	fragments, err := tcb.Stream.Feed(&tcb.BannerState, net, payload)
	if err != nil {
		t.Error("app:feed-failed", slog.String("err", err.Error()))
		return
	}
	for _, f := range fragments {
		tcb.Banner.Append(f.Data)
	}
}

var _ stream.NetAPI = netAPI{}
