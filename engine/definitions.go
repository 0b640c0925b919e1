// Package engine implements the stateless-scanner-grade userspace TCP
// connection engine: the TCP Connection Table, per-connection state
// machine, segment queue, timer-wheel integration, and application
// dispatch layer described in the specification. Packet I/O, checksum
// computation, SYN-cookie generation, and the banner parsers themselves
// are external collaborators consumed through the netio and stream
// packages.
package engine

import (
	"errors"

	"github.com/netprobe/synscan/internal"
)

var (
	errTableFull         = errors.New("engine: table full")
	errAllocFailed       = errors.New("engine: tcb allocation failed")
	errDoubleFree        = errors.New("engine: double free on destroy_tcb")
	errSeqnoCorruption   = errors.New("engine: resend seqno mismatch with queue head")
	errUnknownState      = errors.New("engine: unknown state in dispatch")
	errZeroRemoteAddress = errors.New("engine: create_tcb rejected a zero remote address")
)

// Discipline tags which destructor behavior a Segment's buffer requires,
// per spec §3 / §9: a tagged union where the tag dictates destructor
// behavior, modeled on soypat-lneto/tcp's Static/Adopt/Copy ownership split
// (itself modeled after ringTx's sent/unsent zones, generalized to an
// explicit per-segment tag since our segments are not ring-backed).
type Discipline uint8

const (
	// Static buffers are borrowed and never freed by the queue.
	Static Discipline = iota
	// Adopt buffers are heap buffers the queue now owns.
	Adopt
	// Copy buffers were allocated and memcpy'd by the queue itself.
	Copy
)

func (d Discipline) String() string {
	switch d {
	case Static:
		return "static"
	case Adopt:
		return "adopt"
	case Copy:
		return "copy"
	default:
		return "discipline(?)"
	}
}

// EventKind enumerates the events delivered by the packet ingress to
// IncomingTCP, plus the internal Timeout event driven by ProcessTimeouts.
type EventKind uint8

const (
	EventSYNACK EventKind = iota
	EventACK
	EventFIN
	EventRST
	EventDATA
	EventTIMEOUT
)

func (e EventKind) String() string {
	switch e {
	case EventSYNACK:
		return "SYNACK"
	case EventACK:
		return "ACK"
	case EventFIN:
		return "FIN"
	case EventRST:
		return "RST"
	case EventDATA:
		return "DATA"
	case EventTIMEOUT:
		return "TIMEOUT"
	default:
		return "event(?)"
	}
}

// State is the compressed RFC 793 variant from spec §3: a TCB's TCP state,
// tailored to active, single-request scanning with a split
// EstablishedSend/EstablishedRecv pair (the scanner is strictly
// half-duplex per phase).
type State uint8

const (
	StateSynSent State = iota
	StateEstablishedSend
	StateEstablishedRecv
	StateCloseWait
	StateLastAck
	StateFinWait1
	StateFinWait2
	StateClosing
	StateTimeWait
)

func (s State) String() string {
	switch s {
	case StateSynSent:
		return "SYN_SENT"
	case StateEstablishedSend:
		return "ESTABLISHED_SEND"
	case StateEstablishedRecv:
		return "ESTABLISHED_RECV"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateLastAck:
		return "LAST_ACK"
	case StateFinWait1:
		return "FIN_WAIT1"
	case StateFinWait2:
		return "FIN_WAIT2"
	case StateClosing:
		return "CLOSING"
	case StateTimeWait:
		return "TIME_WAIT"
	default:
		return "state(?)"
	}
}

// AppState is the 4-state application-protocol dispatch sub-machine from
// spec §4.5.
type AppState uint8

const (
	AppConnect AppState = iota
	AppReceiveHello
	AppReceiveNext
	AppSendNext
)

func (a AppState) String() string {
	switch a {
	case AppConnect:
		return "Connect"
	case AppReceiveHello:
		return "ReceiveHello"
	case AppReceiveNext:
		return "ReceiveNext"
	case AppSendNext:
		return "SendNext"
	default:
		return "appstate(?)"
	}
}

// AppEvent enumerates the inputs the TCP state machine feeds into App
// Dispatch, per spec §4.5.
type AppEvent uint8

const (
	AppEventConnected AppEvent = iota
	AppEventRecvPayload
	AppEventRecvTimeout
	AppEventSendSent
)

// Reason records why a TCB was destroyed, for logging and for the
// reporter/output sink.
type Reason uint8

const (
	ReasonFIN Reason = iota
	ReasonRST
	ReasonTimeout
	ReasonFlush
)

func (r Reason) String() string {
	switch r {
	case ReasonFIN:
		return "fin"
	case ReasonRST:
		return "rst"
	case ReasonTimeout:
		return "timeout"
	case ReasonFlush:
		return "flush"
	default:
		return "reason(?)"
	}
}

// logger is the per-package embeddable slog wrapper, shared with every
// other package in this module (see internal.Logger).
type logger = internal.Logger
