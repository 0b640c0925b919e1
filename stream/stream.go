// Package stream defines the ProtocolParserStream abstraction App Dispatch
// drives (spec §4.5, §6) and the minimal protocol streams this module ships
// (HTTP, SSL/TLS, SMBv1). The banner parsers themselves — full HTTP
// response parsing, the TLS record/handshake state machine, SMB negotiate
// responses — are out of scope (spec §1): each Stream only hands the
// engine canned hello bytes or a transmit_hello callback, and turns raw
// payload into banner fragments through Feed.
package stream

// NetAPI is the handle a Stream's TransmitHello/Feed callbacks use to write
// further application data back out on the connection, routing to
// SegmentQueue.send without the stream package depending on engine (spec
// §4.5: "a NetAPI handle that routes back to SegmentQueue.send").
type NetAPI interface {
	Send(payload []byte) error
}

// State is per-connection protocol scratch space a Stream may need across
// Feed calls — e.g. the SSL record/fragment assembler mentioned in spec §3
// ("BannerState carrying per-protocol scratch"). The zero value must be
// ready to use.
type State struct {
	// SSLFragment accumulates a partial TLS record header + body across
	// multiple Feed calls until a full record is available.
	SSLFragment []byte
	// IsSentHello records whether TransmitHello already fired, so a
	// retransmitted ReceiveHello timeout doesn't resend it.
	IsSentHello bool
	// Heartbleed, Ticketbleed, POODLE gate optional SSL probe behavior
	// (spec §6 parameters of the same names; the probes themselves are out
	// of scope, only the toggles are plumbed through).
	Heartbleed  bool
	Ticketbleed bool
	POODLE      bool
}

// Fragment is one piece of banner evidence a Stream emits from Feed.
type Fragment struct {
	Data []byte
}

// Stream is a per-application-protocol handler: HTTP, SSL, SMB, SSH, etc.
// Exactly one Stream is attached to a TCB at create_tcb time (spec §4.1),
// selected by remote port unless the caller supplies one explicitly.
type Stream interface {
	// Name identifies the protocol for reporting (spec report_banner's
	// app_proto argument).
	Name() string

	// Hello returns canned hello bytes to send verbatim on a
	// ReceiveHello timeout when TransmitHello is not implemented (nil,
	// false), per spec §4.5.
	Hello(st *State) ([]byte, bool)

	// TransmitHello, if non-nil behavior is desired, computes and sends a
	// protocol-specific hello directly via net (e.g. an SSL ClientHello
	// whose content depends on negotiated parameters). Returns false if
	// the stream has no custom transmit behavior and Hello should be used
	// instead.
	TransmitHello(st *State, net NetAPI) (bool, error)

	// Feed delivers newly-received payload bytes to the protocol parser.
	// It may append banner Fragments and may call net.Send to write
	// further application data (spec §4.5 ReceiveNext).
	Feed(st *State, net NetAPI, payload []byte) ([]Fragment, error)

	// Next returns an alternate-protocol stream to additionally attempt
	// against the same target over a freshly rotated local 4-tuple (spec
	// §4.5, §4.6), or (nil, false) if there is none. Modeled as a method
	// rather than a fixed field so fallback chains (e.g. SSLv3 -> TLS1.0)
	// can be expressed without the engine special-casing chain depth
	// (SPEC_FULL §12 supplement).
	Next() (Stream, bool)

	// Cleanup releases any protocol-specific banner state on teardown
	// (spec §4.1 destroy_tcb: "tears down protocol-specific banner state
	// (e.g., SMB cleanup)").
	Cleanup(st *State)
}

// ByPort selects a default Stream for a remote port, per spec §4.1
// create_tcb: "selects the protocol stream (argument, else the table's
// default port-indexed stream)".
type ByPort map[uint16]Stream

// Select returns the stream registered for port, or (nil, false).
func (m ByPort) Select(port uint16) (Stream, bool) {
	s, ok := m[port]
	return s, ok
}
