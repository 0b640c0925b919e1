package engine

import (
	"time"

	"github.com/netprobe/synscan/banner"
	"github.com/netprobe/synscan/stream"
)

// TCB is a Transmission Control Block: the per-connection state record
// (spec §3). TCBs live in Table's slab and are addressed by index; a TCB
// value must never be copied out of the slab and retained, since Table
// reuses slots via the free-list.
type TCB struct {
	Endpoints Endpoints

	SeqnoMe   Value // next byte we will transmit.
	SeqnoThem Value // next byte we expect to receive.
	AcknoThem Value // highest byte peer has acknowledged.

	seqnoMeFirst   Value // baseline for human-readable logging offsets only.
	seqnoThemFirst Value

	State    State
	AppState AppState

	Segments []Segment

	IsActive      bool
	IsSmallWindow bool // forces advertised window to 600 bytes.
	// IsPayloadDynamic is declared but never set or read, per spec §9 Open
	// Questions ("is_payload_dynamic on TCB is declared but never set or
	// read"). Kept for field-for-field parity with the distilled spec.
	IsPayloadDynamic bool
	SynsSent         uint8
	MSS              Size
	TTL              uint8

	Stream      stream.Stream
	Banner      banner.Output
	BannerState stream.State

	WhenCreated time.Time

	// index and generation address this TCB's slot in Table.slab and its
	// single timerwheel.Wheel entry, surviving slab reuse (spec §9 "arena +
	// stable indices").
	index      int32
	generation uint32
}
