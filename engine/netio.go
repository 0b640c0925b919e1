package engine

// This file defines the external interfaces the core consumes, per spec §6.
// Packet I/O, checksum computation, the template-based packet formatter,
// SYN-cookie generation, and output sinks are deliberately out of scope
// (spec §1) — the engine only calls out to them through these interfaces.

// Endpoints is the 4-tuple identifying a connection. IsIPv6 selects which
// of Local/Remote is meaningful: 4 bytes for IPv4, 16 for IPv6.
type Endpoints struct {
	Local      []byte
	Remote     []byte
	LocalPort  uint16
	RemotePort uint16
	IsIPv6     bool
}

// OutFlags mirrors the wire-level TCP control bits the template formatter
// needs; the engine never constructs raw packets itself.
type OutFlags uint8

const (
	OutACK OutFlags = 1 << iota
	OutSYN
	OutRST
	OutFIN
	OutPSH
)

// Buffer is a lease from a PacketBufferPool: a fixed backing array the
// template formatter writes the wire packet into. Engine code never
// interprets its contents beyond handing it to StackQueue.Transmit.
type Buffer interface {
	Bytes() []byte
}

// PacketTemplate formats a TCP/IP packet from endpoints, sequence state,
// flags and payload into buf. Consumed, never implemented, by this package
// (spec §6).
type PacketTemplate interface {
	FormatPacket(buf Buffer, ep Endpoints, seqno, ackno Value, flags OutFlags, window Size, payload []byte) error
}

// BufferPool lends and reclaims outgoing buffer slots (spec §2 PacketBufferPool).
type BufferPool interface {
	Get() (Buffer, bool)
}

// StackQueue is the multi-producer transmit queue consumed by a separate
// transmit thread (spec §2, §5). The receive thread that owns the engine
// never blocks on it beyond the brief empty-pool yield in §5.
type StackQueue interface {
	Transmit(Buffer)
}

// SynCookieFunc computes an opaque SYN cookie for a 4-tuple, consumed from
// the syncookie package without the engine depending on its internals
// (spec §6: "SYN-cookie generation... consumed as an opaque function").
type SynCookieFunc func(ep Endpoints, entropy uint64) uint32

// SymmetricHashFunc computes a direction-invariant hash of a 4-tuple, used
// by ConnectionTable for bucket selection (spec §4.1).
type SymmetricHashFunc func(ep Endpoints) uint32
