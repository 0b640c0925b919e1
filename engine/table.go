package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/netprobe/synscan/banner"
	"github.com/netprobe/synscan/internal"
	"github.com/netprobe/synscan/metrics"
	"github.com/netprobe/synscan/stream"
	"github.com/netprobe/synscan/timerwheel"
)

const (
	minCapacity = 1 << 10
	maxCapacity = 1 << 24
)

// Table is the ConnectionTable from spec §4.1: a fixed-capacity slab arena
// of TCBs addressed by index, a power-of-two bucket array chained through a
// single reused "next" field per slot (the same intrusive-linked-list idiom
// soypat-lneto/tcp/conn.go uses for its listener backlog, generalized here to
// double as both the bucket chain and the free-list since a slot is always
// in exactly one or the other), and a free-list of reclaimed indices.
type Table struct {
	logger

	slab []TCB
	// link[i] is the next slab index in whichever chain slot i currently
	// belongs to: a bucket chain while the slot is active, the free-list
	// while it is not. -1 terminates a chain.
	link []int32

	buckets []int32 // buckets[h] is the head slab index for bucket h, -1 if empty.
	mask    uint32

	freeHead int32

	activeCount int

	mu       sync.Mutex
	counters metrics.Snapshot

	template PacketTemplate
	pool     BufferPool
	stack    StackQueue

	synCookie SynCookieFunc
	symHash   SymmetricHashFunc

	timers *timerwheel.Wheel

	connectionTimeout time.Duration
	helloTimeout      time.Duration

	entropy uint64

	defaultStreams stream.ByPort
	reporter       banner.Reporter

	bufBackoff internal.Backoff

	sourcePortLow, sourcePortHigh uint16
	sourceIPLow, sourceIPHigh     []byte
}

// Collaborators bundles the external interfaces Create needs, per spec §6.
type Collaborators struct {
	Template       PacketTemplate
	Pool           BufferPool
	Stack          StackQueue
	SynCookie      SynCookieFunc
	SymHash        SymmetricHashFunc
	DefaultStreams stream.ByPort
	Reporter       banner.Reporter
	Log            *slog.Logger
}

// Create allocates a Table sized to at least capacity TCBs, per spec §4.1
// create_table: capacity is rounded up to a power of two and clamped to
// [2^10, 2^24]; on allocation failure the requested size is halved and
// retried down to the floor, mirroring a malloc-returns-NULL fallback in an
// arena the teacher's net stack would otherwise size once at startup.
func Create(capacity int, c Collaborators) (t *Table, err error) {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	if capacity > maxCapacity {
		capacity = maxCapacity
	}
	size := nextPowerOfTwo(capacity)

	for size >= minCapacity {
		t, err = tryCreate(size, c)
		if err == nil {
			return t, nil
		}
		size /= 2
	}
	return nil, errAllocFailed
}

func tryCreate(size int, c Collaborators) (t *Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, errAllocFailed
		}
	}()

	tb := &Table{
		slab:              make([]TCB, size),
		link:              make([]int32, size),
		buckets:           make([]int32, size),
		mask:              uint32(size - 1),
		template:          c.Template,
		pool:              c.Pool,
		stack:             c.Stack,
		synCookie:         c.SynCookie,
		symHash:           c.SymHash,
		timers:            timerwheel.New(),
		connectionTimeout: 30 * time.Second,
		helloTimeout:      2 * time.Second,
		defaultStreams:    c.DefaultStreams,
		reporter:          c.Reporter,
		bufBackoff:        internal.NewBackoff(internal.BackoffTCPConn),
	}
	tb.SetLogger(c.Log)

	for i := range tb.buckets {
		tb.buckets[i] = -1
	}
	for i := range tb.slab {
		tb.slab[i].index = int32(i)
		if i == len(tb.slab)-1 {
			tb.link[i] = -1
		} else {
			tb.link[i] = int32(i + 1)
		}
	}
	tb.freeHead = 0
	return tb, nil
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// SetTimeouts overrides the default connection_timeout/hello_timeout (spec
// §6 set_parameter "timeout"/"connection-timeout", "hello-timeout").
func (t *Table) SetTimeouts(connection, hello time.Duration) {
	t.connectionTimeout = connection
	t.helloTimeout = hello
}

// SetEntropy installs the per-run entropy value mixed into SYN cookies and
// 4-tuple rotation (spec §4.6).
func (t *Table) SetEntropy(e uint64) { t.entropy = e }

// SetSourceRange configures the source port and source IP ranges local
// 4-tuple rotation cycles through on an alt-protocol reconnect (spec §4.6).
func (t *Table) SetSourceRange(portLow, portHigh uint16, ipLow, ipHigh []byte) {
	t.sourcePortLow, t.sourcePortHigh = portLow, portHigh
	t.sourceIPLow, t.sourceIPHigh = ipLow, ipHigh
}

func (t *Table) bucketOf(ep Endpoints) uint32 {
	return t.symHash(ep) & t.mask
}

func endpointsEqual(a, b Endpoints) bool {
	if a.LocalPort != b.LocalPort || a.RemotePort != b.RemotePort || a.IsIPv6 != b.IsIPv6 {
		return false
	}
	return bytesEqual(a.Local, b.Local) && bytesEqual(a.Remote, b.Remote)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Lookup finds the TCB for a 4-tuple, per spec §4.1 lookup: hash then walk
// the bucket chain comparing the full tuple.
func (t *Table) Lookup(ep Endpoints) (*TCB, bool) {
	h := t.bucketOf(ep)
	for idx := t.buckets[h]; idx != -1; idx = t.link[idx] {
		tcb := &t.slab[idx]
		if tcb.IsActive && endpointsEqual(tcb.Endpoints, ep) {
			return tcb, true
		}
	}
	return nil, false
}

// CreateTCB implements spec §4.1 create_tcb: idempotent on an existing
// 4-tuple, otherwise pops a slot from the free-list, zero-initializes it,
// sets the sequence baselines and default MSS, selects a protocol stream,
// and links it into its bucket.
func (t *Table) CreateTCB(ep Endpoints, seqnoMe Value, ttl uint8, strm stream.Stream, now time.Time) (*TCB, error) {
	if internal.IsZeroed(ep.Remote...) {
		return nil, errZeroRemoteAddress
	}
	if tcb, ok := t.Lookup(ep); ok {
		return tcb, nil
	}
	if t.freeHead == -1 {
		t.counters.ActiveTCBs = float64(t.activeCount)
		return nil, errTableFull
	}

	idx := t.freeHead
	t.freeHead = t.link[idx]

	tcb := &t.slab[idx]
	generation := tcb.generation + 1
	*tcb = TCB{
		Endpoints:      ep,
		SeqnoMe:        seqnoMe,
		seqnoMeFirst:   seqnoMe,
		seqnoThemFirst: 0,
		State:          StateSynSent,
		AppState:       AppConnect,
		IsActive:       true,
		MSS:            1400,
		TTL:            ttl,
		WhenCreated:    now,
		index:          idx,
		generation:     generation,
	}

	if strm == nil && t.defaultStreams != nil {
		strm, _ = t.defaultStreams.Select(ep.RemotePort)
	}
	tcb.Stream = strm
	tcb.Banner = banner.NewOutput(streamName(strm))

	h := t.bucketOf(ep)
	t.link[idx] = t.buckets[h]
	t.buckets[h] = idx

	t.activeCount++
	t.mu.Lock()
	t.counters.Created++
	t.counters.ActiveTCBs = float64(t.activeCount)
	t.mu.Unlock()

	attrs := []slog.Attr{slog.Int("idx", int(idx)), slog.Uint64("seqno.me", uint64(seqnoMe))}
	if !ep.IsIPv6 && len(ep.Remote) == 4 {
		attrs = append(attrs, internal.SlogAddr4("remote", (*[4]byte)(ep.Remote)))
	}
	t.debug("table:create", attrs...)
	return tcb, nil
}

func streamName(s stream.Stream) string {
	if s == nil {
		return ""
	}
	return s.Name()
}

// DestroyTCB implements spec §4.1 destroy_tcb: unlinks the TCB from its
// bucket (logging, not panicking, on a double-free per spec §7), flushes
// any accumulated banner, releases queued segments, tears down
// protocol-specific banner state, cancels the single outstanding timer, and
// returns the slot to the free-list with a bumped generation so any stale
// Token referencing it is rejected by timerwheel.Wheel.Remove/Has.
func (t *Table) DestroyTCB(tcb *TCB, reason Reason, now time.Time) {
	if !tcb.IsActive {
		t.Error("table:double-free", slog.Int("idx", int(tcb.index)), slog.String("reason", reason.String()))
		return
	}

	h := t.bucketOf(tcb.Endpoints)
	prev := int32(-1)
	for idx := t.buckets[h]; idx != -1; idx = t.link[idx] {
		if idx == tcb.index {
			if prev == -1 {
				t.buckets[h] = t.link[idx]
			} else {
				t.link[prev] = t.link[idx]
			}
			break
		}
		prev = idx
	}

	if tcb.Banner.Len() > 0 {
		banner.Flush(t.reporter, &tcb.Banner, now, tcb.Endpoints.Remote, tcb.Endpoints.RemotePort, tcb.TTL)
		t.mu.Lock()
		t.counters.BannersFlushed++
		t.mu.Unlock()
	}

	for i := range tcb.Segments {
		freeSegmentBuffer(&tcb.Segments[i])
	}
	reuseSegments := tcb.Segments
	internal.SliceReuse(&reuseSegments, 0)

	if tcb.Stream != nil {
		tcb.Stream.Cleanup(&tcb.BannerState)
	}

	t.timers.Remove(timerwheel.Token{Index: tcb.index, Generation: tcb.generation})

	t.mu.Lock()
	t.counters.Destroyed++
	switch reason {
	case ReasonRST:
		t.counters.RSTReceived++
	case ReasonTimeout:
		t.counters.Timeouts++
	}
	t.mu.Unlock()

	t.debug("table:destroy", slog.Int("idx", int(tcb.index)), slog.String("reason", reason.String()))

	idx := tcb.index
	generation := tcb.generation
	*tcb = TCB{}
	tcb.index = idx
	tcb.generation = generation
	// Keep the segment queue's backing array around for the slot's next
	// occupant instead of letting every create/destroy cycle reallocate it.
	tcb.Segments = reuseSegments

	t.link[idx] = t.freeHead
	t.freeHead = idx
	t.activeCount--
	t.mu.Lock()
	t.counters.ActiveTCBs = float64(t.activeCount)
	t.mu.Unlock()
}

// DestroyTable tears down every active TCB and releases the wheel, per spec
// §4.1 destroy_table.
func (t *Table) DestroyTable(now time.Time) {
	for h := range t.buckets {
		for t.buckets[h] != -1 {
			t.DestroyTCB(&t.slab[t.buckets[h]], ReasonFlush, now)
		}
	}
	t.timers = timerwheel.New()
}

// Source returns a snapshot of the table's counters for metrics.NewTableCollector.
func (t *Table) Source() metrics.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

// getBufferWithBackoff implements spec §5/§7 "Buffer pool empty: brief
// yield, one retry; drop silently and log-once if still empty", grounded on
// internal.Backoff's Hit/Miss pair from soypat-lneto/tcp's retransmit path.
func (t *Table) getBufferWithBackoff() (Buffer, bool) {
	if buf, ok := t.pool.Get(); ok {
		t.bufBackoff.Hit()
		return buf, true
	}
	t.bufBackoff.Miss()
	return t.pool.Get()
}

func (t *Table) armRetransmit(tcb *TCB, deadline time.Time) {
	t.timers.Arm(timerwheel.Token{Index: tcb.index, Generation: tcb.generation}, deadline)
}

func (t *Table) armResend(tcb *TCB, deadline time.Time) {
	t.timers.Arm(timerwheel.Token{Index: tcb.index, Generation: tcb.generation}, deadline)
}

func (t *Table) debug(msg string, attrs ...slog.Attr) {
	t.Debug(msg, attrs...)
}
