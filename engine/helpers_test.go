package engine

import (
	"time"

	"github.com/netprobe/synscan/stream"
)

type fakeBuffer struct {
	data []byte
}

func (b *fakeBuffer) Bytes() []byte { return b.data }

type fakeTemplate struct {
	lastFlags   OutFlags
	lastPayload []byte
}

func (f *fakeTemplate) FormatPacket(buf Buffer, ep Endpoints, seqno, ackno Value, flags OutFlags, window Size, payload []byte) error {
	fb := buf.(*fakeBuffer)
	fb.data = append([]byte(nil), payload...)
	f.lastFlags = flags
	f.lastPayload = fb.data
	return nil
}

type fakePool struct {
	empty bool
}

func (p *fakePool) Get() (Buffer, bool) {
	if p.empty {
		return nil, false
	}
	return &fakeBuffer{}, true
}

type fakeStack struct {
	sent [][]byte
}

func (s *fakeStack) Transmit(buf Buffer) {
	s.sent = append(s.sent, append([]byte(nil), buf.Bytes()...))
}

func fakeSynCookie(ep Endpoints, entropy uint64) uint32 {
	return uint32(ep.LocalPort)<<16 | uint32(ep.RemotePort)
}

func fakeSymHash(ep Endpoints) uint32 {
	return uint32(ep.LocalPort) ^ uint32(ep.RemotePort)
}

func newTestTable(t *fakeTemplate, p *fakePool, s *fakeStack) *Table {
	tbl, err := Create(minCapacity, Collaborators{
		Template:       t,
		Pool:           p,
		Stack:          s,
		SynCookie:      fakeSynCookie,
		SymHash:        fakeSymHash,
		DefaultStreams: stream.ByPort{80: stream.NewHTTP()},
	})
	if err != nil {
		panic(err)
	}
	return tbl
}

func testEndpoints(localPort, remotePort uint16) Endpoints {
	return Endpoints{
		Local:      []byte{10, 0, 0, 1},
		Remote:     []byte{1, 2, 3, 4},
		LocalPort:  localPort,
		RemotePort: remotePort,
	}
}

var epoch = time.Unix(1_700_000_000, 0)
