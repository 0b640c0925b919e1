package banner

import (
	"testing"
	"time"

	"github.com/rs/xid"
)

type fakeReporter struct {
	calls int
	last  []byte
	lastID xid.ID
}

func (f *fakeReporter) ReportBanner(now time.Time, id xid.ID, remoteIP []byte, remotePort uint16, appProto string, ttl uint8, data []byte) {
	f.calls++
	f.last = append([]byte(nil), data...)
	f.lastID = id
}

func TestFlushEmptyBannerIsValid(t *testing.T) {
	o := NewOutput("http")
	r := &fakeReporter{}
	Flush(r, &o, time.Unix(0, 0), []byte{1, 2, 3, 4}, 80, 64)
	if r.calls != 1 {
		t.Fatalf("expected flush to report even with no accumulated data, got %d calls", r.calls)
	}
	if len(r.last) != 0 {
		t.Fatalf("expected empty banner, got %q", r.last)
	}
}

func TestAppendAndFlush(t *testing.T) {
	o := NewOutput("http")
	o.Append([]byte("HTTP/1.1 200 OK\r\n\r\n"))
	o.Append([]byte("hi"))
	r := &fakeReporter{}
	Flush(r, &o, time.Unix(0, 0), nil, 80, 64)
	if string(r.last) != "HTTP/1.1 200 OK\r\n\r\nhi" {
		t.Fatalf("unexpected banner content: %q", r.last)
	}
	if r.lastID != o.ID {
		t.Fatalf("flush must report the output's own ID")
	}
}

func TestResetAssignsFreshID(t *testing.T) {
	o := NewOutput("http")
	o.Append([]byte("data"))
	old := o.ID
	o.Reset("ssl")
	if o.ID == old {
		t.Fatalf("Reset must assign a fresh ID for slab reuse")
	}
	if o.Len() != 0 {
		t.Fatalf("Reset must clear accumulated data")
	}
	if o.AppProto != "ssl" {
		t.Fatalf("Reset must update AppProto")
	}
}
