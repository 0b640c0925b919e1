package engine

import (
	"testing"
)

func countReachable(tbl *Table) int {
	n := 0
	for _, head := range tbl.buckets {
		for idx := head; idx != -1; idx = tbl.link[idx] {
			if !tbl.slab[idx].IsActive {
				continue
			}
			n++
		}
	}
	return n
}

func TestTableIntegrityAfterCreateDestroy(t *testing.T) {
	tmpl := &fakeTemplate{}
	stack := &fakeStack{}
	tbl := newTestTable(tmpl, &fakePool{}, stack)

	var tcbs []*TCB
	for i := uint16(0); i < 20; i++ {
		tcb, err := tbl.CreateTCB(testEndpoints(i, 80), Value(i), 0, nil, epoch)
		if err != nil {
			t.Fatal(err)
		}
		tcbs = append(tcbs, tcb)
	}
	if tbl.activeCount != 20 {
		t.Fatalf("want activeCount 20, got %d", tbl.activeCount)
	}
	if countReachable(tbl) != 20 {
		t.Fatalf("want 20 reachable TCBs, got %d", countReachable(tbl))
	}

	for i := 0; i < 7; i++ {
		tbl.DestroyTCB(tcbs[i], ReasonFIN, epoch)
	}
	if tbl.activeCount != 13 {
		t.Fatalf("want activeCount 13 after 7 destroys, got %d", tbl.activeCount)
	}
	if countReachable(tbl) != 13 {
		t.Fatalf("want 13 reachable TCBs after destroys, got %d", countReachable(tbl))
	}
}

func TestCreateTCBIsIdempotent(t *testing.T) {
	tmpl := &fakeTemplate{}
	stack := &fakeStack{}
	tbl := newTestTable(tmpl, &fakePool{}, stack)

	ep := testEndpoints(1, 80)
	first, err := tbl.CreateTCB(ep, 100, 0, nil, epoch)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tbl.CreateTCB(ep, 999, 0, nil, epoch)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("create_tcb on an existing 4-tuple must return the same TCB")
	}
	if second.SeqnoMe != 100 {
		t.Fatalf("idempotent create_tcb must not overwrite the existing TCB's state")
	}
}

func TestLookupIsSymmetric(t *testing.T) {
	tmpl := &fakeTemplate{}
	stack := &fakeStack{}
	tbl := newTestTable(tmpl, &fakePool{}, stack)

	ep := testEndpoints(12345, 80)
	tcb, err := tbl.CreateTCB(ep, 1, 0, nil, epoch)
	if err != nil {
		t.Fatal(err)
	}

	found, ok := tbl.Lookup(ep)
	if !ok || found != tcb {
		t.Fatalf("lookup must find the TCB by its own 4-tuple")
	}

	// Symmetric hash means both directions land in the same bucket (spec §8
	// property 2), even though only the forward-direction tuple is stored.
	reverse := Endpoints{Local: ep.Remote, Remote: ep.Local, LocalPort: ep.RemotePort, RemotePort: ep.LocalPort}
	if tbl.bucketOf(ep) != tbl.bucketOf(reverse) {
		t.Fatalf("symmetric hash must put both directions in the same bucket")
	}
}

func TestDestroyTCBDoubleFreeIsLoggedNotFatal(t *testing.T) {
	tmpl := &fakeTemplate{}
	stack := &fakeStack{}
	tbl := newTestTable(tmpl, &fakePool{}, stack)

	tcb, _ := tbl.CreateTCB(testEndpoints(1, 80), 1, 0, nil, epoch)
	tbl.DestroyTCB(tcb, ReasonFIN, epoch)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("double free must not panic, got %v", r)
		}
	}()
	tbl.DestroyTCB(tcb, ReasonFIN, epoch)
}

func TestDestroyTCBReleasesSegmentBuffers(t *testing.T) {
	tmpl := &fakeTemplate{}
	stack := &fakeStack{}
	tbl := newTestTable(tmpl, &fakePool{}, stack)

	tcb, _ := tbl.CreateTCB(testEndpoints(1, 80), 7777, 0, nil, epoch)
	tbl.Send(tcb, []byte("payload-not-yet-acked"), 21, Copy, false, epoch)
	if len(tcb.Segments) == 0 {
		t.Fatalf("expected a queued segment before destroy")
	}

	tbl.DestroyTCB(tcb, ReasonFIN, epoch)
	if len(tcb.Segments) != 0 {
		t.Fatalf("destroy_tcb must release all queued segments")
	}
}

func TestTableFullReturnsError(t *testing.T) {
	tmpl := &fakeTemplate{}
	stack := &fakeStack{}
	tbl := newTestTable(tmpl, &fakePool{}, stack)

	for i := 0; i < minCapacity; i++ {
		_, err := tbl.CreateTCB(testEndpoints(uint16(i), 80), Value(i), 0, nil, epoch)
		if err != nil {
			t.Fatalf("unexpected error filling table at i=%d: %v", i, err)
		}
	}
	_, err := tbl.CreateTCB(testEndpoints(uint16(minCapacity), 80), 0, 0, nil, epoch)
	if err != errTableFull {
		t.Fatalf("want errTableFull once the slab is exhausted, got %v", err)
	}
}
