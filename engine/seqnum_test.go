package engine

import "testing"

func TestAddSub(t *testing.T) {
	v := Add(Value(0xFFFFFFFE), 4)
	if v != 2 {
		t.Fatalf("want wraparound to 2, got %d", v)
	}
	if Sub(v, Value(0xFFFFFFFE)) != 4 {
		t.Fatalf("Sub should invert Add")
	}
}

func TestIsStalePast(t *testing.T) {
	// Spec §8 scenario 5: seqno_me = 0x00010000, ack ≈ 2^32 - 0x20000 behind.
	seqnoMe := Value(0x00010000)
	ackno := Value(0xFFFE0000)
	if !IsStalePast(ackno, seqnoMe) {
		t.Fatalf("ack far behind seqno_me must be flagged stale-past")
	}
}

func TestIsStalePastWithinWindow(t *testing.T) {
	seqnoMe := Value(100_000)
	ackno := Value(50_000)
	if IsStalePast(ackno, seqnoMe) {
		t.Fatalf("ack within the 100,000-byte window must not be stale-past")
	}
}

// TestIsOutOfRangeFutureLiteralBug pins down spec §9's literal `<` vs `>`
// ambiguity in the future-ACK filter: reproduce the source's comparison
// exactly rather than the one that might have been intended.
func TestIsOutOfRangeFutureLiteralBug(t *testing.T) {
	seqnoMe := Value(0)
	ackno := Value(50_000) // seqnoMe - ackno wraps to a large value, Sub(seqnoMe, ackno) is huge
	got := IsOutOfRangeFuture(ackno, seqnoMe)
	want := Sub(seqnoMe, ackno) < pastFutureWindow
	if got != want {
		t.Fatalf("IsOutOfRangeFuture must use the literal `<` comparison, got %v want %v", got, want)
	}
}

func TestIsStalePastSeq(t *testing.T) {
	seqnoThem := Value(1000)
	// Entirely-old segment: arrived seq + length <= seqno_them.
	if !IsStalePastSeq(seqnoThem, Value(990), 5) {
		t.Fatalf("segment ending before seqno_them must be stale-past")
	}
	// Overlapping segment: arrived seq + length > seqno_them.
	if IsStalePastSeq(seqnoThem, Value(990), 20) {
		t.Fatalf("segment extending past seqno_them must not be dropped as fully stale")
	}
}
