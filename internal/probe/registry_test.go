package probe

import "testing"

func TestRegistryDedupesByLeadingComboNumber(t *testing.T) {
	r := NewRegistry()
	r.Record("12345 Ka1/Qh8/Bf3", 300)
	r.Record("12345 Ka1/Qh8/Bf3", 412)
	r.Record("12345 some other rendering of the same combo", 100)

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	ranked := r.Ranked()
	if ranked[0].SeenCount != 3 {
		t.Fatalf("SeenCount = %d, want 3", ranked[0].SeenCount)
	}
	if ranked[0].MaxDepth != 412 {
		t.Fatalf("MaxDepth = %d, want 412 (max of observed depths)", ranked[0].MaxDepth)
	}
}

func TestRegistryDropsMalformedLabel(t *testing.T) {
	r := NewRegistry()
	r.Record("not-a-number", 10)
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 for a label with no leading digits", r.Len())
	}
}

func TestRegistryOverflowSilentlyDropped(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < maxHeavyCombos+10; i++ {
		r.Record(itoaLabel(i), 1)
	}
	if r.Len() != maxHeavyCombos {
		t.Fatalf("Len() = %d, want capacity %d", r.Len(), maxHeavyCombos)
	}
}

func TestRegistryRankedSortsByDescendingSeenCount(t *testing.T) {
	r := NewRegistry()
	r.Record("1 rare", 5)
	r.Record("2 common", 5)
	r.Record("2 common", 5)
	r.Record("2 common", 5)
	r.Record("3 medium", 5)
	r.Record("3 medium", 5)

	ranked := r.Ranked()
	if len(ranked) != 3 {
		t.Fatalf("got %d entries, want 3", len(ranked))
	}
	if ranked[0].SeenCount < ranked[1].SeenCount || ranked[1].SeenCount < ranked[2].SeenCount {
		t.Fatalf("ranked entries not in descending seen_count order: %+v", ranked)
	}
}

func TestSummaryEmptyRegistry(t *testing.T) {
	r := NewRegistry()
	if got := r.Summary(); got != "no heavy combos observed" {
		t.Fatalf("Summary() = %q", got)
	}
}

func TestSummaryFormatsHeavyLines(t *testing.T) {
	r := NewRegistry()
	r.Record("42 Ka1/Qh8/Bf3", 412) // depth 412 => m=4 k=12
	got := r.Summary()
	want := "HEAVY 42 Ka1/Qh8/Bf3 (seen 1 times, max depth 4+12)"
	if got != want {
		t.Fatalf("Summary() = %q, want %q", got, want)
	}
}

func itoaLabel(n int) string {
	// minimal itoa to avoid importing strconv just for test fixtures
	if n == 0 {
		return "0 x"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits) + " x"
}
