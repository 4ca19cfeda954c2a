package movefilter

import (
	"path/filepath"
	"testing"

	"github.com/hailam/parasolve/internal/queue"
)

func listOf(n int) *MoveList {
	ml := NewMoveList()
	for i := 0; i < n; i++ {
		ml.Add(Move(i))
	}
	return ml
}

func values(ml *MoveList) []Move {
	out := make([]Move, ml.Len())
	for i := range out {
		out[i] = ml.Get(i)
	}
	return out
}

func TestOffIsPassThrough(t *testing.T) {
	f := NewOff()
	ml := listOf(10)
	f.Apply(ml)
	if ml.Len() != 10 {
		t.Fatalf("Off filter changed length: %d", ml.Len())
	}
	for i, m := range values(ml) {
		if int(m) != i {
			t.Fatalf("Off filter reordered: index %d = %d", i, m)
		}
	}
}

func TestStaticIdentityAtZeroOne(t *testing.T) {
	f := NewStatic(0, 1)
	ml := listOf(20)
	before := values(ml)
	f.Apply(ml)
	after := values(ml)
	if len(after) != len(before) {
		t.Fatalf("Static{0,1} changed length: %d vs %d", len(after), len(before))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("Static{0,1} not identity at %d: %d vs %d", i, before[i], after[i])
		}
	}
}

func TestStaticPartitionsCompleteAndDisjoint(t *testing.T) {
	const total = 4
	const n = 17
	seen := make(map[Move]int)
	for index := 0; index < total; index++ {
		f := NewStatic(index, total)
		ml := listOf(n)
		f.Apply(ml)
		for _, m := range values(ml) {
			seen[m]++
		}
	}
	if len(seen) != n {
		t.Fatalf("union covered %d of %d moves", len(seen), n)
	}
	for m, c := range seen {
		if c != 1 {
			t.Errorf("move %d covered %d times, want 1", m, c)
		}
	}
}

func TestTargetCountIncrementsRegardlessOfMode(t *testing.T) {
	f := NewOff()
	for i := 1; i <= 5; i++ {
		f.Apply(listOf(3))
		if f.TargetCount() != uint64(i) {
			t.Fatalf("after %d applies, TargetCount = %d", i, f.TargetCount())
		}
	}
}

func TestQueueModeRotationCoverage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.bin")
	const n = 4
	if _, err := queue.Create(path, n); err != nil {
		t.Fatalf("queue.Create: %v", err)
	}

	filters := make([]*Filter, n)
	for i := 0; i < n; i++ {
		q, err := queue.Open(path)
		if err != nil {
			t.Fatalf("queue.Open: %v", err)
		}
		defer q.Close()
		filters[i] = NewQueue(q)
	}

	// Each worker claims its index on first Apply; claims are
	// first-come-first-served, so just confirm every index in [0,n) is
	// claimed exactly once across the n filters.
	claimed := make(map[int]bool, n)
	for _, f := range filters {
		ml := listOf(8)
		f.Apply(ml)
		if f.claimErr {
			t.Fatalf("unexpected claim error")
		}
		if claimed[f.myIndex] {
			t.Fatalf("index %d claimed twice", f.myIndex)
		}
		claimed[f.myIndex] = true
	}
	if len(claimed) != n {
		t.Fatalf("claimed %d distinct indices, want %d", len(claimed), n)
	}

	// Across n consecutive visits (the first already made above, plus
	// n-1 more per filter) every kept-index union across a fixed
	// filter should eventually cover every residue class of the
	// rotation, since rotation advances by 1 each call and wraps mod n.
	seen := make(map[Move]int)
	f := filters[0]
	ml0 := listOf(n)
	for _, m := range values(ml0) {
		seen[m] = 0
	}
	for visit := 0; visit < n; visit++ {
		ml := listOf(n)
		f.Apply(ml)
		for _, m := range values(ml) {
			seen[m]++
		}
	}
	for m, c := range seen {
		if c != 1 {
			t.Errorf("move %d kept %d times across %d rotations, want exactly 1", m, c, n)
		}
	}
}

func TestQueueModeDegradesOnIOError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.bin")
	q, err := queue.Create(path, 2)
	if err != nil {
		t.Fatalf("queue.Create: %v", err)
	}
	q.Close() // closed handle makes subsequent Claim fail

	f := NewQueue(q)
	ml := listOf(5)
	before := values(ml)
	f.Apply(ml)
	after := values(ml)
	if len(after) != len(before) {
		t.Fatalf("degraded filter changed length: %d vs %d", len(after), len(before))
	}
	if !f.claimErr {
		t.Fatal("expected claimErr to be set after I/O failure")
	}

	// Second Apply must not retry the claim or panic.
	f.Apply(listOf(3))
}
