// Package movefilter implements the first-move filter applied at the
// root of the forward solve: it restricts the generated move list to a
// static residue class or to a dynamically rotating slice claimed from
// a shared work queue, and is a pass-through everywhere else.
package movefilter

import "github.com/hailam/parasolve/internal/queue"

// Move is an opaque packed move encoding. The filter never interprets
// a move's bits; it only reorders and truncates the list that holds
// them, mirroring the solver's own move-generation stack.
type Move uint32

// MoveList is a fixed-capacity, array-backed move list matching the
// solver's move-generation stack shape: entries live in
// moves[0:count], and filtering compacts survivors to the left,
// shrinking count.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList returns an empty move list.
func NewMoveList() *MoveList { return &MoveList{} }

// Add appends m to the list.
func (ml *MoveList) Add(m Move) { ml.moves[ml.count] = m; ml.count++ }

// Len reports the number of moves currently in the list.
func (ml *MoveList) Len() int { return ml.count }

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move { return ml.moves[i] }

// Set overwrites the move at index i.
func (ml *MoveList) Set(i int, m Move) { ml.moves[i] = m }

// Truncate shrinks the list to n entries.
func (ml *MoveList) Truncate(n int) { ml.count = n }

// Mode selects the first-move filter's behavior.
type Mode int

const (
	// Off leaves the move list untouched.
	Off Mode = iota
	// Static keeps move i iff i % Total == Index.
	Static
	// Queue claims a worker index from a shared queue on first use,
	// then keeps move i iff (i + rotation) % total == my_index, where
	// rotation advances with every hook invocation.
	Queue
)

// Filter holds the active first-move filter configuration and its
// running invocation counter. The zero Filter is Off.
type Filter struct {
	mode  Mode
	index int
	total int

	q *queue.SharedQueue

	claimed    bool
	claimErr   bool
	myIndex    int
	queueTotal int

	// targetCount counts hook invocations regardless of mode, since
	// Queue-mode rotation depends on it.
	targetCount uint64
}

// NewOff returns a pass-through filter.
func NewOff() *Filter { return &Filter{mode: Off} }

// NewStatic returns a filter that keeps move i iff i % total == index.
// index and total are not validated here; an out-of-range index simply
// keeps nothing, which matches the solver's own tolerance for
// misconfiguration (configuration errors are silently inert, never
// fatal).
func NewStatic(index, total int) *Filter {
	return &Filter{mode: Static, index: index, total: total}
}

// NewQueue returns a filter that claims a worker index from q on its
// first invocation.
func NewQueue(q *queue.SharedQueue) *Filter {
	return &Filter{mode: Queue, q: q}
}

// TargetCount returns the number of times Apply has been invoked.
func (f *Filter) TargetCount() uint64 { return f.targetCount }

// Apply runs the filter against ml, compacting it in place. It must
// only be called at the forward-solve's ply-1 hook; callers are
// responsible for that detection (see HookDepth).
func (f *Filter) Apply(ml *MoveList) {
	f.targetCount++

	switch f.mode {
	case Off:
		return
	case Static:
		f.compact(ml, f.index, f.total)
	case Queue:
		f.applyQueue(ml)
	}
}

func (f *Filter) applyQueue(ml *MoveList) {
	if f.claimErr {
		return // one-shot degrade to pass-through, never retried.
	}
	if !f.claimed {
		myIndex, total, err := f.q.Claim()
		if err != nil {
			f.claimErr = true
			return
		}
		f.claimed = true
		f.myIndex = myIndex
		f.queueTotal = total
	}
	if f.queueTotal == 0 {
		f.claimErr = true
		return
	}
	rotation := int(f.targetCount % uint64(f.queueTotal))
	f.compactRotated(ml, rotation, f.myIndex, f.queueTotal)
}

// compact keeps move i iff i % total == index, stably left-packing
// survivors.
func (f *Filter) compact(ml *MoveList, index, total int) {
	if total <= 0 {
		return
	}
	write := 0
	for i := 0; i < ml.count; i++ {
		if i%total == index {
			ml.moves[write] = ml.moves[i]
			write++
		}
	}
	ml.count = write
}

// compactRotated keeps move i iff (i+rotation) % total == myIndex.
func (f *Filter) compactRotated(ml *MoveList, rotation, myIndex, total int) {
	write := 0
	for i := 0; i < ml.count; i++ {
		if (i+rotation)%total == myIndex {
			ml.moves[write] = ml.moves[i]
			write++
		}
	}
	ml.count = write
}

// HookDepth reports whether ply is the forward solve's ply-1 node, the
// single point in the search tree at which the filter may act.
// parentIsRetroMove mirrors the solver's actual detection condition
// (the parent ply's move kind), since tree depth alone cannot
// distinguish the forward solve's root from other plies at the same
// nominal depth.
func HookDepth(ply int, parentIsRetroMove bool) bool {
	return ply == 1 && !parentIsRetroMove
}
