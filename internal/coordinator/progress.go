package coordinator

import "github.com/hailam/parasolve/internal/protocol"

// aggregator owns the set of worker records and the aggregated depth
// cursor. It is pure bookkeeping: callers feed it decoded protocol
// messages as they arrive and ask it what (if anything) became
// printable as a result. It is deliberately free of any I/O so its
// invariants (depth-aggregate monotonicity) can be tested without
// spawning processes.
type aggregator struct {
	workers map[int]*WorkerRecord
	live    map[int]bool

	lastPrintedDepth int // -1 means nothing printed yet
	solutionCount    int
}

func newAggregator() *aggregator {
	return &aggregator{
		workers:          make(map[int]*WorkerRecord),
		live:             make(map[int]bool),
		lastPrintedDepth: -1,
	}
}

func (a *aggregator) addWorker(w *WorkerRecord) {
	a.workers[w.Number] = w
	a.live[w.Number] = true
}

func (a *aggregator) liveCount() int { return len(a.live) }

// depthRow is a printable aggregated-depth line.
type depthRow struct {
	Depth     int
	M, K      int
	Positions uint64
}

// handleProgress applies a @@PROGRESS message from worker n and
// returns the newly-printable aggregated rows, in increasing depth
// order. Multiple rows can become printable at once if the slowest
// live worker jumps several depths in one report.
func (a *aggregator) handleProgress(n int, msg protocol.Message) []depthRow {
	w := a.workers[n]
	if w == nil {
		return nil
	}
	depth := protocol.EncodeDepth(msg.DepthM, msg.DepthK)
	w.LastDepth = depth
	w.PositionsAtDepth[depth] = msg.Positions
	return a.advanceCursor()
}

// advanceCursor recomputes the minimum last_depth across live workers
// and emits any newly-crossed aggregate rows. The cursor only advances
// when every live worker has reached the candidate depth, and each
// emitted row's depth strictly exceeds the previous one. Each row's
// position count sums PositionsAtDepth over every worker seen this
// run, live or already finished — a finished worker's frozen array
// still contributes to depths its still-running peers cross later.
// Crossed depths that no worker ever reported produce no row.
func (a *aggregator) advanceCursor() []depthRow {
	if len(a.live) == 0 {
		return nil
	}
	candidate := -1
	for n := range a.live {
		w := a.workers[n]
		if w.LastDepth < 0 {
			// This live worker hasn't reported any progress yet; the
			// cursor cannot advance until it does.
			return nil
		}
		if candidate == -1 || w.LastDepth < candidate {
			candidate = w.LastDepth
		}
	}
	if candidate <= a.lastPrintedDepth {
		return nil
	}
	var rows []depthRow
	for d := a.lastPrintedDepth + 1; d <= candidate; d++ {
		var sum uint64
		reported := false
		for _, w := range a.workers {
			if p, ok := w.PositionsAtDepth[d]; ok {
				sum += p
				reported = true
			}
		}
		if !reported {
			continue // no worker reported this depth; nothing to print
		}
		m, k := protocol.DecodeDepth(d)
		rows = append(rows, depthRow{Depth: d, M: m, K: k, Positions: sum})
	}
	a.lastPrintedDepth = candidate
	return rows
}

// handleCombo records a worker's current in-flight combo label.
func (a *aggregator) handleCombo(n int, label string) {
	if w := a.workers[n]; w != nil {
		w.CurrentComboLabel = label
	}
}

// handleText bumps the solution counter when line, after leading
// whitespace, begins with a numbered move ("1.", "2.", ...).
// The coordinator checks solutionCount against its configured cap
// after every call.
func (a *aggregator) handleText(line string) {
	if protocol.IsSolutionLine(line) {
		a.solutionCount++
	}
}

// liveSnapshots returns a read-only view of every still-live worker,
// for the Probe Driver's heavy-combo harvest on deadline.
func (a *aggregator) liveSnapshots() []LiveWorker {
	out := make([]LiveWorker, 0, len(a.live))
	for n := range a.live {
		w := a.workers[n]
		out = append(out, LiveWorker{Number: n, CurrentComboLabel: w.CurrentComboLabel, LastDepth: w.LastDepth})
	}
	return out
}

func (a *aggregator) finishWorker(n int) {
	if w := a.workers[n]; w != nil {
		w.Finished = true
	}
	delete(a.live, n)
}
