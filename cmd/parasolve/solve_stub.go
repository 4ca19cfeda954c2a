package main

import (
	"fmt"

	"github.com/hailam/parasolve/internal/movefilter"
	"github.com/hailam/parasolve/internal/partition"
	"github.com/hailam/parasolve/internal/protocol"
)

// solveStub stands in for the opaque external search engine (the
// actual chess-problem solver is out of scope for this core). It
// walks the combos in spec, applies the first-move filter
// at the one synthetic ply-1 hook each combo offers, and reports
// protocol traffic realistic enough to exercise the coordinator: a
// combo marker, a progress tick, and — for the first kept move of the
// first in-spec combo — a one-line "solution".
func solveStub(order partition.AxisOrder, spec partition.Spec, filter *movefilter.Filter, w *protocol.Writer) {
	const sampleMoves = 8
	positions := uint64(0)
	reported := false

	for c := 0; c < partition.MaxCombos; c++ {
		if !spec.InSpec(c) {
			continue
		}
		king, checker, sq := partition.Project(c, order)
		label := fmt.Sprintf("%d king=%d checker=%d sq=%d", c, king, checker, sq)
		w.Combo(label)

		ml := movefilter.NewMoveList()
		for i := 0; i < sampleMoves; i++ {
			ml.Add(movefilter.Move(i))
		}
		filter.Apply(ml)
		positions += uint64(ml.Len())

		if !reported && ml.Len() > 0 {
			w.SolutionStart()
			w.Text(fmt.Sprintf("1.move%d solved", ml.Get(0)))
			w.SolutionEnd()
			reported = true
		}

		if c%64 == 0 {
			w.Progress(c/100, c%100, positions)
		}
	}
}
