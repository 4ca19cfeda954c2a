package coordinator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// statusSnapshot renders the periodic human-readable status line:
// elapsed time, running/total worker counts, and (when few enough
// workers remain) each live worker's current combo label, matching
// the bracket-continuation shape of the solver's own status output.
func statusSnapshot(elapsed time.Duration, running, total int, listMax int, a *aggregator) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%.0fs: %s/%s workers running", elapsed.Seconds(), humanize.Comma(int64(running)), humanize.Comma(int64(total)))

	if running <= listMax && running > 0 {
		numbers := make([]int, 0, running)
		for n := range a.live {
			numbers = append(numbers, n)
		}
		sort.Ints(numbers)
		for _, n := range numbers {
			w := a.workers[n]
			label := w.CurrentComboLabel
			if label == "" {
				label = "?"
			}
			fmt.Fprintf(&b, " %d:%s", n, label)
		}
	}
	b.WriteByte(']')
	return b.String()
}

// completionNotice renders the one-line notice emitted when a worker's
// pipe closes, listing elapsed time and the remaining live worker
// numbers, matching the solver's original wording.
func completionNotice(elapsed time.Duration, finishedWorker, total int, stillRunning []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%.0fs: Worker %d/%d finished. Still running (%s):", elapsed.Seconds(), finishedWorker, total, humanize.Comma(int64(len(stillRunning))))
	sort.Ints(stillRunning)
	for _, n := range stillRunning {
		fmt.Fprintf(&b, " %d", n)
	}
	b.WriteByte(']')
	return b.String()
}
