package probe

import (
	"sort"
	"strconv"
	"strings"
)

const maxHeavyCombos = 256

// heavyEntry records a combo that was still in flight when a probe
// phase's deadline expired.
type heavyEntry struct {
	Label     string
	SeenCount uint32
	MaxDepth  uint32
}

// Registry is the bounded heavy-combo table a probe run builds up
// across its six phases. It deduplicates by the leading decimal combo
// number embedded in each label and silently drops entries once full.
type Registry struct {
	byNumber map[int]int // combo number -> index into entries
	entries  []heavyEntry
}

// NewRegistry returns an empty heavy-combo registry.
func NewRegistry() *Registry {
	return &Registry{byNumber: make(map[int]int)}
}

// Record extracts the leading decimal combo number from label and
// either bumps an existing entry's seen_count/max_depth, appends a new
// entry (if under capacity), or silently drops the observation.
func (r *Registry) Record(label string, depth uint32) {
	num, ok := leadingComboNumber(label)
	if !ok {
		return
	}
	if idx, found := r.byNumber[num]; found {
		e := &r.entries[idx]
		e.SeenCount++
		if depth > e.MaxDepth {
			e.MaxDepth = depth
		}
		return
	}
	if len(r.entries) >= maxHeavyCombos {
		return
	}
	r.byNumber[num] = len(r.entries)
	r.entries = append(r.entries, heavyEntry{Label: label, SeenCount: 1, MaxDepth: depth})
}

// leadingComboNumber extracts the decimal integer at the start of
// label, stopping at the first non-digit byte.
func leadingComboNumber(label string) (int, bool) {
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(label[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Len reports how many distinct heavy combos are recorded.
func (r *Registry) Len() int { return len(r.entries) }

// Ranked returns entries sorted by descending seen_count, matching the
// solver's bubble-sort summary ordering (stable for equal counts,
// since Go's sort.SliceStable preserves insertion order as the
// tie-break, the same outcome a stable bubble sort produces).
func (r *Registry) Ranked() []heavyEntry {
	out := make([]heavyEntry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SeenCount > out[j].SeenCount })
	return out
}

// Summary renders the ranked heavy-combo report, one "HEAVY ..." line
// per entry, or a one-line notice if the registry is empty.
func (r *Registry) Summary() string {
	if len(r.entries) == 0 {
		return "no heavy combos observed"
	}
	var b strings.Builder
	for i, e := range r.Ranked() {
		if i > 0 {
			b.WriteByte('\n')
		}
		m, k := e.MaxDepth/100, e.MaxDepth%100
		b.WriteString("HEAVY ")
		b.WriteString(e.Label)
		b.WriteString(" (seen ")
		b.WriteString(strconv.FormatUint(uint64(e.SeenCount), 10))
		b.WriteString(" times, max depth ")
		b.WriteString(strconv.FormatUint(uint64(m), 10))
		b.WriteByte('+')
		b.WriteString(strconv.FormatUint(uint64(k), 10))
		b.WriteByte(')')
	}
	return b.String()
}
