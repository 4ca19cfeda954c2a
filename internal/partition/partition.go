// Package partition implements the combo-index arithmetic that maps a
// linear work-unit number onto the solver's three-axis search space and
// answers membership queries against a worker's assigned slice of it.
package partition

import "fmt"

// Axis sizes for the (king, checker, check_square) tuple. A "checker" is
// the piece giving check; 15 covers the empty-checker case plus all
// piece kinds that can deliver check from a given square.
const (
	KingAxisSize    = 64
	CheckerAxisSize = 15
	SquareAxisSize  = 64

	// MaxCombos is the total size of the combo space: every reachable
	// (king, checker, check_square) triple.
	MaxCombos = KingAxisSize * CheckerAxisSize * SquareAxisSize
)

// Axis names a single dimension of the combo space.
type Axis byte

const (
	AxisKing    Axis = 'k'
	AxisChecker Axis = 'p'
	AxisSquare  Axis = 'c'
)

// AxisOrder is a permutation of the three axes naming which axis varies
// fastest when a combo index is enumerated linearly. It is represented
// as a 3-letter tag such as "kpc" (king fastest, then checker, then
// check-square).
type AxisOrder [3]Axis

// DefaultAxisOrder is "kpc", matching the solver's historical default.
var DefaultAxisOrder = AxisOrder{AxisKing, AxisChecker, AxisSquare}

// AllAxisOrders lists the six permutations the probe driver cycles
// through, in the fixed order the solver has always used.
var AllAxisOrders = []AxisOrder{
	{AxisKing, AxisChecker, AxisSquare},
	{AxisKing, AxisSquare, AxisChecker},
	{AxisChecker, AxisKing, AxisSquare},
	{AxisChecker, AxisSquare, AxisKing},
	{AxisSquare, AxisKing, AxisChecker},
	{AxisSquare, AxisChecker, AxisKing},
}

// String renders the order as its 3-letter tag, e.g. "kpc".
func (o AxisOrder) String() string {
	return string([]byte{byte(o[0]), byte(o[1]), byte(o[2])})
}

// ParseAxisOrder validates tag as a permutation of {k,p,c} and returns
// the corresponding AxisOrder. A tag that is not such a permutation is
// rejected; callers applying a "reject, leave state unchanged" rule
// should ignore the error and keep the previous order.
func ParseAxisOrder(tag string) (AxisOrder, error) {
	if len(tag) != 3 {
		return AxisOrder{}, fmt.Errorf("partition: axis order %q: want 3 letters", tag)
	}
	var seen [256]bool
	var order AxisOrder
	for i := 0; i < 3; i++ {
		b := tag[i]
		switch b {
		case 'k', 'p', 'c':
		default:
			return AxisOrder{}, fmt.Errorf("partition: axis order %q: invalid axis %q", tag, b)
		}
		if seen[b] {
			return AxisOrder{}, fmt.Errorf("partition: axis order %q: repeated axis %q", tag, b)
		}
		seen[b] = true
		order[i] = Axis(b)
	}
	return order, nil
}

func axisSize(a Axis) int {
	switch a {
	case AxisKing:
		return KingAxisSize
	case AxisChecker:
		return CheckerAxisSize
	case AxisSquare:
		return SquareAxisSize
	default:
		panic(fmt.Sprintf("partition: invalid axis %q", byte(a)))
	}
}

// Project maps a combo index to its (king, checker, check_square) tuple
// under order. It panics if c is outside [0, MaxCombos) — callers are
// expected to validate combo indices at their boundary (flag parsing,
// queue reads), not on every hot-path call.
func Project(c int, order AxisOrder) (king, checker, checkSquare int) {
	if c < 0 || c >= MaxCombos {
		panic(fmt.Sprintf("partition: combo %d out of range [0,%d)", c, MaxCombos))
	}
	var values [3]int // indexed by position within order
	for i, axis := range order {
		size := axisSize(axis)
		values[i] = c % size
		c /= size
	}
	for i, axis := range order {
		switch axis {
		case AxisKing:
			king = values[i]
		case AxisChecker:
			checker = values[i]
		case AxisSquare:
			checkSquare = values[i]
		}
	}
	return king, checker, checkSquare
}

// Unproject is the inverse of Project: it recombines the three axis
// values into a single combo index under order.
func Unproject(king, checker, checkSquare int, order AxisOrder) int {
	c := 0
	stride := 1
	for _, axis := range order {
		size := axisSize(axis)
		var v int
		switch axis {
		case AxisKing:
			v = king
		case AxisChecker:
			v = checker
		case AxisSquare:
			v = checkSquare
		}
		if v < 0 || v >= size {
			panic(fmt.Sprintf("partition: axis %q value %d out of range [0,%d)", byte(axis), v, size))
		}
		c += v * stride
		stride *= size
	}
	return c
}

// SpecKind distinguishes the three shapes a PartitionSpec can take.
type SpecKind int

const (
	SpecSingle SpecKind = iota
	SpecRange
	SpecSingleCombo
)

// Spec is a worker's assigned slice of the combo space. It is always
// constructed through one of the New* functions, which validate their
// arguments; a zero Spec accepts every combo (the "no partitioning"
// edge case, total == 0).
type Spec struct {
	kind   SpecKind
	index  int // Single: residue; Range: start; SingleCombo: the combo
	total  int // Single: modulus
	stride int // Range: stride
	max    int // Range: exclusive upper bound
}

// NewSingle builds a Single(index, total) spec: this worker covers
// combos where combo % total == index. Callers passing total == 0 get
// the accept-all zero Spec instead of an error, since total == 0 means
// "no partitioning", not "a modulus of zero".
func NewSingle(index, total int) (Spec, error) {
	if total == 0 {
		return Spec{}, nil
	}
	if index < 0 || index >= total {
		return Spec{}, fmt.Errorf("partition: single spec index %d out of range [0,%d)", index, total)
	}
	return Spec{kind: SpecSingle, index: index, total: total}, nil
}

// NewRange builds a Range(start, stride, max) spec.
func NewRange(start, stride, max int) (Spec, error) {
	if start < 0 || stride <= 0 || max <= 0 || max > MaxCombos || start >= max {
		return Spec{}, fmt.Errorf("partition: invalid range spec start=%d stride=%d max=%d", start, stride, max)
	}
	return Spec{kind: SpecRange, index: start, stride: stride, max: max}, nil
}

// NewSingleCombo builds a spec matching exactly one combo.
func NewSingleCombo(c int) (Spec, error) {
	if c < 0 || c >= MaxCombos {
		return Spec{}, fmt.Errorf("partition: combo %d out of range [0,%d)", c, MaxCombos)
	}
	return Spec{kind: SpecSingleCombo, index: c}, nil
}

// Kind reports which shape the spec takes.
func (s Spec) Kind() SpecKind { return s.kind }

// InSpec reports whether combo c belongs to s.
func (s Spec) InSpec(c int) bool {
	switch s.kind {
	case SpecSingle:
		if s.total == 0 {
			// zero value: no partitioning configured, accept all.
			return true
		}
		return c%s.total == s.index
	case SpecRange:
		if c < s.index {
			return false
		}
		return (c-s.index)%s.stride == 0 && c < s.max
	case SpecSingleCombo:
		return c == s.index
	default:
		// not produced by this package's constructors; accept all.
		return true
	}
}

// String renders the spec for status/log lines.
func (s Spec) String() string {
	switch s.kind {
	case SpecSingle:
		if s.total == 0 {
			return "all"
		}
		return fmt.Sprintf("single(%d/%d)", s.index, s.total)
	case SpecRange:
		return fmt.Sprintf("range(%d/%d/%d)", s.index, s.stride, s.max)
	case SpecSingleCombo:
		return fmt.Sprintf("combo(%d)", s.index)
	default:
		return "all"
	}
}
