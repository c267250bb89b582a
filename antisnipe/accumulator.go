package antisnipe

import (
	"cmp"
	"slices"
)

// Accumulator holds the frequency tables of one scenario run. It is not safe
// for concurrent use; parallel producers keep their own Accumulator and
// Merge at the end.
type Accumulator struct {
	Relative  map[uint32]int   // sequence value -> count
	Positions map[Position]int // flagged input slot -> count
	Absolute  map[int64]int    // locktime - height -> count
}

// NewAccumulator returns an Accumulator with empty tables.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		Relative:  make(map[uint32]int),
		Positions: make(map[Position]int),
		Absolute:  make(map[int64]int),
	}
}

// Observe classifies rec and records the outcome. On an invariant violation
// the tables are left untouched.
func (a *Accumulator) Observe(rec Record, filter SequenceFilter) (Outcome, error) {
	o, err := Classify(rec, filter)
	if err != nil {
		return nil, err
	}
	a.Add(o)
	return o, nil
}

// Add records an already classified outcome.
func (a *Accumulator) Add(o Outcome) {
	switch o := o.(type) {
	case RelativeAntiSniping:
		a.Relative[o.Sequence]++
		a.Positions[o.Position]++
	case AbsoluteAntiSniping:
		a.Absolute[o.Offset]++
	}
}

// Merge adds every count of other into a.
func (a *Accumulator) Merge(other *Accumulator) {
	for k, v := range other.Relative {
		a.Relative[k] += v
	}
	for k, v := range other.Positions {
		a.Positions[k] += v
	}
	for k, v := range other.Absolute {
		a.Absolute[k] += v
	}
}

func (a *Accumulator) Empty() bool {
	return len(a.Relative) == 0 && len(a.Positions) == 0 && len(a.Absolute) == 0
}

// RelativeTotal is the number of transactions that used sequence
// anti-sniping.
func (a *Accumulator) RelativeTotal() int {
	return sum(a.Relative)
}

// AbsoluteTotal is the number of transactions that used locktime
// anti-sniping.
func (a *Accumulator) AbsoluteTotal() int {
	return sum(a.Absolute)
}

// MinOffset returns the most negative locktime offset seen. ok is false when
// no locktime was observed.
func (a *Accumulator) MinOffset() (offset int64, ok bool) {
	for k := range a.Absolute {
		if !ok || k < offset {
			offset, ok = k, true
		}
	}
	return offset, ok
}

func (a *Accumulator) DistinctPositions() int {
	return len(a.Positions)
}

// Bucket is one row of a histogram.
type Bucket[K any] struct {
	Key   K
	Count int
}

// RelativeHistogram returns the relative table ordered by sequence value.
func (a *Accumulator) RelativeHistogram() []Bucket[uint32] {
	return histogram(a.Relative, cmp.Compare[uint32])
}

// AbsoluteHistogram returns the offset table ordered from the most
// back-dated offset upwards.
func (a *Accumulator) AbsoluteHistogram() []Bucket[int64] {
	return histogram(a.Absolute, cmp.Compare[int64])
}

// PositionHistogram returns the position table ordered by input count, then
// index.
func (a *Accumulator) PositionHistogram() []Bucket[Position] {
	return histogram(a.Positions, func(x, y Position) int {
		if c := cmp.Compare(x.InputCount, y.InputCount); c != 0 {
			return c
		}
		return cmp.Compare(x.Index, y.Index)
	})
}

func histogram[K comparable](m map[K]int, compare func(K, K) int) []Bucket[K] {
	out := make([]Bucket[K], 0, len(m))
	for k, v := range m {
		out = append(out, Bucket[K]{Key: k, Count: v})
	}
	slices.SortFunc(out, func(x, y Bucket[K]) int { return compare(x.Key, y.Key) })
	return out
}

func sum[K comparable](m map[K]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
