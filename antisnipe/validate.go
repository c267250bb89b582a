package antisnipe

import (
	"errors"
	"fmt"
	"math"
)

// Table selects one of the Accumulator's keyed tables.
type Table int

const (
	TableRelative Table = iota
	TableAbsolute
)

func (t Table) String() string {
	switch t {
	case TableRelative:
		return "relative"
	case TableAbsolute:
		return "absolute"
	default:
		return fmt.Sprintf("table(%d)", int(t))
	}
}

// Mechanism is an anti-sniping mechanism.
type Mechanism int

const (
	MechanismRelative Mechanism = iota
	MechanismAbsolute
)

func (m Mechanism) String() string {
	if m == MechanismRelative {
		return "relative"
	}
	return "absolute"
}

// Check is one statistical expectation over a finished scenario.
// Evaluate returns a *ThresholdFailure, or nil when the check holds.
type Check interface {
	Name() string
	Evaluate(acc *Accumulator, trials int) *ThresholdFailure
}

// Key returns a pointer to k, for use in MinFrequency and RangeWindow.
func Key(k int64) *int64 { return &k }

// ExclusiveMechanism requires the Want table to be populated and the other
// one to be empty.
type ExclusiveMechanism struct {
	Want Mechanism
}

func (c ExclusiveMechanism) Name() string { return "exclusive-" + c.Want.String() }

func (c ExclusiveMechanism) Evaluate(acc *Accumulator, _ int) *ThresholdFailure {
	rel, abs := acc.RelativeTotal(), acc.AbsoluteTotal()
	want, other := abs, rel
	if c.Want == MechanismRelative {
		want, other = rel, abs
	}
	if want > 0 && other == 0 {
		return nil
	}
	return &ThresholdFailure{
		Check:    c.Name(),
		Expected: fmt.Sprintf("only %s anti-sniping", c.Want),
		Observed: fmt.Sprintf("relative=%d absolute=%d", rel, abs),
	}
}

// AllAbsolute requires every trial to have used locktime anti-sniping.
type AllAbsolute struct{}

func (AllAbsolute) Name() string { return "all-absolute" }

func (c AllAbsolute) Evaluate(acc *Accumulator, trials int) *ThresholdFailure {
	rel, abs := acc.RelativeTotal(), acc.AbsoluteTotal()
	if rel == 0 && abs == trials {
		return nil
	}
	return &ThresholdFailure{
		Check:    c.Name(),
		Expected: fmt.Sprintf("relative=0 absolute=%d", trials),
		Observed: fmt.Sprintf("relative=%d absolute=%d", rel, abs),
	}
}

// MinFrequency requires a key's count, or the table aggregate when Key is
// nil, to exceed Percent of the trials.
type MinFrequency struct {
	Table   Table
	Key     *int64
	Percent int
}

func (c MinFrequency) Name() string {
	return fmt.Sprintf("min-frequency(%s)", describeKey(c.Table, c.Key))
}

func (c MinFrequency) Evaluate(acc *Accumulator, trials int) *ThresholdFailure {
	n := count(acc, c.Table, c.Key)
	if n*100 > trials*c.Percent {
		return nil
	}
	return &ThresholdFailure{
		Check:    c.Name(),
		Expected: fmt.Sprintf("> %d%% of %d trials", c.Percent, trials),
		Observed: fmt.Sprintf("%d", n),
	}
}

// RangeWindow requires a key's count to lie strictly between LoPercent and
// HiPercent of the table aggregate.
type RangeWindow struct {
	Table     Table
	Key       int64
	LoPercent int
	HiPercent int
}

func (c RangeWindow) Name() string {
	return fmt.Sprintf("range-window(%s)", describeKey(c.Table, &c.Key))
}

func (c RangeWindow) Evaluate(acc *Accumulator, _ int) *ThresholdFailure {
	agg := aggregate(acc, c.Table)
	n := count(acc, c.Table, &c.Key)
	if agg*c.LoPercent < n*100 && n*100 < agg*c.HiPercent {
		return nil
	}
	return &ThresholdFailure{
		Check:    c.Name(),
		Expected: fmt.Sprintf("between %d%% and %d%% of %d", c.LoPercent, c.HiPercent, agg),
		Observed: fmt.Sprintf("%d", n),
	}
}

// PositionCoverage requires the flagged input slot to have been seen in at
// least Percent of all (input count, index) pairs for 1..MaxInputs inputs.
type PositionCoverage struct {
	MaxInputs int
	Percent   int
}

func (PositionCoverage) Name() string { return "position-coverage" }

func (c PositionCoverage) Evaluate(acc *Accumulator, _ int) *ThresholdFailure {
	combos := c.MaxInputs * (c.MaxInputs + 1) / 2
	distinct := acc.DistinctPositions()
	if distinct*100 >= combos*c.Percent {
		return nil
	}
	return &ThresholdFailure{
		Check:    c.Name(),
		Expected: fmt.Sprintf(">= %d%% of %d positions", c.Percent, combos),
		Observed: fmt.Sprintf("%d", distinct),
	}
}

// Boundedness requires the most back-dated locktime offset to lie strictly
// between Lower and Upper.
type Boundedness struct {
	Lower int64
	Upper int64
}

func (Boundedness) Name() string { return "boundedness" }

func (c Boundedness) Evaluate(acc *Accumulator, _ int) *ThresholdFailure {
	expected := fmt.Sprintf("min offset in (%d, %d)", c.Lower, c.Upper)
	lowest, ok := acc.MinOffset()
	if !ok {
		return &ThresholdFailure{Check: c.Name(), Expected: expected, Observed: "no locktime observed"}
	}
	if c.Lower < lowest && lowest < c.Upper {
		return nil
	}
	return &ThresholdFailure{Check: c.Name(), Expected: expected, Observed: fmt.Sprintf("%d", lowest)}
}

// CheckResult is the outcome of a single Check.
type CheckResult struct {
	Name    string
	Failure *ThresholdFailure // nil when the check passed.
}

// Report is the outcome of validating one scenario.
type Report struct {
	Results []CheckResult
}

func (r Report) Passed() bool {
	return len(r.Failures()) == 0
}

func (r Report) Failures() []*ThresholdFailure {
	var out []*ThresholdFailure
	for _, res := range r.Results {
		if res.Failure != nil {
			out = append(out, res.Failure)
		}
	}
	return out
}

// Err joins every failure, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, f := range r.Failures() {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Validate evaluates checks against acc. It does not modify acc.
func Validate(acc *Accumulator, trials int, checks []Check) Report {
	results := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		results = append(results, CheckResult{Name: c.Name(), Failure: c.Evaluate(acc, trials)})
	}
	return Report{Results: results}
}

func aggregate(acc *Accumulator, t Table) int {
	if t == TableRelative {
		return acc.RelativeTotal()
	}
	return acc.AbsoluteTotal()
}

func count(acc *Accumulator, t Table, key *int64) int {
	if key == nil {
		return aggregate(acc, t)
	}
	if t == TableRelative {
		if *key < 0 || *key > math.MaxUint32 {
			return 0
		}
		return acc.Relative[uint32(*key)]
	}
	return acc.Absolute[*key]
}

func describeKey(t Table, key *int64) string {
	if key == nil {
		return t.String() + "[*]"
	}
	return fmt.Sprintf("%s[%d]", t, *key)
}
