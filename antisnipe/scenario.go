package antisnipe

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	// DefaultTrials is the number of spends per scenario.
	DefaultTrials = 200
	// DefaultMaxInputs is the largest number of inputs a trial spends.
	DefaultMaxInputs = 5
	// DefaultAmount funds each input of a trial.
	DefaultAmount btcutil.Amount = 30_000_000

	// Tunable thresholds shared by the default scenarios.
	RelativeMinPercent = 40
	AbsoluteMinPercent = 40
	CoveragePercent    = 80
	TipWindowLoPercent = 85
	TipWindowHiPercent = 95
	MaxBackdate        = 100
)

// InputPlan decides the address types a trial's inputs are funded to.
type InputPlan int

const (
	PlanTaproot InputPlan = iota
	PlanSegwit
	PlanMixed
)

func (p InputPlan) String() string {
	switch p {
	case PlanTaproot:
		return "taproot"
	case PlanSegwit:
		return "segwit"
	case PlanMixed:
		return "mixed"
	default:
		return fmt.Sprintf("plan(%d)", int(p))
	}
}

// Types returns the address type of every input of the given trial. Input
// counts cycle through 1..maxInputs, or 2..maxInputs for mixed plans, which
// always hold both types.
func (p InputPlan) Types(trial, maxInputs int) []AddressType {
	switch p {
	case PlanMixed:
		n := 2
		if maxInputs > 2 {
			n += trial % (maxInputs - 1)
		}
		out := make([]AddressType, n)
		for i := range out {
			out[i] = AddressTaproot
			if i%2 == 1 {
				out[i] = AddressSegwit
			}
		}
		return out
	case PlanSegwit:
		return repeat(AddressSegwit, trial%maxInputs+1)
	default:
		return repeat(AddressTaproot, trial%maxInputs+1)
	}
}

func repeat(t AddressType, n int) []AddressType {
	out := make([]AddressType, n)
	for i := range out {
		out[i] = t
	}
	return out
}

// Scenario is one wallet configuration exercised for a fixed number of
// trials, together with the checks its tables must pass.
type Scenario struct {
	Name      string
	Wallet    string
	Trials    int
	MaxInputs int
	RBF       bool
	Inputs    InputPlan
	// Unconfirmed makes every sweep include an unconfirmed change output.
	Unconfirmed bool
	Amount      btcutil.Amount
	Checks      []Check
}

// Validate reports configuration mistakes before any trial runs.
func (s Scenario) Validate() error {
	switch {
	case s.Name == "":
		return errors.New("scenario name is empty")
	case s.Wallet == "":
		return fmt.Errorf("scenario %s: wallet is empty", s.Name)
	case s.Trials <= 0:
		return fmt.Errorf("scenario %s: trials must be positive, got %d", s.Name, s.Trials)
	case s.MaxInputs <= 0:
		return fmt.Errorf("scenario %s: max inputs must be positive, got %d", s.Name, s.MaxInputs)
	case s.Inputs == PlanMixed && s.MaxInputs < 2:
		return fmt.Errorf("scenario %s: mixed inputs need at least 2 inputs", s.Name)
	case s.Amount <= 0:
		return fmt.Errorf("scenario %s: amount must be positive", s.Name)
	}
	return nil
}

func tipChecks() []Check {
	return []Check{
		RangeWindow{Table: TableAbsolute, Key: 0, LoPercent: TipWindowLoPercent, HiPercent: TipWindowHiPercent},
		Boundedness{Lower: -(MaxBackdate + 1), Upper: 0},
	}
}

// DefaultScenarios returns the five standard scenarios.
func DefaultScenarios(trials, maxInputs int) []Scenario {
	base := Scenario{Trials: trials, MaxInputs: maxInputs, Amount: DefaultAmount}

	taprootRBF := base
	taprootRBF.Name, taprootRBF.Wallet = "taproot-rbf", "taproot_rbf"
	taprootRBF.RBF, taprootRBF.Inputs = true, PlanTaproot
	taprootRBF.Checks = append([]Check{
		MinFrequency{Table: TableRelative, Key: Key(1), Percent: RelativeMinPercent},
		MinFrequency{Table: TableAbsolute, Percent: AbsoluteMinPercent},
		PositionCoverage{MaxInputs: maxInputs, Percent: CoveragePercent},
	}, tipChecks()...)

	taprootNoRBF := base
	taprootNoRBF.Name, taprootNoRBF.Wallet = "taproot-norbf", "taproot_norbf"
	taprootNoRBF.Inputs = PlanTaproot
	taprootNoRBF.Checks = append([]Check{AllAbsolute{}}, tipChecks()...)

	segwit := base
	segwit.Name, segwit.Wallet = "segwit", "segwit"
	segwit.RBF, segwit.Inputs = true, PlanSegwit
	segwit.Checks = append([]Check{AllAbsolute{}}, tipChecks()...)

	mixed := base
	mixed.Name, mixed.Wallet = "mixed", "mixed"
	mixed.RBF, mixed.Inputs = true, PlanMixed
	mixed.Checks = append([]Check{AllAbsolute{}}, tipChecks()...)

	unconfirmed := base
	unconfirmed.Name, unconfirmed.Wallet = "unconfirmed", "unconfirmed"
	unconfirmed.RBF, unconfirmed.Inputs, unconfirmed.Unconfirmed = true, PlanTaproot, true
	unconfirmed.Checks = []Check{
		ExclusiveMechanism{Want: MechanismAbsolute},
		Boundedness{Lower: -(MaxBackdate + 1), Upper: 0},
	}

	return []Scenario{taprootRBF, taprootNoRBF, segwit, mixed, unconfirmed}
}

// ScenarioNames lists the names of the default scenarios in run order.
func ScenarioNames() []string {
	scenarios := DefaultScenarios(DefaultTrials, DefaultMaxInputs)
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	return names
}

// ScenarioByName looks a default scenario up by name.
func ScenarioByName(name string, trials, maxInputs int) (Scenario, bool) {
	for _, s := range DefaultScenarios(trials, maxInputs) {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}
