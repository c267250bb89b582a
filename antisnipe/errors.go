package antisnipe

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ErrNoRecord is returned when the chain produced no transaction for a
// trial, e.g. a sweep of an empty wallet.
var ErrNoRecord = errors.New("no transaction observed")

// InvariantViolation reports a transaction that no correct anti-sniping
// implementation can produce. It aborts the scenario.
type InvariantViolation struct {
	TxID     chainhash.Hash
	Reason   string
	Flagged  []int // indexes of flagged inputs.
	LockTime uint32
}

// Error returns error description.
func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in tx %s: %s (flagged inputs %v, locktime %d)",
		e.TxID, e.Reason, e.Flagged, e.LockTime)
}

// ThresholdFailure reports a statistic outside its configured bound.
type ThresholdFailure struct {
	Check    string
	Expected string
	Observed string
}

// Error returns error description.
func (e *ThresholdFailure) Error() string {
	return fmt.Sprintf("%s: expected %s, observed %s", e.Check, e.Expected, e.Observed)
}
