package antisnipe

// Position identifies the input slot that carried the anti-sniping
// sequence, among all inputs of the transaction.
type Position struct {
	InputCount int
	Index      int
}

// Outcome is the classification of one Record. It is one of
// NoAntiSniping, RelativeAntiSniping or AbsoluteAntiSniping.
type Outcome interface {
	outcome()
}

// NoAntiSniping is a transaction with neither mechanism in use.
type NoAntiSniping struct{}

// RelativeAntiSniping is a transaction with exactly one flagged input
// sequence and no locktime.
type RelativeAntiSniping struct {
	Sequence uint32
	Position Position
}

// AbsoluteAntiSniping is a transaction with a locktime, stored relative to
// the height it was observed at.
type AbsoluteAntiSniping struct {
	Offset int64
}

func (NoAntiSniping) outcome()       {}
func (RelativeAntiSniping) outcome() {}
func (AbsoluteAntiSniping) outcome() {}

// Classify decides which anti-sniping mechanism rec uses. A record with more
// than one flagged input, or with both a locktime and a flagged input, is an
// *InvariantViolation.
func Classify(rec Record, filter SequenceFilter) (Outcome, error) {
	var flagged []int
	for i, seq := range rec.Sequences {
		if filter(seq) {
			flagged = append(flagged, i)
		}
	}

	if len(flagged) > 1 {
		return nil, &InvariantViolation{
			TxID:     rec.TxID,
			Reason:   "more than one input carries an anti-sniping sequence",
			Flagged:  flagged,
			LockTime: rec.LockTime,
		}
	}

	if rec.LockTime > 0 {
		if len(flagged) > 0 {
			return nil, &InvariantViolation{
				TxID:     rec.TxID,
				Reason:   "both locktime and sequence anti-sniping present",
				Flagged:  flagged,
				LockTime: rec.LockTime,
			}
		}
		return AbsoluteAntiSniping{Offset: int64(rec.LockTime) - int64(rec.Height)}, nil
	}

	if len(flagged) == 1 {
		idx := flagged[0]
		return RelativeAntiSniping{
			Sequence: rec.Sequences[idx],
			Position: Position{InputCount: len(rec.Sequences), Index: idx},
		}, nil
	}

	return NoAntiSniping{}, nil
}
