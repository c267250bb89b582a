/*
Package antisnipe classifies wallet transactions by the anti-fee-sniping
mechanism they use and checks the resulting distributions against fixed
statistical thresholds.

A wallet that discourages fee sniping sets either the transaction nLockTime
to (roughly) the current tip height, or, for taproot spends, the nSequence of
one input to that input's confirmation count (BIP326). Each observed spend is
reduced to a Record and fed to an Accumulator:

	acc := antisnipe.NewAccumulator()
	filter := antisnipe.AntiSnipingFilter(true)
	for _, rec := range records {
		if _, err := acc.Observe(rec, filter); err != nil {
			return err // *InvariantViolation, never retried
		}
	}
	report := antisnipe.Validate(acc, len(records), scenario.Checks)
	if err := report.Err(); err != nil {
		return err
	}

A Runner drives complete scenarios against any Chain implementation, such as
the bitcoind-backed regtest.Regtest.
*/
package antisnipe
