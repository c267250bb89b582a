package antisnipe

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// fundingParallelism bounds concurrent funding sends within one trial.
const fundingParallelism = 4

// Chain is the node and wallet collaborator a Runner drives.
type Chain interface {
	EnsureWallet(name string) error
	NewAddress(wallet string, t AddressType) (string, error)
	// IssueSpend pays amount from wallet to dest and returns the resulting
	// transaction as observed at the current tip.
	IssueSpend(wallet, dest string, amount btcutil.Amount, rbf bool) (Record, error)
	// Confirm mines blocks on top of the current tip.
	Confirm(blocks uint32) error
	// Sweep sends the whole wallet balance to dest in one transaction. It
	// returns nil when there was nothing to send.
	Sweep(wallet, dest string, rbf bool) (*Record, error)
}

// ScenarioResult is the outcome of one scenario run.
type ScenarioResult struct {
	Scenario Scenario
	Trials   int
	Tables   *Accumulator
	Report   Report
}

func (r *ScenarioResult) Passed() bool {
	return r.Report.Passed()
}

// Runner executes scenarios against a Chain. Coins come from the funder
// wallet and are swept back into it.
type Runner struct {
	chain  Chain
	funder string
	log    *zap.Logger
}

// NewRunner is a constructor for Runner.
func NewRunner(chain Chain, funder string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{chain: chain, funder: funder, log: logger}
}

// Run executes every trial of s sequentially and validates the tables once
// at the end. Errors are reserved for invariant violations, chain failures
// and cancellation; threshold failures are reported in the result.
func (r *Runner) Run(ctx context.Context, s Scenario) (*ScenarioResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	log := r.log.With(zap.String("scenario", s.Name), zap.String("wallet", s.Wallet))

	if err := r.chain.EnsureWallet(s.Wallet); err != nil {
		return nil, fmt.Errorf("ensure wallet %s: %w", s.Wallet, err)
	}

	acc := NewAccumulator()
	filter := AntiSnipingFilter(s.RBF)

	log.Info("scenario started",
		zap.Int("trials", s.Trials),
		zap.Int("max_inputs", s.MaxInputs),
		zap.Bool("rbf", s.RBF),
		zap.Stringer("inputs", s.Inputs),
		zap.Bool("unconfirmed", s.Unconfirmed))

	for trial := 0; trial < s.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scenario %s cancelled at trial %d: %w", s.Name, trial, err)
		}

		rec, err := r.trial(ctx, s, trial)
		if err != nil {
			return nil, fmt.Errorf("scenario %s trial %d: %w", s.Name, trial, err)
		}

		o, err := acc.Observe(rec, filter)
		if err != nil {
			log.Error("invariant violated", zap.Int("trial", trial), zap.Error(err))
			return nil, fmt.Errorf("scenario %s trial %d: %w", s.Name, trial, err)
		}

		log.Debug("trial observed",
			zap.Int("trial", trial),
			zap.Stringer("txid", rec.TxID),
			zap.Int("inputs", len(rec.Sequences)),
			zap.Uint32("locktime", rec.LockTime),
			zap.Uint64("height", rec.Height),
			zap.String("outcome", fmt.Sprintf("%+v", o)))

		if err := r.chain.Confirm(1); err != nil {
			return nil, fmt.Errorf("scenario %s trial %d: confirm sweep: %w", s.Name, trial, err)
		}
	}

	res := &ScenarioResult{
		Scenario: s,
		Trials:   s.Trials,
		Tables:   acc,
		Report:   Validate(acc, s.Trials, s.Checks),
	}

	fields := []zap.Field{
		zap.Int("relative", acc.RelativeTotal()),
		zap.Int("absolute", acc.AbsoluteTotal()),
		zap.Int("positions", acc.DistinctPositions()),
	}
	if err := res.Report.Err(); err != nil {
		log.Warn("scenario failed", append(fields, zap.Error(err))...)
	} else {
		log.Info("scenario passed", fields...)
	}

	return res, nil
}

// RunAll runs scenarios one after another. It stops at the first hard error
// and returns the results gathered so far.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) ([]*ScenarioResult, error) {
	results := make([]*ScenarioResult, 0, len(scenarios))
	for _, s := range scenarios {
		res, err := r.Run(ctx, s)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// trial funds the scenario wallet, confirms the funding and sweeps the
// wallet back to the funder, returning the sweep.
func (r *Runner) trial(ctx context.Context, s Scenario, trial int) (Record, error) {
	types := s.Inputs.Types(trial, s.MaxInputs)

	addrs := make([]string, len(types))
	for i, t := range types {
		addr, err := r.chain.NewAddress(s.Wallet, t)
		if err != nil {
			return Record{}, fmt.Errorf("new %s address: %w", t, err)
		}
		addrs[i] = addr
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fundingParallelism)
	for _, addr := range addrs {
		addr := addr // per-iteration copy; go directive lowered to 1.21 (pre-1.22 loop semantics)
		g.Go(func() error {
			if _, err := r.chain.IssueSpend(r.funder, addr, s.Amount, true); err != nil {
				return fmt.Errorf("fund %s: %w", addr, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Record{}, err
	}

	if err := r.chain.Confirm(1); err != nil {
		return Record{}, fmt.Errorf("confirm funding: %w", err)
	}

	if s.Unconfirmed {
		self, err := r.chain.NewAddress(s.Wallet, types[0])
		if err != nil {
			return Record{}, fmt.Errorf("new change address: %w", err)
		}
		if _, err := r.chain.IssueSpend(s.Wallet, self, s.Amount/2, s.RBF); err != nil {
			return Record{}, fmt.Errorf("self spend: %w", err)
		}
	}

	sink, err := r.chain.NewAddress(r.funder, AddressSegwit)
	if err != nil {
		return Record{}, fmt.Errorf("new sink address: %w", err)
	}

	rec, err := r.chain.Sweep(s.Wallet, sink, s.RBF)
	if err != nil {
		return Record{}, fmt.Errorf("sweep: %w", err)
	}
	if rec == nil {
		return Record{}, ErrNoRecord
	}
	return *rec, nil
}
