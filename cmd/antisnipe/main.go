package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/neverDefined/go-antisnipe/antisnipe"
	"github.com/neverDefined/go-antisnipe/internal/env"
	"github.com/neverDefined/go-antisnipe/internal/logging"
	"github.com/neverDefined/go-antisnipe/regtest"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	logger, err := logging.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	trials := env.EnvInt("ANTISNIPE_TRIALS", antisnipe.DefaultTrials)
	maxInputs := env.EnvInt("ANTISNIPE_MAX_INPUTS", antisnipe.DefaultMaxInputs)
	bootstrap := env.EnvInt("ANTISNIPE_BOOTSTRAP_BLOCKS", 400)

	scenarios, err := selectScenarios(args, trials, maxInputs)
	if err != nil {
		logger.Error("invalid arguments", zap.Error(err), zap.Strings("available", antisnipe.ScenarioNames()))
		return 2
	}

	cfg := regtest.ConfigFromEnv()
	rt, err := regtest.New(cfg)
	if err != nil {
		logger.Error("invalid node config", zap.Error(err))
		return 1
	}
	if err := rt.Start(); err != nil {
		logger.Error("failed to start bitcoind", zap.Error(err))
		return 1
	}
	defer func() {
		if err := rt.Stop(); err != nil {
			logger.Warn("failed to stop bitcoind", zap.Error(err))
		}
	}()

	if err := rt.Bootstrap(int64(bootstrap)); err != nil {
		logger.Error("bootstrap failed", zap.Error(err))
		return 1
	}
	if info, err := rt.GetWalletInformation(cfg.MinerWallet); err == nil {
		logger.Info("funder wallet ready",
			zap.String("wallet", info.Name),
			zap.Bool("descriptors", info.Descriptors),
			zap.Int("txcount", info.TxCount))
	}

	runner := antisnipe.NewRunner(rt, cfg.MinerWallet, logger)
	results, err := runner.RunAll(ctx, scenarios)
	for _, res := range results {
		printResult(os.Stdout, res)
	}
	if err != nil {
		logger.Error("scenario aborted", zap.Error(err))
		return 1
	}

	failed := 0
	for _, res := range results {
		if !res.Passed() {
			failed++
		}
	}
	if failed > 0 {
		logger.Error("scenarios failed", zap.Int("failed", failed), zap.Int("total", len(results)))
		return 1
	}
	logger.Info("all scenarios passed", zap.Int("total", len(results)))
	return 0
}

// selectScenarios resolves scenario names; no names selects all of them.
func selectScenarios(names []string, trials, maxInputs int) ([]antisnipe.Scenario, error) {
	if len(names) == 0 {
		return antisnipe.DefaultScenarios(trials, maxInputs), nil
	}
	out := make([]antisnipe.Scenario, 0, len(names))
	for _, name := range names {
		s, ok := antisnipe.ScenarioByName(name, trials, maxInputs)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}

func printResult(w io.Writer, res *antisnipe.ScenarioResult) {
	status := "PASS"
	if !res.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(w, "== %s (%d trials): %s\n", res.Scenario.Name, res.Trials, status)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "table\tkey\tcount")
	for _, b := range res.Tables.RelativeHistogram() {
		fmt.Fprintf(tw, "relative\t%d\t%d\n", b.Key, b.Count)
	}
	for _, b := range res.Tables.PositionHistogram() {
		fmt.Fprintf(tw, "position\t%d/%d\t%d\n", b.Key.Index, b.Key.InputCount, b.Count)
	}
	for _, b := range res.Tables.AbsoluteHistogram() {
		fmt.Fprintf(tw, "absolute\t%d\t%d\n", b.Key, b.Count)
	}
	_ = tw.Flush()

	for _, r := range res.Report.Results {
		if r.Failure != nil {
			fmt.Fprintf(w, "  FAIL %s\n", r.Failure)
		} else {
			fmt.Fprintf(w, "  ok   %s\n", r.Name)
		}
	}
}
