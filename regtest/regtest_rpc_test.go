package regtest

import (
	"context"
	"os/exec"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/neverDefined/go-antisnipe/antisnipe"
)

var (
	minerWallet = "miner"
	userWallet  = "user"
)

// startRegtest starts a node in a temporary data dir, skipping the test when
// bitcoind is not installed.
func startRegtest(t *testing.T) *Regtest {
	t.Helper()

	if _, err := exec.LookPath("bitcoind"); err != nil {
		t.Skip("bitcoind not found in PATH")
	}

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	rt, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create regtest instance: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("failed to start bitcoin regtest: %v", err)
	}
	t.Cleanup(func() {
		if err := rt.Stop(); err != nil {
			t.Errorf("failed to stop bitcoind: %v", err)
		}
	})
	return rt
}

func TestRPC_Lifecycle(t *testing.T) {
	rt := startRegtest(t)

	if err := rt.HealthCheck(); err != nil {
		t.Fatalf("failed to check health: %v", err)
	}
	if !rt.IsRunning() {
		t.Fatal("bitcoind should be running after start")
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("second start should be a no-op: %v", err)
	}

	if err := rt.Stop(); err != nil {
		t.Fatalf("failed to stop bitcoind: %v", err)
	}
	if rt.IsRunning() {
		t.Fatal("bitcoind should not be running after stop")
	}

	t.Log("bitcoind management test passed")
}

func TestRPC_WalletManagement(t *testing.T) {
	rt := startRegtest(t)

	if err := rt.EnsureWallet(userWallet); err != nil {
		t.Fatalf("failed to ensure wallet: %v", err)
	}
	// already loaded
	if err := rt.EnsureWallet(userWallet); err != nil {
		t.Fatalf("failed to ensure loaded wallet: %v", err)
	}

	if err := rt.UnloadWallet(userWallet); err != nil {
		t.Fatalf("failed to unload wallet: %v", err)
	}
	// on disk, not loaded
	if err := rt.EnsureWallet(userWallet); err != nil {
		t.Fatalf("failed to reload wallet: %v", err)
	}

	info, err := rt.GetWalletInformation(userWallet)
	if err != nil {
		t.Fatalf("failed to get wallet info: %v", err)
	}
	if info.Name != userWallet {
		t.Fatalf("expected wallet %s, got %s", userWallet, info.Name)
	}
	if !info.Descriptors {
		t.Fatal("taproot addresses need a descriptor wallet")
	}

	if err := rt.UnloadWallet("does_not_exist"); err != nil {
		t.Fatalf("unloading an unknown wallet should not fail: %v", err)
	}
}

func TestRPC_GenerateAddress(t *testing.T) {
	rt := startRegtest(t)

	if err := rt.EnsureWallet(userWallet); err != nil {
		t.Fatalf("failed to ensure wallet: %v", err)
	}

	addr, err := rt.GenerateBech32(userWallet)
	if err != nil {
		t.Fatalf("failed to generate address: %v", err)
	}
	decoded, err := btcutil.DecodeAddress(addr, &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("failed to decode address: %v", err)
	}
	if _, ok := decoded.(*btcutil.AddressWitnessPubKeyHash); !ok {
		t.Fatalf("expected p2wpkh address, got %T", decoded)
	}

	bech32m, err := rt.GenerateBech32m(userWallet)
	if err != nil {
		t.Fatalf("failed to generate bech32m address: %v", err)
	}
	decoded, err = btcutil.DecodeAddress(bech32m, &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("failed to decode bech32m address: %v", err)
	}
	if _, ok := decoded.(*btcutil.AddressTaproot); !ok {
		t.Fatalf("expected taproot address, got %T", decoded)
	}
}

func TestRPC_Warp(t *testing.T) {
	rt := startRegtest(t)

	if err := rt.EnsureWallet(minerWallet); err != nil {
		t.Fatalf("failed to ensure wallet: %v", err)
	}

	startHeight, err := rt.GetBlockCount()
	if err != nil {
		t.Fatalf("failed to get block count: %v", err)
	}

	minerAddr, err := rt.GenerateBech32(minerWallet)
	if err != nil {
		t.Fatalf("failed to generate miner address: %v", err)
	}
	if err = rt.Warp(10, minerAddr); err != nil {
		t.Fatalf("failed to warp: %v", err)
	}
	if err := rt.Confirm(5); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}

	endHeight, err := rt.GetBlockCount()
	if err != nil {
		t.Fatalf("failed to get block count: %v", err)
	}
	if endHeight != startHeight+15 {
		t.Fatalf("block count did not increase by 15: %d != %d", endHeight, startHeight+15)
	}
}

func TestRPC_IssueSpendAndSweep(t *testing.T) {
	rt := startRegtest(t)

	if err := rt.Bootstrap(150); err != nil {
		t.Fatalf("failed to bootstrap: %v", err)
	}
	if err := rt.EnsureWallet(userWallet); err != nil {
		t.Fatalf("failed to ensure wallet: %v", err)
	}

	for i := 0; i < 2; i++ {
		addr, err := rt.GenerateBech32m(userWallet)
		if err != nil {
			t.Fatalf("failed to generate address: %v", err)
		}
		rec, err := rt.IssueSpend(minerWallet, addr, btcutil.Amount(30_000_000), true)
		if err != nil {
			t.Fatalf("failed to issue spend: %v", err)
		}
		if len(rec.Sequences) == 0 {
			t.Fatal("spend record has no inputs")
		}
		t.Logf("funding tx %s locktime=%d height=%d", rec.TxID, rec.LockTime, rec.Height)
	}
	if err := rt.Confirm(1); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}

	sink, err := rt.GenerateBech32(minerWallet)
	if err != nil {
		t.Fatalf("failed to generate sink address: %v", err)
	}
	rec, err := rt.Sweep(userWallet, sink, true)
	if err != nil {
		t.Fatalf("failed to sweep: %v", err)
	}
	if rec == nil {
		t.Fatal("sweep of a funded wallet returned no record")
	}
	if len(rec.Sequences) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(rec.Sequences))
	}
	if _, err := antisnipe.Classify(*rec, antisnipe.AntiSnipingFilter(true)); err != nil {
		t.Fatalf("sweep violates anti-sniping invariants: %v", err)
	}

	if err := rt.Confirm(1); err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}
	bal, err := rt.Balance(userWallet)
	if err != nil {
		t.Fatalf("failed to get balance: %v", err)
	}
	if bal != 0 {
		t.Fatalf("wallet should be empty after sweep, has %v", bal)
	}

	rec, err = rt.Sweep(userWallet, sink, true)
	if err != nil {
		t.Fatalf("sweeping an empty wallet should not fail: %v", err)
	}
	if rec != nil {
		t.Fatal("sweeping an empty wallet should return no record")
	}
}

func TestRPC_SegwitScenario(t *testing.T) {
	rt := startRegtest(t)

	if err := rt.Bootstrap(200); err != nil {
		t.Fatalf("failed to bootstrap: %v", err)
	}

	s, _ := antisnipe.ScenarioByName("segwit", 10, 3)
	res, err := antisnipe.NewRunner(rt, rt.Config().MinerWallet, nil).Run(context.Background(), s)
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
	if len(res.Tables.Relative) != 0 {
		t.Fatalf("segwit wallets must not use sequence anti-sniping: %v", res.Tables.Relative)
	}
	if got := res.Tables.AbsoluteTotal(); got != 10 {
		t.Fatalf("expected 10 locktime spends, got %d", got)
	}
}
