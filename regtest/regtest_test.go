package regtest

import (
	"encoding/json"
	"slices"
	"testing"
)

func Test_Config(t *testing.T) {
	t.Cleanup(ResetConfig)

	// Test default config
	defaultCfg := DefaultConfig()
	if defaultCfg.Host != "127.0.0.1:18443" {
		t.Errorf("expected default host 127.0.0.1:18443, got %s", defaultCfg.Host)
	}
	if defaultCfg.User != "user" {
		t.Errorf("expected default user 'user', got %s", defaultCfg.User)
	}
	if defaultCfg.Pass != "pass" {
		t.Errorf("expected default pass 'pass', got %s", defaultCfg.Pass)
	}
	if defaultCfg.MinerWallet != "miner" {
		t.Errorf("expected default miner wallet 'miner', got %s", defaultCfg.MinerWallet)
	}

	// GetConfig returns default when no custom config is set
	cfg := GetConfig()
	if cfg.Host != defaultCfg.Host || cfg.User != defaultCfg.User {
		t.Error("GetConfig should return default config when none is set")
	}

	customCfg := &Config{
		Host:      "127.0.0.1:18444",
		User:      "testuser",
		Pass:      "testpass",
		DataDir:   "/tmp/test_regtest",
		ExtraArgs: []string{"-txindex=1"},
	}
	SetConfig(customCfg)

	cfg = GetConfig()
	if cfg.Host != customCfg.Host {
		t.Errorf("expected host %s, got %s", customCfg.Host, cfg.Host)
	}
	if cfg.User != customCfg.User {
		t.Errorf("expected user %s, got %s", customCfg.User, cfg.User)
	}
	if cfg.Pass != customCfg.Pass {
		t.Errorf("expected pass %s, got %s", customCfg.Pass, cfg.Pass)
	}
	if cfg.DataDir != customCfg.DataDir {
		t.Errorf("expected datadir %s, got %s", customCfg.DataDir, cfg.DataDir)
	}
	if len(cfg.ExtraArgs) != 1 || cfg.ExtraArgs[0] != "-txindex=1" {
		t.Errorf("expected extra args [-txindex=1], got %v", cfg.ExtraArgs)
	}

	// SetConfig stores a copy
	customCfg.ExtraArgs[0] = "-changed"
	if GetConfig().ExtraArgs[0] != "-txindex=1" {
		t.Error("SetConfig should copy the config")
	}

	// DefaultRegtestConfig uses custom config
	rpcCfg := DefaultRegtestConfig()
	if rpcCfg.Host != "127.0.0.1:18444" {
		t.Errorf("DefaultRegtestConfig should use custom host, got %s", rpcCfg.Host)
	}
	if rpcCfg.User != "testuser" {
		t.Errorf("DefaultRegtestConfig should use custom user, got %s", rpcCfg.User)
	}
	if !rpcCfg.HTTPPostMode || !rpcCfg.DisableTLS {
		t.Error("DefaultRegtestConfig should use HTTP POST mode without TLS")
	}

	ResetConfig()
	cfg = GetConfig()
	if cfg.Host != defaultCfg.Host {
		t.Error("ResetConfig should restore default config")
	}

	// modifying returned config shouldn't affect stored config
	cfg = GetConfig()
	cfg.Host = "modified"
	cfg2 := GetConfig()
	if cfg2.Host == "modified" {
		t.Error("GetConfig should return a copy, not the original config")
	}

	t.Log("configuration test passed")
}

func Test_ConfigFromEnv(t *testing.T) {
	t.Cleanup(ResetConfig)

	t.Setenv("BITCOIND_RPC_HOST", "127.0.0.1:19000")
	t.Setenv("BITCOIND_DATADIR", "/tmp/from_env")
	t.Setenv("BITCOIND_MINER_WALLET", "")

	cfg := ConfigFromEnv()
	if cfg.Host != "127.0.0.1:19000" {
		t.Errorf("expected host from env, got %s", cfg.Host)
	}
	if cfg.DataDir != "/tmp/from_env" {
		t.Errorf("expected datadir from env, got %s", cfg.DataDir)
	}
	if cfg.MinerWallet != "miner" {
		t.Errorf("empty env should keep default miner wallet, got %s", cfg.MinerWallet)
	}
}

func Test_ConnConfigWallet(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.connConfig("taproot").Host; got != "127.0.0.1:18443/wallet/taproot" {
		t.Errorf("unexpected wallet host %s", got)
	}
	if got := cfg.connConfig("").Host; got != "127.0.0.1:18443" {
		t.Errorf("unexpected node host %s", got)
	}
}

func Test_Args(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1:19100"
	cfg.ExtraArgs = []string{"-maxtxfee=1"}

	args, err := cfg.args()
	if err != nil {
		t.Fatalf("args: %v", err)
	}
	for _, want := range []string{"-regtest", "-rpcport=19100", "-port=19101", "-fallbackfee=0.0001", "-maxtxfee=1"} {
		if !slices.Contains(args, want) {
			t.Errorf("missing %s in %v", want, args)
		}
	}

	cfg.Host = "no-port"
	if _, err := cfg.args(); err == nil {
		t.Error("expected error for host without port")
	}
	if _, err := New(cfg); err == nil {
		t.Error("New should reject an invalid host")
	}
}

func Test_RawParams(t *testing.T) {
	params, err := rawParams([]string{"bcrt1q"}, nil, "unset", nil, map[string]any{"replaceable": true})
	if err != nil {
		t.Fatalf("rawParams: %v", err)
	}
	got, _ := json.Marshal(params)
	want := `[["bcrt1q"],null,"unset",null,{"replaceable":true}]`
	if string(got) != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func Test_NotRunning(t *testing.T) {
	rt, err := New(nil)
	if err != nil {
		t.Fatalf("failed to create regtest instance: %v", err)
	}
	if rt.IsRunning() {
		t.Fatal("fresh instance should not be running")
	}
	if err := rt.HealthCheck(); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if _, err := rt.NewAddress("miner", "bech32"); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if err := rt.Stop(); err != nil {
		t.Fatalf("stopping a stopped node should be a no-op: %v", err)
	}
}
