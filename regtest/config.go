package regtest

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/btcsuite/btcd/rpcclient"

	"github.com/neverDefined/go-antisnipe/internal/env"
)

// Config describes a regtest node: where its RPC listens, how to
// authenticate, where it keeps its data and which wallet mines.
type Config struct {
	Host        string // RPC host:port; the P2P port is RPC port + 1.
	User        string
	Pass        string
	DataDir     string
	Binary      string // bitcoind executable, looked up in PATH.
	MinerWallet string
	ExtraArgs   []string
}

var (
	// configMu guards customConfig.
	configMu     sync.RWMutex
	customConfig *Config
)

// DefaultConfig returns the standard local regtest settings.
func DefaultConfig() *Config {
	return &Config{
		Host:        "127.0.0.1:18443",
		User:        "user",
		Pass:        "pass",
		DataDir:     "./bitcoind_regtest",
		Binary:      "bitcoind",
		MinerWallet: "miner",
	}
}

// SetConfig replaces the package-wide configuration with a copy of cfg.
func SetConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	customConfig = cfg.clone()
}

// GetConfig returns a copy of the package-wide configuration, or the
// defaults when none was set.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	if customConfig == nil {
		return DefaultConfig()
	}
	return customConfig.clone()
}

// ResetConfig restores the defaults.
func ResetConfig() {
	configMu.Lock()
	defer configMu.Unlock()
	customConfig = nil
}

// ConfigFromEnv overlays BITCOIND_* environment variables on GetConfig.
func ConfigFromEnv() *Config {
	cfg := GetConfig()
	cfg.Host = env.Env("BITCOIND_RPC_HOST", cfg.Host)
	cfg.User = env.Env("BITCOIND_RPC_USER", cfg.User)
	cfg.Pass = env.Env("BITCOIND_RPC_PASS", cfg.Pass)
	cfg.DataDir = env.Env("BITCOIND_DATADIR", cfg.DataDir)
	cfg.Binary = env.Env("BITCOIND_BIN", cfg.Binary)
	cfg.MinerWallet = env.Env("BITCOIND_MINER_WALLET", cfg.MinerWallet)
	return cfg
}

// DefaultRegtestConfig returns the RPC connection config for the
// package-wide configuration.
func DefaultRegtestConfig() *rpcclient.ConnConfig {
	return GetConfig().connConfig("")
}

func (c *Config) clone() *Config {
	cp := *c
	cp.ExtraArgs = append([]string(nil), c.ExtraArgs...)
	return &cp
}

// connConfig builds an HTTP POST connection config, scoped to wallet when
// it is not empty.
func (c *Config) connConfig(wallet string) *rpcclient.ConnConfig {
	host := c.Host
	if wallet != "" {
		host += "/wallet/" + wallet
	}
	return &rpcclient.ConnConfig{
		Host:         host,
		User:         c.User,
		Pass:         c.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
}

func (c *Config) ports() (rpcPort, p2pPort int, err error) {
	_, port, err := net.SplitHostPort(c.Host)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid rpc host %q: %w", c.Host, err)
	}
	rpcPort, err = strconv.Atoi(port)
	if err != nil || rpcPort <= 0 || rpcPort >= 65535 {
		return 0, 0, fmt.Errorf("invalid rpc port %q", port)
	}
	return rpcPort, rpcPort + 1, nil
}

// args returns the bitcoind command line for this config.
func (c *Config) args() ([]string, error) {
	rpcPort, p2pPort, err := c.ports()
	if err != nil {
		return nil, err
	}
	args := []string{
		"-regtest",
		"-server",
		"-daemon=0",
		"-txindex",
		"-fallbackfee=0.0001",
		"-datadir=" + c.DataDir,
		"-rpcuser=" + c.User,
		"-rpcpassword=" + c.Pass,
		"-rpcallowip=127.0.0.1",
		fmt.Sprintf("-rpcport=%d", rpcPort),
		fmt.Sprintf("-port=%d", p2pPort),
	}
	return append(args, c.ExtraArgs...), nil
}
