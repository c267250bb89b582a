package regtest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"go.uber.org/zap"

	"github.com/neverDefined/go-antisnipe/internal/retry"
)

// ---------------------------------------------------------------
//  Bitcoin Core Node Management
// ---------------------------------------------------------------

// stopTimeout bounds how long Stop waits for bitcoind to exit after the
// stop RPC before killing it.
const stopTimeout = 30 * time.Second

// Regtest manages a single bitcoind regtest process and the RPC clients
// talking to it. All methods are safe for concurrent use.
type Regtest struct {
	cfg *Config
	log *zap.Logger

	// mu guards the process and client state below.
	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	client  *rpcclient.Client
	wallets map[string]*rpcclient.Client
}

// New creates a Regtest for cfg, or for GetConfig when cfg is nil. The node
// is not started.
func New(cfg *Config) (*Regtest, error) {
	if cfg == nil {
		cfg = GetConfig()
	} else {
		cfg = cfg.clone()
	}
	if _, _, err := cfg.ports(); err != nil {
		return nil, err
	}
	if cfg.Binary == "" {
		cfg.Binary = "bitcoind"
	}
	if cfg.MinerWallet == "" {
		cfg.MinerWallet = "miner"
	}

	return &Regtest{
		cfg:     cfg,
		log:     zap.L().Named("regtest").With(zap.String("host", cfg.Host)),
		wallets: make(map[string]*rpcclient.Client),
	}, nil
}

// Config returns a copy of the instance configuration.
func (r *Regtest) Config() *Config {
	return r.cfg.clone()
}

// Start launches bitcoind and blocks until its RPC interface answers.
// Starting a running node is a no-op.
//
// Example:
//
//	rt, _ := regtest.New(nil)
//	if err := rt.Start(); err != nil {
//	    log.Fatalf("Failed to start Bitcoin node: %v", err)
//	}
//	defer rt.Stop() // Always clean up
func (r *Regtest) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return nil
	}

	bin, err := exec.LookPath(r.cfg.Binary)
	if err != nil {
		return fmt.Errorf("bitcoind not found: %w", err)
	}

	args, err := r.cfg.args()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(r.cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", r.cfg.DataDir, err)
	}

	cmd := exec.Command(bin, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start bitcoind: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	client, err := rpcclient.New(r.cfg.connConfig(""), nil)
	if err != nil {
		_ = cmd.Process.Kill()
		<-exited
		return fmt.Errorf("failed to create rpc client: %w", err)
	}

	// An early exit of bitcoind cancels the readiness wait.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-exited:
			cancel()
		case <-ctx.Done():
		}
	}()

	err = retry.WithBackoff(ctx, retry.NodeStartupConfig(), r.log, "bitcoind rpc", func() error {
		_, err := client.GetBlockCount()
		return err
	})
	if err != nil {
		client.Shutdown()
		_ = cmd.Process.Kill()
		<-exited
		return fmt.Errorf("bitcoind did not become ready: %w", err)
	}

	r.cmd, r.exited, r.client = cmd, exited, client
	r.log.Info("bitcoind started", zap.Int("pid", cmd.Process.Pid), zap.String("datadir", r.cfg.DataDir))
	return nil
}

// Stop shuts bitcoind down, closes every RPC client and removes the data
// directory. Stopping a stopped node is a no-op.
func (r *Regtest) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return nil
	}

	if _, err := r.client.RawRequest("stop", nil); err != nil {
		r.log.Debug("stop rpc failed", zap.Error(err))
	}

	select {
	case <-r.exited:
	case <-time.After(stopTimeout):
		r.log.Warn("bitcoind did not exit in time, killing", zap.Duration("timeout", stopTimeout))
		_ = r.cmd.Process.Kill()
		<-r.exited
	}

	for name, c := range r.wallets {
		c.Shutdown()
		delete(r.wallets, name)
	}
	r.client.Shutdown()
	r.cmd, r.exited, r.client = nil, nil, nil

	if err := os.RemoveAll(r.cfg.DataDir); err != nil {
		return fmt.Errorf("failed to clean data dir: %w", err)
	}

	r.log.Info("bitcoind stopped")
	return nil
}

// IsRunning reports whether the bitcoind process started by this instance
// is alive.
func (r *Regtest) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return false
	}
	select {
	case <-r.exited:
		return false
	default:
		return true
	}
}

// Client returns the node-level RPC client, or nil before Start.
func (r *Regtest) Client() *rpcclient.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

// HealthCheck makes a cheap RPC round trip.
func (r *Regtest) HealthCheck() error {
	c, err := r.nodeClient()
	if err != nil {
		return err
	}
	if _, err := c.GetBlockCount(); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

func (r *Regtest) nodeClient() (*rpcclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil, ErrNotRunning
	}
	return r.client, nil
}

// ErrNotRunning is returned by RPC helpers before Start.
var ErrNotRunning = errors.New("bitcoind is not running")
