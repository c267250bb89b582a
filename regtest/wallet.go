package regtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"go.uber.org/zap"

	"github.com/neverDefined/go-antisnipe/antisnipe"
)

// rpcWalletNotFound is RPC_WALLET_NOT_FOUND.
const rpcWalletNotFound btcjson.RPCErrorCode = -18

// WalletInfo is the subset of getwalletinfo the harness reads.
type WalletInfo struct {
	Name        string `json:"walletname"`
	TxCount     int    `json:"txcount"`
	Descriptors bool   `json:"descriptors"`
	KeyPoolSize int    `json:"keypoolsize"`
}

type walletDirResult struct {
	Wallets []struct {
		Name string `json:"name"`
	} `json:"wallets"`
}

type sendAllResult struct {
	TxID     string `json:"txid"`
	Complete bool   `json:"complete"`
}

// rawParams marshals positional RPC parameters; nil becomes JSON null.
func rawParams(args ...any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal param %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

// call issues a raw request on c and decodes the result into out, which may
// be nil.
func call(c *rpcclient.Client, method string, out any, args ...any) error {
	params, err := rawParams(args...)
	if err != nil {
		return err
	}
	res, err := c.RawRequest(method, params)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// walletClient returns a client bound to the /wallet/<name> endpoint.
func (r *Regtest) walletClient(name string) (*rpcclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil, ErrNotRunning
	}
	if c, ok := r.wallets[name]; ok {
		return c, nil
	}
	c, err := rpcclient.New(r.cfg.connConfig(name), nil)
	if err != nil {
		return nil, fmt.Errorf("wallet %s client: %w", name, err)
	}
	r.wallets[name] = c
	return c, nil
}

// EnsureWallet makes sure the named wallet is loaded, loading it from disk
// or creating it as needed.
func (r *Regtest) EnsureWallet(name string) error {
	c, err := r.nodeClient()
	if err != nil {
		return err
	}

	var loaded []string
	if err := call(c, "listwallets", &loaded); err != nil {
		return err
	}
	if slices.Contains(loaded, name) {
		return nil
	}

	var dir walletDirResult
	if err := call(c, "listwalletdir", &dir); err != nil {
		return err
	}
	for _, w := range dir.Wallets {
		if w.Name == name {
			r.log.Debug("loading wallet", zap.String("wallet", name))
			return call(c, "loadwallet", nil, name)
		}
	}

	r.log.Debug("creating wallet", zap.String("wallet", name))
	return call(c, "createwallet", nil, name)
}

// UnloadWallet unloads the named wallet. Unloading an unknown wallet is not
// an error.
func (r *Regtest) UnloadWallet(name string) error {
	c, err := r.nodeClient()
	if err != nil {
		return err
	}

	r.mu.Lock()
	if wc, ok := r.wallets[name]; ok {
		wc.Shutdown()
		delete(r.wallets, name)
	}
	r.mu.Unlock()

	err = call(c, "unloadwallet", nil, name)
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == rpcWalletNotFound {
		return nil
	}
	return err
}

// GetWalletInformation returns getwalletinfo for the named wallet.
func (r *Regtest) GetWalletInformation(wallet string) (*WalletInfo, error) {
	c, err := r.walletClient(wallet)
	if err != nil {
		return nil, err
	}
	var info WalletInfo
	if err := call(c, "getwalletinfo", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Balance returns the wallet balance including trusted unconfirmed coins.
func (r *Regtest) Balance(wallet string) (btcutil.Amount, error) {
	c, err := r.walletClient(wallet)
	if err != nil {
		return 0, err
	}
	bal, err := c.GetBalance("*")
	if err != nil {
		return 0, fmt.Errorf("getbalance %s: %w", wallet, err)
	}
	return bal, nil
}

// NewAddress returns a fresh address of type t from the named wallet.
func (r *Regtest) NewAddress(wallet string, t antisnipe.AddressType) (string, error) {
	c, err := r.walletClient(wallet)
	if err != nil {
		return "", err
	}
	var addr string
	if err := call(c, "getnewaddress", &addr, "", string(t)); err != nil {
		return "", err
	}
	return addr, nil
}

// GenerateBech32 returns a fresh segwit v0 address from the named wallet.
func (r *Regtest) GenerateBech32(wallet string) (string, error) {
	return r.NewAddress(wallet, antisnipe.AddressSegwit)
}

// GenerateBech32m returns a fresh taproot address from the named wallet.
func (r *Regtest) GenerateBech32m(wallet string) (string, error) {
	return r.NewAddress(wallet, antisnipe.AddressTaproot)
}

// Warp mines blocks to addr.
func (r *Regtest) Warp(blocks int64, addr string) error {
	c, err := r.nodeClient()
	if err != nil {
		return err
	}
	a, err := btcutil.DecodeAddress(addr, &chaincfg.RegressionNetParams)
	if err != nil {
		return fmt.Errorf("invalid address %s: %w", addr, err)
	}
	if _, err := c.GenerateToAddress(blocks, a, nil); err != nil {
		return fmt.Errorf("generatetoaddress %d: %w", blocks, err)
	}
	return nil
}

// GetBlockCount returns the current tip height.
func (r *Regtest) GetBlockCount() (int64, error) {
	c, err := r.nodeClient()
	if err != nil {
		return 0, err
	}
	return c.GetBlockCount()
}

// SendToAddress pays amount from wallet to addr, signalling replaceability
// when rbf is set.
func (r *Regtest) SendToAddress(wallet, addr string, amount btcutil.Amount, rbf bool) (*chainhash.Hash, error) {
	c, err := r.walletClient(wallet)
	if err != nil {
		return nil, err
	}
	var txid string
	if err := call(c, "sendtoaddress", &txid, addr, amount.ToBTC(), "", "", false, rbf); err != nil {
		if bal, balErr := r.Balance(wallet); balErr == nil {
			r.log.Warn("send failed",
				zap.String("wallet", wallet),
				zap.Stringer("amount", amount),
				zap.Stringer("balance", bal),
				zap.Error(err))
		}
		return nil, err
	}
	return chainhash.NewHashFromStr(txid)
}

// SendAll sweeps the whole balance of wallet to addr in one transaction.
func (r *Regtest) SendAll(wallet, addr string, rbf bool) (*chainhash.Hash, error) {
	c, err := r.walletClient(wallet)
	if err != nil {
		return nil, err
	}
	opts := map[string]any{"replaceable": rbf}
	var res sendAllResult
	if err := call(c, "sendall", &res, []string{addr}, nil, "unset", nil, opts); err != nil {
		return nil, err
	}
	if !res.Complete {
		return nil, fmt.Errorf("sendall from %s returned an incomplete transaction", wallet)
	}
	return chainhash.NewHashFromStr(res.TxID)
}

// Bootstrap creates the miner wallet and mines blocks to it so that
// coinbase outputs mature.
func (r *Regtest) Bootstrap(blocks int64) error {
	if err := r.EnsureWallet(r.cfg.MinerWallet); err != nil {
		return fmt.Errorf("ensure miner wallet: %w", err)
	}
	addr, err := r.GenerateBech32(r.cfg.MinerWallet)
	if err != nil {
		return fmt.Errorf("miner address: %w", err)
	}
	if err := r.Warp(blocks, addr); err != nil {
		return err
	}
	r.log.Info("miner bootstrapped", zap.String("wallet", r.cfg.MinerWallet), zap.Int64("blocks", blocks))
	return nil
}
