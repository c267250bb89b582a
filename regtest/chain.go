package regtest

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/neverDefined/go-antisnipe/antisnipe"
)

var _ antisnipe.Chain = (*Regtest)(nil)

// IssueSpend pays amount from wallet to dest and returns the broadcast
// transaction as seen at the current tip.
func (r *Regtest) IssueSpend(wallet, dest string, amount btcutil.Amount, rbf bool) (antisnipe.Record, error) {
	txid, err := r.SendToAddress(wallet, dest, amount, rbf)
	if err != nil {
		return antisnipe.Record{}, err
	}
	return r.observe(txid)
}

// Confirm mines blocks to a fresh miner wallet address.
func (r *Regtest) Confirm(blocks uint32) error {
	addr, err := r.GenerateBech32(r.cfg.MinerWallet)
	if err != nil {
		return fmt.Errorf("miner address: %w", err)
	}
	return r.Warp(int64(blocks), addr)
}

// Sweep empties wallet into dest. It returns nil when the wallet holds no
// spendable balance.
func (r *Regtest) Sweep(wallet, dest string, rbf bool) (*antisnipe.Record, error) {
	bal, err := r.Balance(wallet)
	if err != nil {
		return nil, err
	}
	if bal == 0 {
		return nil, nil
	}

	txid, err := r.SendAll(wallet, dest, rbf)
	if err != nil {
		return nil, err
	}
	rec, err := r.observe(txid)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// observe fetches txid and pairs it with the current tip height.
func (r *Regtest) observe(txid *chainhash.Hash) (antisnipe.Record, error) {
	c, err := r.nodeClient()
	if err != nil {
		return antisnipe.Record{}, err
	}
	tx, err := c.GetRawTransaction(txid)
	if err != nil {
		return antisnipe.Record{}, fmt.Errorf("getrawtransaction %s: %w", txid, err)
	}
	height, err := c.GetBlockCount()
	if err != nil {
		return antisnipe.Record{}, fmt.Errorf("getblockcount: %w", err)
	}
	return antisnipe.RecordFromTx(tx.MsgTx(), uint64(height)), nil
}
