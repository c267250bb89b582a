package antisnipe

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// SequenceRBF is the sequence a replaceable wallet puts on every input
	// that carries no relative locktime (MAX_BIP125_RBF_SEQUENCE).
	SequenceRBF uint32 = wire.MaxTxInSequenceNum - 2

	// SequenceLockTime is the sequence a non-replaceable wallet uses so that
	// nLockTime stays enforced.
	SequenceLockTime uint32 = wire.MaxTxInSequenceNum - 1
)

// AddressType names a wallet address type as understood by getnewaddress.
type AddressType string

const (
	AddressSegwit  AddressType = "bech32"
	AddressTaproot AddressType = "bech32m"
)

// Record is a single observed wallet transaction.
type Record struct {
	TxID      chainhash.Hash
	Sequences []uint32
	LockTime  uint32 // 0 means unset.
	Height    uint64 // chain height when the transaction was observed.
}

// RecordFromTx captures the anti-sniping relevant fields of tx as seen at
// the given chain height.
func RecordFromTx(tx *wire.MsgTx, height uint64) Record {
	seqs := make([]uint32, len(tx.TxIn))
	for i, in := range tx.TxIn {
		seqs[i] = in.Sequence
	}
	return Record{
		TxID:      tx.TxHash(),
		Sequences: seqs,
		LockTime:  tx.LockTime,
		Height:    height,
	}
}

// SequenceFilter reports whether a sequence value carries anti-sniping
// information.
type SequenceFilter func(seq uint32) bool

// AntiSnipingFilter returns the filter matching a wallet's replace-by-fee
// setting: anything other than the canonical sequence for that setting is
// flagged.
func AntiSnipingFilter(rbf bool) SequenceFilter {
	canonical := SequenceLockTime
	if rbf {
		canonical = SequenceRBF
	}
	return func(seq uint32) bool {
		return seq != canonical
	}
}
