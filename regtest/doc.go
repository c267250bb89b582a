/*
Package regtest manages a Bitcoin Core regtest node for the anti-fee-sniping
harness and exposes the wallet operations the harness needs.

A Regtest instance owns one bitcoind process started with -regtest and talks
to it over JSON-RPC through btcd's rpcclient in HTTP POST mode. Wallet calls
go through per-wallet clients bound to the /wallet/<name> endpoint, so any
number of wallets can be loaded at once.

Quick Start

	rt, err := regtest.New(nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := rt.Start(); err != nil {
		log.Fatal(err)
	}
	defer rt.Stop()

	rt.Bootstrap(400) // miner wallet with mature coinbases

	runner := antisnipe.NewRunner(rt, rt.Config().MinerWallet, logger)
	res, err := runner.Run(ctx, scenario)

Regtest implements antisnipe.Chain: IssueSpend wraps sendtoaddress, Sweep
wraps sendall, and Confirm mines to a fresh miner address. Every spend is
fetched back with getrawtransaction and paired with the tip height.

# Configuration

Default settings:
  - RPC host: 127.0.0.1:18443 (P2P on the next port)
  - RPC user: user
  - RPC pass: pass
  - Data directory: ./bitcoind_regtest (removed on Stop)
  - Miner wallet: miner

Override them per instance with a Config, package-wide with SetConfig, or
from the environment with ConfigFromEnv (BITCOIND_RPC_HOST,
BITCOIND_RPC_USER, BITCOIND_RPC_PASS, BITCOIND_DATADIR, BITCOIND_BIN,
BITCOIND_MINER_WALLET).

# Prerequisites

bitcoind (Bitcoin Core 24.0 or newer, for sendall and taproot sequence
anti-sniping) must be in PATH.

Use widely spaced ports when running several instances; each needs its own
data directory.
*/
package regtest
