// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package btc drives the plain-BTC sibling of indexer/runes (§4.5): a
// per-block scan that keeps a watchlist's BTC UTXO set and balances in
// sync, using an in-process map as the hot path instead of the rune
// indexer's shared cache.Cache.
package btc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Cobra9786/power/chain"
	"github.com/Cobra9786/power/store"
)

// IndexerID is the store cursor key this indexer advances.
const IndexerID = "btc_indexer"

const idleSleep = 10 * time.Second
const interBlockPause = 10 * time.Millisecond

// Config carries the BTC indexer's runtime knobs.
type Config struct {
	// StartHeight is the height treated as already indexed on a fresh
	// cursor; the first block processed is StartHeight+1.
	StartHeight int64
	// Watchlist is the set of addresses whose UTXOs/balance this
	// indexer tracks. Outputs paying any other address are ignored.
	Watchlist []string
	// ChainParams resolves output scripts to addresses.
	ChainParams *chaincfg.Params
}

// Indexer maintains BtcUtxo/BtcWatchlistBalance rows for a fixed address
// watchlist. It holds its own in-process balance cache (mirroring the
// rune indexer's warm-up into cache.Cache) since BTC balances are purely
// a projection of this indexer's own writes and need no cross-component
// sharing.
type Indexer struct {
	cfg   Config
	chain chain.Chain
	st    store.Store
	log   btclog.Logger

	chainParams *chaincfg.Params

	mu       sync.Mutex
	watched  map[string]struct{}
	balances map[string]int64
}

// New builds an Indexer. Call Warmup once, then Run.
func New(cfg Config, ch chain.Chain, st store.Store, log btclog.Logger) *Indexer {
	watched := make(map[string]struct{}, len(cfg.Watchlist))
	for _, addr := range cfg.Watchlist {
		watched[addr] = struct{}{}
	}

	return &Indexer{
		cfg:         cfg,
		chain:       ch,
		st:          st,
		log:         log,
		chainParams: cfg.ChainParams,
		watched:     watched,
		balances:    make(map[string]int64),
	}
}

// Warmup loads the current watchlist balance table into the in-process
// map, mirroring §4.1's cache warm-up.
func (idx *Indexer) Warmup(ctx context.Context) error {
	balances, err := idx.st.ListBtcBalances(ctx)
	if err != nil {
		return fmt.Errorf("list btc balances: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, b := range balances {
		idx.balances[b.HolderAddress] = b.BalanceSat
	}

	return nil
}

// Run executes the same FETCH_TIP -> CATCHUP -> IDLE loop as
// indexer/runes, against its own btc_indexer cursor.
func (idx *Indexer) Run(ctx context.Context) error {
	cursor, err := idx.st.GetCursor(ctx, IndexerID)
	if err != nil && err != store.ErrNotFound {
		return fmt.Errorf("read cursor: %w", err)
	}

	height := idx.cfg.StartHeight
	if cursor.LastBlock > height {
		height = cursor.LastBlock
	}

	for {
		tip, err := idx.chain.BestHeight()
		if err != nil {
			return fmt.Errorf("fetch tip: %w", err)
		}

		for height+1 <= tip {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			if err := idx.IndexBlock(ctx, height+1); err != nil {
				idx.log.Errorf("index btc block %d: %v", height+1, err)
				break
			}
			height++

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interBlockPause):
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(idleSleep):
		}
	}
}

// IndexBlock processes a single block and, on success, advances the
// cursor past it.
func (idx *Indexer) IndexBlock(ctx context.Context, height int64) error {
	hash, err := idx.chain.BlockHash(height)
	if err != nil {
		return fmt.Errorf("block hash at %d: %w", height, err)
	}

	block, err := idx.chain.Block(hash)
	if err != nil {
		return fmt.Errorf("fetch block %d: %w", height, err)
	}

	for txIndex, tx := range block.Transactions {
		if isCoinbase(tx) {
			continue
		}
		if err := idx.processTx(ctx, tx, height, int32(txIndex)); err != nil {
			return fmt.Errorf("tx %d: %w", txIndex, err)
		}
	}

	return idx.st.SetCursor(ctx, IndexerID, height)
}

// processTx spends every watched input and credits every watched output,
// per §4.5.
func (idx *Indexer) processTx(ctx context.Context, tx *wire.MsgTx, block int64, txIndex int32) error {
	txHash := tx.TxHash().String()

	for _, in := range tx.TxIn {
		prevHash := in.PreviousOutPoint.Hash.String()
		u, err := idx.st.GetBtcUtxo(ctx, prevHash, int32(in.PreviousOutPoint.Index))
		if err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return err
		}
		if u.Spent {
			continue
		}

		if err := idx.st.SpendBtcUtxo(ctx, prevHash, int32(in.PreviousOutPoint.Index)); err != nil {
			return err
		}
		if err := idx.credit(ctx, u.HolderAddress, -u.SatAmount); err != nil {
			return err
		}
	}

	for vout, out := range tx.TxOut {
		addr, err := idx.addressForScript(out.PkScript)
		if err != nil {
			continue
		}
		if !idx.isWatched(addr) {
			continue
		}

		if err := idx.st.InsertBtcUtxo(ctx, store.BtcUtxo{
			Block:         block,
			TxIndex:       txIndex,
			TxHash:        txHash,
			OutputIndex:   int32(vout),
			HolderAddress: addr,
			OutputScript:  fmt.Sprintf("%x", out.PkScript),
			SatAmount:     out.Value,
		}); err != nil {
			return err
		}

		if err := idx.credit(ctx, addr, out.Value); err != nil {
			return err
		}
	}

	return nil
}

// credit applies delta to address's cached and persisted balance.
func (idx *Indexer) credit(ctx context.Context, address string, delta int64) error {
	idx.mu.Lock()
	bal := idx.balances[address] + delta
	if bal < 0 {
		bal = 0
	}
	idx.balances[address] = bal
	idx.mu.Unlock()

	return idx.st.UpsertBtcBalance(ctx, address, bal)
}

func (idx *Indexer) isWatched(address string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.watched[address]
	return ok
}

func isCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prevOut := tx.TxIn[0].PreviousOutPoint
	return prevOut.Hash == chainhash.Hash{} && prevOut.Index == wire.MaxPrevOutIndex
}

func (idx *Indexer) addressForScript(script []byte) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, idx.chainParams)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("script resolves to no address")
	}
	return addrs[0].EncodeAddress(), nil
}
