// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package runes drives the outer INIT -> FETCH_TIP -> CATCHUP -> IDLE
// loop that keeps the rune ledger (store.Store) and the hot cache
// (cache.Cache) synchronized with confirmed blocks.
package runes

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Cobra9786/power/bitcoin/runes"
	"github.com/Cobra9786/power/cache"
	"github.com/Cobra9786/power/chain"
	"github.com/Cobra9786/power/store"
)

// IndexerID is the store cursor key this indexer advances.
const IndexerID = "rune_indexer"

// idleSleep is how long the indexer waits on tip before re-checking.
const idleSleep = 10 * time.Second

// interBlockPause paces successive CATCHUP iterations so a long replay
// doesn't starve the chain adapter's connection pool.
const interBlockPause = 10 * time.Millisecond

// Config carries the indexer's runtime knobs, sourced from
// config.IndexersConfig.
type Config struct {
	// StartHeight is the height treated as already indexed on a fresh
	// cursor; the first block processed is StartHeight+1.
	StartHeight int64
	// Watchlist, when non-empty, restricts etching/mint/edict
	// acceptance to the named runes (§4.1.4, §4.1.5).
	Watchlist []string
	// HandleEdicts disables edict processing entirely when false,
	// leaving etching/mint allocations as the only outputs.
	HandleEdicts bool
	// DisableRuneLog skips the income/expense audit trail inserts.
	DisableRuneLog bool
	// ChainParams resolves output scripts to addresses.
	ChainParams *chaincfg.Params
}

// Indexer is the single logical writer responsible for the rune ledger.
type Indexer struct {
	cfg   Config
	chain chain.Chain
	st    store.Store
	cch   cache.Cache
	log   btclog.Logger

	chainParams *chaincfg.Params

	filterRunes  bool
	watchlist    map[string]struct{}
	watchlistIDs map[runes.RuneID]struct{}
}

// New builds an Indexer. Call Run to start the outer loop.
func New(cfg Config, ch chain.Chain, st store.Store, cch cache.Cache, log btclog.Logger) *Indexer {
	return &Indexer{
		cfg:          cfg,
		chain:        ch,
		st:           st,
		cch:          cch,
		log:          log,
		chainParams:  cfg.ChainParams,
		filterRunes:  len(cfg.Watchlist) > 0,
		watchlist:    make(map[string]struct{}),
		watchlistIDs: make(map[runes.RuneID]struct{}),
	}
}

// Run executes the INIT -> FETCH_TIP -> CATCHUP -> IDLE state machine
// until ctx is cancelled. It returns nil on a clean cancellation and a
// non-nil error on any fatal condition.
func (idx *Indexer) Run(ctx context.Context) error {
	cursor, err := idx.st.GetCursor(ctx, IndexerID)
	if err != nil && err != store.ErrNotFound {
		return fmt.Errorf("read cursor: %w", err)
	}

	height := idx.cfg.StartHeight
	if cursor.LastBlock > height {
		height = cursor.LastBlock
	}

	if err := idx.resolveWatchlist(ctx); err != nil {
		return fmt.Errorf("resolve rune watchlist: %w", err)
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

			stats, err := idx.processBlock(ctx, height+1)
			if err != nil {
				idx.log.Errorf("index block %d: %v", height+1, err)
				break
			}

			height++
			if err := idx.st.SetCursor(ctx, IndexerID, height); err != nil {
				idx.log.Errorf("persist cursor at %d: %v", height, err)
				break
			}

			idx.log.Debugf("processed block %d: %+v", height, stats)

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

// IndexBlock processes a single block at height and, on success, advances
// the cursor past it. It is the unit Run drives repeatedly, exposed for
// one-off reprocessing (e.g. a CLI reindex of a single height).
func (idx *Indexer) IndexBlock(ctx context.Context, height int64) (BlockStats, error) {
	stats, err := idx.processBlock(ctx, height)
	if err != nil {
		return stats, err
	}

	return stats, idx.st.SetCursor(ctx, IndexerID, height)
}

// resolveWatchlist loads every watched rune by name so mint/edict
// lookups can match on RuneID without a store round trip per edict.
// A missing watchlist rune is fatal, per the outer loop's INIT state.
func (idx *Indexer) resolveWatchlist(ctx context.Context) error {
	if !idx.filterRunes {
		return nil
	}

	for _, name := range idx.cfg.Watchlist {
		r, err := idx.st.GetRune(ctx, name)
		if err != nil {
			return fmt.Errorf("rune %q: %w", name, err)
		}

		idx.watchlist[name] = struct{}{}
		idx.watchlistIDs[runes.RuneID{Block: uint64(r.Block), TxID: uint32(r.TxIndex)}] = struct{}{}
	}

	return nil
}
