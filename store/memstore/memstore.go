// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package memstore implements store.Store entirely in process memory. It
// backs unit tests. Per the single
// logical writer per indexer rule, individual (non-transactional) calls
// are not separately locked; WithTx serializes callers that do need an
// atomic multi-row unit of work (the watchdog's reconcile step).
package memstore

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/Cobra9786/power/store"
)

type runeUtxoKey struct {
	txHash string
	vout   int32
	rune_  string
}

type btcUtxoKey struct {
	txHash string
	vout   int32
}

type balanceKey struct {
	address string
	rune_   string
}

type lpKey struct {
	pairID  int64
	address string
}

// core holds every table and the unlocked business logic; it is embedded
// by both Store and the Tx handle WithTx hands to callers.
type core struct {
	cursors map[string]int64

	runes     map[string]store.Rune
	runesByID map[[2]int64]string
	runeLogs  []store.RuneLog

	runeUtxos    map[runeUtxoKey]store.RuneUtxo
	runeBalances map[balanceKey]*big.Int

	btcUtxos    map[btcUtxoKey]store.BtcUtxo
	btcBalances map[string]int64

	pairs          map[int64]store.TradingPair
	liquidityProvs map[lpKey]store.LiquidityProvider
	changeRequests map[string]store.LiquidityChangeRequest
	submittedTxs   map[string]store.SubmittedTx
}

func newCore() *core {
	return &core{
		cursors:        make(map[string]int64),
		runes:          make(map[string]store.Rune),
		runesByID:      make(map[[2]int64]string),
		runeUtxos:      make(map[runeUtxoKey]store.RuneUtxo),
		runeBalances:   make(map[balanceKey]*big.Int),
		btcUtxos:       make(map[btcUtxoKey]store.BtcUtxo),
		btcBalances:    make(map[string]int64),
		pairs:          make(map[int64]store.TradingPair),
		liquidityProvs: make(map[lpKey]store.LiquidityProvider),
		changeRequests: make(map[string]store.LiquidityChangeRequest),
		submittedTxs:   make(map[string]store.SubmittedTx),
	}
}

// Store is an in-memory store.Store implementation.
type Store struct {
	mu sync.Mutex
	*core
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{core: newCore()}
}

// WithTx serializes against other WithTx callers and runs fn against the
// same tables; a returned error does not roll back already-applied field
// mutations, since the in-process default backend keeps no snapshot.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(&txHandle{core: s.core})
}

// txHandle adapts core to store.Tx.
type txHandle struct {
	*core
}

func (t *txHandle) WithTx(_ context.Context, fn func(tx store.Tx) error) error {
	return fn(t)
}

func (c *core) GetCursor(_ context.Context, indexerID string) (store.IndexerCursor, error) {
	return store.IndexerCursor{IndexerID: indexerID, LastBlock: c.cursors[indexerID]}, nil
}

func (c *core) SetCursor(_ context.Context, indexerID string, height int64) error {
	c.cursors[indexerID] = height
	return nil
}

func (c *core) GetRune(_ context.Context, name string) (store.Rune, error) {
	r, ok := c.runes[name]
	if !ok {
		return store.Rune{}, store.ErrNotFound
	}
	return r, nil
}

func (c *core) GetRuneByID(_ context.Context, block int64, txIndex int32) (store.Rune, error) {
	name, ok := c.runesByID[[2]int64{block, int64(txIndex)}]
	if !ok {
		return store.Rune{}, store.ErrNotFound
	}
	return c.runes[name], nil
}

func (c *core) ListRunes(_ context.Context, nameFilter string, p store.Pagination) ([]store.Rune, error) {
	out := make([]store.Rune, 0, len(c.runes))
	for _, r := range c.runes {
		if nameFilter != "" && r.RuneName != nameFilter {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if p.Order == store.OrderDesc {
			return out[i].Block > out[j].Block
		}
		return out[i].Block < out[j].Block
	})
	return paginate(out, p), nil
}

func (c *core) InsertRune(_ context.Context, r store.Rune) error {
	if _, ok := c.runes[r.RuneName]; ok {
		return store.ErrAlreadyExists
	}
	c.runes[r.RuneName] = r
	c.runesByID[[2]int64{r.Block, int64(r.TxIndex)}] = r.RuneName
	return nil
}

func (c *core) UpdateRuneMint(_ context.Context, name string, mints int32, minted, inCirculation *big.Int) error {
	r, ok := c.runes[name]
	if !ok {
		return store.ErrNotFound
	}
	r.Mints = mints
	r.Minted = minted
	r.InCirculation = inCirculation
	c.runes[name] = r
	return nil
}

func (c *core) UpdateRuneBurned(_ context.Context, name string, burned, inCirculation *big.Int) error {
	r, ok := c.runes[name]
	if !ok {
		return store.ErrNotFound
	}
	r.Burned = burned
	r.InCirculation = inCirculation
	c.runes[name] = r
	return nil
}

func (c *core) InsertRuneLog(_ context.Context, entry store.RuneLog) error {
	c.runeLogs = append(c.runeLogs, entry)
	return nil
}

func (c *core) InsertRuneUtxo(_ context.Context, u store.RuneUtxo) error {
	c.runeUtxos[runeUtxoKey{u.TxHash, u.OutputIndex, u.RuneName}] = u
	return nil
}

func (c *core) GetRuneUtxo(_ context.Context, txHash string, vout int32, rune_ string) (store.RuneUtxo, error) {
	u, ok := c.runeUtxos[runeUtxoKey{txHash, vout, rune_}]
	if !ok {
		return store.RuneUtxo{}, store.ErrNotFound
	}
	return u, nil
}

func (c *core) ListRuneUtxosAtOutpoint(_ context.Context, txHash string, vout int32) ([]store.RuneUtxo, error) {
	out := make([]store.RuneUtxo, 0)
	for k, u := range c.runeUtxos {
		if k.txHash == txHash && k.vout == vout {
			out = append(out, u)
		}
	}
	return out, nil
}

func (c *core) SpendRuneUtxo(_ context.Context, txHash string, vout int32, rune_ string) error {
	key := runeUtxoKey{txHash, vout, rune_}
	u, ok := c.runeUtxos[key]
	if !ok {
		return store.ErrNotFound
	}
	u.Spent = true
	c.runeUtxos[key] = u
	return nil
}

func (c *core) SelectRuneUtxos(_ context.Context, rune_ string, address string, p store.Pagination) ([]store.RuneUtxo, error) {
	out := make([]store.RuneUtxo, 0)
	for _, u := range c.runeUtxos {
		if u.Spent || u.RuneName != rune_ {
			continue
		}
		if address != "" && u.HolderAddress != address {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Block != out[j].Block {
			if p.Order == store.OrderDesc {
				return out[i].Block > out[j].Block
			}
			return out[i].Block < out[j].Block
		}
		return out[i].TxIndex < out[j].TxIndex
	})
	return paginate(out, p), nil
}

func (c *core) GetRuneBalance(_ context.Context, address, rune_ string) (store.RuneBalance, error) {
	bal, ok := c.runeBalances[balanceKey{address, rune_}]
	if !ok {
		return store.RuneBalance{HolderAddress: address, RuneName: rune_, Balance: big.NewInt(0)}, nil
	}
	return store.RuneBalance{HolderAddress: address, RuneName: rune_, Balance: bal}, nil
}

func (c *core) UpsertRuneBalance(_ context.Context, address, rune_ string, balance *big.Int) error {
	c.runeBalances[balanceKey{address, rune_}] = balance
	return nil
}

func (c *core) ListRuneBalances(_ context.Context, address string) ([]store.RuneBalance, error) {
	out := make([]store.RuneBalance, 0)
	for k, v := range c.runeBalances {
		if k.address != address {
			continue
		}
		out = append(out, store.RuneBalance{HolderAddress: k.address, RuneName: k.rune_, Balance: v})
	}
	return out, nil
}

func (c *core) InsertBtcUtxo(_ context.Context, u store.BtcUtxo) error {
	c.btcUtxos[btcUtxoKey{u.TxHash, u.OutputIndex}] = u
	return nil
}

func (c *core) GetBtcUtxo(_ context.Context, txHash string, vout int32) (store.BtcUtxo, error) {
	u, ok := c.btcUtxos[btcUtxoKey{txHash, vout}]
	if !ok {
		return store.BtcUtxo{}, store.ErrNotFound
	}
	return u, nil
}

func (c *core) SpendBtcUtxo(_ context.Context, txHash string, vout int32) error {
	key := btcUtxoKey{txHash, vout}
	u, ok := c.btcUtxos[key]
	if !ok {
		return store.ErrNotFound
	}
	u.Spent = true
	c.btcUtxos[key] = u
	return nil
}

func (c *core) SelectBtcUtxos(_ context.Context, address string, p store.Pagination) ([]store.BtcUtxo, error) {
	out := make([]store.BtcUtxo, 0)
	for _, u := range c.btcUtxos {
		if u.Spent || u.HolderAddress != address {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Block < out[j].Block })
	return paginate(out, p), nil
}

func (c *core) GetBtcBalance(_ context.Context, address string) (store.BtcWatchlistBalance, error) {
	return store.BtcWatchlistBalance{HolderAddress: address, BalanceSat: c.btcBalances[address]}, nil
}

func (c *core) UpsertBtcBalance(_ context.Context, address string, balance int64) error {
	c.btcBalances[address] = balance
	return nil
}

func (c *core) ListBtcBalances(_ context.Context) ([]store.BtcWatchlistBalance, error) {
	out := make([]store.BtcWatchlistBalance, 0, len(c.btcBalances))
	for addr, bal := range c.btcBalances {
		out = append(out, store.BtcWatchlistBalance{HolderAddress: addr, BalanceSat: bal})
	}
	return out, nil
}

func (c *core) GetTradingPair(_ context.Context, id int64) (store.TradingPair, error) {
	p, ok := c.pairs[id]
	if !ok {
		return store.TradingPair{}, store.ErrNotFound
	}
	return p, nil
}

func (c *core) GetTradingPairByRune(_ context.Context, baseRune string) (store.TradingPair, error) {
	for _, p := range c.pairs {
		if p.BaseRune == baseRune {
			return p, nil
		}
	}
	return store.TradingPair{}, store.ErrNotFound
}

func (c *core) ListTradingPairs(_ context.Context, p store.Pagination) ([]store.TradingPair, error) {
	out := make([]store.TradingPair, 0, len(c.pairs))
	for _, pair := range c.pairs {
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, p), nil
}

func (c *core) UpdateTradingPair(_ context.Context, pair store.TradingPair) error {
	c.pairs[pair.ID] = pair
	return nil
}

func (c *core) GetLiquidityProvider(_ context.Context, pairID int64, baseAddress string) (store.LiquidityProvider, error) {
	lp, ok := c.liquidityProvs[lpKey{pairID, baseAddress}]
	if !ok {
		return store.LiquidityProvider{}, store.ErrNotFound
	}
	return lp, nil
}

func (c *core) UpdateLiquidityProvider(_ context.Context, lp store.LiquidityProvider) error {
	c.liquidityProvs[lpKey{lp.PairID, lp.BaseAddress}] = lp
	return nil
}

func (c *core) InsertLiquidityChangeRequest(_ context.Context, r store.LiquidityChangeRequest) error {
	if _, ok := c.changeRequests[r.UID]; ok {
		return store.ErrAlreadyExists
	}
	c.changeRequests[r.UID] = r
	return nil
}

func (c *core) UpdateLiquidityChangeRequest(_ context.Context, r store.LiquidityChangeRequest) error {
	if _, ok := c.changeRequests[r.UID]; !ok {
		return store.ErrNotFound
	}
	c.changeRequests[r.UID] = r
	return nil
}

func (c *core) GetLiquidityChangeRequest(_ context.Context, uid string) (store.LiquidityChangeRequest, error) {
	r, ok := c.changeRequests[uid]
	if !ok {
		return store.LiquidityChangeRequest{}, store.ErrNotFound
	}
	return r, nil
}

func (c *core) InsertSubmittedTx(_ context.Context, tx store.SubmittedTx) error {
	c.submittedTxs[tx.TxHash] = tx
	return nil
}

func (c *core) UpdateSubmittedTx(_ context.Context, tx store.SubmittedTx) error {
	if _, ok := c.submittedTxs[tx.TxHash]; !ok {
		return store.ErrNotFound
	}
	c.submittedTxs[tx.TxHash] = tx
	return nil
}

func (c *core) SelectPendingTxs(_ context.Context) ([]store.SubmittedTx, error) {
	out := make([]store.SubmittedTx, 0)
	for _, tx := range c.submittedTxs {
		if tx.Status == store.TxStatusPending {
			out = append(out, tx)
		}
	}
	return out, nil
}

func paginate[T any](in []T, p store.Pagination) []T {
	if p.Limit <= 0 {
		return in
	}
	page := p.Page
	if page < 0 {
		page = 0
	}
	start := page * p.Limit
	if start >= len(in) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(in) {
		end = len(in)
	}
	return in[start:end]
}
