// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package leveldbstore implements store.Store on top of an on-disk
// goleveldb database, standing in for the external SQL store named in the
// configuration document: goleveldb's own transaction handle backs
// WithTx, and github.com/golang/snappy compresses the (often large)
// raw runestone blob before it is written, the same way goleveldb itself
// snappy-compresses its blocks on disk.
package leveldbstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/golang/snappy"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Cobra9786/power/store"
)

// handle is implemented by both *leveldb.DB and *leveldb.Transaction,
// letting the row helpers below serve a bare store and a running
// transaction from the same code.
type handle interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	Put(key, value []byte, wo *opt.WriteOptions) error
	Write(batch *leveldb.Batch, wo *opt.WriteOptions) error
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// core implements store.Store (minus WithTx) against any handle.
type core struct {
	h handle
}

// Key prefixes, matching the cache key scheme named in the configuration
// document so the two layers stay visually consistent.
const (
	prefixCursor      = "cursor:"
	prefixRune        = "rune:"
	prefixRuneByID    = "rune_by_id:"
	prefixRuneUtxo    = "rune_utxo:"
	prefixRuneBalance = "balance:"
	prefixBtcUtxo     = "btc_utxo:"
	prefixBtcBalance  = "btc_balance:"
	prefixRuneLog     = "rune_log:"
	prefixPair        = "pair:"
	prefixLP          = "lp:"
	prefixChangeReq   = "change_req:"
	prefixSubmittedTx = "submitted_tx:"
)

func cursorKey(id string) []byte { return []byte(prefixCursor + id) }
func runeKey(name string) []byte { return []byte(prefixRune + name) }
func runeByIDKey(block int64, tx int32) []byte {
	return []byte(fmt.Sprintf("%s%020d:%010d", prefixRuneByID, block, tx))
}
func runeUtxoKey(txHash string, vout int32, rune_ string) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d:%s", prefixRuneUtxo, txHash, vout, rune_))
}
func runeBalanceKey(address, rune_ string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixRuneBalance, address, rune_))
}
func btcUtxoKey(txHash string, vout int32) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", prefixBtcUtxo, txHash, vout))
}
func btcBalanceKey(address string) []byte { return []byte(prefixBtcBalance + address) }
func pairKey(id int64) []byte             { return []byte(fmt.Sprintf("%s%020d", prefixPair, id)) }
func lpKey(pairID int64, address string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixLP, pairID, address))
}
func changeReqKey(uid string) []byte    { return []byte(prefixChangeReq + uid) }
func submittedTxKey(hash string) []byte { return []byte(prefixSubmittedTx + hash) }

// runeRow is the on-disk envelope: the runestone blob is snappy-compressed
// independently of the JSON wrapper around the rest of the row.
type runeRow struct {
	Rune             store.Rune
	RawRunestoneSnap []byte
}

func encodeRune(r store.Rune) ([]byte, error) {
	compressed := snappy.Encode(nil, r.RawRunestone)
	r.RawRunestone = nil
	return json.Marshal(runeRow{Rune: r, RawRunestoneSnap: compressed})
}

func decodeRune(data []byte) (store.Rune, error) {
	var row runeRow
	if err := json.Unmarshal(data, &row); err != nil {
		return store.Rune{}, err
	}
	raw, err := snappy.Decode(nil, row.RawRunestoneSnap)
	if err != nil {
		return store.Rune{}, err
	}
	row.Rune.RawRunestone = raw
	return row.Rune, nil
}

func (c *core) get(key []byte, out interface{}) error {
	data, err := c.h.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return store.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *core) put(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.h.Put(key, data, nil)
}

func (c *core) has(key []byte) bool {
	_, err := c.h.Get(key, nil)
	return err == nil
}

func (c *core) GetCursor(_ context.Context, indexerID string) (store.IndexerCursor, error) {
	var height int64
	if err := c.get(cursorKey(indexerID), &height); err != nil {
		if err == store.ErrNotFound {
			return store.IndexerCursor{IndexerID: indexerID}, nil
		}
		return store.IndexerCursor{}, err
	}
	return store.IndexerCursor{IndexerID: indexerID, LastBlock: height}, nil
}

func (c *core) SetCursor(_ context.Context, indexerID string, height int64) error {
	return c.put(cursorKey(indexerID), height)
}

func (c *core) GetRune(_ context.Context, name string) (store.Rune, error) {
	data, err := c.h.Get(runeKey(name), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return store.Rune{}, store.ErrNotFound
		}
		return store.Rune{}, err
	}
	return decodeRune(data)
}

func (c *core) GetRuneByID(ctx context.Context, block int64, txIndex int32) (store.Rune, error) {
	var name string
	if err := c.get(runeByIDKey(block, txIndex), &name); err != nil {
		return store.Rune{}, err
	}
	return c.GetRune(ctx, name)
}

func (c *core) ListRunes(_ context.Context, nameFilter string, p store.Pagination) ([]store.Rune, error) {
	it := c.h.NewIterator(util.BytesPrefix([]byte(prefixRune)), nil)
	defer it.Release()

	out := make([]store.Rune, 0)
	for it.Next() {
		r, err := decodeRune(it.Value())
		if err != nil {
			return nil, err
		}
		if nameFilter != "" && r.RuneName != nameFilter {
			continue
		}
		out = append(out, r)
	}
	return applyPage(out, p), it.Error()
}

func (c *core) InsertRune(_ context.Context, r store.Rune) error {
	if c.has(runeKey(r.RuneName)) {
		return store.ErrAlreadyExists
	}
	data, err := encodeRune(r)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(runeKey(r.RuneName), data)
	idData, err := json.Marshal(r.RuneName)
	if err != nil {
		return err
	}
	batch.Put(runeByIDKey(r.Block, r.TxIndex), idData)
	return c.h.Write(batch, nil)
}

func (c *core) UpdateRuneMint(ctx context.Context, name string, mints int32, minted, inCirculation *big.Int) error {
	r, err := c.GetRune(ctx, name)
	if err != nil {
		return err
	}
	r.Mints, r.Minted, r.InCirculation = mints, minted, inCirculation
	data, err := encodeRune(r)
	if err != nil {
		return err
	}
	return c.h.Put(runeKey(name), data, nil)
}

func (c *core) UpdateRuneBurned(ctx context.Context, name string, burned, inCirculation *big.Int) error {
	r, err := c.GetRune(ctx, name)
	if err != nil {
		return err
	}
	r.Burned, r.InCirculation = burned, inCirculation
	data, err := encodeRune(r)
	if err != nil {
		return err
	}
	return c.h.Put(runeKey(name), data, nil)
}

func (c *core) InsertRuneLog(_ context.Context, entry store.RuneLog) error {
	key := fmt.Sprintf("%s%s:%s:%s", prefixRuneLog, entry.TxHash, entry.Rune, entry.Action)
	return c.put([]byte(key), entry)
}

func (c *core) InsertRuneUtxo(_ context.Context, u store.RuneUtxo) error {
	return c.put(runeUtxoKey(u.TxHash, u.OutputIndex, u.RuneName), u)
}

func (c *core) GetRuneUtxo(_ context.Context, txHash string, vout int32, rune_ string) (store.RuneUtxo, error) {
	var u store.RuneUtxo
	err := c.get(runeUtxoKey(txHash, vout, rune_), &u)
	return u, err
}

func (c *core) ListRuneUtxosAtOutpoint(_ context.Context, txHash string, vout int32) ([]store.RuneUtxo, error) {
	prefix := []byte(fmt.Sprintf("%s%s:%010d:", prefixRuneUtxo, txHash, vout))
	it := c.h.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	out := make([]store.RuneUtxo, 0)
	for it.Next() {
		var u store.RuneUtxo
		if err := json.Unmarshal(it.Value(), &u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, it.Error()
}

func (c *core) SpendRuneUtxo(ctx context.Context, txHash string, vout int32, rune_ string) error {
	u, err := c.GetRuneUtxo(ctx, txHash, vout, rune_)
	if err != nil {
		return err
	}
	u.Spent = true
	return c.put(runeUtxoKey(txHash, vout, rune_), u)
}

func (c *core) SelectRuneUtxos(_ context.Context, rune_ string, address string, p store.Pagination) ([]store.RuneUtxo, error) {
	it := c.h.NewIterator(util.BytesPrefix([]byte(prefixRuneUtxo)), nil)
	defer it.Release()

	out := make([]store.RuneUtxo, 0)
	for it.Next() {
		var u store.RuneUtxo
		if err := json.Unmarshal(it.Value(), &u); err != nil {
			return nil, err
		}
		if u.Spent || u.RuneName != rune_ {
			continue
		}
		if address != "" && u.HolderAddress != address {
			continue
		}
		out = append(out, u)
	}
	return applyPage(out, p), it.Error()
}

func (c *core) GetRuneBalance(_ context.Context, address, rune_ string) (store.RuneBalance, error) {
	var bal big.Int
	if err := c.get(runeBalanceKey(address, rune_), &bal); err != nil {
		if err == store.ErrNotFound {
			return store.RuneBalance{HolderAddress: address, RuneName: rune_, Balance: big.NewInt(0)}, nil
		}
		return store.RuneBalance{}, err
	}
	return store.RuneBalance{HolderAddress: address, RuneName: rune_, Balance: &bal}, nil
}

func (c *core) UpsertRuneBalance(_ context.Context, address, rune_ string, balance *big.Int) error {
	return c.put(runeBalanceKey(address, rune_), balance)
}

func (c *core) ListRuneBalances(_ context.Context, address string) ([]store.RuneBalance, error) {
	it := c.h.NewIterator(util.BytesPrefix([]byte(prefixRuneBalance+address+":")), nil)
	defer it.Release()

	out := make([]store.RuneBalance, 0)
	for it.Next() {
		var bal big.Int
		if err := json.Unmarshal(it.Value(), &bal); err != nil {
			return nil, err
		}
		out = append(out, store.RuneBalance{HolderAddress: address, Balance: &bal})
	}
	return out, it.Error()
}

func (c *core) InsertBtcUtxo(_ context.Context, u store.BtcUtxo) error {
	return c.put(btcUtxoKey(u.TxHash, u.OutputIndex), u)
}

func (c *core) GetBtcUtxo(_ context.Context, txHash string, vout int32) (store.BtcUtxo, error) {
	var u store.BtcUtxo
	err := c.get(btcUtxoKey(txHash, vout), &u)
	return u, err
}

func (c *core) SpendBtcUtxo(ctx context.Context, txHash string, vout int32) error {
	u, err := c.GetBtcUtxo(ctx, txHash, vout)
	if err != nil {
		return err
	}
	u.Spent = true
	return c.put(btcUtxoKey(txHash, vout), u)
}

func (c *core) SelectBtcUtxos(_ context.Context, address string, p store.Pagination) ([]store.BtcUtxo, error) {
	it := c.h.NewIterator(util.BytesPrefix([]byte(prefixBtcUtxo)), nil)
	defer it.Release()

	out := make([]store.BtcUtxo, 0)
	for it.Next() {
		var u store.BtcUtxo
		if err := json.Unmarshal(it.Value(), &u); err != nil {
			return nil, err
		}
		if u.Spent || u.HolderAddress != address {
			continue
		}
		out = append(out, u)
	}
	return applyPage(out, p), it.Error()
}

func (c *core) GetBtcBalance(_ context.Context, address string) (store.BtcWatchlistBalance, error) {
	var bal int64
	if err := c.get(btcBalanceKey(address), &bal); err != nil && err != store.ErrNotFound {
		return store.BtcWatchlistBalance{}, err
	}
	return store.BtcWatchlistBalance{HolderAddress: address, BalanceSat: bal}, nil
}

func (c *core) UpsertBtcBalance(_ context.Context, address string, balance int64) error {
	return c.put(btcBalanceKey(address), balance)
}

func (c *core) ListBtcBalances(_ context.Context) ([]store.BtcWatchlistBalance, error) {
	it := c.h.NewIterator(util.BytesPrefix([]byte(prefixBtcBalance)), nil)
	defer it.Release()

	out := make([]store.BtcWatchlistBalance, 0)
	for it.Next() {
		var bal int64
		if err := json.Unmarshal(it.Value(), &bal); err != nil {
			return nil, err
		}
		addr := string(it.Key())[len(prefixBtcBalance):]
		out = append(out, store.BtcWatchlistBalance{HolderAddress: addr, BalanceSat: bal})
	}
	return out, it.Error()
}

func (c *core) GetTradingPair(_ context.Context, id int64) (store.TradingPair, error) {
	var p store.TradingPair
	err := c.get(pairKey(id), &p)
	return p, err
}

func (c *core) GetTradingPairByRune(_ context.Context, baseRune string) (store.TradingPair, error) {
	it := c.h.NewIterator(util.BytesPrefix([]byte(prefixPair)), nil)
	defer it.Release()

	for it.Next() {
		var p store.TradingPair
		if err := json.Unmarshal(it.Value(), &p); err != nil {
			return store.TradingPair{}, err
		}
		if p.BaseRune == baseRune {
			return p, nil
		}
	}
	return store.TradingPair{}, store.ErrNotFound
}

func (c *core) ListTradingPairs(_ context.Context, p store.Pagination) ([]store.TradingPair, error) {
	it := c.h.NewIterator(util.BytesPrefix([]byte(prefixPair)), nil)
	defer it.Release()

	out := make([]store.TradingPair, 0)
	for it.Next() {
		var pair store.TradingPair
		if err := json.Unmarshal(it.Value(), &pair); err != nil {
			return nil, err
		}
		out = append(out, pair)
	}
	return applyPage(out, p), it.Error()
}

func (c *core) UpdateTradingPair(_ context.Context, pair store.TradingPair) error {
	return c.put(pairKey(pair.ID), pair)
}

func (c *core) GetLiquidityProvider(_ context.Context, pairID int64, baseAddress string) (store.LiquidityProvider, error) {
	var lp store.LiquidityProvider
	err := c.get(lpKey(pairID, baseAddress), &lp)
	return lp, err
}

func (c *core) UpdateLiquidityProvider(_ context.Context, lp store.LiquidityProvider) error {
	return c.put(lpKey(lp.PairID, lp.BaseAddress), lp)
}

func (c *core) InsertLiquidityChangeRequest(_ context.Context, r store.LiquidityChangeRequest) error {
	if c.has(changeReqKey(r.UID)) {
		return store.ErrAlreadyExists
	}
	return c.put(changeReqKey(r.UID), r)
}

func (c *core) UpdateLiquidityChangeRequest(_ context.Context, r store.LiquidityChangeRequest) error {
	if !c.has(changeReqKey(r.UID)) {
		return store.ErrNotFound
	}
	return c.put(changeReqKey(r.UID), r)
}

func (c *core) GetLiquidityChangeRequest(_ context.Context, uid string) (store.LiquidityChangeRequest, error) {
	var r store.LiquidityChangeRequest
	err := c.get(changeReqKey(uid), &r)
	return r, err
}

func (c *core) InsertSubmittedTx(_ context.Context, tx store.SubmittedTx) error {
	return c.put(submittedTxKey(tx.TxHash), tx)
}

func (c *core) UpdateSubmittedTx(_ context.Context, tx store.SubmittedTx) error {
	if !c.has(submittedTxKey(tx.TxHash)) {
		return store.ErrNotFound
	}
	return c.put(submittedTxKey(tx.TxHash), tx)
}

func (c *core) SelectPendingTxs(_ context.Context) ([]store.SubmittedTx, error) {
	it := c.h.NewIterator(util.BytesPrefix([]byte(prefixSubmittedTx)), nil)
	defer it.Release()

	out := make([]store.SubmittedTx, 0)
	for it.Next() {
		var tx store.SubmittedTx
		if err := json.Unmarshal(it.Value(), &tx); err != nil {
			return nil, err
		}
		if tx.Status == store.TxStatusPending {
			out = append(out, tx)
		}
	}
	return out, it.Error()
}

func applyPage[T any](in []T, p store.Pagination) []T {
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

// Store is the top-level goleveldb-backed store.Store.
type Store struct {
	core
	db *leveldb.DB
}

// Open opens (creating if absent) a goleveldb database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldbstore: open %s: %w", path, err)
	}
	return &Store{core: core{h: db}, db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn against a goleveldb transaction; fn's error (or a
// failure to commit) aborts every write made through tx.
func (s *Store) WithTx(_ context.Context, fn func(tx store.Tx) error) error {
	ldbTx, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}

	t := &txHandle{core: core{h: ldbTx}, tx: ldbTx}
	if err := fn(t); err != nil {
		ldbTx.Discard()
		return err
	}
	return ldbTx.Commit()
}

// txHandle adapts a running goleveldb transaction to store.Tx.
type txHandle struct {
	core
	tx *leveldb.Transaction
}

func (t *txHandle) WithTx(_ context.Context, fn func(tx store.Tx) error) error {
	return fn(t)
}
