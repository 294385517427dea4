// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package store

import (
	"context"
	"errors"
	"math/big"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned by inserts that would violate a uniqueness
// constraint (e.g. re-etching an existing rune name).
var ErrAlreadyExists = errors.New("store: already exists")

// Tx is a handle to an in-flight atomic unit of work. Callers obtain one
// from Store.WithTx and must route every mutation they want applied
// atomically through the Tx, not the parent Store.
type Tx interface {
	Store
}

// Store is the persistence contract described by the data model: cursors,
// runes, rune utxos/balances, the plain-BTC sibling tables, trading pairs,
// liquidity positions and submitted transactions.
type Store interface {
	// WithTx runs fn inside one atomic unit of work. If fn returns an
	// error the unit of work is rolled back and the error is returned
	// verbatim; otherwise it is committed. store/memstore keeps no
	// snapshot and does not roll back (see its WithTx).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Cursors.
	GetCursor(ctx context.Context, indexerID string) (IndexerCursor, error)
	SetCursor(ctx context.Context, indexerID string, height int64) error

	// Runes.
	GetRune(ctx context.Context, name string) (Rune, error)
	GetRuneByID(ctx context.Context, block int64, txIndex int32) (Rune, error)
	ListRunes(ctx context.Context, nameFilter string, p Pagination) ([]Rune, error)
	InsertRune(ctx context.Context, rune_ Rune) error
	UpdateRuneMint(ctx context.Context, name string, mints int32, minted, inCirculation *big.Int) error
	UpdateRuneBurned(ctx context.Context, name string, burned, inCirculation *big.Int) error
	InsertRuneLog(ctx context.Context, entry RuneLog) error

	// Rune UTXOs and balances.
	InsertRuneUtxo(ctx context.Context, u RuneUtxo) error
	GetRuneUtxo(ctx context.Context, txHash string, vout int32, rune_ string) (RuneUtxo, error)
	// ListRuneUtxosAtOutpoint returns every rune balance (there may be
	// several, one per rune) carried by one transaction output.
	ListRuneUtxosAtOutpoint(ctx context.Context, txHash string, vout int32) ([]RuneUtxo, error)
	SpendRuneUtxo(ctx context.Context, txHash string, vout int32, rune_ string) error
	SelectRuneUtxos(ctx context.Context, rune_ string, address string, p Pagination) ([]RuneUtxo, error)
	GetRuneBalance(ctx context.Context, address, rune_ string) (RuneBalance, error)
	UpsertRuneBalance(ctx context.Context, address, rune_ string, balance *big.Int) error
	ListRuneBalances(ctx context.Context, address string) ([]RuneBalance, error)

	// BTC watchlist.
	InsertBtcUtxo(ctx context.Context, u BtcUtxo) error
	GetBtcUtxo(ctx context.Context, txHash string, vout int32) (BtcUtxo, error)
	SpendBtcUtxo(ctx context.Context, txHash string, vout int32) error
	SelectBtcUtxos(ctx context.Context, address string, p Pagination) ([]BtcUtxo, error)
	GetBtcBalance(ctx context.Context, address string) (BtcWatchlistBalance, error)
	UpsertBtcBalance(ctx context.Context, address string, balance int64) error
	ListBtcBalances(ctx context.Context) ([]BtcWatchlistBalance, error)

	// Trading pairs & liquidity.
	GetTradingPair(ctx context.Context, id int64) (TradingPair, error)
	GetTradingPairByRune(ctx context.Context, baseRune string) (TradingPair, error)
	ListTradingPairs(ctx context.Context, p Pagination) ([]TradingPair, error)
	UpdateTradingPair(ctx context.Context, pair TradingPair) error
	GetLiquidityProvider(ctx context.Context, pairID int64, baseAddress string) (LiquidityProvider, error)
	UpdateLiquidityProvider(ctx context.Context, lp LiquidityProvider) error
	InsertLiquidityChangeRequest(ctx context.Context, r LiquidityChangeRequest) error
	UpdateLiquidityChangeRequest(ctx context.Context, r LiquidityChangeRequest) error
	GetLiquidityChangeRequest(ctx context.Context, uid string) (LiquidityChangeRequest, error)

	// Submitted transactions.
	InsertSubmittedTx(ctx context.Context, tx SubmittedTx) error
	UpdateSubmittedTx(ctx context.Context, tx SubmittedTx) error
	SelectPendingTxs(ctx context.Context) ([]SubmittedTx, error)
}
