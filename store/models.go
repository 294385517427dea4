// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package store defines the persistence contract for runes/BTC indexer
// state, trading pairs, liquidity positions and submitted transactions.
package store

import (
	"math/big"
	"time"
)

// Rune action constants used by RuneLog.Action.
const (
	RuneLogActionEtching = "etching"
	RuneLogActionMint    = "mint"
	RuneLogActionIncome  = "income"
	RuneLogActionExpense = "expense"
)

// Submitted transaction statuses.
const (
	TxStatusPending = "pending"
	TxStatusMined   = "mined"
	TxStatusFailed  = "failed"
)

// Liquidity change request actions.
const (
	ActionSwapDirect  = "swap-direct"
	ActionSwapReverse = "swap-reverse"
	ActionAddLiq      = "add"
	ActionRemoveLiq   = "remove"
)

// Liquidity change request statuses.
const (
	RequestStatusNew    = "new"
	RequestStatusDone   = "done"
	RequestStatusFailed = "failed"
)

// Order direction for paginated listings.
type Order string

// Supported order directions.
const (
	OrderAsc  Order = "ASC"
	OrderDesc Order = "DESC"
)

// Pagination carries paging parameters shared by listing operations.
type Pagination struct {
	Order Order
	Limit int
	Page  int
}

// IndexerCursor tracks the last block height applied by a named indexer.
type IndexerCursor struct {
	IndexerID   string
	LastBlock   int64
}

// Rune is the durable record of one etched rune.
type Rune struct {
	RuneName       string
	DisplayName    string
	Symbol         string
	Block          int64
	TxIndex        int32
	Mints          int32
	MaxSupply      *big.Int
	Premine        *big.Int
	Burned         *big.Int
	Minted         *big.Int
	InCirculation  *big.Int
	Divisibility   int32
	TurboFlag      bool
	Timestamp      int64
	EtchingTxID    string
	CommitmentTxID string
	RawRunestone   []byte
}

// RuneLog is an optional audit trail entry for a rune balance mutation.
type RuneLog struct {
	TxHash  string
	Rune    string
	Address string
	Action  string
	Value   *big.Int
}

// RuneUtxo is an unspent (or spent, once marked) transaction output
// carrying a balance of one rune.
type RuneUtxo struct {
	Block         int64
	TxIndex       int32
	TxHash        string
	OutputIndex   int32
	RuneName      string
	HolderAddress string
	OutputScript  string
	Amount        *big.Int
	BtcSatAmount  int64
	Spent         bool
}

// RuneBalance is the materialized balance of one rune for one address.
type RuneBalance struct {
	HolderAddress string
	RuneName      string
	Balance       *big.Int
}

// BtcUtxo is an unspent (or spent) plain-BTC transaction output belonging
// to a watched address.
type BtcUtxo struct {
	Block         int64
	TxIndex       int32
	TxHash        string
	OutputIndex   int32
	HolderAddress string
	OutputScript  string
	SatAmount     int64
	Spent         bool
}

// BtcWatchlistBalance is the materialized BTC balance of one watched
// address.
type BtcWatchlistBalance struct {
	HolderAddress string
	BalanceSat    int64
}

// TradingPair is one AMM pool between a rune and BTC.
type TradingPair struct {
	ID               int64
	BaseRune         string
	QuoteAsset       string
	PoolAddress      string
	BaseBalance      *big.Int
	QuoteBalanceSat  *big.Int
	LockedBase       *big.Int
	LockedQuote      *big.Int
	FeeAddress       string
	TreasuryAddress  string
	SwapFeePercent   float64
}

// LiquidityProvider is one address's position within a trading pair.
type LiquidityProvider struct {
	ID           int64
	PairID       int64
	BaseAddress  string
	QuoteAddress string
	BaseAmount   *big.Int
	QuoteAmount  *big.Int
}

// LiquidityChangeRequest is a pending or settled swap/add/remove request
// against a trading pair.
type LiquidityChangeRequest struct {
	UID             string
	PairID          int64
	BaseAddress     string
	BaseAmount      *big.Int
	QuoteAddress    string
	QuoteAmount     *big.Int
	Action          string
	Status          string
	SubmittedTxID   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SubmittedTx is a transaction the service broadcast and is watching for
// confirmation.
type SubmittedTx struct {
	TxHash      string
	RawBytes    []byte
	Status      string
	Context     string
	RequestUID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
