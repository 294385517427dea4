// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package cache defines the hot-path key-value projection described by
// the configuration document: rune metadata by name and by (block, tx)
// id, per-address per-rune balances, and a short-lived UTXO lock set.
// The store (package store) remains authoritative; a cache miss or a
// cold start is expected to be repaired by the warm-up procedure.
package cache

import (
	"fmt"
	"math/big"

	"github.com/Cobra9786/power/bitcoin/runes"
	"github.com/Cobra9786/power/store"
)

// Cache is the hot-lookup projection consumed by the indexers and the
// pool transaction builder.
type Cache interface {
	GetRune(name string) (store.Rune, bool)
	SetRune(r store.Rune)
	GetRuneByID(id runes.RuneID) (string, bool)
	SetRuneByID(id runes.RuneID, name string)

	GetBalance(address, rune_ string) (*big.Int, bool)
	SetBalance(address, rune_ string, balance *big.Int)

	// Locked returns the outpoints currently locked for address, keyed by
	// "txid:vout".
	Locked(address string) map[string]struct{}
	Lock(address string, outpoints ...string)
	Unlock(address string, outpoints ...string)
}

// RuneKey returns the cache key used for rune-by-name lookups.
func RuneKey(name string) string { return "rune:" + name }

// RuneByIDKey returns the cache key used for rune-by-id lookups.
func RuneByIDKey(id runes.RuneID) string {
	return fmt.Sprintf("rune_by_id:%d:%d", id.Block, id.TxID)
}

// BalanceKey returns the cache key used for per-address per-rune balances.
func BalanceKey(address, rune_ string) string {
	return fmt.Sprintf("balance:%s:%s", address, rune_)
}

// UtxoKey returns the cache key used for a single rune-carrying utxo.
func UtxoKey(txid string, vout uint32, rune_ string) string {
	return fmt.Sprintf("utxo:%s:%d:%s", txid, vout, rune_)
}

// LockedUtxosKey returns the cache key used for an address's lock set.
func LockedUtxosKey(address string) string {
	return "locked_utxos:" + address
}
