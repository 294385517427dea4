// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package etching

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func hashFromTxID(txid string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return chainhash.Hash{}
	}
	return *h
}

func decodeAddress(address string, params *chaincfg.Params) (btcutil.Address, error) {
	return btcutil.DecodeAddress(address, params)
}
