// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// serializeTxHex hex-encodes tx's wire serialization, the form every
// subcommand prints for an operator to sign, inspect or broadcast.
func serializeTxHex(tx *wire.MsgTx) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := tx.Serialize(buf); err != nil {
		return "", fmt.Errorf("serialize tx: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
