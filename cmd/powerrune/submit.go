// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/Cobra9786/power/store"
)

// SubmitRawTxCommand broadcasts a raw signed transaction. When
// --request-uid is given, it also records a pending SubmittedTx row so
// the watchdog (§4.4) picks it up and reconciles the matching
// liquidity change request once confirmed.
type SubmitRawTxCommand struct {
	opts *Options

	RawTxHex   string `long:"raw-tx-hex" required:"true" description:"hex-encoded signed transaction"`
	RequestUID string `long:"request-uid" description:"liquidity change request uid this tx settles, if any"`
	Context    string `long:"context" description:"free-form context string stored alongside the submitted tx"`
}

func (c *SubmitRawTxCommand) Execute([]string) error {
	a, err := openApp(c.opts.ConfigPath)
	if err != nil {
		return err
	}
	defer a.close()

	raw, err := hex.DecodeString(c.RawTxHex)
	if err != nil {
		return fmt.Errorf("decode raw tx: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("parse raw tx: %w", err)
	}

	txid, err := a.chain.SendRawTransaction(tx)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}

	if c.RequestUID != "" {
		now := time.Now()
		err := a.st.InsertSubmittedTx(context.Background(), store.SubmittedTx{
			TxHash:     txid.String(),
			RawBytes:   raw,
			Status:     store.TxStatusPending,
			Context:    c.Context,
			RequestUID: c.RequestUID,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return fmt.Errorf("record submitted tx: %w", err)
		}
	}

	fmt.Printf("txid: %s\n", txid.String())
	return nil
}
