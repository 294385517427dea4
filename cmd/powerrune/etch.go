// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/Cobra9786/power/bitcoin"
	"github.com/Cobra9786/power/bitcoin/etching"
	"github.com/Cobra9786/power/store"
)

// EtchRunesCommand reads a CSV of etchings and builds the unsigned
// commit transaction plus one signed reveal transaction per row
// (§4.2). The commit transaction is left unsigned — its funding inputs
// belong to the operator, who signs and broadcasts it out of band;
// once it has CommitConfirmations confirmations the matching reveal
// can be broadcast as-is.
type EtchRunesCommand struct {
	opts *Options

	CSVPath         string `long:"csv" required:"true" description:"path to the etchings CSV (name,symbol,total_supply)"`
	FundingAddress  string `long:"funding-address" required:"true" description:"BTC address funding the commit outputs"`
	ChangeAddress   string `long:"change-address" required:"true" description:"address receiving the commit transaction's change"`
	Destination     string `long:"destination" required:"true" description:"address receiving every etching's premine"`
	CommitmentKey   string `long:"commitment-key" required:"true" description:"hex-encoded secp256k1 private key for the reveal script"`
	FeeRateSatVByte int64  `long:"fee-rate" default:"10" description:"fee rate in sat/vbyte"`
}

func (c *EtchRunesCommand) Execute([]string) error {
	a, err := openApp(c.opts.ConfigPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	f, err := os.Open(c.CSVPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	tip, err := a.chain.BestHeight()
	if err != nil {
		return fmt.Errorf("fetch tip: %w", err)
	}

	specs, err := etching.ParseCSV(f, uint64(tip), c.Destination)
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}

	keyBytes, err := hex.DecodeString(c.CommitmentKey)
	if err != nil {
		return fmt.Errorf("decode commitment key: %w", err)
	}
	commitmentKey := secpPrivKey(keyBytes)

	funding, err := c.fundingUTXOs(ctx, a)
	if err != nil {
		return err
	}

	commit, err := etching.BuildCommit(etching.BuildCommitParams{
		Specs:           specs,
		FundingUTXOs:    funding,
		ChangeAddress:   c.ChangeAddress,
		CommitmentKey:   commitmentKey,
		FeeRateSatVByte: big.NewInt(c.FeeRateSatVByte),
		ChainParams:     a.chainParams,
	})
	if err != nil {
		return fmt.Errorf("build commit: %w", err)
	}

	commitHash := commit.Tx.TxHash().String()
	commitHex, err := serializeTxHex(commit.Tx)
	if err != nil {
		return fmt.Errorf("serialize commit tx: %w", err)
	}
	fmt.Printf("commit txid: %s\n", commitHash)
	fmt.Printf("commit tx (unsigned, needs funding signatures): %s\n", commitHex)

	for i, handle := range commit.Handles {
		reveal, err := etching.BuildReveal(etching.BuildRevealParams{
			Handle:        handle,
			CommitTxHash:  commitHash,
			CommitmentKey: commitmentKey,
			ChainParams:   a.chainParams,
		})
		if err != nil {
			return fmt.Errorf("build reveal %d: %w", i, err)
		}

		revealHex, err := serializeTxHex(reveal)
		if err != nil {
			return fmt.Errorf("serialize reveal %d: %w", i, err)
		}

		fmt.Printf("etching %d (%s): reveal tx (signed, ready after %d confirmations): %s\n",
			i, handle.Spec.Etching.Rune.String(), etching.CommitConfirmations, revealHex)
	}

	return nil
}

// fundingUTXOs selects unspent BTC utxos for the funding address from
// the store, converting them to bitcoin.UTXO for BuildCommit.
func (c *EtchRunesCommand) fundingUTXOs(ctx context.Context, a *app) ([]bitcoin.UTXO, error) {
	var out []bitcoin.UTXO

	for page := 0; ; page++ {
		rows, err := a.st.SelectBtcUtxos(ctx, c.FundingAddress, store.Pagination{Order: store.OrderAsc, Limit: 100, Page: page})
		if err != nil {
			return nil, fmt.Errorf("select funding utxos: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		for _, u := range rows {
			out = append(out, bitcoin.UTXO{
				TxHash:  u.TxHash,
				Index:   uint32(u.OutputIndex),
				Amount:  big.NewInt(u.SatAmount),
				Address: u.HolderAddress,
			})
		}

		if len(rows) < 100 {
			break
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no unspent btc utxos for funding address %s", c.FundingAddress)
	}

	return out, nil
}

func secpPrivKey(b []byte) *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(b)
	return priv
}
