// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Cobra9786/power/store"
)

// dustLimit is the smallest change output this builder will emit;
// below it, the leftover is folded into the fee instead.
const dustLimit = 600

// sendTxVersion is the version of every plain transfer this builder
// assembles.
const sendTxVersion int32 = 2

// SendBTCCommand builds an unsigned PSBT moving plain BTC from one
// watched address to another, leaving every input unsigned (the
// operator signs out of band, per §1's non-goal that user inputs are
// never signed here).
type SendBTCCommand struct {
	opts *Options

	From         string `long:"from" required:"true" description:"sending address"`
	To           string `long:"to" required:"true" description:"recipient address"`
	AmountSat    int64  `long:"amount-sat" required:"true" description:"amount to send, in satoshis"`
	FeeRateSatVB int64  `long:"fee-rate" default:"10" description:"fee rate in sat/vbyte"`
}

func (c *SendBTCCommand) Execute([]string) error {
	a, err := openApp(c.opts.ConfigPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	toScript, err := addrScript(c.To, a)
	if err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	fromScript, err := addrScript(c.From, a)
	if err != nil {
		return fmt.Errorf("sender address: %w", err)
	}

	tx := wire.NewMsgTx(sendTxVersion)
	tx.AddTxOut(&wire.TxOut{Value: c.AmountSat, PkScript: toScript})

	var selected []store.BtcUtxo
	total := int64(0)
	for page := 0; ; page++ {
		rows, err := a.st.SelectBtcUtxos(ctx, c.From, store.Pagination{Order: store.OrderAsc, Limit: 100, Page: page})
		if err != nil {
			return fmt.Errorf("select btc utxos: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		for _, u := range rows {
			selected = append(selected, u)
			total += u.SatAmount

			fee := estimateSendFee(len(selected)+1, 2, c.FeeRateSatVB)
			if total >= c.AmountSat+fee {
				goto funded
			}
		}

		if len(rows) < 100 {
			break
		}
	}
	return fmt.Errorf("insufficient btc funds for %s", c.From)

funded:
	for _, u := range selected {
		hash, err := chainhash.NewHashFromStr(u.TxHash)
		if err != nil {
			return fmt.Errorf("parse txid %q: %w", u.TxHash, err)
		}
		tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: *hash, Index: uint32(u.OutputIndex)}})
	}

	fee := estimateSendFee(len(tx.TxIn), 2, c.FeeRateSatVB)
	leftover := total - c.AmountSat - fee
	if leftover > dustLimit {
		tx.AddTxOut(&wire.TxOut{Value: leftover, PkScript: fromScript})
	}

	p, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return fmt.Errorf("new psbt: %w", err)
	}
	for i, u := range selected {
		script, err := hex.DecodeString(u.OutputScript)
		if err != nil {
			return fmt.Errorf("utxo %d script: %w", i, err)
		}
		p.Inputs[i].WitnessUtxo = wire.NewTxOut(u.SatAmount, script)
		p.Inputs[i].SighashType = txscript.SigHashAll
	}

	buf := bytes.NewBuffer(nil)
	if err := p.Serialize(buf); err != nil {
		return fmt.Errorf("serialize psbt: %w", err)
	}

	fmt.Printf("fee: %d sat\n", fee)
	fmt.Printf("psbt: %s\n", hex.EncodeToString(buf.Bytes()))
	return nil
}

// estimateSendFee roughly sizes a P2WPKH-in/P2WPKH-out transaction:
// ~68 vbytes per input, ~31 per output, 11 overhead, doubled for the
// same worst-case-signature margin the pool builder applies.
func estimateSendFee(nIn, nOut int, feeRateSatVB int64) int64 {
	vsize := int64(11 + 68*nIn + 31*nOut)
	return vsize * feeRateSatVB * 2
}

func addrScript(address string, a *app) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, a.chainParams)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}
