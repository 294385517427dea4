// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/Cobra9786/power/bitcoin/pooltx"
)

// SendRuneCommand builds an unsigned PSBT moving a rune balance from
// one address to another, funding the fee from the same address. Its
// BTC output pays the sending address --btc-amount-sat satoshis, 0 by
// default.
type SendRuneCommand struct {
	opts *Options

	From         string `long:"from" required:"true" description:"sending address (also funds the fee)"`
	To           string `long:"to" required:"true" description:"recipient address"`
	Rune         string `long:"rune" required:"true" description:"rune name to transfer"`
	Amount       string `long:"amount" required:"true" description:"rune amount to transfer, as a base-10 integer string"`
	BtcAmountSat int64  `long:"btc-amount-sat" default:"0" description:"optional plain BTC amount to bundle alongside the rune transfer"`
	FeeRateSatVB int64  `long:"fee-rate" default:"10" description:"fee rate in sat/vbyte"`
}

func (c *SendRuneCommand) Execute([]string) error {
	a, err := openApp(c.opts.ConfigPath)
	if err != nil {
		return err
	}
	defer a.close()

	amount, ok := new(big.Int).SetString(c.Amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", c.Amount)
	}

	builder := pooltx.New(a.st, a.cch, a.chainParams)

	raw, err := builder.Build(context.Background(), pooltx.TxParams{
		RuneInput:    pooltx.Party{Address: c.From, RuneName: c.Rune},
		BtcInput:     pooltx.Party{Address: c.From},
		BtcFeeInput:  pooltx.Party{Address: c.From},
		RuneOutput:   pooltx.Party{Address: c.To},
		RuneAmount:   amount,
		BtcOutput:    pooltx.Party{Address: c.From},
		BtcAmount:    big.NewInt(c.BtcAmountSat),
		FeeRateSatVB: big.NewInt(c.FeeRateSatVB),
	})
	if err != nil {
		return fmt.Errorf("build psbt: %w", err)
	}

	fmt.Printf("psbt: %s\n", hex.EncodeToString(raw))
	return nil
}
