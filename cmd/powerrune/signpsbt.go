// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/Cobra9786/power/bitcoin/signer"
)

// SignPSBTCommand signs the pool-owned inputs of a PSBT produced by
// send-rune or send-btc with the operator's local key, leaving every
// other input untouched for the counterparty to sign out of band
// (§4.3's "signable" split). It is the server-side half of a PSBT's
// signing that the pool transaction builder itself deliberately leaves
// out of scope.
type SignPSBTCommand struct {
	opts *Options

	PSBTHex       string `long:"psbt" required:"true" description:"hex-encoded PSBT"`
	Inputs        []int  `long:"input" required:"true" description:"input index to sign; repeat for multiple inputs"`
	PrivateKeyHex string `long:"private-key" required:"true" description:"hex-encoded secp256k1 private key owning the given inputs"`
}

func (c *SignPSBTCommand) Execute([]string) error {
	a, err := openApp(c.opts.ConfigPath)
	if err != nil {
		return err
	}
	defer a.close()

	raw, err := hex.DecodeString(c.PSBTHex)
	if err != nil {
		return fmt.Errorf("decode psbt: %w", err)
	}

	keyBytes, err := hex.DecodeString(c.PrivateKeyHex)
	if err != nil {
		return fmt.Errorf("decode private key: %w", err)
	}

	signed, err := signer.NewSigner(a.chainParams).SignTaproot(signer.SignTaprootParams{
		SerializedPSBT: raw,
		Inputs:         c.Inputs,
		PrivateKey:     secpPrivKey(keyBytes),
	})
	if err != nil {
		return fmt.Errorf("sign psbt: %w", err)
	}

	fmt.Printf("psbt: %s\n", hex.EncodeToString(signed))
	return nil
}
