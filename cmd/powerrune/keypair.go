// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// GenerateKeypairCommand generates a fresh secp256k1 keypair and prints
// its private key alongside the P2WPKH and key-path-only taproot
// addresses derived from it, on the named network.
type GenerateKeypairCommand struct {
	Network string `long:"network" description:"mainnet, testnet, signet or regtest" default:"mainnet"`
}

func (c *GenerateKeypairCommand) Execute([]string) error {
	params, err := networkParams(c.Network)
	if err != nil {
		return err
	}

	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	wif, err := btcutil.NewWIF(priv, params, true)
	if err != nil {
		return fmt.Errorf("encode wif: %w", err)
	}

	segwit, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(priv.PubKey().SerializeCompressed()), params)
	if err != nil {
		return fmt.Errorf("derive p2wpkh address: %w", err)
	}

	outputKey := txscript.ComputeTaprootKeyNoScript(priv.PubKey())
	taproot, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), params)
	if err != nil {
		return fmt.Errorf("derive taproot address: %w", err)
	}

	fmt.Printf("network:         %s\n", c.Network)
	fmt.Printf("private key wif: %s\n", wif.String())
	fmt.Printf("private key hex: %s\n", hex.EncodeToString(priv.Serialize()))
	fmt.Printf("public key hex:  %s\n", hex.EncodeToString(priv.PubKey().SerializeCompressed()))
	fmt.Printf("p2wpkh address:  %s\n", segwit.EncodeAddress())
	fmt.Printf("taproot address: %s\n", taproot.EncodeAddress())

	return nil
}
