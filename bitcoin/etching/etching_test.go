// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package etching_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/Cobra9786/power/bitcoin"
	"github.com/Cobra9786/power/bitcoin/etching"
	"github.com/Cobra9786/power/bitcoin/runes"
)

func TestBuildCommitAndReveal(t *testing.T) {
	params := &chaincfg.RegressionNetParams

	commitmentKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	rune_, err := runes.NewRuneFromString("AAAAAAAAAAAAD")
	require.NoError(t, err)

	divisibility := byte(0)
	spec := etching.Spec{
		Etching: runes.Etching{
			Divisibility: &divisibility,
			Premine:      big.NewInt(1_000_000),
			Rune:         rune_,
			Turbo:        true,
		},
		Destination: regtestAddress(t, params, 9),
	}

	funding := []bitcoin.UTXO{{
		TxHash: strings.Repeat("11", 32),
		Index:  0,
		Amount: big.NewInt(200_000),
	}}

	commit, err := etching.BuildCommit(etching.BuildCommitParams{
		Specs:           []etching.Spec{spec},
		FundingUTXOs:    funding,
		ChangeAddress:   regtestAddress(t, params, 1),
		CommitmentKey:   commitmentKey,
		FeeRateSatVByte: big.NewInt(5),
		ChainParams:     params,
	})
	require.NoError(t, err)
	require.Len(t, commit.Tx.TxOut, 2)
	require.EqualValues(t, etching.CommitValue, commit.Tx.TxOut[0].Value)
	require.Greater(t, commit.Tx.TxOut[1].Value, int64(0))
	require.Len(t, commit.Handles, 1)

	reveal, err := etching.BuildReveal(etching.BuildRevealParams{
		Handle:        commit.Handles[0],
		CommitTxHash:  commit.Tx.TxHash().String(),
		CommitmentKey: commitmentKey,
		ChainParams:   params,
	})
	require.NoError(t, err)
	require.Len(t, reveal.TxOut, 2)
	require.EqualValues(t, 0, reveal.TxOut[0].Value)
	require.EqualValues(t, etching.RunesOutValue, reveal.TxOut[1].Value)
	require.True(t, txscript.IsNullDataScript(reveal.TxOut[0].PkScript))
	require.Len(t, reveal.TxIn[0].Witness, 3)
}

func TestBuildCommitInsufficientFunds(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	commitmentKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	rune_, err := runes.NewRuneFromString("AAAAAAAAAAAAE")
	require.NoError(t, err)

	divisibility := byte(0)
	spec := etching.Spec{
		Etching: runes.Etching{
			Divisibility: &divisibility,
			Premine:      big.NewInt(1),
			Rune:         rune_,
		},
		Destination: regtestAddress(t, params, 2),
	}

	funding := []bitcoin.UTXO{{TxHash: strings.Repeat("22", 32), Index: 0, Amount: big.NewInt(1000)}}

	_, err = etching.BuildCommit(etching.BuildCommitParams{
		Specs:           []etching.Spec{spec},
		FundingUTXOs:    funding,
		ChangeAddress:   regtestAddress(t, params, 3),
		CommitmentKey:   commitmentKey,
		FeeRateSatVByte: big.NewInt(5),
		ChainParams:     params,
	})
	require.ErrorIs(t, err, etching.ErrInsufficientFunds)
}

func TestParseCSV(t *testing.T) {
	csvBody := "AAAAAAAAAAAAF,R,1000000\n"

	specs, err := etching.ParseCSV(strings.NewReader(csvBody), 0, "bcrt1qexampledest")
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.Equal(t, "AAAAAAAAAAAAF", specs[0].Etching.Rune.String())
	require.Equal(t, big.NewInt(1000000), specs[0].Etching.Premine)
	require.True(t, specs[0].Etching.Turbo)
}

func regtestAddress(t *testing.T, params *chaincfg.Params, seed byte) string {
	t.Helper()
	hash := [20]byte{}
	hash[0] = seed
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash[:], params)
	require.NoError(t, err)
	return addr.EncodeAddress()
}
