// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package pooltx_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/Cobra9786/power/bitcoin/pooltx"
	"github.com/Cobra9786/power/cache/lrucache"
	"github.com/Cobra9786/power/store"
	"github.com/Cobra9786/power/store/memstore"
)

func p2wpkhScript(t *testing.T, seed byte) ([]byte, string) {
	t.Helper()

	hash := [20]byte{}
	hash[0] = seed
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash[:], &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return script, addr.EncodeAddress()
}

func TestBuildSwapPSBT(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	cch := lrucache.New(0)

	runeScript, runeAddr := p2wpkhScript(t, 1)
	_, recipientAddr := p2wpkhScript(t, 2)
	btcScript, btcAddr := p2wpkhScript(t, 3)

	require.NoError(t, st.InsertRune(ctx, store.Rune{
		RuneName: "POOLRUNE",
		Block:    800000,
		TxIndex:  3,
	}))

	require.NoError(t, st.InsertRuneUtxo(ctx, store.RuneUtxo{
		TxHash:        "dd11bb22cc33dd44ee55ff66aa11bb22cc33dd44ee55ff66aa11bb22cc33dd44",
		OutputIndex:   0,
		RuneName:      "POOLRUNE",
		HolderAddress: runeAddr,
		OutputScript:  hex.EncodeToString(runeScript),
		Amount:        big.NewInt(10_000),
		BtcSatAmount:  600,
	}))

	require.NoError(t, st.InsertBtcUtxo(ctx, store.BtcUtxo{
		TxHash:        "ee11bb22cc33dd44ee55ff66aa11bb22cc33dd44ee55ff66aa11bb22cc33dd44",
		OutputIndex:   0,
		HolderAddress: btcAddr,
		OutputScript:  hex.EncodeToString(btcScript),
		SatAmount:     100_000,
	}))

	b := pooltx.New(st, cch, &chaincfg.RegressionNetParams)

	raw, err := b.Build(ctx, pooltx.TxParams{
		RuneInput:    pooltx.Party{Address: runeAddr, RuneName: "POOLRUNE"},
		BtcInput:     pooltx.Party{Address: btcAddr},
		BtcFeeInput:  pooltx.Party{Address: btcAddr},
		RuneOutput:   pooltx.Party{Address: recipientAddr},
		RuneAmount:   big.NewInt(5_000),
		BtcOutput:    pooltx.Party{Address: runeAddr},
		BtcAmount:    big.NewInt(50_000),
		FeeRateSatVB: big.NewInt(5),
	})
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	packet, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	require.NoError(t, err)

	require.True(t, txscript.IsNullDataScript(packet.UnsignedTx.TxOut[0].PkScript))
	require.Len(t, packet.UnsignedTx.TxIn, 2) // one rune input + one combined btc input.
	require.GreaterOrEqual(t, len(packet.UnsignedTx.TxOut), 3)
}

func TestBuildInsufficientRuneFunds(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	cch := lrucache.New(0)

	runeScript, runeAddr := p2wpkhScript(t, 4)
	_, recipientAddr := p2wpkhScript(t, 5)
	_, btcAddr := p2wpkhScript(t, 6)

	require.NoError(t, st.InsertRune(ctx, store.Rune{RuneName: "SMALLRUNE", Block: 1, TxIndex: 1}))
	require.NoError(t, st.InsertRuneUtxo(ctx, store.RuneUtxo{
		TxHash:        "ff11bb22cc33dd44ee55ff66aa11bb22cc33dd44ee55ff66aa11bb22cc33dd44",
		OutputIndex:   0,
		RuneName:      "SMALLRUNE",
		HolderAddress: runeAddr,
		OutputScript:  hex.EncodeToString(runeScript),
		Amount:        big.NewInt(10),
	}))

	b := pooltx.New(st, cch, &chaincfg.RegressionNetParams)
	_, err := b.Build(ctx, pooltx.TxParams{
		RuneInput:    pooltx.Party{Address: runeAddr, RuneName: "SMALLRUNE"},
		BtcInput:     pooltx.Party{Address: btcAddr},
		BtcFeeInput:  pooltx.Party{Address: btcAddr},
		RuneOutput:   pooltx.Party{Address: recipientAddr},
		RuneAmount:   big.NewInt(5_000),
		BtcOutput:    pooltx.Party{Address: runeAddr},
		BtcAmount:    big.NewInt(50_000),
		FeeRateSatVB: big.NewInt(5),
	})
	require.ErrorIs(t, err, pooltx.ErrInsufficientFunds)
}
