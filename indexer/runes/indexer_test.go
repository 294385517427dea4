// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/Cobra9786/power/bitcoin/runes"
	"github.com/Cobra9786/power/cache/lrucache"
	indexer "github.com/Cobra9786/power/indexer/runes"
	"github.com/Cobra9786/power/store"
	"github.com/Cobra9786/power/store/memstore"
)

// fakeChain is a minimal chain.Chain double backed by an in-memory block
// map, enough to exercise IndexBlock without a real node.
type fakeChain struct {
	tip    int64
	hashes map[int64]*chainhash.Hash
	blocks map[chainhash.Hash]*wire.MsgBlock
}

func newFakeChain() *fakeChain {
	return &fakeChain{hashes: make(map[int64]*chainhash.Hash), blocks: make(map[chainhash.Hash]*wire.MsgBlock)}
}

func (f *fakeChain) addBlock(height int64, block *wire.MsgBlock) {
	hash := chainhash.HashH([]byte{byte(height)})
	f.hashes[height] = &hash
	f.blocks[hash] = block
	if height > f.tip {
		f.tip = height
	}
}

func (f *fakeChain) BestHeight() (int64, error) { return f.tip, nil }

func (f *fakeChain) BlockHash(height int64) (*chainhash.Hash, error) { return f.hashes[height], nil }

func (f *fakeChain) Block(hash *chainhash.Hash) (*wire.MsgBlock, error) { return f.blocks[*hash], nil }

func (f *fakeChain) RawTransactionInfo(*chainhash.Hash) (*btcjson.TxRawResult, error) {
	return nil, errNotImplemented
}

func (f *fakeChain) BlockHeaderInfo(*chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error) {
	return nil, errNotImplemented
}

func (f *fakeChain) SendRawTransaction(*wire.MsgTx) (*chainhash.Hash, error) {
	return nil, errNotImplemented
}

func (f *fakeChain) Shutdown() {}

var errNotImplemented = &notImplementedError{}

type notImplementedError struct{}

func (*notImplementedError) Error() string { return "not implemented in fakeChain" }

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

func coinbaseTx() *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex}})
	return tx
}

func TestIndexBlockAppliesEdict(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	cch := lrucache.New(0)

	rune_, err := runes.NewRuneFromString("AAAAAAAAAAAAB")
	require.NoError(t, err)

	require.NoError(t, st.InsertRune(ctx, store.Rune{
		RuneName:      rune_.String(),
		Block:         800000,
		TxIndex:       5,
		Premine:       big.NewInt(0),
		Minted:        big.NewInt(1000),
		Burned:        big.NewInt(0),
		InCirculation: big.NewInt(1000),
		Divisibility:  0,
		MaxSupply:     big.NewInt(1000),
	}))

	_, senderAddr := p2wpkhScript(t, 1)
	recipientScript, recipientAddr := p2wpkhScript(t, 2)

	const prevTxHash = "aa11bb22cc33dd44ee55ff66aa11bb22cc33dd44ee55ff66aa11bb22cc33dd44"
	require.NoError(t, st.InsertRuneUtxo(ctx, store.RuneUtxo{
		TxHash:        prevTxHash,
		OutputIndex:   0,
		RuneName:      rune_.String(),
		HolderAddress: senderAddr,
		OutputScript:  "",
		Amount:        big.NewInt(1000),
		Spent:         false,
	}))
	require.NoError(t, st.UpsertRuneBalance(ctx, senderAddr, rune_.String(), big.NewInt(1000)))

	runestone := &runes.Runestone{
		Edicts: []runes.Edict{{
			RuneID: runes.RuneID{Block: 800000, TxID: 5},
			Amount: big.NewInt(1000),
			Output: 0,
		}},
	}
	runestoneScript, err := runestone.IntoScript()
	require.NoError(t, err)

	prevHash, err := chainhash.NewHashFromStr(prevTxHash)
	require.NoError(t, err)

	transferTx := wire.NewMsgTx(wire.TxVersion)
	transferTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: *prevHash, Index: 0}})
	transferTx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: recipientScript})
	transferTx.AddTxOut(&wire.TxOut{Value: 0, PkScript: runestoneScript})

	block := &wire.MsgBlock{Transactions: []*wire.MsgTx{coinbaseTx(), transferTx}}

	ch := newFakeChain()
	ch.addBlock(800100, block)

	idx := indexer.New(indexer.Config{
		StartHeight:  800099,
		HandleEdicts: true,
		ChainParams:  &chaincfg.RegressionNetParams,
	}, ch, st, cch, btclog.Disabled)

	stats, err := idx.IndexBlock(ctx, 800100)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Edicts)
	require.Zero(t, stats.BurnedTxs)

	utxos, err := st.SelectRuneUtxos(ctx, rune_.String(), recipientAddr, store.Pagination{Order: store.OrderAsc, Limit: 10, Page: 0})
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.Equal(t, big.NewInt(1000), utxos[0].Amount)

	recipientBalance, err := st.GetRuneBalance(ctx, recipientAddr, rune_.String())
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), recipientBalance.Balance)

	senderBalance, err := st.GetRuneBalance(ctx, senderAddr, rune_.String())
	require.NoError(t, err)
	require.Zero(t, senderBalance.Balance.Sign())

	cursor, err := st.GetCursor(ctx, indexer.IndexerID)
	require.NoError(t, err)
	require.EqualValues(t, 800100, cursor.LastBlock)
}

func TestIndexBlockBurnsUnspendableInputs(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	cch := lrucache.New(0)

	rune_, err := runes.NewRuneFromString("AAAAAAAAAAAAC")
	require.NoError(t, err)

	require.NoError(t, st.InsertRune(ctx, store.Rune{
		RuneName:      rune_.String(),
		Block:         800000,
		TxIndex:       7,
		Premine:       big.NewInt(0),
		Minted:        big.NewInt(500),
		Burned:        big.NewInt(0),
		InCirculation: big.NewInt(500),
	}))

	_, senderAddr := p2wpkhScript(t, 3)
	recipientScript, _ := p2wpkhScript(t, 4)

	const prevTxHash = "bb11bb22cc33dd44ee55ff66aa11bb22cc33dd44ee55ff66aa11bb22cc33dd44"
	require.NoError(t, st.InsertRuneUtxo(ctx, store.RuneUtxo{
		TxHash:        prevTxHash,
		OutputIndex:   0,
		RuneName:      rune_.String(),
		HolderAddress: senderAddr,
		Amount:        big.NewInt(500),
		Spent:         false,
	}))
	require.NoError(t, st.UpsertRuneBalance(ctx, senderAddr, rune_.String(), big.NewInt(500)))

	prevHash, err := chainhash.NewHashFromStr(prevTxHash)
	require.NoError(t, err)

	plainTx := wire.NewMsgTx(wire.TxVersion)
	plainTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: *prevHash, Index: 0}})
	plainTx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: recipientScript})

	block := &wire.MsgBlock{Transactions: []*wire.MsgTx{coinbaseTx(), plainTx}}

	ch := newFakeChain()
	ch.addBlock(800200, block)

	idx := indexer.New(indexer.Config{
		StartHeight: 800199,
		ChainParams: &chaincfg.RegressionNetParams,
	}, ch, st, cch, btclog.Disabled)

	stats, err := idx.IndexBlock(ctx, 800200)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.BurnedTxs)

	r, err := st.GetRune(ctx, rune_.String())
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), r.Burned)
	require.Zero(t, r.InCirculation.Sign())
}

func TestWarmupPopulatesCache(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	cch := lrucache.New(0)

	require.NoError(t, st.InsertRune(ctx, store.Rune{
		RuneName:      "WARMED",
		Block:         1,
		TxIndex:       0,
		Premine:       big.NewInt(10),
		Minted:        big.NewInt(10),
		Burned:        big.NewInt(0),
		InCirculation: big.NewInt(10),
	}))
	require.NoError(t, st.InsertRuneUtxo(ctx, store.RuneUtxo{
		TxHash:        "deadbeef",
		OutputIndex:   0,
		RuneName:      "WARMED",
		HolderAddress: "addr1",
		Amount:        big.NewInt(10),
	}))
	require.NoError(t, st.UpsertRuneBalance(ctx, "addr1", "WARMED", big.NewInt(10)))

	idx := indexer.New(indexer.Config{ChainParams: &chaincfg.RegressionNetParams}, newFakeChain(), st, cch, btclog.Disabled)
	require.NoError(t, idx.Warmup(ctx))

	r, ok := cch.GetRune("WARMED")
	require.True(t, ok)
	require.Equal(t, big.NewInt(10), r.Minted)

	bal, ok := cch.GetBalance("addr1", "WARMED")
	require.True(t, ok)
	require.Equal(t, big.NewInt(10), bal)
}
