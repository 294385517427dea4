// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package btc_test

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	indexer "github.com/Cobra9786/power/indexer/btc"
	"github.com/Cobra9786/power/store"
	"github.com/Cobra9786/power/store/memstore"
)

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

func (f *fakeChain) BestHeight() (int64, error)                       { return f.tip, nil }
func (f *fakeChain) BlockHash(height int64) (*chainhash.Hash, error)   { return f.hashes[height], nil }
func (f *fakeChain) Block(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	return f.blocks[*hash], nil
}
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

func TestIndexBlockTracksWatchedAddress(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	watchedScript, watchedAddr := p2wpkhScript(t, 1)
	_, otherAddr := p2wpkhScript(t, 2)

	fundingTx := wire.NewMsgTx(wire.TxVersion)
	fundingTx.AddTxOut(&wire.TxOut{Value: 50_000, PkScript: watchedScript})

	block := &wire.MsgBlock{Transactions: []*wire.MsgTx{coinbaseTx(), fundingTx}}

	ch := newFakeChain()
	ch.addBlock(900000, block)

	idx := indexer.New(indexer.Config{
		StartHeight: 899999,
		Watchlist:   []string{watchedAddr, otherAddr},
		ChainParams: &chaincfg.RegressionNetParams,
	}, ch, st, btclog.Disabled)

	require.NoError(t, idx.Warmup(ctx))
	require.NoError(t, idx.IndexBlock(ctx, 900000))

	bal, err := st.GetBtcBalance(ctx, watchedAddr)
	require.NoError(t, err)
	require.EqualValues(t, 50_000, bal.BalanceSat)

	utxos, err := st.SelectBtcUtxos(ctx, watchedAddr, store.Pagination{Order: store.OrderAsc, Limit: 10, Page: 0})
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.EqualValues(t, 50_000, utxos[0].SatAmount)

	cursor, err := st.GetCursor(ctx, indexer.IndexerID)
	require.NoError(t, err)
	require.EqualValues(t, 900000, cursor.LastBlock)
}

func TestIndexBlockSpendsWatchedUtxo(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	watchedScript, watchedAddr := p2wpkhScript(t, 3)
	_, recipientAddr := p2wpkhScript(t, 4)

	const prevTxHash = "cc11bb22cc33dd44ee55ff66aa11bb22cc33dd44ee55ff66aa11bb22cc33dd44"
	require.NoError(t, st.InsertBtcUtxo(ctx, store.BtcUtxo{
		TxHash:        prevTxHash,
		OutputIndex:   0,
		HolderAddress: watchedAddr,
		OutputScript:  hex.EncodeToString(watchedScript),
		SatAmount:     30_000,
	}))
	require.NoError(t, st.UpsertBtcBalance(ctx, watchedAddr, 30_000))

	prevHash, err := chainhash.NewHashFromStr(prevTxHash)
	require.NoError(t, err)

	spendTx := wire.NewMsgTx(wire.TxVersion)
	spendTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: *prevHash, Index: 0}})
	spendTx.AddTxOut(&wire.TxOut{Value: 30_000, PkScript: p2wpkhScriptFor(t, recipientAddr)})

	block := &wire.MsgBlock{Transactions: []*wire.MsgTx{coinbaseTx(), spendTx}}

	ch := newFakeChain()
	ch.addBlock(900100, block)

	idx := indexer.New(indexer.Config{
		StartHeight: 900099,
		Watchlist:   []string{watchedAddr},
		ChainParams: &chaincfg.RegressionNetParams,
	}, ch, st, btclog.Disabled)

	require.NoError(t, idx.Warmup(ctx))
	require.NoError(t, idx.IndexBlock(ctx, 900100))

	bal, err := st.GetBtcBalance(ctx, watchedAddr)
	require.NoError(t, err)
	require.Zero(t, bal.BalanceSat)

	u, err := st.GetBtcUtxo(ctx, prevTxHash, 0)
	require.NoError(t, err)
	require.True(t, u.Spent)
}

func p2wpkhScriptFor(t *testing.T, addr string) []byte {
	t.Helper()
	decoded, err := btcutil.DecodeAddress(addr, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(decoded)
	require.NoError(t, err)
	return script
}
