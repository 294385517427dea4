// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package memstore_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cobra9786/power/store"
	"github.com/Cobra9786/power/store/memstore"
)

func TestStoreRunesLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	r := store.Rune{
		RuneName:      "TESTRUNE",
		Block:         840000,
		TxIndex:       1,
		Premine:       big.NewInt(1000),
		Minted:        big.NewInt(1000),
		InCirculation: big.NewInt(1000),
		Burned:        big.NewInt(0),
	}
	require.NoError(t, s.InsertRune(ctx, r))
	require.ErrorIs(t, s.InsertRune(ctx, r), store.ErrAlreadyExists)

	got, err := s.GetRune(ctx, "TESTRUNE")
	require.NoError(t, err)
	require.Equal(t, r.Premine, got.Premine)

	byID, err := s.GetRuneByID(ctx, 840000, 1)
	require.NoError(t, err)
	require.Equal(t, "TESTRUNE", byID.RuneName)

	_, err = s.GetRune(ctx, "NOPE")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.UpdateRuneBurned(ctx, "TESTRUNE", big.NewInt(10), big.NewInt(990)))
	got, err = s.GetRune(ctx, "TESTRUNE")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10), got.Burned)
}

func TestStoreRuneUtxosAndBalances(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	u := store.RuneUtxo{
		TxHash: "abc", OutputIndex: 1, RuneName: "TESTRUNE",
		HolderAddress: "addr1", Amount: big.NewInt(500),
	}
	require.NoError(t, s.InsertRuneUtxo(ctx, u))
	require.NoError(t, s.UpsertRuneBalance(ctx, "addr1", "TESTRUNE", big.NewInt(500)))

	bal, err := s.GetRuneBalance(ctx, "addr1", "TESTRUNE")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), bal.Balance)

	utxos, err := s.SelectRuneUtxos(ctx, "TESTRUNE", "addr1", store.Pagination{})
	require.NoError(t, err)
	require.Len(t, utxos, 1)

	require.NoError(t, s.SpendRuneUtxo(ctx, "abc", 1, "TESTRUNE"))
	utxos, err = s.SelectRuneUtxos(ctx, "TESTRUNE", "addr1", store.Pagination{})
	require.NoError(t, err)
	require.Empty(t, utxos)
}

func TestStoreWithTxReconcile(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	pair := store.TradingPair{ID: 1, BaseRune: "TESTRUNE", BaseBalance: big.NewInt(100), QuoteBalanceSat: big.NewInt(1000)}
	require.NoError(t, s.UpdateTradingPair(ctx, pair))

	err := s.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetTradingPair(ctx, 1)
		if err != nil {
			return err
		}
		p.BaseBalance = new(big.Int).Add(p.BaseBalance, big.NewInt(50))
		return tx.UpdateTradingPair(ctx, p)
	})
	require.NoError(t, err)

	got, err := s.GetTradingPair(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(150), got.BaseBalance)
}

func TestPendingTxs(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	require.NoError(t, s.InsertSubmittedTx(ctx, store.SubmittedTx{TxHash: "t1", Status: store.TxStatusPending}))
	require.NoError(t, s.InsertSubmittedTx(ctx, store.SubmittedTx{TxHash: "t2", Status: store.TxStatusMined}))

	pending, err := s.SelectPendingTxs(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "t1", pending[0].TxHash)
}
