// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package leveldbstore_test

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cobra9786/power/store"
	"github.com/Cobra9786/power/store/leveldbstore"
)

func openTestStore(t *testing.T) *leveldbstore.Store {
	t.Helper()
	s, err := leveldbstore.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestRuneRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	r := store.Rune{
		RuneName:      "TESTRUNE",
		Block:         840000,
		TxIndex:       1,
		Minted:        big.NewInt(1000),
		InCirculation: big.NewInt(1000),
		RawRunestone:  []byte{0x6a, 0x5d, 0x02, 0x01, 0x02},
	}
	require.NoError(t, s.InsertRune(ctx, r))
	require.ErrorIs(t, s.InsertRune(ctx, r), store.ErrAlreadyExists)

	got, err := s.GetRune(ctx, "TESTRUNE")
	require.NoError(t, err)
	require.Equal(t, r.RawRunestone, got.RawRunestone)

	byID, err := s.GetRuneByID(ctx, 840000, 1)
	require.NoError(t, err)
	require.Equal(t, "TESTRUNE", byID.RuneName)
}

func TestWithTxAbortsOnError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpdateTradingPair(ctx, store.TradingPair{ID: 1, BaseBalance: big.NewInt(100)}))

	err := s.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetTradingPair(ctx, 1)
		require.NoError(t, err)
		p.BaseBalance = big.NewInt(999)
		require.NoError(t, tx.UpdateTradingPair(ctx, p))
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	got, err := s.GetTradingPair(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), got.BaseBalance)
}

func TestPendingTxs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.InsertSubmittedTx(ctx, store.SubmittedTx{TxHash: "t1", Status: store.TxStatusPending}))
	require.NoError(t, s.InsertSubmittedTx(ctx, store.SubmittedTx{TxHash: "t2", Status: store.TxStatusMined}))

	pending, err := s.SelectPendingTxs(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "t1", pending[0].TxHash)
}
