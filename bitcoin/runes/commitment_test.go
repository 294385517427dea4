// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cobra9786/power/bitcoin/runes"
)

func TestCommitment(t *testing.T) {
	t.Run("zero value trims to empty", func(t *testing.T) {
		rune_, err := runes.NewRuneFromNumber(big.NewInt(0))
		require.NoError(t, err)
		require.Empty(t, rune_.Commitment())
	})

	t.Run("trailing zero bytes trimmed", func(t *testing.T) {
		rune_, err := runes.NewRuneFromNumber(big.NewInt(1))
		require.NoError(t, err)
		require.Equal(t, []byte{1}, rune_.Commitment())
	})

	t.Run("multi-byte value little-endian", func(t *testing.T) {
		rune_, err := runes.NewRuneFromNumber(big.NewInt(0x0102))
		require.NoError(t, err)
		require.Equal(t, []byte{0x02, 0x01}, rune_.Commitment())
	})
}
