// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateSendFee(t *testing.T) {
	fee := estimateSendFee(1, 2, 10)
	require.Equal(t, int64(11+68+31*2)*10*2, fee)

	// more inputs, same rate, costs more
	require.Greater(t, estimateSendFee(2, 2, 10), fee)

	// higher fee rate, same shape, costs more
	require.Greater(t, estimateSendFee(1, 2, 20), fee)
}
