// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestNetworkParams(t *testing.T) {
	tests := []struct {
		name    string
		network string
		want    *chaincfg.Params
	}{
		{"empty defaults to mainnet", "", &chaincfg.MainNetParams},
		{"mainnet", "mainnet", &chaincfg.MainNetParams},
		{"testnet", "testnet", &chaincfg.TestNet3Params},
		{"testnet3", "testnet3", &chaincfg.TestNet3Params},
		{"signet", "signet", &chaincfg.SigNetParams},
		{"regtest", "regtest", &chaincfg.RegressionNetParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := networkParams(tt.network)
			require.NoError(t, err)
			require.Same(t, tt.want, got)
		})
	}
}

func TestNetworkParamsUnknown(t *testing.T) {
	_, err := networkParams("liquid")
	require.Error(t, err)
}
