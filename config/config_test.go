// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cobra9786/power/config"
)

const sampleYAML = `
api:
  listen_address: "0.0.0.0"
  port: 8080
  cors_domain: "*"
chain:
  network: "mainnet"
  address: "127.0.0.1:8332"
  rpc_user: "user"
  rpc_password: "pass"
  utxo_provider:
    mode: "local"
    api_key: ""
store:
  dsn: "./data/power.db"
  automigrate: true
cache:
  address: ""
indexers:
  btc_starting_height: 800000
  runes_starting_height: 840000
  handle_edicts: true
  disable_rune_log: false
  btc_watchlist: ["bc1qexample"]
  runes_watchlist: ["UNCOMMON•GOODS"]
signature_provider:
  local:
    address: "bc1qsigner"
    secret_key: "deadbeef"
    mode: "taproot"
`

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := config.Read(path)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.API.Port)
	require.Equal(t, "127.0.0.1:8332", cfg.Chain.Host)
	require.True(t, cfg.Store.Automigrate)
	require.Equal(t, int64(840000), cfg.Indexers.RunesStartingHeight)
	require.Equal(t, []string{"UNCOMMON•GOODS"}, cfg.Indexers.RunesWatchlist)
	require.Equal(t, "taproot", cfg.Signer.Local.Mode)
}

func TestReadMissingFile(t *testing.T) {
	_, err := config.Read(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
