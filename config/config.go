// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package config unmarshals the service's YAML configuration document:
// API listen/CORS, chain RPC, store DSN + automigrate flag, cache
// endpoint, indexer starts & watchlists, the local signer, and the UTXO
// provider mode.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Chain     ChainConfig     `yaml:"chain"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Indexers  IndexersConfig  `yaml:"indexers"`
	Signer    SignerConfig    `yaml:"signature_provider"`
}

// APIConfig describes the HTTP boundary's listen address and CORS policy.
type APIConfig struct {
	ListenAddress string `yaml:"listen_address"`
	Port          int    `yaml:"port"`
	CORSDomain    string `yaml:"cors_domain"`
}

// ChainConfig describes the node RPC endpoint consumed by chain.Dial.
type ChainConfig struct {
	Network      string          `yaml:"network"`
	Host         string          `yaml:"address"`
	RPCUser      string          `yaml:"rpc_user"`
	RPCPassword  string          `yaml:"rpc_password"`
	UTXOProvider UTXOProvider    `yaml:"utxo_provider"`
}

// UTXOProvider selects between the built-in local UTXO selection (the
// only mode this module implements) and a named external provider.
type UTXOProvider struct {
	Mode   string `yaml:"mode"`
	APIKey string `yaml:"api_key"`
}

// StoreConfig describes the persistent store's DSN. cmd/powerrune opens
// the DSN with leveldbstore as a filesystem path; no other store scheme
// is recognised, and a DSN of another form is not rejected.
type StoreConfig struct {
	DSN         string `yaml:"dsn"`
	Automigrate bool   `yaml:"automigrate"`
}

// CacheConfig describes the key-value cache endpoint. An empty Address
// selects the in-process LRU default.
type CacheConfig struct {
	Address string `yaml:"address"`
}

// IndexersConfig describes the two indexers' starting heights and
// watchlists.
type IndexersConfig struct {
	BtcStartingHeight   int64    `yaml:"btc_starting_height"`
	RunesStartingHeight int64    `yaml:"runes_starting_height"`
	HandleEdicts        bool     `yaml:"handle_edicts"`
	DisableRuneLog      bool     `yaml:"disable_rune_log"`
	BtcWatchlist        []string `yaml:"btc_watchlist"`
	RunesWatchlist      []string `yaml:"runes_watchlist"`
}

// SignerConfig wraps the local signing key configuration.
type SignerConfig struct {
	Local LocalSigner `yaml:"local"`
}

// LocalSigner is the only signature-provider mode implemented here.
type LocalSigner struct {
	Address   string `yaml:"address"`
	SecretKey string `yaml:"secret_key"`
	Mode      string `yaml:"mode"`
}

// Read loads and parses the YAML document at path.
func Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}
