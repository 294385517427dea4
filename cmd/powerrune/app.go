// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Command powerrune is the service's entry point: one go-flags parser
// dispatching to the subcommands of §6 (run, reset-db, warm-up-cache,
// generate-keypair, etch-runes, send-btc, send-rune, submit-raw-tx),
// each a thin Execute() wrapper around the core components.
package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"

	"github.com/Cobra9786/power/cache"
	"github.com/Cobra9786/power/cache/lrucache"
	"github.com/Cobra9786/power/chain"
	"github.com/Cobra9786/power/config"
	"github.com/Cobra9786/power/indexer/btc"
	"github.com/Cobra9786/power/indexer/runes"
	"github.com/Cobra9786/power/logging"
	"github.com/Cobra9786/power/store"
	"github.com/Cobra9786/power/store/leveldbstore"
)

// app bundles the wiring every subcommand needs: config, chain adapter,
// store, cache and a logging backend, all built from the shared
// --config flag.
type app struct {
	cfg         config.Config
	chainParams *chaincfg.Params
	chain       chain.Chain
	st          store.Store
	closeStore  func() error
	cch         cache.Cache
	logBackend  *logging.Backend
}

// networkParams resolves the config document's network name to the
// matching chaincfg.Params, the way bitcoind's own -chain flag does.
func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

// openApp reads the config document at path and wires up its chain,
// store, cache and logging backend. Callers must call close when done.
func openApp(path string) (*app, error) {
	cfg, err := config.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	params, err := networkParams(cfg.Chain.Network)
	if err != nil {
		return nil, err
	}

	ch, err := chain.Dial(chain.Config{
		Host:     cfg.Chain.Host,
		User:     cfg.Chain.RPCUser,
		Password: cfg.Chain.RPCPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("dial chain: %w", err)
	}

	st, err := leveldbstore.Open(cfg.Store.DSN)
	if err != nil {
		ch.Shutdown()
		return nil, fmt.Errorf("open store: %w", err)
	}

	cch := lrucache.New(0)

	backend := logging.NewDiscard()
	if logPath := os.Getenv("POWERRUNE_LOG_PATH"); logPath != "" {
		b, err := logging.New(logPath, 1<<24, 5)
		if err != nil {
			st.Close()
			ch.Shutdown()
			return nil, fmt.Errorf("open log: %w", err)
		}
		backend = b
	}

	return &app{
		cfg:         cfg,
		chainParams: params,
		chain:       ch,
		st:          st,
		closeStore:  st.Close,
		cch:         cch,
		logBackend:  backend,
	}, nil
}

func (a *app) logger(subsystem string) btclog.Logger {
	return a.logBackend.Logger(subsystem, btclog.LevelInfo)
}

func (a *app) runesIndexerConfig() runes.Config {
	return runes.Config{
		StartHeight:    a.cfg.Indexers.RunesStartingHeight,
		Watchlist:      a.cfg.Indexers.RunesWatchlist,
		HandleEdicts:   a.cfg.Indexers.HandleEdicts,
		DisableRuneLog: a.cfg.Indexers.DisableRuneLog,
		ChainParams:    a.chainParams,
	}
}

func (a *app) btcIndexerConfig() btc.Config {
	return btc.Config{
		StartHeight: a.cfg.Indexers.BtcStartingHeight,
		Watchlist:   a.cfg.Indexers.BtcWatchlist,
		ChainParams: a.chainParams,
	}
}

func (a *app) close() {
	a.chain.Shutdown()
	a.logBackend.Close()
	if a.closeStore != nil {
		a.closeStore()
	}
}

// Options is the top-level flag group shared by every subcommand.
type Options struct {
	ConfigPath string `short:"c" long:"config" description:"path to the YAML configuration document" default:"./power.yaml"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true

	registerCommands(parser, &opts)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// No subcommand named: "run" (both indexers plus the watchdog) is
	// the default, per §6.
	if parser.Active == nil {
		if err := (&RunCommand{opts: &opts}).Execute(nil); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
