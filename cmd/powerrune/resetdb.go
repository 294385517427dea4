// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"

	"github.com/Cobra9786/power/config"
	"github.com/Cobra9786/power/store/leveldbstore"
)

// ResetDBCommand drops the persistent store and recreates it empty.
// Cursors, rune/BTC state, trading pairs and submitted txs are all
// lost; the operator is expected to re-run warm-up-cache and let the
// indexers replay from their configured starting heights afterward.
type ResetDBCommand struct {
	opts *Options

	Confirm bool `long:"yes" description:"skip the confirmation prompt"`
}

func (c *ResetDBCommand) Execute([]string) error {
	cfg, err := config.Read(c.opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if !c.Confirm {
		return fmt.Errorf("reset-db: refusing to drop %s without --yes", cfg.Store.DSN)
	}

	if err := os.RemoveAll(cfg.Store.DSN); err != nil {
		return fmt.Errorf("remove store at %s: %w", cfg.Store.DSN, err)
	}

	st, err := leveldbstore.Open(cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("recreate store at %s: %w", cfg.Store.DSN, err)
	}

	return st.Close()
}
