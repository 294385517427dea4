// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"

	"github.com/Cobra9786/power/indexer/btc"
	"github.com/Cobra9786/power/indexer/runes"
)

// WarmupCommand rebuilds both indexers' in-process state from the
// store: the rune indexer's rune, rune-id and balance cache entries and
// the BTC indexer's balance map, without replaying any blocks.
type WarmupCommand struct {
	opts *Options
}

func (c *WarmupCommand) Execute([]string) error {
	a, err := openApp(c.opts.ConfigPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	runesIdx := runes.New(a.runesIndexerConfig(), a.chain, a.st, a.cch, a.logger("RNIX"))
	if err := runesIdx.Warmup(ctx); err != nil {
		return fmt.Errorf("warm up rune indexer: %w", err)
	}

	btcIdx := btc.New(a.btcIndexerConfig(), a.chain, a.st, a.logger("BTIX"))
	if err := btcIdx.Warmup(ctx); err != nil {
		return fmt.Errorf("warm up btc indexer: %w", err)
	}

	return nil
}
