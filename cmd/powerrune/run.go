// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"github.com/Cobra9786/power/indexer/btc"
	"github.com/Cobra9786/power/indexer/runes"
	"github.com/Cobra9786/power/watchdog"
)

// RunCommand runs everything: both indexers and the tx watchdog, until
// interrupted. It is the parser's default command.
type RunCommand struct {
	opts *Options
}

// RunIndexersCommand runs only the two indexers, no watchdog and no HTTP
// surface.
type RunIndexersCommand struct {
	opts *Options
}

// RunAPICommand would run the HTTP boundary named in §6. Full
// routing/handlers are out of scope for this module (only the
// apierror mapping layer is implemented), so this subcommand exits
// after reporting that.
type RunAPICommand struct {
	opts *Options
}

func registerCommands(parser *flags.Parser, opts *Options) {
	mustAdd(parser, "run", "Run both indexers and the tx watchdog", "", &RunCommand{opts: opts})
	mustAdd(parser, "run-indexers", "Run the runes and BTC indexers only", "", &RunIndexersCommand{opts: opts})
	mustAdd(parser, "run-api", "Run the HTTP boundary only", "", &RunAPICommand{opts: opts})
	mustAdd(parser, "reset-db", "Drop and recreate the persistent store", "", &ResetDBCommand{opts: opts})
	mustAdd(parser, "warm-up-cache", "Rebuild the hot cache from the store", "", &WarmupCommand{opts: opts})
	mustAdd(parser, "generate-keypair", "Generate a secp256k1 keypair and its addresses", "", &GenerateKeypairCommand{})
	mustAdd(parser, "etch-runes", "Build a commit+reveal pair from a CSV of etchings", "", &EtchRunesCommand{opts: opts})
	mustAdd(parser, "send-btc", "Build an unsigned PSBT moving plain BTC", "", &SendBTCCommand{opts: opts})
	mustAdd(parser, "send-rune", "Build an unsigned PSBT moving a rune balance", "", &SendRuneCommand{opts: opts})
	mustAdd(parser, "sign-psbt", "Sign the pool-owned inputs of a PSBT with a local key", "", &SignPSBTCommand{opts: opts})
	mustAdd(parser, "submit-raw-tx", "Broadcast a raw signed transaction", "", &SubmitRawTxCommand{opts: opts})
}

func mustAdd(parser *flags.Parser, name, short, long string, data interface{}) {
	if _, err := parser.AddCommand(name, short, long, data); err != nil {
		panic(fmt.Sprintf("register command %q: %v", name, err))
	}
}

// cancelOnSignal returns a context cancelled on SIGINT/SIGTERM.
func cancelOnSignal() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}

// Execute runs the runes indexer, the BTC indexer and the watchdog
// concurrently until the process is interrupted.
func (c *RunCommand) Execute([]string) error {
	a, err := openApp(c.opts.ConfigPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := cancelOnSignal()
	defer cancel()

	runesIdx := runes.New(a.runesIndexerConfig(), a.chain, a.st, a.cch, a.logger("RNIX"))
	btcIdx := btc.New(a.btcIndexerConfig(), a.chain, a.st, a.logger("BTIX"))
	wd := watchdog.New(a.chain, a.st, a.logger("WDOG"))

	if err := btcIdx.Warmup(ctx); err != nil {
		return fmt.Errorf("warm up btc indexer: %w", err)
	}

	errCh := make(chan error, 3)
	go func() { errCh <- runesIdx.Run(ctx) }()
	go func() { errCh <- btcIdx.Run(ctx) }()
	go func() { errCh <- wd.Run(ctx) }()

	for i := 0; i < 3; i++ {
		if err := <-errCh; err != nil {
			cancel()
			return err
		}
	}

	return nil
}

// Execute runs just the two indexers, no watchdog.
func (c *RunIndexersCommand) Execute([]string) error {
	a, err := openApp(c.opts.ConfigPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := cancelOnSignal()
	defer cancel()

	runesIdx := runes.New(a.runesIndexerConfig(), a.chain, a.st, a.cch, a.logger("RNIX"))
	btcIdx := btc.New(a.btcIndexerConfig(), a.chain, a.st, a.logger("BTIX"))

	if err := btcIdx.Warmup(ctx); err != nil {
		return fmt.Errorf("warm up btc indexer: %w", err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- runesIdx.Run(ctx) }()
	go func() { errCh <- btcIdx.Run(ctx) }()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			cancel()
			return err
		}
	}

	return nil
}

// Execute reports that the HTTP surface is out of scope: §6 names only
// an apierror mapping layer, not routing/handlers, so there is nothing
// to serve.
func (c *RunAPICommand) Execute([]string) error {
	a, err := openApp(c.opts.ConfigPath)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger("HTTP").Warnf("run-api: no HTTP routing/handlers are wired in this build; only apierror's error-taxonomy mapping exists")
	return nil
}

