// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package watchdog polls submitted-but-unconfirmed transactions and
// either reconciles their trading-pair/liquidity effects on confirmation
// or fails them out after a timeout.
package watchdog

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Cobra9786/power/chain"
	"github.com/Cobra9786/power/store"
)

// tickInterval is how often the watchdog scans pending submitted txs.
const tickInterval = 30 * time.Second

// confirmationThreshold is the number of confirmations a pending tx
// needs before its trading-pair delta is applied.
const confirmationThreshold = uint64(2)

// failAfter is how long a tx may stay unreachable via the chain adapter
// before it is given up on. A reachable tx with too few confirmations is
// left pending however old it is.
const failAfter = time.Hour

// Watchdog is the periodic reconciler described as core D.
type Watchdog struct {
	chain chain.Chain
	st    store.Store
	log   btclog.Logger

	now func() time.Time
}

// New builds a Watchdog. Call Run to start its ticking loop.
func New(ch chain.Chain, st store.Store, log btclog.Logger) *Watchdog {
	return &Watchdog{
		chain: ch,
		st:    st,
		log:   log,
		now:   time.Now,
	}
}

// Run ticks every 30s until ctx is cancelled, scanning pending submitted
// transactions on each tick.
func (w *Watchdog) Run(ctx context.Context) error {
	for {
		w.Tick(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(tickInterval):
		}
	}
}

// Tick runs one scan of every pending submitted transaction. Errors
// reading the pending set are logged and the tick is abandoned; a
// failure processing one tx never blocks the others.
func (w *Watchdog) Tick(ctx context.Context) {
	pending, err := w.st.SelectPendingTxs(ctx)
	if err != nil {
		w.log.Errorf("select pending txs: %v", err)
		return
	}

	for _, tx := range pending {
		w.processOne(ctx, tx)
	}
}

func (w *Watchdog) processOne(ctx context.Context, tx store.SubmittedTx) {
	txid, err := chainhash.NewHashFromStr(tx.TxHash)
	if err != nil {
		w.log.Errorf("invalid tx hash %q: %v", tx.TxHash, err)
		return
	}

	info, err := w.chain.RawTransactionInfo(txid)
	if err != nil {
		if w.now().Sub(tx.CreatedAt) >= failAfter {
			w.log.Errorf("tx %s unreachable past timeout, failing: %v", tx.TxHash, err)
			if ferr := w.failTx(ctx, tx); ferr != nil {
				w.log.Errorf("fail tx %s: %v", tx.TxHash, ferr)
			}
		}
		return
	}

	if info.Confirmations < confirmationThreshold {
		return
	}

	if err := w.reconcile(ctx, tx); err != nil {
		w.log.Errorf("reconcile tx %s: %v", tx.TxHash, err)
	}
}

// failTx marks the submitted tx and its change request failed inside one
// store transaction. submitted_txid on the request is left untouched —
// it must never be overwritten with the request uid or any other value.
func (w *Watchdog) failTx(ctx context.Context, tx store.SubmittedTx) error {
	return w.st.WithTx(ctx, func(txStore store.Tx) error {
		request, err := txStore.GetLiquidityChangeRequest(ctx, tx.RequestUID)
		if err != nil {
			return fmt.Errorf("get change request %s: %w", tx.RequestUID, err)
		}

		request.Status = store.RequestStatusFailed
		if err := txStore.UpdateLiquidityChangeRequest(ctx, request); err != nil {
			return fmt.Errorf("update change request %s: %w", tx.RequestUID, err)
		}

		tx.Status = store.TxStatusFailed
		if err := txStore.UpdateSubmittedTx(ctx, tx); err != nil {
			return fmt.Errorf("update submitted tx %s: %w", tx.TxHash, err)
		}

		return nil
	})
}

// reconcile applies the confirmed tx's trading-pair delta, updates the
// matching liquidity provider for add/remove actions, and marks the
// change request done and the tx mined — all inside one store
// transaction so a failure at any step leaves nothing partially applied.
func (w *Watchdog) reconcile(ctx context.Context, tx store.SubmittedTx) error {
	return w.st.WithTx(ctx, func(txStore store.Tx) error {
		request, err := txStore.GetLiquidityChangeRequest(ctx, tx.RequestUID)
		if err != nil {
			return fmt.Errorf("get change request %s: %w", tx.RequestUID, err)
		}

		pair, err := txStore.GetTradingPair(ctx, request.PairID)
		if err != nil {
			return fmt.Errorf("get trading pair %d: %w", request.PairID, err)
		}

		baseDelta := request.BaseAmount
		quoteDelta := request.QuoteAmount

		switch request.Action {
		case store.ActionAddLiq:
			pair.BaseBalance = new(big.Int).Add(pair.BaseBalance, baseDelta)
			pair.QuoteBalanceSat = new(big.Int).Add(pair.QuoteBalanceSat, quoteDelta)
		case store.ActionRemoveLiq:
			pair.BaseBalance = new(big.Int).Sub(pair.BaseBalance, baseDelta)
			pair.QuoteBalanceSat = new(big.Int).Sub(pair.QuoteBalanceSat, quoteDelta)
		case store.ActionSwapDirect:
			pair.BaseBalance = new(big.Int).Add(pair.BaseBalance, baseDelta)
			pair.QuoteBalanceSat = new(big.Int).Sub(pair.QuoteBalanceSat, quoteDelta)
		case store.ActionSwapReverse:
			pair.BaseBalance = new(big.Int).Sub(pair.BaseBalance, baseDelta)
			pair.QuoteBalanceSat = new(big.Int).Add(pair.QuoteBalanceSat, quoteDelta)
		default:
			return fmt.Errorf("unknown change request action %q", request.Action)
		}

		if request.Action == store.ActionAddLiq || request.Action == store.ActionRemoveLiq {
			lp, err := txStore.GetLiquidityProvider(ctx, request.PairID, request.BaseAddress)
			if err != nil {
				return fmt.Errorf("get liquidity provider %s: %w", request.BaseAddress, err)
			}

			if request.Action == store.ActionAddLiq {
				lp.BaseAmount = new(big.Int).Add(lp.BaseAmount, baseDelta)
				lp.QuoteAmount = new(big.Int).Add(lp.QuoteAmount, quoteDelta)
			} else {
				lp.BaseAmount = new(big.Int).Sub(lp.BaseAmount, baseDelta)
				lp.QuoteAmount = new(big.Int).Sub(lp.QuoteAmount, quoteDelta)
			}

			if err := txStore.UpdateLiquidityProvider(ctx, lp); err != nil {
				return fmt.Errorf("update liquidity provider %s: %w", request.BaseAddress, err)
			}
		}

		if err := txStore.UpdateTradingPair(ctx, pair); err != nil {
			return fmt.Errorf("update trading pair %d: %w", pair.ID, err)
		}

		request.Status = store.RequestStatusDone
		request.SubmittedTxID = tx.TxHash
		if err := txStore.UpdateLiquidityChangeRequest(ctx, request); err != nil {
			return fmt.Errorf("update change request %s: %w", tx.RequestUID, err)
		}

		tx.Status = store.TxStatusMined
		if err := txStore.UpdateSubmittedTx(ctx, tx); err != nil {
			return fmt.Errorf("update submitted tx %s: %w", tx.TxHash, err)
		}

		return nil
	})
}
