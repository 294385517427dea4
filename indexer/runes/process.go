// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"context"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/Cobra9786/power/bitcoin/runes"
	"github.com/Cobra9786/power/store"
)

// allocation tracks one output's per-rune allocation, split by the
// process that produced it so §4.1.6 can pick the right RuneLog action.
type allocation struct {
	edict   *big.Int
	mint    *big.Int
	etching *big.Int
}

func newAllocation() *allocation {
	return &allocation{edict: big.NewInt(0), mint: big.NewInt(0), etching: big.NewInt(0)}
}

// perOutput maps rune name -> allocation for one transaction output.
type perOutput map[string]*allocation

func (p perOutput) entry(rune_ string) *allocation {
	a, ok := p[rune_]
	if !ok {
		a = newAllocation()
		p[rune_] = a
	}

	return a
}

// processBlock fetches block height, skips its coinbase transaction and
// decodes every other transaction's runestone.
func (idx *Indexer) processBlock(ctx context.Context, height int64) (BlockStats, error) {
	var stats BlockStats

	hash, err := idx.chain.BlockHash(height)
	if err != nil {
		return stats, fmt.Errorf("block hash: %w", err)
	}

	block, err := idx.chain.Block(hash)
	if err != nil {
		return stats, fmt.Errorf("block: %w", err)
	}

	for n, tx := range block.Transactions {
		if isCoinbase(tx) {
			continue
		}

		if err := idx.processTx(ctx, tx, height, int32(n), &stats); err != nil {
			return stats, fmt.Errorf("tx %s: %w", tx.TxHash(), err)
		}
	}

	return stats, nil
}

func isCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}

	prev := tx.TxIn[0].PreviousOutPoint
	var zero chainhash.Hash
	return prev.Hash == zero && prev.Index == wire.MaxPrevOutIndex
}

// processTx is the §4.1.2 per-transaction decode pipeline. Every store
// write it makes - spends, the rune row, mint/burn counters, and the
// resulting utxos - runs inside one store.WithTx, so a reject anywhere
// in the pipeline (which always ends in burnAllInputs) rolls back every
// partial effect instead of leaving an inflated, unbacked supply. Cache
// updates are collected in cacheOps and only applied once the unit of
// work actually commits.
func (idx *Indexer) processTx(ctx context.Context, tx *wire.MsgTx, block int64, txIndex int32, stats *BlockStats) error {
	txHash := tx.TxHash().String()
	var cacheOps []func()

	err := idx.st.WithTx(ctx, func(st store.Tx) error {
		unallocated, err := idx.collectAndSpendInputs(ctx, st, tx, txHash, &cacheOps)
		if err != nil {
			return fmt.Errorf("collect inputs: %w", err)
		}

		allocated := make([]perOutput, len(tx.TxOut))
		for i := range allocated {
			allocated[i] = make(perOutput)
		}

		runestoneScript, ok := findRunestoneScript(tx)
		if !ok {
			stats.BurnedTxs++
			return idx.burnAllInputs(ctx, st, unallocated, &cacheOps)
		}

		runestone, err := runes.ParseRunestone(runestoneScript)
		if err != nil {
			stats.Cenotaphs++
			stats.BurnedTxs++
			return idx.burnAllInputs(ctx, st, unallocated, &cacheOps)
		}

		if verifyErr := runestone.Verify(len(tx.TxOut)); verifyErr != nil {
			stats.Cenotaphs++
			stats.BurnedTxs++
			return idx.burnAllInputs(ctx, st, unallocated, &cacheOps)
		}

		if runestone.Etching != nil {
			ok, err := idx.handleEtching(ctx, st, tx, block, txIndex, txHash, runestone, allocated, &cacheOps)
			if err != nil {
				return err
			}
			if !ok {
				stats.InvalidEtches++
				stats.BurnedTxs++
				return idx.burnAllInputs(ctx, st, unallocated, &cacheOps)
			}
			stats.Etches++
		}

		if runestone.Mint != nil {
			ok, err := idx.handleMint(ctx, st, tx, runestone.Mint, runestone.Pointer, allocated, &cacheOps)
			if err != nil {
				return err
			}
			if !ok {
				stats.InvalidMints++
				stats.BurnedTxs++
				return idx.burnAllInputs(ctx, st, unallocated, &cacheOps)
			}
			stats.Mints++
		}

		if len(runestone.Edicts) > 0 && idx.cfg.HandleEdicts {
			n := uint64(len(runestone.Edicts))
			ok, err := idx.handleEdicts(ctx, st, tx, runestone.Edicts, allocated, &cacheOps)
			if err != nil {
				return err
			}
			if !ok {
				stats.InvalidEdicts += n
				stats.BurnedTxs++
				return idx.burnAllInputs(ctx, st, unallocated, &cacheOps)
			}
			stats.Edicts += n
		}

		ok, err = idx.applyAllocations(ctx, st, tx, block, txIndex, txHash, unallocated, allocated, runestone.Pointer, &cacheOps)
		if err != nil {
			return err
		}
		if !ok {
			stats.BurnedTxs++
			return idx.burnAllInputs(ctx, st, unallocated, &cacheOps)
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, op := range cacheOps {
		op()
	}

	return nil
}

// findRunestoneScript scans tx's outputs for the first one carrying a
// possible runestone payload.
func findRunestoneScript(tx *wire.MsgTx) ([]byte, bool) {
	for _, out := range tx.TxOut {
		if runes.IsPossibleRunestone(out.PkScript) {
			return out.PkScript, true
		}
	}

	return nil, false
}

// collectAndSpendInputs implements §4.1.3: for every input, spend every
// rune-utxo row at its outpoint, decrement the holder's balance, and
// aggregate the amounts freed up by this transaction.
func (idx *Indexer) collectAndSpendInputs(ctx context.Context, st store.Tx, tx *wire.MsgTx, txHash string, cacheOps *[]func()) (map[string]*big.Int, error) {
	unallocated := make(map[string]*big.Int)

	for _, in := range tx.TxIn {
		prevHash := in.PreviousOutPoint.Hash.String()
		vout := int32(in.PreviousOutPoint.Index)

		utxos, err := st.ListRuneUtxosAtOutpoint(ctx, prevHash, vout)
		if err != nil {
			return nil, fmt.Errorf("list rune utxos at %s:%d: %w", prevHash, vout, err)
		}

		for _, u := range utxos {
			if err := idx.spendRuneUtxo(ctx, st, u, txHash, cacheOps); err != nil {
				idx.log.Errorf("spend rune utxo %s:%d %s: %v", prevHash, vout, u.RuneName, err)
				continue
			}

			sum, ok := unallocated[u.RuneName]
			if !ok {
				sum = big.NewInt(0)
				unallocated[u.RuneName] = sum
			}
			sum.Add(sum, u.Amount)
		}
	}

	return unallocated, nil
}

// spendRuneUtxo marks u spent and debits its balance. It writes through
// st, the caller's already-open unit of work, rather than opening one
// of its own, so the spend lives or dies with the rest of the tx.
func (idx *Indexer) spendRuneUtxo(ctx context.Context, st store.Tx, u store.RuneUtxo, newTxHash string, cacheOps *[]func()) error {
	if err := st.SpendRuneUtxo(ctx, u.TxHash, u.OutputIndex, u.RuneName); err != nil {
		return err
	}

	bal, err := st.GetRuneBalance(ctx, u.HolderAddress, u.RuneName)
	if err != nil && err != store.ErrNotFound {
		return err
	}

	balance := big.NewInt(0)
	if bal.Balance != nil {
		balance = bal.Balance
	}
	balance = new(big.Int).Sub(balance, u.Amount)
	if balance.Sign() < 0 {
		balance = big.NewInt(0)
	}

	if err := st.UpsertRuneBalance(ctx, u.HolderAddress, u.RuneName, balance); err != nil {
		return err
	}
	*cacheOps = append(*cacheOps, func() { idx.cch.SetBalance(u.HolderAddress, u.RuneName, balance) })

	if idx.cfg.DisableRuneLog {
		return nil
	}

	return st.InsertRuneLog(ctx, store.RuneLog{
		TxHash:  newTxHash,
		Rune:    u.RuneName,
		Address: u.HolderAddress,
		Action:  store.RuneLogActionExpense,
		Value:   new(big.Int).Set(u.Amount),
	})
}

// burnAllInputs adds every unallocated amount to its rune's burned
// counter and removes it from circulation. Called from inside the
// pipeline's unit of work so a burn commits or rolls back together
// with the reject that triggered it.
func (idx *Indexer) burnAllInputs(ctx context.Context, st store.Tx, unallocated map[string]*big.Int, cacheOps *[]func()) error {
	for name, amount := range unallocated {
		if amount.Sign() == 0 {
			continue
		}

		if err := idx.burnRune(ctx, st, name, amount, cacheOps); err != nil {
			idx.log.Errorf("burn rune %s amount %s: %v", name, amount, err)
		}
	}

	return nil
}

func (idx *Indexer) burnRune(ctx context.Context, st store.Tx, name string, amount *big.Int, cacheOps *[]func()) error {
	r, err := st.GetRune(ctx, name)
	if err != nil {
		return err
	}

	burned := new(big.Int).Add(r.Burned, amount)
	inCirculation := new(big.Int).Sub(r.InCirculation, amount)
	if inCirculation.Sign() < 0 {
		inCirculation = big.NewInt(0)
	}

	if err := st.UpdateRuneBurned(ctx, name, burned, inCirculation); err != nil {
		return err
	}

	r.Burned = burned
	r.InCirculation = inCirculation
	*cacheOps = append(*cacheOps, func() { idx.cch.SetRune(r) })
	return nil
}

// handleEtching implements §4.1.4.
func (idx *Indexer) handleEtching(
	ctx context.Context, st store.Tx, tx *wire.MsgTx, block int64, txIndex int32, txHash string,
	runestone *runes.Runestone, allocated []perOutput, cacheOps *[]func(),
) (bool, error) {
	etching := runestone.Etching

	var (
		rune_        *runes.Rune
		commitmentTx string
	)

	if etching.Rune != nil {
		if idx.filterRunes {
			return false, nil
		}

		minName := runes.MinNameLength(uint64(block))
		if len(etching.Rune.String()) < minName || etching.Rune.IsReserved() {
			return false, nil
		}

		txid, ok := idx.validateCommitment(tx, block, etching.Rune)
		if !ok {
			return false, nil
		}

		rune_, commitmentTx = etching.Rune, txid
	} else {
		rune_ = runes.RuneReserve(runes.RuneID{Block: uint64(block), TxID: uint32(txIndex)})
	}

	name := rune_.String()
	if _, err := st.GetRune(ctx, name); err == nil {
		idx.log.Warnf("rune %q already exists, rejecting etching %s", name, txHash)
		return false, nil
	} else if err != store.ErrNotFound {
		return false, fmt.Errorf("lookup rune %q: %w", name, err)
	}

	raw, err := runestone.Serialize()
	if err != nil {
		return false, fmt.Errorf("serialize runestone: %w", err)
	}

	premine := etching.Premine
	if premine == nil {
		premine = big.NewInt(0)
	}

	row := store.Rune{
		RuneName:       name,
		DisplayName:    rune_.StringWithSeparator(*etching.Spacers),
		Symbol:         string(*etching.Symbol),
		Block:          block,
		TxIndex:        txIndex,
		Mints:          0,
		MaxSupply:      supplyOf(etching),
		Premine:        premine,
		Burned:         big.NewInt(0),
		Minted:         new(big.Int).Set(premine),
		InCirculation:  new(big.Int).Set(premine),
		Divisibility:   int32(*etching.Divisibility),
		TurboFlag:      etching.Turbo,
		Timestamp:      0,
		EtchingTxID:    txHash,
		CommitmentTxID: commitmentTx,
		RawRunestone:   raw,
	}

	if err := st.InsertRune(ctx, row); err != nil {
		return false, fmt.Errorf("insert rune %q: %w", name, err)
	}
	*cacheOps = append(*cacheOps, func() {
		idx.cch.SetRune(row)
		idx.cch.SetRuneByID(runes.RuneID{Block: uint64(block), TxID: uint32(txIndex)}, name)
	})

	if premine.Sign() == 0 {
		return true, nil
	}

	if vout, ok := premineOutput(tx, runestone.Pointer); ok {
		allocated[vout].entry(name).etching.Add(allocated[vout].entry(name).etching, premine)
		return true, nil
	}

	if len(runestone.Edicts) == 0 {
		return false, nil
	}

	hasAnchoredEdict := false
	for _, edict := range runestone.Edicts {
		if !edict.RuneID.IsReserveAnchor() {
			continue
		}

		hasAnchoredEdict = true
		if int(edict.Output) == len(tx.TxOut) {
			outs := nonOpReturnOutputs(tx)
			if len(outs) == 0 {
				continue
			}
			share := new(big.Int).Div(edict.Amount, big.NewInt(int64(len(outs))))
			for _, vout := range outs {
				a := allocated[vout].entry(name)
				a.etching.Add(a.etching, share)
			}
		} else {
			a := allocated[edict.Output].entry(name)
			a.etching.Add(a.etching, edict.Amount)
		}
	}

	return hasAnchoredEdict, nil
}

func supplyOf(etching *runes.Etching) *big.Int {
	if etching.Terms == nil {
		return new(big.Int).Set(etching.Premine)
	}

	supply := new(big.Int).Set(etching.Premine)
	if etching.Terms.Cap != nil && etching.Terms.Amount != nil {
		total := new(big.Int).Mul(etching.Terms.Cap, etching.Terms.Amount)
		supply.Add(supply, total)
	}

	return supply
}

// handleMint implements §4.1.5's mint allocation.
func (idx *Indexer) handleMint(
	ctx context.Context, st store.Tx, tx *wire.MsgTx, mint *runes.RuneID, pointer *uint32, allocated []perOutput, cacheOps *[]func(),
) (bool, error) {
	if idx.filterRunes {
		if _, ok := idx.watchlistIDs[*mint]; !ok {
			return false, nil
		}
	}

	r, err := st.GetRuneByID(ctx, int64(mint.Block), int32(mint.TxID))
	if err != nil {
		if err == store.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("lookup rune by id %s: %w", mint.String(), err)
	}

	terms, err := runes.ParseRunestone(r.RawRunestone)
	if err != nil || terms.Etching == nil || terms.Etching.Terms == nil || terms.Etching.Terms.Amount == nil {
		return false, nil
	}
	amount := terms.Etching.Terms.Amount

	vout, ok := changeOutput(tx, pointer)
	if !ok {
		return false, nil
	}

	mints := r.Mints + 1
	minted := new(big.Int).Add(r.Minted, amount)
	inCirculation := new(big.Int).Add(r.InCirculation, amount)
	if err := st.UpdateRuneMint(ctx, r.RuneName, mints, minted, inCirculation); err != nil {
		return false, fmt.Errorf("update rune mint %q: %w", r.RuneName, err)
	}
	r.Mints, r.Minted, r.InCirculation = mints, minted, inCirculation
	*cacheOps = append(*cacheOps, func() { idx.cch.SetRune(r) })

	a := allocated[vout].entry(r.RuneName)
	a.mint.Add(a.mint, amount)
	return true, nil
}

// handleEdicts implements §4.1.5's edict allocation.
func (idx *Indexer) handleEdicts(ctx context.Context, st store.Tx, tx *wire.MsgTx, edicts []runes.Edict, allocated []perOutput, cacheOps *[]func()) (bool, error) {
	for _, edict := range edicts {
		if edict.RuneID.IsReserveAnchor() {
			continue
		}

		if idx.filterRunes {
			if _, ok := idx.watchlistIDs[edict.RuneID]; !ok {
				return false, nil
			}
		}

		name, ok := idx.cch.GetRuneByID(edict.RuneID)
		if !ok {
			r, err := st.GetRuneByID(ctx, int64(edict.RuneID.Block), int32(edict.RuneID.TxID))
			if err != nil {
				if err == store.ErrNotFound {
					return false, nil
				}
				return false, fmt.Errorf("lookup rune by id %s: %w", edict.RuneID.String(), err)
			}
			name = r.RuneName
			id := edict.RuneID
			*cacheOps = append(*cacheOps, func() { idx.cch.SetRuneByID(id, name) })
		}

		if int(edict.Output) == len(tx.TxOut) {
			outs := nonOpReturnOutputs(tx)
			if len(outs) == 0 {
				continue
			}
			share := new(big.Int).Div(edict.Amount, big.NewInt(int64(len(outs))))
			for _, vout := range outs {
				a := allocated[vout].entry(name)
				a.edict.Add(a.edict, share)
			}
		} else {
			a := allocated[edict.Output].entry(name)
			a.edict.Add(a.edict, edict.Amount)
		}
	}

	return true, nil
}

// applyAllocations implements §4.1.6's two-phase check-and-commit.
func (idx *Indexer) applyAllocations(
	ctx context.Context, st store.Tx, tx *wire.MsgTx, block int64, txIndex int32, txHash string,
	unallocated map[string]*big.Int, allocated []perOutput, pointer *uint32, cacheOps *[]func(),
) (bool, error) {
	totalOut := make(map[string]*big.Int)
	for _, out := range allocated {
		for name, a := range out {
			sum, ok := totalOut[name]
			if !ok {
				sum = big.NewInt(0)
				totalOut[name] = sum
			}
			sum.Add(sum, a.edict)
		}
	}

	for name, want := range totalOut {
		have, ok := unallocated[name]
		if !ok {
			have = big.NewInt(0)
		}
		if want.Cmp(have) > 0 {
			idx.log.Debugf("tx %s tries to spend more %s than it has: want=%s have=%s", txHash, name, want, have)
			return false, nil
		}
	}

	remaining := make(map[string]*big.Int, len(unallocated))
	for name, amount := range unallocated {
		remaining[name] = new(big.Int).Set(amount)
	}

	for vout, out := range allocated {
		if len(out) == 0 {
			continue
		}

		script := tx.TxOut[vout].PkScript
		address, err := addressForScript(script, idx.chainParams)
		if err != nil {
			idx.log.Errorf("invalid allocation address vout=%d: %v", vout, err)
			return false, nil
		}

		for name, a := range out {
			amount := new(big.Int).Add(a.edict, a.mint)
			amount.Add(amount, a.etching)

			action := store.RuneLogActionIncome
			switch {
			case a.etching.Sign() > 0:
				action = store.RuneLogActionEtching
			case a.mint.Sign() > 0:
				action = store.RuneLogActionMint
			}

			if err := idx.writeRuneUtxo(ctx, st, store.RuneUtxo{
				Block:         block,
				TxIndex:       txIndex,
				TxHash:        txHash,
				OutputIndex:   int32(vout),
				RuneName:      name,
				HolderAddress: address,
				OutputScript:  fmt.Sprintf("%x", script),
				Amount:        amount,
				BtcSatAmount:  tx.TxOut[vout].Value,
				Spent:         false,
			}, action, cacheOps); err != nil {
				idx.log.Errorf("insert rune utxo vout=%d rune=%s: %v", vout, name, err)
			}

			if r, ok := remaining[name]; ok {
				r.Sub(r, a.edict)
			}
		}
	}

	changeVout, ok := changeOutput(tx, pointer)
	if !ok {
		idx.log.Debugf("tx %s has no change output for remaining rune balances", txHash)
		return false, nil
	}

	script := tx.TxOut[changeVout].PkScript
	address, err := addressForScript(script, idx.chainParams)
	if err != nil {
		idx.log.Errorf("invalid change address vout=%d: %v", changeVout, err)
		return false, nil
	}

	for name, amount := range remaining {
		if amount.Sign() <= 0 {
			continue
		}

		if err := idx.writeRuneUtxo(ctx, st, store.RuneUtxo{
			Block:         block,
			TxIndex:       txIndex,
			TxHash:        txHash,
			OutputIndex:   int32(changeVout),
			RuneName:      name,
			HolderAddress: address,
			OutputScript:  fmt.Sprintf("%x", script),
			Amount:        new(big.Int).Set(amount),
			BtcSatAmount:  tx.TxOut[changeVout].Value,
			Spent:         false,
		}, store.RuneLogActionIncome, cacheOps); err != nil {
			idx.log.Errorf("insert change rune utxo vout=%d rune=%s: %v", changeVout, name, err)
		}
	}

	return true, nil
}

// writeRuneUtxo inserts the utxo row, increases the (address,rune)
// balance in store and cache, and appends a RuneLog entry, through the
// caller's open unit of work.
func (idx *Indexer) writeRuneUtxo(ctx context.Context, st store.Tx, u store.RuneUtxo, action string, cacheOps *[]func()) error {
	bal, err := st.GetRuneBalance(ctx, u.HolderAddress, u.RuneName)
	if err != nil && err != store.ErrNotFound {
		return err
	}

	balance := big.NewInt(0)
	if bal.Balance != nil {
		balance = bal.Balance
	}
	balance = new(big.Int).Add(balance, u.Amount)

	if err := st.UpsertRuneBalance(ctx, u.HolderAddress, u.RuneName, balance); err != nil {
		return err
	}
	*cacheOps = append(*cacheOps, func() { idx.cch.SetBalance(u.HolderAddress, u.RuneName, balance) })

	if err := st.InsertRuneUtxo(ctx, u); err != nil {
		return err
	}

	if idx.cfg.DisableRuneLog {
		return nil
	}

	return st.InsertRuneLog(ctx, store.RuneLog{
		TxHash:  u.TxHash,
		Rune:    u.RuneName,
		Address: u.HolderAddress,
		Action:  action,
		Value:   new(big.Int).Set(u.Amount),
	})
}

