// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"context"
	"fmt"

	"github.com/Cobra9786/power/bitcoin/runes"
	"github.com/Cobra9786/power/store"
)

// warmupPageSize is the page size used while paging through runes and
// rune utxos during Warmup.
const warmupPageSize = 100

// Warmup implements §4.1.7: a one-shot pass over every rune, every one
// of its unspent utxos, and every (address, rune) balance that utxo
// implies. Each rune (with its id mapping) and each of those balances
// is written into the cache; the utxos themselves are only read. It is
// meant to be run once after a cache flush, before Run resumes
// processing new blocks.
func (idx *Indexer) Warmup(ctx context.Context) error {
	seenBalances := make(map[string]struct{})

	for page := 0; ; page++ {
		runeRows, err := idx.st.ListRunes(ctx, "", store.Pagination{Order: store.OrderAsc, Limit: warmupPageSize, Page: page})
		if err != nil {
			return fmt.Errorf("list runes page %d: %w", page, err)
		}
		if len(runeRows) == 0 {
			break
		}

		for _, r := range runeRows {
			idx.cch.SetRune(r)
			idx.cch.SetRuneByID(runeIDOf(r), r.RuneName)

			if err := idx.warmupRuneUtxos(ctx, r, seenBalances); err != nil {
				return fmt.Errorf("warm up rune %q utxos: %w", r.RuneName, err)
			}
		}

		if len(runeRows) < warmupPageSize {
			break
		}
	}

	return nil
}

func (idx *Indexer) warmupRuneUtxos(ctx context.Context, r store.Rune, seenBalances map[string]struct{}) error {
	for page := 0; ; page++ {
		utxos, err := idx.st.SelectRuneUtxos(ctx, r.RuneName, "", store.Pagination{Order: store.OrderAsc, Limit: warmupPageSize, Page: page})
		if err != nil {
			return err
		}
		if len(utxos) == 0 {
			break
		}

		for _, u := range utxos {
			key := u.HolderAddress + ":" + u.RuneName
			if _, ok := seenBalances[key]; ok {
				continue
			}
			seenBalances[key] = struct{}{}

			bal, err := idx.st.GetRuneBalance(ctx, u.HolderAddress, u.RuneName)
			if err != nil {
				if err == store.ErrNotFound {
					continue
				}
				return err
			}

			idx.cch.SetBalance(bal.HolderAddress, bal.RuneName, bal.Balance)
		}

		if len(utxos) < warmupPageSize {
			break
		}
	}

	return nil
}

func runeIDOf(r store.Rune) runes.RuneID {
	return runes.RuneID{Block: uint64(r.Block), TxID: uint32(r.TxIndex)}
}
