// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package lrucache implements cache.Cache with an in-process LRU backing
// store, the default when no external KV endpoint is configured.
package lrucache

import (
	"math/big"
	"sync"

	"github.com/decred/dcrd/lru"

	"github.com/Cobra9786/power/bitcoin/runes"
	"github.com/Cobra9786/power/cache"
	"github.com/Cobra9786/power/store"
)

// defaultLimit bounds each of the three LRU maps independently; rune
// metadata, balances and id lookups have unrelated churn rates.
const defaultLimit = 100_000

// Cache is an in-process, LRU-bounded cache.Cache.
type Cache struct {
	mu sync.Mutex

	runesByName *lru.Map[string, store.Rune]
	runesByID   *lru.Map[string, string]
	balances    *lru.Map[string, *big.Int]
	locks       map[string]map[string]struct{}
}

// New returns an LRU-bounded cache with the given per-map entry limit; a
// limit of 0 falls back to defaultLimit.
func New(limit uint64) *Cache {
	if limit == 0 {
		limit = defaultLimit
	}
	return &Cache{
		runesByName: lru.NewMap[string, store.Rune](limit),
		runesByID:   lru.NewMap[string, string](limit),
		balances:    lru.NewMap[string, *big.Int](limit),
		locks:       make(map[string]map[string]struct{}),
	}
}

var _ cache.Cache = (*Cache)(nil)

func (c *Cache) GetRune(name string) (store.Rune, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.runesByName.Get(cache.RuneKey(name))
}

func (c *Cache) SetRune(r store.Rune) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runesByName.Put(cache.RuneKey(r.RuneName), r)
}

func (c *Cache) GetRuneByID(id runes.RuneID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.runesByID.Get(cache.RuneByIDKey(id))
}

func (c *Cache) SetRuneByID(id runes.RuneID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runesByID.Put(cache.RuneByIDKey(id), name)
}

func (c *Cache) GetBalance(address, rune_ string) (*big.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.balances.Get(cache.BalanceKey(address, rune_))
}

func (c *Cache) SetBalance(address, rune_ string, balance *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.balances.Put(cache.BalanceKey(address, rune_), balance)
}

func (c *Cache) Locked(address string) map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]struct{}, len(c.locks[address]))
	for k := range c.locks[address] {
		out[k] = struct{}{}
	}
	return out
}

func (c *Cache) Lock(address string, outpoints ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.locks[address]
	if !ok {
		set = make(map[string]struct{})
		c.locks[address] = set
	}
	for _, op := range outpoints {
		set[op] = struct{}{}
	}
}

func (c *Cache) Unlock(address string, outpoints ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.locks[address]
	if !ok {
		return
	}
	for _, op := range outpoints {
		delete(set, op)
	}
}
