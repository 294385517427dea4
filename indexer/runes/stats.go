// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

// BlockStats counts what happened while indexing one block, mirroring
// the per-block log line the indexer emits.
type BlockStats struct {
	Etches        uint64
	InvalidEtches uint64
	Mints         uint64
	InvalidMints  uint64
	Edicts        uint64
	InvalidEdicts uint64
	BurnedTxs     uint64
	Cenotaphs     uint64
}
