// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"github.com/Cobra9786/power/internal/reverse"
)

// Commitment returns the bytes pushed into the commit transaction's taproot
// leaf script: the rune's numeric value as a little-endian byte string with
// trailing zero bytes trimmed. The indexer recomputes the same bytes from
// the etched name and compares them against the witness push to validate
// the commit/reveal confirmation gap.
func (r *Rune) Commitment() []byte {
	be := r.value.Bytes()
	le := reverse.Bytes(append([]byte(nil), be...))

	end := len(le)
	for end > 0 && le[end-1] == 0 {
		end--
	}

	return le[:end]
}
