// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// isOpReturn reports whether script's first opcode is OP_RETURN.
func isOpReturn(script []byte) bool {
	tok := txscript.MakeScriptTokenizer(0, script)
	return tok.Next() && tok.Opcode() == txscript.OP_RETURN
}

// isRunestoneMagic reports whether an OP_RETURN script's second opcode
// is the rune protocol's magic number (OP_13).
func isRunestoneMagic(script []byte) bool {
	tok := txscript.MakeScriptTokenizer(0, script)
	if !tok.Next() || tok.Opcode() != txscript.OP_RETURN {
		return false
	}

	return tok.Next() && tok.Opcode() == txscript.OP_13
}

// nonOpReturnOutputs returns every output index whose script does not
// start with OP_RETURN.
func nonOpReturnOutputs(tx *wire.MsgTx) []uint32 {
	outs := make([]uint32, 0, len(tx.TxOut))
	for i, out := range tx.TxOut {
		if !isOpReturn(out.PkScript) {
			outs = append(outs, uint32(i))
		}
	}

	return outs
}

// changeOutput returns pointer if present and in range, else the first
// non-OP_RETURN output, matching §4.1.5's "change output" rule.
func changeOutput(tx *wire.MsgTx, pointer *uint32) (uint32, bool) {
	if pointer != nil {
		if int(*pointer) >= len(tx.TxOut) {
			return 0, false
		}
		return *pointer, true
	}

	for i, out := range tx.TxOut {
		if !isOpReturn(out.PkScript) {
			return uint32(i), true
		}
	}

	return 0, false
}

// premineOutput implements the §4.1.4 premine-output resolution rule:
// the pointer if set, else the first non-OP_RETURN output following an
// OP_RETURN output that is not itself the rune magic number.
func premineOutput(tx *wire.MsgTx, pointer *uint32) (uint32, bool) {
	if pointer != nil {
		if int(*pointer) >= len(tx.TxOut) {
			return 0, false
		}
		return *pointer, true
	}

	runeOutFound := false
	for i, out := range tx.TxOut {
		if !isOpReturn(out.PkScript) {
			if runeOutFound {
				return uint32(i), true
			}
			continue
		}

		if !isRunestoneMagic(out.PkScript) {
			runeOutFound = true
		}
	}

	return 0, false
}

// addressForScript resolves script to a single address, mirroring the
// indexer's use of Address::from_script.
func addressForScript(script []byte, params *chaincfg.Params) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("script resolves to no address")
	}

	return addrs[0].EncodeAddress(), nil
}
