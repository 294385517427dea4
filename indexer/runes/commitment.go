// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Cobra9786/power/bitcoin/inscriptions"
	"github.com/Cobra9786/power/bitcoin/runes"
)

// CommitConfirmations is the minimum confirmation gap between a
// commitment transaction and the etching that reveals it.
const CommitConfirmations = 6

// validateCommitment looks for rune's commitment pushed inside a
// taproot script-path witness of one of tx's inputs, decoded the same
// way a generic ord inscription envelope is (the rune commitment rides
// the envelope's tag-13 field), whose parent output is itself a v1
// P2TR output confirmed at least CommitConfirmations blocks before
// currentBlock. It returns the commitment transaction's txid on
// success.
func (idx *Indexer) validateCommitment(tx *wire.MsgTx, currentBlock int64, rune_ *runes.Rune) (string, bool) {
	for _, in := range tx.TxIn {
		tapScript, ok := scriptPathLeaf(in.Witness)
		if !ok {
			continue
		}

		commitment := rune_.Commitment()
		committed := false
		tok := txscript.MakeScriptTokenizer(0, tapScript)
		for tok.Next() {
			if tok.Opcode() <= txscript.OP_PUSHDATA4 && bytes.Equal(tok.Data(), commitment) {
				committed = true
				break
			}
		}
		if !committed {
			continue
		}

		prevTxid := &in.PreviousOutPoint.Hash
		prevInfo, err := idx.chain.RawTransactionInfo(prevTxid)
		if err != nil {
			idx.log.Errorf("fetch commitment parent tx %s: %v", prevTxid, err)
			return "", false
		}

		vout := in.PreviousOutPoint.Index
		if int(vout) >= len(prevInfo.Vout) {
			continue
		}

		parentScriptBytes, err := hex.DecodeString(prevInfo.Vout[vout].ScriptPubKey.Hex)
		if err != nil {
			continue
		}

		parentScript, err := txscript.ParsePkScript(parentScriptBytes)
		if err != nil || parentScript.Class() != txscript.WitnessV1TaprootTy {
			continue
		}

		if prevInfo.BlockHash == "" {
			continue
		}

		commitBlockHash, err := chainhash.NewHashFromStr(prevInfo.BlockHash)
		if err != nil {
			idx.log.Errorf("parse commitment block hash %s: %v", prevInfo.BlockHash, err)
			return "", false
		}

		header, err := idx.chain.BlockHeaderInfo(commitBlockHash)
		if err != nil {
			idx.log.Errorf("fetch commitment block header %s: %v", prevInfo.BlockHash, err)
			return "", false
		}

		gap := currentBlock - int64(header.Height) + 1
		if gap >= CommitConfirmations {
			return prevTxid.String(), true
		}
	}

	return "", false
}

// scriptPathLeaf returns the tapscript leaf of a taproot script-path
// spend witness (signature(s)..., leaf script, control block), or ok=false
// for a key-path spend or any shorter/malformed witness.
func scriptPathLeaf(witness wire.TxWitness) ([]byte, bool) {
	if len(witness) < 2 {
		return nil, false
	}

	control := witness[len(witness)-1]
	if len(control) == 0 || control[0]&0xfe != byte(txscript.BaseLeafVersion) {
		return nil, false
	}

	return witness[len(witness)-2], true
}

