// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package etching

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Cobra9786/power/bitcoin/runes"
)

// revealSequence is the commit input's nSequence, set one below the
// confirmation gap the indexer enforces (§4.1.4) so relative-locktime
// semantics never themselves block a reveal at exactly the threshold.
const revealSequence = CommitConfirmations - 1

// BuildRevealParams carries BuildReveal's inputs. CommitTxHash is the
// already-broadcast commit transaction's txid.
type BuildRevealParams struct {
	Handle        Handle
	CommitTxHash  string
	CommitmentKey *btcec.PrivateKey
	ChainParams   *chaincfg.Params
}

// BuildReveal builds and signs the single-input, two-output reveal
// transaction for one etching: output 0 is the OP_RETURN runestone
// (pointer=1, carrying the etching), output 1 pays the premine to the
// destination address.
func BuildReveal(params BuildRevealParams) (*wire.MsgTx, error) {
	pointer := uint32(1)
	runestone := &runes.Runestone{
		Etching: &params.Handle.Spec.Etching,
		Pointer: &pointer,
	}

	runestoneScript, err := runestone.IntoScript()
	if err != nil {
		return nil, fmt.Errorf("encode runestone: %w", err)
	}

	destScript, err := addressScript(params.Handle.Spec.Destination, params.ChainParams)
	if err != nil {
		return nil, fmt.Errorf("destination address: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: hashFromTxID(params.CommitTxHash), Index: params.Handle.CommitVout},
		Sequence:         revealSequence,
	})
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: runestoneScript})
	tx.AddTxOut(&wire.TxOut{Value: RunesOutValue, PkScript: destScript})

	if err := signReveal(tx, params.Handle, params.CommitmentKey); err != nil {
		return nil, fmt.Errorf("sign reveal: %w", err)
	}

	return tx, nil
}

// signReveal performs the taproot script-path spend of the commit
// output, producing witness [signature, revealScript, controlBlock].
func signReveal(tx *wire.MsgTx, handle Handle, commitmentKey *btcec.PrivateKey) error {
	fetcher := txscript.NewCannedPrevOutputFetcher(handle.CommitTxOut.PkScript, handle.CommitTxOut.Value)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	leaf := txscript.NewBaseTapLeaf(handle.RevealScript)
	sig, err := txscript.RawTxInTapscriptSignature(
		tx, sigHashes, 0, handle.CommitTxOut.Value, handle.CommitTxOut.PkScript,
		leaf, txscript.SigHashAll, commitmentKey,
	)
	if err != nil {
		return err
	}

	tx.TxIn[0].Witness = wire.TxWitness{sig, handle.RevealScript, handle.ControlBlock}
	return nil
}
