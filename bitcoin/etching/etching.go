// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package etching builds the commit+reveal taproot transaction pair
// that etches one or more runes (§4.2).
package etching

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Cobra9786/power/bitcoin"
	"github.com/Cobra9786/power/bitcoin/runes"
	"github.com/Cobra9786/power/bitcoin/utils"
)

// CommitValue is the fixed value, in satoshis, of a commit output.
const CommitValue = 100_000

// RunesOutValue is the fixed value, in satoshis, of a reveal
// transaction's rune output.
const RunesOutValue = 600

// CommitConfirmations is the minimum number of blocks between the
// commit and the reveal, also enforced by the indexer (§4.1.4).
const CommitConfirmations = 6

// ordTag and commitmentLeafTag are the reveal script's fixed protocol
// markers: the OP_FALSE OP_IF "ord" envelope and the tag byte that
// precedes the rune commitment push.
var ordTag = []byte("ord")

const commitmentLeafTag = 0x0d

// feeGrowFactor accounts for the as-yet-unknown witness size of the
// taproot script-path spend that will sign the commit output.
const feeGrowFactor = 1.85

// ErrInsufficientFunds is returned when the supplied funding UTXOs
// cannot cover n_etchings × CommitValue plus fees.
var ErrInsufficientFunds = errors.New("etching: insufficient funds")

// Spec is one rune to etch.
type Spec struct {
	Etching runes.Etching
	// Destination receives the premine in the reveal transaction.
	Destination string
}

// Handle is what the commit builder hands back per etching so the
// caller can later build and sign that etching's reveal transaction.
type Handle struct {
	Spec          Spec
	CommitVout    uint32
	CommitTxOut   *wire.TxOut
	RevealScript  []byte
	ControlBlock  []byte
	CommitAddress string
}

// CommitResult is the output of BuildCommit.
type CommitResult struct {
	Tx      *wire.MsgTx
	Handles []Handle
}

// BuildCommitParams carries BuildCommit's inputs.
type BuildCommitParams struct {
	Specs           []Spec
	FundingUTXOs    []bitcoin.UTXO
	ChangeAddress   string
	CommitmentKey   *btcec.PrivateKey
	FeeRateSatVByte *big.Int
	ChainParams     *chaincfg.Params
}

// BuildCommit builds the unsigned commit transaction: one CommitValue
// output per etching, paying a one-leaf taproot address committing to
// that etching's rune name, plus a change output.
func BuildCommit(params BuildCommitParams) (*CommitResult, error) {
	if len(params.Specs) == 0 {
		return nil, errors.New("etching: no specs provided")
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	handles := make([]Handle, len(params.Specs))

	for i, spec := range params.Specs {
		leafScript, err := revealLeafScript(params.CommitmentKey, spec.Etching.Rune)
		if err != nil {
			return nil, fmt.Errorf("etching %d: leaf script: %w", i, err)
		}

		addr, err := utils.NewTaprootAddressFromScripts(params.ChainParams, params.CommitmentKey, leafScript)
		if err != nil {
			return nil, fmt.Errorf("etching %d: taproot address: %w", i, err)
		}

		tree, err := utils.NewTapScriptTreeFromRawScripts(leafScript)
		if err != nil {
			return nil, fmt.Errorf("etching %d: tapscript tree: %w", i, err)
		}
		ctrlBlock := tree.LeafMerkleProofs[0].ToControlBlock(params.CommitmentKey.PubKey())
		ctrlBlockBytes, err := ctrlBlock.ToBytes()
		if err != nil {
			return nil, fmt.Errorf("etching %d: control block: %w", i, err)
		}

		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, fmt.Errorf("etching %d: commit script: %w", i, err)
		}

		out := &wire.TxOut{Value: CommitValue, PkScript: script}
		tx.AddTxOut(out)

		handles[i] = Handle{
			Spec:          spec,
			CommitVout:    uint32(i),
			CommitTxOut:   out,
			RevealScript:  leafScript,
			ControlBlock:  ctrlBlockBytes,
			CommitAddress: addr.EncodeAddress(),
		}
	}

	needed := big.NewInt(int64(len(params.Specs)) * CommitValue)

	total := big.NewInt(0)
	for _, u := range params.FundingUTXOs {
		total.Add(total, u.Amount)
		tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{
			Hash:  hashFromTxID(u.TxHash),
			Index: u.Index,
		}})

		if total.Cmp(needed) >= 0 {
			break
		}
	}
	if total.Cmp(needed) < 0 {
		return nil, ErrInsufficientFunds
	}

	changeScript, err := addressScript(params.ChangeAddress, params.ChainParams)
	if err != nil {
		return nil, fmt.Errorf("change address: %w", err)
	}
	changeOut := &wire.TxOut{Value: 0, PkScript: changeScript}
	tx.AddTxOut(changeOut)

	fee := estimateFee(tx, params.FeeRateSatVByte)
	change := new(big.Int).Sub(total, needed)
	change.Sub(change, fee)
	if change.Sign() < 0 {
		return nil, ErrInsufficientFunds
	}
	changeOut.Value = change.Int64()

	return &CommitResult{Tx: tx, Handles: handles}, nil
}

// revealLeafScript builds the commit leaf script:
// <commitment_pubkey> OP_CHECKSIG OP_FALSE OP_IF "ord" OP_FALSE <0x0d> <commitment> OP_ENDIF
func revealLeafScript(commitmentKey *btcec.PrivateKey, rune_ *runes.Rune) ([]byte, error) {
	if rune_ == nil {
		return nil, errors.New("etching: nil rune, cannot compute commitment")
	}

	pubKey := schnorr.SerializePubKey(commitmentKey.PubKey())

	builder := txscript.NewScriptBuilder().
		AddData(pubKey).
		AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_FALSE).
		AddOp(txscript.OP_IF).
		AddData(ordTag).
		AddOp(txscript.OP_FALSE).
		AddOps([]byte{txscript.OP_DATA_1, commitmentLeafTag}).
		AddData(rune_.Commitment()).
		AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

func estimateFee(tx *wire.MsgTx, feeRate *big.Int) *big.Int {
	vsize := float64(tx.SerializeSize())
	fee := vsize * feeGrowFactor * float64(feeRate.Int64())
	return big.NewInt(int64(fee))
}

func addressScript(address string, params *chaincfg.Params) ([]byte, error) {
	addr, err := decodeAddress(address, params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}
