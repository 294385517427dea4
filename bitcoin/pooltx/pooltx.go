// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package pooltx assembles unsigned multi-asset PSBTs for swap / add-
// liquidity / remove-liquidity operations (§4.3), pairing a rune leg
// and a BTC leg with an optional service fee.
package pooltx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/Cobra9786/power/bitcoin/runes"
	"github.com/Cobra9786/power/cache"
	"github.com/Cobra9786/power/store"
)

// RunesOutValue is the fixed value, in satoshis, of a rune-carrying
// output (§6's RUNES_OUT_VALUE).
const RunesOutValue = 600

// minServiceFee is the floor applied to a percentage-computed service
// fee.
const minServiceFee = 1000

// txVersion is the version of every pool transaction this builder
// assembles.
const txVersion int32 = 2

// pageSize is the page size used while selecting rune/BTC utxos.
const pageSize = 100

// ErrInsufficientFunds is returned when the rune or BTC side cannot be
// funded from the unlocked utxo set.
var ErrInsufficientFunds = errors.New("pooltx: insufficient funds")

// Party describes one side of a transfer: who is paying/receiving and,
// for the rune leg, which rune.
type Party struct {
	Address        string
	OriginalPubKey string // non-empty for P2WSH/P2SH inputs.
	Signable       bool
	RuneName       string // only set for rune_input.
}

// ServiceFee optionally skims a percentage of the BTC amount to one or
// more destinations.
type ServiceFee struct {
	Destination []string
	FeePercent  *big.Int // integer percent, e.g. 1 for 1%.
}

// TxParams carries the full input to Build, mirroring §4.3's TxParams.
type TxParams struct {
	RuneInput    Party
	BtcInput     Party
	BtcFeeInput  Party
	RuneOutput   Party
	RuneAmount   *big.Int
	BtcOutput    Party
	BtcAmount    *big.Int
	ServiceFee   *ServiceFee
	FeeRateSatVB *big.Int
}

// Builder assembles pool transactions against the store and cache.
type Builder struct {
	st          store.Store
	cch         cache.Cache
	chainParams *chaincfg.Params
}

// New builds a Builder.
func New(st store.Store, cch cache.Cache, chainParams *chaincfg.Params) *Builder {
	return &Builder{st: st, cch: cch, chainParams: chainParams}
}

// Build assembles the unsigned PSBT for params, following the eleven
// steps of §4.3.
func (b *Builder) Build(ctx context.Context, params TxParams) ([]byte, error) {
	rune_, err := b.st.GetRune(ctx, params.RuneInput.RuneName)
	if err != nil {
		return nil, fmt.Errorf("lookup rune %q: %w", params.RuneInput.RuneName, err)
	}
	runeID := runes.RuneID{Block: uint64(rune_.Block), TxID: uint32(rune_.TxIndex)}

	// Step 1: lock set.
	used := make(map[string]struct{})
	for k := range b.cch.Locked(params.RuneInput.Address) {
		used[k] = struct{}{}
	}
	for k := range b.cch.Locked(params.BtcInput.Address) {
		used[k] = struct{}{}
	}
	for k := range b.cch.Locked(params.BtcFeeInput.Address) {
		used[k] = struct{}{}
	}

	tx := wire.NewMsgTx(txVersion)

	// Step 2: reserve the runestone slot.
	tx.AddTxOut(&wire.TxOut{Value: 0, PkScript: nil})

	// Step 3: select rune inputs.
	runeUTXOs, runeBTCIn, err := b.selectRuneUTXOs(ctx, params.RuneInput, params.RuneAmount, used)
	if err != nil {
		return nil, err
	}
	for _, u := range runeUTXOs {
		if err := addInput(tx, u.TxHash, uint32(u.OutputIndex)); err != nil {
			return nil, err
		}
		used[outpointKey(u.TxHash, uint32(u.OutputIndex))] = struct{}{}
	}

	// Step 4: rune output + rune change.
	runeOutScript, err := b.addressScript(params.RuneOutput.Address)
	if err != nil {
		return nil, fmt.Errorf("rune output address: %w", err)
	}
	tx.AddTxOut(&wire.TxOut{Value: RunesOutValue, PkScript: runeOutScript})

	runeChangeScript, err := b.addressScript(params.RuneInput.Address)
	if err != nil {
		return nil, fmt.Errorf("rune change address: %w", err)
	}
	var btcExtra int64
	runeChangeValue := runeBTCIn - RunesOutValue
	if runeChangeValue < RunesOutValue {
		btcExtra = RunesOutValue - runeChangeValue
		runeChangeValue = RunesOutValue
	}
	tx.AddTxOut(&wire.TxOut{Value: runeChangeValue, PkScript: runeChangeScript})

	// Step 5: runestone (placeholder content, patched in step 9).
	pointer := uint32(2)
	runestone := &runes.Runestone{
		Edicts:  []runes.Edict{{RuneID: runeID, Amount: new(big.Int).Set(params.RuneAmount), Output: 1}},
		Pointer: &pointer,
	}

	// Step 6: service fee.
	var serviceFee int64
	if params.ServiceFee != nil && len(params.ServiceFee.Destination) > 0 {
		serviceFee = computeServiceFee(params.BtcAmount, params.ServiceFee.FeePercent)
		each := serviceFee / int64(len(params.ServiceFee.Destination))
		for _, dest := range params.ServiceFee.Destination {
			script, err := b.addressScript(dest)
			if err != nil {
				return nil, fmt.Errorf("service fee address: %w", err)
			}
			tx.AddTxOut(&wire.TxOut{Value: each, PkScript: script})
		}
	}

	// Step 7: fee estimation.
	fee := estimateFee(tx, params.FeeRateSatVB)
	totalFee := fee + serviceFee + btcExtra

	// Step 8: select BTC inputs.
	if err := b.selectBTCInputs(ctx, tx, params, totalFee, used); err != nil {
		return nil, err
	}

	// Step 9: patch runestone now that outputs are final.
	runestoneScript, err := runestone.IntoScript()
	if err != nil {
		return nil, fmt.Errorf("encode runestone: %w", err)
	}
	tx.TxOut[0].PkScript = runestoneScript

	// Step 10/11: assemble PSBT.
	return b.toPSBT(tx, runeUTXOs, params)
}

func computeServiceFee(btcAmount, percent *big.Int) int64 {
	fee := new(big.Int).Mul(btcAmount, percent)
	fee.Add(fee, big.NewInt(50))
	fee.Div(fee, big.NewInt(100))
	if fee.Int64() < minServiceFee {
		return minServiceFee
	}
	return fee.Int64()
}

func estimateFee(tx *wire.MsgTx, feeRateSatVB *big.Int) int64 {
	return int64(tx.SerializeSize()) * feeRateSatVB.Int64() * 2
}

func addInput(tx *wire.MsgTx, txHash string, vout uint32) error {
	hash, err := chainhash.NewHashFromStr(txHash)
	if err != nil {
		return fmt.Errorf("parse txid %q: %w", txHash, err)
	}
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: *hash, Index: vout}})
	return nil
}

func outpointKey(txHash string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txHash, vout)
}

func (b *Builder) addressScript(address string) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, b.chainParams)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// selectRuneUTXOs implements step 3: page through SelectRuneUtxos
// ordered ASC by block, skipping locked outpoints, until the running
// total meets or exceeds amount.
func (b *Builder) selectRuneUTXOs(ctx context.Context, party Party, amount *big.Int, used map[string]struct{}) ([]store.RuneUtxo, int64, error) {
	var selected []store.RuneUtxo
	total := big.NewInt(0)
	var btcIn int64

	for page := 0; ; page++ {
		rows, err := b.st.SelectRuneUtxos(ctx, party.RuneName, party.Address, store.Pagination{Order: store.OrderAsc, Limit: pageSize, Page: page})
		if err != nil {
			return nil, 0, fmt.Errorf("select rune utxos: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		for _, u := range rows {
			if _, locked := used[outpointKey(u.TxHash, uint32(u.OutputIndex))]; locked {
				continue
			}

			selected = append(selected, u)
			total.Add(total, u.Amount)
			btcIn += u.BtcSatAmount

			if total.Cmp(amount) >= 0 {
				return selected, btcIn, nil
			}
		}

		if len(rows) < pageSize {
			break
		}
	}

	return nil, 0, fmt.Errorf("%w: rune %q", ErrInsufficientFunds, party.RuneName)
}

// selectBTCInputs implements step 8: fund btc_amount (+ total fee if
// the BTC and fee-payer addresses coincide) from btc_input, else split
// funding across btc_input and btc_fee_input, each with its own change
// output when the leftover exceeds RunesOutValue.
func (b *Builder) selectBTCInputs(ctx context.Context, tx *wire.MsgTx, params TxParams, totalFee int64, used map[string]struct{}) error {
	if params.BtcInput.Address == params.BtcFeeInput.Address {
		need := new(big.Int).Add(params.BtcAmount, big.NewInt(totalFee))
		payIdx := len(tx.TxOut)
		if err := b.fundFrom(ctx, tx, params.BtcInput, need, &params.BtcOutput, used); err != nil {
			return err
		}
		// The BTC output receives btc_amount only; the fee part of need
		// stays unspent by the outputs and goes to the miner.
		tx.TxOut[payIdx].Value = params.BtcAmount.Int64()
		return nil
	}

	if err := b.fundFrom(ctx, tx, params.BtcInput, params.BtcAmount, &params.BtcOutput, used); err != nil {
		return err
	}
	return b.fundFrom(ctx, tx, params.BtcFeeInput, big.NewInt(totalFee), nil, used)
}

// fundFrom selects BTC utxos from party covering at least need, appends
// them as inputs, optionally appends a payment output, and appends a
// change output back to party when the leftover exceeds RunesOutValue.
func (b *Builder) fundFrom(ctx context.Context, tx *wire.MsgTx, party Party, need *big.Int, payTo *Party, used map[string]struct{}) error {
	var selected []store.BtcUtxo
	total := int64(0)

	for page := 0; ; page++ {
		rows, err := b.st.SelectBtcUtxos(ctx, party.Address, store.Pagination{Order: store.OrderAsc, Limit: pageSize, Page: page})
		if err != nil {
			return fmt.Errorf("select btc utxos: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		for _, u := range rows {
			if _, locked := used[outpointKey(u.TxHash, uint32(u.OutputIndex))]; locked {
				continue
			}

			selected = append(selected, u)
			total += u.SatAmount
			if total >= need.Int64() {
				goto funded
			}
		}

		if len(rows) < pageSize {
			break
		}
	}
	return fmt.Errorf("%w: btc address %q", ErrInsufficientFunds, party.Address)

funded:
	for _, u := range selected {
		if err := addInput(tx, u.TxHash, uint32(u.OutputIndex)); err != nil {
			return err
		}
		used[outpointKey(u.TxHash, uint32(u.OutputIndex))] = struct{}{}
	}

	if payTo != nil {
		script, err := b.addressScript(payTo.Address)
		if err != nil {
			return fmt.Errorf("btc output address: %w", err)
		}
		tx.AddTxOut(&wire.TxOut{Value: need.Int64(), PkScript: script})
	}

	leftover := total - need.Int64()
	if leftover > RunesOutValue {
		changeScript, err := b.addressScript(party.Address)
		if err != nil {
			return fmt.Errorf("btc change address: %w", err)
		}
		tx.AddTxOut(&wire.TxOut{Value: leftover, PkScript: changeScript})
	}

	return nil
}

// toPSBT converts tx to an unsigned PSBT, setting witness_utxo and, for
// P2WSH/P2SH/P2TR rune inputs, the redeem script / internal key needed
// to sign later (§4.3 step 10).
func (b *Builder) toPSBT(tx *wire.MsgTx, runeUTXOs []store.RuneUtxo, params TxParams) ([]byte, error) {
	p, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("new psbt: %w", err)
	}

	for i, u := range runeUTXOs {
		script, err := hexToBytes(u.OutputScript)
		if err != nil {
			return nil, fmt.Errorf("rune utxo %d script: %w", i, err)
		}

		p.Inputs[i].WitnessUtxo = wire.NewTxOut(u.BtcSatAmount, script)
		p.Inputs[i].SighashType = txscript.SigHashAll

		if err := b.annotateInput(&p.Inputs[i], params.RuneInput.OriginalPubKey, script); err != nil {
			return nil, err
		}
	}

	for i := len(runeUTXOs); i < len(p.Inputs); i++ {
		p.Inputs[i].SighashType = txscript.SigHashAll
	}

	w := bytes.NewBuffer(nil)
	if err := p.Serialize(w); err != nil {
		return nil, fmt.Errorf("serialize psbt: %w", err)
	}

	return w.Bytes(), nil
}

// annotateInput fills in redeem_script (P2WSH/P2SH, derived from a
// supplied pubkey) or tap_internal_key (P2TR, x-only pubkey) per the
// owning output's script class.
func (b *Builder) annotateInput(input *psbt.PInput, originalPubKeyHex string, script []byte) error {
	class := txscript.GetScriptClass(script)

	switch class {
	case txscript.WitnessV0ScriptHashTy, txscript.ScriptHashTy:
		if originalPubKeyHex == "" {
			return nil
		}
		pubKeyBytes, err := hexToBytes(originalPubKeyHex)
		if err != nil {
			return fmt.Errorf("original pubkey: %w", err)
		}
		pubKey, err := btcec.ParsePubKey(pubKeyBytes)
		if err != nil {
			return fmt.Errorf("parse pubkey: %w", err)
		}
		witness, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pubKey.SerializeCompressed()), b.chainParams)
		if err != nil {
			return err
		}
		input.RedeemScript, err = txscript.PayToAddrScript(witness)
		return err

	case txscript.WitnessV1TaprootTy:
		if originalPubKeyHex == "" {
			return nil
		}
		pubKeyBytes, err := hexToBytes(originalPubKeyHex)
		if err != nil {
			return fmt.Errorf("original pubkey: %w", err)
		}
		input.TaprootInternalKey = pubKeyBytes
	}

	return nil
}
