// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package chain is the read-only wrapper over a Bitcoin node JSON-RPC
// endpoint that every indexer and the watchdog poll through. It never
// mutates chain state itself beyond relaying a signed transaction.
package chain

import (
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

// Chain is the set of node RPC operations the core components rely on.
type Chain interface {
	BestHeight() (int64, error)
	BlockHash(height int64) (*chainhash.Hash, error)
	Block(hash *chainhash.Hash) (*wire.MsgBlock, error)
	RawTransactionInfo(txid *chainhash.Hash) (*btcjson.TxRawResult, error)
	BlockHeaderInfo(hash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error)
	SendRawTransaction(tx *wire.MsgTx) (*chainhash.Hash, error)
	Shutdown()
}

// Config carries the node RPC endpoint and credentials named in the
// service configuration document.
type Config struct {
	Host     string
	User     string
	Password string
	// DisableTLS is only meant for local regtest/signet nodes behind a
	// loopback connection; it is never appropriate against a public host.
	DisableTLS bool
}

// rpcChain implements Chain over github.com/btcsuite/btcd/rpcclient.
type rpcChain struct {
	client *rpcclient.Client
}

var _ Chain = (*rpcChain)(nil)

// Dial connects to a Bitcoin node's JSON-RPC endpoint using HTTP POST
// mode (no websocket notifications are needed by any consumer here).
func Dial(cfg Config) (Chain, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Password,
		HTTPPostMode: true,
		DisableTLS:   cfg.DisableTLS,
	}

	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, err
	}

	return &rpcChain{client: client}, nil
}

func (c *rpcChain) BestHeight() (int64, error) {
	height, err := c.client.GetBlockCount()
	if err != nil {
		return 0, err
	}
	return height, nil
}

func (c *rpcChain) BlockHash(height int64) (*chainhash.Hash, error) {
	return c.client.GetBlockHash(height)
}

func (c *rpcChain) Block(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	return c.client.GetBlock(hash)
}

func (c *rpcChain) RawTransactionInfo(txid *chainhash.Hash) (*btcjson.TxRawResult, error) {
	return c.client.GetRawTransactionVerbose(txid)
}

func (c *rpcChain) BlockHeaderInfo(hash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error) {
	return c.client.GetBlockHeaderVerbose(hash)
}

func (c *rpcChain) SendRawTransaction(tx *wire.MsgTx) (*chainhash.Hash, error) {
	return c.client.SendRawTransaction(tx, false)
}

func (c *rpcChain) Shutdown() {
	c.client.Shutdown()
}
