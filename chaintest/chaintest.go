// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaintest - deterministic blocks and transactions for tests
package chaintest

import (
	"encoding/binary"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Params - all test data uses regtest addresses
var Params = &chaincfg.RegressionNetParams

// base time for block headers
var epoch = time.Unix(1600000000, 0)

// AddressHash - hash160 for a numbered test address
func AddressHash(n byte) []byte {
	return btcutil.Hash160([]byte{'a', 'd', 'd', 'r', n})
}

// Address - encoded pay-to-pubkey-hash address
func Address(n byte) string {
	a, err := btcutil.NewAddressPubKeyHash(AddressHash(n), Params)
	if nil != err {
		panic(err)
	}
	return a.EncodeAddress()
}

// PayTo - output script paying a numbered test address
func PayTo(n byte) []byte {
	a, err := btcutil.NewAddressPubKeyHash(AddressHash(n), Params)
	if nil != err {
		panic(err)
	}
	script, err := txscript.PayToAddrScript(a)
	if nil != err {
		panic(err)
	}
	return script
}

// EphemeralScript - null data output carrying a 32 byte key
func EphemeralScript(n byte) []byte {
	key := make([]byte, 33)
	key[0] = 0x02
	for i := 1; i < len(key); i += 1 {
		key[i] = n
	}
	script, err := txscript.NullDataScript(key)
	if nil != err {
		panic(err)
	}
	return script
}

// Coinbase - a coinbase paying value to address n, unique per height
func Coinbase(height uint32, value int64, n byte) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	sig := make([]byte, 8)
	binary.LittleEndian.PutUint32(sig, height)
	sig[4] = n
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  sig,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(value, PayTo(n)))
	return tx
}

// Output - a single output
type Output struct {
	Value  int64
	Script []byte
}

// Pay - output of value to address n
func Pay(value int64, n byte) Output {
	return Output{Value: value, Script: PayTo(n)}
}

// Spend - a transaction spending the given points
func Spend(points []wire.OutPoint, outputs ...Output) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, p := range points {
		tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: p.Hash, Index: p.Index}, []byte{0x51}, nil))
	}
	for _, o := range outputs {
		tx.AddTxOut(wire.NewTxOut(o.Value, o.Script))
	}
	return tx
}

// Point - output point of a transaction
func Point(tx *wire.MsgTx, index uint32) wire.OutPoint {
	return wire.OutPoint{Hash: tx.TxHash(), Index: index}
}

// Block - a block on top of parent, nonce distinguishes competing blocks
func Block(parent chainhash.Hash, height uint32, nonce uint32, txs ...*wire.MsgTx) *wire.MsgBlock {
	header := wire.BlockHeader{
		Version:   4,
		PrevBlock: parent,
		Timestamp: epoch.Add(time.Duration(height) * 10 * time.Minute),
		Bits:      0x207fffff,
		Nonce:     nonce,
	}
	block := wire.NewMsgBlock(&header)
	hashes := make([]byte, 0, chainhash.HashSize*len(txs))
	for _, tx := range txs {
		_ = block.AddTransaction(tx)
		h := tx.TxHash()
		hashes = append(hashes, h[:]...)
	}
	block.Header.MerkleRoot = chainhash.DoubleHashH(hashes)
	return block
}

// Chain - a sequence of coinbase-only blocks starting at height 0
//
// block i pays 50 units to address n
func Chain(count int, n byte, nonce uint32) []*wire.MsgBlock {
	return Extend(chainhash.Hash{}, 0, count, n, nonce)
}

// Extend - coinbase-only blocks on top of parent starting at height
func Extend(parent chainhash.Hash, height uint32, count int, n byte, nonce uint32) []*wire.MsgBlock {
	blocks := make([]*wire.MsgBlock, 0, count)
	for i := 0; i < count; i += 1 {
		h := height + uint32(i)
		b := Block(parent, h, nonce, Coinbase(h, 50, n))
		blocks = append(blocks, b)
		parent = b.BlockHash()
	}
	return blocks
}
