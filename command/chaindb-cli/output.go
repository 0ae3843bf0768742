// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/query"
	"github.com/bitmark-inc/chaindb/storage"
)

type blockOutput struct {
	Hash         string   `json:"hash"`
	Height       uint32   `json:"height"`
	Previous     string   `json:"previous"`
	MerkleRoot   string   `json:"merkle_root"`
	Timestamp    string   `json:"timestamp"`
	Bits         uint32   `json:"bits"`
	Nonce        uint32   `json:"nonce"`
	Transactions []string `json:"transactions"`
	Stored       bool     `json:"stored"`
}

type transactionOutput struct {
	TxId      string `json:"txid"`
	Confirmed bool   `json:"confirmed"`
	Height    uint32 `json:"height"`
	Position  uint32 `json:"position,omitempty"`
	Coinbase  bool   `json:"coinbase,omitempty"`
	Inputs    int    `json:"inputs"`
	Outputs   int    `json:"outputs"`
	Fee       int64  `json:"fee,omitempty"`
	Arrival   string `json:"arrival,omitempty"`
	Raw       string `json:"raw"`
}

type historyOutput struct {
	Height    uint32 `json:"height"`
	Position  uint32 `json:"position"`
	Direction string `json:"direction"`
	TxId      string `json:"txid"`
	Index     uint32 `json:"index"`
	Value     int64  `json:"value"`
}

type stealthOutput struct {
	Prefix       string `json:"prefix"`
	Height       uint32 `json:"height"`
	TxId         string `json:"txid"`
	Index        uint32 `json:"index"`
	EphemeralKey string `json:"ephemeral_key"`
	Address      string `json:"address"`
}

func toBlock(block *query.Block) *blockOutput {
	out := &blockOutput{
		Hash:         block.Header.BlockHash().String(),
		Height:       block.Height,
		Previous:     block.Header.PrevBlock.String(),
		MerkleRoot:   block.Header.MerkleRoot.String(),
		Timestamp:    block.Header.Timestamp.UTC().Format(time.RFC3339),
		Bits:         block.Header.Bits,
		Nonce:        block.Header.Nonce,
		Transactions: make([]string, len(block.Hashes)),
		Stored:       nil != block.Transactions,
	}
	for i, h := range block.Hashes {
		out.Transactions[i] = h.String()
	}
	return out
}

func raw(tx *wire.MsgTx) string {
	buffer := bytes.Buffer{}
	if err := tx.Serialize(&buffer); nil != err {
		return ""
	}
	return hex.EncodeToString(buffer.Bytes())
}

func toConfirmed(record *storage.TxRecord) *transactionOutput {
	return &transactionOutput{
		TxId:      record.Tx.TxHash().String(),
		Confirmed: true,
		Height:    record.Height,
		Position:  record.Position,
		Coinbase:  record.Coinbase,
		Inputs:    len(record.Tx.TxIn),
		Outputs:   len(record.Tx.TxOut),
		Raw:       raw(record.Tx),
	}
}

func toUnconfirmed(entry *storage.UnconfirmedEntry) *transactionOutput {
	return &transactionOutput{
		TxId:    entry.Tx.TxHash().String(),
		Height:  entry.Height,
		Inputs:  len(entry.Tx.TxIn),
		Outputs: len(entry.Tx.TxOut),
		Fee:     entry.Fee,
		Arrival: entry.Arrival.UTC().Format(time.RFC3339),
		Raw:     raw(entry.Tx),
	}
}

func toHistory(entries []storage.HistoryEntry) []historyOutput {
	out := make([]historyOutput, len(entries))
	for i, e := range entries {
		out[i] = historyOutput{
			Height:    e.Height,
			Position:  e.Position,
			Direction: e.Direction.String(),
			TxId:      e.Hash.String(),
			Index:     e.Index,
			Value:     e.Value,
		}
	}
	return out
}
