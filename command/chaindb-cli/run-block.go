// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/urfave/cli"

	"github.com/bitmark-inc/chaindb/query"
)

func runBlock(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	hashString := c.String("hash")
	height := c.Int("height")

	var block *query.Block
	var err error
	switch {
	case "" != hashString && height < 0:
		hash, err := chainhash.NewHashFromStr(hashString)
		if nil != err {
			return err
		}
		block, err = m.db.BlockByHash(*hash)
		if nil != err {
			return err
		}
	case "" == hashString && height >= 0:
		block, err = m.db.BlockByHeight(uint32(height))
		if nil != err {
			return err
		}
	default:
		return ErrNoBlockSelected
	}

	if nil == block {
		return ErrBlockNotFound
	}
	if m.verbose {
		fmt.Fprintf(m.e, "block: %s  transactions: %d\n", block.Header.BlockHash(), len(block.Hashes))
	}
	return printJson(m.w, toBlock(block))
}

func runTransaction(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	hash, err := txid(c)
	if nil != err {
		return err
	}

	record, err := m.db.Transaction(*hash)
	if nil != err {
		return err
	}
	if nil != record {
		return printJson(m.w, toConfirmed(record))
	}

	if m.db.Stores().Unconfirmed.Enabled() {
		entry, err := m.db.Unconfirmed(*hash)
		if nil != err {
			return err
		}
		if nil != entry {
			return printJson(m.w, toUnconfirmed(entry))
		}
	}
	return ErrTransactionNotFound
}

type spentOutput struct {
	TxId    string `json:"txid"`
	Index   uint32 `json:"index"`
	Spent   bool   `json:"spent"`
	Spender string `json:"spender,omitempty"`
	Input   uint32 `json:"input,omitempty"`
	Height  uint32 `json:"height,omitempty"`
}

func runSpent(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	hash, err := txid(c)
	if nil != err {
		return err
	}
	index := c.Int("index")
	if index < 0 {
		return fmt.Errorf("invalid index: %d", index)
	}

	point := wire.OutPoint{Hash: *hash, Index: uint32(index)}
	spent, record, err := m.db.IsSpent(point)
	if nil != err {
		return err
	}

	out := spentOutput{
		TxId:  hash.String(),
		Index: point.Index,
		Spent: spent,
	}
	if nil != record {
		out.Spender = record.Hash.String()
		out.Input = record.Index
		out.Height = record.Height
	}
	return printJson(m.w, out)
}

func txid(c *cli.Context) (*chainhash.Hash, error) {
	s := c.String("txid")
	if "" == s {
		return nil, ErrNoTransactionID
	}
	return chainhash.NewHashFromStr(s)
}
