// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/extract"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/storage"
)

// an output spent by a block
type spentOutput struct {
	point   wire.OutPoint
	entry   *storage.UtxoEntry
	spender chainhash.Hash
	input   uint32
	inBlock bool // created earlier in the same block
}

// an output created by a block
type createdOutput struct {
	point wire.OutPoint
	entry *storage.UtxoEntry
}

// every record a block adds, derived only from the block and the
// outputs it spends so that pushing and popping produce the same keys
type changes struct {
	block   *wire.MsgBlock
	hash    chainhash.Hash
	height  uint32
	indexed bool

	hashes       []chainhash.Hash
	coinbase     []bool
	spent        []spentOutput
	created      []createdOutput
	spentInBlock map[wire.OutPoint]struct{}
	history      []storage.HistoryEntry
	stealth      []storage.StealthRow
	fees         map[chainhash.Hash]int64
}

// IsCoinbase - single input spending the null point
func IsCoinbase(tx *wire.MsgTx) bool {
	if 1 != len(tx.TxIn) {
		return false
	}
	prev := tx.TxIn[0].PreviousOutPoint
	return wire.MaxPrevOutIndex == prev.Index && prev.Hash == (chainhash.Hash{})
}

// decompose a block at height
//
// undo is nil when pushing, when popping it holds the rollback data
// of the block so that spent outputs can be resolved
func (c *Coordinator) decompose(txn backend.Txn, block *wire.MsgBlock, height uint32, undo map[wire.OutPoint]*storage.UtxoEntry) (*changes, error) {
	ch := &changes{
		block:        block,
		hash:         block.BlockHash(),
		height:       height,
		indexed:      height >= c.options.IndexStartHeight,
		hashes:       make([]chainhash.Hash, 0, len(block.Transactions)),
		coinbase:     make([]bool, 0, len(block.Transactions)),
		spentInBlock: make(map[wire.OutPoint]struct{}),
		fees:         make(map[chainhash.Hash]int64),
	}
	history := ch.indexed && c.stores.History.Enabled()
	stealth := ch.indexed && c.stores.Stealth.Enabled()

	inBlock := make(map[wire.OutPoint]*storage.UtxoEntry)

	for i, tx := range block.Transactions {
		position := uint32(i)
		hash := tx.TxHash()
		coinbase := 0 == position && IsCoinbase(tx)
		ch.hashes = append(ch.hashes, hash)
		ch.coinbase = append(ch.coinbase, coinbase)

		if !coinbase {
			in := int64(0)
			for j, input := range tx.TxIn {
				point := input.PreviousOutPoint
				if _, ok := ch.spentInBlock[point]; ok {
					return nil, fmt.Errorf("%w: %v twice in block: %s", fault.ErrDoubleSpend, point, ch.hash)
				}

				entry, fromBlock := inBlock[point]
				if !fromBlock {
					var err error
					entry, err = c.resolve(txn, point, undo)
					if nil != err {
						return nil, err
					}
				}

				ch.spentInBlock[point] = struct{}{}
				ch.spent = append(ch.spent, spentOutput{
					point:   point,
					entry:   entry,
					spender: hash,
					input:   uint32(j),
					inBlock: fromBlock,
				})
				in += entry.Value

				if history {
					for _, key := range extract.AddressKeys(entry.Script, c.params) {
						ch.history = append(ch.history, storage.HistoryEntry{
							Address:   key,
							Height:    height,
							Position:  position,
							Direction: storage.Debit,
							Index:     uint32(j),
							Hash:      hash,
							Value:     entry.Value,
						})
					}
				}
			}

			out := int64(0)
			for _, output := range tx.TxOut {
				out += output.Value
			}
			ch.fees[hash] = in - out
		}

		for j, output := range tx.TxOut {
			point := wire.OutPoint{Hash: hash, Index: uint32(j)}
			entry := &storage.UtxoEntry{
				Height:   height,
				Coinbase: coinbase,
				Value:    output.Value,
				Script:   output.PkScript,
			}
			inBlock[point] = entry
			ch.created = append(ch.created, createdOutput{point: point, entry: entry})

			if history {
				for _, key := range extract.AddressKeys(output.PkScript, c.params) {
					ch.history = append(ch.history, storage.HistoryEntry{
						Address:   key,
						Height:    height,
						Position:  position,
						Direction: storage.Credit,
						Index:     uint32(j),
						Hash:      hash,
						Value:     output.Value,
					})
				}
			}
		}

		if stealth {
			for _, s := range extract.StealthOutputs(tx, c.params) {
				ch.stealth = append(ch.stealth, storage.StealthRow{
					Prefix:       s.Prefix,
					Height:       height,
					Hash:         hash,
					Index:        s.Index,
					EphemeralKey: s.EphemeralKey,
					Address:      s.Address,
				})
			}
		}
	}

	return ch, nil
}

// find an output spent from outside the block
func (c *Coordinator) resolve(txn backend.Txn, point wire.OutPoint, undo map[wire.OutPoint]*storage.UtxoEntry) (*storage.UtxoEntry, error) {
	if nil != undo {
		if entry, ok := undo[point]; ok {
			return entry, nil
		}
	}

	if c.stores.Utxo.Enabled() {
		entry, err := c.stores.Utxo.Get(txn, point)
		if nil != err {
			return nil, err
		}
		if nil != entry {
			return entry, nil
		}
		if nil == undo && c.stores.Spends.Enabled() {
			spend, err := c.stores.Spends.Get(txn, point)
			if nil != err {
				return nil, err
			}
			if nil != spend {
				return nil, fmt.Errorf("%w: %v spent by: %s", fault.ErrDoubleSpend, point, spend.Hash)
			}
		}
		return nil, fmt.Errorf("%w: %v missing or already spent", fault.ErrPrevoutNotFound, point)
	}

	record, err := c.stores.Transactions.Get(txn, point.Hash)
	if nil != err {
		return nil, err
	}
	if nil == record || int(point.Index) >= len(record.Tx.TxOut) {
		return nil, fmt.Errorf("%w: %v", fault.ErrPrevoutNotFound, point)
	}
	output := record.Tx.TxOut[point.Index]
	return &storage.UtxoEntry{
		Height:   record.Height,
		Coinbase: record.Coinbase,
		Value:    output.Value,
		Script:   output.PkScript,
	}, nil
}
