// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package query

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/extract"
	"github.com/bitmark-inc/chaindb/storage"
)

// Block - a block of the active chain
type Block struct {
	Height       uint32
	Header       wire.BlockHeader
	Hashes       []chainhash.Hash
	Transactions []*wire.MsgTx // nil if the profile keeps no copy
}

// Summary - totals over the whole history of an address
type Summary struct {
	Received    int64
	Sent        int64
	Credits     int
	Debits      int
	FirstHeight uint32
	LastHeight  uint32
}

// Balance - received less sent
func (s *Summary) Balance() int64 {
	return s.Received - s.Sent
}

// Snapshot - reads from a single consistent view of the database
//
// absent results are nil rather than an error
type Snapshot struct {
	txn    backend.Txn
	stores *storage.Stores
}

// Epoch - commit counter at the time of the snapshot
func (s *Snapshot) Epoch() (uint64, error) {
	return s.stores.Meta.Epoch(s.txn)
}

// Tip - nil for an empty database
func (s *Snapshot) Tip() (*storage.Tip, error) {
	tip, found, err := s.stores.Meta.Tip(s.txn)
	if nil != err || !found {
		return nil, err
	}
	return &tip, nil
}

// HashAtHeight - block hash of the active chain at height
func (s *Snapshot) HashAtHeight(height uint32) (*chainhash.Hash, error) {
	return s.stores.Heights.Get(s.txn, height)
}

// BlockByHash - a block of the active chain with its transactions if
// the profile keeps them
func (s *Snapshot) BlockByHash(hash chainhash.Hash) (*Block, error) {
	record, err := s.stores.Blocks.Get(s.txn, hash)
	if nil != err || nil == record {
		return nil, err
	}

	block := &Block{
		Height: record.Height,
		Header: record.Header,
		Hashes: record.Hashes,
	}

	switch {
	case s.stores.Transactions.Enabled():
		full, err := s.stores.FullBlock(s.txn, hash)
		if nil != err {
			return nil, err
		}
		block.Transactions = full.Transactions

	case s.stores.ReorgBlocks.Enabled():
		kept, err := s.stores.ReorgBlocks.Get(s.txn, record.Height)
		if nil != err {
			return nil, err
		}
		if nil != kept && kept.BlockHash() == hash {
			block.Transactions = kept.Transactions
		}
	}
	return block, nil
}

// BlockByHeight - the block of the active chain at height
func (s *Snapshot) BlockByHeight(height uint32) (*Block, error) {
	hash, err := s.HashAtHeight(height)
	if nil != err || nil == hash {
		return nil, err
	}
	return s.BlockByHash(*hash)
}

// Transaction - a confirmed transaction
func (s *Snapshot) Transaction(hash chainhash.Hash) (*storage.TxRecord, error) {
	return s.stores.Transactions.Get(s.txn, hash)
}

// Utxo - an unspent output
func (s *Snapshot) Utxo(point wire.OutPoint) (*storage.UtxoEntry, error) {
	return s.stores.Utxo.Get(s.txn, point)
}

// Spend - the input spending an output
func (s *Snapshot) Spend(point wire.OutPoint) (*storage.SpendRecord, error) {
	return s.stores.Spends.Get(s.txn, point)
}

// IsSpent - true if a confirmed input spends the output
//
// an unspendable output is never spent, except under a profile that
// keeps neither spends nor transactions, where any output missing from
// the unspent set counts as spent. the spend record is nil if the spend
// is not indexed
func (s *Snapshot) IsSpent(point wire.OutPoint) (bool, *storage.SpendRecord, error) {
	if s.stores.Spends.Enabled() {
		record, err := s.stores.Spends.Get(s.txn, point)
		if nil != err {
			return false, nil, err
		}
		if nil != record {
			return true, record, nil
		}
	}

	if !s.stores.Utxo.Enabled() {
		return false, nil, nil
	}

	entry, err := s.stores.Utxo.Get(s.txn, point)
	if nil != err {
		return false, nil, err
	}
	if nil != entry {
		return false, nil, nil
	}

	// not unspent: spent, unspendable or never created
	if s.stores.Transactions.Enabled() {
		record, err := s.stores.Transactions.Get(s.txn, point.Hash)
		if nil != err || nil == record || int(point.Index) >= len(record.Tx.TxOut) {
			return false, nil, err
		}
		return !txscript.IsUnspendable(record.Tx.TxOut[point.Index].PkScript), nil, nil
	}

	// without transactions nothing tells these apart
	return true, nil, nil
}

// History - credits and debits of an address in chain order
func (s *Snapshot) History(address extract.AddressKey, fromHeight uint32, toHeight uint32, limit int) ([]storage.HistoryEntry, error) {
	return s.stores.History.Range(s.txn, address, fromHeight, toHeight, limit)
}

// Summarise - totals over the whole history of an address
func (s *Snapshot) Summarise(address extract.AddressKey) (*Summary, error) {
	entries, err := s.stores.History.Range(s.txn, address, 0, ^uint32(0), 0)
	if nil != err {
		return nil, err
	}

	summary := &Summary{}
	for i, e := range entries {
		if 0 == i {
			summary.FirstHeight = e.Height
		}
		summary.LastHeight = e.Height
		if storage.Credit == e.Direction {
			summary.Received += e.Value
			summary.Credits += 1
		} else {
			summary.Sent += e.Value
			summary.Debits += 1
		}
	}
	return summary, nil
}

// StealthScan - stealth outputs whose prefix matches filter
func (s *Snapshot) StealthScan(filter extract.StealthFilter, fromHeight uint32) ([]storage.StealthRow, error) {
	return s.stores.Stealth.Scan(s.txn, filter, fromHeight)
}

// Unconfirmed - a transaction in the pool
func (s *Snapshot) Unconfirmed(hash chainhash.Hash) (*storage.UnconfirmedEntry, error) {
	return s.stores.Unconfirmed.Get(s.txn, hash)
}

// MempoolSnapshot - the whole pool, oldest first
func (s *Snapshot) MempoolSnapshot() ([]*storage.UnconfirmedEntry, error) {
	return s.stores.Unconfirmed.All(s.txn)
}
