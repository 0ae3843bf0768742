// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package query - read access to a chain database
//
// every read runs on a backend read transaction so it sees one
// committed state and never blocks the writer
package query

import (
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/extract"
	"github.com/bitmark-inc/chaindb/measure"
	"github.com/bitmark-inc/chaindb/storage"
)

// Router - opens snapshots and runs single queries
type Router struct {
	backend backend.Backend
	stores  *storage.Stores
	params  *chaincfg.Params
	hooks   measure.Hooks
	log     *logger.L
}

// New - a router over an opened database
func New(b backend.Backend, stores *storage.Stores, params *chaincfg.Params, hooks measure.Hooks) *Router {
	if nil == hooks {
		hooks = measure.Nop{}
	}
	return &Router{
		backend: b,
		stores:  stores,
		params:  params,
		hooks:   hooks,
		log:     logger.New("query"),
	}
}

// View - run several reads against one snapshot
//
// the snapshot must not be used after fn returns
func (r *Router) View(fn func(s *Snapshot) error) error {
	txn, err := r.backend.Begin(false)
	if nil != err {
		r.log.Warnf("begin snapshot: %s", err)
		return err
	}
	defer txn.Abort()

	return fn(&Snapshot{txn: txn, stores: r.stores})
}

// AddressKey - history key of an encoded address for this chain
func (r *Router) AddressKey(address string) (extract.AddressKey, error) {
	return extract.KeyFromAddress(address, r.params)
}

// run one query in its own snapshot
func single[T any](r *Router, name string, fn func(s *Snapshot) (T, error)) (T, error) {
	start := time.Now()
	defer func() {
		r.hooks.Query(name, time.Since(start))
	}()

	var result T
	err := r.View(func(s *Snapshot) error {
		var err error
		result, err = fn(s)
		return err
	})
	return result, err
}

// Epoch - commit counter of the latest committed state
func (r *Router) Epoch() (uint64, error) {
	return single(r, "epoch", (*Snapshot).Epoch)
}

// Tip - nil for an empty database
func (r *Router) Tip() (*storage.Tip, error) {
	return single(r, "tip", (*Snapshot).Tip)
}

// HashAtHeight - block hash of the active chain at height
func (r *Router) HashAtHeight(height uint32) (*chainhash.Hash, error) {
	return single(r, "hash_at_height", func(s *Snapshot) (*chainhash.Hash, error) {
		return s.HashAtHeight(height)
	})
}

// BlockByHash - nil if not on the active chain
func (r *Router) BlockByHash(hash chainhash.Hash) (*Block, error) {
	return single(r, "block_by_hash", func(s *Snapshot) (*Block, error) {
		return s.BlockByHash(hash)
	})
}

// BlockByHeight - nil above the tip
func (r *Router) BlockByHeight(height uint32) (*Block, error) {
	return single(r, "block_by_height", func(s *Snapshot) (*Block, error) {
		return s.BlockByHeight(height)
	})
}

// Transaction - nil if not confirmed
func (r *Router) Transaction(hash chainhash.Hash) (*storage.TxRecord, error) {
	return single(r, "transaction", func(s *Snapshot) (*storage.TxRecord, error) {
		return s.Transaction(hash)
	})
}

// Utxo - nil if spent or unknown
func (r *Router) Utxo(point wire.OutPoint) (*storage.UtxoEntry, error) {
	return single(r, "utxo", func(s *Snapshot) (*storage.UtxoEntry, error) {
		return s.Utxo(point)
	})
}

// Spend - nil if no indexed spend
func (r *Router) Spend(point wire.OutPoint) (*storage.SpendRecord, error) {
	return single(r, "spend", func(s *Snapshot) (*storage.SpendRecord, error) {
		return s.Spend(point)
	})
}

// IsSpent - spend status of an output
func (r *Router) IsSpent(point wire.OutPoint) (bool, *storage.SpendRecord, error) {
	type status struct {
		spent  bool
		record *storage.SpendRecord
	}
	result, err := single(r, "is_spent", func(s *Snapshot) (status, error) {
		spent, record, err := s.IsSpent(point)
		return status{spent: spent, record: record}, err
	})
	return result.spent, result.record, err
}

// History - credits and debits of an address
func (r *Router) History(address extract.AddressKey, fromHeight uint32, toHeight uint32, limit int) ([]storage.HistoryEntry, error) {
	return single(r, "history", func(s *Snapshot) ([]storage.HistoryEntry, error) {
		return s.History(address, fromHeight, toHeight, limit)
	})
}

// Summarise - totals over the history of an address
func (r *Router) Summarise(address extract.AddressKey) (*Summary, error) {
	return single(r, "summarise", func(s *Snapshot) (*Summary, error) {
		return s.Summarise(address)
	})
}

// StealthScan - stealth outputs matching a prefix filter
func (r *Router) StealthScan(filter extract.StealthFilter, fromHeight uint32) ([]storage.StealthRow, error) {
	return single(r, "stealth_scan", func(s *Snapshot) ([]storage.StealthRow, error) {
		return s.StealthScan(filter, fromHeight)
	})
}

// Unconfirmed - nil if not in the pool
func (r *Router) Unconfirmed(hash chainhash.Hash) (*storage.UnconfirmedEntry, error) {
	return single(r, "unconfirmed", func(s *Snapshot) (*storage.UnconfirmedEntry, error) {
		return s.Unconfirmed(hash)
	})
}

// MempoolSnapshot - every pool entry, oldest first
func (r *Router) MempoolSnapshot() ([]*storage.UnconfirmedEntry, error) {
	return single(r, "mempool", (*Snapshot).MempoolSnapshot)
}
