// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/storage"
)

// EvictReason - why a transaction left the pool without confirming
type EvictReason int

// reasons for eviction
const (
	ReplacedByFee EvictReason = iota
	Expired
	SizeCap
	Conflict
)

func (r EvictReason) String() string {
	switch r {
	case ReplacedByFee:
		return "replaced-by-fee"
	case Expired:
		return "expired"
	case SizeCap:
		return "size-cap"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

func (r EvictReason) valid() bool {
	return r >= ReplacedByFee && r <= Conflict
}

// AcceptUnconfirmed - add a transaction to the pool
func (c *Coordinator) AcceptUnconfirmed(tx *wire.MsgTx, fee int64, arrival time.Time) error {
	if c.backend.ReadOnly() {
		return fault.ErrReadOnly
	}
	if !c.stores.Unconfirmed.Enabled() {
		return fault.ErrIndexDisabled
	}

	c.permit.Lock()
	defer c.permit.Unlock()

	hash := tx.TxHash()
	return c.write("accept", func(txn backend.Txn) (bool, error) {
		confirmed, err := c.confirmed(txn, tx, hash)
		if nil != err {
			return false, err
		}
		if confirmed {
			return false, fmt.Errorf("%w: %s", fault.ErrAlreadyConfirmed, hash)
		}

		present, err := c.stores.Unconfirmed.Has(txn, hash)
		if nil != err {
			return false, err
		}
		if present {
			return false, fmt.Errorf("%w: %s", fault.ErrDuplicateTransaction, hash)
		}

		tip, _, err := c.stores.Meta.Tip(txn)
		if nil != err {
			return false, err
		}

		entry := &storage.UnconfirmedEntry{
			Tx:      tx,
			Arrival: arrival,
			Height:  tip.Height,
			Fee:     fee,
			Size:    uint32(tx.SerializeSize()),
		}
		return true, c.stores.Unconfirmed.Put(txn, entry)
	})
}

// without a transaction store any unspent output shows the
// transaction is confirmed
func (c *Coordinator) confirmed(txn backend.Txn, tx *wire.MsgTx, hash chainhash.Hash) (bool, error) {
	if c.stores.Transactions.Enabled() {
		return c.stores.Transactions.Has(txn, hash)
	}
	for i := range tx.TxOut {
		entry, err := c.stores.Utxo.Get(txn, wire.OutPoint{Hash: hash, Index: uint32(i)})
		if nil != err {
			return false, err
		}
		if nil != entry {
			return true, nil
		}
	}
	return false, nil
}

// EvictUnconfirmed - remove one transaction from the pool
func (c *Coordinator) EvictUnconfirmed(hash chainhash.Hash, reason EvictReason) error {
	if c.backend.ReadOnly() {
		return fault.ErrReadOnly
	}
	if !c.stores.Unconfirmed.Enabled() {
		return fault.ErrIndexDisabled
	}
	if !reason.valid() {
		return fault.ErrInvalidEvictReason
	}

	c.permit.Lock()
	defer c.permit.Unlock()

	err := c.write("evict", func(txn backend.Txn) (bool, error) {
		present, err := c.stores.Unconfirmed.Has(txn, hash)
		if nil != err {
			return false, err
		}
		if !present {
			return false, fmt.Errorf("%w: %s", fault.ErrTransactionNotFound, hash)
		}
		return true, c.stores.Unconfirmed.Delete(txn, hash)
	})
	if nil == err {
		c.log.Debugf("evicted: %s  reason: %s", hash, reason)
	}
	return err
}

// EvictExpired - remove every pool transaction that arrived more than
// maxAge before now
func (c *Coordinator) EvictExpired(now time.Time, maxAge time.Duration) (int, error) {
	cutoff := now.Add(-maxAge)
	return c.evictWhere("expire", Expired, func(entries []*storage.UnconfirmedEntry) []*storage.UnconfirmedEntry {
		old := []*storage.UnconfirmedEntry{}
		for _, entry := range entries {
			if entry.Arrival.Before(cutoff) {
				old = append(old, entry)
			}
		}
		return old
	})
}

// TrimUnconfirmed - evict the lowest fee rate transactions until the
// pool holds at most maxBytes of serialised transactions
func (c *Coordinator) TrimUnconfirmed(maxBytes uint64) (int, error) {
	return c.evictWhere("trim", SizeCap, func(entries []*storage.UnconfirmedEntry) []*storage.UnconfirmedEntry {
		total := uint64(0)
		for _, entry := range entries {
			total += uint64(entry.Size)
		}
		if total <= maxBytes {
			return nil
		}

		// entries are oldest first, so equal rates evict the oldest
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].FeeRate() < entries[j].FeeRate()
		})
		n := 0
		for total > maxBytes && n < len(entries) {
			total -= uint64(entries[n].Size)
			n += 1
		}
		return entries[:n]
	})
}

// remove the pool entries chosen by selector
func (c *Coordinator) evictWhere(operation string, reason EvictReason, selector func([]*storage.UnconfirmedEntry) []*storage.UnconfirmedEntry) (int, error) {
	if c.backend.ReadOnly() {
		return 0, fault.ErrReadOnly
	}
	if !c.stores.Unconfirmed.Enabled() {
		return 0, fault.ErrIndexDisabled
	}

	c.permit.Lock()
	defer c.permit.Unlock()

	evicted := 0
	remaining := 0
	err := c.write(operation, func(txn backend.Txn) (bool, error) {
		entries, err := c.stores.Unconfirmed.All(txn)
		if nil != err {
			return false, err
		}
		remaining = len(entries)
		chosen := selector(entries)
		evicted = len(chosen)
		for _, entry := range chosen {
			if err := c.stores.Unconfirmed.Delete(txn, entry.Tx.TxHash()); nil != err {
				return false, err
			}
		}
		remaining -= evicted
		return evicted > 0, nil
	})
	if nil != err {
		return 0, err
	}

	if evicted > 0 {
		c.log.Infof("%s: evicted: %d  reason: %s", operation, evicted, reason)
	}
	c.hooks.PoolSize(remaining)
	return evicted, nil
}
