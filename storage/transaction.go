// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/fault"
)

// flag bits in layout 2 transaction and utxo records
const (
	flagCoinbase = 0x01
)

// TxRecord - a confirmed transaction
type TxRecord struct {
	Height   uint32
	Position uint32
	Coinbase bool
	Tx       *wire.MsgTx
}

// Transactions - hash to confirmed transaction
type Transactions struct {
	handle
}

func serialiseTx(tx *wire.MsgTx) ([]byte, error) {
	buffer := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))
	if err := tx.Serialize(buffer); nil != err {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func deserialiseTx(data []byte) (*wire.MsgTx, error) {
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(data)); nil != err {
		return nil, fault.ErrRecordTruncated
	}
	return tx, nil
}

// Put - store a confirmed transaction
//
// layout 1 records have no flags, the coinbase is always position zero
func (s *Transactions) Put(txn backend.Txn, record *TxRecord) error {
	raw, err := serialiseTx(record.Tx)
	if nil != err {
		return err
	}
	w := writer{buffer: make([]byte, 0, 9+len(raw))}
	w.uint32(record.Height)
	w.uint32(record.Position)
	if s.utxoLayout() {
		flags := byte(0)
		if record.Coinbase {
			flags |= flagCoinbase
		}
		w.byte(flags)
	}
	w.bytes(raw)

	hash := record.Tx.TxHash()
	return s.put(txn, hash[:], w.buffer)
}

// Get - nil if the transaction is not confirmed
func (s *Transactions) Get(txn backend.Txn, hash chainhash.Hash) (*TxRecord, error) {
	value, err := s.get(txn, hash[:])
	if nil != err || nil == value {
		return nil, err
	}
	r := reader{buffer: value}
	record := &TxRecord{
		Height:   r.uint32(),
		Position: r.uint32(),
	}
	if s.utxoLayout() {
		record.Coinbase = 0 != r.byte()&flagCoinbase
	} else {
		record.Coinbase = 0 == record.Position
	}
	raw := r.rest()
	if err := r.error("transaction"); nil != err {
		return nil, err
	}
	record.Tx, err = deserialiseTx(raw)
	if nil != err {
		return nil, err
	}
	return record, nil
}

// Has - true if the transaction is confirmed
func (s *Transactions) Has(txn backend.Txn, hash chainhash.Hash) (bool, error) {
	value, err := s.get(txn, hash[:])
	return nil != value, err
}

// Delete - remove a transaction
func (s *Transactions) Delete(txn backend.Txn, hash chainhash.Hash) error {
	return s.remove(txn, hash[:])
}

// UnconfirmedEntry - a transaction waiting for a block
type UnconfirmedEntry struct {
	Tx      *wire.MsgTx
	Arrival time.Time
	Height  uint32 // tip height at acceptance
	Fee     int64
	Size    uint32
}

// FeeRate - fee per byte
func (e *UnconfirmedEntry) FeeRate() float64 {
	if 0 == e.Size {
		return 0
	}
	return float64(e.Fee) / float64(e.Size)
}

// Unconfirmed - hash to unconfirmed transaction
type Unconfirmed struct {
	handle
}

// Put - add a transaction to the pool
func (s *Unconfirmed) Put(txn backend.Txn, entry *UnconfirmedEntry) error {
	raw, err := serialiseTx(entry.Tx)
	if nil != err {
		return err
	}
	w := writer{buffer: make([]byte, 0, 24+len(raw))}
	w.uint64(uint64(entry.Arrival.UnixNano()))
	w.uint32(entry.Height)
	w.uint64(uint64(entry.Fee))
	w.uint32(entry.Size)
	w.bytes(raw)

	hash := entry.Tx.TxHash()
	return s.put(txn, hash[:], w.buffer)
}

func decodeUnconfirmed(value []byte) (*UnconfirmedEntry, error) {
	r := reader{buffer: value}
	entry := &UnconfirmedEntry{
		Arrival: time.Unix(0, int64(r.uint64())),
		Height:  r.uint32(),
		Fee:     int64(r.uint64()),
		Size:    r.uint32(),
	}
	raw := r.rest()
	if err := r.error("unconfirmed"); nil != err {
		return nil, err
	}
	tx, err := deserialiseTx(raw)
	if nil != err {
		return nil, err
	}
	entry.Tx = tx
	return entry, nil
}

// Get - nil if not in the pool
func (s *Unconfirmed) Get(txn backend.Txn, hash chainhash.Hash) (*UnconfirmedEntry, error) {
	value, err := s.get(txn, hash[:])
	if nil != err || nil == value {
		return nil, err
	}
	return decodeUnconfirmed(value)
}

// Has - true if in the pool
func (s *Unconfirmed) Has(txn backend.Txn, hash chainhash.Hash) (bool, error) {
	value, err := s.get(txn, hash[:])
	return nil != value, err
}

// Delete - remove from the pool
func (s *Unconfirmed) Delete(txn backend.Txn, hash chainhash.Hash) error {
	return s.remove(txn, hash[:])
}

// All - every pool entry, oldest arrival first
func (s *Unconfirmed) All(txn backend.Txn) ([]*UnconfirmedEntry, error) {
	entries := []*UnconfirmedEntry{}
	err := s.each(txn, nil, nil, func(_ []byte, value []byte) (bool, error) {
		entry, err := decodeUnconfirmed(value)
		if nil != err {
			return false, err
		}
		entries = append(entries, entry)
		return true, nil
	})
	if nil != err {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Arrival.Before(entries[j].Arrival)
	})
	return entries, nil
}
