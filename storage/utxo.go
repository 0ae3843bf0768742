// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/backend"
)

// UtxoEntry - an unspent output
type UtxoEntry struct {
	Height   uint32
	Coinbase bool
	Value    int64
	Script   []byte
}

func (e *UtxoEntry) encode() []byte {
	w := writer{buffer: make([]byte, 0, 13+len(e.Script))}
	w.uint32(e.Height)
	flags := byte(0)
	if e.Coinbase {
		flags |= flagCoinbase
	}
	w.byte(flags)
	w.uint64(uint64(e.Value))
	w.bytes(e.Script)
	return w.buffer
}

func decodeUtxo(value []byte) (*UtxoEntry, error) {
	r := reader{buffer: value}
	e := &UtxoEntry{
		Height:   r.uint32(),
		Coinbase: 0 != r.byte()&flagCoinbase,
		Value:    int64(r.uint64()),
		Script:   r.rest(),
	}
	if err := r.error("utxo"); nil != err {
		return nil, err
	}
	return e, nil
}

// Utxo - output point to unspent output
type Utxo struct {
	handle
}

// Put - add an unspent output
func (s *Utxo) Put(txn backend.Txn, point wire.OutPoint, entry *UtxoEntry) error {
	return s.put(txn, OutPointKey(point), entry.encode())
}

// Get - nil if spent or never existed
func (s *Utxo) Get(txn backend.Txn, point wire.OutPoint) (*UtxoEntry, error) {
	value, err := s.get(txn, OutPointKey(point))
	if nil != err || nil == value {
		return nil, err
	}
	return decodeUtxo(value)
}

// Delete - the output was spent
func (s *Utxo) Delete(txn backend.Txn, point wire.OutPoint) error {
	return s.remove(txn, OutPointKey(point))
}

// UndoItem - an output spent by a block, restored if the block is popped
type UndoItem struct {
	Point wire.OutPoint
	Entry *UtxoEntry
}

// Undo - height and output point to the output spent at that height
type Undo struct {
	handle
}

// Put - record an output spent at height
func (s *Undo) Put(txn backend.Txn, height uint32, point wire.OutPoint, entry *UtxoEntry) error {
	key := append(heightKey(height), OutPointKey(point)...)
	return s.put(txn, key, entry.encode())
}

// ForHeight - all outputs spent by the block at height
func (s *Undo) ForHeight(txn backend.Txn, height uint32) ([]UndoItem, error) {
	items := []UndoItem{}
	err := s.each(txn, heightKey(height), nil, func(key []byte, value []byte) (bool, error) {
		point, err := OutPointFromKey(key[4:])
		if nil != err {
			return false, err
		}
		entry, err := decodeUtxo(value)
		if nil != err {
			return false, err
		}
		items = append(items, UndoItem{Point: point, Entry: entry})
		return true, nil
	})
	return items, err
}

// DeleteHeight - discard rollback data of a height
func (s *Undo) DeleteHeight(txn backend.Txn, height uint32) error {
	keys, err := s.keys(txn, heightKey(height))
	if nil != err {
		return err
	}
	for _, k := range keys {
		if err := s.remove(txn, k); nil != err {
			return err
		}
	}
	return nil
}
