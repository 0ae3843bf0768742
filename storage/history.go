// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/extract"
	"github.com/bitmark-inc/chaindb/fault"
)

// Direction - credit for an output, debit for an input
type Direction byte

// directions
const (
	Credit Direction = 0
	Debit  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Credit:
		return "credit"
	case Debit:
		return "debit"
	default:
		return "unknown"
	}
}

// HistoryEntry - one event touching an address
//
// Index is the output index of a credit or the input index of a debit
type HistoryEntry struct {
	Address   extract.AddressKey
	Height    uint32
	Position  uint32
	Direction Direction
	Index     uint32
	Hash      chainhash.Hash
	Value     int64
}

const historyKeyLength = extract.AddressKeyLength + 4 + 4 + 1 + 4

// the key is fully determined by the entry so that a rollback can
// delete it without a scan
func (e *HistoryEntry) key() []byte {
	w := writer{buffer: make([]byte, 0, historyKeyLength)}
	w.bytes(e.Address[:])
	w.uint32(e.Height)
	w.uint32(e.Position)
	w.byte(byte(e.Direction))
	w.uint32(e.Index)
	return w.buffer
}

// History - address key to ordered events
type History struct {
	handle
}

// Put - add an event
func (s *History) Put(txn backend.Txn, entry *HistoryEntry) error {
	w := writer{buffer: make([]byte, 0, chainhash.HashSize+8)}
	w.bytes(entry.Hash[:])
	w.uint64(uint64(entry.Value))
	return s.put(txn, entry.key(), w.buffer)
}

// Delete - remove an event
func (s *History) Delete(txn backend.Txn, entry *HistoryEntry) error {
	return s.remove(txn, entry.key())
}

// Range - events for an address with fromHeight <= height <= toHeight
// in chain order, at most limit entries (zero for no limit)
func (s *History) Range(txn backend.Txn, address extract.AddressKey, fromHeight uint32, toHeight uint32, limit int) ([]HistoryEntry, error) {
	if limit < 0 {
		return nil, fault.ErrInvalidCount
	}
	if fromHeight > toHeight {
		return []HistoryEntry{}, nil
	}

	start := append([]byte{}, address[:]...)
	start = append(start, heightKey(fromHeight)...)

	entries := []HistoryEntry{}
	err := s.each(txn, address[:], start, func(key []byte, value []byte) (bool, error) {
		if historyKeyLength != len(key) {
			return false, fault.ErrInvalidKeyLength
		}
		k := reader{buffer: key[extract.AddressKeyLength:]}
		v := reader{buffer: value}
		e := HistoryEntry{
			Address:   address,
			Height:    k.uint32(),
			Position:  k.uint32(),
			Direction: Direction(k.byte()),
			Index:     k.uint32(),
			Hash:      v.hash(),
			Value:     int64(v.uint64()),
		}
		if err := v.error("history"); nil != err {
			return false, err
		}
		if e.Height > toHeight {
			return false, nil
		}
		entries = append(entries, e)
		return 0 == limit || len(entries) < limit, nil
	})
	if nil != err {
		return nil, err
	}
	return entries, nil
}
