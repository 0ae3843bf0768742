// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/extract"
	"github.com/bitmark-inc/chaindb/fault"
)

// StealthRow - a stealth payment
type StealthRow struct {
	Prefix       uint32
	Height       uint32
	Hash         chainhash.Hash
	Index        uint32
	EphemeralKey [extract.EphemeralKeyLength]byte
	Address      extract.AddressKey
}

const stealthKeyLength = 4 + 4 + chainhash.HashSize + 4

func (row *StealthRow) key() []byte {
	w := writer{buffer: make([]byte, 0, stealthKeyLength)}
	w.uint32(row.Prefix)
	w.uint32(row.Height)
	w.bytes(row.Hash[:])
	w.uint32(row.Index)
	return w.buffer
}

// Stealth - prefix to stealth payments
type Stealth struct {
	handle
}

// Put - add a row
func (s *Stealth) Put(txn backend.Txn, row *StealthRow) error {
	w := writer{buffer: make([]byte, 0, extract.EphemeralKeyLength+extract.AddressKeyLength)}
	w.bytes(row.EphemeralKey[:])
	w.bytes(row.Address[:])
	return s.put(txn, row.key(), w.buffer)
}

// Delete - remove a row
func (s *Stealth) Delete(txn backend.Txn, row *StealthRow) error {
	return s.remove(txn, row.key())
}

// Scan - rows whose prefix matches the filter at or above fromHeight
//
// ordered by prefix then height
func (s *Stealth) Scan(txn backend.Txn, filter extract.StealthFilter, fromHeight uint32) ([]StealthRow, error) {
	rows := []StealthRow{}
	err := s.each(txn, filter.KeyPrefix(), nil, func(key []byte, value []byte) (bool, error) {
		if stealthKeyLength != len(key) {
			return false, fault.ErrInvalidKeyLength
		}
		prefix := binary.BigEndian.Uint32(key)
		if !filter.Match(prefix) {
			return true, nil
		}
		k := reader{buffer: key[4:]}
		row := StealthRow{
			Prefix: prefix,
			Height: k.uint32(),
			Hash:   k.hash(),
			Index:  k.uint32(),
		}
		if row.Height < fromHeight {
			return true, nil
		}
		v := reader{buffer: value}
		copy(row.EphemeralKey[:], v.take(extract.EphemeralKeyLength))
		copy(row.Address[:], v.take(extract.AddressKeyLength))
		if err := v.error("stealth"); nil != err {
			return false, err
		}
		rows = append(rows, row)
		return true, nil
	})
	if nil != err {
		return nil, err
	}
	return rows, nil
}
