// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/fault"
)

// SpendRecord - the input that spent an output
type SpendRecord struct {
	Hash   chainhash.Hash
	Index  uint32
	Height uint32
}

// Spends - output point to spending input
type Spends struct {
	handle
}

// Put - record a spend
//
// storing the same spend again is accepted, a different spender of
// the same output is a double spend
func (s *Spends) Put(txn backend.Txn, point wire.OutPoint, record SpendRecord) error {
	existing, err := s.Get(txn, point)
	if nil != err {
		return err
	}
	if nil != existing {
		if *existing == record {
			return nil
		}
		return fmt.Errorf("%w: %v spent by %v:%d", fault.ErrDoubleSpend, point, existing.Hash, existing.Index)
	}

	w := writer{buffer: make([]byte, 0, chainhash.HashSize+8)}
	w.bytes(record.Hash[:])
	w.uint32(record.Index)
	w.uint32(record.Height)
	return s.put(txn, OutPointKey(point), w.buffer)
}

// Get - nil if the output is not spent
func (s *Spends) Get(txn backend.Txn, point wire.OutPoint) (*SpendRecord, error) {
	value, err := s.get(txn, OutPointKey(point))
	if nil != err || nil == value {
		return nil, err
	}
	r := reader{buffer: value}
	record := &SpendRecord{
		Hash:   r.hash(),
		Index:  r.uint32(),
		Height: r.uint32(),
	}
	if err := r.error("spend"); nil != err {
		return nil, err
	}
	return record, nil
}

// Delete - the spend was rolled back
func (s *Spends) Delete(txn backend.Txn, point wire.OutPoint) error {
	return s.remove(txn, OutPointKey(point))
}
