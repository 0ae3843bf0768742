// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/schema"
)

// Meta - database identity, chain tip and commit epoch
type Meta struct {
	handle
}

var (
	versionKey = []byte("version")
	schemaKey  = []byte("schema")
	backendKey = []byte("backend")
	tipKey     = []byte("tip")
	floorKey   = []byte("floor")
	epochKey   = []byte("epoch")
)

// Tip - the highest block of the active chain
type Tip struct {
	Height uint32
	Hash   chainhash.Hash
}

// Version - database layout version, false if never written
func (m *Meta) Version(txn backend.Txn) (uint32, bool, error) {
	value, err := m.get(txn, versionKey)
	if nil != err || nil == value {
		return 0, false, err
	}
	if 4 != len(value) {
		return 0, false, fault.ErrRecordTruncated
	}
	return binary.BigEndian.Uint32(value), true, nil
}

// PutVersion - tag the database
func (m *Meta) PutVersion(txn backend.Txn, version uint32) error {
	return m.put(txn, versionKey, heightKey(version))
}

// Profile - the persisted schema profile
func (m *Meta) Profile(txn backend.Txn) (schema.Profile, error) {
	value, err := m.get(txn, schemaKey)
	if nil != err {
		return schema.Profile{}, err
	}
	return schema.Decode(value)
}

// PutProfile - persist the schema profile
func (m *Meta) PutProfile(txn backend.Txn, profile schema.Profile) error {
	return m.put(txn, schemaKey, profile.Encode())
}

// Backend - the engine that created the database
func (m *Meta) Backend(txn backend.Txn) (backend.Kind, error) {
	value, err := m.get(txn, backendKey)
	return backend.Kind(value), err
}

// PutBackend - persist the engine kind
func (m *Meta) PutBackend(txn backend.Txn, kind backend.Kind) error {
	return m.put(txn, backendKey, []byte(kind))
}

// Tip - false if the chain is empty
func (m *Meta) Tip(txn backend.Txn) (Tip, bool, error) {
	value, err := m.get(txn, tipKey)
	if nil != err || nil == value {
		return Tip{}, false, err
	}
	r := reader{buffer: value}
	tip := Tip{
		Height: r.uint32(),
		Hash:   r.hash(),
	}
	if err := r.error("tip"); nil != err {
		return Tip{}, false, err
	}
	return tip, true, nil
}

// PutTip - move the tip
func (m *Meta) PutTip(txn backend.Txn, tip Tip) error {
	w := writer{}
	w.uint32(tip.Height)
	w.bytes(tip.Hash[:])
	return m.put(txn, tipKey, w.buffer)
}

// DeleteTip - the chain is empty
func (m *Meta) DeleteTip(txn backend.Txn) error {
	return m.remove(txn, tipKey)
}

// Floor - lowest height that still has rollback data
func (m *Meta) Floor(txn backend.Txn) (uint32, error) {
	value, err := m.get(txn, floorKey)
	if nil != err || nil == value {
		return 0, err
	}
	if 4 != len(value) {
		return 0, fault.ErrRecordTruncated
	}
	return binary.BigEndian.Uint32(value), nil
}

// PutFloor - record the pruning point
func (m *Meta) PutFloor(txn backend.Txn, height uint32) error {
	return m.put(txn, floorKey, heightKey(height))
}

// Epoch - count of committed writes
func (m *Meta) Epoch(txn backend.Txn) (uint64, error) {
	value, err := m.get(txn, epochKey)
	if nil != err || nil == value {
		return 0, err
	}
	if 8 != len(value) {
		return 0, fault.ErrWrongEpochRecordLength
	}
	return binary.BigEndian.Uint64(value), nil
}

// PutEpoch - set the commit count
func (m *Meta) PutEpoch(txn backend.Txn, epoch uint64) error {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, epoch)
	return m.put(txn, epochKey, value)
}
