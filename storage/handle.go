// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/schema"
)

// common part of every store
type handle struct {
	id      backend.StoreID
	name    string
	enabled bool
	layout  int
}

func (h *handle) initialise(from handle) {
	*h = from
}

// ID - the backend store identifier
func (h *handle) ID() backend.StoreID {
	return h.id
}

// Enabled - true if the store is part of the profile
func (h *handle) Enabled() bool {
	return nil != h && h.enabled
}

func (h *handle) utxoLayout() bool {
	return schema.LayoutUtxo == h.layout
}

// the returned value is a copy
func (h *handle) get(txn backend.Txn, key []byte) ([]byte, error) {
	if !h.Enabled() {
		return nil, fault.ErrIndexDisabled
	}
	value, err := txn.Get(h.id, key)
	if nil != err || nil == value {
		return nil, err
	}
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (h *handle) put(txn backend.Txn, key []byte, value []byte) error {
	if !h.Enabled() {
		return fault.ErrIndexDisabled
	}
	return txn.Put(h.id, key, value)
}

func (h *handle) remove(txn backend.Txn, key []byte) error {
	if !h.Enabled() {
		return fault.ErrIndexDisabled
	}
	return txn.Delete(h.id, key)
}

// call fn for each key/value with the prefix, starting at start
//
// key and value are copies
func (h *handle) each(txn backend.Txn, prefix []byte, start []byte, fn func(key []byte, value []byte) (bool, error)) error {
	if !h.Enabled() {
		return fault.ErrIndexDisabled
	}
	it := txn.Range(h.id, prefix, start)
	defer it.Release()

	for it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		value := make([]byte, len(it.Value()))
		copy(value, it.Value())

		more, err := fn(key, value)
		if nil != err {
			return err
		}
		if !more {
			break
		}
	}
	return it.Err()
}

// collect the keys with a prefix, for deleting after iteration ends
func (h *handle) keys(txn backend.Txn, prefix []byte) ([][]byte, error) {
	result := [][]byte{}
	err := h.each(txn, prefix, nil, func(key []byte, _ []byte) (bool, error) {
		result = append(result, key)
		return true, nil
	})
	return result, err
}
