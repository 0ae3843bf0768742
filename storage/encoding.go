// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/fault"
)

// OutPointLength - bytes in an output point key
const OutPointLength = chainhash.HashSize + 4

// OutPointKey - hash followed by big endian index
func OutPointKey(point wire.OutPoint) []byte {
	key := make([]byte, OutPointLength)
	copy(key, point.Hash[:])
	binary.BigEndian.PutUint32(key[chainhash.HashSize:], point.Index)
	return key
}

// OutPointFromKey - reverse of OutPointKey
func OutPointFromKey(key []byte) (wire.OutPoint, error) {
	var point wire.OutPoint
	if len(key) < OutPointLength {
		return point, fault.ErrInvalidKeyLength
	}
	copy(point.Hash[:], key[:chainhash.HashSize])
	point.Index = binary.BigEndian.Uint32(key[chainhash.HashSize:OutPointLength])
	return point, nil
}

func heightKey(height uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, height)
	return key
}

// sequential record decoder, the first short read is remembered
type reader struct {
	buffer []byte
	err    error
}

func (r *reader) take(n int) []byte {
	if nil != r.err {
		return nil
	}
	if len(r.buffer) < n {
		r.err = fault.ErrRecordTruncated
		return nil
	}
	b := r.buffer[:n]
	r.buffer = r.buffer[n:]
	return b
}

func (r *reader) uint32() uint32 {
	b := r.take(4)
	if nil == b {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) uint64() uint64 {
	b := r.take(8)
	if nil == b {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) byte() byte {
	b := r.take(1)
	if nil == b {
		return 0
	}
	return b[0]
}

func (r *reader) hash() chainhash.Hash {
	var h chainhash.Hash
	copy(h[:], r.take(chainhash.HashSize))
	return h
}

func (r *reader) rest() []byte {
	if nil != r.err {
		return nil
	}
	b := r.buffer
	r.buffer = nil
	return b
}

func (r *reader) error(what string) error {
	if nil == r.err {
		return nil
	}
	return fmt.Errorf("%s: %w", what, r.err)
}

// record encoder
type writer struct {
	buffer []byte
}

func (w *writer) uint32(n uint32) {
	w.buffer = binary.BigEndian.AppendUint32(w.buffer, n)
}

func (w *writer) uint64(n uint64) {
	w.buffer = binary.BigEndian.AppendUint64(w.buffer, n)
}

func (w *writer) byte(b byte) {
	w.buffer = append(w.buffer, b)
}

func (w *writer) bytes(b []byte) {
	w.buffer = append(w.buffer, b...)
}
