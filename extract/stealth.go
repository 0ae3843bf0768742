// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package extract

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/fault"
)

// EphemeralKeyLength - unsigned ephemeral public key
const EphemeralKeyLength = 32

// Stealth - one stealth payment found in a transaction
type Stealth struct {
	Prefix       uint32
	Index        uint32 // output carrying the ephemeral key
	EphemeralKey [EphemeralKeyLength]byte
	Address      AddressKey
}

// StealthOutputs - scan adjacent output pairs for stealth payments
//
// output i must be a null-data script pushing at least 32 bytes and
// output i+1 must pay to an address
func StealthOutputs(tx *wire.MsgTx, params *chaincfg.Params) []Stealth {
	var result []Stealth
	for i := 0; i+1 < len(tx.TxOut); i += 1 {
		script := tx.TxOut[i].PkScript
		key, ok := ephemeralKey(script)
		if !ok {
			continue
		}
		keys := AddressKeys(tx.TxOut[i+1].PkScript, params)
		if 0 == len(keys) {
			continue
		}
		result = append(result, Stealth{
			Prefix:       StealthPrefix(script),
			Index:        uint32(i),
			EphemeralKey: key,
			Address:      keys[0],
		})
	}
	return result
}

// StealthPrefix - first 32 bits of the double sha256 of the script
func StealthPrefix(script []byte) uint32 {
	h := chainhash.DoubleHashB(script)
	return binary.BigEndian.Uint32(h[:4])
}

func ephemeralKey(script []byte) ([EphemeralKeyLength]byte, bool) {
	var key [EphemeralKeyLength]byte
	if txscript.NullDataTy != txscript.GetScriptClass(script) {
		return key, false
	}
	pushes, err := txscript.PushedData(script)
	if nil != err || 1 != len(pushes) || len(pushes[0]) < EphemeralKeyLength {
		return key, false
	}
	copy(key[:], pushes[0])
	return key, true
}

// StealthFilter - match the leading Length bits of a prefix
//
// a zero Length matches everything
type StealthFilter struct {
	Bits   uint32
	Length uint8
}

// NewStealthFilter - validate and normalise a filter
func NewStealthFilter(bits uint32, length uint8) (StealthFilter, error) {
	if length > 32 {
		return StealthFilter{}, fault.ErrInvalidFilter
	}
	return StealthFilter{Bits: bits & mask(length), Length: length}, nil
}

// Match - true if prefix starts with the filter bits
func (f StealthFilter) Match(prefix uint32) bool {
	return prefix&mask(f.Length) == f.Bits&mask(f.Length)
}

// KeyPrefix - the whole bytes of the filter, for narrowing a range scan
func (f StealthFilter) KeyPrefix() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, f.Bits)
	return b[:f.Length/8]
}

func mask(length uint8) uint32 {
	if 0 == length {
		return 0
	}
	return ^uint32(0) << (32 - uint32(length))
}
