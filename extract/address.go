// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package extract

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/bitmark-inc/chaindb/fault"
)

// AddressKeyLength - bytes in a history key
const AddressKeyLength = 20

// AddressKey - hash160 identifying an address in the history store
//
// pay-to-pubkey outputs share the key of the matching pay-to-pubkey-hash
// address; 32 byte witness programs are reduced with hash160
type AddressKey [AddressKeyLength]byte

// String - hex form
func (k AddressKey) String() string {
	return hex.EncodeToString(k[:])
}

// AddressKeys - the history keys for an output script
//
// non-standard and null-data scripts have no keys
func AddressKeys(pkScript []byte, params *chaincfg.Params) []AddressKey {
	_, addresses, _, err := txscript.ExtractPkScriptAddrs(pkScript, params)
	if nil != err {
		return nil
	}

	keys := make([]AddressKey, 0, len(addresses))
	for _, a := range addresses {
		keys = append(keys, keyOf(a))
	}
	return keys
}

// KeyFromAddress - the history key for an encoded address
func KeyFromAddress(address string, params *chaincfg.Params) (AddressKey, error) {
	a, err := btcutil.DecodeAddress(address, params)
	if nil != err {
		return AddressKey{}, fault.InvalidError("invalid address: " + err.Error())
	}
	if !a.IsForNet(params) {
		return AddressKey{}, fault.InvalidError("address is for another network: " + address)
	}
	return keyOf(a), nil
}

// KeyFromHex - parse the hex form of a key
func KeyFromHex(s string) (AddressKey, error) {
	var k AddressKey
	b, err := hex.DecodeString(s)
	if nil != err || AddressKeyLength != len(b) {
		return k, fault.ErrInvalidKeyLength
	}
	copy(k[:], b)
	return k, nil
}

func keyOf(a btcutil.Address) AddressKey {
	var k AddressKey
	b := a.ScriptAddress()
	if AddressKeyLength == len(b) {
		copy(k[:], b)
	} else {
		copy(k[:], btcutil.Hash160(b))
	}
	return k
}
