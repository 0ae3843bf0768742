// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package extract_test

import (
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/chaindb/chaintest"
	"github.com/bitmark-inc/chaindb/extract"
	"github.com/bitmark-inc/chaindb/fault"
)

func TestAddressKeys(t *testing.T) {
	keys := extract.AddressKeys(chaintest.PayTo(7), chaintest.Params)
	require.Equal(t, 1, len(keys), "pay to pubkey hash")
	assert.Equal(t, chaintest.AddressHash(7), keys[0][:], "key is the hash160")

	assert.Equal(t, 0, len(extract.AddressKeys(chaintest.EphemeralScript(1), chaintest.Params)), "null data has no address")
	assert.Equal(t, 0, len(extract.AddressKeys([]byte{0xff, 0x00}, chaintest.Params)), "garbage script")
}

func TestKeyFromAddress(t *testing.T) {
	k, err := extract.KeyFromAddress(chaintest.Address(3), chaintest.Params)
	require.NoError(t, err, "decode")
	assert.Equal(t, chaintest.AddressHash(3), k[:], "key")

	h, err := extract.KeyFromHex(k.String())
	assert.NoError(t, err, "from hex")
	assert.Equal(t, k, h, "hex form")

	_, err = extract.KeyFromAddress("not-an-address", chaintest.Params)
	assert.True(t, fault.IsErrInvalid(err), "bad address: %v", err)

	_, err = extract.KeyFromAddress(chaintest.Address(3), &chaincfg.MainNetParams)
	assert.True(t, fault.IsErrInvalid(err), "wrong network: %v", err)

	_, err = extract.KeyFromHex("abcd")
	assert.Equal(t, fault.ErrInvalidKeyLength, err, "short hex")
}

func TestStealthOutputs(t *testing.T) {
	tx := chaintest.Spend(
		[]wire.OutPoint{{Index: 0}},
		chaintest.Pay(10, 1),
		chaintest.Output{Value: 0, Script: chaintest.EphemeralScript(9)},
		chaintest.Pay(20, 2),
		chaintest.Output{Value: 0, Script: chaintest.EphemeralScript(8)},
	)

	found := extract.StealthOutputs(tx, chaintest.Params)
	require.Equal(t, 1, len(found), "last ephemeral output has no pair")

	s := found[0]
	assert.Equal(t, uint32(1), s.Index, "index")
	assert.Equal(t, chaintest.AddressHash(2), s.Address[:], "payment address")
	assert.Equal(t, byte(0x02), s.EphemeralKey[0], "key start")
	assert.Equal(t, byte(9), s.EphemeralKey[31], "key end")
	assert.Equal(t, extract.StealthPrefix(chaintest.EphemeralScript(9)), s.Prefix, "prefix")

	// prefix is taken from the hash of the script, not the key bytes
	h := chainhash.DoubleHashB(chaintest.EphemeralScript(9))
	assert.Equal(t, binary.BigEndian.Uint32(h[:4]), s.Prefix, "prefix from script hash")
}

func TestStealthFilter(t *testing.T) {
	f, err := extract.NewStealthFilter(0xa0000000, 3)
	require.NoError(t, err, "filter")

	assert.True(t, f.Match(0xa1234567), "101 prefix")
	assert.True(t, f.Match(0xbfffffff), "101 prefix upper")
	assert.False(t, f.Match(0xc0000000), "110 prefix")
	assert.Equal(t, []byte{}, f.KeyPrefix(), "less than one byte")

	f, err = extract.NewStealthFilter(0x12345678, 12)
	require.NoError(t, err, "filter")
	assert.Equal(t, uint32(0x12300000), f.Bits, "masked")
	assert.Equal(t, []byte{0x12}, f.KeyPrefix(), "one whole byte")

	all, _ := extract.NewStealthFilter(0, 0)
	assert.True(t, all.Match(0xdeadbeef), "empty filter")

	exact, _ := extract.NewStealthFilter(0xdeadbeef, 32)
	assert.True(t, exact.Match(0xdeadbeef), "full match")
	assert.False(t, exact.Match(0xdeadbeee), "full mismatch")

	_, err = extract.NewStealthFilter(0, 33)
	assert.Equal(t, fault.ErrInvalidFilter, err, "too long")
}
