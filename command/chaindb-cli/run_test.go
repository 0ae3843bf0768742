// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/chaindb/fault"
)

func TestParsePrefix(t *testing.T) {
	f, err := parsePrefix("1011")
	require.NoError(t, err, "parse")
	assert.Equal(t, uint8(4), f.Length, "length")
	assert.Equal(t, uint32(0xb0000000), f.Bits, "bits")
	assert.True(t, f.Match(0xb1234567), "match")
	assert.False(t, f.Match(0xa1234567), "no match")

	f, err = parsePrefix("")
	require.NoError(t, err, "empty")
	assert.True(t, f.Match(0x12345678), "matches everything")

	_, err = parsePrefix("102")
	assert.ErrorIs(t, err, ErrInvalidPrefix, "not binary")
	_, err = parsePrefix("111111111111111111111111111111111")
	assert.ErrorIs(t, err, ErrInvalidPrefix, "too long")
}

func TestHeights(t *testing.T) {
	from, to, err := heights(5, -1)
	require.NoError(t, err, "open ended")
	assert.Equal(t, uint32(5), from, "from")
	assert.Equal(t, ^uint32(0), to, "to")

	from, to, err = heights(5, 9)
	require.NoError(t, err, "range")
	assert.Equal(t, uint32(5), from, "from")
	assert.Equal(t, uint32(9), to, "to")

	_, _, err = heights(9, 5)
	assert.ErrorIs(t, err, fault.ErrInvalidHeight, "reversed")
	_, _, err = heights(-1, 5)
	assert.ErrorIs(t, err, fault.ErrInvalidHeight, "negative")
}
