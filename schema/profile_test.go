// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/schema"
)

func TestPresetsAreValid(t *testing.T) {
	assert.Equal(t, []string{"full", "legacy", "legacy_full", "pruned"}, schema.Presets(), "preset names")

	for _, name := range schema.Presets() {
		p, err := schema.Lookup(name)
		require.NoError(t, err, "lookup: %s", name)
		assert.NoError(t, p.Validate(), "validate: %s", name)
	}

	_, err := schema.Lookup("everything")
	assert.True(t, fault.IsErrInvalid(err), "unknown preset: %v", err)
}

func TestHas(t *testing.T) {
	legacy, _ := schema.Lookup(schema.Legacy)
	assert.True(t, legacy.Has(schema.History), "legacy history")
	assert.False(t, legacy.Has(schema.Stealth), "legacy stealth")
	assert.False(t, legacy.Has(schema.Utxo), "legacy utxo")

	pruned, _ := schema.Lookup(schema.Pruned)
	assert.False(t, pruned.Has(schema.Transactions), "pruned transactions")
	assert.True(t, pruned.Has(schema.ReorgBlocks), "pruned reorg blocks")
}

func TestValidate(t *testing.T) {
	bad := []schema.Profile{
		{Name: "", Layout: 1, Indexes: []schema.Index{schema.Transactions, schema.Spends}},
		{Name: "x", Layout: 3, Indexes: []schema.Index{schema.Transactions, schema.Spends}},
		{Name: "x", Layout: 1, Indexes: []schema.Index{schema.Spends}},
		{Name: "x", Layout: 1, Indexes: []schema.Index{schema.Transactions, schema.Spends, schema.Utxo}},
		{Name: "x", Layout: 2, Indexes: []schema.Index{schema.Transactions}},
		{Name: "x", Layout: 2, Indexes: []schema.Index{schema.Utxo}},
		{Name: "x", Layout: 2, Indexes: []schema.Index{schema.Utxo, schema.Transactions, schema.Utxo}},
		{Name: "x", Layout: 2, Indexes: []schema.Index{schema.Utxo, schema.Transactions, "bloom"}},
	}
	for i, p := range bad {
		err := p.Validate()
		assert.True(t, fault.IsErrInvalid(err), "%d: %v", i, err)
	}

	custom := schema.Profile{
		Name:    "explorer",
		Layout:  schema.LayoutUtxo,
		Indexes: []schema.Index{schema.Utxo, schema.Transactions, schema.History},
	}
	assert.NoError(t, custom.Validate(), "custom profile")
}

func TestEncodeDecode(t *testing.T) {
	full, _ := schema.Lookup(schema.Full)
	assert.Equal(t, "full;2;history,spends,stealth,transactions,unconfirmed,utxo", full.String(), "encoded")

	p, err := schema.Decode(full.Encode())
	require.NoError(t, err, "decode")
	assert.True(t, full.Equal(p), "decoded profile")

	legacy, _ := schema.Lookup(schema.Legacy)
	assert.False(t, full.Equal(legacy), "different profiles")

	renamed := schema.Profile{
		Name:    "mirror",
		Layout:  full.Layout,
		Indexes: []schema.Index{schema.Utxo, schema.Unconfirmed, schema.Transactions, schema.Stealth, schema.Spends, schema.History},
	}
	assert.True(t, full.Equal(renamed), "name and index order are ignored")

	_, err = schema.Decode([]byte("garbage"))
	assert.True(t, fault.IsErrSchema(err), "garbage: %v", err)
}
