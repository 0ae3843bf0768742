// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/chaindb/chain"
)

func TestValid(t *testing.T) {
	for _, name := range []string{chain.Bitcoin, chain.Testnet, chain.Regtest, chain.Simnet, chain.Signet} {
		assert.True(t, chain.Valid(name), "valid: %s", name)
		assert.NotNil(t, chain.Params(name), "params: %s", name)
	}

	assert.False(t, chain.Valid("bitmark"), "foreign chain")
	assert.Nil(t, chain.Params(""), "empty name")
}

func TestParamsNetworks(t *testing.T) {
	assert.Equal(t, "mainnet", chain.Params(chain.Bitcoin).Name, "bitcoin")
	assert.Equal(t, "regtest", chain.Params(chain.Regtest).Name, "regtest")
}
