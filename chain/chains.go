// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"github.com/btcsuite/btcd/chaincfg"
)

// names of all chains
const (
	Bitcoin = "bitcoin"
	Testnet = "testnet"
	Regtest = "regtest"
	Simnet  = "simnet"
	Signet  = "signet"
)

// Valid - validate a chain name
func Valid(name string) bool {
	switch name {
	case Bitcoin, Testnet, Regtest, Simnet, Signet:
		return true
	default:
		return false
	}
}

// Params - address and genesis parameters for a chain
//
// returns nil for an unknown name
func Params(name string) *chaincfg.Params {
	switch name {
	case Bitcoin:
		return &chaincfg.MainNetParams
	case Testnet:
		return &chaincfg.TestNet3Params
	case Regtest:
		return &chaincfg.RegressionNetParams
	case Simnet:
		return &chaincfg.SimNetParams
	case Signet:
		return &chaincfg.SigNetParams
	default:
		return nil
	}
}
