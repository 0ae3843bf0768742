// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import (
	"fmt"
	"time"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/chain"
	"github.com/bitmark-inc/chaindb/coordinator"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/schema"
)

// defaults for a zero configuration field
const (
	DefaultBackend              = backend.LevelDB
	DefaultProfile              = schema.Full
	DefaultChain                = chain.Bitcoin
	DefaultMempoolSweepInterval = time.Minute
)

// Configuration - fixed for the life of an open database
type Configuration struct {
	Directory  string       // database directory, created if writable
	Backend    backend.Kind // engine
	Profile    string       // schema profile preset
	ReadOnly   bool         // refuse every write
	Chain      string       // address encoding rules
	Instrument bool         // record prometheus metrics

	IndexStartHeight uint32 // spends, history and stealth start at this height
	ReorgLimit       uint32 // blocks of rollback data kept, zero keeps everything
	ConflictRetries  int    // zero for the default, negative for none

	FlushWrites     bool          // sync every commit
	MaxTransactions int64         // concurrent open transactions, zero for no limit
	OpenTimeout     time.Duration // wait for the engine file lock
	MaxSize         int           // bolt map size, zero for the default

	CacheExpiry time.Duration // lifetime of cached aggregates, zero for the defaults

	MempoolMaxAge        time.Duration // zero disables the expiry sweeper
	MempoolSweepInterval time.Duration
}

// fill in defaults and check every field
func (c Configuration) resolve() (Configuration, schema.Profile, error) {
	if "" == c.Directory {
		return c, schema.Profile{}, fmt.Errorf("%w: database directory is not set", fault.ErrInvalidPath)
	}

	if "" == c.Backend {
		c.Backend = DefaultBackend
	}
	if !backend.Valid(c.Backend) {
		return c, schema.Profile{}, fmt.Errorf("%w: %q", fault.ErrInvalidBackend, c.Backend)
	}

	if "" == c.Profile {
		c.Profile = DefaultProfile
	}
	profile, err := schema.Lookup(c.Profile)
	if nil != err {
		return c, schema.Profile{}, err
	}

	if "" == c.Chain {
		c.Chain = DefaultChain
	}
	if !chain.Valid(c.Chain) {
		return c, schema.Profile{}, fmt.Errorf("%w: %q", fault.ErrInvalidChain, c.Chain)
	}

	if 0 == c.ConflictRetries {
		c.ConflictRetries = coordinator.DefaultConflictRetries
	}
	if c.MaxTransactions < 0 {
		return c, schema.Profile{}, fmt.Errorf("%w: max transactions: %d", fault.ErrInvalidCount, c.MaxTransactions)
	}
	if c.MaxSize < 0 {
		return c, schema.Profile{}, fmt.Errorf("%w: max size: %d", fault.ErrInvalidCount, c.MaxSize)
	}

	for _, d := range []time.Duration{c.OpenTimeout, c.CacheExpiry, c.MempoolMaxAge, c.MempoolSweepInterval} {
		if d < 0 {
			return c, schema.Profile{}, fmt.Errorf("%w: %s", fault.ErrInvalidDuration, d)
		}
	}
	if c.MempoolMaxAge > 0 && 0 == c.MempoolSweepInterval {
		c.MempoolSweepInterval = DefaultMempoolSweepInterval
	}

	return c, profile, nil
}
