// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import (
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/background"
	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/cache"
	"github.com/bitmark-inc/chaindb/chain"
	"github.com/bitmark-inc/chaindb/coordinator"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/measure"
	"github.com/bitmark-inc/chaindb/query"
	"github.com/bitmark-inc/chaindb/schema"
	"github.com/bitmark-inc/chaindb/storage"
)

// DB - an open chain database
//
// all queries of the router are available directly, writes fail with
// fault.ErrReadOnly on a read only database
type DB struct {
	*query.Router

	sync.Mutex
	log           *logger.L
	configuration Configuration
	backend       backend.Backend
	stores        *storage.Stores
	cache         *cache.Cache
	writer        *coordinator.Coordinator // nil if read only
	background    *background.T
	closed        bool
}

// Open - open or create a database
func Open(configuration Configuration) (*DB, error) {
	log := logger.New("chaindb")

	configuration, profile, err := configuration.resolve()
	if nil != err {
		log.Errorf("configuration: %s", err)
		return nil, err
	}

	stores, err := storage.New(profile)
	if nil != err {
		return nil, err
	}

	b, err := backend.Open(configuration.Backend, configuration.Directory, backend.Options{
		ReadOnly:        configuration.ReadOnly,
		MaxTransactions: configuration.MaxTransactions,
		FlushWrites:     configuration.FlushWrites,
		OpenTimeout:     configuration.OpenTimeout,
		MaxSize:         configuration.MaxSize,
		Stores:          stores.IDs(),
	})
	if nil != err {
		log.Errorf("open: %q  error: %s", configuration.Directory, err)
		return nil, err
	}

	if err := stores.Verify(b, log); nil != err {
		b.Close()
		return nil, err
	}

	params := chain.Params(configuration.Chain)
	hooks := measure.New(configuration.Instrument)
	router := query.New(b, stores, params, hooks)

	c, err := cache.New(router, configuration.CacheExpiry, hooks)
	if nil != err {
		b.Close()
		return nil, err
	}

	db := &DB{
		Router:        router,
		log:           log,
		configuration: configuration,
		backend:       b,
		stores:        stores,
		cache:         c,
	}

	if configuration.ReadOnly {
		log.Infof("opened read only: %q", configuration.Directory)
		return db, nil
	}

	db.writer, err = coordinator.New(b, stores, params, coordinator.Options{
		IndexStartHeight: configuration.IndexStartHeight,
		ReorgLimit:       configuration.ReorgLimit,
		ConflictRetries:  configuration.ConflictRetries,
	}, hooks)
	if nil != err {
		c.Close()
		b.Close()
		return nil, err
	}
	db.writer.OnCommit(c.Advance)

	if configuration.MempoolMaxAge > 0 && profile.Has(schema.Unconfirmed) {
		processes := background.Processes{
			&sweeper{
				log:      logger.New("sweeper"),
				writer:   db.writer,
				maxAge:   configuration.MempoolMaxAge,
				interval: configuration.MempoolSweepInterval,
			},
		}
		db.background = background.Start(processes, nil)
	}

	log.Infof("opened: %q  epoch: %d", configuration.Directory, db.writer.Epoch())
	return db, nil
}

// Close - stop background work and release the engine
//
// a second Close does nothing
func (db *DB) Close() error {
	db.Lock()
	defer db.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	if nil != db.background {
		db.background.Stop()
	}
	db.cache.Close()

	err := db.backend.Close()
	if nil != err {
		db.log.Errorf("close: %s", err)
		return err
	}
	db.log.Info("closed")
	return nil
}

// Configuration - the resolved configuration
func (db *DB) Configuration() Configuration {
	return db.configuration
}

// Profile - schema profile of the database
func (db *DB) Profile() schema.Profile {
	return db.stores.Profile()
}

// ReadOnly - true if writes are refused
func (db *DB) ReadOnly() bool {
	return nil == db.writer
}

// Stores - the store set, for tools that read raw records
func (db *DB) Stores() *storage.Stores {
	return db.stores
}

// Backend - the underlying engine
func (db *DB) Backend() backend.Backend {
	return db.backend
}

// IngestBlock - append a block at height to the active chain
func (db *DB) IngestBlock(block *wire.MsgBlock, height uint32) error {
	if nil == db.writer {
		return fault.ErrReadOnly
	}
	return db.writer.IngestBlock(block, height)
}

// Reorganize - replace every block above forkHeight with blocks
//
// returns the removed blocks, lowest first
func (db *DB) Reorganize(forkHeight uint32, blocks []*wire.MsgBlock) ([]*wire.MsgBlock, error) {
	if nil == db.writer {
		return nil, fault.ErrReadOnly
	}
	return db.writer.Reorganize(forkHeight, blocks)
}

// AcceptUnconfirmed - add a transaction to the unconfirmed pool
func (db *DB) AcceptUnconfirmed(tx *wire.MsgTx, fee int64, arrival time.Time) error {
	if nil == db.writer {
		return fault.ErrReadOnly
	}
	return db.writer.AcceptUnconfirmed(tx, fee, arrival)
}

// EvictUnconfirmed - remove a transaction from the unconfirmed pool
func (db *DB) EvictUnconfirmed(hash chainhash.Hash, reason coordinator.EvictReason) error {
	if nil == db.writer {
		return fault.ErrReadOnly
	}
	return db.writer.EvictUnconfirmed(hash, reason)
}

// EvictExpired - remove unconfirmed transactions that arrived more than
// maxAge before now
func (db *DB) EvictExpired(now time.Time, maxAge time.Duration) (int, error) {
	if nil == db.writer {
		return 0, fault.ErrReadOnly
	}
	return db.writer.EvictExpired(now, maxAge)
}

// TrimUnconfirmed - evict the lowest fee rate transactions until the
// pool holds no more than maxBytes
func (db *DB) TrimUnconfirmed(maxBytes uint64) (int, error) {
	if nil == db.writer {
		return 0, fault.ErrReadOnly
	}
	return db.writer.TrimUnconfirmed(maxBytes)
}

// AddressBalance - received less sent by an encoded address
func (db *DB) AddressBalance(address string) (int64, error) {
	key, err := db.AddressKey(address)
	if nil != err {
		return 0, err
	}
	return db.cache.AddressBalance(key)
}

// HistorySummary - totals over the history of an encoded address
func (db *DB) HistorySummary(address string) (query.Summary, error) {
	key, err := db.AddressKey(address)
	if nil != err {
		return query.Summary{}, err
	}
	return db.cache.HistorySummary(key)
}
