// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package backend

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bitmark-inc/chaindb/fault"
)

// StoreID - single byte identifying a store, used as the leveldb key
// prefix and as the bolt bucket name
type StoreID byte

// Kind - the embedded engine underneath a database
type Kind string

// supported engines
const (
	LevelDB Kind = "leveldb"
	Bolt    Kind = "bolt"
)

// on-disk names inside the database directory
const (
	levelDBName = "chain.leveldb"
	boltName    = "chain.bolt"
)

// defaults
const (
	defaultOpenTimeout = 2 * time.Second

	// bolt map size: 64 GiB on 64 bit systems, 1 GiB on 32 bit
	defaultMaxSize = (1 << 30) << (^uint(0) >> 63 * 6)
)

// Options - engine tuning
type Options struct {
	ReadOnly        bool          // refuse all write transactions
	MaxTransactions int64         // concurrent open transactions, zero for no limit
	FlushWrites     bool          // sync to disk on every commit
	OpenTimeout     time.Duration // bolt: wait this long for the file lock
	MaxSize         int           // bolt: mmap size, growing past it waits for every reader
	Stores          []StoreID     // bolt: buckets created on a writable open
}

// Backend - handle to one opened database
type Backend interface {
	Kind() Kind
	ReadOnly() bool
	Begin(writable bool) (Txn, error)
	Close() error
}

// Txn - a read snapshot or a write transaction
//
// a write transaction reads its own writes
type Txn interface {
	Writable() bool
	Get(store StoreID, key []byte) ([]byte, error)
	Put(store StoreID, key []byte, value []byte) error
	Delete(store StoreID, key []byte) error
	Range(store StoreID, prefix []byte, start []byte) Iterator
	Commit() error
	Abort()
}

// Iterator - ascending scan of keys sharing a prefix
//
// Key and Value are only valid until the next call to Next and the
// store identifier is not part of the key
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Release()
}

// Valid - validate a backend name
func Valid(kind Kind) bool {
	switch kind {
	case LevelDB, Bolt:
		return true
	default:
		return false
	}
}

// Exists - true if a database of this kind is present in directory
func Exists(kind Kind, directory string) bool {
	name := levelDBName
	if Bolt == kind {
		name = boltName
	}
	_, err := os.Stat(filepath.Join(directory, name))
	return nil == err
}

// Open - open or create the database files for a kind of engine
func Open(kind Kind, directory string, options Options) (Backend, error) {
	if !Valid(kind) {
		return nil, fault.ErrInvalidBackend
	}

	// a directory holds a single engine's files
	for _, other := range []Kind{LevelDB, Bolt} {
		if other != kind && Exists(other, directory) {
			return nil, fault.ErrBackendMismatch
		}
	}

	if !options.ReadOnly {
		if err := os.MkdirAll(directory, 0700); nil != err {
			return nil, fault.Unavailable("create database directory", err)
		}
	}

	lim := newLimiter(options.MaxTransactions)
	switch kind {
	case LevelDB:
		return openLevelDB(filepath.Join(directory, levelDBName), options, lim)
	default:
		return openBolt(filepath.Join(directory, boltName), options, lim)
	}
}

// bounds the number of open transactions
type limiter struct {
	sem *semaphore.Weighted
}

func newLimiter(max int64) *limiter {
	if max <= 0 {
		return &limiter{}
	}
	return &limiter{sem: semaphore.NewWeighted(max)}
}

func (l *limiter) acquire() error {
	if nil == l.sem {
		return nil
	}
	if !l.sem.TryAcquire(1) {
		return fault.ErrTooManyTransactions
	}
	return nil
}

// returns a function that releases exactly once
func (l *limiter) releaser() func() {
	if nil == l.sem {
		return func() {}
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.sem.Release(1) })
	}
}
