// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package backend

import (
	"bytes"

	bolt "go.etcd.io/bbolt"

	"github.com/bitmark-inc/chaindb/fault"
)

// modern engine: copy-on-write B+tree with MVCC readers and a
// single serialised writer, each store is a bucket
type boltDB struct {
	db      *bolt.DB
	options Options
	limit   *limiter
}

func openBolt(name string, options Options, lim *limiter) (Backend, error) {
	timeout := options.OpenTimeout
	if timeout <= 0 {
		timeout = defaultOpenTimeout
	}
	size := options.MaxSize
	if size <= 0 {
		size = defaultMaxSize
	}

	db, err := bolt.Open(name, 0600, &bolt.Options{
		Timeout:         timeout,
		ReadOnly:        options.ReadOnly,
		InitialMmapSize: size,
		NoSync:          !options.FlushWrites,
	})
	if nil != err {
		return nil, fault.Unavailable("open bolt", err)
	}

	if !options.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			for _, store := range options.Stores {
				if _, err := tx.CreateBucketIfNotExists(bucketName(store)); nil != err {
					return err
				}
			}
			return nil
		})
		if nil != err {
			db.Close()
			return nil, fault.Unavailable("create bolt buckets", err)
		}
	}

	return &boltDB{
		db:      db,
		options: options,
		limit:   lim,
	}, nil
}

func bucketName(store StoreID) []byte {
	return []byte{byte(store)}
}

func (b *boltDB) Kind() Kind {
	return Bolt
}

func (b *boltDB) ReadOnly() bool {
	return b.options.ReadOnly
}

func (b *boltDB) Close() error {
	return b.db.Close()
}

func (b *boltDB) Begin(writable bool) (Txn, error) {
	if writable && b.options.ReadOnly {
		return nil, fault.ErrReadOnly
	}
	if err := b.limit.acquire(); nil != err {
		return nil, err
	}
	release := b.limit.releaser()

	tx, err := b.db.Begin(writable)
	if nil != err {
		release()
		return nil, fault.Unavailable("bolt begin", err)
	}
	return &boltTxn{
		tx:      tx,
		release: release,
	}, nil
}

type boltTxn struct {
	tx       *bolt.Tx
	release  func()
	finished bool
}

func (t *boltTxn) Writable() bool {
	return t.tx.Writable()
}

func (t *boltTxn) bucket(store StoreID) (*bolt.Bucket, error) {
	bucket := t.tx.Bucket(bucketName(store))
	if nil != bucket || !t.tx.Writable() {
		return bucket, nil
	}
	return t.tx.CreateBucket(bucketName(store))
}

func (t *boltTxn) Get(store StoreID, key []byte) ([]byte, error) {
	if t.finished {
		return nil, fault.ErrTransactionFinished
	}
	bucket := t.tx.Bucket(bucketName(store))
	if nil == bucket {
		return nil, nil
	}
	return bucket.Get(key), nil
}

func (t *boltTxn) Put(store StoreID, key []byte, value []byte) error {
	if t.finished {
		return fault.ErrTransactionFinished
	}
	if !t.tx.Writable() {
		return fault.ErrReadOnly
	}
	bucket, err := t.bucket(store)
	if nil != err {
		return fault.Unavailable("bolt bucket", err)
	}
	if nil == value {
		value = []byte{}
	}
	if err := bucket.Put(key, value); nil != err {
		return fault.Unavailable("bolt put", err)
	}
	return nil
}

func (t *boltTxn) Delete(store StoreID, key []byte) error {
	if t.finished {
		return fault.ErrTransactionFinished
	}
	if !t.tx.Writable() {
		return fault.ErrReadOnly
	}
	bucket := t.tx.Bucket(bucketName(store))
	if nil == bucket {
		return nil
	}
	if err := bucket.Delete(key); nil != err {
		return fault.Unavailable("bolt delete", err)
	}
	return nil
}

func (t *boltTxn) Range(store StoreID, prefix []byte, start []byte) Iterator {
	if t.finished {
		return &sliceIterator{err: fault.ErrTransactionFinished}
	}
	bucket := t.tx.Bucket(bucketName(store))
	if nil == bucket {
		return &sliceIterator{index: -1}
	}
	seek := prefix
	if len(start) > len(prefix) {
		seek = start
	}
	return &boltIterator{
		cursor: bucket.Cursor(),
		prefix: prefix,
		seek:   seek,
	}
}

func (t *boltTxn) Commit() error {
	if t.finished {
		return fault.ErrTransactionFinished
	}
	t.finished = true
	defer t.release()

	if !t.tx.Writable() {
		return t.tx.Rollback()
	}
	if err := t.tx.Commit(); nil != err {
		return fault.Unavailable("bolt commit", err)
	}
	return nil
}

func (t *boltTxn) Abort() {
	if t.finished {
		return
	}
	t.finished = true
	_ = t.tx.Rollback()
	t.release()
}

type boltIterator struct {
	cursor  *bolt.Cursor
	prefix  []byte
	seek    []byte
	started bool
	key     []byte
	value   []byte
}

func (i *boltIterator) Next() bool {
	if nil == i.cursor {
		return false
	}
	if i.started {
		i.key, i.value = i.cursor.Next()
	} else if 0 == len(i.seek) {
		i.started = true
		i.key, i.value = i.cursor.First()
	} else {
		i.started = true
		i.key, i.value = i.cursor.Seek(i.seek)
	}
	if nil == i.key || !bytes.HasPrefix(i.key, i.prefix) {
		i.cursor = nil
		return false
	}
	return true
}

func (i *boltIterator) Key() []byte {
	return i.key
}

func (i *boltIterator) Value() []byte {
	return i.value
}

func (i *boltIterator) Err() error {
	return nil
}

func (i *boltIterator) Release() {
	i.cursor = nil
}
