// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package backend

import (
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/atomic"

	"github.com/bitmark-inc/chaindb/fault"
)

// legacy engine: one leveldb database, each store is a key prefix
//
// writes are optimistic, a write transaction that began before
// another one committed fails at commit time
type levelDB struct {
	sync.Mutex
	db       *leveldb.DB
	options  Options
	limit    *limiter
	sequence atomic.Uint64
}

func openLevelDB(name string, options Options, lim *limiter) (Backend, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: options.ReadOnly,
		ReadOnly:       options.ReadOnly,
	}

	db, err := leveldb.OpenFile(name, opt)
	if nil != err {
		return nil, fault.Unavailable("open leveldb", err)
	}

	return &levelDB{
		db:      db,
		options: options,
		limit:   lim,
	}, nil
}

func (l *levelDB) Kind() Kind {
	return LevelDB
}

func (l *levelDB) ReadOnly() bool {
	return l.options.ReadOnly
}

func (l *levelDB) Close() error {
	return l.db.Close()
}

func (l *levelDB) Begin(writable bool) (Txn, error) {
	if writable && l.options.ReadOnly {
		return nil, fault.ErrReadOnly
	}
	if err := l.limit.acquire(); nil != err {
		return nil, err
	}
	release := l.limit.releaser()

	snapshot, err := l.db.GetSnapshot()
	if nil != err {
		release()
		return nil, fault.Unavailable("leveldb snapshot", err)
	}

	t := &levelTxn{
		owner:    l,
		snapshot: snapshot,
		release:  release,
	}
	if writable {
		t.batch = new(leveldb.Batch)
		t.overlay = make(map[string]overlayValue)
		t.sequence = l.sequence.Load()
	}
	return t, nil
}

// a buffered write, nil value is a delete
type overlayValue struct {
	value []byte
}

type levelTxn struct {
	owner    *levelDB
	snapshot *leveldb.Snapshot
	batch    *leveldb.Batch
	overlay  map[string]overlayValue
	sequence uint64
	release  func()
	finished bool
}

// prepend the store prefix onto the key
func prefixKey(store StoreID, key []byte) []byte {
	prefixedKey := make([]byte, 1, len(key)+1)
	prefixedKey[0] = byte(store)
	return append(prefixedKey, key...)
}

func (t *levelTxn) Writable() bool {
	return nil != t.batch
}

func (t *levelTxn) Get(store StoreID, key []byte) ([]byte, error) {
	if t.finished {
		return nil, fault.ErrTransactionFinished
	}
	k := prefixKey(store, key)
	if t.Writable() {
		if v, ok := t.overlay[string(k)]; ok {
			return v.value, nil
		}
	}
	value, err := t.snapshot.Get(k, nil)
	if leveldb.ErrNotFound == err {
		return nil, nil
	}
	if nil != err {
		return nil, fault.Unavailable("leveldb get", err)
	}
	return value, nil
}

func (t *levelTxn) Put(store StoreID, key []byte, value []byte) error {
	if t.finished {
		return fault.ErrTransactionFinished
	}
	if !t.Writable() {
		return fault.ErrReadOnly
	}
	if nil == value {
		value = []byte{}
	}
	k := prefixKey(store, key)
	t.batch.Put(k, value)
	t.overlay[string(k)] = overlayValue{value: value}
	return nil
}

func (t *levelTxn) Delete(store StoreID, key []byte) error {
	if t.finished {
		return fault.ErrTransactionFinished
	}
	if !t.Writable() {
		return fault.ErrReadOnly
	}
	k := prefixKey(store, key)
	t.batch.Delete(k)
	t.overlay[string(k)] = overlayValue{}
	return nil
}

func (t *levelTxn) Range(store StoreID, prefix []byte, start []byte) Iterator {
	if t.finished {
		return &sliceIterator{err: fault.ErrTransactionFinished}
	}

	r := ldb_util.BytesPrefix(prefixKey(store, prefix))
	if len(start) > len(prefix) {
		r.Start = prefixKey(store, start)
	}
	it := t.snapshot.NewIterator(r, nil)

	if !t.Writable() || 0 == len(t.overlay) {
		return &levelIterator{it: it}
	}

	return t.mergeOverlay(it, r)
}

// combine committed data with this transaction's buffered writes
func (t *levelTxn) mergeOverlay(it iterator.Iterator, r *ldb_util.Range) Iterator {
	defer it.Release()

	merged := make(map[string][]byte)
	for it.Next() {
		v := make([]byte, len(it.Value()))
		copy(v, it.Value())
		merged[string(it.Key())] = v
	}
	if err := it.Error(); nil != err {
		return &sliceIterator{err: fault.Unavailable("leveldb iterate", err)}
	}

	for k, v := range t.overlay {
		if k < string(r.Start) || k >= string(r.Limit) {
			continue
		}
		if nil == v.value {
			delete(merged, k)
		} else {
			merged[k] = v.value
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := &sliceIterator{
		index: -1,
	}
	for _, k := range keys {
		s.items = append(s.items, element{key: []byte(k)[1:], value: merged[k]})
	}
	return s
}

func (t *levelTxn) Commit() error {
	if t.finished {
		return fault.ErrTransactionFinished
	}
	defer t.Abort()

	if !t.Writable() || 0 == t.batch.Len() {
		return nil
	}

	l := t.owner
	l.Lock()
	defer l.Unlock()

	if l.sequence.Load() != t.sequence {
		return fault.ErrConflict
	}

	err := l.db.Write(t.batch, &ldb_opt.WriteOptions{Sync: l.options.FlushWrites})
	if nil != err {
		return fault.Unavailable("leveldb write", err)
	}
	l.sequence.Inc()
	return nil
}

func (t *levelTxn) Abort() {
	if t.finished {
		return
	}
	t.finished = true
	t.snapshot.Release()
	t.release()
}

// wraps a leveldb iterator, removing the store prefix
type levelIterator struct {
	it iterator.Iterator
}

func (i *levelIterator) Next() bool {
	return i.it.Next()
}

func (i *levelIterator) Key() []byte {
	return i.it.Key()[1:]
}

func (i *levelIterator) Value() []byte {
	return i.it.Value()
}

func (i *levelIterator) Err() error {
	if err := i.it.Error(); nil != err {
		return fault.Unavailable("leveldb iterate", err)
	}
	return nil
}

func (i *levelIterator) Release() {
	i.it.Release()
}
