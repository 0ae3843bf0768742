// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/chaindb"
	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/chaintest"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/query"
	"github.com/bitmark-inc/chaindb/schema"
	"github.com/bitmark-inc/chaindb/storage"
)

func TestOpenInvalid(t *testing.T) {
	directory := t.TempDir()

	items := []struct {
		name   string
		modify func(c *chaindb.Configuration)
	}{
		{"directory", func(c *chaindb.Configuration) { c.Directory = "" }},
		{"backend", func(c *chaindb.Configuration) { c.Backend = "lmdb" }},
		{"profile", func(c *chaindb.Configuration) { c.Profile = "everything" }},
		{"chain", func(c *chaindb.Configuration) { c.Chain = "dogecoin" }},
		{"max transactions", func(c *chaindb.Configuration) { c.MaxTransactions = -1 }},
		{"max size", func(c *chaindb.Configuration) { c.MaxSize = -1 }},
		{"duration", func(c *chaindb.Configuration) { c.MempoolMaxAge = -time.Second }},
	}

	for _, item := range items {
		c := config(backend.LevelDB, directory, schema.Full)
		item.modify(&c)
		_, err := chaindb.Open(c)
		assert.Error(t, err, item.name)
		assert.True(t, fault.IsErrInvalid(err), "%s: invalid class: %s", item.name, err)
	}
}

func TestOpenDefaults(t *testing.T) {
	db, err := chaindb.Open(chaindb.Configuration{Directory: t.TempDir()})
	require.NoError(t, err, "open")
	defer db.Close()

	c := db.Configuration()
	assert.Equal(t, chaindb.DefaultBackend, c.Backend, "backend")
	assert.Equal(t, chaindb.DefaultProfile, c.Profile, "profile")
	assert.Equal(t, chaindb.DefaultChain, c.Chain, "chain")
	assert.Equal(t, schema.Full, db.Profile().Name, "stores profile")
	assert.False(t, db.ReadOnly(), "writable")

	tip, err := db.Tip()
	require.NoError(t, err, "tip")
	assert.Nil(t, tip, "empty database")

	assert.NoError(t, db.Close(), "close")
	assert.NoError(t, db.Close(), "close again")
}

func TestReopenMismatch(t *testing.T) {
	directory := t.TempDir()
	db := open(t, config(backend.Bolt, directory, schema.Full))
	ingest(t, db, 0, chaintest.Chain(2, 1, 0)...)
	require.NoError(t, db.Close(), "close")

	_, err := chaindb.Open(config(backend.Bolt, directory, schema.Pruned))
	assert.ErrorIs(t, err, fault.ErrSchemaMismatch, "profile")
	assert.True(t, fault.IsErrSchema(err), "schema class")

	_, err = chaindb.Open(config(backend.LevelDB, directory, schema.Full))
	assert.ErrorIs(t, err, fault.ErrBackendMismatch, "backend")
	assert.True(t, fault.IsErrSchema(err), "schema class")

	db = open(t, config(backend.Bolt, directory, schema.Full))
	defer db.Close()
	tip, err := db.Tip()
	require.NoError(t, err, "tip")
	require.NotNil(t, tip, "tip")
	assert.Equal(t, uint32(1), tip.Height, "height survives reopen")
}

// height 1 holds T1 paying 5000 to address 7, height 2 holds T2
// spending that output
func TestSpendScenario(t *testing.T) {
	for _, kind := range kinds {
		for _, name := range []string{schema.Legacy, schema.LegacyFull, schema.Full} {
			db := open(t, config(kind, t.TempDir(), name))

			cb0 := chaintest.Coinbase(0, 10000, 1)
			b0 := chaintest.Block(chainhash.Hash{}, 0, 0, cb0)

			t1 := chaintest.Spend([]wire.OutPoint{chaintest.Point(cb0, 0)}, chaintest.Pay(5000, 7))
			b1 := chaintest.Block(b0.BlockHash(), 1, 0, chaintest.Coinbase(1, 50, 1), t1)
			o1 := chaintest.Point(t1, 0)

			t2 := chaintest.Spend([]wire.OutPoint{o1}, chaintest.Pay(4000, 8))
			b2 := chaintest.Block(b1.BlockHash(), 2, 0, chaintest.Coinbase(2, 50, 1), t2)

			ingest(t, db, 0, b0, b1)

			record, err := db.Transaction(t1.TxHash())
			require.NoError(t, err, "%s/%s: transaction", kind, name)
			require.NotNil(t, record, "%s/%s: T1 stored", kind, name)
			assert.Equal(t, t1.TxHash(), record.Tx.TxHash(), "%s/%s: T1", kind, name)
			assert.Equal(t, uint32(1), record.Height, "%s/%s: height", kind, name)

			spent, _, err := db.IsSpent(o1)
			require.NoError(t, err, "%s/%s: is spent", kind, name)
			assert.False(t, spent, "%s/%s: O1 unspent", kind, name)

			balance, err := db.AddressBalance(chaintest.Address(7))
			require.NoError(t, err, "%s/%s: balance", kind, name)
			assert.Equal(t, int64(5000), balance, "%s/%s: balance before spend", kind, name)

			ingest(t, db, 2, b2)

			spent, spender, err := db.IsSpent(o1)
			require.NoError(t, err, "%s/%s: is spent", kind, name)
			assert.True(t, spent, "%s/%s: O1 spent", kind, name)
			require.NotNil(t, spender, "%s/%s: spender indexed", kind, name)
			assert.Equal(t, t2.TxHash(), spender.Hash, "%s/%s: spender", kind, name)
			assert.Equal(t, uint32(2), spender.Height, "%s/%s: spend height", kind, name)

			key, err := db.AddressKey(chaintest.Address(7))
			require.NoError(t, err, "address key")
			history, err := db.History(key, 0, ^uint32(0), 0)
			require.NoError(t, err, "%s/%s: history", kind, name)
			require.Len(t, history, 2, "%s/%s: history", kind, name)
			assert.Equal(t, storage.Credit, history[0].Direction, "%s/%s: credit first", kind, name)
			assert.Equal(t, uint32(1), history[0].Height, "%s/%s: credit height", kind, name)
			assert.Equal(t, storage.Debit, history[1].Direction, "%s/%s: debit second", kind, name)
			assert.Equal(t, uint32(2), history[1].Height, "%s/%s: debit height", kind, name)

			// the commit invalidates the cached balance
			balance, err = db.AddressBalance(chaintest.Address(7))
			require.NoError(t, err, "%s/%s: balance", kind, name)
			assert.Equal(t, int64(0), balance, "%s/%s: balance after spend", kind, name)

			summary, err := db.HistorySummary(chaintest.Address(7))
			require.NoError(t, err, "%s/%s: summary", kind, name)
			assert.Equal(t, query.Summary{Received: 5000, Sent: 5000, Credits: 1, Debits: 1, FirstHeight: 1, LastHeight: 2}, summary, "%s/%s: summary", kind, name)

			require.NoError(t, db.Close(), "close")
		}
	}
}

func TestIngestIdempotent(t *testing.T) {
	for _, kind := range kinds {
		db := open(t, config(kind, t.TempDir(), schema.Full))
		blocks := chaintest.Chain(4, 1, 0)
		ingest(t, db, 0, blocks...)

		before := dump(t, db, true)
		epoch, err := db.Epoch()
		require.NoError(t, err, "epoch")

		for i, block := range blocks {
			require.NoError(t, db.IngestBlock(block, uint32(i)), "%s: re-ingest: %d", kind, i)
		}

		assert.Equal(t, before, dump(t, db, true), "%s: unchanged", kind)
		after, err := db.Epoch()
		require.NoError(t, err, "epoch")
		assert.Equal(t, epoch, after, "%s: no commits", kind)
		require.NoError(t, db.Close(), "close")
	}
}

// a fork at 100-105 whose first block shares a spend with the chain
// it replaces
func fork(parent chainhash.Hash, shared *wire.MsgTx, n byte, nonce uint32) []*wire.MsgBlock {
	first := chaintest.Block(parent, 100, nonce, chaintest.Coinbase(100, 50, n), shared)
	return append([]*wire.MsgBlock{first}, chaintest.Extend(first.BlockHash(), 101, 5, n, nonce)...)
}

func TestReorganizeReplacesChain(t *testing.T) {
	for _, kind := range kinds {
		for _, name := range []string{schema.Legacy, schema.Pruned, schema.Full} {
			c := config(kind, t.TempDir(), name)
			c.ReorgLimit = 10

			base := chaintest.Chain(100, 1, 0)
			cb0 := base[0].Transactions[0]
			shared := chaintest.Spend([]wire.OutPoint{chaintest.Point(cb0, 0)}, chaintest.Pay(40, 4))
			chainA := fork(base[99].BlockHash(), shared, 2, 0)
			chainB := fork(base[99].BlockHash(), shared, 3, 1)

			db := open(t, c)
			ingest(t, db, 0, base...)
			ingest(t, db, 100, chainA...)

			removed, err := db.Reorganize(99, chainB)
			require.NoError(t, err, "%s/%s: reorganize", kind, name)
			require.Len(t, removed, len(chainA), "%s/%s: removed", kind, name)
			for i, block := range removed {
				assert.Equal(t, chainA[i].BlockHash(), block.BlockHash(), "%s/%s: removed: %d", kind, name, i)
			}

			// a database that only ever saw chain B
			c.Directory = t.TempDir()
			reference := open(t, c)
			ingest(t, reference, 0, base...)
			ingest(t, reference, 100, chainB...)

			assert.Equal(t, dump(t, reference, false), dump(t, db, false), "%s/%s: same records as chain B alone", kind, name)

			for i, block := range chainA {
				b, err := db.BlockByHash(block.BlockHash())
				require.NoError(t, err, "block by hash")
				assert.Nil(t, b, "%s/%s: chain A block: %d", kind, name, 100+i)
			}
			for i, block := range chainB {
				hash, err := db.HashAtHeight(uint32(100 + i))
				require.NoError(t, err, "hash at height")
				require.NotNil(t, hash, "%s/%s: height: %d", kind, name, 100+i)
				assert.Equal(t, block.BlockHash(), *hash, "%s/%s: chain B at: %d", kind, name, 100+i)
			}

			spent, _, err := db.IsSpent(chaintest.Point(cb0, 0))
			require.NoError(t, err, "is spent")
			assert.True(t, spent, "%s/%s: shared spend kept", kind, name)

			if db.Profile().Has(schema.History) {
				key, err := db.AddressKey(chaintest.Address(2))
				require.NoError(t, err, "address key")
				history, err := db.History(key, 0, ^uint32(0), 0)
				require.NoError(t, err, "history")
				assert.Empty(t, history, "%s/%s: chain A address", kind, name)
			}

			require.NoError(t, reference.Close(), "close")
			require.NoError(t, db.Close(), "close")
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	for _, kind := range kinds {
		db := open(t, config(kind, t.TempDir(), schema.Full))
		blocks := chaintest.Chain(3, 1, 0)
		ingest(t, db, 0, blocks[:2]...)

		next := blocks[2]
		err := db.View(func(s *query.Snapshot) error {
			require.NoError(t, db.IngestBlock(next, 2), "%s: ingest during read", kind)

			tip, err := s.Tip()
			require.NoError(t, err, "tip")
			assert.Equal(t, uint32(1), tip.Height, "%s: old tip", kind)

			b, err := s.BlockByHash(next.BlockHash())
			require.NoError(t, err, "block")
			assert.Nil(t, b, "%s: new block invisible", kind)

			tx, err := s.Transaction(next.Transactions[0].TxHash())
			require.NoError(t, err, "transaction")
			assert.Nil(t, tx, "%s: new transaction invisible", kind)
			return nil
		})
		require.NoError(t, err, "view")

		err = db.View(func(s *query.Snapshot) error {
			tip, err := s.Tip()
			require.NoError(t, err, "tip")
			assert.Equal(t, uint32(2), tip.Height, "%s: new tip", kind)

			b, err := s.BlockByHash(next.BlockHash())
			require.NoError(t, err, "block")
			assert.NotNil(t, b, "%s: new block visible", kind)

			tx, err := s.Transaction(next.Transactions[0].TxHash())
			require.NoError(t, err, "transaction")
			assert.NotNil(t, tx, "%s: new transaction visible", kind)
			return nil
		})
		require.NoError(t, err, "view")
		require.NoError(t, db.Close(), "close")
	}
}

// a reader held open while the database grows well past 16 MB must not
// stall the writer or later readers
func TestLongReaderDoesNotStallWriter(t *testing.T) {
	const (
		count       = 48
		scriptSize  = 512 * 1024
		waitTimeout = 30 * time.Second
	)

	db := open(t, config(backend.Bolt, t.TempDir(), schema.Full))
	defer db.Close()

	genesis := chaintest.Chain(1, 1, 0)
	ingest(t, db, 0, genesis...)

	holding := make(chan struct{})
	release := make(chan struct{})
	viewed := make(chan uint32, 1)
	go func() {
		var height uint32
		_ = db.View(func(s *query.Snapshot) error {
			close(holding)
			<-release
			tip, err := s.Tip()
			if nil == err && nil != tip {
				height = tip.Height
			}
			return err
		})
		viewed <- height
	}()
	<-holding

	released := false
	defer func() {
		if !released {
			close(release)
			<-viewed
		}
	}()

	ingested := make(chan error, 1)
	go func() {
		script := make([]byte, scriptSize)
		parent := genesis[0].BlockHash()
		for h := uint32(1); h <= count; h += 1 {
			coinbase := chaintest.Coinbase(h, 50, 2)
			coinbase.AddTxOut(wire.NewTxOut(1, script))
			block := chaintest.Block(parent, h, 0, coinbase)
			if err := db.IngestBlock(block, h); nil != err {
				ingested <- err
				return
			}
			parent = block.BlockHash()
		}
		ingested <- nil
	}()

	select {
	case err := <-ingested:
		require.NoError(t, err, "ingest while a reader is open")
	case <-time.After(waitTimeout):
		require.FailNow(t, "writer stalled by an open reader")
	}

	tips := make(chan *storage.Tip, 1)
	go func() {
		tip, err := db.Tip()
		assert.NoError(t, err, "fresh reader tip")
		tips <- tip
	}()

	select {
	case tip := <-tips:
		require.NotNil(t, tip, "fresh reader tip")
		assert.Equal(t, uint32(count), tip.Height, "fresh reader sees every block")
	case <-time.After(waitTimeout):
		require.FailNow(t, "fresh reader stalled")
	}

	released = true
	close(release)
	assert.Equal(t, uint32(0), <-viewed, "held snapshot keeps its tip")
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	for _, kind := range kinds {
		directory := t.TempDir()
		db := open(t, config(kind, directory, schema.Full))
		blocks := chaintest.Chain(4, 1, 0)
		ingest(t, db, 0, blocks[:3]...)
		require.NoError(t, db.Close(), "close")

		c := config(kind, directory, schema.Full)
		c.ReadOnly = true
		db = open(t, c)
		assert.True(t, db.ReadOnly(), "read only")
		before := dump(t, db, true)

		err := db.IngestBlock(blocks[3], 3)
		assert.ErrorIs(t, err, fault.ErrReadOnly, "%s: ingest", kind)
		assert.True(t, fault.IsErrProcess(err), "%s: process class", kind)

		_, err = db.Reorganize(1, blocks[2:3])
		assert.ErrorIs(t, err, fault.ErrReadOnly, "%s: reorganize", kind)

		tx := chaintest.Spend([]wire.OutPoint{chaintest.Point(blocks[0].Transactions[0], 0)}, chaintest.Pay(10, 2))
		err = db.AcceptUnconfirmed(tx, 1, time.Now())
		assert.ErrorIs(t, err, fault.ErrReadOnly, "%s: accept", kind)
		err = db.EvictUnconfirmed(tx.TxHash(), 0)
		assert.ErrorIs(t, err, fault.ErrReadOnly, "%s: evict", kind)
		_, err = db.TrimUnconfirmed(0)
		assert.ErrorIs(t, err, fault.ErrReadOnly, "%s: trim", kind)

		// the engine refuses writes too
		_, err = db.Backend().Begin(true)
		assert.ErrorIs(t, err, fault.ErrReadOnly, "%s: engine write", kind)

		assert.Equal(t, before, dump(t, db, true), "%s: storage unchanged", kind)
		tip, err := db.Tip()
		require.NoError(t, err, "tip")
		assert.Equal(t, uint32(2), tip.Height, "%s: tip unchanged", kind)
		require.NoError(t, db.Close(), "close")
	}
}

func TestReadOnlyEmpty(t *testing.T) {
	for _, kind := range kinds {
		c := config(kind, filepath.Join(t.TempDir(), "absent"), schema.Full)
		c.ReadOnly = true
		_, err := chaindb.Open(c)
		assert.Error(t, err, "%s: nothing to open", kind)
	}
}

func TestSingleWriter(t *testing.T) {
	for _, kind := range kinds {
		directory := t.TempDir()
		db := open(t, config(kind, directory, schema.Pruned))
		ingest(t, db, 0, chaintest.Chain(1, 1, 0)...)

		_, err := chaindb.Open(config(kind, directory, schema.Pruned))
		assert.True(t, fault.IsErrUnavailable(err), "%s: second writer: %v", kind, err)

		c := config(kind, directory, schema.Pruned)
		c.ReadOnly = true
		_, err = chaindb.Open(c)
		assert.True(t, fault.IsErrUnavailable(err), "%s: reader beside writer: %v", kind, err)

		require.NoError(t, db.Close(), "close")

		// readers share the database
		first := open(t, c)
		second := open(t, c)
		require.NoError(t, second.Close(), "close")
		require.NoError(t, first.Close(), "close")
	}
}

// a read only process sees the epoch the writer persisted, so its
// cached aggregates follow each writer session
func TestReadOnlyCacheFollowsWriter(t *testing.T) {
	for _, kind := range kinds {
		directory := t.TempDir()
		readOnly := config(kind, directory, schema.Full)
		readOnly.ReadOnly = true

		db := open(t, config(kind, directory, schema.Full))
		blocks := chaintest.Chain(4, 5, 0)
		ingest(t, db, 0, blocks[:2]...)
		require.NoError(t, db.Close(), "close")

		reader := open(t, readOnly)
		balance, err := reader.AddressBalance(chaintest.Address(5))
		require.NoError(t, err, "balance")
		assert.Equal(t, int64(100), balance, "%s: first session", kind)
		epoch, err := reader.Epoch()
		require.NoError(t, err, "epoch")
		assert.Equal(t, uint64(2), epoch, "%s: persisted epoch", kind)
		require.NoError(t, reader.Close(), "close")

		db = open(t, config(kind, directory, schema.Full))
		ingest(t, db, 2, blocks[2:]...)
		require.NoError(t, db.Close(), "close")

		reader = open(t, readOnly)
		balance, err = reader.AddressBalance(chaintest.Address(5))
		require.NoError(t, err, "balance")
		assert.Equal(t, int64(200), balance, "%s: second session", kind)
		epoch, err = reader.Epoch()
		require.NoError(t, err, "epoch")
		assert.Equal(t, uint64(4), epoch, "%s: persisted epoch", kind)
		require.NoError(t, reader.Close(), "close")
	}
}

func TestMempoolSweeper(t *testing.T) {
	for _, kind := range kinds {
		c := config(kind, t.TempDir(), schema.Full)
		c.MempoolMaxAge = time.Hour
		c.MempoolSweepInterval = 10 * time.Millisecond

		db := open(t, c)
		blocks := chaintest.Chain(1, 1, 0)
		ingest(t, db, 0, blocks...)

		cb0 := blocks[0].Transactions[0]
		old := chaintest.Spend([]wire.OutPoint{chaintest.Point(cb0, 0)}, chaintest.Pay(10, 2))
		recent := chaintest.Spend([]wire.OutPoint{{Index: 7}}, chaintest.Pay(10, 3))
		require.NoError(t, db.AcceptUnconfirmed(old, 5, time.Now().Add(-2*time.Hour)), "accept old")
		require.NoError(t, db.AcceptUnconfirmed(recent, 5, time.Now()), "accept recent")

		assert.Eventually(t, func() bool {
			entry, err := db.Unconfirmed(old.TxHash())
			return nil == err && nil == entry
		}, 5*time.Second, 10*time.Millisecond, "%s: old entry swept", kind)

		entry, err := db.Unconfirmed(recent.TxHash())
		require.NoError(t, err, "unconfirmed")
		assert.NotNil(t, entry, "%s: recent entry kept", kind)

		require.NoError(t, db.Close(), "close")
	}
}
