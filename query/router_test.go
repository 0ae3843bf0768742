// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package query_test

import (
	"os"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/chaintest"
	"github.com/bitmark-inc/chaindb/coordinator"
	"github.com/bitmark-inc/chaindb/extract"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/query"
	"github.com/bitmark-inc/chaindb/schema"
	"github.com/bitmark-inc/chaindb/storage"
)

const (
	testingDirName = "testing"
)

var kinds = []backend.Kind{backend.LevelDB, backend.Bolt}

func TestMain(m *testing.M) {
	setupTestLogger()
	rc := m.Run()
	teardownTestLogger()
	os.Exit(rc)
}

func setupTestLogger() {
	removeFiles()
	_ = os.Mkdir(testingDirName, 0700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	_ = logger.Initialise(logging)
}

func removeFiles() {
	os.RemoveAll(testingDirName)
}

func teardownTestLogger() {
	logger.Finalise()
	removeFiles()
}

func setup(t *testing.T, kind backend.Kind, name string) (*coordinator.Coordinator, *query.Router) {
	p, err := schema.Lookup(name)
	require.NoError(t, err, "profile")
	stores, err := storage.New(p)
	require.NoError(t, err, "stores")

	b, err := backend.Open(kind, t.TempDir(), backend.Options{
		OpenTimeout: 100 * time.Millisecond,
		Stores:      stores.IDs(),
	})
	require.NoError(t, err, "open")
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, stores.Verify(b, logger.New("testing")), "verify")

	c, err := coordinator.New(b, stores, chaintest.Params, coordinator.Options{ReorgLimit: 10}, nil)
	require.NoError(t, err, "coordinator")
	return c, query.New(b, stores, chaintest.Params, nil)
}

// block 0 pays address 1, block 1 moves 5000 to address 2, block 2
// spends that output to address 3
func ingestSpends(t *testing.T, c *coordinator.Coordinator) (blocks []*wire.MsgBlock, t1 *wire.MsgTx, t2 *wire.MsgTx) {
	cb0 := chaintest.Coinbase(0, 10000, 1)
	b0 := chaintest.Block(chainhash.Hash{}, 0, 0, cb0)
	t1 = chaintest.Spend([]wire.OutPoint{chaintest.Point(cb0, 0)}, chaintest.Pay(5000, 2), chaintest.Pay(4000, 1))
	b1 := chaintest.Block(b0.BlockHash(), 1, 0, chaintest.Coinbase(1, 50, 9), t1)
	t2 = chaintest.Spend([]wire.OutPoint{chaintest.Point(t1, 0)}, chaintest.Pay(4500, 3))
	b2 := chaintest.Block(b1.BlockHash(), 2, 0, chaintest.Coinbase(2, 50, 9), t2)

	blocks = []*wire.MsgBlock{b0, b1, b2}
	for i, b := range blocks {
		require.NoError(t, c.IngestBlock(b, uint32(i)), "ingest: %d", i)
	}
	return blocks, t1, t2
}

func key(n byte) extract.AddressKey {
	k := extract.AddressKey{}
	copy(k[:], chaintest.AddressHash(n))
	return k
}

func TestRoundTrip(t *testing.T) {
	for _, kind := range kinds {
		for _, name := range schema.Presets() {
			c, r := setup(t, kind, name)

			tip, err := r.Tip()
			require.NoError(t, err, "tip")
			assert.Nil(t, tip, "%s/%s: empty database", kind, name)

			blocks, t1, _ := ingestSpends(t, c)

			for i, expected := range blocks {
				block, err := r.BlockByHeight(uint32(i))
				require.NoError(t, err, "%s/%s: block by height", kind, name)
				require.NotNil(t, block, "%s/%s: block %d", kind, name, i)
				assert.Equal(t, expected.Header, block.Header, "header")
				assert.Equal(t, uint32(i), block.Height, "height")
				require.Len(t, block.Transactions, len(expected.Transactions), "%s/%s: transactions", kind, name)
				for j, tx := range expected.Transactions {
					assert.Equal(t, tx.TxHash(), block.Transactions[j].TxHash(), "transaction %d", j)
					assert.Equal(t, tx.TxHash(), block.Hashes[j], "hash %d", j)
				}
			}

			block, err := r.BlockByHeight(3)
			require.NoError(t, err, "above tip")
			assert.Nil(t, block, "%s/%s: nothing above tip", kind, name)

			block, err = r.BlockByHash(chainhash.Hash{7})
			require.NoError(t, err, "unknown hash")
			assert.Nil(t, block, "%s/%s: unknown block", kind, name)

			hash, err := r.HashAtHeight(1)
			require.NoError(t, err, "hash at height")
			require.NotNil(t, hash, "hash present")
			assert.Equal(t, blocks[1].BlockHash(), *hash, "%s/%s: hash at height", kind, name)

			record, err := r.Transaction(t1.TxHash())
			p, _ := schema.Lookup(name)
			if p.Has(schema.Transactions) {
				require.NoError(t, err, "transaction")
				require.NotNil(t, record, "%s/%s: t1", kind, name)
				assert.Equal(t, uint32(1), record.Height, "t1 height")
			} else {
				assert.ErrorIs(t, err, fault.ErrIndexDisabled, "%s/%s: no transaction store", kind, name)
			}
		}
	}
}

func TestIsSpent(t *testing.T) {
	for _, kind := range kinds {
		for _, name := range schema.Presets() {
			c, r := setup(t, kind, name)
			_, t1, t2 := ingestSpends(t, c)

			spent, record, err := r.IsSpent(chaintest.Point(t1, 0))
			require.NoError(t, err, "is spent")
			assert.True(t, spent, "%s/%s: O1 spent", kind, name)
			if nil != record {
				assert.Equal(t, t2.TxHash(), record.Hash, "%s/%s: spender", kind, name)
				assert.Equal(t, uint32(2), record.Height, "spent at")
			}

			spent, _, err = r.IsSpent(chaintest.Point(t1, 1))
			require.NoError(t, err, "is spent")
			assert.False(t, spent, "%s/%s: change unspent", kind, name)

			spent, _, err = r.IsSpent(chaintest.Point(t2, 0))
			require.NoError(t, err, "is spent")
			assert.False(t, spent, "%s/%s: newest unspent", kind, name)
		}
	}
}

func TestIsSpentUnspendable(t *testing.T) {
	memo, err := txscript.NullDataScript([]byte("memo"))
	require.NoError(t, err, "null data script")

	for _, kind := range kinds {
		for _, name := range schema.Presets() {
			c, r := setup(t, kind, name)

			cb0 := chaintest.Coinbase(0, 10000, 1)
			b0 := chaintest.Block(chainhash.Hash{}, 0, 0, cb0)
			tx := chaintest.Spend([]wire.OutPoint{chaintest.Point(cb0, 0)}, chaintest.Pay(9000, 2), chaintest.Output{Value: 0, Script: memo})
			b1 := chaintest.Block(b0.BlockHash(), 1, 0, chaintest.Coinbase(1, 50, 9), tx)
			require.NoError(t, c.IngestBlock(b0, 0), "ingest: 0")
			require.NoError(t, c.IngestBlock(b1, 1), "ingest: 1")

			spent, record, err := r.IsSpent(chaintest.Point(tx, 1))
			require.NoError(t, err, "is spent")
			assert.Nil(t, record, "%s/%s: no spender", kind, name)

			missing, _, err := r.IsSpent(chaintest.Point(tx, 5))
			require.NoError(t, err, "is spent")

			p, _ := schema.Lookup(name)
			if p.Has(schema.Spends) || p.Has(schema.Transactions) {
				assert.False(t, spent, "%s/%s: unspendable output", kind, name)
				assert.False(t, missing, "%s/%s: output never created", kind, name)
			} else {
				assert.True(t, spent, "%s/%s: absent from unspent set", kind, name)
				assert.True(t, missing, "%s/%s: absent from unspent set", kind, name)
			}
		}
	}
}

func TestHistoryAndSummary(t *testing.T) {
	for _, kind := range kinds {
		c, r := setup(t, kind, schema.Full)
		_, t1, t2 := ingestSpends(t, c)

		history, err := r.History(key(2), 0, 100, 0)
		require.NoError(t, err, "history")
		require.Len(t, history, 2, "%s: entries", kind)
		assert.Equal(t, t1.TxHash(), history[0].Hash, "credit")
		assert.Equal(t, t2.TxHash(), history[1].Hash, "debit")

		limited, err := r.History(key(2), 0, 100, 1)
		require.NoError(t, err, "history")
		assert.Len(t, limited, 1, "%s: limit", kind)

		later, err := r.History(key(2), 2, 100, 0)
		require.NoError(t, err, "history")
		require.Len(t, later, 1, "%s: from height", kind)
		assert.Equal(t, storage.Debit, later[0].Direction, "debit only")

		_, err = r.History(key(2), 0, 100, -1)
		assert.ErrorIs(t, err, fault.ErrInvalidCount, "%s: negative limit", kind)

		summary, err := r.Summarise(key(1))
		require.NoError(t, err, "summary")
		assert.Equal(t, int64(14000), summary.Received, "%s: received", kind)
		assert.Equal(t, int64(10000), summary.Sent, "%s: sent", kind)
		assert.Equal(t, int64(4000), summary.Balance(), "%s: balance", kind)
		assert.Equal(t, 2, summary.Credits, "credits")
		assert.Equal(t, 1, summary.Debits, "debits")
		assert.Equal(t, uint32(0), summary.FirstHeight, "first")
		assert.Equal(t, uint32(1), summary.LastHeight, "last")

		k, err := r.AddressKey(chaintest.Address(2))
		require.NoError(t, err, "address key")
		assert.Equal(t, key(2), k, "%s: address key", kind)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	for _, kind := range kinds {
		c, r := setup(t, kind, schema.Full)
		chain := chaintest.Chain(3, 1, 0)
		require.NoError(t, c.IngestBlock(chain[0], 0), "ingest")
		require.NoError(t, c.IngestBlock(chain[1], 1), "ingest")

		err := r.View(func(s *query.Snapshot) error {
			before, err := s.Tip()
			require.NoError(t, err, "tip")
			epoch, err := s.Epoch()
			require.NoError(t, err, "epoch")

			require.NoError(t, c.IngestBlock(chain[2], 2), "ingest during snapshot")

			after, err := s.Tip()
			require.NoError(t, err, "tip")
			assert.Equal(t, before, after, "%s: snapshot tip unchanged", kind)
			assert.Equal(t, uint32(1), after.Height, "%s: snapshot height", kind)

			block, err := s.BlockByHeight(2)
			require.NoError(t, err, "block")
			assert.Nil(t, block, "%s: new block invisible", kind)

			again, err := s.Epoch()
			require.NoError(t, err, "epoch")
			assert.Equal(t, epoch, again, "%s: snapshot epoch unchanged", kind)
			return nil
		})
		require.NoError(t, err, "view")

		tip, err := r.Tip()
		require.NoError(t, err, "tip")
		assert.Equal(t, uint32(2), tip.Height, "%s: new snapshot sees commit", kind)
	}
}

func TestStealthAndPool(t *testing.T) {
	for _, kind := range kinds {
		c, r := setup(t, kind, schema.Full)
		cb0 := chaintest.Coinbase(0, 1000, 1)
		b0 := chaintest.Block(chainhash.Hash{}, 0, 0, cb0)
		tx := chaintest.Spend(
			[]wire.OutPoint{chaintest.Point(cb0, 0)},
			chaintest.Output{Value: 0, Script: chaintest.EphemeralScript(3)},
			chaintest.Pay(900, 5),
		)
		b1 := chaintest.Block(b0.BlockHash(), 1, 0, chaintest.Coinbase(1, 50, 9), tx)
		require.NoError(t, c.IngestBlock(b0, 0), "ingest")
		require.NoError(t, c.IngestBlock(b1, 1), "ingest")

		prefix := extract.StealthPrefix(chaintest.EphemeralScript(3))
		matching, err := extract.NewStealthFilter(prefix, 16)
		require.NoError(t, err, "filter")
		rows, err := r.StealthScan(matching, 0)
		require.NoError(t, err, "scan")
		require.Len(t, rows, 1, "%s: match", kind)
		assert.Equal(t, key(5), rows[0].Address, "address")

		rows, err = r.StealthScan(matching, 2)
		require.NoError(t, err, "scan")
		assert.Empty(t, rows, "%s: from height", kind)

		other, err := extract.NewStealthFilter(^prefix, 16)
		require.NoError(t, err, "filter")
		rows, err = r.StealthScan(other, 0)
		require.NoError(t, err, "scan")
		assert.Empty(t, rows, "%s: no match", kind)

		pending := chaintest.Spend([]wire.OutPoint{chaintest.Point(tx, 1)}, chaintest.Pay(800, 6))
		require.NoError(t, c.AcceptUnconfirmed(pending, 100, time.Now()), "accept")

		entry, err := r.Unconfirmed(pending.TxHash())
		require.NoError(t, err, "unconfirmed")
		require.NotNil(t, entry, "%s: in pool", kind)
		assert.Equal(t, uint32(1), entry.Height, "tip at acceptance")

		all, err := r.MempoolSnapshot()
		require.NoError(t, err, "mempool")
		assert.Len(t, all, 1, "%s: pool size", kind)

		entry, err = r.Unconfirmed(chainhash.Hash{3})
		require.NoError(t, err, "unconfirmed")
		assert.Nil(t, entry, "%s: unknown", kind)
	}
}
