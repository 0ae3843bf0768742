// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/fault"
)

// Heights - height to hash for the active chain
type Heights struct {
	handle
}

// Put - map a height to a block hash
func (s *Heights) Put(txn backend.Txn, height uint32, hash chainhash.Hash) error {
	return s.put(txn, heightKey(height), hash[:])
}

// Get - nil if no block at the height
func (s *Heights) Get(txn backend.Txn, height uint32) (*chainhash.Hash, error) {
	value, err := s.get(txn, heightKey(height))
	if nil != err || nil == value {
		return nil, err
	}
	hash, err := chainhash.NewHash(value)
	if nil != err {
		return nil, fault.ErrRecordTruncated
	}
	return hash, nil
}

// Delete - remove the height entry
func (s *Heights) Delete(txn backend.Txn, height uint32) error {
	return s.remove(txn, heightKey(height))
}

// BlockRecord - a stored block without its transactions
type BlockRecord struct {
	Header wire.BlockHeader
	Height uint32
	Hashes []chainhash.Hash
}

// Hash - block hash from the header
func (b *BlockRecord) Hash() chainhash.Hash {
	return b.Header.BlockHash()
}

// Blocks - block hash to header, height and transaction hashes
type Blocks struct {
	handle
}

// Put - store a block record keyed by its hash
func (s *Blocks) Put(txn backend.Txn, record *BlockRecord) error {
	buffer := bytes.NewBuffer(make([]byte, 0, wire.MaxBlockHeaderPayload+8+chainhash.HashSize*len(record.Hashes)))
	if err := record.Header.Serialize(buffer); nil != err {
		return err
	}
	w := writer{buffer: buffer.Bytes()}
	w.uint32(record.Height)
	w.uint32(uint32(len(record.Hashes)))
	for _, h := range record.Hashes {
		w.bytes(h[:])
	}
	hash := record.Hash()
	return s.put(txn, hash[:], w.buffer)
}

// Get - nil if the block is unknown
func (s *Blocks) Get(txn backend.Txn, hash chainhash.Hash) (*BlockRecord, error) {
	value, err := s.get(txn, hash[:])
	if nil != err || nil == value {
		return nil, err
	}

	record := &BlockRecord{}
	if err := record.Header.Deserialize(bytes.NewReader(value)); nil != err {
		return nil, fault.ErrRecordTruncated
	}

	r := reader{buffer: value[wire.MaxBlockHeaderPayload:]}
	record.Height = r.uint32()
	count := r.uint32()
	if nil == r.err && int(count)*chainhash.HashSize > len(r.buffer) {
		return nil, fault.ErrRecordTruncated
	}
	record.Hashes = make([]chainhash.Hash, count)
	for i := range record.Hashes {
		record.Hashes[i] = r.hash()
	}
	if err := r.error("block"); nil != err {
		return nil, err
	}
	return record, nil
}

// Delete - remove a block record
func (s *Blocks) Delete(txn backend.Txn, hash chainhash.Hash) error {
	return s.remove(txn, hash[:])
}

// ReorgBlocks - raw blocks kept for rollback when there is no
// transaction store
type ReorgBlocks struct {
	handle
}

// Put - keep a block for its height
func (s *ReorgBlocks) Put(txn backend.Txn, height uint32, block *wire.MsgBlock) error {
	buffer := bytes.Buffer{}
	if err := block.Serialize(&buffer); nil != err {
		return err
	}
	return s.put(txn, heightKey(height), buffer.Bytes())
}

// Get - nil if no block is kept for the height
func (s *ReorgBlocks) Get(txn backend.Txn, height uint32) (*wire.MsgBlock, error) {
	value, err := s.get(txn, heightKey(height))
	if nil != err || nil == value {
		return nil, err
	}
	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(value)); nil != err {
		return nil, fault.ErrRecordTruncated
	}
	return block, nil
}

// Delete - discard a kept block
func (s *ReorgBlocks) Delete(txn backend.Txn, height uint32) error {
	return s.remove(txn, heightKey(height))
}

// FullBlock - reassemble a block from its record and its confirmed
// transactions
func (s *Stores) FullBlock(txn backend.Txn, hash chainhash.Hash) (*wire.MsgBlock, error) {
	record, err := s.Blocks.Get(txn, hash)
	if nil != err {
		return nil, err
	}
	if nil == record {
		return nil, fmt.Errorf("%w: %s", fault.ErrBlockNotFound, hash)
	}

	block := &wire.MsgBlock{
		Header:       record.Header,
		Transactions: make([]*wire.MsgTx, 0, len(record.Hashes)),
	}
	for _, h := range record.Hashes {
		tx, err := s.Transactions.Get(txn, h)
		if nil != err {
			return nil, err
		}
		if nil == tx {
			return nil, fmt.Errorf("%w: %s in block: %s", fault.ErrTransactionNotFound, h, hash)
		}
		block.Transactions = append(block.Transactions, tx.Tx)
	}
	return block, nil
}
