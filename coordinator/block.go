// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/measure"
	"github.com/bitmark-inc/chaindb/storage"
)

// IngestBlock - add the next block of the active chain
//
// ingesting the block already stored at its height does nothing
func (c *Coordinator) IngestBlock(block *wire.MsgBlock, height uint32) error {
	if c.backend.ReadOnly() {
		return fault.ErrReadOnly
	}

	c.permit.Lock()
	defer c.permit.Unlock()

	var ch *changes
	err := c.write("ingest", func(txn backend.Txn) (bool, error) {
		var err error
		ch, err = c.push(txn, block, height)
		return nil != ch, err
	})
	if nil != err {
		return err
	}
	if nil == ch {
		c.log.Debugf("block: %s at: %d already stored", block.BlockHash(), height)
		return nil
	}

	c.log.Infof("ingested block: %s at: %d  transactions: %d", ch.hash, height, len(ch.hashes))
	c.hooks.Ingested(height, len(ch.hashes))
	return nil
}

// Reorganize - replace every block above forkHeight with blocks
//
// blocks[0] is at forkHeight+1, the removed blocks are returned lowest
// first, the whole change is one transaction
func (c *Coordinator) Reorganize(forkHeight uint32, blocks []*wire.MsgBlock) ([]*wire.MsgBlock, error) {
	if c.backend.ReadOnly() {
		return nil, fault.ErrReadOnly
	}

	c.permit.Lock()
	defer c.permit.Unlock()

	var removed []*wire.MsgBlock
	var added []*changes
	err := c.write("reorganize", func(txn backend.Txn) (bool, error) {
		removed = nil
		added = nil

		tip, found, err := c.stores.Meta.Tip(txn)
		if nil != err {
			return false, err
		}
		if !found || forkHeight > tip.Height {
			return false, fmt.Errorf("%w: fork: %d above tip", fault.ErrInvalidHeight, forkHeight)
		}
		if forkHeight == tip.Height && 0 == len(blocks) {
			return false, nil
		}

		if c.stores.Undo.Enabled() || c.stores.ReorgBlocks.Enabled() {
			floor, err := c.stores.Meta.Floor(txn)
			if nil != err {
				return false, err
			}
			if forkHeight+1 < floor {
				return false, fmt.Errorf("%w: fork: %d  oldest rollback: %d", fault.ErrReorgTooDeep, forkHeight, floor)
			}
		}

		outgoing := make([]*changes, 0, tip.Height-forkHeight)
		for height := tip.Height; height > forkHeight; height -= 1 {
			ch, err := c.pop(txn, height)
			if nil != err {
				return false, err
			}
			outgoing = append(outgoing, ch)
		}

		incoming := make(map[chainhash.Hash]struct{})
		for i, block := range blocks {
			height := forkHeight + 1 + uint32(i)
			ch, err := c.push(txn, block, height)
			if nil != err {
				return false, err
			}
			for _, hash := range ch.hashes {
				incoming[hash] = struct{}{}
			}
			added = append(added, ch)
		}

		newHeight := forkHeight + uint32(len(blocks))
		for i := len(outgoing) - 1; i >= 0; i -= 1 {
			ch := outgoing[i]
			removed = append(removed, ch.block)
			if err := c.resurrect(txn, ch, incoming, newHeight); nil != err {
				return false, err
			}
		}
		return true, nil
	})
	if nil != err {
		return nil, err
	}

	if len(removed) > 0 {
		c.log.Warnf("reorganized at fork: %d  removed: %d  added: %d", forkHeight, len(removed), len(added))
		c.hooks.Reorganized(len(removed))
	}
	for _, ch := range added {
		c.hooks.Ingested(ch.height, len(ch.hashes))
	}
	return removed, nil
}

// return transactions of a removed block to the pool unless the new
// chain confirmed them
func (c *Coordinator) resurrect(txn backend.Txn, ch *changes, incoming map[chainhash.Hash]struct{}, height uint32) error {
	if !c.stores.Unconfirmed.Enabled() {
		return nil
	}
	now := c.now()
	for i, tx := range ch.block.Transactions {
		if ch.coinbase[i] {
			continue
		}
		hash := ch.hashes[i]
		if _, ok := incoming[hash]; ok {
			continue
		}
		entry := &storage.UnconfirmedEntry{
			Tx:      tx,
			Arrival: now,
			Height:  height,
			Fee:     ch.fees[hash],
			Size:    uint32(tx.SerializeSize()),
		}
		if err := c.stores.Unconfirmed.Put(txn, entry); nil != err {
			return err
		}
	}
	return nil
}

// validate and apply a block on top of the tip
//
// nil changes if the same block is already at the height
func (c *Coordinator) push(txn backend.Txn, block *wire.MsgBlock, height uint32) (*changes, error) {
	if 0 == len(block.Transactions) {
		return nil, fault.ErrEmptyBlock
	}

	var ch *changes
	present := false
	err := c.phase(measure.PhaseDecompose, eventDecompose, func() error {
		tip, found, err := c.stores.Meta.Tip(txn)
		if nil != err {
			return err
		}

		hash := block.BlockHash()
		switch {
		case !found:
			if 0 != height {
				return fmt.Errorf("%w: first block at: %d", fault.ErrOutOfOrder, height)
			}
		case height <= tip.Height:
			existing, err := c.stores.Heights.Get(txn, height)
			if nil != err {
				return err
			}
			if nil != existing && *existing == hash {
				present = true
				return nil
			}
			return fmt.Errorf("%w: block: %s at: %d  tip: %d", fault.ErrOutOfOrder, hash, height, tip.Height)
		case height != tip.Height+1:
			return fmt.Errorf("%w: block at: %d  tip: %d", fault.ErrOutOfOrder, height, tip.Height)
		case block.Header.PrevBlock != tip.Hash:
			return fmt.Errorf("%w: block: %s  previous: %s  tip: %s", fault.ErrMissingParent, hash, block.Header.PrevBlock, tip.Hash)
		}

		ch, err = c.decompose(txn, block, height, nil)
		return err
	})
	if nil != err || present {
		return nil, err
	}

	err = c.phase(measure.PhaseApply, eventApply, func() error {
		if err := c.apply(txn, ch); nil != err {
			return err
		}
		return c.prune(txn, height)
	})
	if nil != err {
		return nil, err
	}
	return ch, nil
}

// remove the tip block, which must be at height
func (c *Coordinator) pop(txn backend.Txn, height uint32) (*changes, error) {
	start := time.Now()
	defer func() {
		c.hooks.Phase(measure.PhasePop, time.Since(start))
	}()

	block, err := c.stored(txn, height)
	if nil != err {
		return nil, err
	}

	var undo map[wire.OutPoint]*storage.UtxoEntry
	if c.stores.Utxo.Enabled() {
		items, err := c.stores.Undo.ForHeight(txn, height)
		if nil != err {
			return nil, err
		}
		undo = make(map[wire.OutPoint]*storage.UtxoEntry, len(items))
		for _, item := range items {
			undo[item.Point] = item.Entry
		}
	}

	var ch *changes
	err = c.phase(measure.PhaseDecompose, eventDecompose, func() error {
		ch, err = c.decompose(txn, block, height, undo)
		return err
	})
	if nil != err {
		return nil, err
	}

	err = c.phase(measure.PhaseApply, eventApply, func() error {
		return c.revert(txn, ch)
	})
	if nil != err {
		return nil, err
	}
	return ch, nil
}

// the full block at a height of the active chain
func (c *Coordinator) stored(txn backend.Txn, height uint32) (*wire.MsgBlock, error) {
	hash, err := c.stores.Heights.Get(txn, height)
	if nil != err {
		return nil, err
	}
	if nil == hash {
		return nil, fmt.Errorf("%w: height: %d", fault.ErrBlockNotFound, height)
	}

	if c.stores.ReorgBlocks.Enabled() {
		block, err := c.stores.ReorgBlocks.Get(txn, height)
		if nil != err {
			return nil, err
		}
		if nil != block {
			return block, nil
		}
	}

	if !c.stores.Transactions.Enabled() {
		return nil, fmt.Errorf("%w: no copy of block: %s", fault.ErrReorgTooDeep, hash)
	}

	return c.stores.FullBlock(txn, *hash)
}

// write every record of a block
func (c *Coordinator) apply(txn backend.Txn, ch *changes) error {
	s := c.stores

	record := &storage.BlockRecord{
		Header: ch.block.Header,
		Height: ch.height,
		Hashes: ch.hashes,
	}
	if err := s.Blocks.Put(txn, record); nil != err {
		return err
	}
	if err := s.Heights.Put(txn, ch.height, ch.hash); nil != err {
		return err
	}
	if err := s.Meta.PutTip(txn, storage.Tip{Height: ch.height, Hash: ch.hash}); nil != err {
		return err
	}

	if s.Transactions.Enabled() {
		for i, tx := range ch.block.Transactions {
			r := &storage.TxRecord{
				Height:   ch.height,
				Position: uint32(i),
				Coinbase: ch.coinbase[i],
				Tx:       tx,
			}
			if err := s.Transactions.Put(txn, r); nil != err {
				return err
			}
		}
	}

	if s.Utxo.Enabled() {
		for _, spent := range ch.spent {
			if spent.inBlock {
				continue
			}
			if err := s.Utxo.Delete(txn, spent.point); nil != err {
				return err
			}
			if err := s.Undo.Put(txn, ch.height, spent.point, spent.entry); nil != err {
				return err
			}
		}
		for _, created := range ch.created {
			if _, ok := ch.spentInBlock[created.point]; ok {
				continue
			}
			if txscript.IsUnspendable(created.entry.Script) {
				continue
			}
			if err := s.Utxo.Put(txn, created.point, created.entry); nil != err {
				return err
			}
		}
	}

	if s.ReorgBlocks.Enabled() {
		if err := s.ReorgBlocks.Put(txn, ch.height, ch.block); nil != err {
			return err
		}
	}

	if ch.indexed {
		if s.Spends.Enabled() {
			for _, spent := range ch.spent {
				r := storage.SpendRecord{
					Hash:   spent.spender,
					Index:  spent.input,
					Height: ch.height,
				}
				if err := s.Spends.Put(txn, spent.point, r); nil != err {
					return err
				}
			}
		}
		for i := range ch.history {
			if err := s.History.Put(txn, &ch.history[i]); nil != err {
				return err
			}
		}
		for i := range ch.stealth {
			if err := s.Stealth.Put(txn, &ch.stealth[i]); nil != err {
				return err
			}
		}
	}

	// confirmed transactions leave the pool
	if s.Unconfirmed.Enabled() {
		for _, hash := range ch.hashes {
			if err := s.Unconfirmed.Delete(txn, hash); nil != err {
				return err
			}
		}
	}
	return nil
}

// remove every record apply wrote for the block
func (c *Coordinator) revert(txn backend.Txn, ch *changes) error {
	s := c.stores

	if ch.indexed {
		if s.Spends.Enabled() {
			for _, spent := range ch.spent {
				if err := s.Spends.Delete(txn, spent.point); nil != err {
					return err
				}
			}
		}
		for i := range ch.history {
			if err := s.History.Delete(txn, &ch.history[i]); nil != err {
				return err
			}
		}
		for i := range ch.stealth {
			if err := s.Stealth.Delete(txn, &ch.stealth[i]); nil != err {
				return err
			}
		}
	}

	if s.ReorgBlocks.Enabled() {
		if err := s.ReorgBlocks.Delete(txn, ch.height); nil != err {
			return err
		}
	}

	if s.Utxo.Enabled() {
		for _, created := range ch.created {
			if err := s.Utxo.Delete(txn, created.point); nil != err {
				return err
			}
		}
		for _, spent := range ch.spent {
			if spent.inBlock {
				continue
			}
			if err := s.Utxo.Put(txn, spent.point, spent.entry); nil != err {
				return err
			}
		}
		if err := s.Undo.DeleteHeight(txn, ch.height); nil != err {
			return err
		}
	}

	if s.Transactions.Enabled() {
		for _, hash := range ch.hashes {
			if err := s.Transactions.Delete(txn, hash); nil != err {
				return err
			}
		}
	}

	if err := s.Heights.Delete(txn, ch.height); nil != err {
		return err
	}
	if err := s.Blocks.Delete(txn, ch.hash); nil != err {
		return err
	}

	if 0 == ch.height {
		return s.Meta.DeleteTip(txn)
	}
	return s.Meta.PutTip(txn, storage.Tip{Height: ch.height - 1, Hash: ch.block.Header.PrevBlock})
}

// discard rollback data older than the reorganization limit
func (c *Coordinator) prune(txn backend.Txn, height uint32) error {
	limit := c.options.ReorgLimit
	undo := c.stores.Undo.Enabled()
	blocks := c.stores.ReorgBlocks.Enabled()
	if 0 == limit || (!undo && !blocks) || height+1 <= limit {
		return nil
	}

	floor, err := c.stores.Meta.Floor(txn)
	if nil != err {
		return err
	}
	newFloor := height - limit + 1
	if newFloor <= floor {
		return nil
	}

	for h := floor; h < newFloor; h += 1 {
		if undo {
			if err := c.stores.Undo.DeleteHeight(txn, h); nil != err {
				return err
			}
		}
		if blocks {
			if err := c.stores.ReorgBlocks.Delete(txn, h); nil != err {
				return err
			}
		}
	}
	return c.stores.Meta.PutFloor(txn, newFloor)
}
