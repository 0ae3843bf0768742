// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coordinator - the single writer of a chain database
//
// Every write runs as one backend write transaction: the block (or
// pool change) is decomposed into per-store records, the records are
// applied and the transaction is committed, or everything is aborted.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/looplab/fsm"
	"go.uber.org/atomic"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/measure"
	"github.com/bitmark-inc/chaindb/storage"
)

// states of a write
const (
	StateIdle        = "idle"
	StateDecomposing = "decomposing"
	StateApplying    = "applying"
	StateCommitted   = "committed"
	StateAborted     = "aborted"
)

// events
const (
	eventDecompose = "decompose"
	eventApply     = "apply"
	eventCommit    = "commit"
	eventAbort     = "abort"
	eventSkip      = "skip"
)

// DefaultConflictRetries - optimistic commit attempts after the first
const DefaultConflictRetries = 3

// Options - write behaviour
type Options struct {
	IndexStartHeight uint32 // spends, history and stealth start at this height
	ReorgLimit       uint32 // blocks of rollback data kept, zero keeps everything
	ConflictRetries  int
}

// Coordinator - serialises all writes to one database
type Coordinator struct {
	permit sync.Mutex // held for the whole of every write

	backend   backend.Backend
	stores    *storage.Stores
	params    *chaincfg.Params
	options   Options
	log       *logger.L
	hooks     measure.Hooks
	machine   *fsm.FSM
	epoch     atomic.Uint64
	observers []func(epoch uint64)
	now       func() time.Time
}

// New - create the writer for an opened database
func New(b backend.Backend, stores *storage.Stores, params *chaincfg.Params, options Options, hooks measure.Hooks) (*Coordinator, error) {
	if nil == hooks {
		hooks = measure.Nop{}
	}
	if options.ConflictRetries < 0 {
		options.ConflictRetries = 0
	}

	c := &Coordinator{
		backend: b,
		stores:  stores,
		params:  params,
		options: options,
		log:     logger.New("coordinator"),
		hooks:   hooks,
		machine: newMachine(),
		now:     time.Now,
	}

	txn, err := b.Begin(false)
	if nil != err {
		return nil, err
	}
	defer txn.Abort()

	epoch, err := stores.Meta.Epoch(txn)
	if nil != err {
		return nil, err
	}
	c.epoch.Store(epoch)

	return c, nil
}

func newMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{
				Name: eventDecompose,
				Src:  []string{StateIdle, StateCommitted, StateAborted, StateDecomposing, StateApplying},
				Dst:  StateDecomposing,
			},
			{
				Name: eventApply,
				Src:  []string{StateDecomposing, StateApplying},
				Dst:  StateApplying,
			},
			{
				Name: eventCommit,
				Src:  []string{StateApplying},
				Dst:  StateCommitted,
			},
			{
				Name: eventAbort,
				Src:  []string{StateDecomposing, StateApplying},
				Dst:  StateAborted,
			},
			{
				Name: eventSkip,
				Src:  []string{StateDecomposing},
				Dst:  StateIdle,
			},
		},
		fsm.Callbacks{},
	)
}

// State - current state of the write state machine
func (c *Coordinator) State() string {
	return c.machine.Current()
}

// Epoch - number of commits, changes on every successful write
func (c *Coordinator) Epoch() uint64 {
	return c.epoch.Load()
}

// OnCommit - register a function called after every commit
//
// must be called before any write
func (c *Coordinator) OnCommit(fn func(epoch uint64)) {
	c.observers = append(c.observers, fn)
}

// move the state machine, a repeated phase is not an error
func (c *Coordinator) event(name string) error {
	err := c.machine.Event(context.Background(), name)
	if nil == err {
		return nil
	}
	var same fsm.NoTransitionError
	if errors.As(err, &same) {
		return nil
	}
	return fmt.Errorf("%w: %s from %s: %v", fault.ErrUnexpectedCoordinator, name, c.machine.Current(), err)
}

// a write body returns false if nothing needed to change
type writeFunc func(txn backend.Txn) (bool, error)

// run a write, repeating it if an optimistic commit lost a race
//
// caller must hold the permit
func (c *Coordinator) write(operation string, fn writeFunc) error {
	for attempt := 0; ; attempt += 1 {
		err := c.transaction(fn)
		if fault.IsErrConflict(err) && attempt < c.options.ConflictRetries {
			c.log.Warnf("%s: commit conflict, attempt: %d", operation, attempt+1)
			c.hooks.Conflict()
			continue
		}
		if nil != err {
			c.log.Debugf("%s: aborted: %s", operation, err)
		}
		return err
	}
}

func (c *Coordinator) transaction(fn writeFunc) error {
	if err := c.event(eventDecompose); nil != err {
		return err
	}

	txn, err := c.backend.Begin(true)
	if nil != err {
		c.abort(nil)
		return err
	}

	changed, err := fn(txn)
	if nil != err {
		c.abort(txn)
		return err
	}
	if !changed {
		txn.Abort()
		return c.event(eventSkip)
	}

	if err := c.event(eventApply); nil != err {
		c.abort(txn)
		return err
	}

	epoch, err := c.stores.Meta.Epoch(txn)
	if nil == err {
		epoch += 1
		err = c.stores.Meta.PutEpoch(txn, epoch)
	}
	if nil != err {
		c.abort(txn)
		return err
	}

	start := time.Now()
	if err := txn.Commit(); nil != err {
		c.abort(nil)
		return err
	}
	c.hooks.Phase(measure.PhaseCommit, time.Since(start))

	if err := c.event(eventCommit); nil != err {
		return err
	}

	c.epoch.Store(epoch)
	for _, fn := range c.observers {
		fn(epoch)
	}
	return nil
}

func (c *Coordinator) abort(txn backend.Txn) {
	if nil != txn {
		txn.Abort()
	}
	if err := c.event(eventAbort); nil != err {
		c.log.Errorf("abort: %s", err)
	}
}

// time a phase of a write
func (c *Coordinator) phase(name string, event string, fn func() error) error {
	if err := c.event(event); nil != err {
		return err
	}
	start := time.Now()
	err := fn()
	c.hooks.Phase(name, time.Since(start))
	return err
}
