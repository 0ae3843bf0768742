// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package background_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"

	"github.com/bitmark-inc/chaindb/background"
)

// counts ticks until shutdown, then records that it finished
type ticker struct {
	interval time.Duration
	ticks    atomic.Int64
	finished atomic.Bool
}

func (state *ticker) Run(args interface{}, shutdown <-chan struct{}) {
	t := args.(*testing.T)

	tick := time.NewTicker(state.interval)
	defer tick.Stop()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-tick.C:
			state.ticks.Inc()
		}
	}
	t.Logf("ticks: %d", state.ticks.Load())
	state.finished.Store(true)
}

func TestStartStop(t *testing.T) {
	fast := &ticker{interval: time.Millisecond}
	slow := &ticker{interval: time.Hour}

	p := background.Start(background.Processes{fast, slow}, t)
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	assert.True(t, fast.finished.Load(), "fast process returned")
	assert.True(t, slow.finished.Load(), "slow process returned")
	assert.Greater(t, fast.ticks.Load(), int64(0), "fast process ran")
	assert.Equal(t, int64(0), slow.ticks.Load(), "slow process never ticked")

	// nothing runs after stop and a second stop is harmless
	count := fast.ticks.Load()
	p.Stop()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, count, fast.ticks.Load(), "stopped")
}

func TestStartNothing(t *testing.T) {
	p := background.Start(nil, nil)
	p.Stop()
}
