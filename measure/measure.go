// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package measure - optional timing and counting hooks
package measure

import (
	"time"
)

// phases of a write
const (
	PhaseDecompose = "decompose"
	PhaseApply     = "apply"
	PhaseCommit    = "commit"
	PhasePop       = "pop"
)

// Hooks - receives measurements from the write coordinator, the
// query router and the result cache
type Hooks interface {
	Phase(phase string, elapsed time.Duration)
	Ingested(height uint32, transactions int)
	Reorganized(depth int)
	Conflict()
	Query(name string, elapsed time.Duration)
	CacheLookup(hit bool)
	PoolSize(count int)
}

// Nop - discards everything
type Nop struct{}

func (Nop) Phase(string, time.Duration) {}
func (Nop) Ingested(uint32, int)        {}
func (Nop) Reorganized(int)             {}
func (Nop) Conflict()                   {}
func (Nop) Query(string, time.Duration) {}
func (Nop) CacheLookup(bool)            {}
func (Nop) PoolSize(int)                {}

// New - prometheus hooks if instrument is set, otherwise Nop
func New(instrument bool) Hooks {
	if !instrument {
		return Nop{}
	}
	initPrometheusMetrics()
	return prometheusHooks{}
}
