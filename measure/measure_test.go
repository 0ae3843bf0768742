// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package measure

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewNop(t *testing.T) {
	h := New(false)
	_, ok := h.(Nop)
	assert.True(t, ok, "uninstrumented hooks")

	// must not panic
	h.Phase(PhaseApply, time.Millisecond)
	h.CacheLookup(true)
}

func TestPrometheusHooks(t *testing.T) {
	h := New(true)
	again := New(true)
	assert.Equal(t, h, again, "second registration reuses metrics")

	h.Ingested(42, 3)
	h.Ingested(43, 2)
	assert.Equal(t, 43.0, testutil.ToFloat64(prometheusHeight), "height gauge")
	assert.Equal(t, 5.0, testutil.ToFloat64(prometheusTransactions), "transaction counter")

	h.Conflict()
	assert.Equal(t, 1.0, testutil.ToFloat64(prometheusConflicts), "conflicts")

	h.CacheLookup(true)
	h.CacheLookup(false)
	h.CacheLookup(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(prometheusCacheLookups.WithLabelValues("hit")), "hits")
	assert.Equal(t, 2.0, testutil.ToFloat64(prometheusCacheLookups.WithLabelValues("miss")), "misses")

	h.PoolSize(17)
	assert.Equal(t, 17.0, testutil.ToFloat64(prometheusUnconfirmed), "pool size")
}
