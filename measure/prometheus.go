// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package measure

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "chaindb"
)

var (
	prometheusPhaseSeconds *prometheus.HistogramVec
	prometheusHeight       prometheus.Gauge
	prometheusTransactions prometheus.Counter
	prometheusReorgDepth   prometheus.Histogram
	prometheusConflicts    prometheus.Counter
	prometheusQuerySeconds *prometheus.HistogramVec
	prometheusCacheLookups *prometheus.CounterVec
	prometheusUnconfirmed  prometheus.Gauge
)

var prometheusMetricsInitOnce sync.Once

// registration panics on a duplicate so it must only happen once
func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusPhaseSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "write",
			Name:      "phase_seconds",
			Help:      "Duration of each phase of a block write",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"phase"},
	)

	prometheusHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "write",
			Name:      "height",
			Help:      "Height of the last ingested block",
		},
	)

	prometheusTransactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "write",
			Name:      "transactions_total",
			Help:      "Confirmed transactions ingested",
		},
	)

	prometheusReorgDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "write",
			Name:      "reorg_depth",
			Help:      "Blocks removed by each reorganization",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
	)

	prometheusConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "write",
			Name:      "conflicts_total",
			Help:      "Optimistic commits retried after a conflict",
		},
	)

	prometheusQuerySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "seconds",
			Help:      "Duration of read queries",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"query"},
	)

	prometheusCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by outcome",
		},
		[]string{"result"},
	)

	prometheusUnconfirmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "unconfirmed",
			Name:      "transactions",
			Help:      "Transactions in the unconfirmed pool",
		},
	)
}

type prometheusHooks struct{}

func (prometheusHooks) Phase(phase string, elapsed time.Duration) {
	prometheusPhaseSeconds.WithLabelValues(phase).Observe(elapsed.Seconds())
}

func (prometheusHooks) Ingested(height uint32, transactions int) {
	prometheusHeight.Set(float64(height))
	prometheusTransactions.Add(float64(transactions))
}

func (prometheusHooks) Reorganized(depth int) {
	prometheusReorgDepth.Observe(float64(depth))
}

func (prometheusHooks) Conflict() {
	prometheusConflicts.Inc()
}

func (prometheusHooks) Query(name string, elapsed time.Duration) {
	prometheusQuerySeconds.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (prometheusHooks) CacheLookup(hit bool) {
	if hit {
		prometheusCacheLookups.WithLabelValues("hit").Inc()
	} else {
		prometheusCacheLookups.WithLabelValues("miss").Inc()
	}
}

func (prometheusHooks) PoolSize(count int) {
	prometheusUnconfirmed.Set(float64(count))
}
