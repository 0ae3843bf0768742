// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import (
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/chaindb/coordinator"
)

// evicts unconfirmed transactions older than maxAge
type sweeper struct {
	log      *logger.L
	writer   *coordinator.Coordinator
	maxAge   time.Duration
	interval time.Duration
}

func (s *sweeper) Run(args interface{}, shutdown <-chan struct{}) {
	log := s.log
	log.Infof("starting…  max age: %s  interval: %s", s.maxAge, s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case now := <-ticker.C:
			n, err := s.writer.EvictExpired(now, s.maxAge)
			if nil != err {
				log.Errorf("evict expired: %s", err)
				continue loop
			}
			if n > 0 {
				log.Debugf("evicted: %d", n)
			}
		}
	}
	log.Info("stopped")
}
