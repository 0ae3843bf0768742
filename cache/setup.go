// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/atomic"

	"github.com/bitmark-inc/chaindb/background"
	"github.com/bitmark-inc/chaindb/extract"
	"github.com/bitmark-inc/chaindb/measure"
	"github.com/bitmark-inc/chaindb/query"
)

type item struct {
	epoch uint64
	value interface{}
}

type poolData struct {
	items        *gocache.Cache
	expiresAfter time.Duration
}

// note all must be exported (i.e. initial capital) or initialisation will panic
type pools struct {
	Balance *poolData `exp:"10m"`
	Summary *poolData `exp:"10m"`
}

// Cache - memoised aggregate queries
//
// every entry is tagged with the commit epoch it was computed at and
// is only returned to a snapshot at the same epoch
type Cache struct {
	sync.Mutex
	router     *query.Router
	hooks      measure.Hooks
	log        *logger.L
	pool       pools
	epoch      atomic.Uint64
	background *background.T
}

// New - create a cache over a router
//
// a non-zero expiry replaces the default lifetime of every pool
func New(router *query.Router, expiry time.Duration, hooks measure.Hooks) (*Cache, error) {
	if nil == hooks {
		hooks = measure.Nop{}
	}
	c := &Cache{
		router: router,
		hooks:  hooks,
		log:    logger.New("cache"),
	}

	poolType := reflect.TypeOf(c.pool)
	poolValue := reflect.ValueOf(&c.pool).Elem()

	for i := 0; i < poolType.NumField(); i++ {
		exp := gocache.NoExpiration

		fieldInfo := poolType.Field(i)
		expTag := fieldInfo.Tag.Get("exp")
		if len(expTag) > 0 {
			d, err := time.ParseDuration(expTag)
			if err != nil {
				return nil, fmt.Errorf("invalid time duration: %s", expTag)
			}
			exp = d
		}
		if expiry > 0 {
			exp = expiry
		}

		// expired items are removed by the cleaner, not a janitor
		p := &poolData{items: gocache.New(exp, 0), expiresAfter: exp}
		poolValue.Field(i).Set(reflect.ValueOf(p))
		c.log.Debugf("pool: %s  expires after: %s", fieldInfo.Name, exp)
	}

	processes := background.Processes{
		&cleaner{pools: &c.pool},
	}
	c.background = background.Start(processes, nil)

	return c, nil
}

// Close - stop the expiration process
func (c *Cache) Close() {
	c.background.Stop()
}

// Advance - discard everything computed before epoch
//
// called after every commit, an older epoch is ignored
func (c *Cache) Advance(epoch uint64) {
	c.Lock()
	defer c.Unlock()

	if epoch <= c.epoch.Load() {
		return
	}
	c.log.Debugf("epoch: %d  flush", epoch)
	forEachPool(&c.pool, func(p *poolData) {
		p.items.Flush()
	})
	c.epoch.Store(epoch)
}

// Epoch - epoch of the current cache contents
func (c *Cache) Epoch() uint64 {
	return c.epoch.Load()
}

// AddressBalance - received less sent over the history of an address
func (c *Cache) AddressBalance(address extract.AddressKey) (int64, error) {
	value, err := c.lookup(c.pool.Balance, address.String(), func(s *query.Snapshot) (interface{}, error) {
		summary, err := s.Summarise(address)
		if nil != err {
			return nil, err
		}
		return summary.Balance(), nil
	})
	if nil != err {
		return 0, err
	}
	return value.(int64), nil
}

// HistorySummary - totals over the history of an address
func (c *Cache) HistorySummary(address extract.AddressKey) (query.Summary, error) {
	value, err := c.lookup(c.pool.Summary, address.String(), func(s *query.Snapshot) (interface{}, error) {
		summary, err := s.Summarise(address)
		if nil != err {
			return nil, err
		}
		return *summary, nil
	})
	if nil != err {
		return query.Summary{}, err
	}
	return value.(query.Summary), nil
}

// return the cached value for the snapshot epoch or compute it
func (c *Cache) lookup(p *poolData, key string, compute func(s *query.Snapshot) (interface{}, error)) (interface{}, error) {
	var result interface{}
	err := c.router.View(func(s *query.Snapshot) error {
		epoch, err := s.Epoch()
		if nil != err {
			return err
		}
		c.Advance(epoch)

		if obj, found := p.items.Get(key); found {
			cached := obj.(item)
			if cached.epoch == epoch {
				c.hooks.CacheLookup(true)
				result = cached.value
				return nil
			}
		}
		c.hooks.CacheLookup(false)

		value, err := compute(s)
		if nil != err {
			return err
		}

		// an older snapshot must not replace a newer entry
		if c.epoch.Load() == epoch {
			p.items.SetDefault(key, item{epoch: epoch, value: value})
		}
		result = value
		return nil
	})
	return result, err
}
