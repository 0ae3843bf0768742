// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"reflect"
	"time"
)

const expirationCheckInterval = 5 * time.Minute

type cleaner struct {
	pools *pools
}

func (c *cleaner) Run(args interface{}, shutdown <-chan struct{}) {
	ticker := time.NewTicker(expirationCheckInterval)
	for {
		select {
		case <-ticker.C:
			deleteExpiredItems(c.pools)
		case <-shutdown:
			ticker.Stop()
			return
		}
	}
}

func deleteExpiredItems(p *pools) {
	forEachPool(p, func(data *poolData) {
		data.items.DeleteExpired()
	})
}

func forEachPool(p *pools, fn func(data *poolData)) {
	poolType := reflect.TypeOf(*p)
	poolValue := reflect.ValueOf(p).Elem()

	for i := 0; i < poolType.NumField(); i++ {
		fn(poolValue.Field(i).Interface().(*poolData))
	}
}
