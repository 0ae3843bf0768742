// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cache memoises aggregate queries over address history
//
//  ***** Data Structure *****
//
//  Pool        Key                   Value                   ExpiresAfter
//  |___ Balance   address key (hex)     item{epoch, int64}          10m
//  |___ Summary   address key (hex)     item{epoch, query.Summary}  10m
//
//  ***** Epochs *****
//
//  every commit increments the epoch stored in the database meta store
//  a lookup reads the epoch in the same snapshot as the query, so a
//  value is only returned to a reader that would have computed the
//  same value
//
//  the first lookup at a newer epoch, or a commit notification from
//  the writer, flushes every pool
package cache
