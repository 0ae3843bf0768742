// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package backend - transactional key/value engines
//
// A database is a set of stores, each identified by a single byte.
// Two engines are available:
//
//   leveldb  stores are key prefixes in one leveldb database; write
//            transactions buffer a batch and fail with a conflict if
//            another write committed after they began
//   bolt     stores are buckets in one bbolt file; readers are MVCC
//            snapshots and writers are serialised by the engine
//
// Both engines hold an advisory lock on their files so that only one
// writable handle can be open; read-only handles share the lock.
//
//go:generate mockgen -source=backend.go -destination=mocks/backend.go -package=mocks
package backend
