// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaindb - embedded storage and indexing of a block chain
//
// a database is a directory holding the files of one embedded engine
// (leveldb or bolt) laid out according to a schema profile:
//
//	profile       layout  stores
//	-----------   ------  ----------------------------------------------
//	legacy        1       transactions spends history
//	legacy_full   1       transactions spends history stealth unconfirmed
//	pruned        2       utxo undo reorg-blocks unconfirmed
//	full          2       transactions utxo undo spends history stealth unconfirmed
//
// blocks, heights and meta are always present.  The profile, engine
// kind and schema version are recorded at creation and checked on
// every open.
//
// one process may hold a database open for writing; blocks are
// applied by a single coordinator, each block or reorganization in
// one engine transaction.  Reads run on engine snapshots and never
// see a partial write.
//
// the logger must be initialised before Open.
package chaindb
