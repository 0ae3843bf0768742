// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - the keyed stores of a chain database
//
// Each store is defined by a prefix byte that is obtained from the
// prefix tag in the struct defining the available stores.  Stores with
// an index tag only exist if the schema profile includes that index.
// A store never opens a transaction, the caller passes one in.
//
// Notes:
// 1. ++        = concatenation of byte data
// 2. height    = big endian uint32 (4 bytes)
// 3. hash      = 32 byte double SHA-256 in internal byte order
// 4. outpoint  = hash ++ big endian uint32 output index
// 5. address   = 20 byte hash160
// 6. flags     = 0x01 coinbase (layout 2 only)
//
// Meta:
//
//   M ++ "version"             - database version (uint32)
//   M ++ "schema"              - profile: name;layout;index,index...
//   M ++ "backend"             - engine that created the database
//   M ++ "tip"                 - height ++ hash
//   M ++ "floor"               - lowest height with rollback data
//   M ++ "epoch"               - count of commits (uint64)
//
// Blocks:
//
//   H ++ height                - active chain
//                                data: hash
//   B ++ hash                  - block record
//                                data: header(80) ++ height ++ count ++ [hash]
//   K ++ height                - raw block for rollback (no transaction store)
//
// Transactions:
//
//   T ++ hash                  - confirmed transaction
//                                data: height ++ position ++ [flags] ++ raw transaction
//   P ++ hash                  - unconfirmed transaction
//                                data: arrival(unix nano) ++ height ++ fee ++ size ++ raw transaction
//
// Outputs:
//
//   U ++ outpoint              - unspent output
//                                data: height ++ flags ++ value ++ script
//   R ++ height ++ outpoint    - output spent by the block at height
//                                data: as U
//   S ++ outpoint              - spender
//                                data: hash ++ input index ++ height
//
// Indexes:
//
//   A ++ address ++ height ++ position ++ direction ++ index
//                              - address history, direction 0 credit, 1 debit
//                                data: hash ++ value
//   X ++ prefix ++ height ++ hash ++ output index
//                              - stealth payment
//                                data: ephemeral key(32) ++ address
package storage
