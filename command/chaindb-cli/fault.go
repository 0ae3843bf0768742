// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/bitmark-inc/chaindb/fault"
)

// common errors - keep in alphabetic order
const (
	ErrBlockNotFound       = fault.NotFoundError("block not found")
	ErrInvalidPrefix       = fault.InvalidError("prefix must be binary digits")
	ErrNoAddress           = fault.InvalidError("address is required")
	ErrNoBlockSelected     = fault.InvalidError("one of hash or height is required")
	ErrNoTransactionID     = fault.InvalidError("transaction id is required")
	ErrTransactionNotFound = fault.NotFoundError("transaction not found")
)
