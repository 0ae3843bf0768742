// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/chaindb/fault"
)

var (
	ErrConflictOne    = fault.ConflictError("conflict one")
	ErrExhaustedOne   = fault.ExhaustedError("exhausted one")
	ErrExistsOne      = fault.ExistsError("exists one")
	ErrInvalidOne     = fault.InvalidError("invalid one")
	ErrNotFoundOne    = fault.NotFoundError("not found one")
	ErrOrderOne       = fault.OrderError("order one")
	ErrProcessOne     = fault.ProcessError("process one")
	ErrSchemaOne      = fault.SchemaError("schema one")
	ErrUnavailableOne = fault.UnavailableError("unavailable one")
)

func classes(err error) []bool {
	return []bool{
		fault.IsErrConflict(err),
		fault.IsErrExhausted(err),
		fault.IsErrExists(err),
		fault.IsErrInvalid(err),
		fault.IsErrNotFound(err),
		fault.IsErrOrder(err),
		fault.IsErrProcess(err),
		fault.IsErrSchema(err),
		fault.IsErrUnavailable(err),
	}
}

// test that errors only belong to their own class
func TestClasses(t *testing.T) {
	errorList := []error{
		ErrConflictOne,
		ErrExhaustedOne,
		ErrExistsOne,
		ErrInvalidOne,
		ErrNotFoundOne,
		ErrOrderOne,
		ErrProcessOne,
		ErrSchemaOne,
		ErrUnavailableOne,
	}

	for i, e := range errorList {
		c := classes(e)
		for j, actual := range c {
			assert.Equal(t, i == j, actual, "%d: %q class %d", i, e, j)
		}
	}
}

func TestWrappedKeepsClass(t *testing.T) {
	err := fmt.Errorf("ingest height %d: %w", 7, fault.ErrOutOfOrder)
	assert.True(t, fault.IsErrOrder(err), "wrapped order error")
	assert.False(t, fault.IsErrConflict(err), "wrapped order error is not conflict")
	assert.True(t, errors.Is(err, fault.ErrOutOfOrder), "sentinel identity")
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("resource temporarily unavailable")
	err := fault.Unavailable("open leveldb", cause)

	assert.True(t, fault.IsErrUnavailable(err), "class")
	assert.True(t, errors.Is(err, cause), "cause")
	assert.Equal(t, "open leveldb: resource temporarily unavailable", err.Error(), "message")

	assert.Nil(t, fault.Unavailable("nothing", nil), "nil passes through")
}
