// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import (
	"errors"
)

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type ConflictError GenericError
type ExhaustedError GenericError
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type OrderError GenericError
type ProcessError GenericError
type SchemaError GenericError
type UnavailableError GenericError

// common errors - keep in alphabetic order
var (
	ErrAlreadyConfirmed       = ExistsError("transaction already confirmed")
	ErrBackendMismatch        = SchemaError("database was created by a different backend")
	ErrBlockNotFound          = NotFoundError("block not found")
	ErrConflict               = ConflictError("concurrent write transaction committed first")
	ErrDoubleSpend            = InvalidError("output already spent")
	ErrDowngrade              = SchemaError("database version is newer than this program")
	ErrDuplicateTransaction   = ExistsError("transaction already in unconfirmed pool")
	ErrEmptyBlock             = InvalidError("block has no transactions")
	ErrIndexDisabled          = InvalidError("index is not part of schema profile")
	ErrInvalidBackend         = InvalidError("invalid backend kind")
	ErrInvalidChain           = InvalidError("invalid chain name")
	ErrInvalidCount           = InvalidError("invalid count")
	ErrInvalidDuration        = InvalidError("invalid duration")
	ErrInvalidEvictReason     = InvalidError("invalid eviction reason")
	ErrInvalidFilter          = InvalidError("invalid prefix filter")
	ErrInvalidHeight          = InvalidError("invalid height")
	ErrInvalidKeyLength       = InvalidError("invalid key length")
	ErrInvalidPath            = InvalidError("invalid path")
	ErrInvalidProfile         = InvalidError("invalid schema profile")
	ErrInvalidStructPointer   = InvalidError("invalid struct pointer")
	ErrMissingParent          = OrderError("parent block is not the current tip")
	ErrOutOfOrder             = OrderError("block height does not follow the tip")
	ErrPrevoutNotFound        = NotFoundError("previous output not found")
	ErrReadOnly               = ProcessError("database is read only")
	ErrRecordTruncated        = InvalidError("record is truncated")
	ErrReorgTooDeep           = OrderError("reorganization deeper than rollback data")
	ErrSchemaMismatch         = SchemaError("schema profile does not match database")
	ErrTooManyTransactions    = ExhaustedError("too many open transactions")
	ErrTransactionNotFound    = NotFoundError("transaction not found")
	ErrTransactionFinished    = ProcessError("transaction already committed or aborted")
	ErrUnexpectedCoordinator  = ProcessError("write coordinator in unexpected state")
	ErrWrongEpochRecordLength = InvalidError("epoch record length is invalid")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ConflictError) Error() string    { return string(e) }
func (e ExhaustedError) Error() string   { return string(e) }
func (e ExistsError) Error() string      { return string(e) }
func (e InvalidError) Error() string     { return string(e) }
func (e NotFoundError) Error() string    { return string(e) }
func (e OrderError) Error() string       { return string(e) }
func (e ProcessError) Error() string     { return string(e) }
func (e SchemaError) Error() string      { return string(e) }
func (e UnavailableError) Error() string { return string(e) }

// determine the class of an error, looking through any wrapping
func IsErrConflict(e error) bool    { var x ConflictError; return errors.As(e, &x) }
func IsErrExhausted(e error) bool   { var x ExhaustedError; return errors.As(e, &x) }
func IsErrExists(e error) bool      { var x ExistsError; return errors.As(e, &x) }
func IsErrInvalid(e error) bool     { var x InvalidError; return errors.As(e, &x) }
func IsErrNotFound(e error) bool    { var x NotFoundError; return errors.As(e, &x) }
func IsErrOrder(e error) bool       { var x OrderError; return errors.As(e, &x) }
func IsErrProcess(e error) bool     { var x ProcessError; return errors.As(e, &x) }
func IsErrSchema(e error) bool      { var x SchemaError; return errors.As(e, &x) }
func IsErrUnavailable(e error) bool { var x UnavailableError; return errors.As(e, &x) }

// Unavailable - wrap an engine error as storage unavailable
func Unavailable(message string, err error) error {
	if nil == err {
		return nil
	}
	return &wrapped{class: UnavailableError(message), err: err}
}

// carries an underlying error while classifying it
type wrapped struct {
	class UnavailableError
	err   error
}

func (w *wrapped) Error() string { return string(w.class) + ": " + w.err.Error() }

func (w *wrapped) Unwrap() error { return w.err }

func (w *wrapped) As(target interface{}) bool {
	if p, ok := target.(*UnavailableError); ok {
		*p = w.class
		return true
	}
	return false
}
