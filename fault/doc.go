// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fault - error instances
//
// Provides a single instance of errors to allow easy comparison
// without having to resort to partial string matches.
//
// Each error has a class type. Callers add context with fmt.Errorf
// and %w, the IsErrXxx predicates still find the class:
//
//	UnavailableError  the database engine cannot be opened or used
//	SchemaError       profile, backend or version does not match
//	OrderError        block does not extend the tip
//	ConflictError     an optimistic write lost a race
//	ExhaustedError    a resource limit was hit
package fault
