// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package backend

// a binary data item
type element struct {
	key   []byte
	value []byte
}

// iterator over an already materialised range
type sliceIterator struct {
	items []element
	index int
	err   error
}

func (s *sliceIterator) Next() bool {
	if nil != s.err {
		return false
	}
	s.index += 1
	return s.index < len(s.items)
}

func (s *sliceIterator) Key() []byte {
	return s.items[s.index].key
}

func (s *sliceIterator) Value() []byte {
	return s.items[s.index].value
}

func (s *sliceIterator) Err() error {
	return s.err
}

func (s *sliceIterator) Release() {
	s.items = nil
}
