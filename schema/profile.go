// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bitmark-inc/chaindb/fault"
)

// Index - an optional store
type Index string

// all optional stores
const (
	Transactions Index = "transactions"
	Utxo         Index = "utxo"
	ReorgBlocks  Index = "reorg_blocks"
	Spends       Index = "spends"
	History      Index = "history"
	Stealth      Index = "stealth"
	Unconfirmed  Index = "unconfirmed"
)

// record layouts
const (
	LayoutLegacy = 1 // no utxo set, prevouts are resolved from the transaction store
	LayoutUtxo   = 2 // utxo set with undo data, transaction records carry a coinbase flag
)

// names of the presets
const (
	Legacy     = "legacy"
	LegacyFull = "legacy_full"
	Pruned     = "pruned"
	Full       = "full"
)

// Profile - which stores exist and how records are laid out
type Profile struct {
	Name    string
	Layout  int
	Indexes []Index
}

var presets = map[string]Profile{
	Legacy: {
		Name:    Legacy,
		Layout:  LayoutLegacy,
		Indexes: []Index{Transactions, Spends, History},
	},
	LegacyFull: {
		Name:    LegacyFull,
		Layout:  LayoutLegacy,
		Indexes: []Index{Transactions, Spends, History, Stealth, Unconfirmed},
	},
	Pruned: {
		Name:    Pruned,
		Layout:  LayoutUtxo,
		Indexes: []Index{Utxo, ReorgBlocks, Unconfirmed},
	},
	Full: {
		Name:    Full,
		Layout:  LayoutUtxo,
		Indexes: []Index{Transactions, Utxo, Spends, History, Stealth, Unconfirmed},
	},
}

// Lookup - fetch a preset by name
func Lookup(name string) (Profile, error) {
	p, ok := presets[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown profile: %q", fault.ErrInvalidProfile, name)
	}
	p.Indexes = append([]Index(nil), p.Indexes...)
	return p, nil
}

// Presets - names of all built in profiles
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has - true if the index is part of the profile
func (p Profile) Has(index Index) bool {
	for _, i := range p.Indexes {
		if i == index {
			return true
		}
	}
	return false
}

// Validate - check that a profile is self-consistent
func (p Profile) Validate() error {
	if "" == p.Name || strings.ContainsAny(p.Name, ";,") {
		return fmt.Errorf("%w: bad name: %q", fault.ErrInvalidProfile, p.Name)
	}

	seen := make(map[Index]struct{})
	for _, i := range p.Indexes {
		switch i {
		case Transactions, Utxo, ReorgBlocks, Spends, History, Stealth, Unconfirmed:
		default:
			return fmt.Errorf("%w: unknown index: %q", fault.ErrInvalidProfile, i)
		}
		if _, ok := seen[i]; ok {
			return fmt.Errorf("%w: duplicate index: %q", fault.ErrInvalidProfile, i)
		}
		seen[i] = struct{}{}
	}

	switch p.Layout {
	case LayoutLegacy:
		if !p.Has(Transactions) || !p.Has(Spends) {
			return fmt.Errorf("%w: layout %d needs transactions and spends", fault.ErrInvalidProfile, p.Layout)
		}
		if p.Has(Utxo) || p.Has(ReorgBlocks) {
			return fmt.Errorf("%w: layout %d has no utxo set", fault.ErrInvalidProfile, p.Layout)
		}
	case LayoutUtxo:
		if !p.Has(Utxo) {
			return fmt.Errorf("%w: layout %d needs utxo", fault.ErrInvalidProfile, p.Layout)
		}
		if !p.Has(Transactions) && !p.Has(ReorgBlocks) {
			return fmt.Errorf("%w: rollback needs transactions or reorg_blocks", fault.ErrInvalidProfile)
		}
	default:
		return fmt.Errorf("%w: unknown layout: %d", fault.ErrInvalidProfile, p.Layout)
	}
	return nil
}

// Encode - persistent form
//
// name;layout;index,index,...  with the indexes sorted
func (p Profile) Encode() []byte {
	return []byte(p.Name + ";" + strconv.Itoa(p.Layout) + ";" + p.indexList())
}

// sorted, comma separated
func (p Profile) indexList() string {
	names := make([]string, 0, len(p.Indexes))
	for _, i := range p.Indexes {
		names = append(names, string(i))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Decode - reverse of Encode
func Decode(buffer []byte) (Profile, error) {
	parts := strings.Split(string(buffer), ";")
	if 3 != len(parts) {
		return Profile{}, fmt.Errorf("%w: cannot decode: %q", fault.ErrSchemaMismatch, buffer)
	}
	layout, err := strconv.Atoi(parts[1])
	if nil != err {
		return Profile{}, fmt.Errorf("%w: layout: %q", fault.ErrSchemaMismatch, parts[1])
	}
	p := Profile{
		Name:   parts[0],
		Layout: layout,
	}
	if "" != parts[2] {
		for _, name := range strings.Split(parts[2], ",") {
			p.Indexes = append(p.Indexes, Index(name))
		}
	}
	return p, nil
}

// Equal - same layout and the same set of indexes, the name is ignored
func (p Profile) Equal(other Profile) bool {
	return p.Layout == other.Layout && p.indexList() == other.indexList()
}

func (p Profile) String() string {
	return string(p.Encode())
}
