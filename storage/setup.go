// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"fmt"
	"reflect"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/schema"
)

// Stores - the set of stores of one database
//
// note all must be exported (i.e. initial capital) or initialisation will panic
// an empty index tag means the store is always present
type Stores struct {
	Meta         *Meta         `prefix:"M"`
	Heights      *Heights      `prefix:"H"`
	Blocks       *Blocks       `prefix:"B"`
	Transactions *Transactions `prefix:"T" index:"transactions"`
	Utxo         *Utxo         `prefix:"U" index:"utxo"`
	Undo         *Undo         `prefix:"R" index:"utxo"`
	ReorgBlocks  *ReorgBlocks  `prefix:"K" index:"reorg_blocks"`
	Spends       *Spends       `prefix:"S" index:"spends"`
	History      *History      `prefix:"A" index:"history"`
	Stealth      *Stealth      `prefix:"X" index:"stealth"`
	Unconfirmed  *Unconfirmed  `prefix:"P" index:"unconfirmed"`

	profile schema.Profile
}

// for database version
const currentVersion = 0x100

// store is implemented by the handle embedded in every store
type store interface {
	initialise(h handle)
}

// New - build the store set for a profile
func New(profile schema.Profile) (*Stores, error) {
	if err := profile.Validate(); nil != err {
		return nil, err
	}

	s := &Stores{
		profile: profile,
	}

	// this will be a struct type
	storesType := reflect.TypeOf(*s)

	// get write access by using pointer + Elem()
	storesValue := reflect.ValueOf(s).Elem()

	// scan each field
	for i := 0; i < storesType.NumField(); i += 1 {

		fieldInfo := storesType.Field(i)

		prefixTag := fieldInfo.Tag.Get("prefix")
		if "" == prefixTag && "profile" == fieldInfo.Name {
			continue
		}
		if 1 != len(prefixTag) {
			return nil, fmt.Errorf("store: %v has invalid prefix: %q", fieldInfo.Name, prefixTag)
		}

		enabled := true
		if indexTag := fieldInfo.Tag.Get("index"); "" != indexTag {
			enabled = profile.Has(schema.Index(indexTag))
		}

		h := handle{
			id:      backend.StoreID(prefixTag[0]),
			name:    fieldInfo.Name,
			enabled: enabled,
			layout:  profile.Layout,
		}

		p := reflect.New(fieldInfo.Type.Elem())
		p.Interface().(store).initialise(h)
		storesValue.Field(i).Set(p)
	}

	return s, nil
}

// Profile - the schema profile the stores were built for
func (s *Stores) Profile() schema.Profile {
	return s.profile
}

// IDs - identifiers of all enabled stores
func (s *Stores) IDs() []backend.StoreID {
	ids := []backend.StoreID{}
	for _, h := range s.handles() {
		if h.enabled {
			ids = append(ids, h.id)
		}
	}
	return ids
}

// Named - find an enabled store identifier by field name
func (s *Stores) Named(name string) (backend.StoreID, bool) {
	for _, h := range s.handles() {
		if h.enabled && h.name == name {
			return h.id, true
		}
	}
	return 0, false
}

// Names - field names of all enabled stores
func (s *Stores) Names() []string {
	names := []string{}
	for _, h := range s.handles() {
		if h.enabled {
			names = append(names, h.name)
		}
	}
	return names
}

func (s *Stores) handles() []*handle {
	return []*handle{
		&s.Meta.handle,
		&s.Heights.handle,
		&s.Blocks.handle,
		&s.Transactions.handle,
		&s.Utxo.handle,
		&s.Undo.handle,
		&s.ReorgBlocks.handle,
		&s.Spends.handle,
		&s.History.handle,
		&s.Stealth.handle,
		&s.Unconfirmed.handle,
	}
}

// Verify - check or record the identity of a database
//
// a new database is tagged with the current version, the profile and
// the backend kind; an existing one must match all three
func (s *Stores) Verify(b backend.Backend, log *logger.L) error {
	txn, err := b.Begin(false)
	if nil != err {
		return err
	}

	version, found, err := s.Meta.Version(txn)
	if nil != err {
		txn.Abort()
		return err
	}

	if !found {
		txn.Abort()
		if b.ReadOnly() {
			return fmt.Errorf("%w: empty database opened read only", fault.ErrSchemaMismatch)
		}
		return s.create(b, log)
	}

	defer txn.Abort()

	// ensure no database downgrade
	if version > currentVersion {
		log.Criticalf("database version: %d > current version: %d", version, currentVersion)
		return fmt.Errorf("%w: version: %d > %d", fault.ErrDowngrade, version, currentVersion)
	}
	if version < currentVersion {
		log.Criticalf("database version: %d < current version: %d", version, currentVersion)
		return fmt.Errorf("%w: version: %d < %d", fault.ErrSchemaMismatch, version, currentVersion)
	}

	kind, err := s.Meta.Backend(txn)
	if nil != err {
		return err
	}
	if kind != b.Kind() {
		log.Criticalf("database backend: %q  opened with: %q", kind, b.Kind())
		return fmt.Errorf("%w: %q opened as %q", fault.ErrBackendMismatch, kind, b.Kind())
	}

	stored, err := s.Meta.Profile(txn)
	if nil != err {
		return err
	}
	if !stored.Equal(s.profile) {
		log.Criticalf("database profile: %s  requested: %s", stored, s.profile)
		return fmt.Errorf("%w: database: %s  requested: %s", fault.ErrSchemaMismatch, stored, s.profile)
	}

	log.Infof("opened database version: %d  profile: %s  backend: %s", version, stored, kind)
	return nil
}

func (s *Stores) create(b backend.Backend, log *logger.L) error {
	txn, err := b.Begin(true)
	if nil != err {
		return err
	}
	defer txn.Abort()

	if err := s.Meta.PutVersion(txn, currentVersion); nil != err {
		return err
	}
	if err := s.Meta.PutBackend(txn, b.Kind()); nil != err {
		return err
	}
	if err := s.Meta.PutProfile(txn, s.profile); nil != err {
		return err
	}
	if err := txn.Commit(); nil != err {
		return err
	}

	log.Infof("created database version: %d  profile: %s  backend: %s", currentVersion, s.profile, b.Kind())
	return nil
}
