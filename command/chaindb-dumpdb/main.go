// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/schema"
	"github.com/bitmark-inc/chaindb/storage"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// colours
const (
	keyColour1  = "\033[1;36m"
	keyColour2  = "\033[1;31m"
	valColour1  = "\033[1;33m"
	valColour2  = "\033[1;34m"
	delColour1  = "\033[1;35m"
	delColour2  = "\033[0;35m"
	delColour3  = "\033[0;31m"
	delColour4  = "\033[1;35m"
	nodelColour = "\033[1;32m"
	endColour   = "\033[0m"
)

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "list", HasArg: getoptions.NO_ARGUMENT, Short: 'l'},
		{Long: "delete", HasArg: getoptions.NO_ARGUMENT, Short: 'd'},
		{Long: "early", HasArg: getoptions.NO_ARGUMENT, Short: 'e'},
		{Long: "colour", HasArg: getoptions.NO_ARGUMENT, Short: 'g'},
		{Long: "ascii", HasArg: getoptions.NO_ARGUMENT, Short: 'a'},
		{Long: "directory", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'D'},
		{Long: "backend", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'b'},
		{Long: "count", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		exitwithstatus.Message("%s: version: %s", program, version)
	}

	if len(options["list"]) > 0 {

		// this will be a struct type
		storesType := reflect.TypeOf(storage.Stores{})

		// print all available tags
		fmt.Printf(" tags:\n")
		for i := 0; i < storesType.NumField(); i += 1 {
			fieldInfo := storesType.Field(i)
			prefixTag := fieldInfo.Tag.Get("prefix")
			if "" == prefixTag {
				continue
			}
			indexTag := fieldInfo.Tag.Get("index")
			if "" == indexTag {
				indexTag = "always"
			}
			fmt.Printf("       %s → %-12s (%s)\n", prefixTag, fieldInfo.Name, indexTag)
		}
		return
	}

	if len(options["help"]) > 0 || 0 == len(arguments) || 1 != len(options["directory"]) {
		exitwithstatus.Message("usage: %s [--help] [--verbose] [--backend=KIND] [--count=N] --directory=DIR tag [--list] [key-prefix]", program)
	}

	// stop if prefix no longer matches
	earlyStop := len(options["early"]) > 0

	colour := len(options["colour"]) > 0
	ascii := len(options["ascii"]) > 0
	delete := len(options["delete"]) > 0
	verbose := len(options["verbose"]) > 0

	count := 10
	if len(options["count"]) > 0 {
		count, err = strconv.Atoi(options["count"][0])
		if nil != err {
			exitwithstatus.Message("%s: convert count error: %s", program, err)
		}
		if count < 1 {
			exitwithstatus.Message("%s: invalid count: %d", program, count)
		}
	}

	kind := backend.LevelDB
	if len(options["backend"]) > 0 {
		kind = backend.Kind(strings.ToLower(options["backend"][0]))
		if !backend.Valid(kind) {
			exitwithstatus.Message("%s: invalid backend: %q", program, kind)
		}
	}

	directory := options["directory"][0]
	tag := arguments[0]
	if verbose {
		fmt.Printf("read tag: %s from: %s database: %q\n", tag, kind, directory)
	}

	prefix := []byte(nil)
	if len(arguments) > 1 {
		prefix, err = hex.DecodeString(arguments[1])
		if nil != err {
			exitwithstatus.Message("%s: convert prefix error: %s", program, err)
		}
	}

	logging := logger.Configuration{
		Directory: ".",
		File:      "chaindb-dumpdb.log",
		Size:      1048576,
		Count:     10,
		Console:   true,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	if err = logger.Initialise(logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// start of main processing
	db, err := backend.Open(kind, directory, backend.Options{ReadOnly: !delete})
	if nil != err {
		exitwithstatus.Message("%s: database open failed with error: %s", program, err)
	}
	defer db.Close()

	stores, err := storesOf(db)
	if nil != err {
		exitwithstatus.Message("%s: read profile failed with error: %s", program, err)
	}
	if verbose {
		fmt.Printf("profile: %s  stores: %s\n", stores.Profile(), strings.Join(stores.Names(), " "))
	}

	id, ok := lookup(stores, tag)
	if !ok {
		exitwithstatus.Message("%s: no store corresponding to: %q", program, tag)
	}

	data, err := fetch(db, id, prefix, earlyStop, count)
	if nil != err {
		exitwithstatus.Message("%s: error on fetch: %s", program, err)
	}

	ck1 := ""
	ck2 := ""
	cv1 := ""
	cv2 := ""
	cd1 := ""
	cd2 := ""
	cd3 := ""
	cd4 := ""
	cn := ""
	ce := ""
	if colour {
		ck1 = keyColour1
		ck2 = keyColour2
		cv1 = valColour1
		cv2 = valColour2
		cd1 = delColour1
		cd2 = delColour2
		cd3 = delColour3
		cd4 = delColour4
		cn = nodelColour
		ce = endColour
	}

	for i, e := range data {
		fmt.Printf("%d: %sKey: %s%x%s\n", i, ck1, ck2, e.key, ce)
		if ascii {
			prefix := fmt.Sprintf("%d: %sVal: %s", i, cv1, cv2)
			suffix := ce
			hexDump(prefix, suffix, e.value)

		} else {
			fmt.Printf("%d: %sVal: %s%x%s\n", i, cv1, cv2, e.value, ce)
		}
		if delete {
		delete_loop:
			for {
				fmt.Printf("%d: %sDelete Key: %s%x%s ? [yNq]: ", i, cd1, cd2, e.key, ce)

				buffer := make([]byte, 100)
				n, err := os.Stdin.Read(buffer)
				if nil != err {
					exitwithstatus.Message("%s: error on Stdin.Read: %s", program, err)
				}

				response := strings.TrimSpace(string(buffer[:n]))
				switch strings.ToLower(response) {

				case "y", "yes":
					if err := remove(db, id, e.key); nil != err {
						exitwithstatus.Message("%s: delete failed with error: %s", program, err)
					}
					fmt.Printf("%d: %s***DELETED: %s%x%s\n", i, cd3, cd4, e.key, ce)
					break delete_loop

				case "", "n", "no":
					fmt.Printf("%d: %sRetain Key: %s%x%s\n", i, cn, ck2, e.key, ce)
					break delete_loop

				case "q", "quit", "e", "exit", "x":
					fmt.Printf("Terminated\n")
					return

				default:
					fmt.Printf("Please answer yes or no\n")
				}
			}
		}
	}
}

type element struct {
	key   []byte
	value []byte
}

// the profile recorded in the database selects the store set
func storesOf(db backend.Backend) (*storage.Stores, error) {
	// meta is present in every profile
	bootstrap, err := schema.Lookup(schema.Legacy)
	if nil != err {
		return nil, err
	}
	meta, err := storage.New(bootstrap)
	if nil != err {
		return nil, err
	}

	txn, err := db.Begin(false)
	if nil != err {
		return nil, err
	}
	defer txn.Abort()

	profile, err := meta.Meta.Profile(txn)
	if nil != err {
		return nil, err
	}
	return storage.New(profile)
}

// match a prefix tag or a store name
func lookup(stores *storage.Stores, tag string) (backend.StoreID, bool) {
	for _, name := range stores.Names() {
		id, _ := stores.Named(name)
		if strings.EqualFold(tag, name) || (1 == len(tag) && tag[0] == byte(id)) {
			return id, true
		}
	}
	return 0, false
}

// read up to count records starting at prefix
//
// without early stop the scan continues past the prefix to the end
// of the store
func fetch(db backend.Backend, id backend.StoreID, prefix []byte, earlyStop bool, count int) ([]element, error) {
	txn, err := db.Begin(false)
	if nil != err {
		return nil, err
	}
	defer txn.Abort()

	scanPrefix := []byte(nil)
	if earlyStop {
		scanPrefix = prefix
	}
	it := txn.Range(id, scanPrefix, prefix)
	defer it.Release()

	data := make([]element, 0, count)
	for len(data) < count && it.Next() {
		data = append(data, element{
			key:   bytes.Clone(it.Key()),
			value: bytes.Clone(it.Value()),
		})
	}
	return data, it.Err()
}

func remove(db backend.Backend, id backend.StoreID, key []byte) error {
	txn, err := db.Begin(true)
	if nil != err {
		return err
	}
	defer txn.Abort()

	if err := txn.Delete(id, key); nil != err {
		return err
	}
	return txn.Commit()
}

// dump hex data on stdout
func hexDump(prefix string, suffix string, data []byte) {
	address := 0
	const bytesPerLine = 32
	for i := 0; i < len(data); i += bytesPerLine {
		fmt.Printf("%s%04x  ", prefix, address)
		address += bytesPerLine
		for j := 0; j < bytesPerLine; j += 1 {
			if bytesPerLine/2 == j {
				fmt.Printf(" ")
			}
			if i+j < len(data) {
				fmt.Printf("%02x ", data[i+j])
			} else {
				fmt.Printf("   ")
			}
		}
		fmt.Printf(" |")
	ascii_loop:
		for j := 0; j < bytesPerLine; j += 1 {
			if i+j < len(data) {
				c := data[i+j]
				if c < 32 || c >= 127 {
					c = '.'
				}
				fmt.Printf("%c", c)

			} else {
				break ascii_loop
			}
		}
		fmt.Printf("|%s\n", suffix)
	}
}
