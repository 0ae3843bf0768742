// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/urfave/cli"

	"github.com/bitmark-inc/chaindb/query"
)

type infoOutput struct {
	Directory string   `json:"directory"`
	Backend   string   `json:"backend"`
	Profile   string   `json:"profile"`
	Stores    []string `json:"stores"`
	Chain     string   `json:"chain"`
	Epoch     uint64   `json:"epoch"`
	Height    *uint32  `json:"height"`
	Tip       string   `json:"tip,omitempty"`
	Pool      int      `json:"unconfirmed"`
}

func runInfo(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)
	db := m.db
	options := db.Configuration()

	info := infoOutput{
		Directory: options.Directory,
		Backend:   string(options.Backend),
		Profile:   db.Profile().String(),
		Stores:    db.Stores().Names(),
		Chain:     options.Chain,
	}

	// all from one snapshot
	err := db.View(func(s *query.Snapshot) error {
		epoch, err := s.Epoch()
		if nil != err {
			return err
		}
		info.Epoch = epoch

		tip, err := s.Tip()
		if nil != err {
			return err
		}
		if nil != tip {
			info.Height = &tip.Height
			info.Tip = tip.Hash.String()
		}

		if db.Stores().Unconfirmed.Enabled() {
			pool, err := s.MempoolSnapshot()
			if nil != err {
				return err
			}
			info.Pool = len(pool)
		}
		return nil
	})
	if nil != err {
		return err
	}

	return printJson(m.w, info)
}
