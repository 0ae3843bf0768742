// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/chaindb/extract"
	"github.com/bitmark-inc/chaindb/fault"
)

func runHistory(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	address := c.String("address")
	if "" == address {
		return ErrNoAddress
	}
	key, err := m.db.AddressKey(address)
	if nil != err {
		return err
	}

	from, to, err := heights(c.Int("from"), c.Int("to"))
	if nil != err {
		return err
	}
	limit := c.Int("limit")
	if limit < 0 {
		return fault.ErrInvalidCount
	}

	entries, err := m.db.History(key, from, to, limit)
	if nil != err {
		return err
	}
	if m.verbose {
		fmt.Fprintf(m.e, "address: %s  key: %s  entries: %d\n", address, key, len(entries))
	}
	return printJson(m.w, toHistory(entries))
}

type balanceOutput struct {
	Address     string `json:"address"`
	Balance     int64  `json:"balance"`
	Received    int64  `json:"received"`
	Sent        int64  `json:"sent"`
	Credits     int    `json:"credits"`
	Debits      int    `json:"debits"`
	FirstHeight uint32 `json:"first_height,omitempty"`
	LastHeight  uint32 `json:"last_height,omitempty"`
}

func runBalance(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	address := c.String("address")
	if "" == address {
		return ErrNoAddress
	}

	summary, err := m.db.HistorySummary(address)
	if nil != err {
		return err
	}

	return printJson(m.w, balanceOutput{
		Address:     address,
		Balance:     summary.Balance(),
		Received:    summary.Received,
		Sent:        summary.Sent,
		Credits:     summary.Credits,
		Debits:      summary.Debits,
		FirstHeight: summary.FirstHeight,
		LastHeight:  summary.LastHeight,
	})
}

func runStealth(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	filter, err := parsePrefix(c.String("prefix"))
	if nil != err {
		return err
	}
	from, _, err := heights(c.Int("from"), -1)
	if nil != err {
		return err
	}

	rows, err := m.db.StealthScan(filter, from)
	if nil != err {
		return err
	}

	out := make([]stealthOutput, len(rows))
	for i, row := range rows {
		out[i] = stealthOutput{
			Prefix:       fmt.Sprintf("%08x", row.Prefix),
			Height:       row.Height,
			TxId:         row.Hash.String(),
			Index:        row.Index,
			EphemeralKey: hex.EncodeToString(row.EphemeralKey[:]),
			Address:      row.Address.String(),
		}
	}
	return printJson(m.w, out)
}

func runMempool(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	if !m.db.Stores().Unconfirmed.Enabled() {
		return fault.ErrIndexDisabled
	}

	entries, err := m.db.MempoolSnapshot()
	if nil != err {
		return err
	}

	out := make([]*transactionOutput, len(entries))
	for i, entry := range entries {
		out[i] = toUnconfirmed(entry)
	}
	if m.verbose {
		fmt.Fprintf(m.e, "unconfirmed: %d\n", len(out))
	}
	return printJson(m.w, out)
}

// a negative to means no upper limit
func heights(from int, to int) (uint32, uint32, error) {
	if from < 0 {
		return 0, 0, fault.ErrInvalidHeight
	}
	if to < 0 {
		return uint32(from), ^uint32(0), nil
	}
	if to < from {
		return 0, 0, fault.ErrInvalidHeight
	}
	return uint32(from), uint32(to), nil
}

// a prefix of up to 32 binary digits, e.g. "1011"
func parsePrefix(s string) (extract.StealthFilter, error) {
	if len(s) > 32 {
		return extract.StealthFilter{}, ErrInvalidPrefix
	}
	if "" == s {
		return extract.NewStealthFilter(0, 0)
	}
	bits, err := strconv.ParseUint(s, 2, 32)
	if nil != err {
		return extract.StealthFilter{}, ErrInvalidPrefix
	}
	return extract.NewStealthFilter(uint32(bits)<<(32-uint(len(s))), uint8(len(s)))
}

