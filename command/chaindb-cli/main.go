// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bitmark-inc/logger"
	"github.com/urfave/cli"

	"github.com/bitmark-inc/chaindb"
	"github.com/bitmark-inc/chaindb/configuration"
)

type metadata struct {
	file    string
	config  *configuration.Configuration
	db      *chaindb.DB
	verbose bool
	e       io.Writer
	w       io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

func main() {

	app := cli.NewApp()
	app.Name = "chaindb-cli"
	app.Usage = "query a chain database"
	app.Version = version
	app.HideVersion = true

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " verbose result",
		},
		cli.StringFlag{
			Name:   "config-file, c",
			Value:  "chaindb.conf",
			Usage:  " Lua configuration `FILE`",
			EnvVar: "CHAINDB_CONFIG",
		},
	}

	heightFlag := cli.IntFlag{
		Name:  "height, n",
		Value: -1,
		Usage: " block `HEIGHT`",
	}
	hashFlag := cli.StringFlag{
		Name:  "hash, b",
		Value: "",
		Usage: " block `HASH`",
	}
	txidFlag := cli.StringFlag{
		Name:  "txid, t",
		Value: "",
		Usage: "*transaction `TXID`",
	}
	indexFlag := cli.IntFlag{
		Name:  "index, i",
		Value: 0,
		Usage: " output `INDEX`",
	}
	addressFlag := cli.StringFlag{
		Name:  "address, a",
		Value: "",
		Usage: "*encoded `ADDRESS`",
	}
	fromFlag := cli.IntFlag{
		Name:  "from, f",
		Value: 0,
		Usage: " first `HEIGHT`",
	}

	app.Commands = []cli.Command{
		{
			Name:   "info",
			Usage:  "display database status",
			Action: runInfo,
		},
		{
			Name:      "block",
			Usage:     "display a block of the active chain",
			ArgsUsage: "\n   (+ = select one)",
			Flags: []cli.Flag{
				hashFlag,
				heightFlag,
			},
			Action: runBlock,
		},
		{
			Name:      "transaction",
			Usage:     "display a confirmed or unconfirmed transaction",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				txidFlag,
			},
			Action: runTransaction,
		},
		{
			Name:      "spent",
			Usage:     "display the spend status of an output",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				txidFlag,
				indexFlag,
			},
			Action: runSpent,
		},
		{
			Name:      "history",
			Usage:     "list credits and debits of an address",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				addressFlag,
				fromFlag,
				cli.IntFlag{
					Name:  "to, u",
					Value: -1,
					Usage: " last `HEIGHT`",
				},
				cli.IntFlag{
					Name:  "limit, l",
					Value: 0,
					Usage: " at most `COUNT` entries",
				},
			},
			Action: runHistory,
		},
		{
			Name:      "balance",
			Usage:     "display totals for an address",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				addressFlag,
			},
			Action: runBalance,
		},
		{
			Name:      "stealth",
			Usage:     "list stealth outputs matching a prefix",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "prefix, p",
					Value: "",
					Usage: "*prefix `BITS` as a binary string",
				},
				fromFlag,
			},
			Action: runStealth,
		},
		{
			Name:   "mempool",
			Usage:  "list the unconfirmed pool",
			Action: runMempool,
		},
		{
			Name:  "version",
			Usage: "display chaindb-cli version",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "%s\n", version)
				return nil
			},
		},
	}

	// read the configuration and open the database
	app.Before = func(c *cli.Context) error {

		e := c.App.ErrWriter
		w := c.App.Writer
		verbose := c.GlobalBool("verbose")

		// to suppress reading config file if certain commands
		command := c.Args().Get(0)
		if "" == command || "version" == command || "help" == command || "h" == command {
			return nil
		}

		file := c.GlobalString("config-file")
		if verbose {
			fmt.Fprintf(e, "reading config file: %s\n", file)
		}

		config, err := configuration.GetConfiguration(file)
		if nil != err {
			return err
		}

		if err := logger.Initialise(config.Logging); nil != err {
			return err
		}

		options, err := config.DatabaseConfiguration()
		if nil != err {
			return err
		}

		// queries only, no sweeper
		options.ReadOnly = true
		options.MempoolMaxAge = 0

		db, err := chaindb.Open(options)
		if nil != err {
			return err
		}

		c.App.Metadata["config"] = &metadata{
			file:    file,
			config:  config,
			db:      db,
			verbose: verbose,
			e:       e,
			w:       w,
		}
		return nil
	}

	app.After = func(c *cli.Context) error {
		m, ok := c.App.Metadata["config"].(*metadata)
		if !ok {
			return nil
		}
		err := m.db.Close()
		logger.Finalise()
		return err
	}

	err := app.Run(os.Args)
	if nil != err {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		os.Exit(1)
	}
}
