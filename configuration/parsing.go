// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/chaindb"
	"github.com/bitmark-inc/chaindb/backend"
	"github.com/bitmark-inc/chaindb/chain"
	"github.com/bitmark-inc/chaindb/fault"
	"github.com/bitmark-inc/chaindb/schema"
)

// basic defaults (directories and files are relative to the "DataDirectory" from Configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultDatabaseDirectory = "data"
	defaultBackend           = string(backend.LevelDB)
	defaultProfile           = chaindb.DefaultProfile
	defaultReorgLimit        = 100

	defaultOpenTimeout   = "2s"
	defaultCacheExpiry   = "10m"
	defaultMempoolMaxAge = "336h" // two weeks
	defaultSweepInterval = "1m"

	defaultLogDirectory = "log"
	defaultLogFile      = "chaindb.log"
	defaultLogCount     = 10          //  number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size
)

// DatabaseType - engine and schema selection
type DatabaseType struct {
	Directory        string `gluamapper:"directory" json:"directory"`
	Backend          string `gluamapper:"backend" json:"backend"`
	Profile          string `gluamapper:"profile" json:"profile"`
	ReadOnly         bool   `gluamapper:"read_only" json:"read_only"`
	FlushWrites      bool   `gluamapper:"flush_writes" json:"flush_writes"`
	MaxTransactions  int64  `gluamapper:"max_transactions" json:"max_transactions"`
	OpenTimeout      string `gluamapper:"open_timeout" json:"open_timeout"`
	MaxSize          int    `gluamapper:"max_size" json:"max_size"`
	IndexStartHeight uint32 `gluamapper:"index_start_height" json:"index_start_height"`
	ReorgLimit       uint32 `gluamapper:"reorg_limit" json:"reorg_limit"`
	ConflictRetries  int    `gluamapper:"conflict_retries" json:"conflict_retries"`
}

// CacheType - aggregate result cache
type CacheType struct {
	Expiry string `gluamapper:"expiry" json:"expiry"`
}

// MempoolType - unconfirmed pool expiry
type MempoolType struct {
	MaxAge        string `gluamapper:"max_age" json:"max_age"`
	SweepInterval string `gluamapper:"sweep_interval" json:"sweep_interval"`
}

// Configuration - the contents of a configuration file
type Configuration struct {
	DataDirectory string               `gluamapper:"data_directory" json:"data_directory"`
	Chain         string               `gluamapper:"chain" json:"chain"`
	Instrument    bool                 `gluamapper:"instrument" json:"instrument"`
	Database      DatabaseType         `gluamapper:"database" json:"database"`
	Cache         CacheType            `gluamapper:"cache" json:"cache"`
	Mempool       MempoolType          `gluamapper:"mempool" json:"mempool"`
	Logging       logger.Configuration `gluamapper:"logging" json:"logging"`
}

// GetConfiguration - read decode and verify the configuration
func GetConfiguration(configurationFileName string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	options := &Configuration{

		DataDirectory: defaultDataDirectory,
		Chain:         chain.Bitcoin,

		Database: DatabaseType{
			Directory:   defaultDatabaseDirectory,
			Backend:     defaultBackend,
			Profile:     defaultProfile,
			OpenTimeout: defaultOpenTimeout,
			ReorgLimit:  defaultReorgLimit,
		},

		Cache: CacheType{
			Expiry: defaultCacheExpiry,
		},

		Mempool: MempoolType{
			MaxAge:        defaultMempoolMaxAge,
			SweepInterval: defaultSweepInterval,
		},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels: map[string]string{
				"main":            "info",
				"chaindb":         "info",
				logger.DefaultTag: "critical",
			},
		},
	}

	if err := ParseConfigurationFile(configurationFileName, options); err != nil {
		return nil, err
	}

	options.Chain = strings.ToLower(options.Chain)
	if !chain.Valid(options.Chain) {
		return nil, fmt.Errorf("%w: chain: %q is not supported", fault.ErrInvalidChain, options.Chain)
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fmt.Errorf("%w: %q is not a valid directory", fault.ErrInvalidPath, options.DataDirectory)
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	} else {
		options.DataDirectory = filepath.Clean(options.DataDirectory)
	}

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", fault.ErrInvalidPath, options.DataDirectory)
	}

	// the log file must be a plain name inside the log directory
	switch filepath.Dir(options.Logging.File) {
	case "", ".":
	default:
		return nil, fmt.Errorf("%w: %q is not plain name", fault.ErrInvalidPath, options.Logging.File)
	}

	// make absolute and create directories if they do not already exist
	directories := []*string{
		&options.Logging.Directory,
	}
	options.Database.Directory = ensureAbsolute(options.DataDirectory, options.Database.Directory)
	if !options.Database.ReadOnly {
		directories = append(directories, &options.Database.Directory)
	}
	for _, d := range directories {
		*d = ensureAbsolute(options.DataDirectory, *d)
		if err := os.MkdirAll(*d, 0700); nil != err {
			return nil, err
		}
	}

	// reject anything the database would refuse at open
	if _, err := options.DatabaseConfiguration(); nil != err {
		return nil, err
	}

	// done
	return options, nil
}

// DatabaseConfiguration - the settings for chaindb.Open
func (c *Configuration) DatabaseConfiguration() (chaindb.Configuration, error) {
	d := c.Database

	result := chaindb.Configuration{
		Directory:        d.Directory,
		Backend:          backend.Kind(strings.ToLower(d.Backend)),
		Profile:          strings.ToLower(d.Profile),
		ReadOnly:         d.ReadOnly,
		Chain:            c.Chain,
		Instrument:       c.Instrument,
		IndexStartHeight: d.IndexStartHeight,
		ReorgLimit:       d.ReorgLimit,
		ConflictRetries:  d.ConflictRetries,
		FlushWrites:      d.FlushWrites,
		MaxTransactions:  d.MaxTransactions,
		MaxSize:          d.MaxSize,
	}

	durations := []struct {
		name  string
		value string
		to    *time.Duration
	}{
		{"database.open_timeout", d.OpenTimeout, &result.OpenTimeout},
		{"cache.expiry", c.Cache.Expiry, &result.CacheExpiry},
		{"mempool.max_age", c.Mempool.MaxAge, &result.MempoolMaxAge},
		{"mempool.sweep_interval", c.Mempool.SweepInterval, &result.MempoolSweepInterval},
	}

	for _, item := range durations {
		if "" == item.value {
			continue
		}
		v, err := time.ParseDuration(item.value)
		if nil != err || v < 0 {
			return chaindb.Configuration{}, fmt.Errorf("%w: %s: %q", fault.ErrInvalidDuration, item.name, item.value)
		}
		*item.to = v
	}

	if !backend.Valid(result.Backend) {
		return chaindb.Configuration{}, fmt.Errorf("%w: %q", fault.ErrInvalidBackend, d.Backend)
	}
	if _, err := schema.Lookup(result.Profile); nil != err {
		return chaindb.Configuration{}, err
	}

	return result, nil
}

// prefix a relative path with the base directory
func ensureAbsolute(directory string, filePath string) string {
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(directory, filePath)
	}
	return filepath.Clean(filePath)
}
