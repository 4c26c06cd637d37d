// Copyright 2025 Cinder Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package database persists accepted budget objects across restarts. Raw
// canonical records live in a badger blob store keyed by object hash, so a
// reload re-derives identical hashes; vote rows and lookup metadata live in
// sqlite.
package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config describes where and how to open the database
type Config struct {
	Logger  *slog.Logger
	DataDir string
	// InMemory opens ephemeral stores, used by tests and dev mode
	InMemory bool
}

// Database is the durable store behind the budget manager
type Database struct {
	logger   *slog.Logger
	blob     *badger.DB
	metadata *gorm.DB
	dataDir  string
}

// New opens (creating if necessary) the blob and metadata stores under the
// configured data directory
func New(cfg Config) (*Database, error) {
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	badgerOpts := badger.DefaultOptions(
		filepath.Join(cfg.DataDir, "blob"),
	).WithLogger(newBadgerLogger(logger))
	metadataDsn := filepath.Join(cfg.DataDir, "metadata.sqlite")
	if cfg.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
		metadataDsn = "file::memory:"
	}
	blobDb, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	metadataDb, err := gorm.Open(
		sqlite.Open(metadataDsn),
		&gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		},
	)
	if err != nil {
		blobDb.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	db := &Database{
		logger:   logger,
		blob:     blobDb,
		metadata: metadataDb,
		dataDir:  cfg.DataDir,
	}
	if err := db.init(); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return db, nil
}

func (d *Database) init() error {
	return d.metadata.AutoMigrate(
		&ProposalRow{},
		&ProposalVoteRow{},
		&FinalizedBudgetRow{},
		&FinalizedBudgetVoteRow{},
	)
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if sqlDb, sqlErr := d.metadata.DB(); sqlErr == nil {
		err = errors.Join(err, sqlDb.Close())
	}
	err = errors.Join(err, d.blob.Close())
	return err
}

// badgerLogger wraps our logger to implement badger.Logger
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.logger.Error(fmt.Sprintf(format, args...), "component", "database")
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn(fmt.Sprintf(format, args...), "component", "database")
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.logger.Debug(fmt.Sprintf(format, args...), "component", "database")
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.logger.Debug(fmt.Sprintf(format, args...), "component", "database")
}
