// Package cache keeps definition snapshots and their index tables in a
// badger database, so a later run over the same definition can skip
// building the index.
package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"

	"github.com/cottand/ksym/definition"
	"github.com/cottand/ksym/index"
	"github.com/cottand/ksym/internal/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var logger = log.Section("cache")

type Config struct {
	// Dir holds the database files. It is required unless InMemory is set.
	Dir        string `validate:"required_without=InMemory"`
	InMemory   bool
	SyncWrites bool
}

func DefaultConfig(dir string) Config {
	return Config{Dir: dir, SyncWrites: true}
}

// InMemoryConfig keeps nothing once the store is closed
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

var validate = validator.New()

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

type Store struct {
	db *badger.DB
}

func Open(cfg Config) (*Store, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid cache config")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, errors.Wrapf(err, "could not create cache directory %s", cfg.Dir)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "could not open cache")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func definitionKey(fingerprint uint64) []byte {
	return []byte(fmt.Sprintf("definition/%016x", fingerprint))
}

func indexKey(fingerprint uint64) []byte {
	return []byte(fmt.Sprintf("index/%016x", fingerprint))
}

// PutDefinition stores snap under its fingerprint and returns the fingerprint
func (s *Store) PutDefinition(snap *definition.Snapshot) (uint64, error) {
	fingerprint, err := snap.Fingerprint()
	if err != nil {
		return 0, err
	}
	if err := s.put(definitionKey(fingerprint), snap); err != nil {
		return 0, errors.Wrap(err, "could not store definition")
	}
	return fingerprint, nil
}

// LoadDefinition returns the definition snapshot stored under fingerprint.
// The second result is false when there is none.
func (s *Store) LoadDefinition(fingerprint uint64) (*definition.Snapshot, bool, error) {
	snap := &definition.Snapshot{}
	found, err := s.get(definitionKey(fingerprint), snap)
	if err != nil || !found {
		return nil, false, errors.Wrap(err, "could not load definition")
	}
	return snap, true, nil
}

// PutIndex stores the index table snapshot of the definition with fingerprint
func (s *Store) PutIndex(fingerprint uint64, snap *index.Snapshot) error {
	return errors.Wrap(s.put(indexKey(fingerprint), snap), "could not store index")
}

// LoadIndex returns the index table snapshot stored for fingerprint. The
// second result is false when there is none.
func (s *Store) LoadIndex(fingerprint uint64) (*index.Snapshot, bool, error) {
	snap := &index.Snapshot{}
	found, err := s.get(indexKey(fingerprint), snap)
	if err != nil || !found {
		return nil, false, errors.Wrap(err, "could not load index")
	}
	return snap, true, nil
}

// Table returns the index table of def. A table stored for the fingerprint
// of def is restored; otherwise a new one is built and stored. A stored
// table that no longer resolves against def is rebuilt.
func (s *Store) Table(def *definition.Definition, opts ...index.Option) (*index.Table, error) {
	fingerprint, err := s.PutDefinition(def.Snapshot())
	if err != nil {
		return nil, err
	}
	snap, found, err := s.LoadIndex(fingerprint)
	if err != nil {
		return nil, err
	}
	if found {
		table, err := index.Restore(def, snap, opts...)
		if err == nil {
			logger.Debug("restored index table", "fingerprint", fingerprint, "buckets", len(snap.Buckets))
			return table, nil
		}
		logger.Warn("discarding stored index table", "fingerprint", fingerprint, "err", err)
	}

	table := index.NewTable(def, opts...)
	table.Build()
	if err := s.PutIndex(fingerprint, table.Snapshot()); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *Store) put(key []byte, value any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return errors.Wrap(err, "could not encode")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
}

func (s *Store) get(key []byte, into any) (bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(into); err != nil {
		return false, errors.Wrap(err, "could not decode")
	}
	return true, nil
}
