package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// maxTxnRetries bounds how often Update re-runs after a write conflict.
const maxTxnRetries = 5

// BadgerKV implements KV on top of an embedded BadgerDB.
type BadgerKV struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerKV opens (or creates) the database at dbPath.
func NewBadgerKV(dbPath string, logger logrus.FieldLogger) (*BadgerKV, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerKV{
		db:  db,
		log: logger.WithField("component", "storage"),
	}, nil
}

// Close closes the BadgerDB database.
func (s *BadgerKV) Close() error {
	s.log.Info("Closing BadgerDB...")
	if err := s.db.Close(); err != nil {
		s.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	s.log.Info("BadgerDB closed.")
	return nil
}

// Get returns a copy of the value stored under key.
func (s *BadgerKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.log.WithError(err).WithField("key", key).Error("Failed to read key from BadgerDB")
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *BadgerKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value))
	})
	if err != nil {
		s.log.WithError(err).WithField("key", key).Error("Failed to write key to BadgerDB")
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Update runs fn inside a single read-write transaction. Badger detects a
// concurrent commit to the same key and rejects ours with ErrConflict, in
// which case the whole read-modify-write is replayed.
func (s *BadgerKV) Update(ctx context.Context, key string, fn UpdateFunc) error {
	log := s.log.WithField("key", key)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			var current []byte
			found := true
			item, err := txn.Get([]byte(key))
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				found = false
			case err != nil:
				return err
			default:
				if current, err = item.ValueCopy(nil); err != nil {
					return err
				}
			}

			next, err := fn(current, found)
			if err != nil || next == nil {
				return err
			}
			return txn.SetEntry(badger.NewEntry([]byte(key), next))
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxTxnRetries {
			log.WithField("attempt", attempt).Debug("BadgerDB transaction conflict, retrying")
			continue
		}
		if err != nil {
			log.WithError(err).Error("Failed to update key in BadgerDB")
			return fmt.Errorf("failed to update %s: %w", key, err)
		}
		return nil
	}
}

// Delete removes key. Badger deletes are idempotent.
func (s *BadgerKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		s.log.WithError(err).WithField("key", key).Error("Failed to delete key from BadgerDB")
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// RunGC periodically reclaims value log space until ctx is cancelled.
func (s *BadgerKV) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := s.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				s.log.Info("BadgerDB GC completed successfully")
			case errors.Is(err, badger.ErrNoRewrite):
				s.log.Debug("BadgerDB GC: No rewrite needed")
			case errors.Is(err, badger.ErrDBClosed):
				return
			default:
				s.log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			s.log.Info("Stopping BadgerDB GC routine due to context cancellation")
			return
		}
	}
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
