package keystore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Config configures a BadgerStore.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps the database in memory only.
	InMemory bool
	// Logger receives badger's log output. Defaults to logrus.StandardLogger().
	Logger *logrus.Logger
	// NoSync disables fsync on every write. Key material should normally
	// survive a crash, so leave this unset outside tests.
	NoSync bool
}

// BadgerStore is a Store backed by badger.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates a badger database.
func Open(cfg Config) (*BadgerStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("keystore: path is required")
	}

	log := cfg.Logger.WithField("component", "keystore")

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(!cfg.NoSync && !cfg.InMemory).
		WithLogger(badgerLogger{log}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("keystore: open badger at %q: %w", cfg.Path, err)
	}

	log.WithField("path", cfg.Path).WithField("in_memory", cfg.InMemory).Debug("key store opened")
	return &BadgerStore{db: db, log: log}, nil
}

// Get implements Store.
func (s *BadgerStore) Get(key string) ([]byte, bool, error) {
	vals, err := s.GetMany(key)
	if err != nil {
		return nil, false, err
	}
	return vals[0], vals[0] != nil, nil
}

// GetMany implements Store. All keys are read in one badger read
// transaction.
func (s *BadgerStore) GetMany(keys ...string) ([][]byte, error) {
	if err := checkKeys(keys); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make([][]byte, len(keys))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, key := range keys {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if val == nil {
				val = []byte{}
			}
			out[i] = val
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: read: %w", err)
	}
	return out, nil
}

// Put implements Store. All entries are applied in one badger update
// transaction.
func (s *BadgerStore) Put(entries ...Entry) error {
	if err := checkEntries(entries); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			var err error
			if e.Delete {
				err = txn.Delete([]byte(e.Key))
			} else {
				err = txn.Set([]byte(e.Key), e.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("keystore: write: %w", err)
	}
	return nil
}

// Close implements Store. Closing twice is a no-op.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// badgerLogger routes badger's log output to logrus. Badger is chatty at
// info level, so info is demoted to debug.
type badgerLogger struct {
	log *logrus.Entry
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warnf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.log.Debugf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.log.Tracef(f, v...) }
