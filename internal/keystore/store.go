// Package keystore provides durable storage for key material as named slots.
//
// A [Store] reads several slots from one consistent snapshot and writes
// several slots in one atomic step, so a reader never observes half of a
// multi-slot update. Two implementations are provided: [BadgerStore] for
// on-disk storage and [MemoryStore] for tests and ephemeral sessions.
package keystore

import "errors"

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("keystore: store is closed")

	// ErrEmptyKey is returned when a slot name is empty.
	ErrEmptyKey = errors.New("keystore: empty slot name")
)

// Entry is one slot write.
type Entry struct {
	Key   string
	Value []byte
	// Delete removes the slot instead of writing Value.
	Delete bool
}

// Store is a slot-addressed key/value store.
type Store interface {
	// Get returns the value of one slot and whether it exists.
	Get(key string) ([]byte, bool, error)

	// GetMany returns the values of several slots read from one snapshot.
	// The result has one element per key; absent slots are nil.
	GetMany(keys ...string) ([][]byte, error)

	// Put applies all entries or none of them. Deleting a missing slot is
	// not an error.
	Put(entries ...Entry) error

	// Close releases the store.
	Close() error
}

// Deletes returns entries that remove keys.
func Deletes(keys ...string) []Entry {
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Key: k, Delete: true}
	}
	return out
}

func checkKeys(keys []string) error {
	for _, k := range keys {
		if k == "" {
			return ErrEmptyKey
		}
	}
	return nil
}

func checkEntries(entries []Entry) error {
	for _, e := range entries {
		if e.Key == "" {
			return ErrEmptyKey
		}
	}
	return nil
}
