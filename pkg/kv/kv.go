// Package kv provides the embedded key-value store backing the queue
// engines.
//
// It wraps Badger with the small contract the queues need: named column
// families, atomic multi-key write batches, point gets, forward iteration
// from a key, and an optional per-family TTL.
//
// Column families are realized as single-byte key prefixes inside one Badger
// instance. Entry keys within a family are the caller's bytes; the queues use
// fixed 8-byte little-endian index keys, so every data key is a fixed-width 9
// bytes and iteration stays prefix-bounded.
//
// TTL is per family and best-effort: Badger hides an expired entry from reads
// as soon as its deadline passes and physically drops it during value-log and
// LSM compaction. Callers must tolerate entries disappearing between two
// reads.
//
// A Store is not safe for concurrent use. The queue layer serializes access.
package kv

import (
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

var (
	// ErrClosed is returned by every operation on a closed store.
	ErrClosed = errors.New("kv: closed")

	// ErrUnknownFamily is returned when an operation names a column family
	// that was not declared in [Options.Families].
	ErrUnknownFamily = errors.New("kv: unknown column family")

	// ErrInvalidInput is returned by [Open] for unusable options.
	ErrInvalidInput = errors.New("kv: invalid input")
)

// FamilyConfig declares one column family.
type FamilyConfig struct {
	// Name identifies the family in Get/Put/iteration calls.
	Name string

	// TTL, when non-zero, is applied to every entry written into the
	// family. Expiry has second granularity and is enforced lazily.
	TTL time.Duration
}

// Options configure opening a store.
type Options struct {
	// Path is the directory holding the store's files. Created if missing.
	Path string

	// Families declares the column families, at most 255. Prefix bytes are
	// assigned in declaration order, so the set and order must be stable
	// across reopens of the same directory.
	Families []FamilyConfig

	// SyncWrites forces an fsync per committed batch. Slower, but a crash
	// cannot lose an acknowledged commit.
	SyncWrites bool
}

type family struct {
	prefix byte
	ttl    time.Duration
}

// Store is an open key-value store rooted at a directory.
//
// A Store must be obtained via [Open]; the zero value is not usable.
type Store struct {
	db       *badger.DB
	path     string
	families map[string]family
	isClosed bool
}

// Open opens or creates the store at opts.Path.
//
// The directory must not be open in any other Store or process; Badger holds
// a directory lock and a second open fails.
//
// Possible errors: [ErrInvalidInput], I/O failures from the underlying store.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	if len(opts.Families) == 0 {
		return nil, fmt.Errorf("at least one column family is required: %w", ErrInvalidInput)
	}

	if len(opts.Families) > 255 {
		return nil, fmt.Errorf("too many column families (%d > 255): %w", len(opts.Families), ErrInvalidInput)
	}

	families := make(map[string]family, len(opts.Families))

	for i, fc := range opts.Families {
		if fc.Name == "" {
			return nil, fmt.Errorf("column family %d has no name: %w", i, ErrInvalidInput)
		}

		if _, dup := families[fc.Name]; dup {
			return nil, fmt.Errorf("duplicate column family %q: %w", fc.Name, ErrInvalidInput)
		}

		families[fc.Name] = family{prefix: byte(i), ttl: fc.TTL}
	}

	badgerOpts := badger.DefaultOptions(opts.Path).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", opts.Path, err)
	}

	return &Store{
		db:       db,
		path:     opts.Path,
		families: families,
	}, nil
}

// Destroy removes every file of the store rooted at path.
//
// The store must not be open.
func Destroy(path string) error {
	if path == "" {
		return fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("destroy store at %s: %w", path, err)
	}

	return nil
}

// Path returns the directory the store is rooted at.
func (s *Store) Path() string {
	return s.path
}

// Close releases the store. Idempotent.
func (s *Store) Close() error {
	if s.isClosed {
		return nil
	}

	s.isClosed = true

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}

func (s *Store) lookup(familyName string) (family, error) {
	if s.isClosed {
		return family{}, ErrClosed
	}

	fam, ok := s.families[familyName]
	if !ok {
		return family{}, fmt.Errorf("%q: %w", familyName, ErrUnknownFamily)
	}

	return fam, nil
}

func keyWithPrefix(prefix byte, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = prefix
	copy(out[1:], key)

	return out
}

// Get returns the value stored under key in the named family.
//
// The second result is false when the key is absent (or expired).
func (s *Store) Get(familyName string, key []byte) ([]byte, bool, error) {
	fam, err := s.lookup(familyName)
	if err != nil {
		return nil, false, err
	}

	var value []byte

	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(keyWithPrefix(fam.prefix, key))
		if getErr != nil {
			return getErr
		}

		value, getErr = item.ValueCopy(nil)

		return getErr
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", familyName, err)
	}

	return value, true, nil
}

// Put writes a single entry, applying the family TTL if configured.
func (s *Store) Put(familyName string, key, value []byte) error {
	batch := s.NewBatch()
	batch.Put(familyName, key, value)

	return batch.Commit()
}

// Delete removes a single entry. Deleting an absent key is not an error.
func (s *Store) Delete(familyName string, key []byte) error {
	batch := s.NewBatch()
	batch.Delete(familyName, key)

	return batch.Commit()
}

// SeekFirstKey returns the smallest key >= from in the named family.
//
// A nil from seeks from the start of the family. The second result is false
// when no live entry exists at or after from.
func (s *Store) SeekFirstKey(familyName string, from []byte) ([]byte, bool, error) {
	fam, err := s.lookup(familyName)
	if err != nil {
		return nil, false, err
	}

	var (
		found bool
		key   []byte
	)

	err = s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = []byte{fam.prefix}

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		it.Seek(keyWithPrefix(fam.prefix, from))

		if !it.Valid() {
			return nil
		}

		found = true
		key = append([]byte(nil), it.Item().Key()[1:]...)

		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("seek %q: %w", familyName, err)
	}

	return key, found, nil
}

// HasAny reports whether the named family contains at least one live entry.
func (s *Store) HasAny(familyName string) (bool, error) {
	_, found, err := s.SeekFirstKey(familyName, nil)

	return found, err
}

// Each calls fn for every live entry of the named family in key order.
//
// Iteration stops at the first error, which is returned.
func (s *Store) Each(familyName string, fn func(key, value []byte) error) error {
	fam, err := s.lookup(familyName)
	if err != nil {
		return err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte{fam.prefix}

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek([]byte{fam.prefix}); it.Valid(); it.Next() {
			item := it.Item()

			value, valErr := item.ValueCopy(nil)
			if valErr != nil {
				return valErr
			}

			key := append([]byte(nil), item.Key()[1:]...)

			if fnErr := fn(key, value); fnErr != nil {
				return fnErr
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("iterate %q: %w", familyName, err)
	}

	return nil
}
