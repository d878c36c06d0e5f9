package kv

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Batch accumulates puts and deletes and commits them in one atomic
// transaction.
//
// Ops are applied in the order they were staged. Nothing touches the store
// until [Batch.Commit]; a Batch that is never committed has no effect.
type Batch struct {
	store *Store
	ops   []batchOp
}

type batchOp struct {
	family string
	key    []byte
	value  []byte
	delete bool
}

// NewBatch returns an empty batch bound to the store.
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s}
}

// Put stages a write. The family TTL, if configured, is applied at commit.
//
// Key and value are retained until commit; callers must not mutate them.
func (b *Batch) Put(familyName string, key, value []byte) {
	b.ops = append(b.ops, batchOp{family: familyName, key: key, value: value})
}

// Delete stages a removal.
func (b *Batch) Delete(familyName string, key []byte) {
	b.ops = append(b.ops, batchOp{family: familyName, key: key, delete: true})
}

// Len returns the number of staged ops.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Commit applies all staged ops in a single transaction.
//
// Either every op is durably applied or none is. An empty batch commits
// trivially. After Commit the batch must not be reused.
//
// Possible errors: [ErrClosed], [ErrUnknownFamily], I/O failures from the
// underlying store.
func (b *Batch) Commit() error {
	if b.store.isClosed {
		return ErrClosed
	}

	if len(b.ops) == 0 {
		return nil
	}

	// Resolve families up front so an unknown name fails before any write.
	resolved := make([]family, len(b.ops))

	for i, op := range b.ops {
		fam, ok := b.store.families[op.family]
		if !ok {
			return fmt.Errorf("%q: %w", op.family, ErrUnknownFamily)
		}

		resolved[i] = fam
	}

	err := b.store.db.Update(func(txn *badger.Txn) error {
		for i, op := range b.ops {
			fam := resolved[i]
			prefixed := keyWithPrefix(fam.prefix, op.key)

			if op.delete {
				if delErr := txn.Delete(prefixed); delErr != nil {
					return delErr
				}

				continue
			}

			entry := badger.NewEntry(prefixed, op.value)
			if fam.ttl > 0 {
				entry = entry.WithTTL(fam.ttl)
			}

			if setErr := txn.SetEntry(entry); setErr != nil {
				return setErr
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("commit batch of %d ops: %w", len(b.ops), err)
	}

	return nil
}
