package queue

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/calvinalkan/badgerq/pkg/fsutil"
	"github.com/calvinalkan/badgerq/pkg/kv"
	"github.com/calvinalkan/badgerq/pkg/ring"
)

// The bounded queue keeps entries and metadata in one column family,
// separated by numeric range: entry keys are indices in [0, ring.Mod),
// metadata cells sit in the reserved range above [ring.MaxIndex].
const (
	boundedWriteIndexCell uint64 = math.MaxUint64
	boundedReadIndexCell  uint64 = math.MaxUint64 - 1
	boundedSpaceStatCell  uint64 = math.MaxUint64 - 2
)

const boundedFamily = "queue"

// BoundedOptions configure opening a bounded queue.
type BoundedOptions struct {
	// Path is the queue directory. Created if missing.
	Path string

	// MaxElements is the queue capacity. Must be in [1, ring.MaxIndex].
	MaxElements uint64

	// SyncWrites forces an fsync per push/pop batch.
	SyncWrites bool
}

// Bounded is a durable fixed-capacity FIFO of byte payloads.
//
// Entries are keyed by contiguous 64-bit sequence indices that wrap on the
// index ring; pushes advance the write index, pops consume from the read
// index and delete as they go. Every mutation is one atomic store batch, so
// a crash never tears a push or pop in half.
//
// A Bounded handle owns its directory exclusively and is not safe for
// concurrent use; see [BlockingBounded] and [AsyncBounded].
//
// A Bounded must be obtained via [OpenBounded]; the zero value is not
// usable.
type Bounded struct {
	_ [0]func() // prevent external construction

	store       *kv.Store
	path        string
	ring        ring.Ring
	maxElements uint64

	writeIndex uint64
	readIndex  uint64
	spaceStat  uint64
	empty      bool

	isClosed bool
}

// OpenBounded opens or creates a bounded queue at opts.Path.
//
// On reopen the persisted cursors and space statistic are recovered and the
// queue resumes exactly where it left off.
//
// Possible errors: [ErrInvalidInput], [ErrIncompatible], [ErrStorage].
func OpenBounded(opts BoundedOptions) (*Bounded, error) {
	return openBounded(opts, ring.Std)
}

// openBounded exists so tests can substitute a small ring and exercise
// wrap-around without 2^64 entries.
func openBounded(opts BoundedOptions, r ring.Ring) (*Bounded, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	if opts.MaxElements < 1 {
		return nil, fmt.Errorf("max_elements must be >= 1: %w", ErrInvalidInput)
	}

	if opts.MaxElements > r.Mod {
		return nil, fmt.Errorf("max_elements %d exceeds %d: %w", opts.MaxElements, r.Mod, ErrInvalidInput)
	}

	if err := checkFlavor(opts.Path, flavorBounded); err != nil {
		return nil, err
	}

	store, err := kv.Open(kv.Options{
		Path:       opts.Path,
		Families:   []kv.FamilyConfig{{Name: boundedFamily}},
		SyncWrites: opts.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("open bounded queue: %w: %w", ErrStorage, err)
	}

	q := &Bounded{
		store:       store,
		path:        opts.Path,
		ring:        r,
		maxElements: opts.MaxElements,
	}

	q.writeIndex, err = q.loadCell(boundedWriteIndexCell, 0)
	if err == nil {
		q.readIndex, err = q.loadCell(boundedReadIndexCell, 0)
	}

	if err == nil {
		q.spaceStat, err = q.loadCell(boundedSpaceStatCell, 0)
	}

	if err != nil {
		_ = store.Close()

		return nil, err
	}

	// The cursors alone cannot distinguish empty from completely full;
	// probe the slot the next pop would read.
	_, present, err := store.Get(boundedFamily, ring.EncodeKey(q.readIndex))
	if err != nil {
		_ = store.Close()

		return nil, fmt.Errorf("probe read index: %w: %w", ErrStorage, err)
	}

	q.empty = !present

	err = writeManifest(opts.Path, Manifest{
		Flavor:      flavorBounded,
		MaxElements: opts.MaxElements,
	})
	if err != nil {
		_ = store.Close()

		return nil, err
	}

	return q, nil
}

// RemoveBounded destroys the on-disk state of a bounded queue.
//
// The queue must be closed first.
func RemoveBounded(path string) error {
	if err := kv.Destroy(path); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return nil
}

func (q *Bounded) loadCell(cell, fallback uint64) (uint64, error) {
	raw, present, err := q.store.Get(boundedFamily, ring.EncodeKey(cell))
	if err != nil {
		return 0, fmt.Errorf("load cell: %w: %w", ErrStorage, err)
	}

	if !present {
		return fallback, nil
	}

	if len(raw) != 8 {
		return 0, fmt.Errorf("cell value length %d: %w", len(raw), ErrDecode)
	}

	return binary.LittleEndian.Uint64(raw), nil
}

// Close releases the queue. Idempotent.
func (q *Bounded) Close() error {
	if q.isClosed {
		return nil
	}

	q.isClosed = true

	if err := q.store.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return nil
}

// Path returns the queue directory.
func (q *Bounded) Path() string {
	return q.path
}

// MaxElements returns the queue capacity.
func (q *Bounded) MaxElements() uint64 {
	return q.maxElements
}

// Len returns the number of live entries.
func (q *Bounded) Len() uint64 {
	if q.empty {
		return 0
	}

	return q.ring.Distance(q.readIndex, q.writeIndex, false)
}

// IsEmpty reports whether the queue holds no entries.
func (q *Bounded) IsEmpty() bool {
	return q.empty
}

// PayloadSize returns the byte sum of all live payloads.
func (q *Bounded) PayloadSize() uint64 {
	return q.spaceStat
}

// DiskSize returns the recursive byte size of the queue directory.
func (q *Bounded) DiskSize() (int64, error) {
	size, err := fsutil.DirSize(q.path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return size, nil
}

// Push appends values to the queue in order, atomically.
//
// An empty values slice is a no-op. If the batch does not fit,
// [ErrFull] is returned and nothing is written.
func (q *Bounded) Push(values [][]byte) error {
	if q.isClosed {
		return ErrClosed
	}

	if len(values) == 0 {
		return nil
	}

	if q.Len()+uint64(len(values)) > q.maxElements {
		return fmt.Errorf("%d elements + %d pushed exceed capacity %d: %w",
			q.Len(), len(values), q.maxElements, ErrFull)
	}

	batch := q.store.NewBatch()
	writeIndex := q.writeIndex
	spaceStat := q.spaceStat

	for _, value := range values {
		batch.Put(boundedFamily, ring.EncodeKey(writeIndex), value)
		writeIndex = q.ring.Next(writeIndex)
		spaceStat += uint64(len(value))
	}

	batch.Put(boundedFamily, ring.EncodeKey(boundedWriteIndexCell), u64Bytes(writeIndex))
	batch.Put(boundedFamily, ring.EncodeKey(boundedSpaceStatCell), u64Bytes(spaceStat))

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("push: %w: %w", ErrStorage, err)
	}

	// Publish only after the batch is durable.
	q.writeIndex = writeIndex
	q.spaceStat = spaceStat
	q.empty = false

	return nil
}

// Pop removes and returns up to maxElts entries in push order.
//
// An empty queue yields an empty result, not an error. If a slot is
// unexpectedly missing mid-drain, Pop stops at the hole and commits what it
// collected.
func (q *Bounded) Pop(maxElts int) ([][]byte, error) {
	if q.isClosed {
		return nil, ErrClosed
	}

	if maxElts <= 0 {
		return nil, nil
	}

	var popped [][]byte

	batch := q.store.NewBatch()
	readIndex := q.readIndex
	spaceStat := q.spaceStat

	for len(popped) < maxElts {
		key := ring.EncodeKey(readIndex)

		value, present, err := q.store.Get(boundedFamily, key)
		if err != nil {
			return nil, fmt.Errorf("pop: %w: %w", ErrStorage, err)
		}

		if !present {
			break
		}

		batch.Delete(boundedFamily, key)
		popped = append(popped, value)
		spaceStat -= uint64(len(value))
		readIndex = q.ring.Next(readIndex)

		if readIndex == q.writeIndex {
			break
		}
	}

	if len(popped) == 0 {
		return nil, nil
	}

	batch.Put(boundedFamily, ring.EncodeKey(boundedReadIndexCell), u64Bytes(readIndex))
	batch.Put(boundedFamily, ring.EncodeKey(boundedSpaceStatCell), u64Bytes(spaceStat))

	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("pop: %w: %w", ErrStorage, err)
	}

	q.readIndex = readIndex
	q.spaceStat = spaceStat
	q.empty = readIndex == q.writeIndex

	return popped, nil
}

// u64Bytes encodes a metadata cell value, little-endian like entry keys.
func u64Bytes(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}
