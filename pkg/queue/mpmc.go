package queue

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/calvinalkan/badgerq/pkg/fsutil"
	"github.com/calvinalkan/badgerq/pkg/kv"
	"github.com/calvinalkan/badgerq/pkg/ring"
)

// Column families of an mpmc queue. Entries live in data under index keys
// and carry the TTL; the store drops them on its own once they expire. The
// queue never deletes data entries, it only reacts to their disappearance.
const (
	mpmcDataFamily   = "data"
	mpmcSystemFamily = "system"
	mpmcReaderFamily = "reader"
)

// Metadata cells in the system family.
const (
	mpmcStartIndexCell     uint64 = math.MaxUint64
	mpmcWriteIndexCell     uint64 = math.MaxUint64 - 1
	mpmcWriteTimestampCell uint64 = math.MaxUint64 - 2
)

// StartPosition selects where a new consumer label begins reading.
type StartPosition int

const (
	// Oldest starts at the oldest live entry.
	Oldest StartPosition = iota

	// Newest starts at the most recently added live entry, or parks at
	// the write head when the queue is empty.
	Newest
)

// MpmcOptions configure opening an mpmc queue.
type MpmcOptions struct {
	// Path is the queue directory. Created if missing.
	Path string

	// TTL is the entry time-to-live. Must be > 0. Expiry is best-effort
	// with second granularity: an entry may be visible briefly past its
	// TTL and may vanish between two reads.
	TTL time.Duration

	// SyncWrites forces an fsync per committed batch.
	SyncWrites bool
}

// Mpmc is a durable queue whose entries expire after a TTL and whose
// consumers each keep an independent durable cursor.
//
// Reads do not remove entries: any number of labels can observe the same
// entry, and an entry disappears only when the store expires it. Because
// expiry happens underneath the queue, every add and every next first
// reconciles the in-memory cursors against the smallest key still alive.
//
// An Mpmc handle owns its directory exclusively and is not safe for
// concurrent use; see [BlockingMpmc] and [AsyncMpmc].
//
// An Mpmc must be obtained via [OpenMpmc]; the zero value is not usable.
type Mpmc struct {
	_ [0]func() // prevent external construction

	store *kv.Store
	path  string
	ring  ring.Ring
	ttl   time.Duration

	startIndex     uint64
	writeIndex     uint64
	writeTimestamp uint64
	readers        map[string]readerRec
	empty          bool

	isClosed bool
}

// OpenMpmc opens or creates an mpmc queue at opts.Path.
//
// Possible errors: [ErrInvalidInput], [ErrIncompatible], [ErrStorage],
// [ErrDecode].
func OpenMpmc(opts MpmcOptions) (*Mpmc, error) {
	return openMpmc(opts, ring.Std)
}

func openMpmc(opts MpmcOptions, r ring.Ring) (*Mpmc, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	if opts.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be > 0: %w", ErrInvalidInput)
	}

	if err := checkFlavor(opts.Path, flavorMpmc); err != nil {
		return nil, err
	}

	store, err := kv.Open(kv.Options{
		Path: opts.Path,
		Families: []kv.FamilyConfig{
			{Name: mpmcDataFamily, TTL: opts.TTL},
			{Name: mpmcSystemFamily},
			{Name: mpmcReaderFamily},
		},
		SyncWrites: opts.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("open mpmc queue: %w: %w", ErrStorage, err)
	}

	q := &Mpmc{
		store:   store,
		path:    opts.Path,
		ring:    r,
		ttl:     opts.TTL,
		readers: make(map[string]readerRec),
	}

	if err := q.loadState(); err != nil {
		_ = store.Close()

		return nil, err
	}

	err = writeManifest(opts.Path, Manifest{
		Flavor:     flavorMpmc,
		TTLSeconds: uint64(opts.TTL / time.Second),
	})
	if err != nil {
		_ = store.Close()

		return nil, err
	}

	return q, nil
}

func (q *Mpmc) loadState() error {
	var err error

	q.startIndex, err = q.loadCell(mpmcStartIndexCell, 0)
	if err != nil {
		return err
	}

	q.writeIndex, err = q.loadCell(mpmcWriteIndexCell, 0)
	if err != nil {
		return err
	}

	q.writeTimestamp, err = q.loadCell(mpmcWriteTimestampCell, nowNanos())
	if err != nil {
		return err
	}

	hasData, err := q.store.HasAny(mpmcDataFamily)
	if err != nil {
		return fmt.Errorf("probe data: %w: %w", ErrStorage, err)
	}

	q.empty = !hasData

	err = q.store.Each(mpmcReaderFamily, func(key, value []byte) error {
		rec, decErr := decodeReader(value)
		if decErr != nil {
			return fmt.Errorf("reader %q: %w", key, decErr)
		}

		q.readers[string(key)] = rec

		return nil
	})
	if err != nil {
		return fmt.Errorf("load readers: %w", err)
	}

	return nil
}

func (q *Mpmc) loadCell(cell, fallback uint64) (uint64, error) {
	raw, present, err := q.store.Get(mpmcSystemFamily, ring.EncodeKey(cell))
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

// RemoveMpmc destroys the on-disk state of an mpmc queue.
//
// The queue must be closed first.
func RemoveMpmc(path string) error {
	if err := kv.Destroy(path); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return nil
}

// Close releases the queue. Idempotent.
func (q *Mpmc) Close() error {
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
func (q *Mpmc) Path() string {
	return q.path
}

// TTL returns the configured entry time-to-live.
func (q *Mpmc) TTL() time.Duration {
	return q.ttl
}

// Len returns the number of live entries as of the last reconciliation.
func (q *Mpmc) Len() uint64 {
	if q.empty {
		return 0
	}

	return q.ring.Distance(q.startIndex, q.writeIndex, false)
}

// IsEmpty reports whether the queue held no entries at the last
// reconciliation.
func (q *Mpmc) IsEmpty() bool {
	return q.empty
}

// DiskSize returns the recursive byte size of the queue directory.
func (q *Mpmc) DiskSize() (int64, error) {
	size, err := fsutil.DirSize(q.path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return size, nil
}

// Add appends values to the queue in order, atomically, stamping a fresh
// write timestamp.
//
// An empty values slice is a no-op. [ErrFull] is returned when the batch
// would exceed the index ring.
func (q *Mpmc) Add(values [][]byte) error {
	if q.isClosed {
		return ErrClosed
	}

	if len(values) == 0 {
		return nil
	}

	if err := q.reconcile(); err != nil {
		return err
	}

	if q.Len()+uint64(len(values)) > q.ring.Mod {
		return fmt.Errorf("%d elements + %d added exceed %d: %w",
			q.Len(), len(values), q.ring.Mod, ErrFull)
	}

	batch := q.store.NewBatch()
	writeIndex := q.writeIndex

	for _, value := range values {
		batch.Put(mpmcDataFamily, ring.EncodeKey(writeIndex), value)
		writeIndex = q.ring.Next(writeIndex)
	}

	writeTimestamp := nowNanos()

	batch.Put(mpmcSystemFamily, ring.EncodeKey(mpmcWriteIndexCell), u64Bytes(writeIndex))
	batch.Put(mpmcSystemFamily, ring.EncodeKey(mpmcWriteTimestampCell), u64Bytes(writeTimestamp))

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("add: %w: %w", ErrStorage, err)
	}

	q.writeIndex = writeIndex
	q.writeTimestamp = writeTimestamp
	q.empty = false

	return nil
}

// Next returns up to maxElts entries for the given consumer label, advancing
// its cursor, and reports whether the label lost entries to expiry since its
// previous call.
//
// A label seen for the first time starts at startPosition. If an entry
// vanishes under the cursor mid-drain, the partial prefix collected so far
// is discarded — the consumer never receives a batch torn across an expiry
// boundary — and the loss is reported on this or the following call.
//
// maxElts <= 0 returns an empty batch without advancing the cursor or
// changing a known label's tail timestamp.
func (q *Mpmc) Next(maxElts int, label string, startPosition StartPosition) ([][]byte, bool, error) {
	if q.isClosed {
		return nil, false, ErrClosed
	}

	if label == "" {
		return nil, false, fmt.Errorf("label is required: %w", ErrInvalidInput)
	}

	if err := q.reconcile(); err != nil {
		return nil, false, err
	}

	reader, known := q.readers[label]
	if !known {
		reader = readerRec{index: q.newReaderIndex(startPosition)}
	}

	atTail := false
	if reader.hasEndTimestamp {
		atTail = reader.endTimestamp == q.writeTimestamp
	} else {
		atTail = reader.index == q.writeIndex && q.empty
	}

	var items [][]byte

	for !atTail && len(items) < maxElts {
		value, present, err := q.store.Get(mpmcDataFamily, ring.EncodeKey(reader.index))
		if err != nil {
			return nil, false, fmt.Errorf("next %q: %w: %w", label, ErrStorage, err)
		}

		if present {
			items = append(items, value)
		} else {
			// The entry expired while we were draining. Drop the
			// partial prefix and keep walking; the consumer resumes
			// from the first entry still alive.
			items = items[:0]
			reader.expired = true
		}

		reader.index = q.ring.Next(reader.index)
		atTail = reader.index == q.writeIndex
	}

	// A zero-sized read leaves a known label's tail marker as it was.
	if maxElts > 0 || !known {
		if atTail {
			reader.hasEndTimestamp = true
			reader.endTimestamp = q.writeTimestamp
		} else {
			reader.hasEndTimestamp = false
			reader.endTimestamp = 0
		}
	}

	expired := reader.expired
	reader.expired = false

	if stored, ok := q.readers[label]; !ok || stored != reader {
		err := q.store.Put(mpmcReaderFamily, []byte(label), encodeReader(reader))
		if err != nil {
			return nil, false, fmt.Errorf("persist reader %q: %w: %w", label, ErrStorage, err)
		}

		q.readers[label] = reader
	}

	return items, expired, nil
}

// newReaderIndex places a first-time label on the ring.
func (q *Mpmc) newReaderIndex(startPosition StartPosition) uint64 {
	if startPosition == Newest {
		if q.empty {
			return q.writeIndex
		}

		return q.ring.Prev(q.writeIndex)
	}

	return q.startIndex
}

// Labels returns the known consumer labels in unspecified order.
func (q *Mpmc) Labels() []string {
	labels := make([]string, 0, len(q.readers))
	for label := range q.readers {
		labels = append(labels, label)
	}

	return labels
}

// RemoveLabel deletes a consumer cursor and reports whether it existed.
//
// A subsequent [Mpmc.Next] for the label treats it as new.
func (q *Mpmc) RemoveLabel(label string) (bool, error) {
	if q.isClosed {
		return false, ErrClosed
	}

	if _, known := q.readers[label]; !known {
		return false, nil
	}

	if err := q.store.Delete(mpmcReaderFamily, []byte(label)); err != nil {
		return false, fmt.Errorf("remove label %q: %w: %w", label, ErrStorage, err)
	}

	delete(q.readers, label)

	return true, nil
}

// reconcile pulls start index and reader cursors forward after the store
// expired entries underneath the queue.
//
// It finds the smallest live data key with at most two probes: forward from
// the current start index, then — if the physical keys wrapped — from the
// absolute start of the data family. Three outcomes:
//
//   - nothing changed: no writes;
//   - everything expired: all readers park at the write head, a reader
//     that was not already at the tail is flagged expired;
//   - some entries expired: start index jumps to the new minimum and each
//     reader is clamped forward by the ring-aware rule, flagged expired if
//     it moved.
//
// All mutations commit in one batch before the in-memory state is
// published, so reconciliation is idempotent until the store changes again.
func (q *Mpmc) reconcile() error {
	if q.empty {
		return nil
	}

	firstKey, found, err := q.store.SeekFirstKey(mpmcDataFamily, ring.EncodeKey(q.startIndex))
	if err != nil {
		return fmt.Errorf("reconcile: %w: %w", ErrStorage, err)
	}

	if !found {
		firstKey, found, err = q.store.SeekFirstKey(mpmcDataFamily, nil)
		if err != nil {
			return fmt.Errorf("reconcile: %w: %w", ErrStorage, err)
		}
	}

	var (
		newStart uint64
		newEmpty bool
		adjust   func(r *readerRec)
	)

	if !found {
		// Every entry expired.
		newStart = q.writeIndex
		newEmpty = true
		adjust = func(r *readerRec) {
			r.expired = !(r.hasEndTimestamp && r.endTimestamp == q.writeTimestamp)
			r.index = q.writeIndex
			r.hasEndTimestamp = true
			r.endTimestamp = q.writeTimestamp
		}
	} else {
		smallest, ok := ring.DecodeKey(firstKey)
		if !ok {
			return fmt.Errorf("data key length %d: %w", len(firstKey), ErrDecode)
		}

		if smallest == q.startIndex {
			return nil
		}

		newStart = smallest
		newEmpty = false
		adjust = func(r *readerRec) {
			next := q.clampReaderIndex(r.index, smallest)
			r.expired = next != r.index
			r.index = next
		}
	}

	batch := q.store.NewBatch()

	for label, rec := range q.readers {
		adjusted := rec
		adjust(&adjusted)
		batch.Put(mpmcReaderFamily, []byte(label), encodeReader(adjusted))
	}

	batch.Put(mpmcSystemFamily, ring.EncodeKey(mpmcStartIndexCell), u64Bytes(newStart))

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("reconcile: %w: %w", ErrStorage, err)
	}

	q.startIndex = newStart
	q.empty = newEmpty

	for label, rec := range q.readers {
		adjust(&rec)
		q.readers[label] = rec
	}

	return nil
}

// clampReaderIndex moves a reader index forward past expired entries,
// accounting for the live arc possibly wrapping around zero.
//
// old is the reader's index, s the new start index; w the write index.
func (q *Mpmc) clampReaderIndex(old, s uint64) uint64 {
	w := q.writeIndex

	switch {
	case old == w:
		// At the tail; expiry cannot move it.
		return old
	case old > w:
		if s > w {
			// Both in the post-wrap arc [s, Mod).
			return max(s, old)
		}

		// The reader's whole arc expired; jump past the wrap.
		return s
	default: // old < w
		if s > w {
			// The pre-wrap part the reader sits in is still live.
			return old
		}

		return max(s, old)
	}
}

// nowNanos is the write timestamp source.
func nowNanos() uint64 {
	return uint64(time.Now().UnixNano())
}
