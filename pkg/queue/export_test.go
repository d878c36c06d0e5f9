package queue

import (
	"github.com/calvinalkan/badgerq/pkg/ring"
)

// Test hooks. Small rings make wrap-around reachable, and deleting data
// keys directly emulates the store expiring entries underneath the queue
// (TTL expiry itself has second granularity).

func OpenBoundedWithRing(opts BoundedOptions, r ring.Ring) (*Bounded, error) {
	return openBounded(opts, r)
}

func OpenMpmcWithRing(opts MpmcOptions, r ring.Ring) (*Mpmc, error) {
	return openMpmc(opts, r)
}

// Cursors exposes the bounded queue's in-memory state.
func (q *Bounded) Cursors() (readIndex, writeIndex uint64, empty bool) {
	return q.readIndex, q.writeIndex, q.empty
}

// State exposes the mpmc queue's in-memory state.
func (q *Mpmc) State() (startIndex, writeIndex, writeTimestamp uint64, empty bool) {
	return q.startIndex, q.writeIndex, q.writeTimestamp, q.empty
}

// ReaderState is the observable cursor state of one label.
type ReaderState struct {
	Index           uint64
	EndTimestamp    uint64
	HasEndTimestamp bool
	Expired         bool
}

// Reader exposes a label's cursor, reporting false when the label is
// unknown.
func (q *Mpmc) Reader(label string) (ReaderState, bool) {
	rec, ok := q.readers[label]
	if !ok {
		return ReaderState{}, false
	}

	return ReaderState{
		Index:           rec.index,
		EndTimestamp:    rec.endTimestamp,
		HasEndTimestamp: rec.hasEndTimestamp,
		Expired:         rec.expired,
	}, ok
}

// DeleteData removes data entries by index, emulating TTL expiry.
func (q *Mpmc) DeleteData(indices ...uint64) error {
	batch := q.store.NewBatch()
	for _, i := range indices {
		batch.Delete(mpmcDataFamily, ring.EncodeKey(i))
	}

	return batch.Commit()
}

var (
	EncodeReaderRecord = encodeReader
	DecodeReaderRecord = decodeReader
)

// ReaderRecord builds a readerRec for codec tests.
func ReaderRecord(index uint64, endTimestamp uint64, hasEnd, expired bool) readerRec {
	return readerRec{
		index:           index,
		endTimestamp:    endTimestamp,
		hasEndTimestamp: hasEnd,
		expired:         expired,
	}
}
