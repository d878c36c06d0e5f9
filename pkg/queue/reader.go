package queue

import (
	"encoding/binary"
	"fmt"
)

// readerRec is the persisted cursor state of one consumer label.
//
// index is the next unread index. endTimestamp, when present, records the
// write timestamp at which the label caught up with the writer; while it
// still equals the queue's write timestamp the label is known to be at the
// tail without probing the store. expired is a transient flag raised when
// reconciliation detects that entries vanished under the cursor; it is
// delivered to the consumer on its next read and then cleared.
type readerRec struct {
	index           uint64
	endTimestamp    uint64
	hasEndTimestamp bool
	expired         bool
}

// Wire encoding: index u64 LE, one tag byte for the optional end timestamp
// (0 absent, 1 present followed by u64 LE), one bool byte. Stable across
// restarts. There is no version byte and no migration: a record in any
// other layout fails to decode with [ErrDecode].
const (
	readerRecShortLen = 10
	readerRecFullLen  = 18
)

func encodeReader(r readerRec) []byte {
	buf := make([]byte, 0, readerRecFullLen)
	buf = binary.LittleEndian.AppendUint64(buf, r.index)

	if r.hasEndTimestamp {
		buf = append(buf, 1)
		buf = binary.LittleEndian.AppendUint64(buf, r.endTimestamp)
	} else {
		buf = append(buf, 0)
	}

	if r.expired {
		return append(buf, 1)
	}

	return append(buf, 0)
}

func decodeReader(raw []byte) (readerRec, error) {
	var r readerRec

	switch len(raw) {
	case readerRecShortLen:
		if raw[8] != 0 {
			return readerRec{}, fmt.Errorf("tag %d without timestamp: %w", raw[8], ErrDecode)
		}
	case readerRecFullLen:
		if raw[8] != 1 {
			return readerRec{}, fmt.Errorf("tag %d with timestamp: %w", raw[8], ErrDecode)
		}

		r.hasEndTimestamp = true
		r.endTimestamp = binary.LittleEndian.Uint64(raw[9:17])
	default:
		return readerRec{}, fmt.Errorf("record length %d: %w", len(raw), ErrDecode)
	}

	r.index = binary.LittleEndian.Uint64(raw[:8])

	switch raw[len(raw)-1] {
	case 0:
	case 1:
		r.expired = true
	default:
		return readerRec{}, fmt.Errorf("bool byte %d: %w", raw[len(raw)-1], ErrDecode)
	}

	return r, nil
}
