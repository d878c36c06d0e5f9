// Package ring implements arithmetic on the wrapping 64-bit index ring used
// to key queue entries.
//
// Queue entries are keyed by sequence indices drawn from the half-open ring
// [0, MaxIndex). Advancing an index increments it by one and wraps to zero at
// the ring modulus. The values MaxIndex..2^64-1 are never used for entries;
// they are reserved for metadata cells.
//
// All other packages go through [Ring]; nothing else in the module computes
// index differences directly, because a plain subtraction is wrong after the
// write position wraps past zero.
package ring

import (
	"encoding/binary"
	"math"
)

// MaxIndex is the modulus of the standard ring: 2^64 - 100.
//
// The 100 values above it are reserved for metadata cells stored alongside
// entry data.
const MaxIndex uint64 = math.MaxUint64 - 99

// KeyLen is the encoded byte length of an index key.
const KeyLen = 8

// Ring is a wrapping index space with modulus Mod.
//
// Production code uses [Std]. Tests construct small rings (for example
// Ring{Mod: 4}) to exercise wrap-around without 2^64 iterations.
type Ring struct {
	// Mod is the ring modulus. Indices lie in [0, Mod).
	Mod uint64
}

// Std is the ring used by open queues.
var Std = Ring{Mod: MaxIndex}

// Next returns the index following i, wrapping to 0 at the modulus.
func (r Ring) Next(i uint64) uint64 {
	i++
	if i == r.Mod {
		return 0
	}

	return i
}

// Prev returns the index preceding i, wrapping to Mod-1 below 0.
func (r Ring) Prev(i uint64) uint64 {
	if i == 0 {
		return r.Mod - 1
	}

	return i - 1
}

// Distance returns the number of slots from `from` forward to `to`,
// exclusive of `to`.
//
// When from == to the ring alone cannot distinguish "nothing stored" from
// "every slot stored"; the caller passes its empty flag to break the tie.
func (r Ring) Distance(from, to uint64, empty bool) uint64 {
	switch {
	case to > from:
		return to - from
	case to == from:
		if empty {
			return 0
		}

		return r.Mod
	default: // to < from: the write position wrapped past zero
		return r.Mod - from + to
	}
}

// EncodeKey returns the 8-byte little-endian key for index i.
//
// Also used for the reserved metadata cells above [MaxIndex].
func EncodeKey(i uint64) []byte {
	key := make([]byte, KeyLen)
	binary.LittleEndian.PutUint64(key, i)

	return key
}

// DecodeKey returns the index encoded in an 8-byte key.
//
// The bool result is false if the key has the wrong length.
func DecodeKey(key []byte) (uint64, bool) {
	if len(key) != KeyLen {
		return 0, false
	}

	return binary.LittleEndian.Uint64(key), true
}
