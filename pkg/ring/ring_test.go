package ring_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/badgerq/pkg/ring"
)

// A ring of 4 slots is enough to exercise every wrap case exhaustively.
var small = ring.Ring{Mod: 4}

func Test_Next_Wraps_To_Zero_At_Modulus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(1), small.Next(0))
	assert.Equal(t, uint64(2), small.Next(1))
	assert.Equal(t, uint64(3), small.Next(2))
	assert.Equal(t, uint64(0), small.Next(3))
}

func Test_Prev_Wraps_To_Modulus_Minus_One_Below_Zero(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(3), small.Prev(0))
	assert.Equal(t, uint64(0), small.Prev(1))
	assert.Equal(t, uint64(2), small.Prev(3))
}

func Test_Next_And_Prev_Are_Inverses_On_Every_Slot(t *testing.T) {
	t.Parallel()

	for i := uint64(0); i < small.Mod; i++ {
		assert.Equal(t, i, small.Prev(small.Next(i)), "prev(next(%d))", i)
		assert.Equal(t, i, small.Next(small.Prev(i)), "next(prev(%d))", i)
	}
}

func Test_Distance_Counts_Forward_Slots(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		from  uint64
		to    uint64
		empty bool
		want  uint64
	}{
		{name: "SimpleForward", from: 0, to: 3, want: 3},
		{name: "OneSlot", from: 2, to: 3, want: 1},
		{name: "EqualEmpty", from: 1, to: 1, empty: true, want: 0},
		{name: "EqualFull", from: 1, to: 1, want: 4},
		{name: "AfterWrap", from: 3, to: 1, want: 2},
		{name: "AfterWrapToZero", from: 3, to: 0, want: 1},
		{name: "FromZeroEmpty", from: 0, to: 0, empty: true, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, small.Distance(tc.from, tc.to, tc.empty))
		})
	}
}

func Test_Distance_Matches_Walking_The_Ring(t *testing.T) {
	t.Parallel()

	// Brute-force oracle: step Next from `from` until reaching `to`.
	for from := uint64(0); from < small.Mod; from++ {
		for to := uint64(0); to < small.Mod; to++ {
			if from == to {
				continue // ambiguous without the empty flag, covered above
			}

			steps := uint64(0)
			for i := from; i != to; i = small.Next(i) {
				steps++
			}

			assert.Equal(t, steps, small.Distance(from, to, false), "from=%d to=%d", from, to)
		}
	}
}

func Test_Std_Ring_Reserves_The_Top_Hundred_Values(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(math.MaxUint64-99), ring.MaxIndex)
	assert.Equal(t, ring.MaxIndex, ring.Std.Mod)

	// Advancing the last usable index wraps rather than entering the
	// reserved range.
	assert.Equal(t, uint64(0), ring.Std.Next(ring.MaxIndex-1))
	assert.Equal(t, ring.MaxIndex-1, ring.Std.Prev(0))
}

func Test_EncodeKey_Is_Fixed_Width_Little_Endian(t *testing.T) {
	t.Parallel()

	key := ring.EncodeKey(0x0102030405060708)

	require.Len(t, key, ring.KeyLen)
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, key)
}

func Test_DecodeKey_Round_Trips_And_Rejects_Bad_Length(t *testing.T) {
	t.Parallel()

	for _, i := range []uint64{0, 1, 255, 256, ring.MaxIndex - 1, math.MaxUint64} {
		got, ok := ring.DecodeKey(ring.EncodeKey(i))
		require.True(t, ok)
		assert.Equal(t, i, got)
	}

	_, ok := ring.DecodeKey([]byte{1, 2, 3})
	assert.False(t, ok)

	_, ok = ring.DecodeKey(nil)
	assert.False(t, ok)
}
