package queue_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/badgerq/pkg/queue"
	"github.com/calvinalkan/badgerq/pkg/ring"
)

const testTTL = 60 * time.Second

// A wide ring for tests that must not wrap; wrap behavior gets the 4-slot
// ring.
var wideRing = ring.Ring{Mod: 100}

func openMpmcAt(t *testing.T, path string, r ring.Ring) *queue.Mpmc {
	t.Helper()

	q, err := queue.OpenMpmcWithRing(queue.MpmcOptions{Path: path, TTL: testTTL}, r)
	require.NoError(t, err)

	t.Cleanup(func() { _ = q.Close() })

	return q
}

func openMpmc(t *testing.T, r ring.Ring) *queue.Mpmc {
	t.Helper()

	return openMpmcAt(t, filepath.Join(t.TempDir(), "q"), r)
}

func bs(values ...string) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}

	return out
}

func Test_OpenMpmc_Returns_Error_When_Options_Invalid(t *testing.T) {
	t.Parallel()

	_, err := queue.OpenMpmc(queue.MpmcOptions{TTL: testTTL})
	require.ErrorIs(t, err, queue.ErrInvalidInput)

	_, err = queue.OpenMpmc(queue.MpmcOptions{Path: "somewhere"})
	require.ErrorIs(t, err, queue.ErrInvalidInput)
}

func Test_Mpmc_Fresh_Queue_Is_Empty(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	startIndex, writeIndex, writeTimestamp, empty := q.State()
	assert.Equal(t, uint64(0), startIndex)
	assert.Equal(t, uint64(0), writeIndex)
	assert.Positive(t, writeTimestamp)
	assert.True(t, empty)
	assert.Equal(t, uint64(0), q.Len())
	assert.Empty(t, q.Labels())
}

func Test_Mpmc_Add_Advances_Write_Index_And_Timestamp(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	_, _, before, _ := q.State()

	require.NoError(t, q.Add(bs("a")))

	startIndex, writeIndex, after, empty := q.State()
	assert.Equal(t, uint64(0), startIndex)
	assert.Equal(t, uint64(1), writeIndex)
	assert.GreaterOrEqual(t, after, before)
	assert.False(t, empty)
	assert.Equal(t, uint64(1), q.Len())
}

func Test_Mpmc_Add_Of_Empty_Batch_Is_A_Noop(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	require.NoError(t, q.Add(nil))
	assert.True(t, q.IsEmpty())
}

func Test_Mpmc_Add_Rejects_Batch_Larger_Than_The_Ring(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, ring.Ring{Mod: 4})

	err := q.Add(bs("a", "a", "a", "a", "a"))
	require.ErrorIs(t, err, queue.ErrFull)

	startIndex, writeIndex, _, empty := q.State()
	assert.Equal(t, uint64(0), startIndex)
	assert.Equal(t, uint64(0), writeIndex)
	assert.True(t, empty)
}

func Test_Mpmc_Add_To_Full_Ring_Fails_Without_Mutation(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, ring.Ring{Mod: 4})

	require.NoError(t, q.Add(bs("a", "a", "a", "a")))

	startIndex, writeIndex, _, empty := q.State()
	assert.Equal(t, uint64(0), startIndex)
	assert.Equal(t, uint64(0), writeIndex)
	assert.False(t, empty)
	assert.Equal(t, uint64(4), q.Len())

	require.ErrorIs(t, q.Add(bs("b")), queue.ErrFull)
	assert.Equal(t, uint64(4), q.Len())
}

func Test_Mpmc_New_Label_On_Empty_Queue_Parks_At_The_Tail(t *testing.T) {
	t.Parallel()

	for _, pos := range []queue.StartPosition{queue.Oldest, queue.Newest} {
		q := openMpmc(t, wideRing)

		items, expired, err := q.Next(100, "label", pos)
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.False(t, expired)

		_, _, writeTimestamp, _ := q.State()

		rec, ok := q.Reader("label")
		require.True(t, ok)
		assert.Equal(t, uint64(0), rec.Index)
		assert.True(t, rec.HasEndTimestamp)
		assert.Equal(t, writeTimestamp, rec.EndTimestamp)
		assert.False(t, rec.Expired)
	}
}

func Test_Mpmc_Oldest_Label_Drains_In_Add_Order(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	require.NoError(t, q.Add(bs("a", "b", "c")))

	items, expired, err := q.Next(2, "label", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("a", "b"), items)
	assert.False(t, expired)

	rec, ok := q.Reader("label")
	require.True(t, ok)
	assert.Equal(t, uint64(2), rec.Index)
	assert.False(t, rec.HasEndTimestamp)

	items, expired, err = q.Next(2, "label", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("c"), items)
	assert.False(t, expired)

	_, _, writeTimestamp, _ := q.State()

	rec, ok = q.Reader("label")
	require.True(t, ok)
	assert.Equal(t, uint64(3), rec.Index)
	assert.True(t, rec.HasEndTimestamp)
	assert.Equal(t, writeTimestamp, rec.EndTimestamp)

	// Reads are not destructive.
	assert.Equal(t, uint64(3), q.Len())
}

func Test_Mpmc_Newest_Label_Sees_Only_The_Latest_Entry(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	require.NoError(t, q.Add(bs("a", "b", "c")))

	items, expired, err := q.Next(2, "label", queue.Newest)
	require.NoError(t, err)
	assert.Equal(t, bs("c"), items)
	assert.False(t, expired)

	items, expired, err = q.Next(2, "label", queue.Newest)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, expired)
}

func Test_Mpmc_Newest_Label_Sees_Entry_Added_After_Parking(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	require.NoError(t, q.Add(bs("a", "b", "c")))

	_, _, err := q.Next(2, "l1", queue.Oldest)
	require.NoError(t, err)

	items, expired, err := q.Next(2, "l2", queue.Newest)
	require.NoError(t, err)
	assert.Equal(t, bs("c"), items)
	assert.False(t, expired)

	require.NoError(t, q.Add(bs("d")))

	items, expired, err = q.Next(2, "l2", queue.Newest)
	require.NoError(t, err)
	assert.Equal(t, bs("d"), items)
	assert.False(t, expired)
}

func Test_Mpmc_Newest_Label_On_Wrapped_Full_Ring_Reads_The_Last_Entry(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, ring.Ring{Mod: 4})

	require.NoError(t, q.Add(bs("v", "v", "v")))
	require.NoError(t, q.Add(bs("last")))

	items, expired, err := q.Next(1, "label", queue.Newest)
	require.NoError(t, err)
	assert.Equal(t, bs("last"), items)
	assert.False(t, expired)

	_, _, writeTimestamp, _ := q.State()

	rec, ok := q.Reader("label")
	require.True(t, ok)
	assert.Equal(t, uint64(0), rec.Index)
	assert.True(t, rec.HasEndTimestamp)
	assert.Equal(t, writeTimestamp, rec.EndTimestamp)

	items, expired, err = q.Next(1, "label", queue.Newest)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, expired)
}

func Test_Mpmc_Next_With_Zero_Max_Does_Not_Advance_The_Cursor(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	require.NoError(t, q.Add(bs("a")))

	items, expired, err := q.Next(0, "label", queue.Oldest)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, expired)

	rec, ok := q.Reader("label")
	require.True(t, ok)
	assert.Equal(t, uint64(0), rec.Index)
	assert.False(t, rec.HasEndTimestamp)

	items, _, err = q.Next(1, "label", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("a"), items)
}

func Test_Mpmc_Next_Rejects_Empty_Label(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	_, _, err := q.Next(1, "", queue.Oldest)
	require.ErrorIs(t, err, queue.ErrInvalidInput)
}

func Test_Mpmc_Expiry_Mid_Drain_Discards_The_Partial_Prefix(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	require.NoError(t, q.Add(bs("a", "b", "c", "d")))

	// The entry after the first one vanishes before the drain reaches it.
	require.NoError(t, q.DeleteData(1))

	items, expired, err := q.Next(2, "label", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("c", "d"), items)
	assert.True(t, expired)

	_, _, writeTimestamp, _ := q.State()

	rec, ok := q.Reader("label")
	require.True(t, ok)
	assert.Equal(t, uint64(4), rec.Index)
	assert.True(t, rec.HasEndTimestamp)
	assert.Equal(t, writeTimestamp, rec.EndTimestamp)
	assert.False(t, rec.Expired, "the expired flag is delivered, not stored")

	// Index 0 is still live, so the queue still counts four slots.
	assert.Equal(t, uint64(4), q.Len())
}

func Test_Mpmc_Expiry_Of_Everything_Mid_Drain_Returns_Empty_And_Expired(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	require.NoError(t, q.Add(bs("a", "b", "c", "d")))
	require.NoError(t, q.DeleteData(1, 2, 3))

	items, expired, err := q.Next(4, "label", queue.Oldest)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, expired)

	rec, ok := q.Reader("label")
	require.True(t, ok)
	assert.Equal(t, uint64(4), rec.Index)
	assert.True(t, rec.HasEndTimestamp)
}

func Test_Mpmc_Reconciliation_After_Partial_Expiry_Clamps_Readers(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	require.NoError(t, q.Add(bs("v1", "v2")))
	require.NoError(t, q.Add(bs("v3", "v4")))

	// Park four readers at every interesting position; a fifth joins after
	// reconciliation.
	_, _, err := q.Next(1, "l1", queue.Oldest) // index 1
	require.NoError(t, err)
	_, _, err = q.Next(2, "l2", queue.Oldest) // index 2
	require.NoError(t, err)
	_, _, err = q.Next(3, "l3", queue.Oldest) // index 3
	require.NoError(t, err)
	_, _, err = q.Next(4, "l4", queue.Oldest) // index 4 == write, at tail
	require.NoError(t, err)

	// The two oldest entries expire.
	require.NoError(t, q.DeleteData(0, 1))

	items, expired, err := q.Next(1, "l5", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("v3"), items)
	assert.False(t, expired)

	startIndex, writeIndex, writeTimestamp, empty := q.State()
	assert.Equal(t, uint64(2), startIndex)
	assert.Equal(t, uint64(4), writeIndex)
	assert.False(t, empty)
	assert.Equal(t, uint64(2), q.Len())

	wantReaders := map[string]struct {
		index   uint64
		atTail  bool
		expired bool
	}{
		"l1": {index: 2, expired: true}, // clamped forward past the hole
		"l2": {index: 2},                // already at the new start
		"l3": {index: 3},                // still in the live arc
		"l4": {index: 4, atTail: true},  // at the tail, untouched
		"l5": {index: 3},                // created after reconciliation
	}

	for label, want := range wantReaders {
		rec, ok := q.Reader(label)
		require.True(t, ok, label)
		assert.Equal(t, want.index, rec.Index, label)
		assert.Equal(t, want.atTail, rec.HasEndTimestamp, label)
		assert.Equal(t, want.expired, rec.Expired, label)

		if want.atTail {
			assert.Equal(t, writeTimestamp, rec.EndTimestamp, label)
		}
	}

	// The clamped reader reports its loss exactly once.
	items, expired, err = q.Next(1, "l1", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("v3"), items)
	assert.True(t, expired)

	items, expired, err = q.Next(1, "l1", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("v4"), items)
	assert.False(t, expired)
}

func Test_Mpmc_Reconciliation_After_Total_Expiry_Parks_All_Readers(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	require.NoError(t, q.Add(bs("a", "b")))
	require.NoError(t, q.DeleteData(0, 1))

	items, expired, err := q.Next(2, "l1", queue.Oldest)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, expired, "a label created after the loss saw nothing vanish")

	startIndex, writeIndex, writeTimestamp, empty := q.State()
	assert.Equal(t, uint64(2), startIndex)
	assert.Equal(t, uint64(2), writeIndex)
	assert.True(t, empty)
	assert.Equal(t, uint64(0), q.Len())

	rec, ok := q.Reader("l1")
	require.True(t, ok)
	assert.Equal(t, uint64(2), rec.Index)
	assert.True(t, rec.HasEndTimestamp)
	assert.Equal(t, writeTimestamp, rec.EndTimestamp)

	// Fill the queue again and expire everything; l1 has lost ground.
	require.NoError(t, q.Add(bs("a", "a")))
	require.NoError(t, q.DeleteData(2, 3))

	items, expired, err = q.Next(1, "l2", queue.Oldest)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, expired)

	rec, ok = q.Reader("l1")
	require.True(t, ok)
	assert.True(t, rec.Expired, "reconciliation flagged the stale label")

	items, expired, err = q.Next(1, "l1", queue.Oldest)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, expired, "the stale label is told it lost ground")

	items, expired, err = q.Next(1, "l1", queue.Oldest)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, expired, "the signal fires once")
}

func Test_Mpmc_Reconciliation_Handles_A_Wrapped_Live_Arc(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, ring.Ring{Mod: 4})

	// Drive the queue into start > write: fill, expire all, then add
	// across the wrap.
	require.NoError(t, q.Add(bs("x", "x")))
	require.NoError(t, q.DeleteData(0, 1))

	_, _, err := q.Next(1, "la", queue.Oldest)
	require.NoError(t, err)

	require.NoError(t, q.Add(bs("w1", "w2", "w3"))) // indices 2, 3, 0

	startIndex, writeIndex, _, empty := q.State()
	require.Equal(t, uint64(2), startIndex)
	require.Equal(t, uint64(1), writeIndex)
	require.False(t, empty)
	require.Equal(t, uint64(3), q.Len())

	items, _, err := q.Next(1, "la", queue.Oldest) // la sits at index 3
	require.NoError(t, err)
	require.Equal(t, bs("w1"), items)

	_, _, err = q.Next(2, "lb", queue.Oldest) // lb drains to index 0
	require.NoError(t, err)

	_, _, err = q.Next(3, "lc", queue.Oldest) // lc drains to the tail
	require.NoError(t, err)

	// The oldest entry (index 2, before the wrap) expires: the new start
	// (index 3) is still before the wrap.
	require.NoError(t, q.DeleteData(2))

	items, expired, err := q.Next(1, "ld", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("w2"), items)
	assert.False(t, expired)

	startIndex, writeIndex, _, _ = q.State()
	assert.Equal(t, uint64(3), startIndex)
	assert.Equal(t, uint64(1), writeIndex)

	for label, wantIndex := range map[string]uint64{"la": 3, "lb": 0, "lc": 1, "ld": 0} {
		rec, ok := q.Reader(label)
		require.True(t, ok, label)
		assert.Equal(t, wantIndex, rec.Index, label)
		assert.False(t, rec.Expired, label)
	}

	// The last pre-zero entry (index 3) expires too: the live arc is now
	// entirely past the wrap, and readers stuck before it jump across.
	require.NoError(t, q.DeleteData(3))

	items, expired, err = q.Next(1, "le", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("w3"), items)
	assert.False(t, expired)

	startIndex, writeIndex, _, _ = q.State()
	assert.Equal(t, uint64(0), startIndex)
	assert.Equal(t, uint64(1), writeIndex)
	assert.Equal(t, uint64(1), q.Len())

	rec, ok := q.Reader("la")
	require.True(t, ok)
	assert.Equal(t, uint64(0), rec.Index, "la jumped across the wrap")
	assert.True(t, rec.Expired)

	rec, ok = q.Reader("lb")
	require.True(t, ok)
	assert.Equal(t, uint64(0), rec.Index)
	assert.False(t, rec.Expired)
}

func Test_Mpmc_Reconciliation_Is_Idempotent_Without_Store_Changes(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	require.NoError(t, q.Add(bs("a", "b", "c")))
	require.NoError(t, q.DeleteData(0))

	_, _, err := q.Next(0, "label", queue.Oldest)
	require.NoError(t, err)

	startIndex1, writeIndex1, writeTimestamp1, empty1 := q.State()
	rec1, _ := q.Reader("label")

	_, _, err = q.Next(0, "label", queue.Oldest)
	require.NoError(t, err)

	startIndex2, writeIndex2, writeTimestamp2, empty2 := q.State()
	rec2, _ := q.Reader("label")

	assert.Equal(t, startIndex1, startIndex2)
	assert.Equal(t, writeIndex1, writeIndex2)
	assert.Equal(t, writeTimestamp1, writeTimestamp2)
	assert.Equal(t, empty1, empty2)
	assert.Equal(t, rec1, rec2)
}

func Test_Mpmc_Labels_And_RemoveLabel(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)

	assert.Empty(t, q.Labels())

	removed, err := q.RemoveLabel("label")
	require.NoError(t, err)
	assert.False(t, removed)

	_, _, err = q.Next(1, "l1", queue.Oldest)
	require.NoError(t, err)
	_, _, err = q.Next(1, "l2", queue.Oldest)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"l1", "l2"}, q.Labels())

	removed, err = q.RemoveLabel("l1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.ElementsMatch(t, []string{"l2"}, q.Labels())

	// A removed label starts over as new.
	require.NoError(t, q.Add(bs("a", "b")))

	items, expired, err := q.Next(2, "l1", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("a", "b"), items)
	assert.False(t, expired)
}

func Test_Mpmc_State_And_Readers_Survive_Close_And_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "q")

	q := openMpmcAt(t, path, wideRing)
	require.NoError(t, q.Add(bs("a", "b", "c")))

	_, _, err := q.Next(2, "label", queue.Oldest)
	require.NoError(t, err)

	startIndex1, writeIndex1, writeTimestamp1, empty1 := q.State()
	rec1, ok := q.Reader("label")
	require.True(t, ok)
	require.NoError(t, q.Close())

	q = openMpmcAt(t, path, wideRing)

	startIndex2, writeIndex2, writeTimestamp2, empty2 := q.State()
	assert.Equal(t, startIndex1, startIndex2)
	assert.Equal(t, writeIndex1, writeIndex2)
	assert.Equal(t, writeTimestamp1, writeTimestamp2)
	assert.Equal(t, empty1, empty2)

	rec2, ok := q.Reader("label")
	require.True(t, ok)
	assert.Equal(t, rec1, rec2)

	items, expired, err := q.Next(2, "label", queue.Oldest)
	require.NoError(t, err)
	assert.Equal(t, bs("c"), items)
	assert.False(t, expired)
}

func Test_Mpmc_Entries_Really_Expire_By_Wall_Clock(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("TTL expiry has second granularity")
	}

	q, err := queue.OpenMpmc(queue.MpmcOptions{
		Path: filepath.Join(t.TempDir(), "q"),
		TTL:  time.Second,
	})
	require.NoError(t, err)

	defer func() { _ = q.Close() }()

	require.NoError(t, q.Add(bs("a", "b")))

	items, _, err := q.Next(1, "label", queue.Oldest)
	require.NoError(t, err)
	require.Equal(t, bs("a"), items)

	time.Sleep(2 * time.Second)

	items, expired, err := q.Next(2, "label", queue.Oldest)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, expired, "the unread entry vanished under the cursor")
	assert.Equal(t, uint64(0), q.Len())
}

func Test_Mpmc_Operations_After_Close_Return_ErrClosed(t *testing.T) {
	t.Parallel()

	q := openMpmc(t, wideRing)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close(), "close is idempotent")

	require.ErrorIs(t, q.Add(bs("a")), queue.ErrClosed)

	_, _, err := q.Next(1, "label", queue.Oldest)
	require.ErrorIs(t, err, queue.ErrClosed)

	_, err = q.RemoveLabel("label")
	require.ErrorIs(t, err, queue.ErrClosed)
}
