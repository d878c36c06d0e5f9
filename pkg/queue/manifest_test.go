package queue_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/badgerq/pkg/queue"
)

func Test_ReadManifest_Reports_Absent_For_Fresh_Directory(t *testing.T) {
	t.Parallel()

	_, exists, err := queue.ReadManifest(t.TempDir())
	require.NoError(t, err)
	assert.False(t, exists)
}

func Test_Open_Writes_A_Manifest_Describing_The_Queue(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "q")

	q := openBoundedAt(t, path, 3)
	require.NoError(t, q.Close())

	m, exists, err := queue.ReadManifest(path)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "bounded", m.Flavor)
	assert.Equal(t, uint64(3), m.MaxElements)
}

func Test_ReadManifest_Tolerates_Comments_And_Trailing_Commas(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	raw := []byte(`{
  // hand-edited
  "format": 1,
  "flavor": "mpmc",
  "ttl_seconds": 60,
}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, queue.ManifestName), raw, 0o644))

	m, exists, err := queue.ReadManifest(dir)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "mpmc", m.Flavor)
	assert.Equal(t, uint64(60), m.TTLSeconds)
}

func Test_ReadManifest_Rejects_Garbage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, queue.ManifestName), []byte("not json {"), 0o644))

	_, _, err := queue.ReadManifest(dir)
	require.ErrorIs(t, err, queue.ErrDecode)
}

func Test_Version_Is_Set(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, queue.Version())
}
