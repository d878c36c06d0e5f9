// Package fsutil holds the small filesystem helpers the queue engines and
// the bq CLI share: recursive directory sizing and flock-based directory
// locks.
package fsutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// DirSize returns the byte sum of every regular file under path, recursively.
//
// Files that vanish mid-walk (store compaction deletes segments at any time)
// are skipped rather than failing the walk.
func DirSize(path string) (int64, error) {
	var total int64

	err := filepath.WalkDir(path, func(_ string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() {
			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			// The entry was removed between readdir and stat.
			return nil
		}

		total += info.Size()

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sizing %s: %w", path, err)
	}

	return total, nil
}
