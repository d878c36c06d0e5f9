package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/calvinalkan/badgerq/pkg/queue"
)

var errNoQueue = errors.New("no queue at this directory (run 'bq create' first)")

// queueDir resolves the directory argument for a command, falling back to
// the config default.
func queueDir(cfg Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	if cfg.Dir != "" {
		return cfg.Dir, nil
	}

	return "", errors.New("queue directory required (argument or 'dir' in .bq.json)")
}

// openAny opens the queue at dir with the flavor recorded in its manifest.
// Exactly one of the results is non-nil.
func openAny(dir string) (*queue.Bounded, *queue.Mpmc, error) {
	m, exists, err := queue.ReadManifest(dir)
	if err != nil {
		return nil, nil, err
	}

	if !exists {
		return nil, nil, errNoQueue
	}

	switch m.Flavor {
	case "bounded":
		q, openErr := queue.OpenBounded(queue.BoundedOptions{
			Path:        dir,
			MaxElements: m.MaxElements,
		})
		if openErr != nil {
			return nil, nil, openErr
		}

		return q, nil, nil
	case "mpmc":
		q, openErr := queue.OpenMpmc(queue.MpmcOptions{
			Path: dir,
			TTL:  time.Duration(m.TTLSeconds) * time.Second,
		})
		if openErr != nil {
			return nil, nil, openErr
		}

		return nil, q, nil
	default:
		return nil, nil, fmt.Errorf("manifest names unknown flavor %q", m.Flavor)
	}
}
