package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/badgerq/pkg/fsutil"
	"github.com/calvinalkan/badgerq/pkg/kv"
	"github.com/calvinalkan/badgerq/pkg/queue"
)

func newDestroyCommand(cfg Config) *Command {
	flags := flag.NewFlagSet("destroy", flag.ContinueOnError)
	force := flags.Bool("force", false, "skip the confirmation check for a missing manifest")

	return &Command{
		Flags: flags,
		Usage: "destroy <dir> [flags]",
		Short: "Delete a queue directory and everything in it",
		Long: "Delete the queue at <dir>, including all entries and consumer\n" +
			"cursors. Refuses while another process has the queue open.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			dir, err := queueDir(cfg, args)
			if err != nil {
				return err
			}

			_, exists, err := queue.ReadManifest(dir)
			if err != nil {
				return err
			}

			if !exists && !*force {
				return fmt.Errorf("%s does not look like a queue directory (use --force to delete anyway)", dir)
			}

			// The store flocks its LOCK file while open; if we cannot take
			// it, someone still has the queue open.
			lock, err := fsutil.TryLock(filepath.Join(dir, "LOCK"))
			if errors.Is(err, fsutil.ErrWouldBlock) {
				return errors.New("queue is open in another process; close it first")
			}

			if err != nil {
				return err
			}

			_ = lock.Close()

			if err := kv.Destroy(dir); err != nil {
				return err
			}

			o.Printf("destroyed %s\n", dir)

			return nil
		},
	}
}
