package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/badgerq/pkg/queue"
)

func newNextCommand(cfg Config) *Command {
	flags := flag.NewFlagSet("next", flag.ContinueOnError)
	label := flags.StringP("label", "l", "", "consumer label (required)")
	count := flags.IntP("count", "n", 1, "maximum entries to read")
	start := flags.StringP("start", "s", "oldest", "start position for a new label: oldest or newest")

	return &Command{
		Flags: flags,
		Usage: "next <dir> -l <label> [flags]",
		Short: "Read entries from an mpmc queue",
		Long: "Read up to --count entries for the consumer --label, advancing its\n" +
			"cursor. Reads do not remove entries; they expire by TTL.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			dir, err := queueDir(cfg, args)
			if err != nil {
				return err
			}

			if *label == "" {
				return errors.New("--label is required")
			}

			var pos queue.StartPosition

			switch *start {
			case "oldest":
				pos = queue.Oldest
			case "newest":
				pos = queue.Newest
			default:
				return fmt.Errorf("unknown start position %q (want oldest or newest)", *start)
			}

			q, err := openMpmcQueue(dir)
			if err != nil {
				return err
			}

			defer func() { _ = q.Close() }()

			items, expired, err := q.Next(*count, *label, pos)
			if err != nil {
				return err
			}

			if expired {
				o.Println("note: entries expired under this label's cursor since its last read")
			}

			if len(items) == 0 {
				o.Println("nothing to read")

				return nil
			}

			for _, item := range items {
				o.Printf("%q\n", item)
			}

			return nil
		},
	}
}
