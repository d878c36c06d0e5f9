package cli

import (
	"context"
	"sort"

	flag "github.com/spf13/pflag"
)

func newLabelsCommand(cfg Config) *Command {
	flags := flag.NewFlagSet("labels", flag.ContinueOnError)
	remove := flags.StringP("remove", "r", "", "remove the given label instead of listing")

	return &Command{
		Flags: flags,
		Usage: "labels <dir> [flags]",
		Short: "List or remove consumer labels of an mpmc queue",
		Exec: func(_ context.Context, o *IO, args []string) error {
			dir, err := queueDir(cfg, args)
			if err != nil {
				return err
			}

			q, err := openMpmcQueue(dir)
			if err != nil {
				return err
			}

			defer func() { _ = q.Close() }()

			if *remove != "" {
				removed, removeErr := q.RemoveLabel(*remove)
				if removeErr != nil {
					return removeErr
				}

				if removed {
					o.Printf("removed label %q\n", *remove)
				} else {
					o.Printf("no such label %q\n", *remove)
				}

				return nil
			}

			labels := q.Labels()
			if len(labels) == 0 {
				o.Println("no labels")

				return nil
			}

			sort.Strings(labels)

			for _, label := range labels {
				o.Println(label)
			}

			return nil
		},
	}
}
