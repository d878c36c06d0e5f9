package cli

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"
)

func newAddCommand(cfg Config) *Command {
	flags := flag.NewFlagSet("add", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "add <dir> <value>...",
		Short: "Add values to an mpmc queue",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 2 {
				return errors.New("usage: bq add <dir> <value>...")
			}

			dir := args[0]
			values := stringValues(args[1:])

			q, err := openMpmcQueue(dir)
			if err != nil {
				return err
			}

			defer func() { _ = q.Close() }()

			if err := q.Add(values); err != nil {
				return err
			}

			o.Printf("added %d, length now %d\n", len(values), q.Len())

			return nil
		},
	}
}
