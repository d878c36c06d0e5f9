package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

func newPopCommand(cfg Config) *Command {
	flags := flag.NewFlagSet("pop", flag.ContinueOnError)
	count := flags.IntP("count", "n", 1, "maximum entries to pop")

	return &Command{
		Flags: flags,
		Usage: "pop <dir> [flags]",
		Short: "Pop entries off a bounded queue",
		Exec: func(_ context.Context, o *IO, args []string) error {
			dir, err := queueDir(cfg, args)
			if err != nil {
				return err
			}

			q, err := openBoundedQueue(dir)
			if err != nil {
				return err
			}

			defer func() { _ = q.Close() }()

			popped, err := q.Pop(*count)
			if err != nil {
				return err
			}

			if len(popped) == 0 {
				o.Println("queue is empty")

				return nil
			}

			for _, value := range popped {
				o.Printf("%q\n", value)
			}

			return nil
		},
	}
}
