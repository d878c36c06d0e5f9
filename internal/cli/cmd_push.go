package cli

import (
	"context"
	"errors"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/badgerq/pkg/queue"
)

func newPushCommand(cfg Config) *Command {
	flags := flag.NewFlagSet("push", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "push <dir> <value>...",
		Short: "Push values onto a bounded queue",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 2 {
				return errors.New("usage: bq push <dir> <value>...")
			}

			dir := args[0]
			values := stringValues(args[1:])

			q, err := openBoundedQueue(dir)
			if err != nil {
				return err
			}

			defer func() { _ = q.Close() }()

			if err := q.Push(values); err != nil {
				return err
			}

			o.Printf("pushed %d, length now %d\n", len(values), q.Len())

			return nil
		},
	}
}

func stringValues(args []string) [][]byte {
	values := make([][]byte, len(args))
	for i, arg := range args {
		values[i] = []byte(arg)
	}

	return values
}

func openBoundedQueue(dir string) (*queue.Bounded, error) {
	bounded, mpmc, err := openAny(dir)
	if err != nil {
		return nil, err
	}

	if bounded == nil {
		_ = mpmc.Close()

		return nil, errors.New("not a bounded queue (use add/next for mpmc queues)")
	}

	return bounded, nil
}

func openMpmcQueue(dir string) (*queue.Mpmc, error) {
	bounded, mpmc, err := openAny(dir)
	if err != nil {
		return nil, err
	}

	if mpmc == nil {
		_ = bounded.Close()

		return nil, errors.New("not an mpmc queue (use push/pop for bounded queues)")
	}

	return mpmc, nil
}
