package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/badgerq/pkg/queue"
)

func newCreateCommand(cfg Config) *Command {
	flags := flag.NewFlagSet("create", flag.ContinueOnError)
	flavor := flags.StringP("flavor", "f", "bounded", "queue flavor: bounded or mpmc")
	maxElements := flags.Uint64P("max", "m", 0, "capacity (bounded queues)")
	ttl := flags.DurationP("ttl", "t", 0, "entry time-to-live (mpmc queues)")

	return &Command{
		Flags: flags,
		Usage: "create <dir> [flags]",
		Short: "Create a queue directory",
		Long: "Create a queue at <dir>.\n\n" +
			"Bounded queues need --max, mpmc queues need --ttl. The flavor and\n" +
			"options are recorded in the directory's manifest, so later commands\n" +
			"and reopens pick them up automatically.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			dir, err := queueDir(cfg, args)
			if err != nil {
				return err
			}

			switch *flavor {
			case "bounded":
				if *maxElements == 0 {
					return errors.New("--max is required for bounded queues")
				}

				q, openErr := queue.OpenBounded(queue.BoundedOptions{
					Path:        dir,
					MaxElements: *maxElements,
				})
				if openErr != nil {
					return openErr
				}

				defer func() { _ = q.Close() }()

				o.Printf("created bounded queue at %s (capacity %d)\n", dir, *maxElements)

				return nil
			case "mpmc":
				if *ttl <= 0 {
					return errors.New("--ttl is required for mpmc queues")
				}

				if *ttl < time.Second {
					return errors.New("--ttl must be at least 1s (expiry has second granularity)")
				}

				q, openErr := queue.OpenMpmc(queue.MpmcOptions{Path: dir, TTL: *ttl})
				if openErr != nil {
					return openErr
				}

				defer func() { _ = q.Close() }()

				o.Printf("created mpmc queue at %s (ttl %s)\n", dir, *ttl)

				return nil
			default:
				return fmt.Errorf("unknown flavor %q (want bounded or mpmc)", *flavor)
			}
		},
	}
}
