package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/badgerq/pkg/queue"
)

func newVersionCommand() *Command {
	return &Command{
		Flags: flag.NewFlagSet("version", flag.ContinueOnError),
		Usage: "version",
		Short: "Print the engine version",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			o.Println("bq", queue.Version())

			return nil
		},
	}
}
