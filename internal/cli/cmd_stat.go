package cli

import (
	"context"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"
)

func newStatCommand(cfg Config) *Command {
	flags := flag.NewFlagSet("stat", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "stat <dir>",
		Short: "Show queue state and sizes",
		Exec: func(_ context.Context, o *IO, args []string) error {
			dir, err := queueDir(cfg, args)
			if err != nil {
				return err
			}

			bounded, mpmc, err := openAny(dir)
			if err != nil {
				return err
			}

			if bounded != nil {
				defer func() { _ = bounded.Close() }()

				diskSize, sizeErr := bounded.DiskSize()
				if sizeErr != nil {
					return sizeErr
				}

				o.Printf("flavor:       bounded\n")
				o.Printf("capacity:     %d\n", bounded.MaxElements())
				o.Printf("length:       %d\n", bounded.Len())
				o.Printf("payload size: %s\n", humanize.IBytes(bounded.PayloadSize()))
				o.Printf("disk size:    %s\n", humanize.IBytes(uint64(diskSize)))

				return nil
			}

			defer func() { _ = mpmc.Close() }()

			diskSize, sizeErr := mpmc.DiskSize()
			if sizeErr != nil {
				return sizeErr
			}

			labels := mpmc.Labels()
			sort.Strings(labels)

			o.Printf("flavor:    mpmc\n")
			o.Printf("ttl:       %s\n", mpmc.TTL().Round(time.Second))
			o.Printf("length:    %d\n", mpmc.Len())
			o.Printf("disk size: %s\n", humanize.IBytes(uint64(diskSize)))
			o.Printf("labels:    %d\n", len(labels))

			for _, label := range labels {
				o.Printf("  %s\n", label)
			}

			return nil
		},
	}
}
