// Package main provides bq, a CLI for durable queues on an embedded
// key-value store.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/calvinalkan/badgerq/internal/cli"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, sigCh)

	os.Exit(exitCode)
}
