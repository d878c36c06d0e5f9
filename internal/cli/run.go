package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns exit code.
// sigCh can be nil if signal handling is not needed (e.g., in tests).
func Run(stdin io.Reader, out, errOut io.Writer, args []string, sigCh <-chan os.Signal) int {
	globalFlags := flag.NewFlagSet("bq", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})
	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")

	if err := globalFlags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	cfg, err := LoadConfig()
	if err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	commands := allCommands(cfg, stdin)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	commandAndArgs := globalFlags.Args()

	if *flagHelp || len(commandAndArgs) == 0 {
		printUsage(out, commands)

		return 0
	}

	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut, commands)

		return 1
	}

	cmdIO := NewIO(out, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)

	go func() {
		done <- cmd.Run(ctx, cmdIO, commandAndArgs[1:])
	}()

	select {
	case exitCode := <-done:
		return exitCode
	case <-sigCh:
		fprintln(errOut, "interrupted, shutting down...")
		cancel()

		return <-done
	}
}

func allCommands(cfg Config, stdin io.Reader) []*Command {
	return []*Command{
		newCreateCommand(cfg),
		newStatCommand(cfg),
		newPushCommand(cfg),
		newPopCommand(cfg),
		newAddCommand(cfg),
		newNextCommand(cfg),
		newLabelsCommand(cfg),
		newDestroyCommand(cfg),
		newReplCommand(cfg, stdin),
		newVersionCommand(),
	}
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, "Usage: bq <command> [arguments]")
	fprintln(w)
	fprintln(w, "A durable queue on an embedded key-value store.")
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}

	fprintln(w)
	fprintln(w, "Run 'bq <command> --help' for command details.")
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
