package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/badgerq/pkg/queue"
)

const replHelp = `Commands:
  push <value>...                Push values (bounded)
  pop [n]                        Pop up to n entries (bounded, default 1)
  add <value>...                 Add values (mpmc)
  next <label> [n] [newest]      Read up to n entries for label (mpmc)
  labels                         List consumer labels (mpmc)
  rmlabel <label>                Remove a consumer label (mpmc)
  len                            Number of live entries
  size                           Payload bytes (bounded)
  disk                           On-disk size
  info                           Queue configuration
  help                           Show this help
  exit / quit / q                Exit`

func newReplCommand(cfg Config, stdin io.Reader) *Command {
	flags := flag.NewFlagSet("repl", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "repl <dir>",
		Short: "Interactively inspect and drive a queue",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			dir, err := queueDir(cfg, args)
			if err != nil {
				return err
			}

			bounded, mpmc, err := openAny(dir)
			if err != nil {
				return err
			}

			defer func() {
				if bounded != nil {
					_ = bounded.Close()
				}

				if mpmc != nil {
					_ = mpmc.Close()
				}
			}()

			session := &replSession{o: o, bounded: bounded, mpmc: mpmc}

			if stdin == os.Stdin {
				return session.runInteractive(ctx)
			}

			return session.runScripted(ctx, stdin)
		},
	}
}

type replSession struct {
	o       *IO
	bounded *queue.Bounded
	mpmc    *queue.Mpmc
}

// runInteractive drives the REPL with readline-style editing and history.
func (s *replSession) runInteractive(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	for {
		if ctx.Err() != nil {
			return nil
		}

		input, err := line.Prompt("bq> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		if s.dispatch(input) {
			return nil
		}
	}
}

// runScripted reads commands line by line, for piped input and tests.
func (s *replSession) runScripted(ctx context.Context, stdin io.Reader) error {
	scanner := bufio.NewScanner(stdin)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if s.dispatch(input) {
			return nil
		}
	}

	return scanner.Err()
}

// dispatch executes one REPL command, reporting whether to exit.
func (s *replSession) dispatch(input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "exit", "quit", "q":
		return true
	case "help":
		s.o.Println(replHelp)
	case "len":
		s.o.Println(s.len())
	case "size":
		if s.bounded == nil {
			s.o.Println("error: size is bounded-only")
		} else {
			s.o.Println(humanize.IBytes(s.bounded.PayloadSize()))
		}
	case "disk":
		s.printDisk()
	case "info":
		s.printInfo()
	case "push":
		s.push(args)
	case "pop":
		s.pop(args)
	case "add":
		s.add(args)
	case "next":
		s.next(args)
	case "labels":
		s.labels()
	case "rmlabel":
		s.rmlabel(args)
	default:
		s.o.Printf("unknown command %q (try help)\n", cmd)
	}

	return false
}

func (s *replSession) len() uint64 {
	if s.bounded != nil {
		return s.bounded.Len()
	}

	return s.mpmc.Len()
}

func (s *replSession) printDisk() {
	var (
		size int64
		err  error
	)

	if s.bounded != nil {
		size, err = s.bounded.DiskSize()
	} else {
		size, err = s.mpmc.DiskSize()
	}

	if err != nil {
		s.o.Println("error:", err)

		return
	}

	s.o.Println(humanize.IBytes(uint64(size)))
}

func (s *replSession) printInfo() {
	if s.bounded != nil {
		s.o.Printf("bounded queue at %s\n", s.bounded.Path())
		s.o.Printf("capacity %d, length %d, payload %s\n",
			s.bounded.MaxElements(), s.bounded.Len(), humanize.IBytes(s.bounded.PayloadSize()))

		return
	}

	s.o.Printf("mpmc queue at %s\n", s.mpmc.Path())
	s.o.Printf("ttl %s, length %d, %d labels\n",
		s.mpmc.TTL().Round(time.Second), s.mpmc.Len(), len(s.mpmc.Labels()))
}

func (s *replSession) push(args []string) {
	if s.bounded == nil {
		s.o.Println("error: push is bounded-only (try add)")

		return
	}

	if len(args) == 0 {
		s.o.Println("usage: push <value>...")

		return
	}

	if err := s.bounded.Push(stringValues(args)); err != nil {
		s.o.Println("error:", err)

		return
	}

	s.o.Printf("pushed %d, length now %d\n", len(args), s.bounded.Len())
}

func (s *replSession) pop(args []string) {
	if s.bounded == nil {
		s.o.Println("error: pop is bounded-only (try next)")

		return
	}

	count := 1

	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			s.o.Println("usage: pop [n]")

			return
		}

		count = n
	}

	popped, err := s.bounded.Pop(count)
	if err != nil {
		s.o.Println("error:", err)

		return
	}

	if len(popped) == 0 {
		s.o.Println("queue is empty")

		return
	}

	for _, value := range popped {
		s.o.Printf("%q\n", value)
	}
}

func (s *replSession) add(args []string) {
	if s.mpmc == nil {
		s.o.Println("error: add is mpmc-only (try push)")

		return
	}

	if len(args) == 0 {
		s.o.Println("usage: add <value>...")

		return
	}

	if err := s.mpmc.Add(stringValues(args)); err != nil {
		s.o.Println("error:", err)

		return
	}

	s.o.Printf("added %d, length now %d\n", len(args), s.mpmc.Len())
}

func (s *replSession) next(args []string) {
	if s.mpmc == nil {
		s.o.Println("error: next is mpmc-only (try pop)")

		return
	}

	if len(args) == 0 {
		s.o.Println("usage: next <label> [n] [newest]")

		return
	}

	label := args[0]
	count := 1
	pos := queue.Oldest

	for _, arg := range args[1:] {
		if arg == "newest" {
			pos = queue.Newest

			continue
		}

		if arg == "oldest" {
			continue
		}

		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			s.o.Println("usage: next <label> [n] [newest]")

			return
		}

		count = n
	}

	items, expired, err := s.mpmc.Next(count, label, pos)
	if err != nil {
		s.o.Println("error:", err)

		return
	}

	if expired {
		s.o.Println("note: entries expired under this label's cursor")
	}

	if len(items) == 0 {
		s.o.Println("nothing to read")

		return
	}

	for _, item := range items {
		s.o.Printf("%q\n", item)
	}
}

func (s *replSession) labels() {
	if s.mpmc == nil {
		s.o.Println("error: labels is mpmc-only")

		return
	}

	labels := s.mpmc.Labels()
	if len(labels) == 0 {
		s.o.Println("no labels")

		return
	}

	for _, label := range labels {
		s.o.Println(label)
	}
}

func (s *replSession) rmlabel(args []string) {
	if s.mpmc == nil {
		s.o.Println("error: rmlabel is mpmc-only")

		return
	}

	if len(args) != 1 {
		s.o.Println("usage: rmlabel <label>")

		return
	}

	removed, err := s.mpmc.RemoveLabel(args[0])
	if err != nil {
		s.o.Println("error:", err)

		return
	}

	if removed {
		s.o.Printf("removed label %q\n", args[0])
	} else {
		s.o.Printf("no such label %q\n", args[0])
	}
}
