package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Menu lists the single-letter commands understood by Run.
const Menu = "press s to set DTR and RTS, z to clear them, g to get modem status (dsr/cts/dcd/ri), " +
	"h to wait for a modem status change, b to send break, w to write, p to write a test pattern, " +
	"r to read, f to send a file or save received data to a file, q to quit."

// Run reads commands from in, one per line, until q, end of input or ctx is
// done. A command may carry its argument on the same line ("w hello");
// otherwise it is prompted for. Failed actions are reported and the loop
// continues.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	lines := scanLines(in)

	next := func() (string, bool) {
		select {
		case <-ctx.Done():
			return "", false
		case line, ok := <-lines:
			return line, ok
		}
	}

	ask := func(prompt string) (string, bool) {
		fmt.Fprintln(s.out, prompt)
		line, ok := next()
		return strings.TrimSpace(line), ok
	}

	fmt.Fprintln(s.out, Menu)
	for {
		line, ok := next()
		if !ok {
			return nil
		}

		command, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)
		if command == "" {
			continue
		}

		var err error
		switch command {
		case "q":
			return nil
		case "s":
			err = s.AssertLines()
		case "z":
			err = s.ClearLines()
		case "g":
			err = s.ReportLines()
		case "h":
			err = s.WaitLines(ctx)
		case "b":
			err = s.Break()
		case "w":
			if arg == "" {
				if arg, ok = ask("Input string to send:"); !ok {
					return nil
				}
			}
			err = s.WriteString(arg)
		case "p":
			err = s.WritePattern()
		case "r":
			err = s.ReadOnce()
		case "f":
			err = s.fileMenu(ctx, arg, ask)
		default:
			fmt.Fprintf(s.out, "Unknown command %q.\n", command)
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Debug("action failed", "command", command, "err", err)
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		fmt.Fprintln(s.out, Menu)
	}
}

// fileMenu handles "f": "f w <file>" sends, "f r <file>" receives.
func (s *Session) fileMenu(ctx context.Context, arg string, ask func(string) (string, bool)) error {
	choice, path, _ := strings.Cut(arg, " ")
	path = strings.TrimSpace(path)

	if choice == "" {
		var ok bool
		if choice, ok = ask("Press w to send a file, r to save received data to a file."); !ok {
			return nil
		}
	}

	switch choice {
	case "w":
		if path == "" {
			var ok bool
			if path, ok = ask("Input file name to send:"); !ok {
				return nil
			}
		}
		return s.SendFile(ctx, path)
	case "r":
		if path == "" {
			var ok bool
			if path, ok = ask("Input file name to save to:"); !ok {
				return nil
			}
		}
		fmt.Fprintln(s.out, "Receiving, press Ctrl+C to stop.")
		return s.ReceiveFile(ctx, path)
	default:
		fmt.Fprintf(s.out, "Bad choice %q.\n", choice)
		return nil
	}
}

// scanLines feeds the lines of in to a channel closed at end of input. The
// goroutine outlives Run when ctx ends while a read is pending.
func scanLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
