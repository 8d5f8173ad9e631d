package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/srg/blepeer/internal/groutine"
	"golang.org/x/term"
)

// controls maps chat commands onto one session.
type controls struct {
	Send       func(text string)
	Start      func()
	Stop       func()
	Disconnect func()
}

type command int

const (
	cmdSend command = iota
	cmdStart
	cmdStop
	cmdDisconnect
	cmdQuit
	cmdUnknown
	cmdNone
)

// parseCommand splits an input line into a command and, for cmdSend, the text to send.
func parseCommand(line string) (command, string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return cmdNone, ""
	}
	if !strings.HasPrefix(line, "/") {
		return cmdSend, line
	}
	// "//text" sends "/text".
	if strings.HasPrefix(line, "//") {
		return cmdSend, line[1:]
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "/start":
		return cmdStart, ""
	case "/stop":
		return cmdStop, ""
	case "/disconnect":
		return cmdDisconnect, ""
	case "/quit", "/exit":
		return cmdQuit, ""
	default:
		return cmdUnknown, strings.TrimSpace(line)
	}
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runInput feeds lines from in to ctl until /quit or ctx is done. When in
// hits EOF the function keeps waiting for ctx, so a peripheral started with
// no stdin keeps serving.
func runInput(ctx context.Context, in io.Reader, out io.Writer, ctl controls) error {
	lines := make(chan string)
	eof := make(chan error, 1)

	groutine.Go(ctx, "stdin", func(context.Context) {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		eof <- sc.Err()
	})

	if isTerminal(in) {
		stateColor.Fprintln(out, "Type a message and press Enter, /quit to exit.")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-eof:
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			eof = nil
		case line := <-lines:
			cmd, arg := parseCommand(line)
			switch cmd {
			case cmdNone:
			case cmdSend:
				ctl.Send(arg)
			case cmdStart:
				ctl.Start()
			case cmdStop:
				ctl.Stop()
			case cmdDisconnect:
				ctl.Disconnect()
			case cmdQuit:
				return nil
			case cmdUnknown:
				errorColor.Fprintf(out, "unknown command %s (try /start, /stop, /disconnect, /quit)\n", arg)
			}
		}
	}
}
