package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

type readOnlyToggler interface {
	SetReadOnly(ro bool)
}

const consolePrompt = "Set read-only flag (y/n/q)? "

// runConsole reads y/n/q answers from in until ctx ends or input runs out.
// It reports whether the user asked to quit.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, t readOnlyToggler) bool {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, consolePrompt)
		if !sc.Scan() {
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "y":
			t.SetReadOnly(true)
		case "n":
			t.SetReadOnly(false)
		case "q":
			return true
		}
	}
}
