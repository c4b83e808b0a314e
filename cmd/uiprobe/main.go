// File: cmd/uiprobe/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/uiprobe/cmd"
	"github.com/xkilldash9x/uiprobe/internal/observability"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

// Allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	osExit(run())
}

// run executes the CLI with a context canceled on SIGINT or SIGTERM. Any
// session still open when the signal arrives is released before returning.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer observability.Sync()

	return exitCode(cmd.Execute(ctx))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitFailure
	}
}
