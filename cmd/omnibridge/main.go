// Package main runs the omnibridge event router.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/drblury/omnibridge/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand(nil).ExecuteContext(ctx)
	if code := cli.ExitCode(err); code != 0 {
		fmt.Fprintf(os.Stderr, "omnibridge: %v\n", err)
		stop()
		os.Exit(code)
	}
}
