package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fsscompiler/internal/cli"
)

func main() {
	// exit with SIGINT and SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	result, err := cli.Run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(result.ExitCode)
}
