// Command poolplan plans stock-sample pool creation for siRNA pool libraries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"poolcore/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cmd := cli.NewRootCommand(&cli.RootOptions{})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "poolplan:", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
