package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/ozacod/cppenv/internal/app/cli"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCmd(Version).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sError: %v%s\n", cli.Red, err, cli.Reset)
		os.Exit(1)
	}
}
