package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mickamy/crudmodel/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cli.Version = version
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
