package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/platinummonkey/tenantgate/pkg/cli"
)

func main() {
	// A missing .env is fine; the environment alone is enough
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := cli.DefaultEnv(os.Getenv("TENANTGATE_LOG_LEVEL"))
	if err := cli.NewRootCommand(env).Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
