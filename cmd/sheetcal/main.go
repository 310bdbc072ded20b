package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sheetcal/internal/cli"
	appLog "sheetcal/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.RootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("sheetcal failed", err)
		os.Exit(1)
	}
}
