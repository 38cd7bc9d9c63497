package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/campusfit/campusfit-go/cmd"
	"github.com/campusfit/campusfit-go/internal/buildinfo"
	"github.com/campusfit/campusfit-go/internal/conf"
)

// Set with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   string
	buildDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := &conf.Settings{}
	info := &buildinfo.Context{Version: version, BuildDate: buildDate}
	rootCmd := cmd.RootCommand(settings, info)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
