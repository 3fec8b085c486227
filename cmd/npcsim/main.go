package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/behaviour/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := injector.InitializeApp(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "npcsim:", err)
		os.Exit(1)
	}

	err = run(ctx, app)
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "npcsim:", err)
		os.Exit(1)
	}
}
