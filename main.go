package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/putto11262002/gymchat/app"
	"github.com/putto11262002/gymchat/pkg/logger"
)

func main() {
	configDir := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	serverCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	loader := &app.FileConfigLoader{Paths: []string{*configDir}}
	config, err := loader.Load()
	if err != nil {
		failed(1, "load config: %v\n", err)
	}

	a, err := app.New(serverCtx, config, logger.New(os.Stdout, config.LogLevel))
	if err != nil {
		failed(1, "init app: %v\n", err)
	}

	if err := a.Start(); err != nil {
		failed(1, "%v\n", err)
	}
}

func failed(code int, s string, args ...interface{}) {
	fmt.Printf(s, args...)
	os.Exit(code)
}
