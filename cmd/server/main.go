package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/chitchat/internal/registry"
	"github.com/Tyrowin/chitchat/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("chitchat", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment (ignored if missing)")
	port := flags.StringP("port", "p", "", "listen address, e.g. :9000 (overrides SERVER_PORT)")
	logLevel := flags.String("log-level", "", "DEBUG, INFO, WARN or ERROR (overrides LOG_LEVEL)")
	usernamePolicy := flags.String("username-policy", "", "first-wins, last-wins or unique (overrides USERNAME_POLICY)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *usernamePolicy != "" {
		cfg.UsernamePolicy = *usernamePolicy
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logs.GetLoggerFromString(cfg.LogLevel)

	reg := registry.New(cfg.RegistryOptions())
	router := server.NewRouter(reg, log, cfg.RouterOptions())
	go router.Run()

	srv := server.New(cfg, router, log)
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(srv))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", cfg.Port, "username_policy", reg.Policy())
		serveErr <- server.StartServer(httpServer)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = router.Shutdown(5 * time.Second)
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
		log.Error("HTTP server shutdown error", "err", err)
	}
	if err := router.Shutdown(5 * time.Second); err != nil {
		log.Warn("Router shutdown incomplete", "err", err)
	}
	return nil
}
