package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/simone-weiss/ankaios/internal/config"
	"github.com/simone-weiss/ankaios/internal/logging"
	"github.com/simone-weiss/ankaios/internal/server"
	"github.com/simone-weiss/ankaios/internal/state"
	"github.com/simone-weiss/ankaios/internal/store"
	"github.com/simone-weiss/ankaios/internal/workloadstate"
)

var version = "dev"

const banner = `
            _         _____ _______   ________ _____
  __ _ _ __ | | ____ _|_   _| ____\ \ / / ____| ____|
 / _' | '_ \| |/ / _' || | |  _|  \ V /|  _| |  _|
| (_| | | | |   < (_| || | | |___  | | | |___| |___
 \__,_|_| |_|_|\_\__,_||_| |_____| |_| |_____|_____|
`

// getConfigPath resolves the server config file: ANKAIOS_SERVER_CONFIG env
// var, then XDG_CONFIG_HOME/ankaios/server.yaml, then ~/.config/ankaios/server.yaml.
func getConfigPath() string {
	if p := os.Getenv("ANKAIOS_SERVER_CONFIG"); p != "" {
		return p
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "server.yaml"
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "ankaios", "server.yaml")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := getConfigPath()
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	color.New(color.FgHiBlack).Printf("    version: %s\n\n", version)

	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging)

	startup, err := config.LoadStartupState(cfg.StartupState)
	if err != nil {
		return fmt.Errorf("loading startup state: %w", err)
	}
	if err := state.Validate(startup); err != nil {
		return fmt.Errorf("validating startup state: %w", err)
	}

	audit, err := store.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer audit.Close()

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("config:        %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("listen:        %s\n", cfg.ListenAddr)
	green.Print("    ▶ ")
	fmt.Printf("startup state: %s (%d workloads)\n", cfg.StartupState, len(startup.Workloads))
	green.Print("    ▶ ")
	fmt.Printf("audit db:      %s\n", cfg.Database.Path)
	fmt.Println()

	manager := state.New(startup)
	aggregator := workloadstate.New()

	srv := server.New(cfg, manager, aggregator, audit, logger)

	logger.Info("starting ank-server", "listen_addr", cfg.ListenAddr, "startup_state", cfg.StartupState)
	return srv.Run(ctx)
}
