package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/simone-weiss/ankaios/internal/config"
	"github.com/simone-weiss/ankaios/internal/logging"
	"github.com/simone-weiss/ankaios/internal/runtime"
	"github.com/simone-weiss/ankaios/internal/scheduler"
	"github.com/simone-weiss/ankaios/internal/wire"
	"github.com/simone-weiss/ankaios/internal/workloadstate"
)

// getConfigPath resolves the agent config file: ANKAIOS_AGENT_CONFIG env
// var, then XDG_CONFIG_HOME/ankaios/agent.yaml, then ~/.config/ankaios/agent.yaml.
func getConfigPath() string {
	if p := os.Getenv("ANKAIOS_AGENT_CONFIG"); p != "" {
		return p
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "agent.yaml"
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "ankaios", "agent.yaml")
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

	cfg, err := config.LoadAgent(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging)
	logger.Info("starting ank-agent", "agent_name", cfg.AgentName, "server_addr", cfg.ServerAddr)

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return fmt.Errorf("creating log_dir: %w", err)
		}
	}
	driver := runtime.NewFake(cfg.LogDir, logger)

	backoff := cfg.Backoff.Base
	for {
		connectedAt := time.Now()
		err := connectAndRun(ctx, cfg, driver, logger)
		if ctx.Err() != nil {
			return nil
		}
		stableFor := time.Since(connectedAt)
		logger.Warn("connection to server lost, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		if stableFor >= cfg.Backoff.ResetAfter {
			backoff = cfg.Backoff.Base
			continue
		}
		backoff *= 2
		if backoff > cfg.Backoff.Cap {
			backoff = cfg.Backoff.Cap
		}
	}
}

// connectAndRun dials the server once, registers agentHello, replays any
// assignment the server sends on connect, and runs the scheduler against
// every subsequent UpdateWorkload/UpdateWorkloadState message until the
// stream ends or ctx is canceled.
func connectAndRun(ctx context.Context, cfg *config.AgentConfig, driver runtime.Driver, logger *slog.Logger) error {
	cc, err := grpc.NewClient(cfg.ServerAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dialing %s: %w", cfg.ServerAddr, err)
	}
	defer cc.Close()

	client := wire.NewControlClient(cc)
	stream, err := client.AgentConnection(ctx, grpc.ForceCodec(wire.Codec))
	if err != nil {
		return fmt.Errorf("opening agent stream: %w", err)
	}

	if err := stream.Send(&wire.ToServer{Content: wire.ToServerContent{AgentHello: &wire.AgentHello{AgentName: cfg.AgentName}}}); err != nil {
		return fmt.Errorf("sending hello: %w", err)
	}
	logger.Info("connected to server", "server_addr", cfg.ServerAddr)

	states := workloadstate.New()
	report := func(ws []wire.WorkloadState) {
		if err := stream.Send(&wire.ToServer{Content: wire.ToServerContent{UpdateWorkloadState: &wire.UpdateWorkloadStateMsg{WorkloadStates: ws}}}); err != nil {
			logger.Warn("reporting workload state failed", "error", err)
		}
	}
	sched := scheduler.New(driver, states, report, logger)

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			return fmt.Errorf("recv: %w", err)
		}

		switch {
		case msg.Content.UpdateWorkload != nil:
			sched.HandleUpdateWorkload(*msg.Content.UpdateWorkload)

		case msg.Content.UpdateWorkloadState != nil:
			sched.Observe(msg.Content.UpdateWorkloadState.WorkloadStates)

		case msg.Content.Response != nil:
			// agent-issued requests aren't used by this binary today.

		default:
			logger.Warn("unexpected FromServer envelope on agent stream")
		}
	}
}
