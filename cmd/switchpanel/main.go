package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fgpanels/switchpanel/internal/config"
	"github.com/fgpanels/switchpanel/internal/logging"
	"github.com/fgpanels/switchpanel/internal/system"
	"github.com/fgpanels/switchpanel/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	mappingPath := config.DefaultMappingFile
	if len(args) > 0 {
		mappingPath = args[0]
	}

	fmt.Fprintf(os.Stderr, "switchpanel %s, mapping file %s\n", version, mappingPath)

	// Config laden
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		return types.ExitCode(err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return types.ExitConfigInvalid
	}
	defer logger.Sync()

	logger = logger.With(zap.String("session_id", uuid.NewString()))
	logger.Info("Settings loaded",
		zap.String("version", version),
		zap.String("simulator", cfg.Simulator.Address),
		zap.String("backend", cfg.Input.Backend),
		zap.Bool("monitor", cfg.Monitor.Enabled))

	lifecycle, err := system.NewLifecycleManager(cfg, mappingPath, os.Stdin, logger)
	if err != nil {
		logger.Error("Failed to create lifecycle manager", zap.Error(err))
		return types.ExitFailure
	}

	// Graceful Shutdown auf Signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// a blocked stdin read does not observe ctx, so the loop runs aside
	result := make(chan error, 1)
	go func() {
		if err := lifecycle.Start(ctx); err != nil {
			result <- err
			return
		}
		result <- lifecycle.Run(ctx)
	}()

	select {
	case err = <-result:
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		err = awaitLoop(cfg.Input.Backend, result, cfg.Input.ReadTimeout+cfg.Monitor.ShutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Monitor.ShutdownTimeout+time.Second)
	defer cancel()
	if shutdownErr := lifecycle.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("Shutdown failed", zap.Error(shutdownErr))
	}

	code := types.ExitCode(err)
	if code != types.ExitOK {
		logger.Error("Switch panel bridge stopped", zap.Error(err), zap.Int("exit_code", code))
	} else {
		logger.Info("Switch panel bridge stopped")
	}
	return code
}

// awaitLoop waits for the hid driver loop to return before the device is
// closed, since hidapi must not close a handle with a read in flight. A
// stdin read only returns once the source is closed, so it is not waited on.
func awaitLoop(backend string, result <-chan error, timeout time.Duration) error {
	if backend != config.BackendHID {
		return nil
	}

	select {
	case err := <-result:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-time.After(timeout):
		return nil
	}
}
