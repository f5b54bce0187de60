package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"keygate/internal/di"
	"keygate/internal/ro"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the keygate server",
	Long: `Start the server that serves the auth endpoints and portal pages and
mediates trusted-header identities into delegated gateway keys.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	// Determine config path
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	container, err := di.NewContainer(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to initialize")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgSvc := di.MustInvoke[*di.ConfigService](container)

	serverSvc, err := di.Invoke[*di.ServerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to build server")
		shutdownContainer(container)
		return err
	}

	checkerSvc, err := di.Invoke[*di.CheckerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to build health checker")
		shutdownContainer(container)
		return err
	}

	cfgSvc.StartWatching(ctx)
	checkerSvc.Start()

	serveErr := make(chan error, 1)
	go func() {
		if err := serverSvc.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	log.Info().Str("listen", serverSvc.Server.Addr()).Msg("starting keygate")

	sigCh := make(chan os.Signal, 1)
	go func() {
		if sig, werr := ro.WaitForShutdown(ctx); werr == nil {
			sigCh <- sig
		}
	}()

	select {
	case err := <-serveErr:
		log.Error().Err(err).Msg("server error")
		shutdownContainer(container)
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down...")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := container.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		return err
	}

	log.Info().Msg("server stopped")

	return nil
}

// shutdownContainer shuts down the container, logging any error.
func shutdownContainer(container *di.Container) {
	if err := container.Shutdown(); err != nil {
		log.Error().Err(err).Msg("container shutdown error")
	}
}

// findConfigFile searches for config.yaml in default locations.
func findConfigFile() string {
	// Check current directory
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	// Check ~/.config/keygate/
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		p := filepath.Join(home, ".config", "keygate", defaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return defaultConfigFile // Default, will error if not found
}
