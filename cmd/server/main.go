package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	router "github.com/dkeye/callrelay/internal/adapters/http"
	"github.com/dkeye/callrelay/internal/adapters/rtc"
	sigws "github.com/dkeye/callrelay/internal/adapters/signal"
	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/app/orch"
	"github.com/dkeye/callrelay/internal/config"
	"github.com/dkeye/callrelay/internal/metrics"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "callrelay",
		Short:         "Signaling relay for peer-to-peer calls and rooms",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().Int("port", 8080, "listen port")
	cmd.Flags().String("mode", "release", "gin mode: debug or release")
	cmd.Flags().String("log_level", "info", "zerolog level")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return cmd
}

func run(cmd *cobra.Command, configPath string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return err
	}
	setupLogger(cfg)

	policy, err := app.ParsePolicy(cfg.Backpressure)
	if err != nil {
		return err
	}
	iceServers, err := rtc.ICEServers(cfg.ICEServers)
	if err != nil {
		log.Error().Err(err).Msg("invalid ice servers")
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	o := orch.New(policy, metrics.New(reg))

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:       o,
		ICEServers: iceServers,
		Signal:     sigws.OptionsFromConfig(cfg),
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("callrelay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
		return err
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
