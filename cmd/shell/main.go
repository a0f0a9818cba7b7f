package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"agentlog-shell/internal/app"
	"agentlog-shell/internal/bridge"
	"agentlog-shell/internal/config"
	"agentlog-shell/internal/guard"
	"agentlog-shell/internal/logger"
	"agentlog-shell/internal/metrics"
	"agentlog-shell/internal/proxy"
	"agentlog-shell/internal/server"
	"agentlog-shell/internal/worker"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Version = "0.0.0"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shell",
		Short:         "Native shell: agent log listener and generation backend proxy.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentlog-shell version: %s\n", Version)
		},
	}

	cmd.AddCommand(newRunCmd(), newCallCmd(), versionCmd)
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the log listener and the UI bridge, block until signalled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(config.Load())
		},
	}
}

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <city> [dateOffset]",
		Short: "Forward one generation job to the backend and print the reply",
		Long: `Forward one generation job to the backend and print the reply.

dateOffset may be negative: "call Beijing -1" asks for yesterday.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset := 0
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return errors.Errorf("dateOffset must be an integer: %q", args[1])
				}
				offset = n
			}

			cfg := config.Load()
			logger.Init(cfg)

			a := app.New(guard.New(), nil, proxy.NewClient(cfg, metrics.New()))
			out, err := a.CallService(cmd.Context(), args[0], offset)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	// Positional args only, so a negative offset is not read as a flag.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// run wires the process root: one guard, one listener, one UI bridge.
func run(cfg config.Config) error {
	logger.Init(cfg)
	m := metrics.New()

	if cfg.MetricsAddr != "" {
		msrv := m.Serve(cfg.MetricsAddr)
		defer msrv.Close()
	}

	hub := bridge.NewHub()

	var echo io.Writer
	if cfg.EchoBanner {
		echo = os.Stdout
	}
	disp := worker.NewDispatcher(cfg, m, hub, echo)
	disp.Start()

	logSrv := server.NewLogServer(cfg, m, disp)
	a := app.New(guard.New(), logSrv, proxy.NewClient(cfg, m))

	uiSrv, uiAddr, err := hub.Start(cfg.UIAddr, a)
	if err != nil {
		return err
	}

	a.Setup()
	zlog.Info().
		Str("log_addr", cfg.LogAddr).
		Str("ui_addr", uiAddr.String()).
		Str("backend", cfg.BackendURL).
		Msg("shell started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	zlog.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uiSrv.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("UI bridge shutdown")
	}
	_ = logSrv.Close()
	disp.Shutdown()

	zlog.Info().Msg("shutdown complete")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
