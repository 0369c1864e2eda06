package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/amp-labs/amp-hfsm/cli"
	"github.com/amp-labs/amp-hfsm/logger"
	"github.com/amp-labs/amp-hfsm/should"
	"github.com/amp-labs/amp-hfsm/telemetry"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const (
	appName         = "hfsm"
	shutdownTimeout = 5 * time.Second
	readTimeout     = 10 * time.Second
)

// app carries what the commands share: output streams, the prompter used by
// the repl and the cleanups registered while starting up.
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	prompter cli.Prompter

	envFile     string
	environment string
	metricsAddr string

	cleanups []func()
}

// setup loads the .env file, then configures logging, telemetry and the
// optional metrics endpoint. Logs go to stderr so command output stays parseable.
func (a *app) setup(ctx context.Context) error {
	if err := loadEnv(a.envFile); err != nil {
		return err
	}

	if _, err := logger.ConfigureLogging(ctx, appName, logger.WithOutput(a.stderr)); err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}

	cfg, err := telemetry.LoadConfigFromEnv(ctx, a.environment)
	if err != nil {
		return err
	}

	if err := telemetry.Initialize(ctx, cfg); err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	a.cleanups = append(a.cleanups, func() {
		should.Shutdown(telemetry.Shutdown, shutdownTimeout, "shutting down telemetry")
	})

	if a.metricsAddr != "" {
		return a.serveMetrics(ctx)
	}

	return nil
}

// loadEnv reads an explicit env file, or .env when it exists. Variables already
// set in the environment win.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file %s: %w", path, err)
		}

		return nil
	}

	_ = godotenv.Load()

	return nil
}

func (a *app) serveMetrics(ctx context.Context) error {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.metricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Handler: mux, ReadHeaderTimeout: readTimeout}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get(ctx).Error("metrics server failed", "error", err)
		}
	}()

	logger.Get(ctx).Info("serving metrics", "addr", listener.Addr().String())

	a.cleanups = append(a.cleanups, func() {
		should.Shutdown(server.Shutdown, shutdownTimeout, "stopping metrics server")
	})

	return nil
}

// close runs the cleanups in reverse registration order.
func (a *app) close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}

	a.cleanups = nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Validate, draw and drive hierarchical state machines",
		Long:          `hfsm works on state machine definitions written in YAML: it validates them, renders Mermaid diagrams and runs transitions against them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", "", "load environment variables from this file instead of .env")
	flags.StringVar(&a.environment, "environment", os.Getenv("ENVIRONMENT"), "running environment reported to telemetry")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	root.AddCommand(
		newValidateCmd(a),
		newMermaidCmd(a),
		newRunCmd(a),
		newReplCmd(a),
	)

	return root
}
