package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/semql/config"
	"github.com/c360/semql/gateway/graphql"
)

type rootOptions struct {
	configPaths []string
	logLevel    string
	logFormat   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Serve GraphQL over linked data gateways",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringSliceVarP(&opts.configPaths, "config", "c",
		defaultConfigPaths(),
		"configuration layers, later ones override earlier ones (env: SEMQL_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"log level override: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "",
		"log format override: text, json")

	root.AddCommand(
		newServeCmd(opts),
		newSchemaCmd(opts),
		newQueryCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

func defaultConfigPaths() []string {
	if v := os.Getenv("SEMQL_CONFIG"); v != "" {
		return []string{v}
	}
	return []string{"semql.yaml"}
}

// load reads the configuration and sets up logging and tracing. Logs go to
// stderr so command output on stdout stays machine readable.
func (o *rootOptions) load(stderr io.Writer) (*config.Config, *slog.Logger, func(context.Context) error, error) {
	loader := config.NewLoader()
	for _, p := range o.configPaths {
		loader.AddLayer(p)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}

	logger := setupLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	shutdown, err := setupTracing(cfg.Tracing, stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, shutdown, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, shutdownTracing, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer shutdownTracing(context.Background())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("Starting semql", "version", Version, "build_time", BuildTime, "config", opts.configPaths)

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := a.Close(closeCtx); err != nil {
					logger.Warn("Shutdown incomplete", "error", err)
				}
			}()

			if cfg.NATS.Serve {
				if err := a.serveGateway(ctx); err != nil {
					return err
				}
			}

			server, err := graphql.NewServer(cfg.Server, a.processor, a.registry, logger,
				graphql.WithHealth(a.health))
			if err != nil {
				return err
			}
			if err := server.Setup(); err != nil {
				return err
			}
			return server.Start(ctx, nil)
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "graceful shutdown timeout")
	return cmd
}

func newSchemaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				_, err := fmt.Fprint(cmd.OutOrStdout(), a.processor.SDL())
				return err
			})
		},
	}
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var variables, operation string

	cmd := &cobra.Command{
		Use:   "query <document>",
		Short: "Run one query and print the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var vars map[string]any
			if variables != "" {
				if err := json.Unmarshal([]byte(variables), &vars); err != nil {
					return fmt.Errorf("parse --variables: %w", err)
				}
			}
			text := args[0]
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(data)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res := a.processor.Query(ctx, text, vars, operation)
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
				if res.Invalid {
					return fmt.Errorf("query rejected with %d error(s)", len(res.Errors))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&variables, "variables", "", "variables as a JSON object")
	cmd.Flags().StringVar(&operation, "operation", "", "operation to run")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and print it with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, shutdown, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer shutdown(context.Background())
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return err
		},
	}
}

// withApp builds the app for a one-shot command and closes it afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *app) error) error {
	cfg, logger, shutdown, err := opts.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}
