package main

import (
	"encoding/json"
	"io"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/app"
	"github.com/Waeei/waeei-backend/internal/audit"
	"github.com/Waeei/waeei-backend/internal/config"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "waeei-service",
		Short:         "Malicious link scanner: denylist, reputation providers and verdict history",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to an optional .env file.")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and gRPC servers (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd, opts)
			},
		},
		newCheckCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, slog.Logger, error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return config.Config{}, slog.Logger{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, slog.Logger{}, xerrors.Errorf("config: %w", err)
	}
	return cfg, newLogger(cmd.ErrOrStderr(), cfg.Verbose), nil
}

func newLogger(w io.Writer, verbose bool) slog.Logger {
	logger := slog.Make(sloghuman.Sink(w))
	if verbose {
		logger = logger.Leveled(slog.LevelDebug)
	}
	return logger
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, logger, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger.Info(cmd.Context(), "starting waeei service",
		slog.F("http_addr", cfg.HTTPAddr),
		slog.F("grpc_addr", cfg.GRPCAddr),
		slog.F("denylist_path", cfg.DenylistPath),
	)
	return app.Run(cmd.Context(), cfg, logger)
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Analyze a single URL and print the report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			// Checks are kept in memory unless asked to record them.
			var store audit.Store
			if !record {
				store = audit.NewMemoryStore(nil)
			}
			deps, err := app.Build(ctx, cfg, store, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			if _, err := deps.Denylist.Reload(ctx, false); err != nil {
				logger.Warn(ctx, "denylist load failed", slog.Error(err))
			}

			a, err := deps.Engine.Analyze(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), a.Report())
		},
	}
	cmd.Flags().BoolVar(&record, "record", false, "Save the verdict to the history database.")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded verdicts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			deps, err := app.Build(ctx, cfg, nil, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			records, err := deps.Engine.History(ctx, limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records, 0 for all.")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
