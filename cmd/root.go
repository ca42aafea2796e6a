package cmd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ellavondegurechaff/vmq/pool"
	"github.com/ellavondegurechaff/vmq/pool/client"
	"github.com/ellavondegurechaff/vmq/pool/logger"
)

var (
	serverURL  string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "vmqctl",
	Short:         "operate the VMQ account pool",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(logger.NewHandlerWithWriter("VMQCTL", level, cmd.ErrOrStderr())))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:5500", "pool API base url")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to config, used by commands that talk to the database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func newClient() (*client.Client, error) {
	return client.New(serverURL)
}

func loadConfig() (*pool.Config, error) {
	cfg, found, err := pool.LoadConfigOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.Debug("Config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	return writeJSON(cmd.OutOrStdout(), v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
