package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ellavondegurechaff/vmq/backend/utils"
	"github.com/ellavondegurechaff/vmq/pool/archive"
	"github.com/ellavondegurechaff/vmq/pool/config"
)

var addCMD = &cobra.Command{
	Use:   "add [FILE|-]",
	Short: "add tokens from a JSON array or one token per line",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			in = file
		}

		tokens, err := readTokens(in)
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Add(cmd.Context(), tokens)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var (
	allocateCount    int
	allocateConsumer string
)

var allocateCMD = &cobra.Command{
	Use:   "allocate",
	Short: "claim unused tokens for a consumer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Allocate(cmd.Context(), allocateCount, allocateConsumer)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var (
	statsWatch    bool
	statsInterval time.Duration
)

var statsCMD = &cobra.Command{
	Use:   "stats",
	Short: "show pool totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		for {
			stats, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			if !statsWatch {
				return printJSON(cmd, stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s total=%d used=%d unused=%d\n",
				time.Now().Format(time.TimeOnly), stats.Total, stats.Used, stats.Unused)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(statsInterval):
			}
		}
	},
}

var exportOut string

var exportCMD = &cobra.Command{
	Use:   "export",
	Short: "write every record to a JSON file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		export, err := c.Export(cmd.Context())
		if err != nil {
			return err
		}

		if exportOut == "-" {
			return printJSON(cmd, export)
		}
		path := exportOut
		if path == "" {
			path = archive.FileName(time.Now())
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}

		var buf bytes.Buffer
		if err := writeJSON(&buf, export); err != nil {
			return err
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return err
		}

		slog.Info("Export written",
			slog.String("path", path),
			slog.Int("records", export.Total))
		return nil
	},
}

func init() {
	allocateCMD.Flags().IntVarP(&allocateCount, "count", "n", 1, "number of tokens to claim")
	allocateCMD.Flags().StringVar(&allocateConsumer, "consumer", "", "name recorded as extracted_by")

	statsCMD.Flags().BoolVarP(&statsWatch, "watch", "w", false, "poll until interrupted")
	statsCMD.Flags().DurationVar(&statsInterval, "interval", config.StatsPollInterval, "poll interval with --watch")

	exportCMD.Flags().StringVarP(&exportOut, "out", "o", "", "output file, - for stdout (default accounts_export_<timestamp>.json)")

	rootCmd.AddCommand(addCMD, allocateCMD, statsCMD, exportCMD)
}

// readTokens accepts the same JSON array the API takes, or plain text with
// one token per line.
func readTokens(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return utils.ParseTokenList(trimmed)
	}

	var tokens []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), config.MaxRequestSize)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			tokens = append(tokens, line)
		}
	}
	return tokens, scanner.Err()
}
