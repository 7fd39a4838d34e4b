package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logFile string
	logSink io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "rehash",
	Short: "rehash - give every image in a batch a new digest",
	Long: `rehash applies small pixel-level perturbations (brightness, contrast, noise,
sub-unit jitter, an optional watermark and a trailing comment) and re-encodes
each image as JPEG. Outputs look like their sources but hash differently.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()
		return setupLogging(cmd.ErrOrStderr())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logSink != nil {
			_ = logSink.Close()
			logSink = nil
		}
	},
}

// Execute runs the CLI through fang, which adds version, completion and
// signal handling.
func Execute(ctx context.Context, version string) error {
	return fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	)
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
}

func setupLogging(stderr io.Writer) error {
	var out io.Writer = stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logSink = f
		out = f
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return nil
}
