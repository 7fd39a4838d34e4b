package cmd

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"rehash/internal/export"
	"rehash/internal/processor"
	"rehash/internal/session"
	"rehash/internal/tui"
	"rehash/internal/upload"
)

var (
	tuneOutput string
	tuneFlags  *runFlags
)

var tuneCmd = &cobra.Command{
	Use:   "tune [flags] <path>",
	Short: "Adjust parameters interactively and export when satisfied",
	Long: `tune loads a batch and refreshes every image whenever a parameter changes.
Press r to reload the batch from disk, e to export and q to quit.
Logs go to --log-file while the interface owns the terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]
		if logFile == "" {
			logFile = "rehash.log"
			if err := setupLogging(cmd.ErrOrStderr()); err != nil {
				return err
			}
		}

		cfg, err := tuneFlags.resolve(cmd)
		if err != nil {
			return err
		}
		sess, _, err := loadSession(ctx, cfg, path, upload.Options{})
		if err != nil {
			return err
		}

		model := tui.NewTuneModel(tui.TuneOptions{
			Session: sess,
			Params:  cfg.Params,
			Reload: func(ctx context.Context) ([]session.File, error) {
				return upload.Collect(ctx, path, upload.Options{})
			},
			Export: func(artifacts []processor.Artifact) (string, error) {
				if err := export.WriteArchiveFile(tuneOutput, export.Entries(artifacts), time.Now()); err != nil {
					return "", err
				}
				if abs, err := filepath.Abs(tuneOutput); err == nil {
					return abs, nil
				}
				return tuneOutput, nil
			},
		})

		final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		if tm, ok := final.(tui.TuneModel); ok {
			slog.Info("tune finished", "params", tm.Params().String())
		}
		return nil
	},
}

func init() {
	tuneCmd.Flags().StringVarP(&tuneOutput, "output", "o", "rehashed.zip", "archive written by the export key")
	tuneFlags = addRunFlags(tuneCmd)

	rootCmd.AddCommand(tuneCmd)
}
