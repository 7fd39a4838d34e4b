package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"rehash/internal/export"
	"rehash/internal/processor"
	"rehash/internal/tui"
	"rehash/internal/upload"
)

var (
	processOutput string
	processDir    string
	processFlags  *runFlags
)

var processCmd = &cobra.Command{
	Use:   "process [flags] <path>",
	Short: "Perturb every image under path and export the results",
	Example: `  # Archive every image in ./photos as rehashed.zip
  rehash process ./photos

  # Stronger noise, a watermark and loose files instead of an archive
  rehash process --noise 8 --watermark --dir out ./photos`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]
		if processDir != "" && cmd.Flags().Changed("output") {
			return fmt.Errorf("--dir cannot be used with --output")
		}
		cfg, err := processFlags.resolve(cmd)
		if err != nil {
			return err
		}

		var exclude []string
		if processDir != "" {
			exclude = append(exclude, processDir)
		}
		sess, batch, err := loadSession(ctx, cfg, path, upload.Options{Exclude: exclude})
		if err != nil {
			return err
		}

		updates := make(chan processor.ProgressUpdate, 64)
		program := tea.NewProgram(tui.NewModel("rehash", updates), tea.WithInput(nil), tea.WithOutput(cmd.OutOrStdout()))

		uiDone := make(chan struct{})
		go func() {
			defer close(uiDone)
			_, _ = program.Run()
			// keep the pipeline moving if the UI stopped early
			for range updates {
			}
		}()

		artifacts, results, err := sess.Export(ctx, cfg.Params, updates)
		close(updates)
		<-uiDone
		if err != nil {
			return err
		}

		entries := export.Entries(artifacts)
		var dest string
		if processDir != "" {
			if _, err := export.WriteDir(processDir, entries); err != nil {
				return err
			}
			dest = processDir
		} else {
			if err := export.WriteArchiveFile(processOutput, entries, time.Now()); err != nil {
				return err
			}
			dest = processOutput
		}
		if abs, absErr := filepath.Abs(dest); absErr == nil {
			dest = abs
		}

		out := cmd.OutOrStdout()
		rows := tui.BatchSummaryRows(processor.Summarize(results))
		rows = append(rows, tui.SummaryRow{Label: "Files skipped", Value: fmt.Sprintf("%d", len(batch.Warnings))})
		fmt.Fprintln(out, tui.RenderSummary(rows))
		for _, res := range results {
			if !res.OK() {
				fmt.Fprintf(out, "failed: %s: %v\n", res.Name, res.Err)
			}
		}
		fmt.Fprintf(out, "Processed images written to: %s\n", dest)
		return nil
	},
}

func init() {
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "rehashed.zip", "destination zip archive")
	processCmd.Flags().StringVar(&processDir, "dir", "", "write loose files to this folder instead of an archive")
	processFlags = addRunFlags(processCmd)

	rootCmd.AddCommand(processCmd)
}

