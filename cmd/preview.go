package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rehash/internal/display"
	"rehash/internal/inspect"
	"rehash/internal/tui"
	"rehash/internal/upload"
)

var (
	previewImages bool
	previewSize   int
	previewFlags  *runFlags
)

var previewCmd = &cobra.Command{
	Use:   "preview [flags] <path>",
	Short: "Process once and show each result without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := previewFlags.resolve(cmd)
		if err != nil {
			return err
		}

		sess, batch, err := loadSession(ctx, cfg, args[0], upload.Options{})
		if err != nil {
			return err
		}
		results, err := sess.Refresh(ctx, cfg.Params, nil)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var displayer *display.Displayer
		if previewImages && display.IsTerminalSupported() {
			displayer = display.New(out, previewSize)
		}

		for _, w := range batch.Warnings {
			fmt.Fprintf(out, "%s %s\n", previewWarnStyle.Render("skipped"), previewDimStyle.Render(w.Err.Error()))
		}
		for i, res := range results {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, previewNameStyle.Render(res.Name))
			if !res.OK() {
				fmt.Fprintf(out, "  %s\n", previewWarnStyle.Render(res.Err.Error()))
				continue
			}

			art := res.Artifact
			fmt.Fprintf(out, "  %s %s\n", previewLabelStyle.Render("output: "), art.Name)
			fmt.Fprintf(out, "  %s %dx%d, %s\n", previewLabelStyle.Render("size:   "), art.Width, art.Height, humanize.IBytes(uint64(len(art.Data))))
			fmt.Fprintf(out, "  %s %s\n", previewLabelStyle.Render("sha256: "), inspect.Digest(art.Data))
			if art.Comment != "" {
				fmt.Fprintf(out, "  %s %s\n", previewLabelStyle.Render("comment:"), art.Comment)
			}
			if displayer != nil {
				if err := displayer.Display(art); err != nil {
					fmt.Fprintf(out, "  %s\n", previewWarnStyle.Render(err.Error()))
				}
			}
		}
		return nil
	},
}

var (
	previewNameStyle  = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	previewLabelStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	previewDimStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
	previewWarnStyle  = lipgloss.NewStyle().Foreground(tui.ColorWarn)
)

func init() {
	previewCmd.Flags().BoolVar(&previewImages, "images", true, "show thumbnails on kitty-compatible terminals")
	previewCmd.Flags().IntVar(&previewSize, "thumb-size", display.DefaultMaxSide, "longest thumbnail edge in pixels")
	previewFlags = addRunFlags(previewCmd)

	rootCmd.AddCommand(previewCmd)
}
