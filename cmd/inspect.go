package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rehash/internal/inspect"
	"rehash/internal/tui"
	"rehash/internal/upload"
)

var inspectWorkers int

var inspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Report digests, metadata and trailing bytes without modifying files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		files, err := upload.Collect(ctx, args[0], upload.Options{})
		if err != nil {
			return err
		}
		reports, err := inspect.All(ctx, files, inspectWorkers)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, rep := range reports {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, inspectFileStyle.Render(rep.Name))
			line := func(label, value string) {
				fmt.Fprintf(out, "  %s %s\n", inspectBulletStyle.Render("-"), inspectCategoryStyle.Render(label+":")+" "+inspectValueStyle.Render(value))
			}

			line("type", rep.Kind.String())
			line("size", humanize.IBytes(uint64(rep.Size)))
			if rep.Width > 0 {
				line("dimensions", fmt.Sprintf("%dx%d", rep.Width, rep.Height))
			}
			line("sha256", rep.SHA256)
			if rep.Exif.Tags > 0 {
				line("exif tags", fmt.Sprintf("%d", rep.Exif.Tags))
			}
			if rep.Exif.CameraModel != "" {
				line("camera", rep.Exif.CameraModel)
			}
			if rep.Exif.Timestamp != "" {
				line("taken", rep.Exif.Timestamp)
			}
			if rep.Exif.GPSTags > 0 {
				line("gps tags", fmt.Sprintf("%d", rep.Exif.GPSTags))
			}
			for _, key := range rep.TextKeys {
				line("png text", key)
			}
			if len(rep.Trailer) > 0 {
				line("trailer", fmt.Sprintf("%q (%d bytes)", printable(rep.Trailer, 48), len(rep.Trailer)))
			}
			if rep.Err != nil {
				fmt.Fprintf(out, "  %s %s\n", inspectBulletStyle.Render("-"), inspectDimStyle.Render(rep.Err.Error()))
			}
		}
		return nil
	},
}

func printable(b []byte, limit int) string {
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

var (
	inspectFileStyle     = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	inspectCategoryStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	inspectValueStyle    = lipgloss.NewStyle().Foreground(tui.ColorInk)
	inspectDimStyle      = lipgloss.NewStyle().Foreground(tui.ColorDim)
	inspectBulletStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	inspectCmd.Flags().IntVarP(&inspectWorkers, "workers", "w", 0, "parallel workers (0 = number of CPUs)")

	rootCmd.AddCommand(inspectCmd)
}
