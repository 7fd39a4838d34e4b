package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"rehash/internal/processor"
)

type SummaryRow struct {
	Label string
	Value string
}

// BatchSummaryRows describes a finished processor run.
func BatchSummaryRows(s processor.Summary) []SummaryRow {
	return []SummaryRow{
		{Label: "Images processed", Value: humanize.Comma(int64(s.Processed))},
		{Label: "Images failed", Value: humanize.Comma(int64(s.Errors))},
		{Label: "Bytes encoded", Value: humanize.IBytes(uint64(s.Bytes))},
	}
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, len(row.Label))
		valueWidth = max(valueWidth, len(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		lines = append(lines, fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value)))
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
