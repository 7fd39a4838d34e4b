package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"rehash/internal/processor"
)

// Model renders batch progress while processor.Run feeds it updates. It
// quits once the updates channel is closed.
type Model struct {
	title     string
	updates   <-chan processor.ProgressUpdate
	started   time.Time
	width     int
	total     int
	processed int
	errors    int
	bytes     int64
	quitting  bool
}

type doneMsg struct{}

type updateMsg processor.ProgressUpdate

func NewModel(title string, updates <-chan processor.ProgressUpdate) Model {
	return Model{title: title, updates: updates, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.total += msg.TotalDelta
		m.processed += msg.ProcessedDelta
		m.errors += msg.ErrorDelta
		m.bytes += msg.BytesDelta
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = math.Min(1, float64(m.processed+m.errors)/float64(m.total))
	}

	elapsed := time.Since(m.started).Round(time.Millisecond)
	lines := []string{
		titleStyle.Render(m.title),
		labelStyle.Render(fmt.Sprintf("Images: %d/%d", m.processed+m.errors, m.total)) + dimStyle.Render(fmt.Sprintf("  errors:%d", m.errors)),
		labelStyle.Render("Encoded: " + humanize.IBytes(uint64(m.bytes))),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(renderBar(barWidth(m.width), ratio)),
	}
	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan processor.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func barWidth(termWidth int) int {
	if termWidth <= 0 {
		return 40
	}
	return max(20, min(60, termWidth-10))
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorSuccess)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
)
