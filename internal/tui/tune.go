package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"rehash/internal/inspect"
	"rehash/internal/perturb"
	"rehash/internal/processor"
	"rehash/internal/session"
)

// TuneOptions wires the interactive model to a loaded session.
type TuneOptions struct {
	Session *session.Session
	Params  perturb.Params
	// Reload re-reads the upload source for a new batch.
	Reload func(ctx context.Context) ([]session.File, error)
	// Export packages artifacts and returns where they were written.
	Export func(artifacts []processor.Artifact) (string, error)
}

type slot struct {
	name     string
	artifact processor.Artifact
	err      error
}

// TuneModel is the live parameter editor. Every parameter change refreshes
// all slots in the background; results are tagged with the batch and a
// generation counter and dropped when either has moved on.
type TuneModel struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   TuneOptions

	params     perturb.Params
	cursor     int
	generation int
	pending    bool
	loading    bool
	slots      []slot
	warnings   []session.Warning
	status     string
	width      int
}

type refreshMsg struct {
	batch      string
	generation int
	results    []processor.Result
	err        error
}

type batchMsg struct {
	batch session.Batch
	err   error
}

type exportMsg struct {
	dest  string
	count int
	err   error
}

func NewTuneModel(opts TuneOptions) TuneModel {
	ctx, cancel := context.WithCancel(context.Background())
	m := TuneModel{ctx: ctx, cancel: cancel, opts: opts, params: opts.Params}
	m.resetSlots()
	return m
}

func (m TuneModel) Init() tea.Cmd {
	return m.refresh()
}

// Params returns the parameters as currently edited.
func (m TuneModel) Params() perturb.Params {
	return m.params
}

func (m TuneModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case refreshMsg:
		if msg.batch != m.opts.Session.BatchID() || msg.generation != m.generation {
			return m, nil
		}
		m.pending = false
		if msg.err != nil {
			m.status = "refresh: " + msg.err.Error()
		}
		for _, res := range msg.results {
			if res.Index < 0 || res.Index >= len(m.slots) {
				continue
			}
			if res.OK() {
				m.slots[res.Index].artifact = res.Artifact
				m.slots[res.Index].err = nil
			} else {
				// keep the previous artifact on screen
				m.slots[res.Index].err = res.Err
			}
		}
		return m, nil
	case batchMsg:
		if msg.err != nil {
			m.loading = false
			m.status = "reload: " + msg.err.Error()
			return m, nil
		}
		if err := m.opts.Session.Commit(msg.batch); err != nil {
			if errors.Is(err, session.ErrStaleBatch) {
				return m, nil
			}
			m.loading = false
			m.status = "reload: " + err.Error()
			return m, nil
		}
		m.loading = false
		m.warnings = msg.batch.Warnings
		m.resetSlots()
		m.status = fmt.Sprintf("loaded %d images", len(m.slots))
		m.generation++
		return m, m.refresh()
	case exportMsg:
		if msg.err != nil {
			m.status = "export: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("exported %d images to %s", msg.count, msg.dest)
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	}
	return m, nil
}

func (m TuneModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.cancel()
		return m, tea.Quit
	case "up", "k":
		m.cursor = (m.cursor + len(controls) - 1) % len(controls)
		return m, nil
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(controls)
		return m, nil
	case "left", "h":
		return m.adjust(-1)
	case "right", "l":
		return m.adjust(1)
	case "[":
		return m.adjust(-10)
	case "]":
		return m.adjust(10)
	case "enter", " ":
		return m.toggle()
	case "r":
		return m, m.reload()
	case "e":
		return m, m.export()
	}
	return m, nil
}

func (m TuneModel) adjust(steps int) (tea.Model, tea.Cmd) {
	next := controls[m.cursor].adjust(m.params, steps)
	if next == m.params {
		return m, nil
	}
	m.params = next
	m.generation++
	return m, m.refresh()
}

func (m TuneModel) toggle() (tea.Model, tea.Cmd) {
	c := controls[m.cursor]
	if c.toggle == nil {
		return m, nil
	}
	m.params = c.toggle(m.params)
	m.generation++
	return m, m.refresh()
}

func (m *TuneModel) resetSlots() {
	images := m.opts.Session.Images()
	m.slots = make([]slot, len(images))
	for i, img := range images {
		m.slots[i] = slot{name: img.Name}
	}
}

func (m *TuneModel) refresh() tea.Cmd {
	if m.opts.Session.State() == session.StateEmpty {
		return nil
	}
	m.pending = true
	run := m.opts.Session.RefreshFunc(m.params)
	batch, generation, ctx := m.opts.Session.BatchID(), m.generation, m.ctx
	return func() tea.Msg {
		results, err := run(ctx)
		return refreshMsg{batch: batch, generation: generation, results: results, err: err}
	}
}

func (m *TuneModel) reload() tea.Cmd {
	if m.opts.Reload == nil {
		return nil
	}
	m.loading = true
	m.status = "reloading"
	ticket := m.opts.Session.Begin()
	sess, load, ctx := m.opts.Session, m.opts.Reload, m.ctx
	return func() tea.Msg {
		files, err := load(ctx)
		if err != nil {
			return batchMsg{err: err}
		}
		batch, err := sess.Decode(ctx, ticket, files)
		return batchMsg{batch: batch, err: err}
	}
}

func (m *TuneModel) export() tea.Cmd {
	if m.opts.Export == nil {
		return nil
	}
	if m.opts.Session.State() == session.StateEmpty {
		m.status = "export: " + session.ErrNoImages.Error()
		return nil
	}
	m.status = "exporting"
	run := m.opts.Session.RefreshFunc(m.params)
	write, ctx := m.opts.Export, m.ctx
	return func() tea.Msg {
		results, err := run(ctx)
		if err != nil {
			return exportMsg{err: err}
		}
		artifacts := make([]processor.Artifact, 0, len(results))
		for _, res := range results {
			if res.OK() {
				artifacts = append(artifacts, res.Artifact)
			}
		}
		dest, err := write(artifacts)
		return exportMsg{dest: dest, count: len(artifacts), err: err}
	}
}

func (m TuneModel) View() string {
	var b strings.Builder

	state := m.opts.Session.State().String()
	if m.pending {
		state += ", refreshing"
	}
	if m.loading {
		state += ", reloading"
	}
	b.WriteString(titleStyle.Render("rehash") + dimStyle.Render("  "+state) + "\n\n")

	for i, c := range controls {
		cursor := "  "
		style := labelStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		b.WriteString(cursor + style.Render(padRight(c.label, 16)) + valueStyle.Render(c.value(m.params)) + "\n")
	}
	b.WriteString("\n")

	if len(m.slots) == 0 {
		b.WriteString(dimStyle.Render("no images loaded") + "\n")
	}
	for _, s := range m.slots {
		b.WriteString(renderSlot(s) + "\n")
	}
	for _, w := range m.warnings {
		b.WriteString(warnStyle.Render("skipped "+w.Name+": "+w.Err.Error()) + "\n")
	}

	if m.status != "" {
		b.WriteString("\n" + dimStyle.Render(m.status) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("↑/↓ select  ←/→ adjust  [/] ×10  r reload  e export  q quit"))
	return b.String()
}

func renderSlot(s slot) string {
	art := s.artifact
	line := padRight(s.name, 24)
	if len(art.Data) == 0 {
		line = labelStyle.Render(line) + dimStyle.Render("pending")
	} else {
		digest := inspect.Digest(art.Data)
		line = labelStyle.Render(line) + valueStyle.Render(fmt.Sprintf("%dx%d %s", art.Width, art.Height, humanize.IBytes(uint64(len(art.Data))))) +
			dimStyle.Render("  sha256:"+digest[:12])
	}
	if s.err != nil {
		line += "  " + warnStyle.Render(s.err.Error())
	}
	return line
}

type control struct {
	label  string
	value  func(perturb.Params) string
	adjust func(p perturb.Params, steps int) perturb.Params
	toggle func(p perturb.Params) perturb.Params
}

var controls = []control{
	{
		label: "Brightness",
		value: func(p perturb.Params) string { return fmt.Sprintf("%+.0f", p.Brightness) },
		adjust: func(p perturb.Params, steps int) perturb.Params {
			p.Brightness = clampFloat(p.Brightness+float64(steps), -perturb.MaxAdjustment, perturb.MaxAdjustment)
			return p
		},
	},
	{
		label: "Contrast",
		value: func(p perturb.Params) string { return fmt.Sprintf("%+.0f", p.Contrast) },
		adjust: func(p perturb.Params, steps int) perturb.Params {
			p.Contrast = clampFloat(p.Contrast+float64(steps), -perturb.MaxAdjustment, perturb.MaxAdjustment)
			return p
		},
	},
	{
		label: "Pixel shift",
		value: func(p perturb.Params) string { return fmt.Sprintf("%d", p.PixelShift) },
		adjust: func(p perturb.Params, steps int) perturb.Params {
			p.PixelShift = max(0, min(perturb.MaxPixelShift, p.PixelShift+steps))
			return p
		},
	},
	{
		label: "Noise",
		value: func(p perturb.Params) string { return fmt.Sprintf("%d", p.NoiseLevel) },
		adjust: func(p perturb.Params, steps int) perturb.Params {
			p.NoiseLevel = max(0, min(perturb.MaxNoiseLevel, p.NoiseLevel+steps))
			return p
		},
	},
	{
		label: "Watermark",
		value: func(p perturb.Params) string { return onOff(p.Watermark) },
		adjust: func(p perturb.Params, steps int) perturb.Params {
			p.Watermark = steps > 0
			return p
		},
		toggle: func(p perturb.Params) perturb.Params {
			p.Watermark = !p.Watermark
			return p
		},
	},
	{
		label: "Metadata",
		value: func(p perturb.Params) string { return onOff(p.ModifyMetadata) },
		adjust: func(p perturb.Params, steps int) perturb.Params {
			p.ModifyMetadata = steps > 0
			return p
		},
		toggle: func(p perturb.Params) perturb.Params {
			p.ModifyMetadata = !p.ModifyMetadata
			return p
		},
	},
	{
		label: "Profile",
		value: func(p perturb.Params) string {
			prof, _ := perturb.LookupProfile(p.Profile)
			return prof.Name
		},
		adjust: func(p perturb.Params, steps int) perturb.Params {
			names := perturb.ProfileNames()
			prof, _ := perturb.LookupProfile(p.Profile)
			i := slices.Index(names, prof.Name)
			n := len(names)
			p.Profile = names[((i+steps)%n+n)%n]
			return p
		},
	},
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

var (
	selectedStyle = lipgloss.NewStyle().Foreground(ColorAccentAlt).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(ColorWarn)
)
