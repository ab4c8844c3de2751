// Package tui is a bubbletea live dashboard for a running fuzzing campaign:
// bandit arm counts per size bucket, the rare-branch exponent and
// blacklist size, and per-stage execution counters. The dashboard model
// itself only renders a Snapshot; BuildSnapshot in adapter.go is the one
// place that reaches into the core packages to build one, the way the
// teacher's UI model is fed ServerLogs/ResourceData through channels and
// ticks rather than the view code polling the server directly.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// BucketState summarizes one bandit.Grid size bucket for display.
type BucketState struct {
	Label     string
	OpArms    int
	BatchArms int
}

// Snapshot is a point-in-time view of a fuzzing campaign's mutable state.
// BuildSnapshot builds one from fuzzone.Stats, bandit.Grid and
// rarebranch.Selector on every tick; the model and view code never touch
// those packages themselves.
type Snapshot struct {
	Executions    int
	StageFinds    int
	StageCycles   int
	QueueLen      int
	RareBranchExp int
	BlacklistSize int
	RarestEdges   int
	VanillaMode   bool
	ShadowMode    bool
	Buckets       []BucketState
	Elapsed       time.Duration
}

// SnapshotFunc produces the current Snapshot. Called from the bubbletea
// event loop on every poll tick, so it must not block.
type SnapshotFunc func() Snapshot

const pollInterval = 250 * time.Millisecond

type tickMsg time.Time

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFFF00")).
			Padding(0, 2).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4B5563")).
			Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

// Model is the bubbletea model for the dashboard.
type Model struct {
	snapshot SnapshotFunc
	current  Snapshot
	width    int
	height   int
	paused   bool
}

// New builds a Model that polls snap on a timer.
func New(snap SnapshotFunc) Model {
	return Model{snapshot: snap, width: 80, height: 24}
}

func (m Model) Init() tea.Cmd {
	return poll()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
		}
		return m, nil

	case tickMsg:
		if !m.paused {
			m.current = m.snapshot()
		}
		return m, poll()
	}
	return m, nil
}

func (m Model) View() string {
	status := "running"
	if m.paused {
		status = "paused"
	}
	header := headerStyle.Width(m.width).Render(fmt.Sprintf(" branchfuzz  [%s]  elapsed %s", status, m.current.Elapsed.Round(time.Second)))

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		panelStyle.Width(m.width/2-1).Render(m.renderCounters()),
		panelStyle.Width(m.width/2-1).Render(m.renderBuckets()),
	)

	footer := footerStyle.Width(m.width).Render("q quit  ·  p pause/resume")

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderCounters() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("stage counters") + "\n")
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("executions:"), valueStyle.Render(fmt.Sprint(m.current.Executions)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("stage finds:"), valueStyle.Render(fmt.Sprint(m.current.StageFinds)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("stage cycles:"), valueStyle.Render(fmt.Sprint(m.current.StageCycles)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("queue len:"), valueStyle.Render(fmt.Sprint(m.current.QueueLen)))
	b.WriteString("\n" + labelStyle.Render("rare branch") + "\n")
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("exponent:"), valueStyle.Render(fmt.Sprint(m.current.RareBranchExp)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("blacklist:"), valueStyle.Render(fmt.Sprint(m.current.BlacklistSize)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("rarest edges:"), valueStyle.Render(fmt.Sprint(m.current.RarestEdges)))
	if m.current.VanillaMode {
		b.WriteString(warnStyle.Render("vanilla mode") + "\n")
	}
	if m.current.ShadowMode {
		b.WriteString(warnStyle.Render("shadow mode") + "\n")
	}
	return ansi.Truncate(b.String(), m.width/2-4, "")
}

func (m Model) renderBuckets() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("bandit grid") + "\n")
	if len(m.current.Buckets) == 0 {
		b.WriteString(labelStyle.Render("(no buckets yet)") + "\n")
		return b.String()
	}
	for _, bucket := range m.current.Buckets {
		fmt.Fprintf(&b, "%-10s op arms=%-3s  batch arms=%-3s\n",
			bucket.Label,
			valueStyle.Render(fmt.Sprint(bucket.OpArms)),
			valueStyle.Render(fmt.Sprint(bucket.BatchArms)),
		)
	}
	return b.String()
}
