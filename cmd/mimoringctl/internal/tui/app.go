// Package tui provides a live terminal dashboard for watching a mimoring
// buffer's statistics, grounded on the teacher pack's bubbletea/lipgloss
// log-monitor dashboard (Geun-Oh-lx/internal/tui/app.go): a title bar, a
// pair of bubbles/progress gauges for write rate and slot occupancy, a
// scrolling rate sparkline, and a periodically-ticking stats footer.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mimoring/mimoring/internal/stats"
)

// maxDisplayRateHz scales the write-rate gauge: a buffer sustaining this
// many events/s or more shows a full bar.
const maxDisplayRateHz = 200.0

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(1).
			PaddingRight(1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#353533"))

	flushStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6600")).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// TickMsg triggers a stats poll.
type TickMsg time.Time

// StatsFunc polls the watched buffer's current statistics.
type StatsFunc func() stats.Record

// Model is the bubbletea model for mimoringctl's live stats dashboard.
type Model struct {
	name      string
	pollStats StatsFunc
	interval  time.Duration

	history   []stats.Record
	maxPoints int

	rateGauge progress.Model
	slotGauge progress.Model

	width, height int
}

// NewModel creates a dashboard model polling pollStats every interval.
func NewModel(name string, pollStats StatsFunc, interval time.Duration) Model {
	return Model{
		name:      name,
		pollStats: pollStats,
		interval:  interval,
		maxPoints: 40,
		rateGauge: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		slotGauge: progress.New(progress.WithSolidFill("#44AAFF"), progress.WithWidth(30)),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), tea.WindowSize())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case TickMsg:
		rec := m.pollStats()
		m.history = append(m.history, rec)
		if len(m.history) > m.maxPoints {
			m.history = m.history[len(m.history)-m.maxPoints:]
		}
		return m, m.tickCmd()
	}
	return m, nil
}

func (m Model) View() string {
	if len(m.history) == 0 {
		return "waiting for first sample...\n"
	}
	cur := m.history[len(m.history)-1]

	var sb strings.Builder

	title := titleStyle.Render(fmt.Sprintf(" mimoring — %s ", m.name))
	status := "RUNNING"
	if cur.Paused {
		status = "PAUSED"
	}
	if cur.FlushReceived {
		status = "FLUSHED"
	}
	statusText := statusBarStyle.Render(fmt.Sprintf(" %s  %d events ", status, cur.EventCount))
	sb.WriteString(title)
	sb.WriteString(statusText)
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf(" rate:       %8.1f events/s\n", cur.RateHz))
	sb.WriteString(fmt.Sprintf(" filled:     %8d slots\n", cur.FilledCount))
	sb.WriteString(fmt.Sprintf(" empty:      %8d slots\n", cur.EmptyCount))
	sb.WriteString(fmt.Sprintf(" overwrites: %8d\n", cur.OverwriteCount))
	sb.WriteString(fmt.Sprintf(" deadtime:   %8.4f s/event\n", cur.AverageDeadtimeS))
	if cur.PausedCount > 0 {
		sb.WriteString(pausedStyle.Render(fmt.Sprintf(" discarded while paused: %d\n", cur.PausedCount)))
	}
	if cur.FlushReceived {
		sb.WriteString(flushStyle.Render(" flush sentinel observed\n"))
	}

	sb.WriteString("\n")
	rateRatio := cur.RateHz / maxDisplayRateHz
	if rateRatio > 1 {
		rateRatio = 1
	}
	sb.WriteString(" rate   " + m.rateGauge.ViewAs(rateRatio) + "\n")

	slotTotal := cur.FilledCount + cur.EmptyCount
	var slotRatio float64
	if slotTotal > 0 {
		slotRatio = float64(cur.FilledCount) / float64(slotTotal)
	}
	sb.WriteString(" filled " + m.slotGauge.ViewAs(slotRatio) + "\n")

	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(m.renderRateHistory()))
	sb.WriteString("\n\n")
	sb.WriteString(helpStyle.Render(" [q] quit"))

	return sb.String()
}

func (m Model) renderRateHistory() string {
	const width = 40
	bars := make([]rune, 0, width)
	maxRate := 1.0
	for _, rec := range m.history {
		if rec.RateHz > maxRate {
			maxRate = rec.RateHz
		}
	}
	ramp := []rune(" .:-=+*#%@")
	for _, rec := range m.history {
		level := int(rec.RateHz / maxRate * float64(len(ramp)-1))
		if level < 0 {
			level = 0
		}
		if level >= len(ramp) {
			level = len(ramp) - 1
		}
		bars = append(bars, ramp[level])
	}
	return string(bars)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
