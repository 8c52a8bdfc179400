// Package dashboard renders controller status in a terminal using bubbletea.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"worldclear/internal/controller"
	"worldclear/internal/monitor"
)

// Controller is what the dashboard reads and drives.
type Controller interface {
	Status() controller.Status
	Scopes(ctx context.Context) ([]controller.ScopeReport, error)
	Clear(ctx context.Context, kind, scope string) (int, error)
}

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

type tickMsg time.Time

type refreshMsg struct {
	status controller.Status
	scopes []controller.ScopeReport
	err    error
}

// noticeMsg carries a broadcast or command result for the notice pane.
type noticeMsg struct {
	at   time.Time
	line string
}

const (
	maxNotices     = 200
	requestTimeout = 5 * time.Second
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	bandColors = map[monitor.Band]lipgloss.Color{
		monitor.Green:  lipgloss.Color("42"),
		monitor.Yellow: lipgloss.Color("226"),
		monitor.Orange: lipgloss.Color("208"),
		monitor.Red:    lipgloss.Color("196"),
	}
)

type model struct {
	ctrl     Controller
	interval time.Duration
	printer  *message.Printer
	now      func() time.Time

	status  controller.Status
	scopes  []controller.ScopeReport
	err     error
	table   table.Model
	vp      viewport.Model
	notices []string
	wrap    bool
	width   int
	height  int
}

func newModel(ctrl Controller, interval time.Duration) model {
	if interval <= 0 {
		interval = time.Second
	}
	cols := []table.Column{
		{Title: "Scope", Width: 14},
		{Title: "On", Width: 4},
		{Title: "Total", Width: 8},
		{Title: "Items", Width: 8},
		{Title: "Monsters", Width: 9},
		{Title: "Animals", Width: 8},
		{Title: "Partitions", Width: 10},
		{Title: "Overloaded", Width: 10},
	}
	return model{
		ctrl:     ctrl,
		interval: interval,
		printer:  message.NewPrinter(language.English),
		now:      time.Now,
		table:    table.New(table.WithColumns(cols), table.WithHeight(4)),
		vp:       viewport.New(0, 0),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) refresh() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		scopes, err := ctrl.Scopes(ctx)
		return refreshMsg{status: ctrl.Status(), scopes: scopes, err: err}
	}
}

func (m model) clear(kind string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		n, err := ctrl.Clear(ctx, kind, "")
		if err != nil {
			return noticeMsg{at: time.Now(), line: fmt.Sprintf("clear %s failed: %v", kind, err)}
		}
		return noticeMsg{at: time.Now(), line: fmt.Sprintf("clear %s removed %d entities", kind, n)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.resize()
		m.refreshNotices()
	case tickMsg:
		return m, tea.Batch(m.refresh(), m.tick())
	case refreshMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.scopes = msg.scopes
			m.table.SetRows(m.rows())
			m.resize()
		}
	case noticeMsg:
		m.notices = append(m.notices, fmt.Sprintf("[%s] %s", msg.at.Format(time.TimeOnly), msg.line))
		if len(m.notices) > maxNotices {
			m.notices = m.notices[len(m.notices)-maxNotices:]
		}
		m.refreshNotices()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshNotices()
		case "c":
			return m, m.clear("items")
		case "x":
			return m, m.clear("all")
		case "r":
			return m, m.refresh()
		default:
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.scopes))
	for _, sc := range m.scopes {
		on := "yes"
		if !sc.Enabled {
			on = "no"
		}
		rows = append(rows, table.Row{
			sc.Name,
			on,
			m.printer.Sprintf("%d", sc.Stats.Total),
			m.printer.Sprintf("%d", sc.Stats.Consumables),
			m.printer.Sprintf("%d", sc.Stats.Hostile),
			m.printer.Sprintf("%d", sc.Stats.Passive),
			m.printer.Sprintf("%d", sc.Stats.Partitions),
			fmt.Sprint(len(sc.Overloaded)),
		})
	}
	return rows
}

func (m *model) resize() {
	m.table.SetHeight(len(m.scopes) + 1)
	used := lipgloss.Height(m.header()) + lipgloss.Height(m.table.View()) + 3
	h := m.height - used
	if h < 3 {
		h = 3
	}
	m.vp.Height = h
}

func (m *model) refreshNotices() {
	lines := m.notices
	if m.wrap && m.vp.Width > 0 {
		lines = make([]string, len(m.notices))
		for i, l := range m.notices {
			lines[i] = wordwrap.String(l, m.vp.Width)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	m.vp.GotoBottom()
}

func (m model) header() string {
	st := m.status
	metric := lipgloss.NewStyle().Foreground(bandColors[st.Band]).Bold(true).
		Render(fmt.Sprintf("%.2f", st.CurrentMetric))
	last := "never"
	if !st.Tally.LastRunTime.IsZero() {
		last = humanize.RelTime(st.Tally.LastRunTime, m.now(), "ago", "from now")
	}
	lines := []string{
		titleStyle.Render("worldclear"),
		fmt.Sprintf("%s %s (avg %.2f, %s)", labelStyle.Render("Throughput:"), metric, st.AverageMetric, st.Severity),
		fmt.Sprintf("%s %s", labelStyle.Render("Memory:"), st.MemorySummary),
		m.printer.Sprintf("%s %d | %s %d", labelStyle.Render("Objects:"), st.LiveObjects, labelStyle.Render("Partitions:"), st.LoadedPartitions),
		fmt.Sprintf("%s %s (last sweep %s)", labelStyle.Render("Cleanup:"), st.CleanupSummary, last),
	}
	if m.err != nil {
		lines = append(lines, errorStyle.Render("refresh failed: "+m.err.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m model) View() string {
	footer := footerStyle.Render("q quit | c clear items | x emergency | r refresh | w wrap")
	return lipgloss.JoinVertical(lipgloss.Left, m.header(), m.table.View(), m.vp.View(), footer)
}
