package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgstat-tools/tgstat-cli/internal/models"
	"github.com/tgstat-tools/tgstat-cli/internal/session"
)

// resultsPerPage is the backend's per-page result cap, used to estimate
// a completion ratio from the progress count and the page bound.
const resultsPerPage = 10

type Model struct {
	snapshot   session.Snapshot
	exportPath string
	logs       []string
	spinner    spinner.Model
	progress   progress.Model
	width      int
	height     int
	quit       bool
	done       bool
	runErr     error
}

// SnapshotMsg carries the latest session snapshot into the TUI.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

type LogMessage struct {
	Message string
}

// DoneMsg signals that the run finished, successfully or not.
type DoneMsg struct {
	Err        error
	ExportPath string
}

func NewModel() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pr := progress.New(progress.WithDefaultGradient())

	return Model{
		snapshot: session.Snapshot{Phase: session.PhaseIdle},
		logs:     []string{},
		spinner:  sp,
		progress: pr,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.handleKeyMsg(msg) {
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 40

	case SnapshotMsg:
		m.snapshot = msg.Snapshot

	case LogMessage:
		m.logs = append(m.logs, fmt.Sprintf("[%s] %s",
			time.Now().Format("15:04:05"), msg.Message))
		if len(m.logs) > 10 {
			m.logs = m.logs[len(m.logs)-10:]
		}

	case DoneMsg:
		m.done = true
		m.runErr = msg.Err
		m.exportPath = msg.ExportPath

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "ctrl+c":
		return true
	}
	return false
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render("📡 TGStat Parsing Monitor"))
	s.WriteString("\n\n")

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	summary := fmt.Sprintf("Category: %s | Content: %s | Task: %s",
		valueOrDash(m.snapshot.Category),
		contentTypeList(m.snapshot.ContentTypes),
		valueOrDash(m.snapshot.TaskID))
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n\n")

	taskSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	var taskStatus strings.Builder
	taskStatus.WriteString("📊 Task Status\n")
	taskStatus.WriteString(strings.Repeat("─", 60) + "\n")

	statusLine := fmt.Sprintf("%s %s %-12s", phaseIcon(m.snapshot.Phase), m.spinner.View(), m.snapshot.Phase)

	if m.snapshot.Phase == session.PhasePolling {
		statusLine += fmt.Sprintf(" %s %d results", m.progress.ViewAs(m.estimateRatio()), m.snapshot.Progress)
	}

	if m.snapshot.ErrorMessage != "" {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		statusLine += " " + errorStyle.Render(fmt.Sprintf("Error: %s", m.snapshot.ErrorMessage))
	} else if m.snapshot.Phase == session.PhaseCompleted {
		okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
		statusLine += " " + okStyle.Render(fmt.Sprintf("%d results", len(m.snapshot.Results)))
		if m.exportPath != "" {
			statusLine += " " + okStyle.Render(fmt.Sprintf("→ %s", m.exportPath))
		}
	}

	phaseStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(phaseColor(m.snapshot.Phase)))
	taskStatus.WriteString(phaseStyle.Render(statusLine) + "\n")

	s.WriteString(taskSectionStyle.Render(taskStatus.String()))
	s.WriteString("\n\n")

	logSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2).
		Height(8)

	var logSection strings.Builder
	logSection.WriteString("📝 Recent Logs\n")
	for _, log := range m.logs {
		logSection.WriteString(log + "\n")
	}

	s.WriteString(logSectionStyle.Render(logSection.String()))
	s.WriteString("\n\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	footer := "Press 'q' to quit | Logs: logs/tgstat-cli_*.log"
	if m.done {
		footer = "Run finished. Press 'q' to quit."
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

// estimateRatio approximates completion from the result count and the
// informational page bound.
func (m Model) estimateRatio() float64 {
	expected := m.snapshot.TotalPages * resultsPerPage
	if expected <= 0 {
		return 0
	}

	ratio := float64(m.snapshot.Progress) / float64(expected)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

func phaseIcon(phase session.Phase) string {
	switch phase {
	case session.PhaseIdle:
		return "⏸"
	case session.PhaseSubmitting:
		return "📤"
	case session.PhasePolling:
		return "🔄"
	case session.PhaseCompleted:
		return "✅"
	case session.PhaseFailed:
		return "❌"
	default:
		return "❓"
	}
}

func phaseColor(phase session.Phase) string {
	switch phase {
	case session.PhaseIdle:
		return "244"
	case session.PhaseCompleted:
		return "82"
	case session.PhaseFailed:
		return "196"
	default:
		return "39"
	}
}

func valueOrDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func contentTypeList(contentTypes []models.ContentType) string {
	if len(contentTypes) == 0 {
		return "—"
	}

	parts := make([]string, len(contentTypes))
	for i, ct := range contentTypes {
		parts[i] = string(ct)
	}
	return strings.Join(parts, ",")
}
