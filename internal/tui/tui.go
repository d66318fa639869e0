// Package tui implements the Bubble Tea browser for a persisted run.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sprite-ai/reqevo/internal/model"
)

// Model is the top-level Bubble Tea model for browsing change records.
type Model struct {
	run *model.RunState

	// UI state
	width  int
	height int

	// Record list
	recordIndex int

	// Diff viewport
	scrollOffset int
	viewHeight   int

	// Rendered lines for the current record
	lines []renderedLine

	splitView bool
	showHelp  bool
}

// New creates a TUI model over the records of a run.
func New(st *model.RunState) Model {
	if st == nil {
		st = &model.RunState{}
	}
	m := Model{run: st}
	m.updateLines()
	return m
}

func (m *Model) updateLines() {
	if len(m.run.Records) == 0 {
		m.lines = nil
		return
	}
	m.lines = renderRecord(m.run.Records[m.recordIndex])
}

func (m *Model) selectRecord(i int) {
	if i < 0 || i >= len(m.run.Records) || i == m.recordIndex {
		return
	}
	m.recordIndex = i
	m.scrollOffset = 0
	m.updateLines()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewHeight = m.height - 4 // status bar + borders
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Down):
			if m.scrollOffset < len(m.lines)-1 {
				m.scrollOffset++
			}

		case key.Matches(msg, keys.Up):
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}

		case key.Matches(msg, keys.Next):
			m.selectRecord(m.recordIndex + 1)

		case key.Matches(msg, keys.Prev):
			m.selectRecord(m.recordIndex - 1)

		case key.Matches(msg, keys.NextIssue):
			m.jumpToIssue(1)

		case key.Matches(msg, keys.PrevIssue):
			m.jumpToIssue(-1)

		case key.Matches(msg, keys.Toggle):
			m.splitView = !m.splitView

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}
	}

	return m, nil
}

// jumpToIssue moves to the nearest record in direction step that is not classified.
func (m *Model) jumpToIssue(step int) {
	for i := m.recordIndex + step; i >= 0 && i < len(m.run.Records); i += step {
		if m.run.Records[i].Classification.Status != model.StatusClassified {
			m.selectRecord(i)
			return
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	listWidth := m.listWidth()
	diffWidth := m.width - listWidth - 1

	list := m.renderRecordList(listWidth, m.height-2)
	diffView := m.renderDiffView(diffWidth, m.height-2)

	main := lipgloss.JoinHorizontal(lipgloss.Top, list, " ", diffView)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) listWidth() int {
	maxLen := 20
	for _, r := range m.run.Records {
		if n := len(listLabel(r)); n > maxLen {
			maxLen = n
		}
	}
	w := maxLen + 4
	if w > m.width/3 {
		w = m.width / 3
	}
	if w < 20 {
		w = 20
	}
	return w
}

func listLabel(r model.ChangeRecord) string {
	label := "pending"
	switch r.Classification.Status {
	case model.StatusClassified:
		label = r.Classification.Reason.Label()
	case model.StatusError:
		label = "error"
	}
	return fmt.Sprintf("#%d v%d→v%d %s", r.DiffID, r.OldVersionID, r.NewVersionID, label)
}

func (m Model) renderRecordList(width, height int) string {
	var b strings.Builder

	for i, r := range m.run.Records {
		var style lipgloss.Style
		switch {
		case i == m.recordIndex:
			style = itemSelectedStyle
		case r.Classification.Status == model.StatusError:
			style = itemErrorStyle
		case r.Classification.Status == model.StatusPending:
			style = itemPendingStyle
		default:
			style = itemClassifiedStyle
		}

		b.WriteString(style.Width(width - 4).Render(truncate(listLabel(r), width-4)))
		if i < len(m.run.Records)-1 {
			b.WriteByte('\n')
		}
	}

	return listStyle.Width(width).Height(height - 2).Render(b.String())
}

func (m Model) renderDiffView(width, height int) string {
	innerHeight := height - 2
	if len(m.run.Records) == 0 {
		return diffViewStyle.Width(width).Height(innerHeight).Render("No changes between versions.")
	}

	r := m.run.Records[m.recordIndex]
	innerWidth := width - 4

	var b strings.Builder
	b.WriteString(recordHeaderStyle.Render(m.recordHeader(r)))
	b.WriteByte('\n')
	used := 1

	if r.Classification.Status == model.StatusClassified {
		b.WriteString(reasonStyle.Render(r.Classification.Reason.Label()))
		b.WriteByte('\n')
		used++
	}
	if exp := strings.TrimSpace(r.Classification.Explanation); exp != "" {
		rendered := explanationStyle.Width(innerWidth).Render(exp)
		b.WriteString(rendered)
		b.WriteByte('\n')
		used += lipgloss.Height(rendered)
	}

	visibleLines := innerHeight - used
	if visibleLines < 1 {
		visibleLines = 1
	}

	if m.splitView {
		m.renderSplitDiff(&b, innerWidth, visibleLines)
	} else {
		m.renderUnifiedDiff(&b, innerWidth, visibleLines)
	}

	return diffViewStyle.Width(width).Height(innerHeight).Render(b.String())
}

func (m Model) recordHeader(r model.ChangeRecord) string {
	side := func(id int, commit, date string) string {
		s := fmt.Sprintf("v%d", id)
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if commit != "" {
			s += " " + commit
		}
		if date != "" {
			s += " (" + date + ")"
		}
		return s
	}
	return fmt.Sprintf("Change #%d  %s → %s", r.DiffID,
		side(r.OldVersionID, r.OldCommit, r.OldDate),
		side(r.NewVersionID, r.NewCommit, r.NewDate))
}

func (m Model) visibleRange(visibleLines int) (start, end int) {
	end = m.scrollOffset + visibleLines
	if end > len(m.lines) {
		end = len(m.lines)
	}
	return m.scrollOffset, end
}

func (m Model) renderUnifiedDiff(b *strings.Builder, width, visibleLines int) {
	start, end := m.visibleRange(visibleLines)
	for i := start; i < end; i++ {
		b.WriteString(styleLine(m.lines[i], width))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
}

func (m Model) renderSplitDiff(b *strings.Builder, width, visibleLines int) {
	halfWidth := (width - 3) / 2

	start, end := m.visibleRange(visibleLines)
	for i := start; i < end; i++ {
		left, right := styleLineSplit(m.lines[i], halfWidth)
		b.WriteString(left)
		b.WriteString(" │ ")
		b.WriteString(right)
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
}

func (m Model) renderStatusBar() string {
	pending, classified, failed := model.Tally(m.run.Records)

	left := fmt.Sprintf(" %s", m.domain())
	if n := len(m.run.Records); n > 0 {
		left += fmt.Sprintf("  Change %d/%d", m.recordIndex+1, n)
	}
	if m.run.Finalized {
		left += "  final"
	}

	mode := "unified"
	if m.splitView {
		mode = "split"
	}

	right := fmt.Sprintf("%d classified %d pending %d errors  %s  ? help ", classified, pending, failed, mode)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) domain() string {
	if m.run.Domain == "" {
		return "Unknown Domain"
	}
	return m.run.Domain
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(recordHeaderStyle.Render("reqevo: Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, binding := range []key.Binding{
		keys.Up, keys.Down, keys.Next, keys.Prev,
		keys.NextIssue, keys.PrevIssue, keys.Toggle, keys.Help, keys.Quit,
	} {
		h := binding.Help()
		b.WriteString(fmt.Sprintf("  %s  %s\n", helpKeyStyle.Width(12).Render(h.Key), h.Desc))
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))

	return b.String()
}

// Run starts the browser for a run.
func Run(st *model.RunState) error {
	p := tea.NewProgram(New(st), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
