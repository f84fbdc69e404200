package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// problemEntry is one downloaded instance shown by the picker.
type problemEntry struct {
	Name       string
	Size       int64
	HasOptimum bool
}

// =============================================================================
// ProblemListModel - Interactive instance selection
// =============================================================================

// ProblemListModel is the bubbletea model for interactive instance selection.
// Typing filters the list by name.
type ProblemListModel struct {
	Problems []problemEntry
	Filter   string
	Cursor   int
	Offset   int
	Height   int
	Selected string

	visible []int
}

// NewProblemListModel creates a new problem list model.
func NewProblemListModel(problems []problemEntry) ProblemListModel {
	m := ProblemListModel{Problems: problems, Height: 15}
	m.applyFilter()
	return m
}

func (m *ProblemListModel) applyFilter() {
	m.visible = nil
	for i, p := range m.Problems {
		if strings.Contains(p.Name, m.Filter) {
			m.visible = append(m.visible, i)
		}
	}
	m.Cursor, m.Offset = 0, 0
}

func (m ProblemListModel) Init() tea.Cmd {
	return nil
}

func (m ProblemListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case tea.KeyDown:
			if m.Cursor < len(m.visible)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case tea.KeyEnter:
			if len(m.visible) > 0 {
				m.Selected = m.Problems[m.visible[m.Cursor]].Name
			}
			return m, tea.Quit
		case tea.KeyBackspace:
			if m.Filter != "" {
				m.Filter = m.Filter[:len(m.Filter)-1]
				m.applyFilter()
			}
		case tea.KeyRunes:
			m.Filter += string(msg.Runes)
			m.applyFilter()
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m ProblemListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Instance"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  type to filter  esc quit"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("filter: ") + StyleHighlight.Render(m.Filter))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.visible))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		p := m.Problems[m.visible[i]]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		optimum := ""
		if p.HasOptimum {
			optimum = iconSuccess
		}
		rows = append(rows, []string{cursor, p.Name, formatBytes(p.Size), optimum})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Instance", "Size", "Optimum").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
			}
			if col == 2 {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	if len(m.visible) == 0 {
		b.WriteString(listDimStyle.Render("  no match"))
	} else {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.visible))))
	}
	return b.String()
}

// runProblemPicker shows the picker and returns the chosen name, or "" when
// the user quit.
func runProblemPicker(problems []problemEntry) (string, error) {
	final, err := tea.NewProgram(NewProblemListModel(problems)).Run()
	if err != nil {
		return "", err
	}
	return final.(ProblemListModel).Selected, nil
}
