// Package render draws a week snapshot as a terminal agenda.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"weekplan/internal/model"
)

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

// Event colours follow the planner palette: text colour per theme.
var blockColors = map[model.Color]lipgloss.TerminalColor{
	model.ColorBlue:   ac("#1f3b70", "#99bbff"),
	model.ColorYellow: ac("#7d6f00", "#ffe169"),
	model.ColorGreen:  ac("#226947", "#4bb991"),
	model.ColorRed:    ac("#8a2727", "#fa8080"),
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ac("#1f3b70", "#e5eaf6"))
	mutedStyle  = lipgloss.NewStyle().Foreground(ac("240", "245"))
	doneStyle   = lipgloss.NewStyle().Strikethrough(true).Foreground(ac("#babedc", "#606060"))
)

// DefaultColumnWidth fits seven columns in a 160-wide terminal.
const DefaultColumnWidth = 22

// Agenda renders one column per day: blocks as "HH:MM-HH:MM title" followed
// by the day's to-dos. Imported blocks are marked with a leading "*".
func Agenda(win model.Window, snap model.WeekSnapshot, columnWidth int) string {
	if columnWidth <= 0 {
		columnWidth = DefaultColumnWidth
	}
	col := lipgloss.NewStyle().Width(columnWidth).PaddingRight(1)

	cols := make([]string, 0, model.DaysPerWeek)
	for _, day := range snap.Days {
		cols = append(cols, col.Render(dayColumn(win, day)))
	}

	last := win.DayStart(model.Sunday)
	title := titleStyle.Render(fmt.Sprintf("Week of %s - %s", win.Start.Format("02 Jan 2006"), last.Format("02 Jan 2006")))
	return lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinHorizontal(lipgloss.Top, cols...))
}

func dayColumn(win model.Window, day model.DaySnapshot) string {
	lines := []string{headerStyle.Render(win.DayStart(day.Day).Format("Mon 02 Jan"))}

	if len(day.Blocks) == 0 && len(day.Todos) == 0 {
		lines = append(lines, mutedStyle.Render("-"))
	}
	for _, b := range day.Blocks {
		lines = append(lines, BlockLine(b))
	}
	if len(day.Todos) > 0 {
		lines = append(lines, "")
	}
	for _, t := range day.Todos {
		lines = append(lines, TodoLine(t))
	}
	return strings.Join(lines, "\n")
}

// BlockLine formats one block.
func BlockLine(b model.Block) string {
	mark := " "
	if b.Imported() {
		mark = "*"
	}
	text := fmt.Sprintf("%s%s-%s %s", mark, b.Start, b.End, b.Title)
	st := lipgloss.NewStyle()
	if c, ok := blockColors[b.Color]; ok {
		st = st.Foreground(c)
	}
	return st.Render(text)
}

// TodoLine formats one to-do with a checkbox.
func TodoLine(t model.ToDoItem) string {
	if t.Done {
		return doneStyle.Render("[x] " + t.Text)
	}
	return "[ ] " + t.Text
}
