package main

import (
	"fmt"
	"strings"

	"finite-life/finitelife/services"
	"finite-life/finitelife/utils/weeks"

	"github.com/charmbracelet/lipgloss"
)

const (
	pastGlyph    = "■"
	currentGlyph = "◆"
	futureGlyph  = "□"
)

var (
	pastStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#c42912")).Bold(true)
	futureStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))

	headerStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#c42912"))
	upcomingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00a352"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555")).Strikethrough(true)
)

// renderGrid draws one glyph per week, one row per year
func renderGrid(grid services.LifeGrid, lifeExpectancyWeeks int) string {
	var b strings.Builder

	lived := max(grid.CurrentWeek-1, 0)
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(fmt.Sprintf("Week %d of %d", grid.CurrentWeek, lifeExpectancyWeeks)))
	fmt.Fprintf(&b, "%s\n\n", mutedStyle.Render(fmt.Sprintf("%d lived, %d remaining", lived, max(lifeExpectancyWeeks-lived, 0))))

	row := -1
	for _, cell := range grid.Cells {
		if cell.Row != row {
			if row >= 0 {
				b.WriteString("\n")
			}
			row = cell.Row
		}
		b.WriteString(cellGlyph(cell.State))
	}
	if row >= 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func cellGlyph(state weeks.State) string {
	switch state {
	case weeks.Past:
		return pastStyle.Render(pastGlyph)
	case weeks.Current:
		return currentStyle.Render(currentGlyph)
	default:
		return futureStyle.Render(futureGlyph)
	}
}

// renderTree prints the forest depth first with an explicit stack
func renderTree(roots []*services.TaskNode) string {
	if len(roots) == 0 {
		return mutedStyle.Render("No tasks yet") + "\n"
	}

	type frame struct {
		node  *services.TaskNode
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}

	var b strings.Builder
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b.WriteString(strings.Repeat("  ", top.depth))
		b.WriteString(taskLine(top.node))
		b.WriteString("\n")

		for i := len(top.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{top.node.Children[i], top.depth + 1})
		}
	}
	return b.String()
}

func taskLine(node *services.TaskNode) string {
	title := node.Title
	if node.Status == "completed" {
		title = doneStyle.Render(title)
	}

	line := fmt.Sprintf("%s %s", statusMarker(string(node.Status)), title)
	if node.EffectiveDeadline != nil && node.DaysRemaining != nil {
		when := fmt.Sprintf("%s (%s)", node.EffectiveDeadline.String(), node.RelativeTime)
		if *node.DaysRemaining < 0 {
			when = overdueStyle.Render(when)
		} else {
			when = upcomingStyle.Render(when)
		}
		line += "  " + when
	}
	if node.MinusOneCount > 0 {
		line += "  " + mutedStyle.Render(fmt.Sprintf("-%d", node.MinusOneCount))
	}
	return line
}

func statusMarker(status string) string {
	switch status {
	case "completed":
		return "[x]"
	case "in_progress":
		return "[~]"
	case "archived":
		return "[-]"
	default:
		return "[ ]"
	}
}
