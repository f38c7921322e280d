package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mschirtzinger/mdboard/internal/model"
)

const (
	minColumnWidth = 18
	maxColumnWidth = 36
)

var (
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	orphanColumnStyle = columnStyle.BorderForeground(warnColor)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
)

// RenderBoard draws the columns side by side with their cards in order.
// Cards whose column is not on the board get a trailing column of their own
// so they are never hidden. width is the terminal width; 0 means unknown.
func RenderBoard(board *model.Board, cards []*model.Card, width int) string {
	byColumn := make(map[string][]*model.Card)
	var orphans []*model.Card
	for _, c := range cards {
		if board.HasColumn(c.Column) {
			byColumn[c.Column] = append(byColumn[c.Column], c)
		} else {
			orphans = append(orphans, c)
		}
	}

	n := len(board.Columns)
	if len(orphans) > 0 {
		n++
	}
	colWidth := columnWidth(width, n)

	boxes := make([]string, 0, n)
	for _, col := range board.Columns {
		header := fmt.Sprintf("%s %s", col.Name, RenderMuted(fmt.Sprintf("(%d)", len(byColumn[col.ID]))))
		boxes = append(boxes, renderColumn(columnStyle, colWidth, header, board, byColumn[col.ID], false))
	}
	if len(orphans) > 0 {
		boxes = append(boxes, renderColumn(orphanColumnStyle, colWidth, RenderWarn("Unknown column"), board, orphans, true))
	}

	title := headerStyle.Render(board.Title)
	return lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
}

func columnWidth(termWidth, columns int) int {
	if columns == 0 {
		return minColumnWidth
	}
	if termWidth <= 0 {
		return 24
	}
	// Border and padding take four cells per column.
	w := termWidth/columns - 4
	return max(minColumnWidth, min(maxColumnWidth, w))
}

func renderColumn(style lipgloss.Style, width int, header string, board *model.Board, cards []*model.Card, showColumn bool) string {
	lines := []string{headerStyle.Render(header), ""}
	if len(cards) == 0 {
		lines = append(lines, RenderMuted("empty"))
	}
	for _, c := range cards {
		title := truncate(c.Title, width-2)
		if showColumn {
			title += RenderMuted(" @" + c.Column)
		}
		lines = append(lines, "• "+title)
		if chips := renderLabels(board, c.Labels); chips != "" {
			lines = append(lines, "  "+chips)
		}
	}
	return style.Width(width).Render(strings.Join(lines, "\n"))
}

func renderLabels(board *model.Board, ids []string) string {
	chips := make([]string, 0, len(ids))
	for _, id := range ids {
		chips = append(chips, RenderLabel(board, id))
	}
	return strings.Join(chips, " ")
}

// RenderLabel renders a label reference in the label's color. References
// to labels no longer on the board are shown muted by ID.
func RenderLabel(board *model.Board, id string) string {
	label, ok := board.Label(id)
	if !ok {
		return RenderMuted("#" + id)
	}
	style := lipgloss.NewStyle().Bold(true)
	if label.Color != "" {
		style = style.Foreground(lipgloss.Color(label.Color))
	}
	return style.Render("#" + label.Name)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
