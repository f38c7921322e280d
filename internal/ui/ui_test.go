package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mschirtzinger/mdboard/internal/model"
	"github.com/mschirtzinger/mdboard/internal/syncstatus"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestRenderBoard(t *testing.T) {
	board := model.DefaultBoard("Roadmap")
	board.Labels = []model.Label{{ID: "bug", Name: "Bug", Color: "#ff0000"}}
	cards := []*model.Card{
		{Title: "Fix login", Column: "doing", Labels: []string{"bug", "gone"}},
		{Title: "Write docs", Column: "todo"},
		{Title: "Lost card", Column: "someday"},
	}

	out := RenderBoard(board, cards, 120)

	for _, want := range []string{"Roadmap", "To Do", "Doing", "Done", "Fix login", "Write docs", "#Bug", "#gone", "Unknown column", "Lost card", "@someday", "empty"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderBoard() missing %q:\n%s", want, out)
		}
	}
}

func TestRenderBoard_NoOrphanColumn(t *testing.T) {
	out := RenderBoard(model.DefaultBoard("B"), nil, 0)
	if strings.Contains(out, "Unknown column") {
		t.Errorf("orphan column rendered without orphans:\n%s", out)
	}
}

func TestColumnWidth(t *testing.T) {
	tests := []struct {
		term, cols, want int
	}{
		{0, 3, 24},
		{40, 3, minColumnWidth},
		{300, 3, maxColumnWidth},
		{100, 4, 21},
		{80, 0, minColumnWidth},
	}
	for _, tt := range tests {
		if got := columnWidth(tt.term, tt.cols); got != tt.want {
			t.Errorf("columnWidth(%d, %d) = %d, want %d", tt.term, tt.cols, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("a very long card title", 8); got != "a very …" {
		t.Errorf("truncate() = %q", got)
	}
}

func TestRenderSyncState(t *testing.T) {
	for _, s := range []syncstatus.State{syncstatus.NotConfigured, syncstatus.Synced, syncstatus.Conflict, syncstatus.RemoteChanges} {
		if got := RenderSyncState(s); !strings.Contains(got, s.String()) {
			t.Errorf("RenderSyncState(%s) = %q", s, got)
		}
	}
}
