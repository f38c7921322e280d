package model

import (
	"strings"
	"testing"
	"time"
)

func TestBoard_Validate(t *testing.T) {
	tests := []struct {
		name    string
		board   Board
		wantErr bool
		errMsg  string
	}{
		{
			name:  "default board",
			board: *DefaultBoard("Test"),
		},
		{
			name:    "no columns",
			board:   Board{Title: "Empty"},
			wantErr: true,
			errMsg:  "at least one column",
		},
		{
			name: "duplicate column",
			board: Board{Columns: []Column{
				{ID: "todo", Name: "To Do"},
				{ID: "todo", Name: "Again"},
			}},
			wantErr: true,
			errMsg:  "duplicate column id",
		},
		{
			name:    "path-unsafe column",
			board:   Board{Columns: []Column{{ID: "../etc", Name: "Bad"}}},
			wantErr: true,
			errMsg:  "invalid column id",
		},
		{
			name: "duplicate label",
			board: Board{
				Columns: []Column{{ID: "todo"}},
				Labels:  []Label{{ID: "bug"}, {ID: "bug"}},
			},
			wantErr: true,
			errMsg:  "duplicate label id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.board.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want to contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestValidColumnID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"todo", true},
		{"in-progress", true},
		{"col_2", true},
		{"", false},
		{"Todo", false},
		{"a/b", false},
		{"..", false},
		{"-lead", false},
	}

	for _, tt := range tests {
		if got := ValidColumnID(tt.id); got != tt.want {
			t.Errorf("ValidColumnID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestBoard_CloneIsDeep(t *testing.T) {
	b := DefaultBoard("Original")
	b.Labels = []Label{{ID: "bug", Name: "Bug", Color: "red"}}

	c := b.Clone()
	c.Columns[0].Name = "Changed"
	c.Labels[0].Color = "blue"

	if b.Columns[0].Name == "Changed" {
		t.Error("Clone() shares column storage with the original")
	}
	if b.Labels[0].Color == "blue" {
		t.Error("Clone() shares label storage with the original")
	}
	if b.Equal(c) {
		t.Error("Equal() = true for boards with different content")
	}
}

func TestCard_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		card    Card
		wantErr bool
	}{
		{"valid", Card{ID: NewCardID(), Title: "Ship it", CreatedAt: now}, false},
		{"no id is allowed", Card{Title: "Legacy", CreatedAt: now}, false},
		{"missing title", Card{CreatedAt: now}, true},
		{"title too long", Card{Title: strings.Repeat("x", MaxTitleLength+1), CreatedAt: now}, true},
		{"bad id", Card{ID: "not-a-uuid", Title: "X", CreatedAt: now}, true},
		{"missing created", Card{Title: "X"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.card.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCard_CloneAndEqual(t *testing.T) {
	c := &Card{
		ID:        NewCardID(),
		Title:     "Ship it",
		Column:    "todo",
		Labels:    []string{"bug"},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	d := c.Clone()
	if !c.Equal(d) {
		t.Fatal("Equal() = false for a fresh clone")
	}

	d.Labels[0] = "feature"
	if c.Labels[0] != "bug" {
		t.Error("Clone() shares label storage with the original")
	}
	if c.Equal(d) {
		t.Error("Equal() = true after labels diverged")
	}
	if !c.HasLabel("bug") || c.HasLabel("feature") {
		t.Error("HasLabel() returned wrong result")
	}
}
