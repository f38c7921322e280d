package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestParseLines(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []string
	}{
		{
			name:     "empty input",
			input:    []byte(""),
			expected: nil,
		},
		{
			name:     "single line",
			input:    []byte("line1"),
			expected: []string{"line1"},
		},
		{
			name:     "lines with whitespace",
			input:    []byte("  line1  \n  line2  \n  line3  "),
			expected: []string{"line1", "line2", "line3"},
		},
		{
			name:     "empty lines filtered",
			input:    []byte("line1\n\nline2\n\n\nline3"),
			expected: []string{"line1", "line2", "line3"},
		},
		{
			name:     "trailing newline",
			input:    []byte("line1\nline2\n"),
			expected: []string{"line1", "line2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseLines(tt.input)

			if len(result) != len(tt.expected) {
				t.Errorf("Expected %d lines, got %d", len(tt.expected), len(result))
				return
			}

			for i, line := range result {
				if line != tt.expected[i] {
					t.Errorf("Line %d: expected '%s', got '%s'", i, tt.expected[i], line)
				}
			}
		})
	}
}

func TestRelativePath(t *testing.T) {
	tests := []struct {
		base, target, want string
	}{
		{"/repo", "/repo/board/cards/todo/a.md", "board/cards/todo/a.md"},
		{"/repo", "/repo", "."},
		{"/repo/board", "/repo/other", "../other"},
	}
	for _, tt := range tests {
		got, err := RelativePath(tt.base, tt.target)
		if err != nil {
			t.Errorf("RelativePath(%q, %q) failed: %v", tt.base, tt.target, err)
			continue
		}
		if got != tt.want {
			t.Errorf("RelativePath(%q, %q) = %q, want %q", tt.base, tt.target, got, tt.want)
		}
	}
}

func TestIsSubPath(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		target   string
		expected bool
	}{
		{"same directory", "/base", "/base", true},
		{"child directory", "/base", "/base/child", true},
		{"nested child", "/base", "/base/child/nested", true},
		{"dotted child name", "/base", "/base/..hidden", true},
		{"parent directory", "/base/child", "/base", false},
		{"sibling directory", "/base/dir1", "/base/dir2", false},
		{"completely different", "/base", "/other", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsSubPath(tt.base, tt.target)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestExecContext(t *testing.T) {
	ctx := context.Background()

	output, err := ExecContext(ctx, 5*time.Second, t.TempDir(), "echo", "test")
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	result := strings.TrimSpace(string(output))
	if result != "test" {
		t.Errorf("Expected 'test', got '%s'", result)
	}
}

func TestExecContextTimeout(t *testing.T) {
	ctx := context.Background()

	_, err := ExecContext(ctx, 100*time.Millisecond, t.TempDir(), "sleep", "2")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err   error
		fatal bool
	}{
		{nil, false},
		{ErrTimeout, false},
		{ErrConflicts, false},
		{fmt.Errorf("open: %w", ErrNotInVCS), true},
		{ErrVCSNotAvailable, true},
		{ErrNotSupported, true},
		{errors.New("other"), false},
	}
	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.fatal {
			t.Errorf("IsFatal(%v) = %v", tt.err, got)
		}
	}
}

func TestParseSide(t *testing.T) {
	for _, s := range []string{"local", "remote"} {
		if got, err := ParseSide(s); err != nil || string(got) != s {
			t.Errorf("ParseSide(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseSide("mine"); !errors.Is(err, ErrInvalidSide) {
		t.Errorf("ParseSide(mine) error = %v, want ErrInvalidSide", err)
	}
}
