// Package format reads and writes board and card files as markdown with a
// YAML front matter block:
//
//	---
//	id: 6f1c...
//	title: Ship it
//	labels: [bug]
//	created: 2026-01-10T07:36:29Z
//	---
//
//	Card body in markdown.
//
// board.md uses the same shape; its body is the template for new cards.
package format

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/mdboard/internal/model"
)

const delimiter = "---"

// ErrParse is wrapped by every decoding failure.
var ErrParse = errors.New("parse error")

type cardFrontMatter struct {
	ID      string    `yaml:"id,omitempty"`
	Title   string    `yaml:"title"`
	Labels  []string  `yaml:"labels,omitempty,flow"`
	Created time.Time `yaml:"created"`
	Order   int       `yaml:"order,omitempty"`
}

type columnEntry struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type labelEntry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Color string `yaml:"color,omitempty"`
}

type boardFrontMatter struct {
	Title   string        `yaml:"title"`
	Columns []columnEntry `yaml:"columns"`
	Labels  []labelEntry  `yaml:"labels,omitempty"`
}

// Markdown is the front-matter codec. The zero value is ready to use.
type Markdown struct{}

// ParseCard decodes a card file. A file without front matter is accepted as
// a bare body; the caller fills in the title from the filename.
func (Markdown) ParseCard(data []byte) (*model.Card, error) {
	fm, body, hasFM, err := splitFrontMatter(data)
	if err != nil {
		return nil, err
	}
	if !hasFM {
		return &model.Card{Body: body}, nil
	}

	var meta cardFrontMatter
	if err := yaml.Unmarshal(fm, &meta); err != nil {
		return nil, fmt.Errorf("%w: card front matter: %v", ErrParse, err)
	}

	return &model.Card{
		ID:        meta.ID,
		Title:     meta.Title,
		Body:      body,
		Labels:    meta.Labels,
		CreatedAt: meta.Created,
		Order:     meta.Order,
	}, nil
}

// SerializeCard encodes a card. The column is implied by the file location
// and is not written.
func (Markdown) SerializeCard(c *model.Card) ([]byte, error) {
	meta := cardFrontMatter{
		ID:      c.ID,
		Title:   c.Title,
		Labels:  c.Labels,
		Created: c.CreatedAt.UTC(),
		Order:   c.Order,
	}
	return joinFrontMatter(meta, c.Body)
}

// ParseBoard decodes board.md and validates the board invariants.
func (Markdown) ParseBoard(data []byte) (*model.Board, error) {
	fm, body, hasFM, err := splitFrontMatter(data)
	if err != nil {
		return nil, err
	}
	if !hasFM {
		return nil, fmt.Errorf("%w: board file has no front matter", ErrParse)
	}

	var meta boardFrontMatter
	if err := yaml.Unmarshal(fm, &meta); err != nil {
		return nil, fmt.Errorf("%w: board front matter: %v", ErrParse, err)
	}

	b := &model.Board{Title: meta.Title, CardTemplate: body}
	for _, c := range meta.Columns {
		b.Columns = append(b.Columns, model.Column{ID: c.ID, Name: c.Name})
	}
	for _, l := range meta.Labels {
		b.Labels = append(b.Labels, model.Label{ID: l.ID, Name: l.Name, Color: l.Color})
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return b, nil
}

// SerializeBoard encodes board.md.
func (Markdown) SerializeBoard(b *model.Board) ([]byte, error) {
	meta := boardFrontMatter{Title: b.Title}
	for _, c := range b.Columns {
		meta.Columns = append(meta.Columns, columnEntry{ID: c.ID, Name: c.Name})
	}
	for _, l := range b.Labels {
		meta.Labels = append(meta.Labels, labelEntry{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	return joinFrontMatter(meta, b.CardTemplate)
}

func joinFrontMatter(meta any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}

	buf.WriteString(delimiter + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// splitFrontMatter separates the YAML block from the body. The single blank
// line written after the closing delimiter is not part of the body.
func splitFrontMatter(data []byte) (fm []byte, body string, ok bool, err error) {
	s := strings.TrimPrefix(string(data), "\ufeff")

	first, rest, found := strings.Cut(s, "\n")
	if !found || strings.TrimRight(first, "\r") != delimiter {
		return nil, s, false, nil
	}

	var block strings.Builder
	for {
		line, next, more := strings.Cut(rest, "\n")
		if strings.TrimRight(line, "\r") == delimiter {
			if !more {
				next = ""
			}
			if strings.HasPrefix(next, "\r\n") {
				next = next[2:]
			} else {
				next = strings.TrimPrefix(next, "\n")
			}
			return []byte(block.String()), next, true, nil
		}
		if !more {
			return nil, "", false, fmt.Errorf("%w: unterminated front matter", ErrParse)
		}
		block.WriteString(line)
		block.WriteByte('\n')
		rest = next
	}
}
