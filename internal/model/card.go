package model

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// MaxTitleLength bounds card titles so derived filenames stay portable.
const MaxTitleLength = 200

// Card is the content of one cards/<column>/<slug>.md file.
//
// Title is the external reference (it determines the filename). ID is a
// stable identifier persisted in the file so renames can be told apart from
// delete+create. Column is derived from the directory the file lives in and
// is never written into the file itself.
type Card struct {
	ID        string
	Title     string
	Body      string
	Column    string
	Labels    []string
	CreatedAt time.Time
	Order     int
}

// NewCardID returns a fresh stable card identifier.
func NewCardID() string {
	return uuid.NewString()
}

// Validate checks the fields a card must carry before it is written.
func (c *Card) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(c.Title) > MaxTitleLength {
		return fmt.Errorf("title must be %d characters or less (got %d)", MaxTitleLength, len(c.Title))
	}
	if c.ID != "" {
		if _, err := uuid.Parse(c.ID); err != nil {
			return fmt.Errorf("invalid card id %q: %w", c.ID, err)
		}
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("created timestamp is required")
	}
	return nil
}

// HasLabel reports whether the card references the label ID.
func (c *Card) HasLabel(id string) bool {
	return slices.Contains(c.Labels, id)
}

// Clone returns a deep copy of the card.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	out := *c
	out.Labels = append([]string(nil), c.Labels...)
	return &out
}

// Equal reports whether two cards carry the same content.
func (c *Card) Equal(o *Card) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.ID == o.ID &&
		c.Title == o.Title &&
		c.Body == o.Body &&
		c.Column == o.Column &&
		c.Order == o.Order &&
		c.CreatedAt.Equal(o.CreatedAt) &&
		slices.Equal(c.Labels, o.Labels)
}
