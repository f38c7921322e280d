package store

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by mutations. Callers match them with errors.Is.
var (
	// ErrNotFound means the referenced card, column or label does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTitleConflict means another card already has the requested title.
	ErrTitleConflict = errors.New("title already in use")

	// ErrSlugConflict means the requested title maps to a file name that is
	// already taken by a different card.
	ErrSlugConflict = errors.New("file name already in use")

	// ErrInvalid means the input failed validation.
	ErrInvalid = errors.New("invalid input")

	// ErrLastColumn means the operation would leave the board without columns.
	ErrLastColumn = errors.New("board must keep at least one column")

	// ErrColumnNotEmpty means a column still holds cards.
	ErrColumnNotEmpty = errors.New("column is not empty")

	// ErrNotBoard means the directory has no board.md.
	ErrNotBoard = errors.New("not a board directory")

	// ErrBoardExists means Init was called on an existing board.
	ErrBoardExists = errors.New("board already exists")
)

// AccessError reports a filesystem failure on a specific path. The in-memory
// model is unchanged when a mutation returns one.
type AccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

func notFound(kind, ref string) error {
	return fmt.Errorf("%s %q: %w", kind, ref, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
