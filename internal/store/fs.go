package store

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// batch applies a sequence of file writes and removals and can undo them.
// A mutation that touches several files rolls the batch back on the first
// failure so no partial result is left on disk.
type batch struct {
	op   string
	undo []func() error
}

func newBatch(op string) *batch {
	return &batch{op: op}
}

func (b *batch) fail(path string, err error) error {
	return &AccessError{Op: b.op, Path: path, Err: err}
}

// write atomically replaces path with data, creating parent directories.
func (b *batch) write(path string, data []byte) error {
	prev, existed, err := readExisting(path)
	if err != nil {
		return b.fail(path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return b.fail(path, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return b.fail(path, err)
	}

	b.undo = append(b.undo, func() error {
		if !existed {
			return os.Remove(path)
		}
		return atomic.WriteFile(path, bytes.NewReader(prev))
	})
	return nil
}

// mkdir creates dir and its parents. Rollback removes dir again if this call
// created it; parents are left in place.
func (b *batch) mkdir(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return b.fail(dir, err)
	}
	b.undo = append(b.undo, func() error { return os.Remove(dir) })
	return nil
}

// remove deletes path. A missing file is not an error.
func (b *batch) remove(path string) error {
	prev, existed, err := readExisting(path)
	if err != nil {
		return b.fail(path, err)
	}
	if !existed {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return b.fail(path, err)
	}

	b.undo = append(b.undo, func() error {
		return atomic.WriteFile(path, bytes.NewReader(prev))
	})
	return nil
}

// rollback undoes every applied step in reverse order.
func (b *batch) rollback(logger *slog.Logger) {
	for i := len(b.undo) - 1; i >= 0; i-- {
		if err := b.undo[i](); err != nil {
			logger.Error("failed to roll back file change", "op", b.op, "error", err)
		}
	}
	b.undo = nil
}

func readExisting(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
