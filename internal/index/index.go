// Package index keeps a SQLite query cache of the loaded board.
//
// The markdown files stay the source of truth. The index is rebuilt from the
// store's in-memory model on every store event and can be deleted at any
// time; it only exists so that lookups across many cards (find by text,
// label or column) do not need to walk the cards.
//
// Architecture:
//   - Database file: <boardRoot>/.mdboard/index.db
//   - WAL mode: the CLI can query while a watch process rebuilds
//   - Schema: columns, cards, card_labels
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mschirtzinger/mdboard/internal/model"
	"github.com/mschirtzinger/mdboard/internal/store"
)

// Memory opens an index that lives only as long as the process.
const Memory = ":memory:"

// DB wraps the index database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the index at path and ensures the schema exists.
// Pass Memory for a private in-memory index.
//
// The caller must call Close when done.
func Open(path string) (*DB, error) {
	dsn := "file::memory:"
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		dsn = "file:" + path
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping index: %w", err)
	}

	if path == Memory {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(4)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database location.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	_, _ = db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the tables if they do not exist. It is idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS columns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cards (
		title TEXT PRIMARY KEY,
		id TEXT,
		column_id TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		labels TEXT NOT NULL DEFAULT '[]',  -- JSON array
		position INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS card_labels (
		card_title TEXT NOT NULL,
		label_id TEXT NOT NULL,
		PRIMARY KEY (card_title, label_id),
		FOREIGN KEY (card_title) REFERENCES cards(title) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_cards_column ON cards(column_id, position);
	CREATE INDEX IF NOT EXISTS idx_card_labels_label ON card_labels(label_id);
	`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Rebuild replaces the whole index with board and cards in one transaction.
func (db *DB) Rebuild(ctx context.Context, board *model.Board, cards []*model.Card) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM card_labels", "DELETE FROM cards", "DELETE FROM columns"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	}

	for i, col := range board.Columns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO columns (id, name, position) VALUES (?, ?, ?)`,
			col.ID, col.Name, i,
		); err != nil {
			return fmt.Errorf("failed to index column %s: %w", col.ID, err)
		}
	}

	for _, c := range cards {
		labels := c.Labels
		if labels == nil {
			labels = []string{}
		}
		labelsJSON, err := json.Marshal(labels)
		if err != nil {
			return fmt.Errorf("failed to marshal labels: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO cards (title, id, column_id, body, labels, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Title, nullString(c.ID), c.Column, c.Body, string(labelsJSON), c.Order,
			c.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to index card %q: %w", c.Title, err)
		}
		for _, label := range labels {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO card_labels (card_title, label_id) VALUES (?, ?)`,
				c.Title, label,
			); err != nil {
				return fmt.Errorf("failed to index label %s: %w", label, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Query selects cards. Empty fields match everything.
type Query struct {
	// Text matches title or body, case-insensitively.
	Text   string
	Column string
	Label  string
	Limit  int
}

// Result is one matching card.
type Result struct {
	ID     string
	Title  string
	Column string
	Labels []string
	Order  int
}

// Find returns cards matching q in board order: by column position, then
// card order, then title. Cards in unknown columns sort last.
func (db *DB) Find(ctx context.Context, q Query) ([]Result, error) {
	var (
		where []string
		args  []any
	)
	if q.Text != "" {
		where = append(where, `(c.title LIKE ? ESCAPE '\' OR c.body LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(q.Text) + "%"
		args = append(args, pattern, pattern)
	}
	if q.Column != "" {
		where = append(where, `c.column_id = ?`)
		args = append(args, q.Column)
	}
	if q.Label != "" {
		where = append(where, `EXISTS (SELECT 1 FROM card_labels l WHERE l.card_title = c.title AND l.label_id = ?)`)
		args = append(args, q.Label)
	}

	query := `
	SELECT COALESCE(c.id, ''), c.title, c.column_id, c.labels, c.position
	FROM cards c
	LEFT JOIN columns col ON col.id = c.column_id`
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\tORDER BY COALESCE(col.position, 1 << 30), c.position, c.title"
	if q.Limit > 0 {
		query += "\n\tLIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r      Result
			labels string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Column, &labels, &r.Order); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		if err := json.Unmarshal([]byte(labels), &r.Labels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal labels of %q: %w", r.Title, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ColumnCounts returns how many cards each column holds, including columns
// that only exist on disk.
func (db *DB) ColumnCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT id, 0 FROM columns WHERE id NOT IN (SELECT column_id FROM cards)
	UNION ALL
	SELECT column_id, COUNT(*) FROM cards GROUP BY column_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count cards: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// Follow rebuilds db from st now and after every store event until the
// returned function is called. Rebuild failures are logged, never returned;
// the next event tries again.
func Follow(db *DB, st *store.Store, logger *slog.Logger) (stop func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}
	rebuild := func() error {
		return db.Rebuild(context.Background(), st.Board(), st.Cards())
	}
	if err := rebuild(); err != nil {
		return nil, err
	}
	return st.Subscribe(func(store.Event) {
		if err := rebuild(); err != nil {
			logger.Warn("index rebuild failed", "path", db.path, "error", err)
		}
	}), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
