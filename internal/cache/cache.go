// Package cache persists the last fetched task snapshot so the board
// renders immediately on startup, flagged stale until the first live
// fetch replaces it.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/taskboard/internal/model"
)

// Cache is a sqlite-backed snapshot store.
type Cache struct {
	db *sqlx.DB
}

// New opens (or creates) the cache database at dbPath, enables WAL
// mode, and runs any pending schema migrations. ":memory:" works for
// tests.
func New(dbPath string) (*Cache, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	c := &Cache{db: db}
	if err := c.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return c, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (c *Cache) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := c.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = c.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := c.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveSnapshot replaces the cached snapshot with the given tasks in a
// single transaction and records the save time.
func (c *Cache) SaveSnapshot(ctx context.Context, tasks []model.Task) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	const query = `
		INSERT INTO tasks (
			id, title, description, status, priority,
			assignee_id, assignee_name, creator_id,
			created_at, updated_at, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, t := range tasks {
		_, err := stmt.ExecContext(ctx,
			t.ID, t.Title, t.Description, string(t.Status), string(t.Priority),
			t.AssigneeID, t.AssigneeName, t.CreatorID,
			t.CreatedAt.Format(time.RFC3339Nano),
			t.UpdatedAt.Format(time.RFC3339Nano),
			i,
		)
		if err != nil {
			return fmt.Errorf("inserting task %s: %w", t.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshot_meta (key, value) VALUES ('saved_at', ?)",
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording snapshot time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// taskRow mirrors the tasks table for sqlx scanning.
type taskRow struct {
	ID           string `db:"id"`
	Title        string `db:"title"`
	Description  string `db:"description"`
	Status       string `db:"status"`
	Priority     string `db:"priority"`
	AssigneeID   string `db:"assignee_id"`
	AssigneeName string `db:"assignee_name"`
	CreatorID    string `db:"creator_id"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
	Position     int    `db:"position"`
}

// LoadSnapshot returns the cached tasks in saved order plus the time
// the snapshot was written. A missing snapshot returns an empty slice
// and zero time, not an error.
func (c *Cache) LoadSnapshot(ctx context.Context) ([]model.Task, time.Time, error) {
	var rows []taskRow
	err := c.db.SelectContext(ctx, &rows,
		"SELECT * FROM tasks ORDER BY position ASC")
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loading snapshot: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		createdAt, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
		updatedAt, _ := time.Parse(time.RFC3339Nano, r.UpdatedAt)
		tasks = append(tasks, model.Task{
			ID:           r.ID,
			Title:        r.Title,
			Description:  r.Description,
			Status:       model.Status(r.Status),
			Priority:     model.Priority(r.Priority),
			AssigneeID:   r.AssigneeID,
			AssigneeName: r.AssigneeName,
			CreatorID:    r.CreatorID,
			CreatedAt:    createdAt,
			UpdatedAt:    updatedAt,
		})
	}

	var savedAtStr string
	err = c.db.GetContext(ctx, &savedAtStr,
		"SELECT value FROM snapshot_meta WHERE key = 'saved_at'")
	if err != nil {
		// No snapshot recorded yet.
		return tasks, time.Time{}, nil
	}
	savedAt, _ := time.Parse(time.RFC3339Nano, savedAtStr)

	return tasks, savedAt, nil
}

// Clear drops the cached snapshot, used on logout so the next session
// never sees another user's tasks.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clearing cached tasks: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM snapshot_meta"); err != nil {
		return fmt.Errorf("clearing snapshot metadata: %w", err)
	}
	return nil
}
