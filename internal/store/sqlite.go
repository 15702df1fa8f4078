// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides bot/flag/user persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name  TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

		CREATE TABLE IF NOT EXISTS bots (
			id           TEXT PRIMARY KEY,
			credential   TEXT UNIQUE NOT NULL,
			owner_id     TEXT NOT NULL REFERENCES users(id),
			display_name TEXT NOT NULL,
			gateway_id   TEXT NOT NULL,
			node         TEXT NOT NULL,
			status       TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,

			CHECK (status IN ('registered', 'online', 'offline'))
		);

		CREATE INDEX IF NOT EXISTS idx_bots_owner ON bots(owner_id);
		CREATE INDEX IF NOT EXISTS idx_bots_status ON bots(status);

		CREATE TABLE IF NOT EXISTS command_flags (
			bot_id  TEXT NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
			command TEXT NOT NULL,
			enabled INTEGER NOT NULL,

			PRIMARY KEY (bot_id, command)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// UpsertBotRecord inserts or updates a bot record keyed by credential.
// On conflict the mutable columns are overwritten (last-write-wins) while
// id, owner and created_at are preserved.
func (s *SQLiteStore) UpsertBotRecord(ctx context.Context, rec *BotRecord) error {
	query := `
		INSERT INTO bots (id, credential, owner_id, display_name, gateway_id, node, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(credential) DO UPDATE SET
			display_name = excluded.display_name,
			gateway_id   = excluded.gateway_id,
			node         = excluded.node,
			status       = excluded.status,
			updated_at   = excluded.updated_at
	`

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Credential,
		rec.OwnerID,
		rec.DisplayName,
		rec.GatewayID,
		rec.Node,
		rec.Status,
		rec.CreatedAt.Format(time.RFC3339),
		rec.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting bot record: %w", err)
	}
	return nil
}

const botColumns = `id, credential, owner_id, display_name, gateway_id, node, status, created_at, updated_at`

// scanBotRecord scans a single bot row.
func scanBotRecord(row interface{ Scan(...any) error }) (*BotRecord, error) {
	var rec BotRecord
	var createdAt, updatedAt string

	err := row.Scan(
		&rec.ID,
		&rec.Credential,
		&rec.OwnerID,
		&rec.DisplayName,
		&rec.GatewayID,
		&rec.Node,
		&rec.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

// GetBotRecord retrieves a bot record by credential.
func (s *SQLiteStore) GetBotRecord(ctx context.Context, credential string) (*BotRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE credential = ?`, credential)

	rec, err := scanBotRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting bot record: %w", err)
	}
	return rec, nil
}

// GetBotRecordByID retrieves a bot record by its public id.
func (s *SQLiteStore) GetBotRecordByID(ctx context.Context, id string) (*BotRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE id = ?`, id)

	rec, err := scanBotRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting bot record by id: %w", err)
	}
	return rec, nil
}

// ListBotRecordsByOwner returns all bot records owned by the given user.
func (s *SQLiteStore) ListBotRecordsByOwner(ctx context.Context, ownerID string) ([]*BotRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE owner_id = ? ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing bot records by owner: %w", err)
	}
	defer rows.Close()

	return collectBotRecords(rows)
}

// ListBotRecordsByStatus returns all bot records with the given status.
func (s *SQLiteStore) ListBotRecordsByStatus(ctx context.Context, status string) ([]*BotRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("listing bot records by status: %w", err)
	}
	defer rows.Close()

	return collectBotRecords(rows)
}

// collectBotRecords drains a result set of bot rows.
func collectBotRecords(rows *sql.Rows) ([]*BotRecord, error) {
	var recs []*BotRecord
	for rows.Next() {
		rec, err := scanBotRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bot record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bot records: %w", err)
	}
	return recs, nil
}

// UpdateBotStatus updates the status column of a bot record.
// Returns ErrNotFound if no record exists for the credential.
func (s *SQLiteStore) UpdateBotStatus(ctx context.Context, credential, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bots SET status = ?, updated_at = ? WHERE credential = ?`,
		status, time.Now().UTC().Format(time.RFC3339), credential)
	if err != nil {
		return fmt.Errorf("updating bot status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOwner returns the owner user id for a credential.
// Returns ErrNotFound if the credential is not registered.
func (s *SQLiteStore) GetOwner(ctx context.Context, credential string) (string, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM bots WHERE credential = ?`, credential).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting owner: %w", err)
	}
	return ownerID, nil
}

// GetCommandFlags returns the explicitly toggled command flags for a bot.
// Commands absent from the map have never been toggled and are treated as enabled.
func (s *SQLiteStore) GetCommandFlags(ctx context.Context, credential string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.command, f.enabled
		FROM command_flags f
		JOIN bots b ON b.id = f.bot_id
		WHERE b.credential = ?
	`, credential)
	if err != nil {
		return nil, fmt.Errorf("getting command flags: %w", err)
	}
	defer rows.Close()

	flags := make(map[string]bool)
	for rows.Next() {
		var command string
		var enabled bool
		if err := rows.Scan(&command, &enabled); err != nil {
			return nil, fmt.Errorf("scanning command flag: %w", err)
		}
		flags[command] = enabled
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command flags: %w", err)
	}
	return flags, nil
}

// SetCommandFlag records an explicit enable/disable override for a command.
// Returns ErrNotFound if the credential is not registered.
func (s *SQLiteStore) SetCommandFlag(ctx context.Context, credential, command string, enabled bool) error {
	var botID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM bots WHERE credential = ?`, credential).Scan(&botID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("resolving bot for flag: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO command_flags (bot_id, command, enabled)
		VALUES (?, ?, ?)
		ON CONFLICT(bot_id, command) DO UPDATE SET enabled = excluded.enabled
	`, botID, command, enabled)
	if err != nil {
		return fmt.Errorf("setting command flag: %w", err)
	}
	return nil
}
